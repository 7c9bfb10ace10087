package notes

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// The local fallback derives a complete result from the transcript alone,
// with no network calls. It serves two roles: the whole pipeline when no
// inference credential is configured, and the backfill source for any field
// the remote path left empty. It is pure and deterministic.

var reWhitespace = regexp.MustCompile(`\s+`)

const (
	minSentenceLen    = 20
	minBulletLen      = 25
	minQuizWords      = 6
	maxQuizCandidates = 8
	minFlashcardWords = 7
)

// Fallback builds a complete Result from transcript text using sentence
// heuristics. Every field of the returned value is non-empty, even for an
// empty transcript.
func Fallback(transcript string) Result {
	sentences := extractSentences(transcript)

	if len(sentences) == 0 {
		return degenerateResult(transcript)
	}

	return Result{
		Summary:    fallbackSummary(sentences),
		Bullets:    fallbackBullets(sentences),
		Quiz:       fallbackQuiz(sentences),
		Flashcards: fallbackFlashcards(sentences),
	}
}

// extractSentences normalizes whitespace, splits on sentence-terminal
// punctuation and embedded line breaks, strips bullet decoration, and keeps
// only fragments of substance.
func extractSentences(text string) []string {
	text = reWhitespace.ReplaceAllString(strings.TrimSpace(text), " ")

	var sentences []string
	for _, chunk := range splitTerminalPunctuation(text) {
		for _, sub := range strings.Split(chunk, "\n") {
			sub = strings.Trim(sub, " -•*")
			if utf8.RuneCountInString(sub) > minSentenceLen {
				sentences = append(sentences, sub)
			}
		}
	}
	return sentences
}

// splitTerminalPunctuation splits after '.', '!' or '?' followed by a space.
func splitTerminalPunctuation(text string) []string {
	var chunks []string
	start := 0
	for i := 0; i+1 < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if text[i+1] == ' ' {
				chunks = append(chunks, text[start:i+1])
				start = i + 2
			}
		}
	}
	if start <= len(text) {
		chunks = append(chunks, text[start:])
	}
	return chunks
}

// degenerateResult is the absolute floor: even a transcript with zero usable
// sentences yields one entry per field.
func degenerateResult(transcript string) Result {
	summary := truncateRunes(transcript, 400)
	if summary == "" {
		summary = "Transcript unavailable."
	}
	back := truncateRunes(transcript, 150)
	if back == "" {
		back = "See transcript."
	}
	return Result{
		Summary: summary,
		Bullets: []string{"Review the full transcript for key points."},
		Quiz: []QAPair{{
			Question: "What was the main topic?",
			Answer:   "Review the transcript.",
		}},
		Flashcards: []Flashcard{{Front: "Main topic", Back: back}},
	}
}

func fallbackSummary(sentences []string) string {
	n := len(sentences)
	if n > 5 {
		n = 5
	}
	return strings.Join(sentences[:n], " ")
}

// fallbackBullets samples sentences at an even stride across the lecture,
// then tops up in order, skipping exact duplicates.
func fallbackBullets(sentences []string) []string {
	step := len(sentences) / bulletTarget
	if step < 1 {
		step = 1
	}

	var bullets []string
	for i := 0; i < len(sentences); i += step {
		if utf8.RuneCountInString(sentences[i]) > minBulletLen {
			bullets = append(bullets, sentences[i])
		}
		if len(bullets) >= bulletTarget {
			break
		}
	}
	for _, s := range sentences {
		if len(bullets) >= bulletTarget {
			break
		}
		if utf8.RuneCountInString(s) > minBulletLen && !containsString(bullets, s) {
			bullets = append(bullets, s)
		}
	}
	if len(bullets) > bulletTarget {
		bullets = bullets[:bulletTarget]
	}
	return bullets
}

// fallbackQuiz builds fill-in-the-blank questions: the rightmost content
// word of a sentence is blanked out and becomes the answer.
func fallbackQuiz(sentences []string) []QAPair {
	var quiz []QAPair
	candidates := 0
	for _, s := range sentences {
		words := strings.Fields(s)
		if len(words) < minQuizWords {
			continue
		}
		candidates++
		if candidates > maxQuizCandidates {
			break
		}

		keyIdx := len(words) - 1
		for keyIdx > 0 && utf8.RuneCountInString(strings.TrimRight(words[keyIdx], `.,!?;:"`)) <= 3 {
			keyIdx--
		}
		key := strings.Trim(words[keyIdx], `.,!?;:"'`)

		blanked := make([]string, 0, len(words))
		blanked = append(blanked, words[:keyIdx]...)
		blanked = append(blanked, "______")
		blanked = append(blanked, words[keyIdx+1:]...)
		question := strings.TrimRight(strings.Join(blanked, " "), ".,!?") + "?"

		quiz = append(quiz, QAPair{Question: question, Answer: key})
		if len(quiz) >= quizTarget {
			break
		}
	}
	return quiz
}

// fallbackFlashcards uses a sentence's leading words as the front and the
// full sentence as the back.
func fallbackFlashcards(sentences []string) []Flashcard {
	var cards []Flashcard
	for _, s := range sentences {
		words := strings.Fields(s)
		if len(words) < minFlashcardWords {
			continue
		}

		frontLen := len(words) / 5
		if frontLen < 2 {
			frontLen = 2
		}
		if frontLen > 4 {
			frontLen = 4
		}
		front := strings.TrimRight(strings.Join(words[:frontLen], " "), `.,!?;:"'`)

		cards = append(cards, Flashcard{Front: front, Back: s})
		if len(cards) >= flashcardTarget {
			break
		}
	}
	return cards
}

func containsString(items []string, s string) bool {
	for _, item := range items {
		if item == s {
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
