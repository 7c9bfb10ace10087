package notes

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Parsers turn free-form model output into structured records. Each one tries
// a sequence of strategies in priority order and reports "no result" through
// a bool instead of an error, so callers can skip an item and move on.

var (
	reNumberedItem = regexp.MustCompile(`^\d+[.):\-]\s*(.+)`)
	reBulletItem   = regexp.MustCompile(`^[-*•]\s*(.+)`)

	reQuestionLabel = regexp.MustCompile(`(?i)(?:Question|Q)\s*\d*\s*[:\-]\s*(.+)`)
	reAnswerLabel   = regexp.MustCompile(`(?i)(?:Answer|A)\s*\d*\s*[:\-]\s*(.+)`)

	reCardFrontLabel = regexp.MustCompile(`(?i)(?:Term|Front|Concept|Topic|Key\s*term)\s*[:\-]\s*(.+)`)
	reCardBackLabel  = regexp.MustCompile(`(?i)(?:Definition|Back|Explanation|Meaning|Description)\s*[:\-]\s*(.+)`)
)

const placeholderAnswer = "(See lecture notes)"

// parseListItems extracts items from a numbered or bulleted list. Numbered
// lines win over bullet glyphs; as a last resort any line of substance
// counts as an item.
func parseListItems(text string) []string {
	if text == "" {
		return nil
	}

	var items []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if m := reNumberedItem.FindStringSubmatch(line); m != nil {
			item := strings.TrimSpace(m[1])
			if utf8.RuneCountInString(item) > 8 {
				items = append(items, item)
			}
		}
	}
	if len(items) > 0 {
		return items
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if m := reBulletItem.FindStringSubmatch(line); m != nil {
			item := strings.TrimSpace(m[1])
			if utf8.RuneCountInString(item) > 8 {
				items = append(items, item)
			}
		}
	}
	if len(items) > 0 {
		return items
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) > 25 {
			items = append(items, line)
		}
	}
	return items
}

// parseQA extracts one question/answer pair.
func parseQA(text string) (QAPair, bool) {
	if text == "" {
		return QAPair{}, false
	}

	var question, answer string
	if m := reQuestionLabel.FindStringSubmatch(text); m != nil {
		question = strings.TrimSpace(m[1])
	}
	if m := reAnswerLabel.FindStringSubmatch(text); m != nil {
		answer = strings.TrimSpace(m[1])
	}
	if question != "" && answer != "" {
		return QAPair{Question: question, Answer: answer}, true
	}

	lines := nonBlankLines(text)
	if len(lines) >= 2 {
		return QAPair{Question: lines[0], Answer: lines[1]}, true
	}
	if len(lines) == 1 && utf8.RuneCountInString(lines[0]) > 15 {
		return QAPair{Question: lines[0], Answer: placeholderAnswer}, true
	}
	return QAPair{}, false
}

// parseFlashcard extracts one term/definition flashcard.
func parseFlashcard(text string) (Flashcard, bool) {
	if text == "" {
		return Flashcard{}, false
	}

	var front, back string
	if m := reCardFrontLabel.FindStringSubmatch(text); m != nil {
		front = strings.TrimSpace(m[1])
	}
	if m := reCardBackLabel.FindStringSubmatch(text); m != nil {
		back = strings.TrimSpace(m[1])
	}
	if front != "" && back != "" {
		return Flashcard{Front: front, Back: back}, true
	}

	lines := nonBlankLines(text)
	if len(lines) >= 2 {
		return Flashcard{Front: lines[0], Back: strings.Join(lines[1:], " ")}, true
	}
	if len(lines) == 1 && utf8.RuneCountInString(lines[0]) > 10 {
		words := strings.Fields(lines[0])
		frontLen := len(words)
		if frontLen > 4 {
			frontLen = 4
		}
		return Flashcard{Front: strings.Join(words[:frontLen], " "), Back: lines[0]}, true
	}
	return Flashcard{}, false
}

func nonBlankLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
