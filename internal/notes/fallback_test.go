package notes

import (
	"reflect"
	"strings"
	"testing"
)

const lectureTranscript = "Photosynthesis is the process plants use to convert light into energy. " +
	"It takes place inside the chloroplasts of plant cells. " +
	"Chlorophyll absorbs light mostly in the blue and red wavelengths. " +
	"The light reactions produce ATP and NADPH for the cell. " +
	"The Calvin cycle uses that energy to fix carbon dioxide into sugar. " +
	"Water molecules are split to release oxygen as a byproduct. " +
	"Plants store the resulting glucose as starch for later use. " +
	"Temperature and light intensity both affect the overall rate."

func assertComplete(t *testing.T, res Result) {
	t.Helper()
	if strings.TrimSpace(res.Summary) == "" {
		t.Fatal("summary is empty")
	}
	if len(res.Bullets) == 0 {
		t.Fatal("bullets is empty")
	}
	if len(res.Quiz) == 0 {
		t.Fatal("quiz is empty")
	}
	if len(res.Flashcards) == 0 {
		t.Fatal("flashcards is empty")
	}
}

func TestFallbackAlwaysComplete(t *testing.T) {
	transcripts := []string{
		"",
		"short",
		"no terminal punctuation at all just words going on and on",
		lectureTranscript,
	}
	for _, transcript := range transcripts {
		assertComplete(t, Fallback(transcript))
	}
}

func TestFallbackDegenerateFloor(t *testing.T) {
	res := Fallback("")
	if res.Summary != "Transcript unavailable." {
		t.Fatalf("unexpected summary: %q", res.Summary)
	}
	if len(res.Bullets) != 1 || len(res.Quiz) != 1 || len(res.Flashcards) != 1 {
		t.Fatalf("expected single generic entries, got %+v", res)
	}
	if res.Flashcards[0].Back != "See transcript." {
		t.Fatalf("unexpected flashcard back: %q", res.Flashcards[0].Back)
	}
}

func TestFallbackSummaryUsesLeadingSentences(t *testing.T) {
	res := Fallback(lectureTranscript)
	if !strings.HasPrefix(res.Summary, "Photosynthesis is the process") {
		t.Fatalf("unexpected summary start: %q", res.Summary)
	}
	if strings.Contains(res.Summary, "Water molecules are split") {
		t.Fatalf("summary should stop after five sentences: %q", res.Summary)
	}
}

func TestFallbackBulletsCappedAndDistinct(t *testing.T) {
	res := Fallback(lectureTranscript)
	if len(res.Bullets) > 6 {
		t.Fatalf("too many bullets: %d", len(res.Bullets))
	}
	for _, b := range res.Bullets {
		if len(b) <= 25 {
			t.Fatalf("bullet below length threshold: %q", b)
		}
	}
}

func TestFallbackQuizBlanksRightmostContentWord(t *testing.T) {
	res := Fallback("The powerhouse of the cell is the mitochondria. Another filler sentence with plenty of words here.")
	if len(res.Quiz) == 0 {
		t.Fatal("expected quiz items")
	}
	first := res.Quiz[0]
	if !strings.Contains(first.Question, "______") {
		t.Fatalf("expected a blank token in question: %q", first.Question)
	}
	if !strings.HasSuffix(first.Question, "?") {
		t.Fatalf("question should end with '?': %q", first.Question)
	}
	if first.Answer != "mitochondria" {
		t.Fatalf("unexpected answer: %q", first.Answer)
	}
}

func TestFallbackFlashcardFrontFromLeadingWords(t *testing.T) {
	res := Fallback(lectureTranscript)
	if len(res.Flashcards) == 0 {
		t.Fatal("expected flashcards")
	}
	card := res.Flashcards[0]
	if card.Front == "" || card.Back == "" {
		t.Fatalf("incomplete card: %+v", card)
	}
	if !strings.HasPrefix(card.Back, card.Front) {
		t.Fatalf("back should contain the full sentence starting with the front: %+v", card)
	}
}

func TestFallbackDeterministic(t *testing.T) {
	first := Fallback(lectureTranscript)
	second := Fallback(lectureTranscript)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("fallback output differs across calls")
	}
}

func TestExtractSentencesStripsDecorationAndShortFragments(t *testing.T) {
	sentences := extractSentences("- The first bulleted sentence is long enough. tiny. • Another decorated sentence of real substance.")
	if len(sentences) != 2 {
		t.Fatalf("unexpected sentences: %v", sentences)
	}
	if strings.HasPrefix(sentences[0], "-") {
		t.Fatalf("decoration not stripped: %q", sentences[0])
	}
}

func TestExtractSentencesCountsCharactersNotBytes(t *testing.T) {
	// Twelve characters in thirty-six bytes: still below the twenty-character
	// floor, so the fragment is discarded.
	if got := extractSentences("光合成は植物の過程です。"); len(got) != 0 {
		t.Fatalf("expected short multibyte fragment to be discarded, got %v", got)
	}

	got := extractSentences("光合成は植物が光をエネルギーに変換するために使う生物学的な過程です。")
	if len(got) != 1 {
		t.Fatalf("expected one sentence, got %v", got)
	}

	assertComplete(t, Fallback("光合成は植物の過程です。"))
}
