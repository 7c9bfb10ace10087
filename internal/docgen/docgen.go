package docgen

import (
	"fmt"
	"strings"
	"time"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"

	"noteforge/internal/notes"
)

const (
	fontName     = "Helvetica"
	bodySize     = 11
	titleSize    = 18
	headingSize  = 13
	headingColor = "4F46E5"
	answerColor  = "7C3AED"
	bodyColor    = "1E1B4B"
	mutedColor   = "6B7280"
)

// Document is the renderable payload: the notes result plus the transcript
// it came from. Empty sections are omitted from the output, never an error.
type Document struct {
	Transcript string
	Notes      notes.Result
}

type Service struct {
	now func() time.Time
}

func New() *Service {
	return &Service{now: time.Now}
}

// NewWithClock is used by tests to pin the generated-on line.
func NewWithClock(now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{now: now}
}

// Render writes the lecture notes document to outputPath as DOCX.
func (s *Service) Render(d Document, outputPath string) error {
	doc, err := godocx.NewDocument()
	if err != nil {
		return err
	}

	addRun(doc.AddParagraph(""), "LECTURE NOTES", titleSize, headingColor, true)
	addRun(doc.AddParagraph(""),
		"Generated on "+s.now().Format("January 2, 2006 at 3:04 PM"),
		9, mutedColor, false)
	doc.AddParagraph("")

	if summary := safeText(d.Notes.Summary); strings.TrimSpace(summary) != "" {
		addHeading(doc, "SUMMARY")
		addRun(doc.AddParagraph(""), summary, bodySize, bodyColor, false)
		doc.AddParagraph("")
	}

	if len(d.Notes.Bullets) > 0 {
		addHeading(doc, "KEY POINTS")
		idx := 0
		for _, bullet := range d.Notes.Bullets {
			cleaned := strings.TrimSpace(safeText(bullet))
			if cleaned == "" {
				continue
			}
			idx++
			addRun(doc.AddParagraph(""), fmt.Sprintf("%d.  %s", idx, cleaned), bodySize, bodyColor, false)
		}
		doc.AddParagraph("")
	}

	if len(d.Notes.Quiz) > 0 {
		addHeading(doc, "QUIZ QUESTIONS")
		for i, item := range d.Notes.Quiz {
			question := safeText(item.Question)
			if strings.TrimSpace(question) == "" {
				continue
			}
			addRun(doc.AddParagraph(""), fmt.Sprintf("Q%d: %s", i+1, question), bodySize, answerColor, true)
			addRun(doc.AddParagraph(""), "Answer: "+safeText(item.Answer), bodySize, bodyColor, false)
		}
		doc.AddParagraph("")
	}

	if len(d.Notes.Flashcards) > 0 {
		addHeading(doc, "FLASHCARDS")
		for _, card := range d.Notes.Flashcards {
			front := strings.TrimSpace(safeText(card.Front))
			back := strings.TrimSpace(safeText(card.Back))
			if front == "" && back == "" {
				continue
			}
			p := doc.AddParagraph("")
			p.AddText(front).Font(fontName).Size(bodySize).Color(bodyColor).Bold(true)
			p.AddText(" - " + back).Font(fontName).Size(bodySize).Color(bodyColor)
		}
		doc.AddParagraph("")
	}

	if transcript := safeText(d.Transcript); strings.TrimSpace(transcript) != "" {
		addHeading(doc, "FULL TRANSCRIPT")
		addRun(doc.AddParagraph(""), transcript, 9, mutedColor, false)
	}

	doc.AddParagraph("")
	addRun(doc.AddParagraph(""), "Generated by NoteForge  |  Powered by ElevenLabs and HuggingFace",
		8, mutedColor, false)

	return doc.SaveTo(outputPath)
}

func addHeading(doc *docx.RootDoc, text string) {
	addRun(doc.AddParagraph(""), text, headingSize, headingColor, true)
}

func addRun(p *docx.Paragraph, text string, size uint64, color string, bold bool) {
	run := p.AddText(text).Font(fontName).Size(size).Color(color)
	if bold {
		run.Bold(true)
	}
}

// safeText replaces characters the layout font cannot encode (anything above
// the basic single-byte range) with a space.
func safeText(text string) string {
	if text == "" {
		return ""
	}
	return strings.Map(func(r rune) rune {
		if r > 0xFF {
			return ' '
		}
		return r
	}, text)
}
