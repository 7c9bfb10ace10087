package notes

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

const (
	transcriptBudget = 2500
	itemPromptBudget = 1200

	bulletTarget    = 6
	quizTarget      = 5
	flashcardTarget = 5

	summaryMaxLength   = 180
	summaryMinLength   = 40
	bulletMaxTokens    = 300
	quizMaxTokens      = 150
	flashcardMaxTokens = 120
)

// QAPair is one quiz question with its answer.
type QAPair struct {
	Question string
	Answer   string
}

// Flashcard is one study card: term or concept on the front, explanation on
// the back.
type Flashcard struct {
	Front string
	Back  string
}

// Result aggregates everything derived from one transcript. After Process
// returns, every field holds at least one element or a non-empty string;
// that guarantee is the central contract of this package.
type Result struct {
	Summary    string
	Bullets    []string
	Quiz       []QAPair
	Flashcards []Flashcard
}

// Generator is the remote text-generation backend.
type Generator interface {
	Summarize(ctx context.Context, model, text string, maxLength, minLength int) (string, error)
	Generate(ctx context.Context, model, prompt string, maxNewTokens int) (string, error)
}

type BackfillObserverFunc func(field string)

type Option func(*Service)

// WithBackfillObserver reports each field replaced by fallback output after
// the remote stage.
func WithBackfillObserver(observer BackfillObserverFunc) Option {
	return func(s *Service) {
		s.backfillObserver = observer
	}
}

// Service orchestrates the four generation sub-tasks against the remote
// backend and guarantees a complete Result via the local fallback. Remote
// failures never escape Process; they degrade to empty fields that the
// backfill stage replaces.
type Service struct {
	client             Generator
	remoteEnabled      bool
	summarizationModel string
	textGenModel       string
	backfillObserver   BackfillObserverFunc
}

func New(client Generator, remoteEnabled bool, summarizationModel, textGenModel string, opts ...Option) *Service {
	s := &Service{
		client:             client,
		remoteEnabled:      remoteEnabled,
		summarizationModel: strings.TrimSpace(summarizationModel),
		textGenModel:       strings.TrimSpace(textGenModel),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Process runs the pipeline for one transcript. Stage one dispatches the
// four sub-tasks concurrently against the backend, best-effort; stage two
// computes the local fallback once and backfills any field that came back
// empty. Never returns an incomplete Result.
func (s *Service) Process(ctx context.Context, transcript string) Result {
	if !s.remoteEnabled || s.client == nil {
		return Fallback(transcript)
	}

	text := strings.TrimSpace(truncateRunes(transcript, transcriptBudget))

	var remote Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		remote.Summary = s.generateSummary(gctx, text)
		return nil
	})
	g.Go(func() error {
		remote.Bullets = s.generateBullets(gctx, text)
		return nil
	})
	g.Go(func() error {
		remote.Quiz = s.generateQuiz(gctx, text)
		return nil
	})
	g.Go(func() error {
		remote.Flashcards = s.generateFlashcards(gctx, text)
		return nil
	})
	_ = g.Wait()

	return s.backfill(remote, Fallback(transcript))
}

func (s *Service) generateSummary(ctx context.Context, text string) string {
	summary, err := s.client.Summarize(ctx, s.summarizationModel, text, summaryMaxLength, summaryMinLength)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(summary)
}

func (s *Service) generateBullets(ctx context.Context, text string) []string {
	prompt := fmt.Sprintf("List %d key facts from the following lecture text. "+
		"Write each fact as a complete sentence on a new line numbered 1 to %d.\n\n"+
		"Lecture text: %s", bulletTarget, bulletTarget, text)

	raw, err := s.client.Generate(ctx, s.textGenModel, prompt, bulletMaxTokens)
	if err != nil {
		return nil
	}
	bullets := parseListItems(raw)
	if len(bullets) > bulletTarget {
		bullets = bullets[:bulletTarget]
	}
	return bullets
}

// generateQuiz issues one independent call per question index. Calls fan out
// concurrently; unparseable responses are skipped without a retry, so fewer
// than five pairs can come back. Results keep index order.
func (s *Service) generateQuiz(ctx context.Context, text string) []QAPair {
	short := truncateRunes(text, itemPromptBudget)

	results := make([]*QAPair, quizTarget)
	var g errgroup.Group
	for i := 0; i < quizTarget; i++ {
		i := i
		g.Go(func() error {
			prompt := fmt.Sprintf("Read the lecture below and write quiz question number %d "+
				"with its correct answer.\n"+
				"Reply in this exact format:\n"+
				"Question: [your question]\n"+
				"Answer: [your answer]\n\n"+
				"Lecture: %s", i+1, short)
			raw, err := s.client.Generate(ctx, s.textGenModel, prompt, quizMaxTokens)
			if err != nil {
				return nil
			}
			if qa, ok := parseQA(raw); ok {
				results[i] = &qa
			}
			return nil
		})
	}
	_ = g.Wait()

	quiz := make([]QAPair, 0, quizTarget)
	for _, qa := range results {
		if qa != nil {
			quiz = append(quiz, *qa)
		}
	}
	return quiz
}

// generateFlashcards mirrors generateQuiz with a term/definition template.
func (s *Service) generateFlashcards(ctx context.Context, text string) []Flashcard {
	short := truncateRunes(text, itemPromptBudget)

	results := make([]*Flashcard, flashcardTarget)
	var g errgroup.Group
	for i := 0; i < flashcardTarget; i++ {
		i := i
		g.Go(func() error {
			prompt := fmt.Sprintf("Read the lecture below and create flashcard number %d. "+
				"Pick one important term or concept and define it.\n"+
				"Reply in this exact format:\n"+
				"Term: [term or concept]\n"+
				"Definition: [clear explanation]\n\n"+
				"Lecture: %s", i+1, short)
			raw, err := s.client.Generate(ctx, s.textGenModel, prompt, flashcardMaxTokens)
			if err != nil {
				return nil
			}
			if card, ok := parseFlashcard(raw); ok {
				results[i] = &card
			}
			return nil
		})
	}
	_ = g.Wait()

	cards := make([]Flashcard, 0, flashcardTarget)
	for _, card := range results {
		if card != nil {
			cards = append(cards, *card)
		}
	}
	return cards
}

// backfill replaces every empty field of the remote result with the
// fallback's value. Emptiness is checked per field type, never by
// truthiness on heterogeneous values.
func (s *Service) backfill(remote, local Result) Result {
	out := remote
	if strings.TrimSpace(out.Summary) == "" {
		out.Summary = local.Summary
		s.observeBackfill("summary")
	}
	if len(out.Bullets) == 0 {
		out.Bullets = local.Bullets
		s.observeBackfill("bullets")
	}
	if len(out.Quiz) == 0 {
		out.Quiz = local.Quiz
		s.observeBackfill("quiz")
	}
	if len(out.Flashcards) == 0 {
		out.Flashcards = local.Flashcards
		s.observeBackfill("flashcards")
	}
	return out
}

func (s *Service) observeBackfill(field string) {
	if s.backfillObserver != nil {
		s.backfillObserver(field)
	}
}
