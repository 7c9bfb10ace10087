package transcription

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

// ErrEmptyTranscript is returned when the backend accepts the audio but
// produces no text at all; callers must not feed an empty transcript into
// the notes pipeline.
var ErrEmptyTranscript = errors.New("transcription: backend returned empty text")

type Client interface {
	Transcribe(ctx context.Context, file io.Reader, fileName, modelID string) (string, error)
}

type Service struct {
	client       Client
	defaultModel string
	timeout      time.Duration
}

func New(client Client, defaultModel string, timeout time.Duration) *Service {
	return &Service{
		client:       client,
		defaultModel: strings.TrimSpace(defaultModel),
		timeout:      timeout,
	}
}

// Transcribe runs the upload through the speech-to-text backend. An empty
// modelID falls back to the configured default, the result is trimmed, and a
// blank result is an error rather than an empty success.
func (s *Service) Transcribe(ctx context.Context, file io.Reader, fileName, modelID string) (string, error) {
	selectedModel := strings.TrimSpace(modelID)
	if selectedModel == "" {
		selectedModel = s.defaultModel
	}
	if fileName == "" {
		fileName = "audio.wav"
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.client.Transcribe(ctx, file, fileName, selectedModel)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyTranscript
	}
	return text, nil
}
