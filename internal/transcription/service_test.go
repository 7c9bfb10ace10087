package transcription

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

type fakeClient struct {
	text string
	err  error

	fileName    string
	modelID     string
	hadDeadline bool
}

func (f *fakeClient) Transcribe(ctx context.Context, _ io.Reader, fileName, modelID string) (string, error) {
	f.fileName = fileName
	f.modelID = modelID
	_, f.hadDeadline = ctx.Deadline()
	return f.text, f.err
}

func TestTranscribeAppliesDefaults(t *testing.T) {
	client := &fakeClient{text: "  hello there  "}
	svc := New(client, "scribe_v1", time.Minute)

	text, err := svc.Transcribe(context.Background(), strings.NewReader("audio"), "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "hello there" {
		t.Fatalf("unexpected text: %q", text)
	}
	if client.modelID != "scribe_v1" {
		t.Fatalf("default model not applied: %q", client.modelID)
	}
	if client.fileName != "audio.wav" {
		t.Fatalf("default file name not applied: %q", client.fileName)
	}
	if !client.hadDeadline {
		t.Fatal("expected a deadline on the client context")
	}
}

func TestTranscribeExplicitModelWins(t *testing.T) {
	client := &fakeClient{text: "ok text"}
	svc := New(client, "scribe_v1", time.Minute)

	if _, err := svc.Transcribe(context.Background(), strings.NewReader("audio"), "talk.mp3", " scribe_v1_experimental "); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.modelID != "scribe_v1_experimental" {
		t.Fatalf("unexpected model: %q", client.modelID)
	}
	if client.fileName != "talk.mp3" {
		t.Fatalf("unexpected file name: %q", client.fileName)
	}
}

func TestTranscribeBlankResultIsError(t *testing.T) {
	svc := New(&fakeClient{text: "   \n  "}, "scribe_v1", time.Minute)

	_, err := svc.Transcribe(context.Background(), strings.NewReader("audio"), "talk.mp3", "")
	if !errors.Is(err, ErrEmptyTranscript) {
		t.Fatalf("expected ErrEmptyTranscript, got %v", err)
	}
}

func TestTranscribeClientErrorPassesThrough(t *testing.T) {
	wantErr := errors.New("upstream down")
	svc := New(&fakeClient{err: wantErr}, "scribe_v1", time.Minute)

	_, err := svc.Transcribe(context.Background(), strings.NewReader("audio"), "talk.mp3", "")
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected client error, got %v", err)
	}
}
