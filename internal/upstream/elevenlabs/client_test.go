package elevenlabs

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTranscribeParsesResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/speech-to-text" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("xi-api-key"); got != "test-key" {
			t.Fatalf("unexpected api key header: %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()
		if r.FormValue("model_id") != "scribe_v1" {
			t.Fatalf("unexpected model_id: %q", r.FormValue("model_id"))
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("FormFile: %v", err)
		}
		defer func() { _ = file.Close() }()
		if header.Filename != "lecture.mp3" {
			t.Fatalf("unexpected filename: %q", header.Filename)
		}
		if got := header.Header.Get("Content-Type"); got != "audio/mpeg" {
			t.Fatalf("unexpected part content type: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text":" hello lecture ","language_code":"en"}`)
	}))
	defer ts.Close()

	c := New(ts.URL, "test-key", ts.Client())
	text, err := c.Transcribe(context.Background(), strings.NewReader("audio"), "lecture.mp3", "scribe_v1")
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if text != "hello lecture" {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestTranscribeWithoutCredential(t *testing.T) {
	c := New("http://example.com", "", nil)
	_, err := c.Transcribe(context.Background(), strings.NewReader("audio"), "a.wav", "scribe_v1")
	if !errors.Is(err, ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential, got %v", err)
	}
}

func TestTranscribeReturnsUpstreamError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "cannot decode audio", http.StatusUnprocessableEntity)
	}))
	defer ts.Close()

	c := New(ts.URL, "test-key", ts.Client())
	_, err := c.Transcribe(context.Background(), strings.NewReader("audio"), "a.wav", "scribe_v1")
	if err == nil {
		t.Fatal("expected error")
	}
	var upErr *Error
	if !errors.As(err, &upErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if upErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected status code: %d", upErr.StatusCode)
	}
	if upErr.Body != "cannot decode audio" {
		t.Fatalf("unexpected body: %q", upErr.Body)
	}
}

func TestMIMEType(t *testing.T) {
	cases := map[string]string{
		"a.mp3":  "audio/mpeg",
		"b.WAV":  "audio/wav",
		"c.webm": "audio/webm",
		"d.m4a":  "audio/mp4",
		"e.ogg":  "audio/ogg",
		"f.mp4":  "video/mp4",
		"g.bin":  "audio/mpeg",
	}
	for name, want := range cases {
		if got := MIMEType(name); got != want {
			t.Fatalf("MIMEType(%q) = %q, want %q", name, got, want)
		}
	}
}
