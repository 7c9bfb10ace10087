package hf

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type recordedSleeps struct {
	durations []time.Duration
}

func (r *recordedSleeps) sleep(_ context.Context, d time.Duration) error {
	r.durations = append(r.durations, d)
	return nil
}

func TestSummarizeParsesResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/facebook/bart-large-cnn" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Fatalf("unexpected auth header: %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"inputs":"lecture text","parameters":{"max_length":180,"min_length":40,"do_sample":false}}` {
			t.Fatalf("unexpected payload: %s", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"summary_text":" A summary. "}]`)
	}))
	defer ts.Close()

	c := New(ts.URL, "test-token", ts.Client())
	got, err := c.Summarize(context.Background(), "facebook/bart-large-cnn", "lecture text", 180, 40)
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if got != "A summary." {
		t.Fatalf("unexpected summary: %q", got)
	}
}

func TestGenerateParsesListResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"inputs":"prompt","parameters":{"max_new_tokens":150,"do_sample":false}}` {
			t.Fatalf("unexpected payload: %s", body)
		}
		_, _ = io.WriteString(w, `[{"generated_text":"generated output"}]`)
	}))
	defer ts.Close()

	c := New(ts.URL, "test-token", ts.Client())
	got, err := c.Generate(context.Background(), "google/flan-t5-large", "prompt", 150)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "generated output" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestGenerateParsesBareStringResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `"bare string output"`)
	}))
	defer ts.Close()

	c := New(ts.URL, "test-token", ts.Client())
	got, err := c.Generate(context.Background(), "google/flan-t5-large", "prompt", 150)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "bare string output" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestColdStartWaitsEstimatedTimeThenRetries(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, `{"estimated_time": 5}`)
			return
		}
		_, _ = io.WriteString(w, `[{"generated_text":"ready"}]`)
	}))
	defer ts.Close()

	sleeps := &recordedSleeps{}
	c := New(ts.URL, "test-token", ts.Client(), WithSleep(sleeps.sleep))
	got, err := c.Generate(context.Background(), "m", "prompt", 50)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "ready" {
		t.Fatalf("unexpected output: %q", got)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
	if len(sleeps.durations) != 1 || sleeps.durations[0] != 5*time.Second {
		t.Fatalf("unexpected sleeps: %v", sleeps.durations)
	}
}

func TestColdStartWaitFallsBackOnMalformedBody(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, `not json`)
			return
		}
		_, _ = io.WriteString(w, `[{"generated_text":"ready"}]`)
	}))
	defer ts.Close()

	sleeps := &recordedSleeps{}
	c := New(ts.URL, "test-token", ts.Client(), WithSleep(sleeps.sleep))
	if _, err := c.Generate(context.Background(), "m", "prompt", 50); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(sleeps.durations) != 1 || sleeps.durations[0] != 25*time.Second {
		t.Fatalf("unexpected sleeps: %v", sleeps.durations)
	}
}

func TestColdStartWaitIsCapped(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"estimated_time": 500}`)
	}))
	defer ts.Close()

	sleeps := &recordedSleeps{}
	c := New(ts.URL, "test-token", ts.Client(), WithSleep(sleeps.sleep))
	if _, err := c.Generate(context.Background(), "m", "prompt", 50); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	for _, d := range sleeps.durations {
		if d != 60*time.Second {
			t.Fatalf("wait not capped: %v", d)
		}
	}
}

func TestUnauthorizedAbortsImmediately(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"invalid token"}`)
	}))
	defer ts.Close()

	sleeps := &recordedSleeps{}
	c := New(ts.URL, "bad-token", ts.Client(), WithSleep(sleeps.sleep))
	_, err := c.Generate(context.Background(), "m", "prompt", 50)
	if err == nil {
		t.Fatal("expected error")
	}
	var upErr *Error
	if !errors.As(err, &upErr) || upErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("401 must not be retried, got %d attempts", calls.Load())
	}
	if len(sleeps.durations) != 0 {
		t.Fatalf("401 must not wait, slept %v", sleeps.durations)
	}
}

func TestPersistentColdStartExhaustsBudget(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"estimated_time": 1}`)
	}))
	defer ts.Close()

	sleeps := &recordedSleeps{}
	c := New(ts.URL, "test-token", ts.Client(), WithSleep(sleeps.sleep))
	_, err := c.Generate(context.Background(), "m", "prompt", 50)
	if !errors.Is(err, ErrAttemptsExhausted) {
		t.Fatalf("expected ErrAttemptsExhausted, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestRateLimitedWaitsFixedDelay(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, `[{"generated_text":"ok"}]`)
	}))
	defer ts.Close()

	sleeps := &recordedSleeps{}
	retries := []string{}
	c := New(ts.URL, "test-token", ts.Client(),
		WithSleep(sleeps.sleep),
		WithRetryObserver(func(reason string) { retries = append(retries, reason) }),
	)
	if _, err := c.Generate(context.Background(), "m", "prompt", 50); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(sleeps.durations) != 1 || sleeps.durations[0] != 25*time.Second {
		t.Fatalf("unexpected sleeps: %v", sleeps.durations)
	}
	if len(retries) != 1 || retries[0] != "rate_limited" {
		t.Fatalf("unexpected retry reasons: %v", retries)
	}
}

func TestUnexpectedStatusGivesUp(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"input too long"}`)
	}))
	defer ts.Close()

	c := New(ts.URL, "test-token", ts.Client(), WithSleep((&recordedSleeps{}).sleep))
	_, err := c.Generate(context.Background(), "m", "prompt", 50)
	var upErr *Error
	if !errors.As(err, &upErr) || upErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 error, got %v", err)
	}
	if upErr.Body != `{"error":"input too long"}` {
		t.Fatalf("unexpected body: %q", upErr.Body)
	}
	if calls.Load() != 1 {
		t.Fatalf("unexpected statuses must not be retried, got %d attempts", calls.Load())
	}
}

func TestTimeoutRetriesAfterShortDelay(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			time.Sleep(200 * time.Millisecond)
		}
		_, _ = io.WriteString(w, `[{"generated_text":"ok"}]`)
	}))
	defer ts.Close()

	httpClient := ts.Client()
	httpClient.Timeout = 50 * time.Millisecond

	sleeps := &recordedSleeps{}
	c := New(ts.URL, "test-token", httpClient, WithSleep(sleeps.sleep))
	got, err := c.Generate(context.Background(), "m", "prompt", 50)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "ok" {
		t.Fatalf("unexpected output: %q", got)
	}
	if len(sleeps.durations) != 1 || sleeps.durations[0] != 10*time.Second {
		t.Fatalf("unexpected sleeps: %v", sleeps.durations)
	}
}
