package hf

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	defaultMaxAttempts      = 3
	defaultColdStartWait    = 25 * time.Second
	maxColdStartWait        = 60 * time.Second
	defaultRateLimitWait    = 25 * time.Second
	defaultTimeoutRetryWait = 10 * time.Second
)

// ErrAttemptsExhausted is returned once the retry budget for a single
// inference call runs out without a successful response.
var ErrAttemptsExhausted = errors.New("hf: retry budget exhausted")

type ObserverFunc func(model string, status int, duration time.Duration)

type RetryObserverFunc func(reason string)

type SleepFunc func(ctx context.Context, d time.Duration) error

type Option func(*Client)

// Client calls the HuggingFace Inference API. Transient failures
// (cold-starting models, rate limits, timeouts) are retried within a fixed
// attempt budget; invalid credentials and unknown statuses fail immediately.
type Client struct {
	baseURL       string
	token         string
	httpClient    *http.Client
	observer      ObserverFunc
	retryObserver RetryObserverFunc
	sleep         SleepFunc
	maxAttempts   int

	coldStartWait    time.Duration
	rateLimitWait    time.Duration
	timeoutRetryWait time.Duration
}

type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("inference request failed with status %d", e.StatusCode)
}

func WithObserver(observer ObserverFunc) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

func WithRetryObserver(observer RetryObserverFunc) Option {
	return func(c *Client) {
		c.retryObserver = observer
	}
}

// WithSleep replaces the blocking wait between retries, used by tests to
// observe backoff without sleeping for real.
func WithSleep(sleep SleepFunc) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

func New(baseURL, token string, httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		baseURL:          strings.TrimRight(baseURL, "/"),
		token:            strings.TrimSpace(token),
		httpClient:       httpClient,
		sleep:            sleepContext,
		maxAttempts:      defaultMaxAttempts,
		coldStartWait:    defaultColdStartWait,
		rateLimitWait:    defaultRateLimitWait,
		timeoutRetryWait: defaultTimeoutRetryWait,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

type summarizationParameters struct {
	MaxLength int  `json:"max_length"`
	MinLength int  `json:"min_length"`
	DoSample  bool `json:"do_sample"`
}

type summarizationRequest struct {
	Inputs     string                  `json:"inputs"`
	Parameters summarizationParameters `json:"parameters"`
}

type generationParameters struct {
	MaxNewTokens int  `json:"max_new_tokens"`
	DoSample     bool `json:"do_sample"`
}

type generationRequest struct {
	Inputs     string               `json:"inputs"`
	Parameters generationParameters `json:"parameters"`
}

// Summarize runs the dedicated summarization model. Decoding is greedy so the
// same input reproduces the same summary.
func (c *Client) Summarize(ctx context.Context, model, text string, maxLength, minLength int) (string, error) {
	body, err := c.post(ctx, model, summarizationRequest{
		Inputs: text,
		Parameters: summarizationParameters{
			MaxLength: maxLength,
			MinLength: minLength,
			DoSample:  false,
		},
	})
	if err != nil {
		return "", err
	}

	var parsed []struct {
		SummaryText string `json:"summary_text"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed) == 0 {
		return "", fmt.Errorf("invalid summarization response")
	}
	return strings.TrimSpace(parsed[0].SummaryText), nil
}

// Generate runs the general text-generation model and returns the generated
// string. The API responds with a list of objects keyed by generated_text or,
// rarely, a bare JSON string.
func (c *Client) Generate(ctx context.Context, model, prompt string, maxNewTokens int) (string, error) {
	body, err := c.post(ctx, model, generationRequest{
		Inputs: prompt,
		Parameters: generationParameters{
			MaxNewTokens: maxNewTokens,
			DoSample:     false,
		},
	})
	if err != nil {
		return "", err
	}

	var parsed []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed) > 0 {
		return strings.TrimSpace(parsed[0].GeneratedText), nil
	}

	var bare string
	if err := json.Unmarshal(body, &bare); err == nil {
		return strings.TrimSpace(bare), nil
	}
	return "", fmt.Errorf("invalid generation response")
}

// post runs one inference call through the retry loop. Attempts are bounded;
// 503 waits for the server-estimated load time, 429 waits a fixed delay,
// network timeouts retry once after a short pause. 401 and unexpected
// statuses give up immediately.
func (c *Client) post(ctx context.Context, model string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	url := c.baseURL + "/" + model

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		respBody, status, err := c.doOnce(ctx, url, model, body)
		if err != nil {
			if !isTimeout(err) {
				return nil, err
			}
			lastErr = err
			c.observeRetry("timeout")
			if attempt < c.maxAttempts {
				if werr := c.sleep(ctx, c.timeoutRetryWait); werr != nil {
					return nil, werr
				}
			}
			continue
		}

		switch status {
		case http.StatusOK:
			return respBody, nil
		case http.StatusServiceUnavailable:
			lastErr = &Error{StatusCode: status, Body: truncateBody(string(respBody))}
			c.observeRetry("cold_start")
			if attempt < c.maxAttempts {
				if werr := c.sleep(ctx, coldStartDelay(respBody, c.coldStartWait)); werr != nil {
					return nil, werr
				}
			}
		case http.StatusTooManyRequests:
			lastErr = &Error{StatusCode: status, Body: truncateBody(string(respBody))}
			c.observeRetry("rate_limited")
			if attempt < c.maxAttempts {
				if werr := c.sleep(ctx, c.rateLimitWait); werr != nil {
					return nil, werr
				}
			}
		case http.StatusUnauthorized:
			return nil, &Error{StatusCode: status, Body: truncateBody(string(respBody))}
		default:
			return nil, &Error{StatusCode: status, Body: truncateBody(string(respBody))}
		}
	}

	if lastErr == nil {
		lastErr = errors.New("no attempts made")
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, c.maxAttempts, lastErr)
}

func (c *Client) doOnce(ctx context.Context, url, model string, body []byte) ([]byte, int, error) {
	started := time.Now()
	statusCode := 0
	defer func() { c.observe(model, statusCode, time.Since(started)) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	statusCode = resp.StatusCode

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, statusCode, err
	}
	return respBody, statusCode, nil
}

func (c *Client) observe(model string, status int, duration time.Duration) {
	if c.observer != nil {
		c.observer(model, status, duration)
	}
}

func (c *Client) observeRetry(reason string) {
	if c.retryObserver != nil {
		c.retryObserver(reason)
	}
}

// coldStartDelay reads the server's estimated model load time from a 503
// body, falling back to the fixed default when absent or malformed. The wait
// is capped so a wildly large estimate cannot stall the pipeline.
func coldStartDelay(body []byte, fallback time.Duration) time.Duration {
	var parsed struct {
		EstimatedTime float64 `json:"estimated_time"`
	}
	delay := fallback
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.EstimatedTime > 0 {
		delay = time.Duration(parsed.EstimatedTime * float64(time.Second))
	}
	if delay > maxColdStartWait {
		delay = maxColdStartWait
	}
	return delay
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncateBody(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 4096 {
		return s
	}
	return s[:4096] + "..."
}
