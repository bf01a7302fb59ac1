package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/Taichi-iskw/talk-subtitles/internal/errors"
)

const (
	defaultChatURL        = "https://api.openai.com/v1/chat/completions"
	defaultChatModel      = "gpt-4o-mini"
	defaultHTTPTimeout    = 120 * time.Second
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
)

// ChatConfig captures the settings of an OpenAI-compatible chat completions endpoint
type ChatConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// ChatGenerator calls a chat completions API
type ChatGenerator struct {
	cfg        ChatConfig
	httpClient *http.Client

	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	sleeper        func(time.Duration)
}

// ChatOption customizes the generator
type ChatOption func(*ChatGenerator)

// WithHTTPClient overrides the default HTTP client
func WithHTTPClient(client *http.Client) ChatOption {
	return func(g *ChatGenerator) {
		if client != nil {
			g.httpClient = client
		}
	}
}

// WithRetry overrides attempt count and backoff delays
func WithRetry(attempts int, baseDelay, maxDelay time.Duration) ChatOption {
	return func(g *ChatGenerator) {
		g.retryAttempts = attempts
		g.retryBaseDelay = baseDelay
		g.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed
func WithSleeper(sleeper func(time.Duration)) ChatOption {
	return func(g *ChatGenerator) {
		g.sleeper = sleeper
	}
}

// NewChatGenerator creates a generator for an OpenAI-compatible endpoint
func NewChatGenerator(cfg ChatConfig, opts ...ChatOption) *ChatGenerator {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	g := &ChatGenerator{
		cfg: ChatConfig{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient:     &http.Client{Timeout: timeout},
		retryAttempts:  defaultRetryAttempts,
		retryBaseDelay: defaultRetryBaseDelay,
		retryMaxDelay:  defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.cfg.BaseURL == "" {
		g.cfg.BaseURL = defaultChatURL
	}
	if g.cfg.Model == "" {
		g.cfg.Model = defaultChatModel
	}
	return g
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("chat request: http %d: %s", e.StatusCode, e.Body)
}

type emptyContentError struct {
	FinishReason string
}

func (e *emptyContentError) Error() string {
	return fmt.Sprintf("chat request: empty content (finish_reason=%q)", e.FinishReason)
}

type malformedError struct {
	err error
}

func (e *malformedError) Error() string { return "chat request: decode response: " + e.err.Error() }
func (e *malformedError) Unwrap() error { return e.err }

// Generate sends the prompt as the single user message
func (g *ChatGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.cfg.APIKey == "" {
		return "", apperrors.New(apperrors.CodeConfiguration, "translation api key is not configured")
	}

	payload := chatRequest{
		Model:    g.cfg.Model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	}

	attempts := g.retryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		content, err := g.sendOnce(ctx, payload)
		if err == nil {
			return content, nil
		}
		lastErr = err

		delay, retry := g.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			break
		}
		if err := g.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}
	return "", classify(lastErr)
}

func (g *ChatGenerator) sendOnce(ctx context.Context, payload chatRequest) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("chat request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("chat request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: http error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("chat request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var completion chatResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", &malformedError{err: err}
	}
	if completion.Error != nil {
		return "", &malformedError{err: errors.New(strings.TrimSpace(completion.Error.Message))}
	}
	if len(completion.Choices) == 0 {
		return "", &malformedError{err: errors.New("no choices")}
	}

	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return "", &emptyContentError{FinishReason: completion.Choices[0].FinishReason}
	}
	return content, nil
}

func (g *ChatGenerator) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var emptyErr *emptyContentError
	if errors.As(err, &emptyErr) {
		return g.backoffDelay(attempt), true
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			if statusErr.RetryAfter > 0 {
				return min(statusErr.RetryAfter, g.retryMaxDelay), true
			}
			return g.backoffDelay(attempt), true
		default:
			return 0, false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return g.backoffDelay(attempt), true
	}
	return 0, false
}

// backoffDelay doubles from the base delay: attempt 1 -> base, 2 -> base*2, ...
func (g *ChatGenerator) backoffDelay(attempt int) time.Duration {
	if g.retryBaseDelay <= 0 {
		return 0
	}
	delay := g.retryBaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if g.retryMaxDelay > 0 && delay >= g.retryMaxDelay {
			return g.retryMaxDelay
		}
	}
	return delay
}

func (g *ChatGenerator) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if g.sleeper != nil {
		g.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// classify maps the last attempt's failure onto the error taxonomy
func classify(err error) error {
	var emptyErr *emptyContentError
	if errors.As(err, &emptyErr) {
		return apperrors.Wrap(err, apperrors.CodeEmptyResult, "translation service returned no content")
	}
	var badErr *malformedError
	if errors.As(err, &badErr) {
		return apperrors.Wrap(err, apperrors.CodeMalformed, "translation service returned an unreadable response")
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden {
			return apperrors.Wrap(err, apperrors.CodeConfiguration, "translation service rejected the credentials")
		}
	}
	return apperrors.Wrap(err, apperrors.CodeTransport, "translation service request failed")
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if delay := time.Until(when); delay > 0 {
			return delay
		}
	}
	return 0
}
