package llm

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"callqa/internal/logging"
	"callqa/internal/services"
)

const (
	// DefaultBaseURL is the Groq OpenAI-compatible completions endpoint.
	DefaultBaseURL = "https://api.groq.com/openai/v1/chat/completions"

	defaultHTTPTimeout    = 30 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryAttempts  = 5
)

// Config captures the runtime settings required to talk to the LLM.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// Client sends JSON chat completions with bounded retry.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger attaches a logger for retry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRetryMaxAttempts overrides the default attempt count (5).
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs an LLM client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			Referer:        strings.TrimSpace(cfg.Referer),
			Title:          strings.TrimSpace(cfg.Title),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient:       &http.Client{Timeout: timeout},
		logger:           logging.NewNop(),
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = DefaultBaseURL
	}
	return client
}

// Configured reports whether the client has an API key.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.APIKey != ""
}

// Model returns the configured model name.
func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.cfg.Model
}

// Request is one chat completion. Zero MaxTokens leaves the provider default.
type Request struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
	// Text disables the JSON response format.
	Text bool
}

// Complete issues req and returns the model's content.
func (c *Client) Complete(ctx context.Context, req Request, op string) (string, error) {
	system := strings.TrimSpace(req.System)
	user := strings.TrimSpace(req.User)
	if system == "" || user == "" {
		return "", services.Wrap(services.ErrValidation, "llm", op, "system and user prompts required", nil)
	}
	if !c.Configured() {
		return "", services.Wrap(services.ErrConfiguration, "llm", op, "api key required (set llm.api_key)", nil)
	}
	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if !req.Text {
		payload.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	content, err := c.completeWithRetry(ctx, payload, op)
	if err != nil {
		return "", classify(op, err)
	}
	return content, nil
}

// CompleteJSON issues a deterministic JSON-only completion.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.Complete(ctx, Request{System: systemPrompt, User: userPrompt}, "complete")
}

// HealthCheck issues a fast ping to verify the API key and model are usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	content, err := c.Complete(ctx, Request{
		System:    "You must respond with JSON only.",
		User:      `Respond with {"ok":true}`,
		MaxTokens: 16,
	}, "health")
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeLLMJSON(content, &parsed); err != nil {
		return services.Wrap(services.ErrExternalTool, "llm", "health", "parse payload", err)
	}
	if !parsed.OK {
		return services.Wrap(services.ErrExternalTool, "llm", "health", "unexpected response", nil)
	}
	return nil
}

func classify(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "llm", op, "deadline exceeded", err)
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnauthorized {
		return services.Wrap(services.ErrConfiguration, "llm", op, "provider rejected api key", err)
	}
	return services.Wrap(services.ErrExternalTool, "llm", op, "request failed", err)
}
