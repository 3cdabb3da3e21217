package llm

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	// DefaultAPIURL is the chat-completions provider base URL.
	DefaultAPIURL = "https://api.openai.com/v1"
	// DefaultModel is the model to use.
	DefaultModel = "gpt-4o"
	// DefaultMaxTokens bounds the response size.
	DefaultMaxTokens = 3000
	// DefaultTemperature is the sampling temperature.
	DefaultTemperature = 0.7
	// DefaultTimeout bounds a single request attempt.
	DefaultTimeout = 30 * time.Second
)

// Options configure a Client. Zero values select the defaults above.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int64
	Temperature float64
	Timeout     time.Duration
	Retry       RetryPolicy
	HTTPClient  *http.Client
	Logger      *zap.SugaredLogger
}

// Client calls an OpenAI-compatible chat-completions endpoint with a bearer token.
type Client struct {
	api         openai.Client
	model       string
	maxTokens   int64
	temperature float64
	timeout     time.Duration
	retry       RetryPolicy
	logger      *zap.SugaredLogger
}

// NewClient creates a new chat-completions client.
func NewClient(opts Options) (client *Client) {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.Temperature == 0 {
		opts.Temperature = DefaultTemperature
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Retry.Attempts == 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}

	requestOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithBaseURL(NormalizeBaseURL(opts.BaseURL)),
		option.WithHTTPClient(opts.HTTPClient),
		// Retries are owned by the RetryPolicy.
		option.WithMaxRetries(0),
	}

	client = &Client{
		api:         openai.NewClient(requestOpts...),
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		timeout:     opts.Timeout,
		retry:       opts.Retry,
		logger:      opts.Logger,
	}
	return client
}

// NormalizeBaseURL accepts either a base URL or a full chat-completions URL and
// returns the base URL with a trailing slash.
func NormalizeBaseURL(raw string) (base string) {
	base = strings.TrimSpace(raw)
	if base == "" {
		base = DefaultAPIURL
	}
	base = strings.TrimSuffix(strings.TrimSuffix(base, "/"), "/chat/completions")
	base += "/"
	return base
}

// Complete sends one system + user exchange asking for a JSON object and returns the
// message content. Transient failures are retried per the client's RetryPolicy.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (content string, err error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		MaxTokens:   openai.Int(c.maxTokens),
		Temperature: openai.Float(c.temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}

	policy := c.retry
	if policy.OnRetry == nil {
		policy.OnRetry = func(attempt uint, retryErr error) {
			c.logger.Warnw("retrying chat completion", "attempt", attempt+1, "error", retryErr)
		}
	}

	err = policy.Do(ctx, func() (attemptErr error) {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		var completion *openai.ChatCompletion
		completion, attemptErr = c.api.Chat.Completions.New(attemptCtx, params)
		if attemptErr != nil {
			attemptErr = classify(ctx, attemptErr)
			return attemptErr
		}

		if len(completion.Choices) == 0 {
			attemptErr = errors.New("no choices in chat completion response")
			return attemptErr
		}
		content = completion.Choices[0].Message.Content
		return attemptErr
	})
	if err != nil {
		err = errors.Wrap(err, "chat completion request failed")
		return content, err
	}

	return content, err
}

// classify marks 429, 5xx, per-attempt timeouts and network failures as transient.
// Cancellation of the caller's context is never retried.
func classify(ctx context.Context, err error) (classified error) {
	if ctx.Err() != nil {
		classified = err
		return classified
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if IsRetryableStatus(apiErr.StatusCode) {
			classified = &TransientError{StatusCode: apiErr.StatusCode, Cause: err}
			return classified
		}
		classified = errors.Wrapf(err, "API request failed with status %d", apiErr.StatusCode)
		return classified
	}

	classified = &TransientError{Cause: err}
	return classified
}
