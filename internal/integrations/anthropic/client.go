package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"pdf-chat-relay/internal/domain"
)

const defaultBaseURL = "https://api.anthropic.com"

// KeySource yields the API key sent as x-api-key.
type KeySource interface {
	APIKey(ctx context.Context) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses.
type HTTPStatusError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("anthropic: unexpected status %d: %s", e.StatusCode, e.Message)
}

func (e *HTTPStatusError) Unwrap() error {
	return e.Err
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client calls the Anthropic Messages API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	keys       KeySource
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(keys KeySource, opts ...Option) (*Client, error) {
	if keys == nil {
		return nil, errors.New("anthropic: key source must not be nil")
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{},
		keys:       keys,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// apiBaseURL returns the root the SDK appends "v1/messages" to, so a
// configured ".../v1" suffix is dropped.
func apiBaseURL(baseURL string) string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	base = strings.TrimSuffix(base, "/v1")
	if base == "" {
		base = defaultBaseURL
	}
	return base + "/"
}

// Complete sends the conversation to the Messages endpoint. System messages
// are lifted into the top-level system field; the reply is the concatenation
// of the returned text blocks.
func (c *Client) Complete(ctx context.Context, messages []domain.ChatMessage, cfg domain.ModelConfig) (string, error) {
	if cfg.Model == "" {
		return "", errors.New("anthropic: model must not be empty")
	}
	if cfg.MaxTokens <= 0 {
		return "", errors.New("anthropic: max tokens must be positive")
	}

	apiKey, err := c.keys.APIKey(ctx)
	if err != nil {
		return "", fmt.Errorf("anthropic: resolve api key: %w", err)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(apiBaseURL(c.baseURL)),
		option.WithMaxRetries(0),
	}
	if c.httpClient != nil {
		opts = append(opts, option.WithHTTPClient(c.httpClient))
	}
	client := sdk.NewClient(opts...)

	system, turns := splitSystem(messages)
	params := sdk.MessageNewParams{
		Model:       sdk.Model(cfg.Model),
		MaxTokens:   int64(cfg.MaxTokens),
		Messages:    turns,
		Temperature: sdk.Float(cfg.Temperature),
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}

	msg, err := client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic: create message: %w", statusError(err))
	}

	var sb strings.Builder
	found := false
	for _, block := range msg.Content {
		if block.Type != "text" {
			continue
		}
		sb.WriteString(block.Text)
		found = true
	}
	if !found {
		return "", errors.New("anthropic: no text content in response")
	}
	return sb.String(), nil
}

func splitSystem(messages []domain.ChatMessage) (string, []sdk.MessageParam) {
	var system []string
	turns := make([]sdk.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			system = append(system, m.Content)
		case domain.RoleAssistant:
			turns = append(turns, sdk.NewAssistantMessage(sdk.NewTextBlock(m.Content)))
		default:
			turns = append(turns, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		}
	}
	return strings.Join(system, "\n\n"), turns
}

// statusError turns SDK API errors into *HTTPStatusError and passes every
// other error through.
func statusError(err error) error {
	var apiErr *sdk.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	return &HTTPStatusError{
		StatusCode: apiErr.StatusCode,
		Message:    errorMessage(apiErr),
		Err:        err,
	}
}

// errorMessage reads error.message from the response body, falling back to
// the trimmed body and then the status text.
func errorMessage(apiErr *sdk.Error) string {
	if apiErr.Response != nil && apiErr.Response.Body != nil {
		buf, _ := io.ReadAll(io.LimitReader(apiErr.Response.Body, 4096))
		var payload struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(buf, &payload) == nil && payload.Error.Message != "" {
			return payload.Error.Message
		}
		if msg := strings.TrimSpace(string(buf)); msg != "" {
			return msg
		}
	}
	return http.StatusText(apiErr.StatusCode)
}
