// Package llm wraps the chat-completion service behind a single-attempt
// gateway with an explicit deadline and classified failures.
package llm

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// ErrKind distinguishes completion failures so the pipeline can switch on
// kind instead of matching error text.
type ErrKind int

const (
	// ErrKindNone means the error is nil or not a gateway error.
	ErrKindNone ErrKind = iota
	// ErrKindTimeout covers deadline expiry and transport timeouts.
	ErrKindTimeout
	// ErrKindFailure covers all other completion failures.
	ErrKindFailure
)

// Error is a classified completion failure.
type Error struct {
	Kind ErrKind
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the classification of err.
func KindOf(err error) ErrKind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return ErrKindNone
}

// Config holds the completion gateway configuration.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// DefaultConfig returns the default configuration. Groq exposes an
// OpenAI-compatible API, so only the base URL differs from stock OpenAI.
func DefaultConfig() *Config {
	return &Config{
		BaseURL: "https://api.groq.com/openai/v1",
		Model:   "llama-3.3-70b-versatile",
		Timeout: 30 * time.Second,
	}
}

// Completer produces one assistant reply for a message history.
type Completer interface {
	Complete(ctx context.Context, history []Message, userText string) (string, error)
	Model() string
}

type chatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Gateway implements Completer on top of an OpenAI-compatible endpoint.
// One attempt per invocation; the caller decides what substitutes on failure.
type Gateway struct {
	client chatClient
	config *Config
}

// Model-specific knobs, not user-controlled.
const (
	completionTemperature = 1.0
	completionMaxTokens   = 1024
)

// NewGateway creates a completion gateway.
func NewGateway(cfg *Config) *Gateway {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "llama-3.3-70b-versatile"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = cfg.BaseURL

	return &Gateway{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}
}

// NewGatewayWithClient creates a gateway with an injected client, for tests.
func NewGatewayWithClient(cfg *Config, client chatClient) *Gateway {
	g := NewGateway(cfg)
	g.client = client
	return g
}

// Model returns the configured model identifier.
func (g *Gateway) Model() string {
	return g.config.Model
}

// Complete appends userText to history and requests one completion.
// Returns non-empty reply text or a classified *Error; never both.
func (g *Gateway) Complete(ctx context.Context, history []Message, userText string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: RoleUser, Content: userText})

	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.config.Model,
		Messages:    messages,
		Temperature: completionTemperature,
		MaxTokens:   completionMaxTokens,
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Kind: ErrKindFailure, Err: errors.New("empty chat response")}
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", &Error{Kind: ErrKindFailure, Err: errors.New("blank reply from model")}
	}
	return reply, nil
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: ErrKindTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: ErrKindTimeout, Err: err}
	}
	return &Error{Kind: ErrKindFailure, Err: err}
}
