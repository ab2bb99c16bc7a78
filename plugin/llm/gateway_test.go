package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatClient struct {
	resp openai.ChatCompletionResponse
	err  error

	gotRequest openai.ChatCompletionRequest
	delay      time.Duration
}

func (f *fakeChatClient) CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.gotRequest = request
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return openai.ChatCompletionResponse{}, ctx.Err()
		}
	}
	return f.resp, f.err
}

func chatResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: RoleAssistant, Content: content}},
		},
	}
}

func TestGatewayComplete(t *testing.T) {
	t.Run("AppendsUserTurnAndFixedKnobs", func(t *testing.T) {
		client := &fakeChatClient{resp: chatResponse("Hi there")}
		gw := NewGatewayWithClient(nil, client)

		history := []Message{SystemMessage("persona"), UserMessage("earlier"), AssistantMessage("reply")}
		reply, err := gw.Complete(context.Background(), history, "hello")
		require.NoError(t, err)
		assert.Equal(t, "Hi there", reply)

		req := client.gotRequest
		require.Len(t, req.Messages, 4)
		assert.Equal(t, RoleUser, req.Messages[3].Role)
		assert.Equal(t, "hello", req.Messages[3].Content)
		assert.Equal(t, "llama-3.3-70b-versatile", req.Model)
		assert.InDelta(t, 1.0, float64(req.Temperature), 0.0001)
		assert.Equal(t, 1024, req.MaxTokens)
	})

	t.Run("TrimsReply", func(t *testing.T) {
		client := &fakeChatClient{resp: chatResponse("  spaced out  \n")}
		gw := NewGatewayWithClient(nil, client)

		reply, err := gw.Complete(context.Background(), nil, "hi")
		require.NoError(t, err)
		assert.Equal(t, "spaced out", reply)
	})

	t.Run("BlankReplyIsFailure", func(t *testing.T) {
		client := &fakeChatClient{resp: chatResponse("   ")}
		gw := NewGatewayWithClient(nil, client)

		_, err := gw.Complete(context.Background(), nil, "hi")
		require.Error(t, err)
		assert.Equal(t, ErrKindFailure, KindOf(err))
	})

	t.Run("EmptyChoicesIsFailure", func(t *testing.T) {
		client := &fakeChatClient{resp: openai.ChatCompletionResponse{}}
		gw := NewGatewayWithClient(nil, client)

		_, err := gw.Complete(context.Background(), nil, "hi")
		require.Error(t, err)
		assert.Equal(t, ErrKindFailure, KindOf(err))
	})

	t.Run("DeadlineExpiryIsTimeout", func(t *testing.T) {
		client := &fakeChatClient{resp: chatResponse("late"), delay: time.Second}
		gw := NewGatewayWithClient(&Config{Timeout: 20 * time.Millisecond}, client)

		_, err := gw.Complete(context.Background(), nil, "hi")
		require.Error(t, err)
		assert.Equal(t, ErrKindTimeout, KindOf(err))
	})

	t.Run("TransportErrorIsFailure", func(t *testing.T) {
		client := &fakeChatClient{err: errors.New("connection refused")}
		gw := NewGatewayWithClient(nil, client)

		_, err := gw.Complete(context.Background(), nil, "hi")
		require.Error(t, err)
		assert.Equal(t, ErrKindFailure, KindOf(err))
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, ErrKindNone, KindOf(nil))
	assert.Equal(t, ErrKindNone, KindOf(errors.New("plain")))
	assert.Equal(t, ErrKindTimeout, KindOf(&Error{Kind: ErrKindTimeout, Err: context.DeadlineExceeded}))
}
