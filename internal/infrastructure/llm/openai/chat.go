package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/junhyuk-dev/fortune-rag/internal/core/ports"
)

// ChatModel runs chat completions against the shared client.
type ChatModel struct {
	client *Client
}

func NewChatModel(client *Client) *ChatModel {
	return &ChatModel{client: client}
}

func (m *ChatModel) Complete(ctx context.Context, messages []ports.ChatMessage, opts ports.ChatOptions) (string, error) {
	req := m.buildRequest(messages, opts)
	resp, err := m.client.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream reads delta content until the model finishes or fn rejects a chunk.
// A canceled context stops reading at the next chunk boundary.
func (m *ChatModel) Stream(ctx context.Context, messages []ports.ChatMessage, opts ports.ChatOptions, fn func(delta string) error) error {
	req := m.buildRequest(messages, opts)
	req.Stream = true

	stream, err := m.client.api.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return fmt.Errorf("open chat stream: %w", err)
	}
	defer stream.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read chat stream: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		if err := fn(delta); err != nil {
			return err
		}
	}
}

func (m *ChatModel) buildRequest(messages []ports.ChatMessage, opts ports.ChatOptions) openai.ChatCompletionRequest {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = m.client.chatModel
	}

	out := openai.ChatCompletionRequest{
		Model:       model,
		Temperature: opts.Temperature,
	}
	if opts.MaxTokens > 0 {
		out.MaxTokens = opts.MaxTokens
	}
	if opts.JSONMode {
		out.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	out.Messages = make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		out.Messages = append(out.Messages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	return out
}
