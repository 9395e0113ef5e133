// Package llm provides a client for interacting with Large Language Models.
package llm

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sashabaranov/go-openai"
)

// Message roles understood by the chat completions API.
const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

// ErrEmptyResponse is returned when the API answers without any choice.
var ErrEmptyResponse = errors.New("chat api returned no choices")

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationParams 控制生成行为
type GenerationParams struct {
	Temperature *float64
	MaxTokens   *int
}

// Client defines the interface for an LLM client.
type Client interface {
	// ChatMessages sends role-based messages and returns the first choice's content.
	ChatMessages(ctx context.Context, messages []Message, gen *GenerationParams) (string, error)
}

// Config holds the credentials and model used by the client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

type openAIClient struct {
	client *openai.Client
	model  string
}

// NewClient creates a chat client. Credentials are bound to the returned client only.
func NewClient(cfg Config) Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &openAIClient{
		client: openai.NewClientWithConfig(oc),
		model:  cfg.Model,
	}
}

func (c *openAIClient) ChatMessages(ctx context.Context, messages []Message, gen *GenerationParams) (string, error) {
	oaMsgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		oaMsgs = append(oaMsgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: oaMsgs,
	}
	if gen != nil {
		if gen.Temperature != nil {
			req.Temperature = float32(*gen.Temperature)
			// go-openai 会省略零值 temperature，用最小正数表示显式的 0
			if req.Temperature == 0 {
				req.Temperature = math.SmallestNonzeroFloat32
			}
		}
		if gen.MaxTokens != nil {
			req.MaxTokens = *gen.MaxTokens
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}
