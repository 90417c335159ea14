package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"

	"memcat/internal/costtracker"
	"memcat/pkg/categorizer"
)

// messageCreator is the part of anthropic.MessageService the adapter uses.
type messageCreator interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...anthropicoption.RequestOption) (*anthropic.Message, error)
}

// AnthropicClient talks to the Anthropic Messages API. The API has no JSON
// response mode; the categorizer's extraction pass copes with prose.
type AnthropicClient struct {
	messages  messageCreator
	model     string
	maxTokens int64
	tracker   costtracker.Tracker
}

func NewAnthropicClient(apiKey, baseURL, model string, maxTokens int, tracker costtracker.Tracker) *AnthropicClient {
	opts := []anthropicoption.RequestOption{anthropicoption.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, anthropicoption.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(opts...)
	if tracker == nil {
		tracker = costtracker.Noop()
	}
	if maxTokens <= 0 {
		maxTokens = 512
	}
	return &AnthropicClient{messages: &client.Messages, model: model, maxTokens: int64(maxTokens), tracker: tracker}
}

func (c *AnthropicClient) Name() string  { return "anthropic" }
func (c *AnthropicClient) Model() string { return c.model }

func buildAnthropicParams(model string, maxTokens int64, messages []categorizer.Message, temperature float64) (anthropic.MessageNewParams, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(temperature),
	}
	for _, m := range messages {
		switch m.Role {
		case categorizer.RoleSystem:
			params.System = append(params.System, anthropic.TextBlockParam{Text: m.Content})
		case categorizer.RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if len(params.Messages) == 0 {
		return params, errors.New("anthropic: no user message to send")
	}
	return params, nil
}

// GenerateResponse implements categorizer.LLMClient.
func (c *AnthropicClient) GenerateResponse(ctx context.Context, messages []categorizer.Message, _ categorizer.ResponseFormat, temperature float64) (string, error) {
	params, err := buildAnthropicParams(c.model, c.maxTokens, messages, temperature)
	if err != nil {
		return "", err
	}
	resp, err := c.messages.New(ctx, params)
	if err != nil {
		return "", err
	}
	recordUsage(ctx, c.tracker, c.Name(), c.model, int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens))

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}
