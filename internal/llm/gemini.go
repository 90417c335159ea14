package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"memcat/internal/costtracker"
	"memcat/pkg/categorizer"
)

// geminiRequest is one GenerateContent call, independent of the SDK client.
type geminiRequest struct {
	Model       string
	System      string
	History     []*genai.Content
	Prompt      []genai.Part
	JSON        bool
	Temperature float32
}

type geminiGenerateFunc func(ctx context.Context, req geminiRequest) (*genai.GenerateContentResponse, error)

// GeminiClient talks to the Google Gemini API.
type GeminiClient struct {
	client   *genai.Client
	model    string
	tracker  costtracker.Tracker
	generate geminiGenerateFunc
}

func NewGeminiClient(ctx context.Context, apiKey, model string, tracker costtracker.Tracker) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if tracker == nil {
		tracker = costtracker.Noop()
	}
	c := &GeminiClient{client: client, model: model, tracker: tracker}
	c.generate = c.sdkGenerate
	return c, nil
}

func (c *GeminiClient) Name() string  { return "gemini" }
func (c *GeminiClient) Model() string { return c.model }

func (c *GeminiClient) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *GeminiClient) sdkGenerate(ctx context.Context, req geminiRequest) (*genai.GenerateContentResponse, error) {
	model := c.client.GenerativeModel(req.Model)
	model.SetTemperature(req.Temperature)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if req.JSON {
		model.ResponseMIMEType = "application/json"
	}
	if len(req.History) == 0 {
		return model.GenerateContent(ctx, req.Prompt...)
	}
	cs := model.StartChat()
	cs.History = req.History
	return cs.SendMessage(ctx, req.Prompt...)
}

// buildGeminiRequest folds system messages into the system instruction and
// sends the last turn as the prompt with earlier turns as chat history.
func buildGeminiRequest(model string, messages []categorizer.Message, format categorizer.ResponseFormat, temperature float64) (geminiRequest, error) {
	req := geminiRequest{
		Model:       model,
		JSON:        format.Type == categorizer.JSONObject.Type,
		Temperature: float32(temperature),
	}
	var system []string
	var turns []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case categorizer.RoleSystem:
			system = append(system, m.Content)
		case categorizer.RoleAssistant:
			turns = append(turns, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(m.Content)}})
		default:
			turns = append(turns, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}})
		}
	}
	if len(turns) == 0 {
		return req, errors.New("gemini: no user message to send")
	}
	req.System = strings.Join(system, "\n\n")
	req.History = turns[:len(turns)-1]
	req.Prompt = turns[len(turns)-1].Parts
	return req, nil
}

// GenerateResponse implements categorizer.LLMClient.
func (c *GeminiClient) GenerateResponse(ctx context.Context, messages []categorizer.Message, format categorizer.ResponseFormat, temperature float64) (string, error) {
	req, err := buildGeminiRequest(c.model, messages, format, temperature)
	if err != nil {
		return "", err
	}
	resp, err := c.generate(ctx, req)
	if err != nil {
		return "", err
	}
	if resp.UsageMetadata != nil {
		recordUsage(ctx, c.tracker, c.Name(), c.model,
			int(resp.UsageMetadata.PromptTokenCount), int(resp.UsageMetadata.CandidatesTokenCount))
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini: no candidates returned")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}
