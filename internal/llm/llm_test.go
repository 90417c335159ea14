package llm

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/generative-ai-go/genai"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memcat/internal/config"
	"memcat/internal/costtracker"
	"memcat/pkg/categorizer"
)

var testMessages = []categorizer.Message{
	{Role: categorizer.RoleSystem, Content: "categorize"},
	{Role: categorizer.RoleUser, Content: "I run every morning"},
}

type recordingTracker struct {
	mu     sync.Mutex
	usages []costtracker.Usage
}

func (r *recordingTracker) Record(_ context.Context, u costtracker.Usage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usages = append(r.usages, u)
	return nil
}

// --- OpenAI ---

type fakeCompleter struct {
	req  openai.ChatCompletionRequest
	resp openai.ChatCompletionResponse
	err  error
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.req = req
	return f.resp, f.err
}

func TestOpenAIClient_GenerateResponse(t *testing.T) {
	fake := &fakeCompleter{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: `{"categories":["health"]}`}}},
		Usage:   openai.Usage{PromptTokens: 42, CompletionTokens: 7},
	}}
	tracker := &recordingTracker{}
	c := &OpenAIClient{client: fake, model: "gpt-4o-mini", tracker: tracker}

	out, err := c.GenerateResponse(context.Background(), testMessages, categorizer.JSONObject, 0)
	require.NoError(t, err)
	assert.Equal(t, `{"categories":["health"]}`, out)

	assert.Equal(t, "gpt-4o-mini", fake.req.Model)
	require.Len(t, fake.req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, fake.req.Messages[0].Role)
	assert.Equal(t, "I run every morning", fake.req.Messages[1].Content)
	require.NotNil(t, fake.req.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, fake.req.ResponseFormat.Type)
	assert.Equal(t, float32(math.SmallestNonzeroFloat32), fake.req.Temperature, "zero temperature is still sent")

	require.Len(t, tracker.usages, 1)
	assert.Equal(t, costtracker.Usage{Provider: "openai", Model: "gpt-4o-mini", Operation: "categorization", InputTokens: 42, OutputTokens: 7}, tracker.usages[0])
}

func TestOpenAIClient_Errors(t *testing.T) {
	c := &OpenAIClient{client: &fakeCompleter{err: errors.New("429 rate limited")}, model: "m", tracker: costtracker.Noop()}
	_, err := c.GenerateResponse(context.Background(), testMessages, categorizer.JSONObject, 0)
	assert.ErrorContains(t, err, "429")

	c.client = &fakeCompleter{}
	_, err = c.GenerateResponse(context.Background(), testMessages, categorizer.JSONObject, 0)
	assert.ErrorContains(t, err, "no completion choices")
}

func TestNewOpenAIClient(t *testing.T) {
	c := NewOpenAIClient("sk-test", "http://localhost:11434/v1", "llama3", nil)
	assert.Equal(t, "openai", c.Name())
	assert.Equal(t, "llama3", c.Model())
	assert.NotNil(t, c.tracker)
}

// --- Gemini ---

func TestBuildGeminiRequest(t *testing.T) {
	msgs := []categorizer.Message{
		{Role: categorizer.RoleSystem, Content: "one"},
		{Role: categorizer.RoleSystem, Content: "two"},
		{Role: categorizer.RoleUser, Content: "earlier"},
		{Role: categorizer.RoleAssistant, Content: "reply"},
		{Role: categorizer.RoleUser, Content: "latest"},
	}
	req, err := buildGeminiRequest("gemini-1.5-flash", msgs, categorizer.JSONObject, 0.5)
	require.NoError(t, err)

	assert.Equal(t, "one\n\ntwo", req.System)
	assert.True(t, req.JSON)
	assert.Equal(t, float32(0.5), req.Temperature)
	require.Len(t, req.History, 2)
	assert.Equal(t, "model", req.History[1].Role)
	assert.Equal(t, []genai.Part{genai.Text("latest")}, req.Prompt)

	_, err = buildGeminiRequest("m", msgs[:2], categorizer.JSONObject, 0)
	assert.Error(t, err)
}

func TestGeminiClient_GenerateResponse(t *testing.T) {
	tracker := &recordingTracker{}
	var got geminiRequest
	c := &GeminiClient{model: "gemini-1.5-flash", tracker: tracker}
	c.generate = func(_ context.Context, req geminiRequest) (*genai.GenerateContentResponse, error) {
		got = req
		return &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []genai.Part{
				genai.Text(`{"categories": `), genai.Text(`["health"]}`),
			}}}},
			UsageMetadata: &genai.UsageMetadata{PromptTokenCount: 30, CandidatesTokenCount: 6},
		}, nil
	}

	out, err := c.GenerateResponse(context.Background(), testMessages, categorizer.JSONObject, 0)
	require.NoError(t, err)
	assert.Equal(t, `{"categories": ["health"]}`, out)
	assert.Equal(t, "categorize", got.System)
	assert.Empty(t, got.History)
	require.Len(t, tracker.usages, 1)
	assert.Equal(t, 30, tracker.usages[0].InputTokens)
	assert.Equal(t, "gemini", tracker.usages[0].Provider)
}

func TestGeminiClient_NoCandidates(t *testing.T) {
	c := &GeminiClient{model: "m", tracker: costtracker.Noop()}
	c.generate = func(context.Context, geminiRequest) (*genai.GenerateContentResponse, error) {
		return &genai.GenerateContentResponse{}, nil
	}
	_, err := c.GenerateResponse(context.Background(), testMessages, categorizer.JSONObject, 0)
	assert.ErrorContains(t, err, "no candidates")
}

// --- Anthropic ---

type fakeMessages struct {
	params anthropic.MessageNewParams
	resp   *anthropic.Message
	err    error
}

func (f *fakeMessages) New(_ context.Context, body anthropic.MessageNewParams, _ ...anthropicoption.RequestOption) (*anthropic.Message, error) {
	f.params = body
	return f.resp, f.err
}

func TestAnthropicClient_GenerateResponse(t *testing.T) {
	fake := &fakeMessages{resp: &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: `Here you go: {"categories": ["health"]}`},
		},
		Usage: anthropic.Usage{InputTokens: 20, OutputTokens: 9},
	}}
	tracker := &recordingTracker{}
	c := &AnthropicClient{messages: fake, model: "claude-3-5-haiku-latest", maxTokens: 256, tracker: tracker}

	out, err := c.GenerateResponse(context.Background(), testMessages, categorizer.JSONObject, 0)
	require.NoError(t, err)
	assert.Equal(t, `Here you go: {"categories": ["health"]}`, out)

	assert.Equal(t, anthropic.Model("claude-3-5-haiku-latest"), fake.params.Model)
	assert.Equal(t, int64(256), fake.params.MaxTokens)
	require.Len(t, fake.params.System, 1)
	assert.Equal(t, "categorize", fake.params.System[0].Text)
	require.Len(t, fake.params.Messages, 1)
	assert.Equal(t, anthropic.MessageParamRoleUser, fake.params.Messages[0].Role)
	assert.Equal(t, 0.0, fake.params.Temperature.Value)

	require.Len(t, tracker.usages, 1)
	assert.Equal(t, 9, tracker.usages[0].OutputTokens)
}

func TestAnthropicClient_RequiresUserMessage(t *testing.T) {
	c := &AnthropicClient{messages: &fakeMessages{}, model: "m", maxTokens: 1, tracker: costtracker.Noop()}
	_, err := c.GenerateResponse(context.Background(), testMessages[:1], categorizer.JSONObject, 0)
	assert.Error(t, err)
}

// --- Provider ---

type stubClient struct{ name string }

func (s *stubClient) GenerateResponse(context.Context, []categorizer.Message, categorizer.ResponseFormat, float64) (string, error) {
	return `{"categories": []}`, nil
}
func (s *stubClient) Name() string  { return s.name }
func (s *stubClient) Model() string { return "stub" }

func TestProvider_LazyAndCached(t *testing.T) {
	var builds atomic.Int32
	build := func(context.Context, config.CategorizationConfig, costtracker.Tracker) (Client, error) {
		builds.Add(1)
		return &stubClient{name: "openai"}, nil
	}
	p := NewProvider(config.CategorizationConfig{Provider: config.ProviderOpenAI, OpenaiApiKey: "sk"}, nil, build)
	assert.Zero(t, builds.Load(), "nothing is built before first use")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NotNil(t, p.MemoryClient(context.Background()))
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), builds.Load())

	p.Reset()
	assert.NotNil(t, p.Factory()(context.Background()))
	assert.Equal(t, int32(2), builds.Load())
}

func TestProvider_Disabled(t *testing.T) {
	build := func(context.Context, config.CategorizationConfig, costtracker.Tracker) (Client, error) {
		t.Fatal("builder must not run")
		return nil, nil
	}
	for _, cfg := range []config.CategorizationConfig{
		{Provider: config.ProviderNone},
		{Provider: ""},
		{Provider: config.ProviderAnthropic},
		{Provider: config.ProviderGemini, OpenaiApiKey: "wrong key"},
	} {
		p := NewProvider(cfg, nil, build)
		assert.Nil(t, p.MemoryClient(context.Background()), "provider %q", cfg.Provider)
		assert.False(t, p.Enabled())
	}
}

func TestProvider_OpenAICompatibleWithoutKey(t *testing.T) {
	p := NewProvider(config.CategorizationConfig{Provider: config.ProviderOpenAI, BaseURL: "http://localhost:11434/v1"}, nil, nil)
	assert.True(t, p.Enabled())
}

func TestProvider_BuildError(t *testing.T) {
	build := func(context.Context, config.CategorizationConfig, costtracker.Tracker) (Client, error) {
		return nil, errors.New("bad credentials")
	}
	p := NewProvider(config.CategorizationConfig{Provider: config.ProviderGemini, GeminiApiKey: "k"}, nil, build)
	assert.Nil(t, p.MemoryClient(context.Background()))
}

func TestDefaultBuilder(t *testing.T) {
	ctx := context.Background()
	c, err := DefaultBuilder(ctx, config.CategorizationConfig{Provider: config.ProviderOpenAI, Model: "gpt-4o-mini", OpenaiApiKey: "k"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "openai", c.Name())

	c, err = DefaultBuilder(ctx, config.CategorizationConfig{Provider: config.ProviderAnthropic, Model: "claude", AnthropicApiKey: "k"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", c.Name())

	_, err = DefaultBuilder(ctx, config.CategorizationConfig{Provider: "cohere"}, nil)
	assert.Error(t, err)
}
