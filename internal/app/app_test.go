package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memcat/internal/config"
	"memcat/internal/costtracker"
	"memcat/internal/llm"
	"memcat/internal/services"
	"memcat/pkg/categorizer"
)

type stubClient struct{}

func (stubClient) GenerateResponse(context.Context, []categorizer.Message, categorizer.ResponseFormat, float64) (string, error) {
	return "```json\n{\"categories\": [\" Work \"]}\n```", nil
}
func (stubClient) Name() string  { return "openai" }
func (stubClient) Model() string { return "stub" }

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Database.URL = "sqlite://:memory:"
	return cfg
}

func TestNewApp_ProviderNone(t *testing.T) {
	cfg := testConfig()
	cfg.Categorization.Provider = config.ProviderNone

	a, err := NewApp(context.Background(), cfg, Options{})
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.JobClient)
	assert.NotNil(t, a.MemoryService)
	assert.NotNil(t, a.UsageService)
	assert.False(t, a.Provider.Enabled())

	m, err := a.MemoryService.CreateMemory(context.Background(), services.CreateMemoryParams{Content: "water the plants"})
	require.NoError(t, err)
	assert.Empty(t, m.Categories)
}

func TestNewApp_WithBuilder(t *testing.T) {
	cfg := testConfig()
	cfg.Categorization.OpenaiApiKey = "sk-test"
	build := func(context.Context, config.CategorizationConfig, costtracker.Tracker) (llm.Client, error) {
		return stubClient{}, nil
	}

	a, err := NewApp(context.Background(), cfg, Options{Builder: build})
	require.NoError(t, err)
	defer a.Close()

	m, err := a.MemoryService.CreateMemory(context.Background(), services.CreateMemoryParams{Content: "finish the quarterly report"})
	require.NoError(t, err)
	assert.Equal(t, []string{"work"}, m.Categories)
}

func TestNewApp_AsyncCreatesJobClient(t *testing.T) {
	cfg := testConfig()
	cfg.Categorization.Mode = config.ModeAsync
	a, err := NewApp(context.Background(), cfg, Options{})
	require.NoError(t, err)
	assert.NotNil(t, a.JobClient)
	assert.NoError(t, a.Close())
}

func TestNewApp_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Categorization.Mode = "sometimes"
	_, err := NewApp(context.Background(), cfg, Options{})
	assert.ErrorContains(t, err, "categorization.mode")

	cfg = testConfig()
	cfg.Database.URL = "mysql://nope"
	_, err = NewApp(context.Background(), cfg, Options{})
	assert.Error(t, err)
}
