// Package llm adapts the model provider SDKs to categorizer.LLMClient.
package llm

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"memcat/internal/config"
	"memcat/internal/costtracker"
	"memcat/pkg/categorizer"
)

var logger = log.WithField("component", "llm")

// Client is an LLMClient that can describe itself.
type Client interface {
	categorizer.LLMClient
	Name() string
	Model() string
}

// Builder creates the client for a provider configuration.
type Builder func(ctx context.Context, cfg config.CategorizationConfig, tracker costtracker.Tracker) (Client, error)

// DefaultBuilder builds the SDK adapter named by cfg.Provider.
func DefaultBuilder(ctx context.Context, cfg config.CategorizationConfig, tracker costtracker.Tracker) (Client, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg.OpenaiApiKey, cfg.BaseURL, cfg.Model, tracker), nil
	case config.ProviderGemini:
		return NewGeminiClient(ctx, cfg.GeminiApiKey, cfg.Model, tracker)
	case config.ProviderAnthropic:
		return NewAnthropicClient(cfg.AnthropicApiKey, cfg.BaseURL, cfg.Model, cfg.MaxTokens, tracker), nil
	}
	return nil, fmt.Errorf("unsupported categorization provider %q", cfg.Provider)
}

// Provider lazily builds and caches the configured model client. It is safe
// for concurrent use.
type Provider struct {
	cfg     config.CategorizationConfig
	tracker costtracker.Tracker
	build   Builder

	mu     sync.Mutex
	client Client
	warned bool
}

// NewProvider returns a Provider for cfg. A nil build uses DefaultBuilder.
func NewProvider(cfg config.CategorizationConfig, tracker costtracker.Tracker, build Builder) *Provider {
	if build == nil {
		build = DefaultBuilder
	}
	if tracker == nil {
		tracker = costtracker.Noop()
	}
	return &Provider{cfg: cfg, tracker: tracker, build: build}
}

// Enabled reports whether a provider and credentials are configured.
func (p *Provider) Enabled() bool {
	switch p.cfg.Provider {
	case "", config.ProviderNone:
		return false
	}
	// OpenAI-compatible servers (Ollama and friends) often need no key.
	if p.cfg.Provider == config.ProviderOpenAI && p.cfg.BaseURL != "" {
		return true
	}
	return p.cfg.APIKey() != ""
}

// MemoryClient returns the cached client, building it on first use. It
// returns nil when categorization is not configured or the client cannot be
// built; the reason is logged once.
func (p *Provider) MemoryClient(ctx context.Context) categorizer.LLMClient {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client
	}
	if !p.Enabled() {
		p.warnOnce("No model provider or API key configured for categorization provider %q", p.cfg.Provider)
		return nil
	}
	client, err := p.build(ctx, p.cfg, p.tracker)
	if err != nil {
		p.warnOnce("Failed to initialize %s client: %v", p.cfg.Provider, err)
		return nil
	}
	logger.Infof("Initialized %s categorization client (model %s)", client.Name(), client.Model())
	p.client = client
	return client
}

// Factory adapts MemoryClient to categorizer.ClientFactory.
func (p *Provider) Factory() categorizer.ClientFactory {
	return p.MemoryClient
}

// Reset drops the cached client so the next call rebuilds it.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if closer, ok := p.client.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Warnf("Error closing %s client: %v", p.cfg.Provider, err)
		}
	}
	p.client = nil
	p.warned = false
}

func (p *Provider) warnOnce(format string, args ...any) {
	if p.warned {
		return
	}
	p.warned = true
	logger.Warnf(format, args...)
}
