package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the settings needed by every command. Credentials are not
// required here: a missing API key disables categorization instead of
// preventing start-up.
func (c *Config) Validate() error {
	// Database config
	if strings.TrimSpace(c.Database.URL) == "" {
		return errors.New("database.url is required")
	}
	if c.Database.PoolSize < 1 {
		return fmt.Errorf("database.pool_size must be at least 1, got %d", c.Database.PoolSize)
	}
	if c.Database.MaxOverflow < 0 {
		return fmt.Errorf("database.max_overflow must not be negative, got %d", c.Database.MaxOverflow)
	}
	if c.Database.PoolTimeout < 0 || c.Database.PoolRecycle < 0 {
		return errors.New("database.pool_timeout and database.pool_recycle must not be negative")
	}

	// Categorization config
	switch c.Categorization.Provider {
	case ProviderOpenAI, ProviderGemini, ProviderAnthropic, ProviderNone, "":
	default:
		return fmt.Errorf("unknown categorization.provider %q (want openai, gemini, anthropic or none)", c.Categorization.Provider)
	}
	switch c.Categorization.Mode {
	case ModeSync, ModeAsync, ModeOff:
	default:
		return fmt.Errorf("unknown categorization.mode %q (want sync, async or off)", c.Categorization.Mode)
	}
	if c.Categorization.Provider != ProviderNone && c.Categorization.Provider != "" && c.Categorization.Model == "" {
		return fmt.Errorf("categorization.model is required for provider %q", c.Categorization.Provider)
	}
	if err := c.Categorization.Retry.Validate(); err != nil {
		return fmt.Errorf("categorization.retry: %w", err)
	}
	if c.Categorization.Cache.Enabled && (c.Categorization.Cache.NumCounters <= 0 || c.Categorization.Cache.MaxCost <= 0) {
		return errors.New("categorization.cache.num_counters and max_cost must be positive when the cache is enabled")
	}

	// Redis is only needed for background categorization
	if c.Categorization.Mode == ModeAsync && c.Redis.Address == "" {
		return errors.New("redis.address is required when categorization.mode is async")
	}

	// Worker config
	if c.Worker.Concurrency <= 0 {
		return errors.New("worker.concurrency must be a positive integer")
	}
	if len(c.Worker.Queues) == 0 {
		return errors.New("worker.queues must define at least one queue")
	}
	for name, priority := range c.Worker.Queues {
		if name == "" {
			return errors.New("worker.queues contains an empty queue name")
		}
		if priority <= 0 {
			return fmt.Errorf("worker.queues priority for queue '%s' must be positive", name)
		}
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}

	for provider, models := range c.Pricing {
		for model, price := range models {
			if price.InputPerToken < 0 || price.OutputPerToken < 0 {
				return fmt.Errorf("pricing for provider '%s', model '%s' has negative token cost", provider, model)
			}
		}
	}

	return nil
}
