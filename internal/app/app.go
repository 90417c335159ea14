// Package app wires configuration, storage, model clients and services
// into one application instance shared by the CLI, API and worker.
package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"memcat/internal/config"
	"memcat/internal/costtracker"
	"memcat/internal/llm"
	"memcat/internal/services"
	"memcat/internal/store"
	"memcat/internal/store/database"
	"memcat/pkg/categorizer"
)

type App struct {
	Config *config.Config

	Store       store.Store
	JobClient   store.JobClient // nil unless categorization runs async
	CostTracker costtracker.Tracker
	Provider    *llm.Provider
	Categorizer *categorizer.Categorizer

	MemoryService         *services.MemoryService
	CategorizationService *services.CategorizationService
	UsageService          *services.UsageService
}

// Options tweaks how NewApp builds the application.
type Options struct {
	// Builder overrides how model clients are created.
	Builder llm.Builder
}

// NewApp opens the database and builds every service. The schema is
// migrated on start-up.
func NewApp(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	a := &App{Config: cfg}

	if err := a.initStore(ctx); err != nil {
		return nil, err
	}
	if err := a.initJobClient(); err != nil {
		a.cleanupPartialInit()
		return nil, err
	}
	a.initCategorizer(opts.Builder)
	if err := a.initServices(); err != nil {
		a.cleanupPartialInit()
		return nil, err
	}

	log.Info("Application initialization complete.")
	return a, nil
}

// --- Private Helper Methods ---

func (a *App) initStore(ctx context.Context) error {
	st, err := database.Open(ctx, a.Config.Database)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return fmt.Errorf("migrate store: %w", err)
	}
	a.Store = st
	a.CostTracker = costtracker.New(st, a.Config.Pricing)
	return nil
}

func (a *App) initJobClient() error {
	if a.Config.Categorization.Mode != config.ModeAsync {
		log.Debug("Categorization is not async, skipping job client initialization.")
		return nil
	}
	jc, err := store.NewAsynqJobClient(store.RedisOptions{
		Address:  a.Config.Redis.Address,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	}, a.Store)
	if err != nil {
		return fmt.Errorf("init job client: %w", err)
	}
	a.JobClient = jc
	return nil
}

func (a *App) initCategorizer(build llm.Builder) {
	cfg := a.Config.Categorization
	a.Provider = llm.NewProvider(cfg, a.CostTracker, build)
	if !a.Provider.Enabled() {
		log.Warnf("Categorization provider %q is not configured. Memories will not be categorized.", cfg.Provider)
	}
	a.Categorizer = categorizer.New(a.Provider.Factory(), a.Config.CategorizationPrompt(),
		categorizer.WithRetryPolicy(cfg.Retry),
		categorizer.WithLogger(log.WithField("component", "categorizer")),
	)
}

func (a *App) initServices() error {
	cats, err := services.NewCategorizationService(a.Categorizer, a.Store, a.Store, a.Config.Categorization.Cache)
	if err != nil {
		return fmt.Errorf("init categorization service: %w", err)
	}
	a.CategorizationService = cats
	a.MemoryService = services.NewMemoryService(services.MemoryServiceDeps{
		MemoryStore:           a.Store,
		CategoryStore:         a.Store,
		CategorizationService: cats,
		JobClient:             a.JobClient,
		Mode:                  a.Config.Categorization.Mode,
	})
	a.UsageService = services.NewUsageService(a.Store)
	return nil
}

// Close releases every resource the app holds.
func (a *App) Close() error {
	if a.CategorizationService != nil {
		a.CategorizationService.Close()
	}
	if a.Provider != nil {
		a.Provider.Reset()
	}
	var firstErr error
	if a.JobClient != nil {
		if err := a.JobClient.Close(); err != nil {
			firstErr = err
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (a *App) cleanupPartialInit() {
	if err := a.Close(); err != nil {
		log.Warnf("Error during partial initialization cleanup: %v", err)
	}
}
