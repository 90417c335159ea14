// Package costtracker prices model calls and records them as usage logs.
package costtracker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"memcat/internal/config"
	"memcat/internal/models"
	"memcat/internal/store"
)

// Usage describes the tokens consumed by one model call.
type Usage struct {
	Provider     string
	Model        string
	Operation    string // e.g. "categorization"
	InputTokens  int
	OutputTokens int
	MemoryID     *uuid.UUID
	JobID        *uuid.UUID
}

// Tracker records model usage.
type Tracker interface {
	Record(ctx context.Context, usage Usage) error
}

// Pricing maps provider -> model -> per-token prices.
type Pricing map[string]map[string]config.PricingInfo

// Cost returns the price of usage and whether the model has a price.
func (p Pricing) Cost(u Usage) (float64, bool) {
	info, ok := p[u.Provider][u.Model]
	if !ok {
		return 0, false
	}
	return float64(u.InputTokens)*info.InputPerToken + float64(u.OutputTokens)*info.OutputPerToken, true
}

type storeTracker struct {
	store   store.UsageStore
	pricing Pricing
}

// New returns a Tracker writing ai_usage_logs rows to s. A nil s yields Noop.
func New(s store.UsageStore, pricing Pricing) Tracker {
	if s == nil {
		return Noop()
	}
	return &storeTracker{store: s, pricing: pricing}
}

func (t *storeTracker) Record(ctx context.Context, u Usage) error {
	cost, ok := t.pricing.Cost(u)
	if !ok {
		log.Warnf("Pricing info not found for %s model '%s'. Recording zero cost.", u.Provider, u.Model)
	}
	if u.MemoryID == nil {
		u.MemoryID = MemoryIDFromContext(ctx)
	}
	if u.JobID == nil {
		u.JobID = JobIDFromContext(ctx)
	}

	entry := &models.AIUsageLog{
		Timestamp:       time.Now().UTC(),
		ProviderName:    u.Provider,
		ServiceType:     u.Operation,
		ModelName:       u.Model,
		InputTokens:     u.InputTokens,
		OutputTokens:    u.OutputTokens,
		Cost:            cost,
		RelatedMemoryID: u.MemoryID,
		RelatedJobID:    u.JobID,
	}
	if err := t.store.RecordUsage(ctx, entry); err != nil {
		return fmt.Errorf("record ai usage: %w", err)
	}
	log.Debugf("Recorded AI usage: Provider=%s, Service=%s, Model=%s, InputTokens=%d, OutputTokens=%d, Cost=%.8f",
		entry.ProviderName, entry.ServiceType, entry.ModelName, entry.InputTokens, entry.OutputTokens, entry.Cost)
	return nil
}

type noopTracker struct{}

// Noop returns a Tracker that discards usage.
func Noop() Tracker { return noopTracker{} }

func (noopTracker) Record(context.Context, Usage) error { return nil }

type ctxKey int

const (
	memoryIDKey ctxKey = iota
	jobIDKey
)

// WithMemoryID attributes usage recorded under ctx to a memory.
func WithMemoryID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, memoryIDKey, id)
}

// WithJobID attributes usage recorded under ctx to a background job.
func WithJobID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, jobIDKey, id)
}

func MemoryIDFromContext(ctx context.Context) *uuid.UUID {
	if id, ok := ctx.Value(memoryIDKey).(uuid.UUID); ok {
		return &id
	}
	return nil
}

func JobIDFromContext(ctx context.Context) *uuid.UUID {
	if id, ok := ctx.Value(jobIDKey).(uuid.UUID); ok {
		return &id
	}
	return nil
}
