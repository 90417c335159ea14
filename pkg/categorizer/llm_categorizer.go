package categorizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
)

// Categorizer asks a language model which categories a memory belongs to.
// It holds no per-call state and may be shared between goroutines.
type Categorizer struct {
	factory ClientFactory
	prompt  string
	policy  RetryPolicy
	logger  log.FieldLogger
	timer   backoff.Timer // nil uses a real timer
}

// Option configures a Categorizer.
type Option func(*Categorizer)

// WithRetryPolicy replaces DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Categorizer) { c.policy = p }
}

// WithLogger routes log records to l instead of the standard logrus logger.
func WithLogger(l log.FieldLogger) Option {
	return func(c *Categorizer) { c.logger = l }
}

// New creates a Categorizer. factory is consulted on every attempt so a client
// configured after start-up is picked up; a nil factory disables categorization.
func New(factory ClientFactory, prompt string, opts ...Option) *Categorizer {
	c := &Categorizer{
		factory: factory,
		prompt:  prompt,
		policy:  DefaultRetryPolicy,
		logger:  log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Categorize returns the normalized labels for memory. The slice is never nil.
// An error is returned only when every attempt failed with a client error or
// ctx was cancelled; all other failures yield an empty slice and a nil error.
func (c *Categorizer) Categorize(ctx context.Context, memory string) ([]string, error) {
	res, err := c.CategorizeDetailed(ctx, memory)
	return res.Labels, err
}

// CategorizeDetailed is Categorize with the outcome status and attempt count.
func (c *Categorizer) CategorizeDetailed(ctx context.Context, memory string) (Result, error) {
	var (
		result   Result
		attempts int
	)
	operation := func() error {
		attempts++
		res, err := c.attempt(ctx, memory)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		result = res
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.logger.WithFields(log.Fields{
			"attempt":      attempts,
			"max_attempts": c.policy.MaxAttempts,
			"wait":         wait.String(),
		}).Debugf("Categorization attempt failed, retrying: %v", err)
	}

	if err := backoff.RetryNotifyWithTimer(operation, c.policy.backOff(ctx), notify, c.timer); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			res := emptyResult(StatusFailed)
			res.Attempts = attempts
			return res, fmt.Errorf("categorization stopped after %d attempt(s): %w", attempts, ctxErr)
		}
		res := emptyResult(StatusExhausted)
		res.Attempts = attempts
		return res, fmt.Errorf("%w after %d attempt(s): %w", ErrRetriesExhausted, attempts, err)
	}
	result.Attempts = attempts
	return result, nil
}

// attempt runs one full client call. A returned error is transient and
// eligible for retry; every other outcome is folded into the Result.
func (c *Categorizer) attempt(ctx context.Context, memory string) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Errorf("Failed to get categories: %v", r)
			c.logger.Debugf("Failure type: %T", r)
			res, err = emptyResult(StatusFailed), nil
		}
	}()

	var client LLMClient
	if c.factory != nil {
		client = c.factory(ctx)
	}
	if client == nil {
		c.logger.Warn("Memory client not available. Categorization disabled.")
		return emptyResult(StatusDisabled), nil
	}

	messages := []Message{
		{Role: RoleSystem, Content: c.prompt},
		{Role: RoleUser, Content: memory},
	}
	raw, err := client.GenerateResponse(ctx, messages, JSONObject, 0)
	if err != nil {
		c.logger.Errorf("Failed to get categories: %v", err)
		c.logger.Debugf("Error type: %T", err)
		return Result{}, err
	}

	labels, err := parseCategories(raw)
	switch {
	case err == nil:
		return Result{Labels: labels, Status: StatusOK}, nil
	case errors.Is(err, ErrEmptyResponse):
		c.logger.Warn("Empty response from LLM for categorization")
		return emptyResult(StatusEmptyResponse), nil
	case errors.Is(err, ErrSchemaViolation):
		c.logger.Errorf("Failed to validate categories response: %v", err)
		return emptyResult(StatusSchemaViolation), nil
	default:
		c.logger.Errorf("Failed to parse JSON response: %v", err)
		return emptyResult(StatusMalformedJSON), nil
	}
}

// parseCategories turns raw model output into normalized labels.
func parseCategories(raw string) ([]string, error) {
	cleaned := RemoveCodeBlocks(raw)
	if strings.TrimSpace(cleaned) == "" {
		return nil, ErrEmptyResponse
	}

	var doc any
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		extracted := ExtractJSON(cleaned)
		if err := json.Unmarshal([]byte(extracted), &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
		}
	}

	parsed, err := ValidateCategories(doc)
	if err != nil {
		return nil, err
	}
	return Normalize(parsed.Categories), nil
}

var _ MemoryCategorizer = (*Categorizer)(nil)
