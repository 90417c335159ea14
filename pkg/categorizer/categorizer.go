// Package categorizer assigns topical category labels to free-text memories
// using a language model.
//
// Categorization is best effort. Every failure mode that can be handled
// locally (feature disabled, blank or malformed model output, schema
// mismatch) degrades to an empty label list; only transient client errors
// are retried, and only when every attempt fails does Categorize return an
// error to its caller.
package categorizer

import (
	"context"
	"errors"
)

// Message roles understood by every LLMClient.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat turn sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseFormat constrains the shape of the model output.
type ResponseFormat struct {
	Type string `json:"type"`
}

// JSONObject requests a JSON-object-shaped response.
var JSONObject = ResponseFormat{Type: "json_object"}

// LLMClient is the externally owned model capability. Implementations must be
// safe for concurrent use.
type LLMClient interface {
	GenerateResponse(ctx context.Context, messages []Message, format ResponseFormat, temperature float64) (string, error)
}

// ClientFactory returns the currently configured client, or nil when
// categorization is not available.
type ClientFactory func(ctx context.Context) LLMClient

// StaticClient adapts a fixed client (possibly nil) into a ClientFactory.
func StaticClient(client LLMClient) ClientFactory {
	return func(context.Context) LLMClient { return client }
}

// Status describes how a categorization attempt ended.
type Status string

const (
	StatusOK              Status = "ok"
	StatusDisabled        Status = "disabled"
	StatusEmptyResponse   Status = "empty_response"
	StatusMalformedJSON   Status = "malformed_json"
	StatusSchemaViolation Status = "schema_violation"
	StatusFailed          Status = "failed"
	StatusExhausted       Status = "exhausted"
)

// Result is the detailed outcome of a categorization call. Labels is never nil.
type Result struct {
	Labels   []string `json:"categories"`
	Status   Status   `json:"status"`
	Attempts int      `json:"attempts"`
}

// OK reports whether the model produced a valid, schema-conforming answer.
func (r Result) OK() bool { return r.Status == StatusOK }

var (
	ErrEmptyResponse    = errors.New("categorizer: empty response from model")
	ErrMalformedJSON    = errors.New("categorizer: malformed JSON response")
	ErrSchemaViolation  = errors.New("categorizer: response does not match categories schema")
	ErrRetriesExhausted = errors.New("categorizer: retries exhausted")
)

// MemoryCategorizer is implemented by *Categorizer; services depend on it so
// they can be tested without a model.
type MemoryCategorizer interface {
	Categorize(ctx context.Context, memory string) ([]string, error)
	CategorizeDetailed(ctx context.Context, memory string) (Result, error)
}

func emptyResult(status Status) Result {
	return Result{Labels: []string{}, Status: status}
}
