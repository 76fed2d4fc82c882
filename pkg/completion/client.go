// Package completion defines the language-model completion contract used by
// the context managers. Implementations live in sibling packages
// (e.g. completion/openai); callers receive the interface through their
// constructors.
package completion

import (
	"context"
	"encoding/json"

	"github.com/twinfold/contextd/pkg/llm"
)

// Request describes a single completion call.
type Request struct {
	// Messages is the full message sequence sent to the model.
	Messages []llm.Message

	// Model is the provider model name for this call site.
	Model string

	// MaxTokens caps the generated output length.
	MaxTokens int

	// Temperature is the sampling temperature. Zero is a valid value and
	// the default for every call site in this system.
	Temperature float64
}

// Schema declares the JSON schema a structured completion must conform to.
// Integer-typed fields are declared as integers here so that non-integral
// values are rejected at the decoding boundary, never coerced downstream.
type Schema struct {
	// Name labels the schema for providers that require a named response format.
	Name string

	// Raw is the JSON-schema document.
	Raw json.RawMessage
}

// Client is the completion collaborator contract.
type Client interface {
	// Complete returns the model's free-text response.
	Complete(ctx context.Context, req Request) (string, error)

	// CompleteStructured constrains the model to the given schema and decodes
	// the response into out. A response that does not parse against the
	// schema fails with ErrSchema.
	CompleteStructured(ctx context.Context, req Request, schema Schema, out any) error
}
