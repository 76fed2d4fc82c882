// Package tiktoken provides a tokens.Counter backed by the cl100k_base
// BPE encoding via tiktoken-go.
package tiktoken

import (
	"fmt"

	tiktokengo "github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the encoding used when none is configured.
const DefaultEncoding = "cl100k_base"

// Counter implements tokens.Counter over a fixed tiktoken encoding.
type Counter struct {
	encoding *tiktokengo.Tiktoken
}

// NewCounter creates a counter for the named encoding. An empty name
// selects DefaultEncoding.
func NewCounter(encodingName string) (*Counter, error) {
	if encodingName == "" {
		encodingName = DefaultEncoding
	}

	enc, err := tiktokengo.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("loading encoding %q: %w", encodingName, err)
	}

	return &Counter{encoding: enc}, nil
}

// Count returns the number of tokens in text under the configured encoding.
func (c *Counter) Count(text string) int {
	return len(c.encoding.Encode(text, nil, nil))
}
