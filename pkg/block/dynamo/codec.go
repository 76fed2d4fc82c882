package dynamo

import (
	"encoding/json"
	"fmt"

	"github.com/twinfold/contextd/pkg/block"
)

// marshalBlock serializes a block to its JSON document form.
func marshalBlock(b *block.Block) (string, error) {
	body, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("marshaling block: %w", err)
	}
	return string(body), nil
}

// unmarshalBlock decodes a block body. Integer normalization happens inside
// block.Block's UnmarshalJSON, so values DynamoDB number conversion turned
// into floats come back as exact integers or fail loudly.
func unmarshalBlock(body string) (*block.Block, error) {
	var b block.Block
	if err := json.Unmarshal([]byte(body), &b); err != nil {
		return nil, fmt.Errorf("unmarshaling block: %w", err)
	}
	return &b, nil
}
