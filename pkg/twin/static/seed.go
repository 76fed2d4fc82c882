package static

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/twinfold/contextd/pkg/twin"
)

// Seed is the JSON layout of a static store seed file.
type Seed struct {
	Twins         []twin.Twin         `json:"twins"`
	Relationships []twin.Relationship `json:"relationships"`
}

// NewStoreFromFile creates a store seeded from a JSON file.
func NewStoreFromFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading twin seed file: %w", err)
	}

	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parsing twin seed file: %w", err)
	}

	return NewStore(seed.Twins, seed.Relationships), nil
}
