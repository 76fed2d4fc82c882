// Package static provides an in-memory twin store seeded at construction.
// It backs tests and single-tenant deployments where persona records ship
// with the service configuration.
package static

import (
	"context"
	"fmt"

	"github.com/twinfold/contextd/pkg/twin"
)

// Store implements twin.Store over seeded records. Records are read-only
// after construction, so no locking is needed.
type Store struct {
	twins         map[string]twin.Twin
	relationships map[string]twin.Relationship
}

// NewStore creates a store holding the given records.
func NewStore(twins []twin.Twin, relationships []twin.Relationship) *Store {
	s := &Store{
		twins:         make(map[string]twin.Twin, len(twins)),
		relationships: make(map[string]twin.Relationship, len(relationships)),
	}
	for _, t := range twins {
		s.twins[t.TwinID] = t
	}
	for _, r := range relationships {
		s.relationships[relationshipKey(r.TwinID, r.UserID)] = r
	}
	return s
}

// Twin returns the persona record for twinID.
func (s *Store) Twin(_ context.Context, twinID string) (*twin.Twin, error) {
	t, ok := s.twins[twinID]
	if !ok {
		return nil, twin.NotFoundError{Kind: "twin", Key: twinID}
	}
	return &t, nil
}

// Relationship returns the relationship record for (twinID, userID).
func (s *Store) Relationship(_ context.Context, twinID, userID string) (*twin.Relationship, error) {
	r, ok := s.relationships[relationshipKey(twinID, userID)]
	if !ok {
		return nil, twin.NotFoundError{Kind: "relationship", Key: relationshipKey(twinID, userID)}
	}
	return &r, nil
}

func relationshipKey(twinID, userID string) string {
	return fmt.Sprintf("%s/%s", twinID, userID)
}
