package static

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/twinfold/contextd/pkg/twin"
)

var _ = Describe("Store", func() {
	var (
		store *Store
		ctx   context.Context
	)

	BeforeEach(func() {
		store = NewStore(
			[]twin.Twin{{
				TwinID:     "twin-1",
				Definition: "a travel agent",
			}},
			[]twin.Relationship{{
				TwinID:           "twin-1",
				UserID:           "user-1",
				UserRelationship: "returning customer",
			}},
		)
		ctx = context.Background()
	})

	Describe("Twin", func() {
		It("returns a seeded twin", func() {
			t, err := store.Twin(ctx, "twin-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(t.Definition).To(Equal("a travel agent"))
		})

		It("returns ErrNotFound for an unknown twin", func() {
			_, err := store.Twin(ctx, "missing")
			Expect(err).To(MatchError(twin.ErrNotFound))
		})
	})

	Describe("Relationship", func() {
		It("returns a seeded relationship", func() {
			r, err := store.Relationship(ctx, "twin-1", "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(r.UserRelationship).To(Equal("returning customer"))
		})

		It("returns ErrNotFound for an unknown pairing", func() {
			_, err := store.Relationship(ctx, "twin-1", "stranger")
			Expect(err).To(MatchError(twin.ErrNotFound))
		})
	})

	Describe("NewStoreFromFile", func() {
		It("seeds the store from a JSON file", func() {
			path := filepath.Join(GinkgoT().TempDir(), "twins.json")
			seed := `{
				"twins": [{"twinId": "twin-2", "twinDefinition": "a tutor"}],
				"relationships": [{"twinId": "twin-2", "userId": "user-2", "userRelationship": "student"}]
			}`
			Expect(os.WriteFile(path, []byte(seed), 0o600)).To(Succeed())

			fileStore, err := NewStoreFromFile(path)
			Expect(err).NotTo(HaveOccurred())

			t, err := fileStore.Twin(ctx, "twin-2")
			Expect(err).NotTo(HaveOccurred())
			Expect(t.Definition).To(Equal("a tutor"))
		})

		It("fails on a missing file", func() {
			_, err := NewStoreFromFile("/nonexistent/twins.json")
			Expect(err).To(HaveOccurred())
		})

		It("fails on malformed JSON", func() {
			path := filepath.Join(GinkgoT().TempDir(), "twins.json")
			Expect(os.WriteFile(path, []byte("{"), 0o600)).To(Succeed())

			_, err := NewStoreFromFile(path)
			Expect(err).To(HaveOccurred())
		})
	})
})
