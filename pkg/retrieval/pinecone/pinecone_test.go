package pinecone

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/twinfold/contextd/pkg/retrieval"
	testutils "github.com/twinfold/contextd/pkg/utils/test"
)

var _ = Describe("Driver", func() {
	var (
		server   *httptest.Server
		embedder *testutils.MockEmbedder
		received *http.Request
		payload  map[string]any
		respond  func(w http.ResponseWriter)
		ctx      context.Context
	)

	newDriver := func() *Driver {
		logger, _ := zap.NewDevelopment()
		d, err := NewDriver(Config{
			URL:    server.URL,
			APIKey: "test-key",
		}, embedder, logger)
		Expect(err).NotTo(HaveOccurred())
		return d
	}

	BeforeEach(func() {
		ctx = context.Background()
		embedder = testutils.NewMockEmbedder()
		respond = func(w http.ResponseWriter) {
			w.Write([]byte(`{"matches": [
				{"id": "doc-1", "score": 0.9, "values": [1, 0], "metadata": {"content": "visa rules"}},
				{"id": "doc-2", "score": 0.5, "values": [0, 1], "metadata": {"content": "baggage policy"}}
			]}`))
		}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			received = r
			payload = map[string]any{}
			Expect(json.NewDecoder(r.Body).Decode(&payload)).To(Succeed())
			respond(w)
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("requires a URL, key, and embedder", func() {
		logger, _ := zap.NewDevelopment()
		_, err := NewDriver(Config{APIKey: "k"}, embedder, logger)
		Expect(err).To(HaveOccurred())
		_, err = NewDriver(Config{URL: "http://x"}, embedder, logger)
		Expect(err).To(HaveOccurred())
		_, err = NewDriver(Config{URL: "http://x", APIKey: "k"}, nil, logger)
		Expect(err).To(HaveOccurred())
	})

	Describe("Search", func() {
		It("embeds the query and posts it with values and metadata included", func() {
			embedder.Embeddings["planning a trip"] = []float32{0.5, 0.5}

			driver := newDriver()
			matches, err := driver.Search(ctx, "planning a trip", map[string]any{"kind": "faq"}, 10, "twin-1")
			Expect(err).NotTo(HaveOccurred())

			Expect(received.URL.Path).To(Equal("/query"))
			Expect(received.Header.Get("Api-Key")).To(Equal("test-key"))
			Expect(payload["topK"]).To(BeEquivalentTo(10))
			Expect(payload["namespace"]).To(Equal("twin-1"))
			Expect(payload["includeMetadata"]).To(BeTrue())
			Expect(payload["includeValues"]).To(BeTrue())
			Expect(payload["vector"]).To(HaveLen(2))
			Expect(payload["filter"]).To(HaveKeyWithValue("kind", "faq"))

			Expect(matches).To(HaveLen(2))
			Expect(matches[0].ID).To(Equal("doc-1"))
			Expect(matches[0].Embedding).To(Equal([]float32{1, 0}))
			Expect(matches[0].Content()).To(Equal("visa rules"))
		})

		It("wraps embedding failures in ErrBackend", func() {
			embedder.FailOn = "bad query"

			driver := newDriver()
			_, err := driver.Search(ctx, "bad query", nil, 5, "twin-1")
			Expect(err).To(MatchError(retrieval.ErrBackend))
		})

		It("wraps non-200 statuses in ErrBackend", func() {
			respond = func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusBadGateway)
			}

			driver := newDriver()
			_, err := driver.Search(ctx, "query", nil, 5, "twin-1")
			Expect(err).To(MatchError(retrieval.ErrBackend))
		})

		It("returns an empty set for no matches", func() {
			respond = func(w http.ResponseWriter) {
				w.Write([]byte(`{"matches": []}`))
			}

			driver := newDriver()
			matches, err := driver.Search(ctx, "query", nil, 5, "twin-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(BeEmpty())
		})
	})
})
