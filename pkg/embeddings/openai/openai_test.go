package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
)

var _ = Describe("Embedder", func() {
	var (
		server  *httptest.Server
		payload map[string]any
		respond func(w http.ResponseWriter)
		ctx     context.Context
	)

	newEmbedder := func() *Embedder {
		logger, _ := zap.NewDevelopment()
		e, err := NewEmbedder(Config{
			BaseURL: server.URL,
			APIKey:  "test-key",
			Model:   "test-embed",
		}, logger)
		Expect(err).NotTo(HaveOccurred())
		return e
	}

	BeforeEach(func() {
		ctx = context.Background()
		respond = func(w http.ResponseWriter) {
			w.Write([]byte(`{"data": [{"embedding": [0.1, 0.2, 0.3]}]}`))
		}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			payload = map[string]any{}
			Expect(json.NewDecoder(r.Body).Decode(&payload)).To(Succeed())
			respond(w)
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("requires an API key", func() {
		logger, _ := zap.NewDevelopment()
		_, err := NewEmbedder(Config{}, logger)
		Expect(err).To(HaveOccurred())
	})

	It("defaults the model when unset", func() {
		logger, _ := zap.NewDevelopment()
		e, err := NewEmbedder(Config{APIKey: "k"}, logger)
		Expect(err).NotTo(HaveOccurred())
		Expect(e.model).To(Equal(DefaultModel))
	})

	It("posts the text and returns the embedding", func() {
		embedder := newEmbedder()
		vec, err := embedder.Embed(ctx, "hello world")
		Expect(err).NotTo(HaveOccurred())
		Expect(vec).To(Equal([]float32{0.1, 0.2, 0.3}))
		Expect(payload["model"]).To(Equal("test-embed"))
		Expect(payload["input"]).To(Equal("hello world"))
	})

	It("fails on a non-200 status", func() {
		respond = func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusTooManyRequests)
		}

		embedder := newEmbedder()
		_, err := embedder.Embed(ctx, "hello")
		Expect(err).To(HaveOccurred())
	})

	It("fails when the response has no data", func() {
		respond = func(w http.ResponseWriter) {
			w.Write([]byte(`{"data": []}`))
		}

		embedder := newEmbedder()
		_, err := embedder.Embed(ctx, "hello")
		Expect(err).To(HaveOccurred())
	})
})
