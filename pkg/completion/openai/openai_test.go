package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/twinfold/contextd/pkg/completion"
	"github.com/twinfold/contextd/pkg/llm"
)

func chatBody(content string) string {
	return `{"choices": [{"message": {"role": "assistant", "content": ` + mustJSON(content) + `}}]}`
}

func mustJSON(s string) string {
	out, err := json.Marshal(s)
	Expect(err).NotTo(HaveOccurred())
	return string(out)
}

var _ = Describe("Client", func() {
	var (
		server   *httptest.Server
		received *http.Request
		payload  map[string]any
		respond  func(w http.ResponseWriter)
		ctx      context.Context
	)

	newClient := func() *Client {
		logger, _ := zap.NewDevelopment()
		c, err := NewClient(Config{
			BaseURL: server.URL,
			APIKey:  "test-key",
		}, logger)
		Expect(err).NotTo(HaveOccurred())
		return c
	}

	BeforeEach(func() {
		ctx = context.Background()
		respond = func(w http.ResponseWriter) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(chatBody("a response")))
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

	It("requires an API key", func() {
		logger, _ := zap.NewDevelopment()
		_, err := NewClient(Config{}, logger)
		Expect(err).To(HaveOccurred())
	})

	Describe("Complete", func() {
		It("posts the request and returns the first choice content", func() {
			client := newClient()
			out, err := client.Complete(ctx, completion.Request{
				Messages:  []llm.Message{llm.NewMessage(llm.RoleUser, "hello")},
				Model:     "test-model",
				MaxTokens: 64,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal("a response"))

			Expect(received.URL.Path).To(Equal("/chat/completions"))
			Expect(received.Header.Get("Authorization")).To(Equal("Bearer test-key"))
			Expect(payload["model"]).To(Equal("test-model"))
			Expect(payload).NotTo(HaveKey("response_format"))
		})

		It("wraps non-200 statuses in ErrCompletion", func() {
			respond = func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusInternalServerError)
			}

			client := newClient()
			_, err := client.Complete(ctx, completion.Request{Model: "test-model"})
			Expect(err).To(MatchError(completion.ErrCompletion))
		})

		It("returns ErrEmptyResponse when no choices come back", func() {
			respond = func(w http.ResponseWriter) {
				w.Write([]byte(`{"choices": []}`))
			}

			client := newClient()
			_, err := client.Complete(ctx, completion.Request{Model: "test-model"})
			Expect(err).To(MatchError(completion.ErrEmptyResponse))
		})
	})

	Describe("CompleteStructured", func() {
		schema := completion.Schema{
			Name: "decision",
			Raw:  json.RawMessage(`{"type": "object"}`),
		}

		type decision struct {
			Done bool `json:"done"`
		}

		It("sends the json_schema response format", func() {
			respond = func(w http.ResponseWriter) {
				w.Write([]byte(chatBody(`{"done": true}`)))
			}

			client := newClient()
			var out decision
			Expect(client.CompleteStructured(ctx, completion.Request{Model: "test-model"}, schema, &out)).To(Succeed())
			Expect(out.Done).To(BeTrue())

			format := payload["response_format"].(map[string]any)
			Expect(format["type"]).To(Equal("json_schema"))
			jsonSchema := format["json_schema"].(map[string]any)
			Expect(jsonSchema["name"]).To(Equal("decision"))
			Expect(jsonSchema["strict"]).To(BeTrue())
		})

		It("rejects content with unknown fields as ErrSchema", func() {
			respond = func(w http.ResponseWriter) {
				w.Write([]byte(chatBody(`{"done": true, "extra": 1}`)))
			}

			client := newClient()
			var out decision
			err := client.CompleteStructured(ctx, completion.Request{Model: "test-model"}, schema, &out)
			Expect(err).To(MatchError(completion.ErrSchema))
		})

		It("rejects non-JSON content as ErrSchema", func() {
			respond = func(w http.ResponseWriter) {
				w.Write([]byte(chatBody("not json")))
			}

			client := newClient()
			var out decision
			err := client.CompleteStructured(ctx, completion.Request{Model: "test-model"}, schema, &out)
			Expect(err).To(MatchError(completion.ErrSchema))
		})
	})
})
