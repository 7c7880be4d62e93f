package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/embedsvc/pkg/embeddings"
	"github.com/papercomputeco/embedsvc/pkg/embeddings/ollama"
)

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

var _ = Describe("Embedder", func() {
	var (
		server       *httptest.Server
		requests     atomic.Int32
		failuresLeft atomic.Int32
		lastReq  embedRequest
		status   int
		reply    func(req embedRequest) [][]float32
	)

	BeforeEach(func() {
		requests.Store(0)
		failuresLeft.Store(0)
		lastReq = embedRequest{}
		status = http.StatusOK
		reply = func(req embedRequest) [][]float32 {
			out := make([][]float32, len(req.Input))
			for i, text := range req.Input {
				out[i] = []float32{float32(len(text)), float32(i)}
			}
			return out
		}

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			if r.URL.Path != "/api/embed" {
				http.NotFound(w, r)
				return
			}
			if failuresLeft.Add(-1) >= 0 {
				http.Error(w, "busy", http.StatusServiceUnavailable)
				return
			}
			json.NewDecoder(r.Body).Decode(&lastReq)

			if status != http.StatusOK {
				http.Error(w, "model not found", status)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"embeddings": reply(lastReq)})
		}))
		DeferCleanup(server.Close)
	})

	newEmbedder := func() *ollama.Embedder {
		e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())
		return e
	}

	It("should default the model", func() {
		_, err := newEmbedder().Embed(context.Background(), "red shoes")
		Expect(err).NotTo(HaveOccurred())
		Expect(lastReq.Model).To(Equal(ollama.DefaultEmbeddingModel))
	})

	It("should embed a batch in one request", func() {
		vectors, err := newEmbedder().EmbedBatch(context.Background(), []string{"red shoes", "hat", ""})
		Expect(err).NotTo(HaveOccurred())
		Expect(requests.Load()).To(Equal(int32(1)))
		Expect(lastReq.Input).To(Equal([]string{"red shoes", "hat", ""}))
		Expect(vectors).To(Equal([][]float32{{9, 0}, {3, 1}, {0, 2}}))
	})

	It("should not call the server for an empty batch", func() {
		vectors, err := newEmbedder().EmbedBatch(context.Background(), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(vectors).To(BeEmpty())
		Expect(requests.Load()).To(BeZero())
	})

	It("should return a single vector from Embed", func() {
		vector, err := newEmbedder().Embed(context.Background(), "hat")
		Expect(err).NotTo(HaveOccurred())
		Expect(vector).To(Equal([]float32{3, 0}))
	})

	It("should wrap non-200 responses in ErrEmbedding", func() {
		status = http.StatusNotFound
		_, err := newEmbedder().Embed(context.Background(), "hat")
		Expect(err).To(MatchError(embeddings.ErrEmbedding))
		Expect(err.Error()).To(ContainSubstring("404"))
	})

	It("should reject a response with the wrong number of embeddings", func() {
		reply = func(embedRequest) [][]float32 { return [][]float32{{1}} }
		_, err := newEmbedder().EmbedBatch(context.Background(), []string{"a", "b"})
		Expect(err).To(MatchError(embeddings.ErrEmbedding))
	})

	It("should retry server errors", func() {
		failuresLeft.Store(1)

		e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL, MaxRetries: 2})
		Expect(err).NotTo(HaveOccurred())

		vector, err := e.Embed(context.Background(), "hat")
		Expect(err).NotTo(HaveOccurred())
		Expect(vector).To(Equal([]float32{3, 0}))
		Expect(requests.Load()).To(Equal(int32(2)))
	})
})
