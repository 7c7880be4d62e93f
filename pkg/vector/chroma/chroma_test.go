package chroma_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/embedsvc/pkg/logger"
	"github.com/papercomputeco/embedsvc/pkg/vector"
	"github.com/papercomputeco/embedsvc/pkg/vector/chroma"
)

const collectionsPath = "/api/v2/tenants/default_tenant/databases/default_database/collections"

// fakeChroma is a minimal in-process stand-in for the Chroma v2 REST API.
type fakeChroma struct {
	mu        sync.Mutex
	created   []string
	ids       []string
	docs      []string
	metadatas []map[string]any
	lastQuery map[string]any
	failAll   bool
}

func (f *fakeChroma) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failAll {
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}

	path := r.URL.Path
	switch {
	case r.Method == http.MethodGet && path == collectionsPath+"/products":
		if len(f.created) == 0 {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "col-1", "name": "products"})

	case r.Method == http.MethodPost && path == collectionsPath:
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		f.created = append(f.created, body["name"])
		json.NewEncoder(w).Encode(map[string]string{"id": "col-1", "name": body["name"]})

	case r.Method == http.MethodPost && path == collectionsPath+"/col-1/upsert":
		var body struct {
			IDs       []string         `json:"ids"`
			Documents []string         `json:"documents"`
			Metadatas []map[string]any `json:"metadatas"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.ids = append(f.ids, body.IDs...)
		f.docs = append(f.docs, body.Documents...)
		f.metadatas = append(f.metadatas, body.Metadatas...)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("true"))

	case r.Method == http.MethodGet && path == collectionsPath+"/col-1/count":
		json.NewEncoder(w).Encode(len(f.ids))

	case r.Method == http.MethodPost && path == collectionsPath+"/col-1/get":
		json.NewEncoder(w).Encode(map[string]any{
			"ids":       f.ids,
			"documents": f.docs,
			"metadatas": f.metadatas,
		})

	case r.Method == http.MethodPost && path == collectionsPath+"/col-1/query":
		f.lastQuery = map[string]any{}
		json.NewDecoder(r.Body).Decode(&f.lastQuery)
		json.NewEncoder(w).Encode(map[string]any{
			"ids":       [][]string{{"a", "b"}},
			"documents": [][]any{{"red shoes", nil}},
			"metadatas": [][]map[string]any{{{"text": "red shoes"}, {"text": "blue hat"}}},
			"distances": [][]float32{{0, 1.5}},
		})

	default:
		http.Error(w, "unexpected "+r.Method+" "+path, http.StatusBadRequest)
	}
}

var _ = Describe("Driver", func() {
	var log *slog.Logger

	BeforeEach(func() {
		log = logger.Nop()
	})

	Describe("NewDriver", func() {
		It("should return an error when URL is empty", func() {
			_, err := chroma.NewDriver(chroma.Config{URL: ""}, log)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("chroma URL is required"))
		})

		It("should create the collection when it does not exist", func() {
			fake := &fakeChroma{}
			server := httptest.NewServer(fake)
			defer server.Close()

			driver, err := chroma.NewDriver(chroma.Config{URL: server.URL, CollectionName: "products"}, log)
			Expect(err).NotTo(HaveOccurred())
			Expect(driver).NotTo(BeNil())
			Expect(fake.created).To(Equal([]string{"products"}))
		})

		It("should succeed after retrying when Chroma becomes available", func() {
			var attempts atomic.Int32

			// Each attempt is a GET for the collection followed by a POST to
			// create it. Fail the first two attempts.
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if attempts.Add(1) <= 4 {
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
					return
				}
				json.NewEncoder(w).Encode(map[string]string{
					"id":   "test-collection-id",
					"name": chroma.DefaultCollectionName,
				})
			}))
			defer server.Close()

			driver, err := chroma.NewDriver(chroma.Config{
				URL:           server.URL,
				MaxRetries:    5,
				RetryDelay:    10 * time.Millisecond,
				MaxRetryDelay: 50 * time.Millisecond,
			}, log)
			Expect(err).NotTo(HaveOccurred())
			Expect(driver).NotTo(BeNil())
			Expect(attempts.Load()).To(BeNumerically(">=", int32(5)))
		})

		It("should return a connection error after exhausting all retries", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			}))
			defer server.Close()

			_, err := chroma.NewDriver(chroma.Config{
				URL:           server.URL,
				MaxRetries:    3,
				RetryDelay:    10 * time.Millisecond,
				MaxRetryDelay: 50 * time.Millisecond,
			}, log)
			Expect(err).To(MatchError(vector.ErrConnection))
			Expect(err.Error()).To(ContainSubstring("after 3 attempts"))
		})
	})

	Describe("operations", func() {
		var (
			fake   *fakeChroma
			server *httptest.Server
			driver *chroma.Driver
			ctx    context.Context
		)

		BeforeEach(func() {
			ctx = context.Background()
			fake = &fakeChroma{}
			server = httptest.NewServer(fake)

			var err error
			driver, err = chroma.NewDriver(chroma.Config{URL: server.URL, CollectionName: "products"}, log)
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			Expect(driver.Close()).To(Succeed())
			server.Close()
		})

		It("should send documents and metadata on add", func() {
			err := driver.Add(ctx, []vector.Document{
				{ID: "a", Text: "red shoes", Embedding: []float32{1, 0}, Metadata: vector.TextMetadata("red shoes")},
				{ID: "b", Text: "blue hat", Embedding: []float32{0, 1}, Metadata: vector.TextMetadata("blue hat")},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(fake.ids).To(Equal([]string{"a", "b"}))
			Expect(fake.docs).To(Equal([]string{"red shoes", "blue hat"}))
			Expect(fake.metadatas[1]).To(HaveKeyWithValue("text", "blue hat"))

			count, err := driver.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(2))
		})

		It("should not call chroma for an empty batch", func() {
			Expect(driver.Add(ctx, nil)).To(Succeed())
			Expect(fake.ids).To(BeEmpty())
		})

		It("should list every document", func() {
			Expect(driver.Add(ctx, []vector.Document{
				{ID: "a", Text: "red shoes", Embedding: []float32{1, 0}, Metadata: vector.TextMetadata("red shoes")},
			})).To(Succeed())

			docs, err := driver.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].ID).To(Equal("a"))
			Expect(docs[0].Text).To(Equal("red shoes"))
		})

		It("should return nearest results with distances", func() {
			results, err := driver.Query(ctx, []float32{1, 0}, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(results[0].ID).To(Equal("a"))
			Expect(results[0].Text).To(Equal("red shoes"))
			Expect(results[0].Distance).To(BeNumerically("==", 0))
			Expect(results[1].Distance).To(BeNumerically("~", 1.5, 1e-6))
			Expect(fake.lastQuery).To(HaveKeyWithValue("n_results", BeNumerically("==", 2)))
		})

		It("should fall back to the metadata text when a document is missing", func() {
			results, err := driver.Query(ctx, []float32{1, 0}, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results[1].Text).To(Equal("blue hat"))
		})

		It("should surface chroma errors", func() {
			fake.mu.Lock()
			fake.failAll = true
			fake.mu.Unlock()

			_, err := driver.Count(ctx)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("status 500"))
		})
	})
})
