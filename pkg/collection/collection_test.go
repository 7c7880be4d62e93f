package collection_test

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/embedsvc/pkg/collection"
	"github.com/papercomputeco/embedsvc/pkg/embeddings"
	"github.com/papercomputeco/embedsvc/pkg/logger"
	testutils "github.com/papercomputeco/embedsvc/pkg/utils/test"
)

var _ = Describe("Collection", func() {
	var (
		embedder  *testutils.MockEmbedder
		driver    *testutils.MockVectorDriver
		publisher *testutils.MockPublisher
		coll      *collection.Collection
		logBuf    *bytes.Buffer
		ctx       context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		embedder = testutils.NewMockEmbedder()
		driver = testutils.NewMockVectorDriver()
		publisher = testutils.NewMockPublisher()
		logBuf = &bytes.Buffer{}

		var err error
		coll, err = collection.New(collection.Config{
			Embedder:  embedder,
			Driver:    driver,
			Publisher: publisher,
			Logger:    logger.New(logger.WithWriter(logBuf)),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("New", func() {
		It("defaults the name", func() {
			Expect(coll.Name()).To(Equal(collection.DefaultName))
		})

		It("requires an embedder and a driver", func() {
			_, err := collection.New(collection.Config{Driver: driver})
			Expect(err).To(HaveOccurred())

			_, err = collection.New(collection.Config{Embedder: embedder})
			Expect(err).To(HaveOccurred())
		})

		It("works without a publisher or logger", func() {
			c, err := collection.New(collection.Config{Name: "products", Embedder: embedder, Driver: driver})
			Expect(err).NotTo(HaveOccurred())

			_, err = c.Embed(ctx, []string{"red shoes"})
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("Embed", func() {
		It("returns one embedding and one fresh uuid per text", func() {
			res, err := coll.Embed(ctx, []string{"red shoes", "blue hat", ""})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Embeddings).To(HaveLen(3))
			Expect(res.IDs).To(HaveLen(3))
			Expect(res.Embeddings[0]).To(Equal(testutils.HashEmbedding("red shoes")))

			seen := map[string]bool{}
			for _, id := range res.IDs {
				_, err := uuid.Parse(id)
				Expect(err).NotTo(HaveOccurred())
				Expect(seen).NotTo(HaveKey(id))
				seen[id] = true
			}
		})

		It("embeds the whole batch in one call", func() {
			_, err := coll.Embed(ctx, []string{"a", "b", "c"})
			Expect(err).NotTo(HaveOccurred())
			Expect(embedder.Calls()).To(Equal(1))
		})

		It("grows the collection by exactly the number of texts", func() {
			res, err := coll.Embed(ctx, []string{"a", "b"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Total).To(Equal(2))

			res, err = coll.Embed(ctx, []string{"c"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Total).To(Equal(3))

			Expect(coll.Count(ctx)).To(Equal(3))
		})

		It("logs the number added and the new total", func() {
			_, err := coll.Embed(ctx, []string{"a", "b"})
			Expect(err).NotTo(HaveOccurred())
			Expect(logBuf.String()).To(ContainSubstring("added documents"))
			Expect(logBuf.String()).To(ContainSubstring("added=2"))
			Expect(logBuf.String()).To(ContainSubstring("total=2"))
		})

		It("stores the text in document and metadata", func() {
			res, err := coll.Embed(ctx, []string{"red shoes"})
			Expect(err).NotTo(HaveOccurred())

			docs, err := driver.Get(ctx, res.IDs)
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].Text).To(Equal("red shoes"))
			Expect(docs[0].Metadata).To(Equal(map[string]any{"text": "red shoes"}))
		})

		It("publishes a documents added event", func() {
			res, err := coll.Embed(ctx, []string{"red shoes"})
			Expect(err).NotTo(HaveOccurred())

			events := publisher.Events()
			Expect(events).To(HaveLen(1))
			Expect(events[0].Collection).To(Equal(collection.DefaultName))
			Expect(events[0].IDs).To(Equal(res.IDs))
			Expect(events[0].Texts).To(Equal([]string{"red shoes"}))
			Expect(events[0].Total).To(Equal(1))
		})

		It("rejects an empty batch", func() {
			_, err := coll.Embed(ctx, nil)
			Expect(err).To(MatchError(collection.ErrNoTexts))
		})

		It("stores nothing when the embedder fails", func() {
			embedder.FailOn = "boom"
			_, err := coll.Embed(ctx, []string{"ok", "boom"})
			Expect(err).To(MatchError(embeddings.ErrEmbedding))
			Expect(coll.Count(ctx)).To(BeZero())
			Expect(publisher.Events()).To(BeEmpty())
		})

		It("surfaces store failures", func() {
			driver.FailAdd = true
			_, err := coll.Embed(ctx, []string{"a"})
			Expect(err).To(MatchError(testutils.ErrMockVector))
		})

		It("still succeeds when the post-add count fails", func() {
			driver.FailCount = true
			res, err := coll.Embed(ctx, []string{"a"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Total).To(Equal(-1))
		})

		It("still succeeds when publishing fails", func() {
			publisher.Err = eventstreamErr
			_, err := coll.Embed(ctx, []string{"a"})
			Expect(err).NotTo(HaveOccurred())
		})

		It("assigns distinct ids across concurrent calls", func() {
			var (
				wg  sync.WaitGroup
				mu  sync.Mutex
				ids []string
			)
			for range 8 {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					res, err := coll.Embed(ctx, []string{"x", "y"})
					Expect(err).NotTo(HaveOccurred())
					mu.Lock()
					ids = append(ids, res.IDs...)
					mu.Unlock()
				}()
			}
			wg.Wait()

			Expect(ids).To(HaveLen(16))
			unique := map[string]struct{}{}
			for _, id := range ids {
				unique[id] = struct{}{}
			}
			Expect(unique).To(HaveLen(16))
			Expect(coll.Count(ctx)).To(Equal(16))
		})
	})

	Describe("Search", func() {
		BeforeEach(func() {
			_, err := coll.Embed(ctx, []string{"red shoes", "blue hat", "green scarf"})
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns a previously embedded text first with zero distance", func() {
			res, err := coll.Search(ctx, "red shoes", 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Query).To(Equal("red shoes"))
			Expect(res.TopK).To(Equal(1))
			Expect(res.Results).To(Equal([][]string{{"red shoes"}}))
			Expect(res.Scores).To(HaveLen(1))
			Expect(res.Scores[0][0]).To(BeNumerically("~", 0, 1e-6))
		})

		It("groups results for the single query", func() {
			res, err := coll.Search(ctx, "blue hat", 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Results).To(HaveLen(1))
			Expect(res.Results[0]).To(HaveLen(3))
			Expect(res.Results[0][0]).To(Equal("blue hat"))
			Expect(res.Scores[0]).To(HaveLen(3))
			Expect(res.Scores[0][0]).To(BeNumerically("<=", res.Scores[0][1]))
			Expect(res.Scores[0][1]).To(BeNumerically("<=", res.Scores[0][2]))
		})

		It("returns empty groups for a non-positive top_k", func() {
			res, err := coll.Search(ctx, "blue hat", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Results).To(Equal([][]string{{}}))
			Expect(res.Scores).To(Equal([][]float32{{}}))
		})

		It("surfaces embedder failures", func() {
			embedder.FailOn = "bad"
			_, err := coll.Search(ctx, "bad", 1)
			Expect(err).To(MatchError(embeddings.ErrEmbedding))
		})

		It("surfaces store failures", func() {
			driver.FailQuery = true
			_, err := coll.Search(ctx, "red shoes", 1)
			Expect(err).To(MatchError(testutils.ErrMockVector))
		})

		It("marshals to the grouped wire shape", func() {
			res, err := coll.Search(ctx, "red shoes", 1)
			Expect(err).NotTo(HaveOccurred())

			payload, err := json.Marshal(res)
			Expect(err).NotTo(HaveOccurred())

			var got map[string]any
			Expect(json.Unmarshal(payload, &got)).To(Succeed())
			Expect(got).To(HaveLen(4))
			Expect(got).To(HaveKeyWithValue("query", "red shoes"))
			Expect(got).To(HaveKeyWithValue("top_k", BeNumerically("==", 1)))
			Expect(got).To(HaveKeyWithValue("results", ConsistOf(ConsistOf("red shoes"))))
			Expect(got).To(HaveKey("scores"))
		})
	})

	Describe("Count", func() {
		It("is zero before any embed", func() {
			Expect(coll.Count(ctx)).To(BeZero())
		})

		It("surfaces store failures", func() {
			driver.FailCount = true
			_, err := coll.Count(ctx)
			Expect(err).To(MatchError(testutils.ErrMockVector))
		})
	})

	Describe("GetAll", func() {
		It("returns empty lists and null embeddings for an empty collection", func() {
			dump, err := coll.GetAll(ctx, false)
			Expect(err).NotTo(HaveOccurred())

			payload, err := json.Marshal(dump)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(payload)).To(MatchJSON(`{"ids":[],"embeddings":null,"documents":[],"metadatas":[],"included":["metadatas","documents"]}`))
		})

		It("returns every embedded document", func() {
			first, err := coll.Embed(ctx, []string{"red shoes", "blue hat"})
			Expect(err).NotTo(HaveOccurred())
			second, err := coll.Embed(ctx, []string{"green scarf"})
			Expect(err).NotTo(HaveOccurred())

			dump, err := coll.GetAll(ctx, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(dump.IDs).To(Equal(append(first.IDs, second.IDs...)))
			Expect(dump.Documents).To(Equal([]string{"red shoes", "blue hat", "green scarf"}))
			Expect(dump.Metadatas[2]).To(HaveKeyWithValue("text", "green scarf"))
			Expect(dump.Embeddings).To(BeNil())
		})

		It("includes embeddings on request", func() {
			_, err := coll.Embed(ctx, []string{"red shoes"})
			Expect(err).NotTo(HaveOccurred())

			dump, err := coll.GetAll(ctx, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(dump.Embeddings).To(Equal([][]float32{testutils.HashEmbedding("red shoes")}))
			Expect(dump.Included).To(ContainElement("embeddings"))
		})

		It("surfaces store failures", func() {
			driver.FailList = true
			_, err := coll.GetAll(ctx, false)
			Expect(err).To(MatchError(testutils.ErrMockVector))
		})
	})

	Describe("Close", func() {
		It("closes the publisher and the driver", func() {
			Expect(coll.Close()).To(Succeed())
			Expect(publisher.IsClosed()).To(BeTrue())
			Expect(driver.Closed).To(BeTrue())
		})
	})
})
