package memory_test

import (
	"context"
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/embedsvc/pkg/logger"
	"github.com/papercomputeco/embedsvc/pkg/vector"
	"github.com/papercomputeco/embedsvc/pkg/vector/memory"
)

func doc(id, text string, emb ...float32) vector.Document {
	return vector.Document{
		ID:        id,
		Text:      text,
		Embedding: emb,
		Metadata:  vector.TextMetadata(text),
	}
}

var _ = Describe("Driver", func() {
	var (
		driver *memory.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		driver = memory.NewDriver(logger.Nop())
		ctx = context.Background()
	})

	Describe("Interface compliance", func() {
		It("implements vector.Driver", func() {
			var _ vector.Driver = (*memory.Driver)(nil)
		})
	})

	Describe("Count", func() {
		It("starts at zero", func() {
			n, err := driver.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(0))
		})

		It("grows by the number of added documents", func() {
			Expect(driver.Add(ctx, []vector.Document{
				doc("a", "red shoes", 1, 0),
				doc("b", "blue hat", 0, 1),
			})).To(Succeed())

			n, err := driver.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))
		})
	})

	Describe("Add", func() {
		It("does nothing for an empty batch", func() {
			Expect(driver.Add(ctx, nil)).To(Succeed())
		})

		It("replaces a document with an existing id", func() {
			Expect(driver.Add(ctx, []vector.Document{doc("a", "old", 1, 1)})).To(Succeed())
			Expect(driver.Add(ctx, []vector.Document{doc("a", "new", 2, 2)})).To(Succeed())

			docs, err := driver.Get(ctx, []string{"a"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].Text).To(Equal("new"))

			n, _ := driver.Count(ctx)
			Expect(n).To(Equal(1))
		})

		It("rejects the whole batch on a dimension mismatch", func() {
			Expect(driver.Add(ctx, []vector.Document{doc("a", "x", 1, 1)})).To(Succeed())

			err := driver.Add(ctx, []vector.Document{
				doc("b", "y", 1, 1),
				doc("c", "z", 1, 1, 1),
			})
			Expect(err).To(MatchError(vector.ErrDimensionMismatch))

			n, _ := driver.Count(ctx)
			Expect(n).To(Equal(1))
		})

		It("rejects documents without an id", func() {
			err := driver.Add(ctx, []vector.Document{doc("", "x", 1)})
			Expect(err).To(HaveOccurred())
		})

		It("does not alias caller-owned embeddings", func() {
			d := doc("a", "x", 1, 2)
			Expect(driver.Add(ctx, []vector.Document{d})).To(Succeed())
			d.Embedding[0] = 99

			docs, _ := driver.Get(ctx, []string{"a"})
			Expect(docs[0].Embedding).To(Equal([]float32{1, 2}))
		})
	})

	Describe("Query", func() {
		BeforeEach(func() {
			Expect(driver.Add(ctx, []vector.Document{
				doc("a", "red shoes", 1, 0),
				doc("b", "blue hat", 0, 1),
				doc("c", "red hat", 0.9, 0.1),
			})).To(Succeed())
		})

		It("returns the nearest documents closest first", func() {
			results, err := driver.Query(ctx, []float32{1, 0}, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(results[0].ID).To(Equal("a"))
			Expect(results[0].Distance).To(BeNumerically("~", 0, 1e-6))
			Expect(results[1].ID).To(Equal("c"))
			Expect(results[1].Distance).To(BeNumerically("~", 0.02, 1e-5))
		})

		It("uses squared euclidean distance", func() {
			results, err := driver.Query(ctx, []float32{1, 0}, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(results[2].ID).To(Equal("b"))
			Expect(results[2].Distance).To(BeNumerically("~", 2, 1e-6))
		})

		It("returns everything when topK exceeds the collection size", func() {
			results, err := driver.Query(ctx, []float32{1, 0}, 50)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))
		})

		It("returns no results for a non-positive topK", func() {
			results, err := driver.Query(ctx, []float32{1, 0}, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())

			results, err = driver.Query(ctx, []float32{1, 0}, -3)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())
		})

		It("keeps insertion order for ties", func() {
			Expect(driver.Add(ctx, []vector.Document{doc("d", "dup", 1, 0)})).To(Succeed())

			results, err := driver.Query(ctx, []float32{1, 0}, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].ID).To(Equal("a"))
			Expect(results[1].ID).To(Equal("d"))
		})

		It("errors on a query of the wrong dimension", func() {
			_, err := driver.Query(ctx, []float32{1, 0, 0}, 1)
			Expect(err).To(MatchError(vector.ErrDimensionMismatch))
		})
	})

	Describe("Query on an empty store", func() {
		It("returns no results", func() {
			results, err := driver.Query(ctx, []float32{1, 2, 3}, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())
		})
	})

	Describe("List", func() {
		It("returns every document in insertion order", func() {
			Expect(driver.Add(ctx, []vector.Document{doc("b", "two", 2), doc("a", "one", 1)})).To(Succeed())
			Expect(driver.Add(ctx, []vector.Document{doc("c", "three", 3)})).To(Succeed())

			docs, err := driver.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			ids := []string{}
			for _, d := range docs {
				ids = append(ids, d.ID)
			}
			Expect(ids).To(Equal([]string{"b", "a", "c"}))
			Expect(docs[0].Metadata).To(HaveKeyWithValue(vector.MetadataTextKey, "two"))
		})
	})

	Describe("Get", func() {
		It("skips unknown ids", func() {
			Expect(driver.Add(ctx, []vector.Document{doc("a", "one", 1)})).To(Succeed())

			docs, err := driver.Get(ctx, []string{"missing", "a"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].ID).To(Equal("a"))
		})
	})

	Describe("concurrent use", func() {
		It("counts every document added from many goroutines", func() {
			var wg sync.WaitGroup
			for i := range 20 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer GinkgoRecover()
					id := fmt.Sprintf("doc-%d", i)
					Expect(driver.Add(ctx, []vector.Document{doc(id, id, float32(i), 1)})).To(Succeed())
					_, err := driver.Query(ctx, []float32{0, 1}, 3)
					Expect(err).NotTo(HaveOccurred())
				}()
			}
			wg.Wait()

			n, err := driver.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(20))
		})
	})
})
