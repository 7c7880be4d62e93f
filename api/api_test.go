package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/embedsvc/pkg/collection"
	"github.com/papercomputeco/embedsvc/pkg/logger"
	testutils "github.com/papercomputeco/embedsvc/pkg/utils/test"
)

type searchBody struct {
	Query   string      `json:"query"`
	TopK    int         `json:"top_k"`
	Results [][]string  `json:"results"`
	Scores  [][]float32 `json:"scores"`
}

type embedBody struct {
	Embeddings [][]float32 `json:"embeddings"`
	IDs        []string    `json:"ids"`
}

type dumpBody struct {
	IDs        []string         `json:"ids"`
	Embeddings [][]float32      `json:"embeddings"`
	Documents  []string         `json:"documents"`
	Metadatas  []map[string]any `json:"metadatas"`
	Included   []string         `json:"included"`
}

var _ = Describe("Server", func() {
	var (
		server    *Server
		driver    *testutils.MockVectorDriver
		embedder  *testutils.MockEmbedder
		publisher *testutils.MockPublisher
		staticDir string
	)

	do := func(req *http.Request) (*http.Response, []byte) {
		resp, err := server.app.Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		return resp, body
	}

	get := func(target string) (*http.Response, []byte) {
		req, err := http.NewRequest(http.MethodGet, target, nil)
		Expect(err).NotTo(HaveOccurred())
		return do(req)
	}

	postEmbed := func(body string) (*http.Response, []byte) {
		req, err := http.NewRequest(http.MethodPost, "/embed", strings.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", "application/json")
		return do(req)
	}

	embed := func(texts ...string) embedBody {
		payload, err := json.Marshal(map[string]any{"texts": texts})
		Expect(err).NotTo(HaveOccurred())
		resp, body := postEmbed(string(payload))
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK), string(body))

		var out embedBody
		Expect(json.Unmarshal(body, &out)).To(Succeed())
		return out
	}

	count := func() int {
		resp, body := get("/count")
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		var out CountResponse
		Expect(json.Unmarshal(body, &out)).To(Succeed())
		return out.Count
	}

	BeforeEach(func() {
		driver = testutils.NewMockVectorDriver()
		embedder = testutils.NewMockEmbedder()
		publisher = testutils.NewMockPublisher()

		staticDir = GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(staticDir, "index.html"), []byte("<h1>products</h1>"), 0o600)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(staticDir, "app.js"), []byte("console.log(1)"), 0o600)).To(Succeed())

		coll, err := collection.New(collection.Config{
			Embedder:  embedder,
			Driver:    driver,
			Publisher: publisher,
			Logger:    logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())

		server, err = NewServer(Config{ListenAddr: ":0", StaticDir: staticDir, MCP: true}, coll, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewServer", func() {
		It("requires a collection", func() {
			_, err := NewServer(Config{}, nil, logger.Nop())
			Expect(err).To(MatchError(ContainSubstring("collection is required")))
		})
	})

	Describe("GET /ping", func() {
		It("returns pong", func() {
			resp, body := get("/ping")
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(string(body)).To(Equal(`"pong"`))
		})
	})

	Describe("static files", func() {
		It("serves index.html at the root", func() {
			resp, body := get("/")
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(string(body)).To(ContainSubstring("products"))
		})

		It("serves assets under /static", func() {
			resp, body := get("/static/app.js")
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(string(body)).To(Equal("console.log(1)"))
		})

		It("returns 404 for a missing asset", func() {
			resp, _ := get("/static/missing.css")
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})

		It("returns 404 for the root when index.html is missing", func() {
			Expect(os.Remove(filepath.Join(staticDir, "index.html"))).To(Succeed())
			resp, _ := get("/")
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})
	})

	Describe("POST /embed", func() {
		It("returns one embedding and one id per text", func() {
			out := embed("red shoes", "blue hat", "")
			Expect(out.IDs).To(HaveLen(3))
			Expect(out.Embeddings).To(HaveLen(3))
			Expect(out.Embeddings[0]).To(Equal(testutils.HashEmbedding("red shoes")))
			Expect(count()).To(Equal(3))
		})

		It("embeds the whole batch in one model call", func() {
			embed("a", "b", "c", "d")
			Expect(embedder.Calls()).To(Equal(1))
		})

		It("never reuses ids across calls", func() {
			first := embed("red shoes", "red shoes")
			second := embed("red shoes")

			seen := map[string]bool{}
			for _, id := range append(first.IDs, second.IDs...) {
				Expect(seen).NotTo(HaveKey(id))
				seen[id] = true
			}
		})

		It("publishes a documents added event", func() {
			out := embed("red shoes")
			Expect(publisher.Events()).To(HaveLen(1))
			Expect(publisher.Events()[0].IDs).To(Equal(out.IDs))
		})

		DescribeTable("rejects invalid bodies with 422",
			func(body string) {
				resp, raw := postEmbed(body)
				Expect(resp.StatusCode).To(Equal(fiber.StatusUnprocessableEntity))

				var errResp ErrorResponse
				Expect(json.Unmarshal(raw, &errResp)).To(Succeed())
				Expect(errResp.Error).NotTo(BeEmpty())
				Expect(count()).To(Equal(0))
			},
			Entry("malformed JSON", `{"texts": [`),
			Entry("missing texts", `{}`),
			Entry("empty texts", `{"texts": []}`),
			Entry("wrong type", `{"texts": "red shoes"}`),
			Entry("non-string items", `{"texts": [1, 2]}`),
		)

		It("returns 500 when the embedder fails", func() {
			embedder.FailOn = "boom"
			resp, raw := postEmbed(`{"texts": ["fine", "boom"]}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusInternalServerError))
			Expect(string(raw)).To(ContainSubstring("error"))
			Expect(count()).To(Equal(0))
		})

		It("returns 500 when the store fails", func() {
			driver.FailAdd = true
			resp, _ := postEmbed(`{"texts": ["red shoes"]}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusInternalServerError))
		})
	})

	Describe("GET /search", func() {
		search := func(params url.Values) (*http.Response, searchBody) {
			resp, raw := get("/search?" + params.Encode())
			var out searchBody
			if resp.StatusCode == fiber.StatusOK {
				Expect(json.Unmarshal(raw, &out)).To(Succeed())
			}
			return resp, out
		}

		BeforeEach(func() {
			embed("red shoes", "blue hat", "green socks", "yellow scarf", "black belt", "white gloves")
		})

		It("returns the embedded text first for k = 1", func() {
			resp, out := search(url.Values{"query": {"red shoes"}, "top_k": {"1"}})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(out.Query).To(Equal("red shoes"))
			Expect(out.TopK).To(Equal(1))
			Expect(out.Results).To(Equal([][]string{{"red shoes"}}))
			Expect(out.Scores).To(HaveLen(1))
			Expect(out.Scores[0][0]).To(BeNumerically("~", 0, 1e-6))
		})

		It("defaults top_k to 5", func() {
			resp, out := search(url.Values{"query": {"blue hat"}})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(out.TopK).To(Equal(5))
			Expect(out.Results[0]).To(HaveLen(5))
			Expect(out.Results[0][0]).To(Equal("blue hat"))
		})

		It("orders scores nearest first", func() {
			_, out := search(url.Values{"query": {"green socks"}, "top_k": {"6"}})
			for i := 1; i < len(out.Scores[0]); i++ {
				Expect(out.Scores[0][i]).To(BeNumerically(">=", out.Scores[0][i-1]))
			}
		})

		It("returns empty groups for non-positive top_k", func() {
			resp, out := search(url.Values{"query": {"red shoes"}, "top_k": {"0"}})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(out.Results).To(Equal([][]string{{}}))
			Expect(out.Scores).To(Equal([][]float32{{}}))
		})

		It("accepts an empty query", func() {
			resp, _ := search(url.Values{"query": {""}})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		})

		It("returns 422 when query is missing", func() {
			resp, _ := get("/search?top_k=3")
			Expect(resp.StatusCode).To(Equal(fiber.StatusUnprocessableEntity))
		})

		It("returns 422 for a non-integer top_k", func() {
			resp, _ := search(url.Values{"query": {"red shoes"}, "top_k": {"five"}})
			Expect(resp.StatusCode).To(Equal(fiber.StatusUnprocessableEntity))
		})

		It("returns 500 when the store fails", func() {
			driver.FailQuery = true
			resp, _ := search(url.Values{"query": {"red shoes"}})
			Expect(resp.StatusCode).To(Equal(fiber.StatusInternalServerError))
		})
	})

	Describe("GET /count", func() {
		It("is zero before any embed", func() {
			Expect(count()).To(Equal(0))
		})

		It("tracks the cumulative total", func() {
			embed("a", "b")
			embed("c")
			Expect(count()).To(Equal(3))
		})

		It("returns 500 when the store fails", func() {
			driver.FailCount = true
			resp, _ := get("/count")
			Expect(resp.StatusCode).To(Equal(fiber.StatusInternalServerError))
		})
	})

	Describe("GET /get_all", func() {
		It("dumps documents and metadatas by default", func() {
			out := embed("red shoes", "blue hat")
			embed("green socks")

			resp, raw := get("/get_all")
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(string(raw)).To(ContainSubstring(`"embeddings":null`))

			var dump dumpBody
			Expect(json.Unmarshal(raw, &dump)).To(Succeed())
			Expect(dump.IDs).To(HaveLen(3))
			Expect(dump.IDs).To(ContainElements(out.IDs))
			Expect(dump.Documents).To(ConsistOf("red shoes", "blue hat", "green socks"))
			Expect(dump.Metadatas).To(ContainElement(HaveKeyWithValue("text", "blue hat")))
			Expect(dump.Included).To(ConsistOf("metadatas", "documents"))
		})

		It("includes embeddings on request", func() {
			embed("red shoes")

			resp, raw := get("/get_all?include=documents,embeddings")
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var dump dumpBody
			Expect(json.Unmarshal(raw, &dump)).To(Succeed())
			Expect(dump.Embeddings).To(Equal([][]float32{testutils.HashEmbedding("red shoes")}))
			Expect(dump.Included).To(ContainElement("embeddings"))
		})

		It("returns empty lists for an empty collection", func() {
			_, raw := get("/get_all")
			var dump dumpBody
			Expect(json.Unmarshal(raw, &dump)).To(Succeed())
			Expect(dump.IDs).To(BeEmpty())
			Expect(dump.Documents).To(BeEmpty())
		})

		It("returns 422 for an unknown include", func() {
			resp, _ := get("/get_all?include=distances")
			Expect(resp.StatusCode).To(Equal(fiber.StatusUnprocessableEntity))
		})

		It("returns 500 when the store fails", func() {
			driver.FailList = true
			resp, _ := get("/get_all")
			Expect(resp.StatusCode).To(Equal(fiber.StatusInternalServerError))
		})
	})

	Describe("/mcp", func() {
		It("is mounted when enabled", func() {
			req, err := http.NewRequest(http.MethodPost, "/mcp", strings.NewReader(""))
			Expect(err).NotTo(HaveOccurred())
			resp, _ := do(req)
			Expect(resp.StatusCode).NotTo(Equal(fiber.StatusNotFound))
		})
	})
})
