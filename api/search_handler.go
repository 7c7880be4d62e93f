package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

const defaultTopK = 5

// handleSearch handles GET /search requests.
// Query parameters:
//   - query (required, may be empty): the search query text
//   - top_k (optional, default 5): number of results, passed through unchecked
func (s *Server) handleSearch(c *fiber.Ctx) error {
	args := c.Context().QueryArgs()
	if !args.Has("query") {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{
			Error: "query parameter is required",
		})
	}
	query := c.Query("query")

	topK := defaultTopK
	if args.Has("top_k") {
		parsed, err := strconv.Atoi(c.Query("top_k"))
		if err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{
				Error: "top_k must be an integer",
			})
		}
		topK = parsed
	}

	res, err := s.collection.Search(c.UserContext(), query, topK)
	if err != nil {
		s.logger.Error("search failed", "query", query, "top_k", topK, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error: err.Error(),
		})
	}

	return c.JSON(res)
}
