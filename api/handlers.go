package api

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/embedsvc/pkg/collection"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// EmbedRequest is the body of POST /embed.
type EmbedRequest struct {
	Texts []string `json:"texts" validate:"required,min=1"`
}

// CountResponse is the body of GET /count.
type CountResponse struct {
	Count int `json:"count"`
}

var validIncludes = []string{"documents", "metadatas", "embeddings"}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleIndex serves the front-end entry page.
func (s *Server) handleIndex(c *fiber.Ctx) error {
	return c.SendFile(filepath.Join(s.config.StaticDir, "index.html"))
}

// handleEmbed handles POST /embed: every text is embedded in one model call
// and stored under a fresh id.
func (s *Server) handleEmbed(c *fiber.Ctx) error {
	var req EmbedRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{
			Error: "invalid request body: " + err.Error(),
		})
	}
	if err := s.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{
			Error: "texts must be a non-empty list of strings",
		})
	}

	res, err := s.collection.Embed(c.UserContext(), req.Texts)
	if err != nil {
		if errors.Is(err, collection.ErrNoTexts) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{Error: err.Error()})
		}
		s.logger.Error("embed failed", "texts", len(req.Texts), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.JSON(res)
}

// handleCount returns the number of stored documents.
func (s *Server) handleCount(c *fiber.Ctx) error {
	n, err := s.collection.Count(c.UserContext())
	if err != nil {
		s.logger.Error("count failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}
	return c.JSON(CountResponse{Count: n})
}

// handleGetAll dumps the collection. The include query parameter may be
// repeated or comma separated; only "embeddings" changes the output.
func (s *Server) handleGetAll(c *fiber.Ctx) error {
	includeEmbeddings := false
	for _, raw := range c.Context().QueryArgs().PeekMulti("include") {
		for field := range strings.SplitSeq(string(raw), ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			if !slices.Contains(validIncludes, field) {
				return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{
					Error: "include must be one of: " + strings.Join(validIncludes, ", "),
				})
			}
			if field == "embeddings" {
				includeEmbeddings = true
			}
		}
	}

	dump, err := s.collection.GetAll(c.UserContext(), includeEmbeddings)
	if err != nil {
		s.logger.Error("get_all failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dump)
}
