package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/embedsvc/api/mcp"
	"github.com/papercomputeco/embedsvc/pkg/collection"
)

// Server is the embedsvc API server
type Server struct {
	config     Config
	collection *collection.Collection
	logger     *slog.Logger
	validate   *validator.Validate
	app        *fiber.App
}

// NewServer creates a new API server.
// The collection is injected to allow sharing with other components
// (e.g., the MCP server).
func NewServer(config Config, coll *collection.Collection, logger *slog.Logger) (*Server, error) {
	if coll == nil {
		return nil, errors.New("collection is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	s := &Server{
		config:     config,
		collection: coll,
		logger:     logger,
		validate:   validator.New(),
		app:        app,
	}

	app.Get("/ping", s.handlePing)
	app.Post("/embed", s.handleEmbed)
	app.Get("/search", s.handleSearch)
	app.Get("/count", s.handleCount)
	app.Get("/get_all", s.handleGetAll)

	if config.MCP {
		mcpServer, err := mcp.NewServer(mcp.Config{
			Collection: coll,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create MCP server: %w", err)
		}
		app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))
	}

	if config.StaticDir != "" {
		app.Get("/", s.handleIndex)
		app.Static("/static", config.StaticDir)
	}

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
		"collection", s.collection.Name(),
		"mcp", s.config.MCP,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Handler exposes the server as a net/http handler, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return adaptor.FiberApp(s.app)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// errorHandler renders framework errors (unknown routes, missing static
// files) with the same JSON body as handler errors.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(ErrorResponse{Error: err.Error()})
}
