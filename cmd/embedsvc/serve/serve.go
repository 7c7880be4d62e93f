// Package servecmder provides the serve command that runs the embedsvc API server.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/embedsvc/api"
	"github.com/papercomputeco/embedsvc/pkg/collection"
	"github.com/papercomputeco/embedsvc/pkg/config"
	embeddingutils "github.com/papercomputeco/embedsvc/pkg/embeddings/utils"
	eventstreamutils "github.com/papercomputeco/embedsvc/pkg/eventstream/utils"
	"github.com/papercomputeco/embedsvc/pkg/logger"
	vectorutils "github.com/papercomputeco/embedsvc/pkg/vector/utils"
)

type ServeCommander struct {
	listen    string
	staticDir string
	mcp       bool

	collection string

	vectorStoreProvider string
	vectorStoreTarget   string

	embeddingProvider   string
	embeddingTarget     string
	embeddingModel      string
	embeddingDimensions uint
	embeddingAPIKey     string

	eventStreamProvider string
	eventBrokers        string
	eventTopic          string

	debug    bool
	jsonLogs bool
	logFile  string
	logger   *slog.Logger
}

const serveLongDesc string = `Run the embedsvc API server.

The server embeds texts with the configured embedding provider, stores them
in the configured vector store and answers similarity searches:
  POST /embed      embed and store texts
  GET  /search     nearest neighbours of a query
  GET  /count      number of stored documents
  GET  /get_all    dump the collection
  /mcp             MCP tools (embed, search, count)

Vector store providers: memory (default), chroma, sqlite, qdrant, pgvector.
Embedding providers: ollama (default), openai.
Event stream providers: none (default), kafka.

Examples:
  embedsvc serve
  embedsvc serve --listen :9000 --static-dir ./web
  embedsvc serve --vector-store-provider sqlite --vector-store-target ./embedsvc.db
  embedsvc serve --embedding-provider openai --embedding-model text-embedding-3-small`

const serveShortDesc string = "Run the embedsvc API server"

var serveFlags = []string{
	config.FlagAPIListen,
	config.FlagStaticDir,
	config.FlagMCP,
	config.FlagCollection,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagEventStreamProv,
	config.FlagEventBrokers,
	config.FlagEventTopic,
}

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, serveFlags)

			cmder.listen = v.GetString("api.listen")
			cmder.staticDir = v.GetString("api.static_dir")
			cmder.mcp = v.GetBool("api.mcp")
			cmder.collection = v.GetString("collection.name")
			cmder.vectorStoreProvider = v.GetString("vector_store.provider")
			cmder.vectorStoreTarget = v.GetString("vector_store.target")
			cmder.embeddingProvider = v.GetString("embedding.provider")
			cmder.embeddingTarget = v.GetString("embedding.target")
			cmder.embeddingModel = v.GetString("embedding.model")
			cmder.embeddingDimensions = v.GetUint("embedding.dimensions")
			cmder.embeddingAPIKey = v.GetString("embedding.api_key")
			cmder.eventStreamProvider = v.GetString("eventstream.provider")
			cmder.eventBrokers = v.GetString("eventstream.brokers")
			cmder.eventTopic = v.GetString("eventstream.topic")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagStaticDir, &cmder.staticDir)
	config.AddBoolFlag(cmd, config.Flags, config.FlagMCP, &cmder.mcp)
	config.AddStringFlag(cmd, config.Flags, config.FlagCollection, &cmder.collection)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreProv, &cmder.vectorStoreProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreTgt, &cmder.vectorStoreTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingProv, &cmder.embeddingProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingTgt, &cmder.embeddingTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &cmder.embeddingDimensions)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventStreamProv, &cmder.eventStreamProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventBrokers, &cmder.eventBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventTopic, &cmder.eventTopic)

	cmd.Flags().BoolVar(&cmder.jsonLogs, "json-logs", false, "Write logs as JSON")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")

	return cmd
}

func (c *ServeCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	closeLog, err := c.setupLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	coll, err := c.newCollection(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := coll.Close(); err != nil {
			c.logger.Warn("closing collection", "error", err)
		}
	}()

	server, err := api.NewServer(api.Config{
		ListenAddr: c.listen,
		StaticDir:  c.staticDir,
		MCP:        c.mcp,
	}, coll, c.logger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return server.Shutdown()
	}
}

// setupLogger picks pretty output on a terminal, JSON with --json-logs, and
// fans out to a JSON log file when --log-file is set.
func (c *ServeCommander) setupLogger() (func(), error) {
	pretty := !c.jsonLogs && term.IsTerminal(int(os.Stdout.Fd()))
	stdout := logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(pretty),
		logger.WithJSON(c.jsonLogs),
	)

	if c.logFile == "" {
		c.logger = stdout
		return func() {}, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	c.logger = logger.Multi(stdout, logger.New(
		logger.WithDebug(c.debug),
		logger.WithJSON(true),
		logger.WithWriter(f),
	))
	return func() { closeQuietly(f) }, nil
}

func (c *ServeCommander) newCollection(ctx context.Context) (*collection.Collection, error) {
	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: c.embeddingProvider,
		TargetURL:    c.embeddingTarget,
		Model:        c.embeddingModel,
		Dimensions:   c.embeddingDimensions,
		APIKey:       c.embeddingAPIKey,
		Logger:       c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	c.logger.Info("using embedder",
		"provider", c.embeddingProvider,
		"model", c.embeddingModel,
	)

	driver, err := vectorutils.NewVectorDriver(ctx, &vectorutils.NewVectorDriverOpts{
		ProviderType:   c.vectorStoreProvider,
		Target:         c.vectorStoreTarget,
		CollectionName: c.collection,
		Dimensions:     c.embeddingDimensions,
		Logger:         c.logger,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("creating vector driver: %w", err), embedder.Close())
	}
	c.logger.Info("using vector store", "provider", c.vectorStoreProvider)

	publisher, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		ProviderType: c.eventStreamProvider,
		Brokers:      c.eventBrokers,
		Topic:        c.eventTopic,
		Logger:       c.logger,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("creating event publisher: %w", err), driver.Close(), embedder.Close())
	}

	coll, err := collection.New(collection.Config{
		Name:      c.collection,
		Embedder:  embedder,
		Driver:    driver,
		Publisher: publisher,
		Logger:    c.logger,
	})
	if err != nil {
		return nil, errors.Join(err, publisher.Close(), driver.Close(), embedder.Close())
	}
	return coll, nil
}

func closeQuietly(c io.Closer) {
	_ = c.Close()
}
