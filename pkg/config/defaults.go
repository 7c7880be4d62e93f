package config

const (
	defaultAPIListen = ":8000"
	defaultStaticDir = "../search-service"

	defaultClientAPITarget = "http://localhost:8000"

	defaultCollectionName = "test-products"

	defaultVectorProvider = "memory"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "all-minilm"
	defaultEmbeddingDimensions = 384

	defaultEventStreamProvider = "none"
	defaultEventStreamTopic    = "embedsvc.documents"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	mcp := true
	return &Config{
		Version: CurrentV,
		API: APIConfig{
			Listen:    defaultAPIListen,
			StaticDir: defaultStaticDir,
			MCP:       &mcp,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		Collection: CollectionConfig{
			Name: defaultCollectionName,
		},
		VectorStore: VectorStoreConfig{
			Provider: defaultVectorProvider,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventStreamProvider,
			Topic:    defaultEventStreamTopic,
		},
	}
}
