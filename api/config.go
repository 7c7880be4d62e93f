// Package api provides the embedsvc HTTP API: text embedding, similarity
// search and collection inspection.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8000")
	ListenAddr string

	// StaticDir is served at /static, and its index.html at /
	StaticDir string

	// MCP mounts the MCP tool server at /mcp
	MCP bool
}
