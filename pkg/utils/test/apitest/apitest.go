// Package apitest runs a real embedsvc API server over httptest, backed by
// mock collaborators, for client and CLI tests.
package apitest

import (
	"net/http/httptest"

	"github.com/papercomputeco/embedsvc/api"
	"github.com/papercomputeco/embedsvc/pkg/collection"
	"github.com/papercomputeco/embedsvc/pkg/logger"
	testutils "github.com/papercomputeco/embedsvc/pkg/utils/test"
)

// Server is a running test API server and its mock collaborators.
type Server struct {
	*httptest.Server

	Collection *collection.Collection
	Embedder   *testutils.MockEmbedder
	Driver     *testutils.MockVectorDriver
	Publisher  *testutils.MockPublisher
}

// NewServer starts a server. Callers must Close it.
func NewServer() (*Server, error) {
	s := &Server{
		Embedder:  testutils.NewMockEmbedder(),
		Driver:    testutils.NewMockVectorDriver(),
		Publisher: testutils.NewMockPublisher(),
	}

	coll, err := collection.New(collection.Config{
		Embedder:  s.Embedder,
		Driver:    s.Driver,
		Publisher: s.Publisher,
		Logger:    logger.Nop(),
	})
	if err != nil {
		return nil, err
	}
	s.Collection = coll

	server, err := api.NewServer(api.Config{ListenAddr: ":0"}, coll, logger.Nop())
	if err != nil {
		return nil, err
	}

	s.Server = httptest.NewServer(server.Handler())
	return s, nil
}
