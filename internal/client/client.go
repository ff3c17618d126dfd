package client

import (
	"net/http"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/recipes/internal/logger"
)

// Config holds the API client configuration
type Config struct {
	ServerURL string

	// CacheDir enables a disk HTTP cache when set.
	CacheDir string

	// DisableCache skips the HTTP cache entirely.
	DisableCache bool

	Logger zerolog.Logger
}

// NewHTTPClient builds the client the gateway sends requests with.
//
// No client timeout is set: a request resolves, fails at the transport, or is
// cancelled through its context.
func NewHTTPClient(cfg Config) *http.Client {
	var transport http.RoundTripper = http.DefaultTransport.(*http.Transport).Clone()

	// Log below the cache so only real network round trips are recorded.
	transport = logger.NewTransport(cfg.Logger, transport)

	if !cfg.DisableCache {
		transport = newCachingTransport(cfg.CacheDir, transport)
	}

	return &http.Client{Transport: transport}
}

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		ServerURL: "http://localhost:8080",
		Logger:    zerolog.Nop(),
	}
}
