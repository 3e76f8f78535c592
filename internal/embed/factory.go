package embed

import (
	"log/slog"

	"github.com/semidx/semidx/internal/config"
)

// New builds the embedding client described by cfg: the HTTP client
// against the configured service, or the static embedder when offline
// mode is set. Either way the client is wrapped with the LRU cache.
func New(cfg config.EmbeddingConfig, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}

	var inner Client
	if cfg.Offline {
		logger.Info("using static embedder", "dimensions", cfg.Dimensions)
		inner = NewStaticEmbedder(cfg.Dimensions)
	} else {
		logger.Debug("using http embedder",
			"endpoint", cfg.Endpoint,
			"model", cfg.Model,
			"dimensions", cfg.Dimensions)
		inner = NewHTTPEmbedder(cfg.Endpoint, cfg.Model, cfg.Dimensions,
			WithTimeout(cfg.Timeout))
	}
	return NewCachedClient(inner, cfg.CacheSize)
}
