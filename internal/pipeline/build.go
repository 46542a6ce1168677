package pipeline

import (
	"context"
	"fmt"

	"brand-video-analyzer/internal"
	"brand-video-analyzer/internal/archive"
	"brand-video-analyzer/internal/backend"
	"brand-video-analyzer/internal/cache"
	"brand-video-analyzer/internal/ingest"
	"brand-video-analyzer/internal/logging"
	"brand-video-analyzer/internal/resolver"
)

// Build wires a complete analyzer from configuration: vendor adapter, URL
// resolver, ingest coordinator, cache (if any backend is live) and the
// optional S3 archive.
func Build(ctx context.Context, cfg internal.Config, log *logging.Logger) (*Analyzer, error) {
	var b backend.VideoBackend
	switch cfg.Provider {
	case "gemini":
		g, err := backend.NewGemini(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		b = g
	default:
		b = backend.NewTwelveLabs(cfg, log)
	}
	log.Infof("pipeline: using %s backend", b.Name())

	res := resolver.New(cfg, log)
	poller := ingest.NewPoller(b, cfg.PollInterval, cfg.PollTimeout, log)
	coord := ingest.NewCoordinator(cfg, b, res, poller, log)

	store := cache.Connect(ctx, cfg, log)
	cch := cache.New(store, cfg.CachePrefix, log)

	var arch *archive.Archive
	if cfg.ArchiveEnabled() {
		a, err := archive.New(cfg, log)
		if err != nil {
			return nil, fmt.Errorf("archive init: %w", err)
		}
		arch = a
	}

	return NewAnalyzer(cfg, b, coord, cch, arch, log), nil
}
