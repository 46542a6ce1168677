// Package pipeline orchestrates one analysis request end to end: cache
// lookup, ingest (with fallbacks), readiness wait, schema-constrained
// generation, and cache/archive writes.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"brand-video-analyzer/internal"
	"brand-video-analyzer/internal/archive"
	"brand-video-analyzer/internal/backend"
	"brand-video-analyzer/internal/cache"
	"brand-video-analyzer/internal/ingest"
	"brand-video-analyzer/internal/logging"
	"brand-video-analyzer/internal/model"
	"brand-video-analyzer/internal/resolver"
	"brand-video-analyzer/internal/schema"
)

type Analyzer struct {
	cfg     internal.Config
	backend backend.VideoBackend
	coord   *ingest.Coordinator
	cache   *cache.Cache
	archive *archive.Archive // optional
	log     *logging.Logger
}

func NewAnalyzer(cfg internal.Config, b backend.VideoBackend, coord *ingest.Coordinator, cch *cache.Cache, arch *archive.Archive, log *logging.Logger) *Analyzer {
	return &Analyzer{cfg: cfg, backend: b, coord: coord, cache: cch, archive: arch, log: log}
}

// Analyze is the pipeline entrypoint: resolve the video reference to a
// backend video id (via cache or ingest), run the brand analysis, and cache
// the result. An existing video id always takes priority over URLs.
func (a *Analyzer) Analyze(ctx context.Context, req model.AnalysisRequest) (*model.Envelope, error) {
	if req.Brand == "" {
		return nil, fmt.Errorf("%w: brand is required", ErrInvalidInput)
	}
	if req.VideoID == "" && req.YouTubeURL == "" && req.VideoURL == "" {
		return nil, fmt.Errorf("%w: provide either video_id or youtube_url/video_url", ErrInvalidInput)
	}

	sourceURL := req.YouTubeURL
	if sourceURL == "" {
		sourceURL = req.VideoURL
	}

	// A YouTube id is the stable cache key even when the link arrived via
	// video_url. Direct media URLs have no durable identity and skip caching.
	var sourceID string
	if sourceURL != "" && resolver.IsYouTubeURL(sourceURL) {
		sourceID = resolver.ExtractVideoID(sourceURL)
	}

	if sourceID != "" && req.VideoID == "" {
		if env, ok := a.cache.GetAnalysis(ctx, sourceID, req.Brand); ok {
			a.log.Infof("cache: hit analysis for %s brand %q", sourceID, req.Brand)
			return env, nil
		}
	}

	videoID := req.VideoID
	indexID := a.cfg.IndexID
	if videoID == "" {
		var err error
		indexID, err = a.coord.EnsureIndex(ctx)
		if err != nil {
			return nil, err
		}

		if sourceID != "" {
			if mapped, ok := a.cache.GetMapping(ctx, sourceID); ok {
				a.log.Infof("cache: hit mapping %s -> %s", sourceID, mapped)
				videoID = mapped
			}
		}
		if videoID == "" {
			a.log.Infof("ingest: starting for %s", sourceURL)
			videoID, err = a.coord.Ingest(ctx, indexID, sourceURL, req.Metadata)
			if err != nil {
				return nil, err
			}
			if sourceID != "" {
				a.cache.PutMapping(ctx, sourceID, videoID)
			}
		}
	}

	env, err := a.AnalyzeVideo(ctx, videoID, indexID, req.Brand, sourceURL, req.Temperature, req.MaxTokens)
	if err != nil {
		return nil, err
	}

	// Degraded envelopes are returned but never cached: caching them would
	// mask upstream generation failures on retry.
	if env.Degraded() {
		a.log.Warnf("analysis degraded for video %s brand %q, not caching", videoID, req.Brand)
		return env, nil
	}
	if sourceID != "" {
		a.cache.PutAnalysis(ctx, sourceID, req.Brand, env)
		a.archive.Put(ctx, sourceID, req.Brand, env)
	} else {
		a.archive.Put(ctx, videoID, req.Brand, env)
	}
	return env, nil
}

// AnalyzeVideo runs the generation call on an already-indexed video and
// coerces the payload into the stable envelope. Payload problems degrade the
// envelope instead of failing it; only transport errors are returned.
func (a *Analyzer) AnalyzeVideo(ctx context.Context, videoID, indexID, brand, sourceURL string, temperature *float64, maxTokens *int) (*model.Envelope, error) {
	params := backend.AnalyzeParams{
		VideoID:     videoID,
		Prompt:      BuildPrompt(brand),
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
		SchemaHint:  schema.OutputSchema,
	}
	if temperature != nil {
		params.Temperature = *temperature
	}
	if maxTokens != nil {
		params.MaxTokens = *maxTokens
	}

	started := time.Now()
	gen, err := a.backend.Analyze(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("analyze call: %w", err)
	}
	elapsed := time.Since(started)

	out, detail := schema.Parse(gen.Data)
	env := &model.Envelope{
		Data: out,
		Meta: model.Meta{
			Provider:      a.backend.Name(),
			Brand:         brand,
			VideoID:       videoID,
			IndexID:       indexID,
			SourceURL:     sourceURL,
			CreatedAt:     time.Now().UTC(),
			ElapsedMS:     elapsed.Milliseconds(),
			SchemaVersion: model.SchemaVersion,
			TraceID:       gen.ID,
		},
		Errors: []model.ErrorDetail{},
	}
	if env.Meta.TraceID == "" {
		env.Meta.TraceID = uuid.NewString()
	}
	if detail != nil {
		env.Errors = append(env.Errors, *detail)
	}
	env.Normalize()
	return env, nil
}
