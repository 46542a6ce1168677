// Package cache is the two-tier idempotent result cache: a mapping tier
// (source id -> backend video id) and an analysis tier ((source id, brand) ->
// serialized envelope). It sits on a deliberately minimal key-value Store so
// any backend can serve it; a missing backend disables caching, never the
// pipeline.
package cache

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"brand-video-analyzer/internal/logging"
	"brand-video-analyzer/internal/model"
)

// Store is the minimal backend contract: optional text out, success flag in.
// Implementations swallow transport errors; the cache treats any failure as
// a miss.
type Store interface {
	Name() string
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string) bool
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeBrand makes the analysis key space tolerant to case and
// punctuation variation: lowercase, collapse non-alphanumeric runs to one
// underscore, trim.
func NormalizeBrand(brand string) string {
	return strings.Trim(nonAlnum.ReplaceAllString(strings.ToLower(brand), "_"), "_")
}

type Cache struct {
	store  Store
	prefix string
	log    *logging.Logger
}

// New builds a cache over the given store. A nil store yields a disabled
// cache: all reads miss, all writes are no-ops.
func New(store Store, prefix string, log *logging.Logger) *Cache {
	return &Cache{store: store, prefix: prefix, log: log}
}

func (c *Cache) Enabled() bool { return c != nil && c.store != nil }

func (c *Cache) mappingKey(sourceID string) string {
	return c.prefix + sourceID + ":mapping"
}

func (c *Cache) analysisKey(sourceID, brand string) string {
	return c.prefix + sourceID + ":analysis:" + NormalizeBrand(brand)
}

// GetMapping returns the backend video id previously stored for the source.
func (c *Cache) GetMapping(ctx context.Context, sourceID string) (string, bool) {
	if !c.Enabled() {
		return "", false
	}
	return c.store.Get(ctx, c.mappingKey(sourceID))
}

func (c *Cache) PutMapping(ctx context.Context, sourceID, videoID string) bool {
	if !c.Enabled() {
		return false
	}
	ok := c.store.Set(ctx, c.mappingKey(sourceID), videoID)
	if !ok {
		c.log.Warnf("cache: failed to store mapping %s -> %s", sourceID, videoID)
	}
	return ok
}

// GetAnalysis returns the cached envelope for (source, brand), if any. A
// corrupt cached value is treated as a miss.
func (c *Cache) GetAnalysis(ctx context.Context, sourceID, brand string) (*model.Envelope, bool) {
	if !c.Enabled() {
		return nil, false
	}
	raw, ok := c.store.Get(ctx, c.analysisKey(sourceID, brand))
	if !ok {
		return nil, false
	}
	var env model.Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		c.log.Warnf("cache: corrupt analysis entry for %s/%s: %v", sourceID, brand, err)
		return nil, false
	}
	env.Normalize()
	return &env, true
}

func (c *Cache) PutAnalysis(ctx context.Context, sourceID, brand string, env *model.Envelope) bool {
	if !c.Enabled() {
		return false
	}
	b, err := json.Marshal(env)
	if err != nil {
		c.log.Warnf("cache: marshal envelope: %v", err)
		return false
	}
	ok := c.store.Set(ctx, c.analysisKey(sourceID, brand), string(b))
	if !ok {
		c.log.Warnf("cache: failed to store analysis for %s/%s", sourceID, brand)
	}
	return ok
}
