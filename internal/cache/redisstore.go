package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tidwall/gjson"

	"brand-video-analyzer/internal"
	"brand-video-analyzer/internal/logging"
)

// probeKey is the dedicated liveness sentinel; it never collides with
// production keys, which all carry the configured prefix.
const probeKey = "__ba_probe__"

// Connect tries the candidate transports in order (native redis protocol
// from an explicit URL, Upstash REST, local redis) and accepts the first one
// that passes a real write-then-read round trip. Returns nil when no backend
// is live: caching is then disabled, which is never fatal.
func Connect(ctx context.Context, cfg internal.Config, log *logging.Logger) Store {
	var candidates []Store
	if cfg.RedisURL != "" {
		if s := newRedisStore(cfg.RedisURL); s != nil {
			candidates = append(candidates, s)
		}
	}
	if cfg.UpstashRESTURL != "" && cfg.UpstashRESTToken != "" {
		candidates = append(candidates, newUpstashStore(cfg.UpstashRESTURL, cfg.UpstashRESTToken))
	}
	candidates = append(candidates, newLocalRedisStore())

	for _, s := range candidates {
		if probe(ctx, s) {
			log.Infof("cache: using %s backend", s.Name())
			return s
		}
		log.Warnf("cache: %s backend failed liveness probe", s.Name())
	}
	log.Warnf("cache: no live backend, caching disabled")
	return nil
}

// probe performs the explicit liveness round trip on the sentinel key.
func probe(ctx context.Context, s Store) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if !s.Set(ctx, probeKey, "1") {
		return false
	}
	v, ok := s.Get(ctx, probeKey)
	return ok && v == "1"
}

// ---- native redis protocol --------------------------------------------

type redisStore struct {
	name   string
	client *redis.Client
}

func newRedisStore(rawURL string) Store {
	// Upstash over the redis protocol requires TLS.
	if strings.Contains(rawURL, "upstash.io") && strings.HasPrefix(rawURL, "redis://") {
		rawURL = "rediss://" + strings.TrimPrefix(rawURL, "redis://")
	}
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil
	}
	opts.DialTimeout = 2 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second
	return &redisStore{name: "redis", client: redis.NewClient(opts)}
}

func newLocalRedisStore() Store {
	return &redisStore{name: "redis-local", client: redis.NewClient(&redis.Options{
		Addr:         "127.0.0.1:6379",
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})}
}

func (s *redisStore) Name() string { return s.name }

// Get treats both a missing key and a transport error as a miss.
func (s *redisStore) Get(ctx context.Context, key string) (string, bool) {
	v, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return "", false
	}
	return v, true
}

func (s *redisStore) Set(ctx context.Context, key, value string) bool {
	return s.client.Set(ctx, key, value, 0).Err() == nil
}

// ---- Upstash REST -------------------------------------------------------

type upstashStore struct {
	baseURL string
	token   string
	http    *http.Client
}

func newUpstashStore(baseURL, token string) Store {
	return &upstashStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 3 * time.Second},
	}
}

func (s *upstashStore) Name() string { return "upstash-rest" }

// command runs one redis command through the REST pipeline endpoint and
// returns its result field, or "" and false on any error.
func (s *upstashStore) command(ctx context.Context, parts ...string) (string, bool) {
	payload, err := json.Marshal(map[string]any{"commands": []any{parts}})
	if err != nil {
		return "", false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/pipeline", bytes.NewReader(payload))
	if err != nil {
		return "", false
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", false
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return "", false
	}
	first := gjson.GetBytes(buf.Bytes(), "0")
	if first.Get("error").Exists() {
		return "", false
	}
	result := first.Get("result")
	if !result.Exists() || result.Type == gjson.Null {
		return "", false
	}
	return result.String(), true
}

func (s *upstashStore) Get(ctx context.Context, key string) (string, bool) {
	return s.command(ctx, "GET", key)
}

func (s *upstashStore) Set(ctx context.Context, key, value string) bool {
	res, ok := s.command(ctx, "SET", key, value)
	return ok && strings.EqualFold(res, "OK")
}
