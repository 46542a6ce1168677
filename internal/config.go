package internal

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Provider string // "twelvelabs" (default) or "gemini"

	TwelveLabsAPIKey  string
	TwelveLabsBaseURL string
	OrganizationID    string

	GeminiAPIKey string

	IndexID   string
	IndexName string

	EnablePegasus bool
	EnableMarengo bool
	ModelOptions  []string

	AllowDownloadFallback bool

	RapidAPIKey string
	YTRegion    string // cgeo hint for the keyed resolver

	PollInterval time.Duration
	PollTimeout  time.Duration

	Temperature float64
	MaxTokens   int // 0 lets the backend default

	RedisURL         string
	UpstashRESTURL   string
	UpstashRESTToken string
	CachePrefix      string

	// Optional S3 archive of produced envelopes
	S3Endpoint    string
	S3Region      string
	S3Bucket      string
	S3AccessKey   string
	S3SecretKey   string
	ArchivePrefix string

	ListenAddr string
}

func LoadConfig() (Config, error) {
	cfg := Config{
		Provider: strings.ToLower(firstNonEmpty(os.Getenv("ANALYZE_PROVIDER"), "twelvelabs")),

		TwelveLabsAPIKey:  os.Getenv("TWELVE_LABS_API_KEY"),
		TwelveLabsBaseURL: firstNonEmpty(os.Getenv("TWELVE_LABS_BASE_URL"), "https://api.twelvelabs.io/v1.3"),
		OrganizationID:    os.Getenv("TWELVE_LABS_ORGANIZATION_ID"),

		GeminiAPIKey: firstNonEmpty(os.Getenv("GOOGLE_API_KEY"), os.Getenv("GEMINI_API_KEY")),

		IndexID:   os.Getenv("TWELVE_LABS_INDEX_ID"),
		IndexName: firstNonEmpty(os.Getenv("TWELVE_LABS_INDEX_NAME"), "swipe-summaries"),

		EnablePegasus: envBool("TWELVE_LABS_ENABLE_PEGASUS", true),
		EnableMarengo: envBool("TWELVE_LABS_ENABLE_MARENGO", false),
		ModelOptions:  []string{"visual", "audio"},

		AllowDownloadFallback: envBool("ALLOW_YT_DOWNLOAD", true),

		RapidAPIKey: os.Getenv("RAPIDAPI_API_KEY"),
		YTRegion:    os.Getenv("YT_API_CGEO"),

		PollInterval: 10 * time.Second,
		PollTimeout:  30 * time.Minute,

		Temperature: 0.2,
		MaxTokens:   0,

		RedisURL:         os.Getenv("REDIS_URL"),
		UpstashRESTURL:   os.Getenv("UPSTASH_REDIS_REST_URL"),
		UpstashRESTToken: os.Getenv("UPSTASH_REDIS_REST_TOKEN"),
		CachePrefix:      firstNonEmpty(os.Getenv("CACHE_PREFIX"), "ba:yt:"),

		S3Endpoint:    os.Getenv("S3_ENDPOINT"),
		S3Region:      os.Getenv("S3_REGION"),
		S3Bucket:      os.Getenv("S3_BUCKET"),
		S3AccessKey:   firstNonEmpty(os.Getenv("S3_ACCESS_KEY"), os.Getenv("S3_ACCESS_KEY_ID")),
		S3SecretKey:   firstNonEmpty(os.Getenv("S3_SECRET_ACCESS_KEY"), os.Getenv("S3_SECRET_ACCESS_KEY_ID")),
		ArchivePrefix: firstNonEmpty(os.Getenv("ARCHIVE_PREFIX"), "envelopes/"),

		ListenAddr: ":" + firstNonEmpty(os.Getenv("PORT"), "8000"),
	}

	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.PollInterval = d
		}
	}
	if v := os.Getenv("POLL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.PollTimeout = d
		}
	}
	if v := os.Getenv("ANALYZE_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.Temperature = f
		}
	}
	if v := os.Getenv("ANALYZE_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxTokens = n
		}
	}

	switch cfg.Provider {
	case "twelvelabs":
		if cfg.TwelveLabsAPIKey == "" {
			return cfg, errors.New("TWELVE_LABS_API_KEY is required")
		}
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return cfg, errors.New("GOOGLE_API_KEY or GEMINI_API_KEY is required")
		}
	default:
		return cfg, errors.New("ANALYZE_PROVIDER must be twelvelabs or gemini")
	}
	return cfg, nil
}

// ArchiveEnabled reports whether all S3 settings needed for the envelope
// archive are present.
func (c Config) ArchiveEnabled() bool {
	return c.S3Endpoint != "" && c.S3Region != "" && c.S3Bucket != "" &&
		c.S3AccessKey != "" && c.S3SecretKey != ""
}

func envBool(key string, def bool) bool {
	v := strings.ToLower(os.Getenv(key))
	if v == "" {
		return def
	}
	return v != "false" && v != "0"
}

func firstNonEmpty(v ...string) string {
	for _, s := range v {
		if s != "" {
			return s
		}
	}
	return ""
}
