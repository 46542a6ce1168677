package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brand-video-analyzer/internal"
	"brand-video-analyzer/internal/backend"
	"brand-video-analyzer/internal/cache"
	"brand-video-analyzer/internal/ingest"
	"brand-video-analyzer/internal/logging"
	"brand-video-analyzer/internal/model"
	"brand-video-analyzer/internal/schema"
)

const (
	testYouTubeURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
	testSourceID   = "dQw4w9WgXcQ"
)

const validPayload = `{
	"summary": "review of running shoes",
	"hashtags": ["#nike"],
	"topics": ["running"],
	"chapters": [{
		"id": "ch_001", "title": "Intro", "summary": "opening",
		"timestamps": {"start": "00:00:00", "end": "00:01:00"}
	}],
	"brand_mentions": [{
		"id": "bm_001", "mention_type": "verbal_mention",
		"description": "host names the brand", "chapter_id": "ch_001",
		"timestamps": {"start": "00:00:10", "end": "00:00:20"},
		"confidence": 0.9
	}]
}`

// fakeBackend scripts generations and counts ingest and analyze traffic.
type fakeBackend struct {
	mu           sync.Mutex
	urlTaskCalls int
	analyzeCalls int
	genSeq       []backend.Generation // consumed per Analyze call, last repeats
	analyzeErr   error
	gotParams    []backend.AnalyzeParams
}

func (f *fakeBackend) Name() string { return "fakeprov" }

func (f *fakeBackend) CreateIndex(context.Context, backend.IndexSpec) (string, error) {
	return "idx-created", nil
}

func (f *fakeBackend) ListIndexes(context.Context, string) ([]backend.Index, error) {
	return nil, nil
}

func (f *fakeBackend) CreateTaskFromURL(_ context.Context, _, _, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urlTaskCalls++
	return "task-1", nil
}

func (f *fakeBackend) CreateTaskFromFile(_ context.Context, _, _, _ string) (string, error) {
	return "task-1", nil
}

func (f *fakeBackend) GetTask(_ context.Context, taskID string) (backend.Task, error) {
	return backend.Task{ID: taskID, Status: backend.TaskReady, VideoID: "vid-1"}, nil
}

func (f *fakeBackend) GetVideo(_ context.Context, _, videoID string) (backend.Video, error) {
	return backend.Video{ID: videoID}, nil
}

func (f *fakeBackend) Analyze(_ context.Context, p backend.AnalyzeParams) (backend.Generation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.analyzeErr != nil {
		return backend.Generation{}, f.analyzeErr
	}
	f.analyzeCalls++
	f.gotParams = append(f.gotParams, p)
	if len(f.genSeq) == 0 {
		return backend.Generation{ID: "gen-1", Data: validPayload}, nil
	}
	return f.genSeq[min(f.analyzeCalls, len(f.genSeq))-1], nil
}

func newTestAnalyzer(t *testing.T, fb *fakeBackend) (*Analyzer, *cache.Cache) {
	t.Helper()
	log := logging.NewDiscard()
	mr := miniredis.RunT(t)
	cfg := internal.Config{
		IndexName:             "swipe-summaries",
		AllowDownloadFallback: true,
		Temperature:           0.2,
		RedisURL:              "redis://" + mr.Addr(),
		CachePrefix:           "ba:yt:",
	}
	store := cache.Connect(context.Background(), cfg, log)
	require.NotNil(t, store)
	cch := cache.New(store, cfg.CachePrefix, log)

	poller := ingest.NewPoller(fb, time.Millisecond, 100*time.Millisecond, log)
	coord := ingest.NewCoordinator(cfg, fb, nil, poller, log)
	return NewAnalyzer(cfg, fb, coord, cch, nil, log), cch
}

func TestAnalyzeRejectsInvalidInput(t *testing.T) {
	fb := &fakeBackend{}
	a, _ := newTestAnalyzer(t, fb)
	ctx := context.Background()

	_, err := a.Analyze(ctx, model.AnalysisRequest{YouTubeURL: testYouTubeURL})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = a.Analyze(ctx, model.AnalysisRequest{Brand: "Nike"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	// invalid input must be rejected before any backend traffic
	assert.Zero(t, fb.urlTaskCalls)
	assert.Zero(t, fb.analyzeCalls)
}

func TestAnalyzeSuccessStampsMeta(t *testing.T) {
	fb := &fakeBackend{}
	a, _ := newTestAnalyzer(t, fb)

	env, err := a.Analyze(context.Background(), model.AnalysisRequest{Brand: "Nike", YouTubeURL: testYouTubeURL})
	require.NoError(t, err)
	require.NotNil(t, env)

	assert.False(t, env.Degraded())
	assert.Equal(t, "review of running shoes", env.Data.Summary)
	assert.Equal(t, "fakeprov", env.Meta.Provider)
	assert.Equal(t, "Nike", env.Meta.Brand)
	assert.Equal(t, "vid-1", env.Meta.VideoID)
	assert.Equal(t, testYouTubeURL, env.Meta.SourceURL)
	assert.Equal(t, model.SchemaVersion, env.Meta.SchemaVersion)
	assert.Equal(t, "gen-1", env.Meta.TraceID)
	assert.False(t, env.Meta.CreatedAt.IsZero())
	assert.NotNil(t, env.Errors)
}

func TestAnalyzeGeneratesTraceIDWhenBackendOmitsOne(t *testing.T) {
	fb := &fakeBackend{genSeq: []backend.Generation{{ID: "", Data: validPayload}}}
	a, _ := newTestAnalyzer(t, fb)

	env, err := a.Analyze(context.Background(), model.AnalysisRequest{Brand: "Nike", YouTubeURL: testYouTubeURL})
	require.NoError(t, err)
	assert.NotEmpty(t, env.Meta.TraceID)
}

func TestAnalyzeCacheHitIsIdempotentAcrossBrandCasing(t *testing.T) {
	fb := &fakeBackend{}
	a, _ := newTestAnalyzer(t, fb)
	ctx := context.Background()

	first, err := a.Analyze(ctx, model.AnalysisRequest{Brand: "Nike", YouTubeURL: testYouTubeURL})
	require.NoError(t, err)

	second, err := a.Analyze(ctx, model.AnalysisRequest{Brand: "NIKE", YouTubeURL: testYouTubeURL})
	require.NoError(t, err)

	assert.Equal(t, first.Data, second.Data)
	assert.Equal(t, 1, fb.urlTaskCalls, "second call must not re-ingest")
	assert.Equal(t, 1, fb.analyzeCalls, "second call must not re-generate")
}

func TestAnalyzeMappingCacheSkipsReingest(t *testing.T) {
	fb := &fakeBackend{}
	a, cch := newTestAnalyzer(t, fb)
	ctx := context.Background()

	require.True(t, cch.PutMapping(ctx, testSourceID, "vid-1"))

	env, err := a.Analyze(ctx, model.AnalysisRequest{Brand: "Nike", YouTubeURL: testYouTubeURL})
	require.NoError(t, err)
	assert.Equal(t, "vid-1", env.Meta.VideoID)
	assert.Zero(t, fb.urlTaskCalls)
	assert.Equal(t, 1, fb.analyzeCalls)
}

func TestAnalyzeWithVideoIDSkipsIngestAndCache(t *testing.T) {
	fb := &fakeBackend{}
	a, cch := newTestAnalyzer(t, fb)
	ctx := context.Background()

	env, err := a.Analyze(ctx, model.AnalysisRequest{Brand: "Nike", VideoID: "vid-direct"})
	require.NoError(t, err)
	assert.Equal(t, "vid-direct", env.Meta.VideoID)
	assert.Zero(t, fb.urlTaskCalls)

	// no youtube id, so nothing to key a cache entry on
	_, ok := cch.GetAnalysis(ctx, "vid-direct", "Nike")
	assert.False(t, ok)
}

func TestAnalyzeDoesNotCacheDegradedEnvelope(t *testing.T) {
	fb := &fakeBackend{genSeq: []backend.Generation{
		{ID: "gen-1", Data: "sorry, I could not parse the video"},
		{ID: "gen-2", Data: validPayload},
	}}
	a, cch := newTestAnalyzer(t, fb)
	ctx := context.Background()

	env, err := a.Analyze(ctx, model.AnalysisRequest{Brand: "Nike", YouTubeURL: testYouTubeURL})
	require.NoError(t, err)
	require.True(t, env.Degraded())
	require.Len(t, env.Errors, 1)
	assert.Equal(t, schema.CodeParseError, env.Errors[0].Code)
	assert.Equal(t, model.EmptyOutput(), env.Data)

	_, ok := cch.GetAnalysis(ctx, testSourceID, "Nike")
	assert.False(t, ok, "degraded envelope must not be cached")

	// the mapping survives, so the retry re-generates without re-ingesting
	env, err = a.Analyze(ctx, model.AnalysisRequest{Brand: "Nike", YouTubeURL: testYouTubeURL})
	require.NoError(t, err)
	assert.False(t, env.Degraded())
	assert.Equal(t, 1, fb.urlTaskCalls)
	assert.Equal(t, 2, fb.analyzeCalls)

	_, ok = cch.GetAnalysis(ctx, testSourceID, "Nike")
	assert.True(t, ok)
}

func TestAnalyzeTransportErrorIsFatal(t *testing.T) {
	fb := &fakeBackend{analyzeErr: assert.AnError}
	a, _ := newTestAnalyzer(t, fb)

	_, err := a.Analyze(context.Background(), model.AnalysisRequest{Brand: "Nike", YouTubeURL: testYouTubeURL})
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestAnalyzeRequestOverridesGenerationKnobs(t *testing.T) {
	fb := &fakeBackend{}
	a, _ := newTestAnalyzer(t, fb)

	temp := 0.7
	tokens := 1024
	_, err := a.Analyze(context.Background(), model.AnalysisRequest{
		Brand:       "Nike",
		YouTubeURL:  testYouTubeURL,
		Temperature: &temp,
		MaxTokens:   &tokens,
	})
	require.NoError(t, err)
	require.Len(t, fb.gotParams, 1)
	assert.InDelta(t, 0.7, fb.gotParams[0].Temperature, 1e-9)
	assert.Equal(t, 1024, fb.gotParams[0].MaxTokens)
	assert.Equal(t, schema.OutputSchema, fb.gotParams[0].SchemaHint)
	assert.Contains(t, fb.gotParams[0].Prompt, "Brand to detect: Nike")
}

func TestAnalyzeConcurrentSameVideoAndBrand(t *testing.T) {
	fb := &fakeBackend{}
	a, cch := newTestAnalyzer(t, fb)
	ctx := context.Background()
	req := model.AnalysisRequest{Brand: "Nike", YouTubeURL: testYouTubeURL}

	var wg sync.WaitGroup
	envs := make([]*model.Envelope, 2)
	errs := make([]error, 2)
	for i := range envs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			envs[i], errs[i] = a.Analyze(ctx, req)
		}(i)
	}
	wg.Wait()

	for i := range envs {
		require.NoError(t, errs[i])
		require.NotNil(t, envs[i])
		assert.Equal(t, envs[0].Data, envs[i].Data)
	}

	cached, ok := cch.GetAnalysis(ctx, testSourceID, "Nike")
	require.True(t, ok)
	assert.Equal(t, envs[0].Data, cached.Data)
}

func TestBuildPromptInjectsBrandAndSchema(t *testing.T) {
	p := BuildPrompt("Coca-Cola")
	assert.Contains(t, p, "Brand to detect: Coca-Cola")
	assert.Contains(t, p, `"brand_mentions"`)
	assert.False(t, strings.Contains(p, "{brand}"))
	assert.False(t, strings.Contains(p, "{json_schema}"))
}
