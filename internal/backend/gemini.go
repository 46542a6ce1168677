package backend

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"brand-video-analyzer/internal"
	"brand-video-analyzer/internal/logging"
)

const geminiModel = "gemini-2.5-flash"

// Gemini adapts the Google GenAI API to the VideoBackend contract. Gemini has
// no container concept, so the configured index name is echoed back as the
// container id; an uploaded file plays the role of an ingest task, with file
// state mapped onto task status.
type Gemini struct {
	client *genai.Client
	log    *logging.Logger
}

func NewGemini(ctx context.Context, cfg internal.Config, log *logging.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return &Gemini{client: client, log: log}, nil
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) CreateIndex(_ context.Context, spec IndexSpec) (string, error) {
	return spec.Name, nil
}

func (g *Gemini) ListIndexes(_ context.Context, name string) ([]Index, error) {
	return []Index{{ID: name, Name: name}}, nil
}

// CreateTaskFromURL always fails: the Files API only accepts uploaded bytes.
// The ingest coordinator reacts by taking its local-download fallback.
func (g *Gemini) CreateTaskFromURL(context.Context, string, string, string) (string, error) {
	return "", fmt.Errorf("gemini: ingest by URL not supported")
}

func (g *Gemini) CreateTaskFromFile(ctx context.Context, _ string, path, _ string) (string, error) {
	file, err := g.client.Files.UploadFromPath(ctx, path, &genai.UploadFileConfig{
		MIMEType: "video/mp4",
	})
	if err != nil {
		return "", fmt.Errorf("gemini upload: %w", err)
	}
	if file.Name == "" {
		return "", fmt.Errorf("gemini upload: response missing file name")
	}
	return file.Name, nil
}

func (g *Gemini) GetTask(ctx context.Context, taskID string) (Task, error) {
	file, err := g.client.Files.Get(ctx, taskID, nil)
	if err != nil {
		return Task{}, fmt.Errorf("gemini file status: %w", err)
	}
	task := Task{ID: taskID, VideoID: file.Name}
	switch file.State {
	case genai.FileStateActive:
		task.Status = TaskReady
	case genai.FileStateFailed:
		task.Status = TaskFailed
	default:
		task.Status = TaskPending
	}
	return task, nil
}

func (g *Gemini) GetVideo(ctx context.Context, _ string, videoID string) (Video, error) {
	file, err := g.client.Files.Get(ctx, videoID, nil)
	if err != nil {
		return Video{}, err
	}
	if file.State != genai.FileStateActive {
		return Video{}, fmt.Errorf("gemini file %s not active yet", videoID)
	}
	return Video{ID: file.Name}, nil
}

func (g *Gemini) Analyze(ctx context.Context, p AnalyzeParams) (Generation, error) {
	file, err := g.client.Files.Get(ctx, p.VideoID, nil)
	if err != nil {
		return Generation{}, fmt.Errorf("gemini file lookup: %w", err)
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(p.Temperature)),
		// Advisory schema-typed response mode: the schema text itself rides in
		// the prompt, this only nudges the decoder toward raw JSON.
		ResponseMIMEType: "application/json",
	}
	if p.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(p.MaxTokens)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromURI(file.URI, file.MIMEType),
			genai.NewPartFromText(p.Prompt),
		}, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, geminiModel, contents, cfg)
	if err != nil {
		return Generation{}, fmt.Errorf("generate content: %w", err)
	}
	return Generation{ID: resp.ResponseID, Data: resp.Text()}, nil
}
