package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"brand-video-analyzer/internal"
	"brand-video-analyzer/internal/logging"
)

// TwelveLabs talks to the Twelve Labs REST API. The API's request/response
// shapes vary between versions (index_name vs name, _id vs id, models vs
// engines), so every call probes a small ordered set of shapes with gjson
// instead of decoding into rigid structs.
type TwelveLabs struct {
	baseURL string
	apiKey  string
	orgID   string
	http    *http.Client
	log     *logging.Logger
}

func NewTwelveLabs(cfg internal.Config, log *logging.Logger) *TwelveLabs {
	return &TwelveLabs{
		baseURL: strings.TrimRight(cfg.TwelveLabsBaseURL, "/"),
		apiKey:  cfg.TwelveLabsAPIKey,
		orgID:   cfg.OrganizationID,
		http:    &http.Client{Timeout: 5 * time.Minute},
		log:     log,
	}
}

func (t *TwelveLabs) Name() string { return "twelvelabs" }

func (t *TwelveLabs) do(ctx context.Context, method, path string, contentType string, body io.Reader) (int, []byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, body)
	if err != nil {
		return 0, nil, nil, err
	}
	req.Header.Set("x-api-key", t.apiKey)
	if t.orgID != "" {
		req.Header.Set("X-Organization-Id", t.orgID)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := t.http.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, resp.Header, err
	}
	return resp.StatusCode, b, resp.Header, nil
}

func (t *TwelveLabs) postJSON(ctx context.Context, path string, payload any) (int, []byte, http.Header, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, nil, err
	}
	return t.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(b))
}

// firstString returns the first non-empty string among the given gjson paths.
func firstString(body []byte, paths ...string) string {
	for _, p := range paths {
		if v := gjson.GetBytes(body, p); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

// idFromResponse pulls a resource id out of the body or, when the backend
// accepted the request but omitted an id in the body, out of a header.
func idFromResponse(body []byte, hdr http.Header) string {
	if id := firstString(body, "_id", "id", "data._id", "data.id"); id != "" {
		return id
	}
	for _, h := range []string{"X-Resource-Id", "X-Api-Id"} {
		if v := hdr.Get(h); v != "" {
			return v
		}
	}
	if loc := hdr.Get("Location"); loc != "" {
		parts := strings.Split(strings.TrimRight(loc, "/"), "/")
		return parts[len(parts)-1]
	}
	return ""
}

func (t *TwelveLabs) CreateIndex(ctx context.Context, spec IndexSpec) (string, error) {
	type modelItem struct {
		ModelName    string   `json:"model_name"`
		ModelOptions []string `json:"model_options"`
	}
	type engineItem struct {
		EngineName    string   `json:"engine_name"`
		EngineOptions []string `json:"engine_options"`
	}
	var models []modelItem
	var engines []engineItem
	if spec.EnablePegasus {
		models = append(models, modelItem{ModelName: "pegasus1.2", ModelOptions: spec.ModelOptions})
		engines = append(engines, engineItem{EngineName: "pegasus1.2", EngineOptions: spec.ModelOptions})
	}
	if spec.EnableMarengo {
		models = append(models, modelItem{ModelName: "marengo2.7", ModelOptions: spec.ModelOptions})
		engines = append(engines, engineItem{EngineName: "marengo2.7", EngineOptions: spec.ModelOptions})
	}

	// Newer API versions take index_name+models, older ones name+engines.
	payloads := []any{
		map[string]any{"index_name": spec.Name, "models": models},
		map[string]any{"name": spec.Name, "engines": engines},
	}

	var lastErr error
	for _, p := range payloads {
		status, body, hdr, err := t.postJSON(ctx, "/indexes", p)
		if err != nil {
			lastErr = err
			continue
		}
		if status < 200 || status >= 300 {
			lastErr = apiError("create index", status, body)
			continue
		}
		if id := idFromResponse(body, hdr); id != "" {
			return id, nil
		}
		lastErr = fmt.Errorf("create index: accepted but no id in response")
	}
	return "", lastErr
}

func (t *TwelveLabs) ListIndexes(ctx context.Context, name string) ([]Index, error) {
	path := "/indexes?page_limit=50"
	if name != "" {
		path += "&index_name=" + name
	}
	status, body, _, err := t.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, apiError("list indexes", status, body)
	}

	var out []Index
	items := gjson.GetBytes(body, "data")
	if !items.IsArray() {
		items = gjson.ParseBytes(body)
	}
	items.ForEach(func(_, item gjson.Result) bool {
		id := firstStringResult(item, "_id", "id")
		idxName := firstStringResult(item, "index_name", "name")
		if id != "" {
			out = append(out, Index{ID: id, Name: idxName})
		}
		return true
	})
	return out, nil
}

func firstStringResult(item gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := item.Get(p); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func (t *TwelveLabs) CreateTaskFromURL(ctx context.Context, indexID, videoURL, userMetadata string) (string, error) {
	// Field naming differs across versions; try video_url then url.
	var lastErr error
	for _, field := range []string{"video_url", "url"} {
		fields := map[string]string{
			"index_id":      indexID,
			field:           videoURL,
			"user_metadata": userMetadata,
		}
		id, err := t.createTaskMultipart(ctx, fields, "", "")
		if err == nil {
			return id, nil
		}
		lastErr = err
	}
	return "", lastErr
}

func (t *TwelveLabs) CreateTaskFromFile(ctx context.Context, indexID, path, userMetadata string) (string, error) {
	fields := map[string]string{
		"index_id":      indexID,
		"user_metadata": userMetadata,
	}
	return t.createTaskMultipart(ctx, fields, "video_file", path)
}

func (t *TwelveLabs) createTaskMultipart(ctx context.Context, fields map[string]string, fileField, filePath string) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return "", err
		}
	}
	if fileField != "" {
		f, err := os.Open(filePath)
		if err != nil {
			return "", fmt.Errorf("open upload file: %w", err)
		}
		defer f.Close()
		part, err := w.CreateFormFile(fileField, filepath.Base(filePath))
		if err != nil {
			return "", err
		}
		if _, err := io.Copy(part, f); err != nil {
			return "", fmt.Errorf("stage upload file: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	status, body, hdr, err := t.do(ctx, http.MethodPost, "/tasks", w.FormDataContentType(), &buf)
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", apiError("create task", status, body)
	}
	id := idFromResponse(body, hdr)
	if id == "" {
		return "", fmt.Errorf("create task: response missing task id")
	}
	return id, nil
}

func (t *TwelveLabs) GetTask(ctx context.Context, taskID string) (Task, error) {
	status, body, _, err := t.do(ctx, http.MethodGet, "/tasks/"+taskID, "", nil)
	if err != nil {
		return Task{}, err
	}
	if status < 200 || status >= 300 {
		return Task{}, apiError("get task", status, body)
	}
	return Task{
		ID:      firstString(body, "_id", "id"),
		Status:  normalizeStatus(firstString(body, "status", "state")),
		VideoID: firstString(body, "video_id", "videoId", "data.video_id"),
	}, nil
}

// normalizeStatus folds the backend's intermediate states (validating,
// pending, queued, indexing, ...) into the three the poller cares about.
func normalizeStatus(s string) TaskStatus {
	switch strings.ToLower(s) {
	case "ready":
		return TaskReady
	case "failed", "error":
		return TaskFailed
	default:
		return TaskPending
	}
}

func (t *TwelveLabs) GetVideo(ctx context.Context, indexID, videoID string) (Video, error) {
	status, body, _, err := t.do(ctx, http.MethodGet, "/indexes/"+indexID+"/videos/"+videoID, "", nil)
	if err != nil {
		return Video{}, err
	}
	if status < 200 || status >= 300 {
		return Video{}, apiError("get video", status, body)
	}
	id := firstString(body, "_id", "id")
	if id == "" {
		id = videoID
	}
	return Video{ID: id}, nil
}

func (t *TwelveLabs) Analyze(ctx context.Context, p AnalyzeParams) (Generation, error) {
	payload := map[string]any{
		"video_id":    p.VideoID,
		"prompt":      p.Prompt,
		"temperature": p.Temperature,
		"stream":      false,
	}
	if p.MaxTokens > 0 {
		payload["max_tokens"] = p.MaxTokens
	}
	if p.SchemaHint != "" {
		payload["response_format"] = map[string]any{
			"type":        "json_schema",
			"json_schema": json.RawMessage(p.SchemaHint),
		}
	}

	status, body, _, err := t.postJSON(ctx, "/analyze", payload)
	if err != nil {
		return Generation{}, err
	}
	if status < 200 || status >= 300 {
		return Generation{}, apiError("analyze", status, body)
	}
	return Generation{
		ID:   firstString(body, "id", "_id"),
		Data: firstString(body, "data", "output", "text"),
	}, nil
}

func apiError(op string, status int, body []byte) error {
	msg := firstString(body, "message", "error", "detail")
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return fmt.Errorf("%s: http %d: %s", op, status, msg)
}
