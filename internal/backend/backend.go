// Package backend abstracts the upstream video indexing/generation vendors
// behind the narrow set of operations the pipeline needs. One adapter per
// vendor; the pipeline never sees vendor wire formats.
package backend

import "context"

type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskReady   TaskStatus = "ready"
	TaskFailed  TaskStatus = "failed"
)

type Index struct {
	ID   string
	Name string
}

// IndexSpec describes the container to create when none is configured.
type IndexSpec struct {
	Name          string
	EnablePegasus bool
	EnableMarengo bool
	ModelOptions  []string
}

// Task is one asynchronous ingest job tracked by the backend.
type Task struct {
	ID      string
	Status  TaskStatus
	VideoID string
}

type Video struct {
	ID string
}

type AnalyzeParams struct {
	VideoID     string
	Prompt      string
	Temperature float64
	MaxTokens   int    // 0 lets the backend default
	SchemaHint  string // JSON Schema text; advisory where the vendor supports it
}

// Generation is the raw result of one generation call. Data is the textual
// payload; the caller owns parsing and validation.
type Generation struct {
	ID   string
	Data string
}

type VideoBackend interface {
	Name() string

	CreateIndex(ctx context.Context, spec IndexSpec) (string, error)
	ListIndexes(ctx context.Context, name string) ([]Index, error)

	CreateTaskFromURL(ctx context.Context, indexID, videoURL, userMetadata string) (string, error)
	CreateTaskFromFile(ctx context.Context, indexID, path, userMetadata string) (string, error)
	GetTask(ctx context.Context, taskID string) (Task, error)

	// GetVideo checks that the processed entity is retrievable by id. This is
	// a separate gate from task completion: some backends report a task ready
	// before the video is queryable.
	GetVideo(ctx context.Context, indexID, videoID string) (Video, error)

	Analyze(ctx context.Context, p AnalyzeParams) (Generation, error)
}
