package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brand-video-analyzer/internal/backend"
	"brand-video-analyzer/internal/logging"
)

// fakeBackend scripts the VideoBackend surface for coordinator and poller
// tests.
type fakeBackend struct {
	mu sync.Mutex

	taskStatuses []backend.TaskStatus // consumed per GetTask call, last repeats
	taskVideoID  string
	getTaskCalls int

	videoErrs  []error // consumed per GetVideo call, last repeats
	videoCalls int

	createIndexID    string
	createIndexErr   error
	listIndexes      []backend.Index
	listSeq          [][]backend.Index // overrides listIndexes when set
	listCalls        int
	listErr          error
	urlTaskID        string
	urlErr           error
	fileTaskID       string
	fileErr          error
	gotURL           string
	gotMetadata      string
	gotUploadPath    string
	uploadPathExists bool
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) CreateIndex(_ context.Context, _ backend.IndexSpec) (string, error) {
	return f.createIndexID, f.createIndexErr
}

func (f *fakeBackend) ListIndexes(_ context.Context, _ string) ([]backend.Index, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if len(f.listSeq) > 0 {
		return f.listSeq[min(f.listCalls, len(f.listSeq))-1], f.listErr
	}
	return f.listIndexes, f.listErr
}

func (f *fakeBackend) CreateTaskFromURL(_ context.Context, _, videoURL, userMetadata string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotURL = videoURL
	f.gotMetadata = userMetadata
	return f.urlTaskID, f.urlErr
}

func (f *fakeBackend) CreateTaskFromFile(_ context.Context, _, path, userMetadata string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotUploadPath = path
	f.gotMetadata = userMetadata
	f.uploadPathExists = fileExists(path)
	return f.fileTaskID, f.fileErr
}

func (f *fakeBackend) GetTask(_ context.Context, taskID string) (backend.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getTaskCalls++
	status := f.taskStatuses[min(f.getTaskCalls, len(f.taskStatuses))-1]
	return backend.Task{ID: taskID, Status: status, VideoID: f.taskVideoID}, nil
}

func (f *fakeBackend) GetVideo(_ context.Context, _, videoID string) (backend.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.videoCalls++
	if len(f.videoErrs) == 0 {
		return backend.Video{ID: videoID}, nil
	}
	err := f.videoErrs[min(f.videoCalls, len(f.videoErrs))-1]
	if err != nil {
		return backend.Video{}, err
	}
	return backend.Video{ID: videoID}, nil
}

func (f *fakeBackend) Analyze(_ context.Context, _ backend.AnalyzeParams) (backend.Generation, error) {
	return backend.Generation{}, fmt.Errorf("not used")
}

func newTestPoller(b backend.VideoBackend) *Poller {
	return NewPoller(b, time.Millisecond, 50*time.Millisecond, logging.NewDiscard())
}

func TestWaitForTaskReady(t *testing.T) {
	fb := &fakeBackend{
		taskStatuses: []backend.TaskStatus{backend.TaskPending, backend.TaskPending, backend.TaskReady},
		taskVideoID:  "vid-1",
	}
	task, err := newTestPoller(fb).WaitForTask(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "vid-1", task.VideoID)
	assert.Equal(t, 3, fb.getTaskCalls)
}

func TestWaitForTaskBackendFailure(t *testing.T) {
	fb := &fakeBackend{taskStatuses: []backend.TaskStatus{backend.TaskPending, backend.TaskFailed}}
	_, err := newTestPoller(fb).WaitForTask(context.Background(), "t1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackendFailed)
	assert.NotErrorIs(t, err, ErrPollTimeout)
}

func TestWaitForTaskTimeout(t *testing.T) {
	fb := &fakeBackend{taskStatuses: []backend.TaskStatus{backend.TaskPending}}
	_, err := newTestPoller(fb).WaitForTask(context.Background(), "t1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPollTimeout)
	assert.NotErrorIs(t, err, ErrBackendFailed)
}

func TestWaitForVideoSwallowsTransientErrors(t *testing.T) {
	fb := &fakeBackend{videoErrs: []error{
		errors.New("not found yet"),
		errors.New("still propagating"),
		nil,
	}}
	err := newTestPoller(fb).WaitForVideo(context.Background(), "idx", "vid-1")
	require.NoError(t, err)
	assert.Equal(t, 3, fb.videoCalls)
}

func TestWaitForVideoTimeout(t *testing.T) {
	fb := &fakeBackend{videoErrs: []error{errors.New("never visible")}}
	err := newTestPoller(fb).WaitForVideo(context.Background(), "idx", "vid-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPollTimeout)
}
