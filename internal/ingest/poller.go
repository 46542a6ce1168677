package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"brand-video-analyzer/internal/backend"
	"brand-video-analyzer/internal/logging"
)

// ErrPollTimeout means the deadline elapsed while the backend still reported
// a non-terminal state. Distinct from ErrBackendFailed so operators can tell
// a slow backend from a broken ingest.
var ErrPollTimeout = errors.New("timed out waiting for backend")

// ErrBackendFailed means the backend explicitly reported the task failed.
var ErrBackendFailed = errors.New("backend reported task failed")

// Poller blocks until an asynchronous backend job reaches a terminal state.
// The backend exposes only pull-style status, so this is a fixed-interval
// poll loop bounded by an absolute deadline.
type Poller struct {
	backend  backend.VideoBackend
	interval time.Duration
	timeout  time.Duration
	log      *logging.Logger
}

func NewPoller(b backend.VideoBackend, interval, timeout time.Duration, log *logging.Logger) *Poller {
	return &Poller{backend: b, interval: interval, timeout: timeout, log: log}
}

// WaitForTask polls task status until ready, failed, or the deadline.
func (p *Poller) WaitForTask(ctx context.Context, taskID string) (backend.Task, error) {
	deadline := time.Now().Add(p.timeout)
	for {
		task, err := p.backend.GetTask(ctx, taskID)
		if err != nil {
			return backend.Task{}, fmt.Errorf("task status: %w", err)
		}
		switch task.Status {
		case backend.TaskReady:
			return task, nil
		case backend.TaskFailed:
			return task, fmt.Errorf("task %s: %w", taskID, ErrBackendFailed)
		}
		if time.Now().After(deadline) {
			return task, fmt.Errorf("task %s still %s: %w", taskID, task.Status, ErrPollTimeout)
		}
		if err := sleep(ctx, p.interval); err != nil {
			return task, err
		}
	}
}

// WaitForVideo polls until the processed video is retrievable by id. Task
// completion and entity visibility are separate: retrieval errors here are
// expected propagation delay and are swallowed until the deadline.
func (p *Poller) WaitForVideo(ctx context.Context, indexID, videoID string) error {
	deadline := time.Now().Add(p.timeout)
	for {
		if _, err := p.backend.GetVideo(ctx, indexID, videoID); err == nil {
			return nil
		} else if time.Now().After(deadline) {
			return fmt.Errorf("video %s not retrievable (%v): %w", videoID, err, ErrPollTimeout)
		}
		if err := sleep(ctx, p.interval); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
