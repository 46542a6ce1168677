// Package ingest makes a video's bytes available to the destination backend
// and returns a durable backend video id, with ordered fallbacks: direct URL
// registration first, local download + multipart upload second.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/samber/lo"

	"brand-video-analyzer/internal"
	"brand-video-analyzer/internal/backend"
	"brand-video-analyzer/internal/logging"
	"brand-video-analyzer/internal/resolver"
)

// IngestError wraps the last underlying cause after all ingest strategies
// for a stage are exhausted.
type IngestError struct {
	Op  string
	Err error
}

func (e *IngestError) Error() string {
	if e.Err == nil {
		return "ingest: " + e.Op
	}
	return fmt.Sprintf("ingest: %s: %v", e.Op, e.Err)
}

func (e *IngestError) Unwrap() error { return e.Err }

type Coordinator struct {
	cfg      internal.Config
	backend  backend.VideoBackend
	resolver *resolver.Resolver
	poller   *Poller
	log      *logging.Logger
}

func NewCoordinator(cfg internal.Config, b backend.VideoBackend, res *resolver.Resolver, poller *Poller, log *logging.Logger) *Coordinator {
	return &Coordinator{cfg: cfg, backend: b, resolver: res, poller: poller, log: log}
}

// EnsureIndex resolves the destination container id: pre-configured id,
// create under the configured name, or list-and-match when creation
// conflicts with an existing container.
func (c *Coordinator) EnsureIndex(ctx context.Context) (string, error) {
	if c.cfg.IndexID != "" {
		return c.cfg.IndexID, nil
	}

	if id := c.findIndexByName(ctx); id != "" {
		return id, nil
	}

	spec := backend.IndexSpec{
		Name:          c.cfg.IndexName,
		EnablePegasus: c.cfg.EnablePegasus,
		EnableMarengo: c.cfg.EnableMarengo,
		ModelOptions:  c.cfg.ModelOptions,
	}
	id, err := c.backend.CreateIndex(ctx, spec)
	if err == nil && id != "" {
		c.log.Infof("ingest: created index %q (%s)", c.cfg.IndexName, id)
		return id, nil
	}

	// Creation may have raced another caller; relist before giving up.
	if relisted := c.findIndexByName(ctx); relisted != "" {
		return relisted, nil
	}
	return "", &IngestError{Op: fmt.Sprintf("resolve index %q", c.cfg.IndexName), Err: err}
}

func (c *Coordinator) findIndexByName(ctx context.Context) string {
	indexes, err := c.backend.ListIndexes(ctx, c.cfg.IndexName)
	if err != nil {
		c.log.Warnf("ingest: list indexes: %v", err)
		return ""
	}
	match, ok := lo.Find(indexes, func(i backend.Index) bool { return i.Name == c.cfg.IndexName })
	if !ok {
		return ""
	}
	return match.ID
}

// Ingest registers the source with the backend and blocks until the
// processed video is ready and retrievable. Returns the backend video id.
func (c *Coordinator) Ingest(ctx context.Context, indexID, sourceURL string, metadata map[string]any) (string, error) {
	userMetadata := encodeMetadata(metadata, c.log)

	videoURL := sourceURL
	if c.resolver != nil && resolver.IsYouTubeURL(sourceURL) {
		if direct := c.resolver.Resolve(ctx, sourceURL); direct != "" {
			videoURL = direct
		}
	}

	taskID, urlErr := c.backend.CreateTaskFromURL(ctx, indexID, videoURL, userMetadata)
	if urlErr != nil {
		c.log.Warnf("ingest: url registration rejected: %v", urlErr)
		if !c.cfg.AllowDownloadFallback {
			return "", &IngestError{Op: "register by url (download fallback disabled)", Err: urlErr}
		}
		var err error
		taskID, err = c.ingestByUpload(ctx, indexID, sourceURL, userMetadata)
		if err != nil {
			return "", err
		}
	}
	if taskID == "" {
		return "", &IngestError{Op: "create task", Err: fmt.Errorf("response missing task id")}
	}

	c.log.Infof("ingest: waiting for task %s", taskID)
	task, err := c.poller.WaitForTask(ctx, taskID)
	if err != nil {
		return "", err
	}
	if task.VideoID == "" {
		return "", &IngestError{Op: "task " + taskID, Err: fmt.Errorf("ready but video id missing")}
	}

	if err := c.poller.WaitForVideo(ctx, indexID, task.VideoID); err != nil {
		return "", err
	}
	c.log.Infof("ingest: video %s ready", task.VideoID)
	return task.VideoID, nil
}

// ingestByUpload downloads the source to a scoped temp file and uploads it as
// a multipart payload. The temp file is removed on every exit path.
func (c *Coordinator) ingestByUpload(ctx context.Context, indexID, sourceURL, userMetadata string) (string, error) {
	path, err := c.downloadToTemp(ctx, sourceURL)
	if err != nil {
		return "", &IngestError{Op: "download fallback", Err: err}
	}
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil {
			c.log.Warnf("ingest: temp file cleanup: %v", rmErr)
		}
	}()

	c.log.Infof("ingest: uploading local file %s", path)
	taskID, err := c.backend.CreateTaskFromFile(ctx, indexID, path, userMetadata)
	if err != nil {
		return "", &IngestError{Op: "upload fallback", Err: err}
	}
	return taskID, nil
}

// encodeMetadata serializes caller metadata to a compact JSON object string.
// Anything that cannot be serialized becomes "{}" rather than aborting the
// ingest.
func encodeMetadata(metadata map[string]any, log *logging.Logger) string {
	if len(metadata) == 0 {
		return "{}"
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		log.Warnf("ingest: metadata not serializable, using empty object: %v", err)
		return "{}"
	}
	return string(b)
}
