package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/kkdai/youtube/v2"

	"brand-video-analyzer/internal/resolver"
)

// downloadToTemp fetches the source video into a fresh temp file and returns
// its path. On any error the partial file is already removed; on success the
// caller owns deletion.
func (c *Coordinator) downloadToTemp(ctx context.Context, sourceURL string) (string, error) {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("ingest-%s.mp4", uuid.NewString()))
	var err error
	if resolver.IsYouTubeURL(sourceURL) {
		err = c.downloadYouTube(ctx, sourceURL, path)
	} else {
		err = c.downloadDirect(ctx, sourceURL, path)
	}
	if err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func (c *Coordinator) downloadYouTube(ctx context.Context, sourceURL, path string) error {
	client := youtube.Client{}
	video, err := client.GetVideoContext(ctx, sourceURL)
	if err != nil {
		return fmt.Errorf("youtube metadata: %w", err)
	}

	formats := video.Formats.WithAudioChannels()
	var format *youtube.Format
	for i := range formats {
		f := &formats[i]
		if !strings.Contains(f.MimeType, "video/mp4") {
			continue
		}
		if format == nil || f.ItagNo == 22 || (f.ItagNo == 18 && format.ItagNo != 22) {
			format = f
		}
	}
	if format == nil {
		return fmt.Errorf("no progressive mp4 format for %s", video.ID)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer f.Close()

	stream, _, err := client.GetStreamContext(ctx, video, format)
	if err != nil {
		return fmt.Errorf("youtube stream: %w", err)
	}
	defer stream.Close()

	n, err := io.Copy(f, stream)
	if err != nil {
		return fmt.Errorf("copy stream: %w", err)
	}
	c.log.Infof("ingest: downloaded %s (%d bytes)", video.ID, n)
	return nil
}

func (c *Coordinator) downloadDirect(ctx context.Context, sourceURL, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http %d for %s", resp.StatusCode, sourceURL)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, resp.Body)
	if err != nil {
		return fmt.Errorf("copy body: %w", err)
	}
	c.log.Infof("ingest: downloaded %s (%d bytes)", sourceURL, n)
	return nil
}
