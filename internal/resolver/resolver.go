// Package resolver turns a YouTube (or short-link) URL into a directly
// fetchable progressive MP4 URL. Resolution can miss; it never fails: the
// downstream ingest stages carry their own fallbacks.
package resolver

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"
	"github.com/tidwall/gjson"

	"brand-video-analyzer/internal"
	"brand-video-analyzer/internal/logging"
)

const rapidAPIHost = "yt-api.p.rapidapi.com"

// Progressive (muxed audio+video) MP4 itags, highest quality first.
const (
	itag720 = "22"
	itag360 = "18"
)

type Resolver struct {
	apiKey  string
	region  string
	baseURL string
	http    *http.Client
	yt      *youtube.Client
	log     *logging.Logger
}

func New(cfg internal.Config, log *logging.Logger) *Resolver {
	return &Resolver{
		apiKey:  cfg.RapidAPIKey,
		region:  cfg.YTRegion,
		baseURL: "https://" + rapidAPIHost,
		http:    &http.Client{Timeout: 20 * time.Second},
		yt:      &youtube.Client{},
		log:     log,
	}
}

// Resolve returns the best directly fetchable media URL for the input, or ""
// when nothing could be resolved.
func (r *Resolver) Resolve(ctx context.Context, sourceURL string) string {
	if r.apiKey != "" {
		if direct := r.resolveKeyed(ctx, sourceURL); direct != "" {
			r.log.Infof("resolver: keyed service resolved direct url")
			return direct
		}
	}
	if direct := r.resolveLocal(ctx, sourceURL); direct != "" {
		r.log.Infof("resolver: local probe resolved direct url")
		return direct
	}
	r.log.Warnf("resolver: no direct url for %s", sourceURL)
	return ""
}

// resolveKeyed queries the RapidAPI yt-api /dl endpoint for stream metadata.
func (r *Resolver) resolveKeyed(ctx context.Context, sourceURL string) string {
	q := url.Values{}
	if vid := ExtractVideoID(sourceURL); vid != "" {
		q.Set("id", vid)
	} else {
		q.Set("url", sourceURL)
	}
	if r.region != "" {
		q.Set("cgeo", r.region)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/dl?"+q.Encode(), nil)
	if err != nil {
		return ""
	}
	req.Header.Set("x-rapidapi-host", rapidAPIHost)
	req.Header.Set("x-rapidapi-key", r.apiKey)

	resp, err := r.http.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return ""
	}
	return pickProgressiveMP4(string(body))
}

// pickProgressiveMP4 selects a progressive MP4 from the format list. The
// endpoint returns either a flat `formats` list or a nested
// `streamingData.formats`; entries carry url, mime/type and itag.
func pickProgressiveMP4(payload string) string {
	for _, path := range []string{"formats", "streamingData.formats"} {
		items := gjson.Get(payload, path)
		if !items.IsArray() {
			continue
		}
		var best720, best360, bestMP4 string
		items.ForEach(func(_, item gjson.Result) bool {
			u := item.Get("url").String()
			if u == "" {
				return true
			}
			mime := item.Get("mime").String()
			if mime == "" {
				mime = item.Get("type").String()
			}
			switch item.Get("itag").String() {
			case itag720:
				best720 = u
			case itag360:
				best360 = u
			}
			if bestMP4 == "" && strings.Contains(mime, "video/mp4") {
				bestMP4 = u
			}
			return true
		})
		if u := firstOf(best720, best360, bestMP4); u != "" {
			return u
		}
	}
	return ""
}

// resolveLocal probes the platform for stream metadata without downloading
// and applies the same progressive-MP4 preference.
func (r *Resolver) resolveLocal(ctx context.Context, sourceURL string) string {
	if !IsYouTubeURL(sourceURL) {
		return ""
	}
	video, err := r.yt.GetVideoContext(ctx, sourceURL)
	if err != nil {
		r.log.Warnf("resolver: local probe failed: %v", err)
		return ""
	}

	var best720, best360, bestMP4 string
	for _, f := range video.Formats.WithAudioChannels() {
		if f.URL == "" {
			continue
		}
		switch f.ItagNo {
		case 22:
			best720 = f.URL
		case 18:
			best360 = f.URL
		}
		if bestMP4 == "" && strings.Contains(f.MimeType, "video/mp4") {
			bestMP4 = f.URL
		}
	}
	return firstOf(best720, best360, bestMP4)
}

func firstOf(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
