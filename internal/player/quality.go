// Package player inspects HLS streams to report the qualities a client can switch between.
package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/grafov/m3u8"
	"github.com/patrickmn/go-cache"
	"github.com/savid/tvstream/internal/metrics"
	"github.com/savid/tvstream/pkg/m3u"
)

// HDMinHeight is the smallest vertical resolution reported as HD.
const HDMinHeight = 720

// maxPlaylistBytes caps how much of a response is read as a playlist. Stream
// URLs may point at endless MPEG-TS instead of a playlist.
const maxPlaylistBytes = 1 << 20

// Quality labels.
const (
	QualityHD = "HD"
	QualitySD = "SD"
)

// ErrNotPlaylist is returned when a stream is not an HLS playlist.
var ErrNotPlaylist = errors.New("stream is not an HLS playlist")

// Level is one selectable rendition of a stream.
type Level struct {
	Bandwidth  uint32 `json:"bandwidth,omitempty"`
	Resolution string `json:"resolution,omitempty"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	Quality    string `json:"quality"`
	URI        string `json:"uri"`
}

// Quality returns the label for a vertical resolution.
func Quality(height int) string {
	if height >= HDMinHeight {
		return QualityHD
	}
	return QualitySD
}

// Prober fetches HLS playlists and caches their quality levels.
type Prober struct {
	client    *http.Client
	userAgent string
	cache     *cache.Cache
}

// NewProber creates a prober whose results are kept for ttl. A ttl that is not
// positive disables caching.
func NewProber(client *http.Client, userAgent string, ttl time.Duration) *Prober {
	if client == nil {
		client = http.DefaultClient
	}
	p := &Prober{
		client:    client,
		userAgent: userAgent,
	}
	if ttl > 0 {
		p.cache = cache.New(ttl, 2*ttl)
	}
	return p
}

// Probe returns the quality levels of streamURL, highest resolution first.
func (p *Prober) Probe(ctx context.Context, streamURL string) ([]Level, error) {
	if p.cache != nil {
		if cached, ok := p.cache.Get(streamURL); ok {
			metrics.RecordProbe("cached")
			return cached.([]Level), nil
		}
	}

	levels, err := p.probe(ctx, streamURL)
	if err != nil {
		metrics.RecordProbe("failure")
		return nil, err
	}

	metrics.RecordProbe("success")
	if p.cache != nil {
		p.cache.SetDefault(streamURL, levels)
	}
	return levels, nil
}

func (p *Prober) probe(ctx context.Context, streamURL string) ([]Level, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stream: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &m3u.StatusError{URL: streamURL, StatusCode: resp.StatusCode}
	}

	if contentType := resp.Header.Get("Content-Type"); !isPlaylistContentType(contentType) {
		return nil, fmt.Errorf("%w: content type %q", ErrNotPlaylist, contentType)
	}

	playlist, _, err := m3u8.DecodeFrom(io.LimitReader(resp.Body, maxPlaylistBytes), false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPlaylist, err)
	}

	switch pl := playlist.(type) {
	case *m3u8.MasterPlaylist:
		return masterLevels(streamURL, pl), nil
	case *m3u8.MediaPlaylist:
		return []Level{{Quality: QualitySD, URI: streamURL}}, nil
	}

	return nil, ErrNotPlaylist
}

func masterLevels(streamURL string, pl *m3u8.MasterPlaylist) []Level {
	base, _ := url.Parse(streamURL)

	levels := make([]Level, 0, len(pl.Variants))
	for _, v := range pl.Variants {
		if v == nil || v.Iframe {
			continue
		}

		width, height := parseResolution(v.Resolution)
		levels = append(levels, Level{
			Bandwidth:  v.Bandwidth,
			Resolution: v.Resolution,
			Width:      width,
			Height:     height,
			Quality:    Quality(height),
			URI:        resolveURI(base, v.URI),
		})
	}

	sort.SliceStable(levels, func(i, j int) bool {
		if levels[i].Height != levels[j].Height {
			return levels[i].Height > levels[j].Height
		}
		return levels[i].Bandwidth > levels[j].Bandwidth
	})

	return levels
}

// isPlaylistContentType accepts the mpegurl types and the generic types that
// misconfigured servers send for playlists.
func isPlaylistContentType(contentType string) bool {
	if contentType == "" {
		return true
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}

	switch {
	case strings.HasSuffix(mediaType, "mpegurl"):
		return true
	case mediaType == "text/plain", mediaType == "application/octet-stream", mediaType == "binary/octet-stream":
		return true
	}
	return false
}

// parseResolution reads a RESOLUTION attribute such as "1280x720".
func parseResolution(resolution string) (width, height int) {
	w, h, ok := strings.Cut(strings.ToLower(resolution), "x")
	if !ok {
		return 0, 0
	}
	width, _ = strconv.Atoi(strings.TrimSpace(w))
	height, _ = strconv.Atoi(strings.TrimSpace(h))
	return width, height
}

func resolveURI(base *url.URL, ref string) string {
	if base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
