package data

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/savid/tvstream/config"
	"github.com/savid/tvstream/internal/metrics"
	"github.com/savid/tvstream/pkg/epg"
	"github.com/savid/tvstream/pkg/m3u"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// Fetcher handles fetching playlist and EPG data from the configured sources.
type Fetcher struct {
	config *config.Config
	client *http.Client
	fs     afero.Fs
	logger *logrus.Logger
}

// FetchResult contains the results of fetching both playlist and EPG data.
// Each part is filled independently; Err is set for the part that failed.
type FetchResult struct {
	Playlist struct {
		Source   string
		Channels []m3u.Channel
		Err      error
	}
	EPG struct {
		Raw []byte
		TV  *epg.TV
		Err error
	}
}

// NewFetcher creates a new fetcher instance.
func NewFetcher(cfg *config.Config, logger *logrus.Logger) *Fetcher {
	return &Fetcher{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.FetchTimeout,
		},
		fs:     afero.NewOsFs(),
		logger: logger,
	}
}

// Source returns the playlist adapter for location, downloading URLs with the
// fetcher's client and reading paths from its filesystem.
func (f *Fetcher) Source(location string) m3u.Source {
	return m3u.NewSource(f.fs, f.client, f.config.UserAgent, location)
}

// FetchAll fetches the configured playlist and EPG concurrently. Sources that
// are not configured are skipped. A failure of one part does not discard the other.
func (f *Fetcher) FetchAll(ctx context.Context) (*FetchResult, error) {
	result := &FetchResult{}

	var g errgroup.Group

	if f.config.PlaylistURL != "" {
		g.Go(func() error {
			src := f.Source(f.config.PlaylistURL)
			channels, err := f.fetchPlaylist(ctx, src)
			result.Playlist.Source = src.Name()
			result.Playlist.Channels = channels
			result.Playlist.Err = err
			return err
		})
	}

	if f.config.EPGURL != "" {
		g.Go(func() error {
			raw, tv, err := f.fetchEPG(ctx)
			result.EPG.Raw = raw
			result.EPG.TV = tv
			result.EPG.Err = err
			return err
		})
	}

	// both errors are kept on the result
	_ = g.Wait()

	return result, errors.Join(result.Playlist.Err, result.EPG.Err)
}

// Import loads the playlist from src and merges it into store.
func (f *Fetcher) Import(ctx context.Context, store *Store, src m3u.Source, origin string) (ImportResult, error) {
	channels, err := f.fetchPlaylist(ctx, src)
	metrics.RecordImport(origin, err)
	if err != nil {
		return ImportResult{}, err
	}

	result := store.Import(src.Name(), channels)

	f.logger.WithFields(logrus.Fields{
		"source":  result.Source,
		"origin":  origin,
		"added":   result.Added,
		"updated": result.Updated,
		"removed": result.Removed,
	}).Info("Imported playlist")

	return result, nil
}

func (f *Fetcher) fetchPlaylist(ctx context.Context, src m3u.Source) ([]m3u.Channel, error) {
	f.logger.WithField("source", src.Name()).Info("Fetching playlist")

	channels, err := m3u.Load(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch playlist: %w", err)
	}

	metrics.ObserveChannelsParsed(len(channels))
	f.logger.WithField("channels", len(channels)).Info("Successfully fetched and parsed playlist")

	return channels, nil
}

func (f *Fetcher) fetchEPG(ctx context.Context) ([]byte, *epg.TV, error) {
	src := f.Source(f.config.EPGURL)
	f.logger.WithField("source", src.Name()).Info("Fetching EPG data")

	content, err := src.Fetch(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch EPG: %w", err)
	}

	tv, err := epg.ParseStream(strings.NewReader(content))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse EPG: %w", err)
	}

	f.logger.WithFields(logrus.Fields{
		"channels":   len(tv.Channels),
		"programmes": len(tv.Programs),
	}).Info("Successfully fetched EPG")

	return []byte(content), tv, nil
}
