package data

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/savid/tvstream/internal/metrics"
	"github.com/sirupsen/logrus"
)

// Refresher re-fetches the configured playlist and EPG on a cron schedule.
type Refresher struct {
	store    *Store
	fetcher  *Fetcher
	schedule string
	logger   *logrus.Logger
}

// NewRefresher creates a new refresh manager.
func NewRefresher(store *Store, fetcher *Fetcher, schedule string, logger *logrus.Logger) *Refresher {
	return &Refresher{
		store:    store,
		fetcher:  fetcher,
		schedule: schedule,
		logger:   logger,
	}
}

// Start runs the refresh schedule until the context is cancelled. Overlapping
// runs are skipped.
func (r *Refresher) Start(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(r.logger))))

	if _, err := c.AddFunc(r.schedule, func() {
		_ = r.Refresh(ctx)
	}); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", r.schedule, err)
	}

	c.Start()
	r.logger.WithField("schedule", r.schedule).Info("Refresh manager started")

	<-ctx.Done()
	r.logger.Info("Refresh manager shutting down")
	<-c.Stop().Done()

	return nil
}

// Refresh performs one fetch cycle and applies every part that succeeded.
func (r *Refresher) Refresh(ctx context.Context) error {
	r.logger.Info("Starting data refresh")

	result, err := r.fetcher.FetchAll(ctx)

	if r.fetcher.config.PlaylistURL != "" {
		metrics.RecordImport(metrics.OriginRefresh, result.Playlist.Err)
		if result.Playlist.Err == nil {
			imported := r.store.Import(result.Playlist.Source, result.Playlist.Channels)
			r.logger.WithFields(logrus.Fields{
				"added":   imported.Added,
				"updated": imported.Updated,
				"removed": imported.Removed,
			}).Info("Playlist refreshed")
		}
	}

	if result.EPG.Err == nil && result.EPG.TV != nil {
		r.store.SetEPG(result.EPG.Raw, result.EPG.TV)
	}

	if err != nil {
		r.logger.WithError(err).Error("Failed to refresh data")
		return err
	}

	r.logger.Info("Data refresh completed successfully")
	return nil
}
