package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/lo"
	"github.com/savid/tvstream/config"
	"github.com/savid/tvstream/handlers"
	"github.com/savid/tvstream/internal/player"
	"github.com/savid/tvstream/pkg/data"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()
	flags.IntP(config.KeyPort, "p", 8080, "HTTP port")
	flags.String(config.KeyPlaylistURL, "", "Playlist URL or path loaded at startup and on every refresh")
	flags.String(config.KeyEPGURL, "", "XMLTV guide URL or path")
	flags.String(config.KeyBaseURL, "", "Public base URL used in log output")
	flags.String(config.KeyDataDir, "./data", "Directory for persisted favorites")
	flags.String(config.KeyRefreshCron, "@every 30m", "Refresh schedule (cron expression)")
	flags.Duration(config.KeyFetchTimeout, 30*time.Second, "Timeout of upstream downloads")
	flags.String(config.KeyUserAgent, "tvstream/1.0", "User-Agent sent upstream")
	flags.Int64(config.KeyMaxUploadBytes, 20<<20, "Largest accepted playlist upload in bytes")
	flags.Int(config.KeyImportRateLimit, 10, "Playlist imports allowed per minute and client")
	flags.Duration(config.KeyProbeCacheTTL, 5*time.Minute, "How long stream quality probes are cached")
	flags.Bool(config.KeyBlockPrivate, false, "Reject URL imports that resolve to private or loopback addresses")

	lo.Must0(viper.BindPFlags(flags))
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg, logger)
	},
}

func serve(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	store, err := data.NewStore(data.NewFavoritesFile(cfg.DataDir))
	if err != nil {
		return err
	}
	fetcher := data.NewFetcher(cfg, logger)
	refresher := data.NewRefresher(store, fetcher, cfg.RefreshCron, logger)

	// Initial data fetch; the server also starts without upstream data
	if cfg.PlaylistURL != "" || cfg.EPGURL != "" {
		logger.Info("Fetching initial data...")
		if err := refresher.Refresh(ctx); err != nil {
			logger.WithError(err).Warn("Initial data is incomplete")
		}
	}

	refreshDone := make(chan error, 1)
	go func() {
		refreshDone <- refresher.Start(ctx)
	}()

	router := handlers.NewRouter(handlers.Dependencies{
		Config:  cfg,
		Store:   store,
		Fetcher: fetcher,
		Prober:  player.NewProber(&http.Client{Timeout: cfg.FetchTimeout}, cfg.UserAgent, cfg.ProbeCacheTTL),
		Logger:  logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  120 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Failed to gracefully shutdown")
		}
	}()

	logger.WithField("port", cfg.Port).Info("Starting tvstream server")
	if cfg.BaseURL != "" {
		logger.WithField("endpoint", cfg.BaseURL+"/playlist.m3u").Info("Playlist endpoint")
		logger.WithField("endpoint", cfg.BaseURL+"/epg.xml").Info("EPG endpoint")
	}

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	if err := <-refreshDone; err != nil {
		return err
	}

	logger.Info("Server stopped")
	return nil
}
