// Package handlers provides the HTTP API of the tvstream server.
package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/savid/tvstream/config"
	"github.com/savid/tvstream/internal/player"
	"github.com/savid/tvstream/pkg/data"
	"github.com/sirupsen/logrus"
)

// Dependencies are the components the router serves.
type Dependencies struct {
	Config   *config.Config
	Store    *data.Store
	Fetcher  *data.Fetcher
	Prober   *player.Prober
	Logger   *logrus.Logger
	Location *time.Location // schedule days, time.Local when nil
}

// NewRouter builds the HTTP routes.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger

	channels := NewChannelsHandler(deps.Store, deps.Prober, logger)
	favorites := NewFavoritesHandler(deps.Store, logger)
	guide := NewGuideHandler(deps.Store, deps.Location, logger)
	imports := NewImportHandler(deps.Store, deps.Fetcher, deps.Config.MaxUploadBytes, deps.Config.BlockPrivateImports, logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(LoggingMiddleware(logger))
	r.Use(MetricsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Handle("/playlist.m3u", NewPlaylistHandler(deps.Store, logger))
	r.Get("/epg.xml", guide.XML)

	r.Route("/api", func(r chi.Router) {
		r.Get("/channels", channels.List)
		r.Get("/channels/{id}", channels.Get)
		r.Get("/channels/{id}/schedule", guide.Schedule)
		r.Get("/channels/{id}/qualities", channels.Qualities)
		r.Get("/search", channels.Search)

		r.Get("/favorites", favorites.List)
		r.Post("/favorites/{id}", favorites.Toggle)

		r.Get("/playlists", imports.History)
		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(deps.Config.ImportRateLimit, time.Minute))
			r.Post("/playlists/url", imports.ImportURL)
			r.Post("/playlists/file", imports.ImportFile)
		})
	})

	return r
}
