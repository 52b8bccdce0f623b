package handlers

import (
	"bytes"
	"net/http"

	"github.com/savid/tvstream/pkg/data"
	"github.com/savid/tvstream/pkg/m3u"
	"github.com/sirupsen/logrus"
)

// PlaylistHandler serves the channel library as an M3U playlist.
type PlaylistHandler struct {
	store  *data.Store
	logger *logrus.Logger
}

// NewPlaylistHandler creates a new playlist handler instance.
func NewPlaylistHandler(store *data.Store, logger *logrus.Logger) *PlaylistHandler {
	return &PlaylistHandler{
		store:  store,
		logger: logger,
	}
}

func (h *PlaylistHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	if !h.store.HasData() {
		h.logger.Error("Playlist data not available")
		http.Error(w, "Playlist data not available", http.StatusServiceUnavailable)
		return
	}

	var buf bytes.Buffer
	if err := m3u.Write(&buf, h.store.Playlist()); err != nil {
		h.logger.WithError(err).Error("Failed to write playlist")
		http.Error(w, "failed to write playlist", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	_, _ = w.Write(buf.Bytes())
}
