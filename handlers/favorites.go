package handlers

import (
	"errors"
	"net/http"

	"github.com/savid/tvstream/pkg/data"
	"github.com/sirupsen/logrus"
)

// FavoritesHandler lists and toggles favorite channels.
type FavoritesHandler struct {
	store  *data.Store
	logger *logrus.Logger
}

type favoriteResponse struct {
	ID       int  `json:"id"`
	Favorite bool `json:"favorite"`
}

// NewFavoritesHandler creates a new favorites handler instance.
func NewFavoritesHandler(store *data.Store, logger *logrus.Logger) *FavoritesHandler {
	return &FavoritesHandler{
		store:  store,
		logger: logger,
	}
}

// List returns the favorite channels.
func (h *FavoritesHandler) List(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, h.store.Describe(h.store.Favorites()))
}

// Toggle flips the favorite state of a channel.
func (h *FavoritesHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id, err := channelID(r)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	favorite, err := h.store.ToggleFavorite(id)
	switch {
	case errors.Is(err, data.ErrChannelNotFound):
		writeError(w, h.logger, http.StatusNotFound, err.Error())
		return
	case err != nil:
		h.logger.WithError(err).Error("Failed to toggle favorite")
		writeError(w, h.logger, http.StatusInternalServerError, "failed to save favorites")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, favoriteResponse{ID: id, Favorite: favorite})
}
