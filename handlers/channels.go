package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/savid/tvstream/internal/player"
	"github.com/savid/tvstream/pkg/data"
	"github.com/savid/tvstream/pkg/m3u"
	"github.com/sirupsen/logrus"
)

// ChannelsHandler serves the channel library.
type ChannelsHandler struct {
	store  *data.Store
	prober *player.Prober
	logger *logrus.Logger
}

type qualitiesResponse struct {
	ChannelID int            `json:"channelId"`
	Levels    []player.Level `json:"levels"`
}

// NewChannelsHandler creates a new channels handler instance.
func NewChannelsHandler(store *data.Store, prober *player.Prober, logger *logrus.Logger) *ChannelsHandler {
	return &ChannelsHandler{
		store:  store,
		prober: prober,
		logger: logger,
	}
}

// List returns every channel in the library.
func (h *ChannelsHandler) List(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, h.store.Describe(h.store.Channels()))
}

// Get returns one channel.
func (h *ChannelsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ch, ok := h.lookup(w, r)
	if !ok {
		return
	}

	writeJSON(w, h.logger, http.StatusOK, h.store.Describe([]data.Channel{ch})[0])
}

// Search filters channels with the q query parameter. fuzzy=true enables
// in-order character matching.
func (h *ChannelsHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	fuzzy, _ := strconv.ParseBool(query.Get("fuzzy"))

	writeJSON(w, h.logger, http.StatusOK, h.store.Describe(h.store.Search(query.Get("q"), fuzzy)))
}

// Qualities probes the channel stream for its HLS variants.
func (h *ChannelsHandler) Qualities(w http.ResponseWriter, r *http.Request) {
	ch, ok := h.lookup(w, r)
	if !ok {
		return
	}

	levels, err := h.prober.Probe(r.Context(), ch.StreamURL)
	if err != nil {
		h.logger.WithError(err).WithField("channel", ch.ID).Warn("Failed to probe stream")

		resp := errorResponse{Error: err.Error()}
		var statusErr *m3u.StatusError
		if errors.As(err, &statusErr) {
			resp.UpstreamStatus = statusErr.StatusCode
		}
		writeJSON(w, h.logger, http.StatusBadGateway, resp)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, qualitiesResponse{ChannelID: ch.ID, Levels: levels})
}

func (h *ChannelsHandler) lookup(w http.ResponseWriter, r *http.Request) (data.Channel, bool) {
	id, err := channelID(r)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return data.Channel{}, false
	}

	ch, err := h.store.Channel(id)
	if err != nil {
		writeError(w, h.logger, http.StatusNotFound, err.Error())
		return data.Channel{}, false
	}

	return ch, true
}

func channelID(r *http.Request) (int, error) {
	value := chi.URLParam(r, "id")
	id, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid channel id %q", value)
	}
	return id, nil
}
