package handlers

import (
	"net/http"
	"time"

	"github.com/savid/tvstream/pkg/data"
	"github.com/savid/tvstream/pkg/epg"
	"github.com/sirupsen/logrus"
)

const dateLayout = "2006-01-02"

// GuideHandler serves the raw XMLTV document and per-channel schedules.
type GuideHandler struct {
	store    *data.Store
	location *time.Location
	logger   *logrus.Logger
}

type scheduleResponse struct {
	ChannelID  int         `json:"channelId"`
	Date       string      `json:"date"`
	Programmes []epg.Entry `json:"programmes"`
}

// NewGuideHandler creates a guide handler. Schedule days are evaluated in location.
func NewGuideHandler(store *data.Store, location *time.Location, logger *logrus.Logger) *GuideHandler {
	if location == nil {
		location = time.Local
	}
	return &GuideHandler{
		store:    store,
		location: location,
		logger:   logger,
	}
}

// XML writes the EPG as it was downloaded.
func (h *GuideHandler) XML(w http.ResponseWriter, _ *http.Request) {
	raw, ok := h.store.GetEPG()
	if !ok {
		h.logger.Error("EPG data not available")
		http.Error(w, "EPG data not available", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	_, _ = w.Write(raw)
}

// Schedule lists the programmes of one channel for the day given by the date
// query parameter, today by default.
func (h *GuideHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	id, err := channelID(r)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	ch, err := h.store.Channel(id)
	if err != nil {
		writeError(w, h.logger, http.StatusNotFound, err.Error())
		return
	}

	day := time.Now().In(h.location)
	if value := r.URL.Query().Get("date"); value != "" {
		day, err = time.ParseInLocation(dateLayout, value, h.location)
		if err != nil {
			writeError(w, h.logger, http.StatusBadRequest, "date must be formatted as YYYY-MM-DD")
			return
		}
	}

	guide := h.store.Guide()
	writeJSON(w, h.logger, http.StatusOK, scheduleResponse{
		ChannelID:  ch.ID,
		Date:       day.Format(dateLayout),
		Programmes: guide.Schedule(guide.Resolve(ch.TVGID, ch.Name), day),
	})
}
