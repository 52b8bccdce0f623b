package handlers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
	"github.com/savid/tvstream/internal/metrics"
	"github.com/savid/tvstream/pkg/data"
	"github.com/savid/tvstream/pkg/m3u"
	"github.com/sirupsen/logrus"
)

const maxImportRequestBytes = 64 << 10

// ErrPrivateAddress is returned for import URLs whose host resolves to a
// loopback, private or link-local address while such imports are blocked.
var ErrPrivateAddress = errors.New("address is not publicly routable")

// ImportHandler imports playlists from a URL or an uploaded file.
type ImportHandler struct {
	store          *data.Store
	fetcher        *data.Fetcher
	maxUploadBytes int64
	blockPrivate   bool
	resolver       *net.Resolver
	logger         *logrus.Logger
}

type importURLRequest struct {
	URL string `json:"url"`
}

// NewImportHandler creates a new import handler instance. With blockPrivate set,
// URL imports may only reach publicly routable hosts.
func NewImportHandler(store *data.Store, fetcher *data.Fetcher, maxUploadBytes int64, blockPrivate bool, logger *logrus.Logger) *ImportHandler {
	return &ImportHandler{
		store:          store,
		fetcher:        fetcher,
		maxUploadBytes: maxUploadBytes,
		blockPrivate:   blockPrivate,
		resolver:       net.DefaultResolver,
		logger:         logger,
	}
}

// History returns past imports, newest first.
func (h *ImportHandler) History(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, h.store.Imports())
}

// ImportURL downloads the playlist at the posted URL into the library.
func (h *ImportHandler) ImportURL(w http.ResponseWriter, r *http.Request) {
	var req importURLRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxImportRequestBytes)).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	location := strings.TrimSpace(req.URL)
	if location == "" {
		writeError(w, h.logger, http.StatusBadRequest, "url is required")
		return
	}

	src, ok := h.fetcher.Source(location).(*m3u.URLSource)
	if !ok {
		writeError(w, h.logger, http.StatusBadRequest, "url must use http or https")
		return
	}

	if h.blockPrivate {
		if err := h.checkPublicHost(r.Context(), location); err != nil {
			h.logger.WithError(err).WithField("url", location).Warn("Rejected playlist import")
			if errors.Is(err, ErrPrivateAddress) {
				writeError(w, h.logger, http.StatusForbidden, "url must point to a public address")
				return
			}
			writeError(w, h.logger, http.StatusBadRequest, "url host cannot be resolved")
			return
		}
	}

	result, err := h.fetcher.Import(r.Context(), h.store, src, metrics.OriginURL)
	if err != nil {
		h.logger.WithError(err).WithField("url", location).Warn("Playlist import failed")

		resp := errorResponse{Error: err.Error()}
		var statusErr *m3u.StatusError
		if errors.As(err, &statusErr) {
			resp.UpstreamStatus = statusErr.StatusCode
		}
		writeJSON(w, h.logger, http.StatusBadGateway, resp)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, result)
}

// ImportFile reads the playlist uploaded in the multipart field "file".
func (h *ImportHandler) ImportFile(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > h.maxUploadBytes {
		writeError(w, h.logger, http.StatusRequestEntityTooLarge, "playlist file is too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, h.logger, http.StatusRequestEntityTooLarge, "playlist file is too large")
			return
		}
		writeError(w, h.logger, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer func() {
		_ = file.Close()
	}()

	h.importUpload(w, r, &m3u.ReaderSource{Filename: header.Filename, Reader: file})
}

// importUpload imports an already received upload. The multipart body has been
// accepted at this point, so a failure is on the server side.
func (h *ImportHandler) importUpload(w http.ResponseWriter, r *http.Request, src *m3u.ReaderSource) {
	result, err := h.fetcher.Import(r.Context(), h.store, src, metrics.OriginFile)
	if err != nil {
		h.logger.WithError(err).WithField("file", src.Name()).Error("Playlist upload failed")
		writeError(w, h.logger, http.StatusInternalServerError, "failed to read uploaded playlist")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, result)
}

func (h *ImportHandler) checkPublicHost(ctx context.Context, location string) error {
	u, err := url.Parse(location)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	addrs, err := h.resolver.LookupIPAddr(ctx, u.Hostname())
	if err != nil {
		return fmt.Errorf("failed to resolve %q: %w", u.Hostname(), err)
	}

	for _, addr := range addrs {
		if !isPublicIP(addr.IP) {
			return fmt.Errorf("%w: %s resolves to %s", ErrPrivateAddress, u.Hostname(), addr.IP)
		}
	}

	return nil
}

func isPublicIP(ip net.IP) bool {
	return !ip.IsLoopback() &&
		!ip.IsPrivate() &&
		!ip.IsUnspecified() &&
		!ip.IsLinkLocalUnicast() &&
		!ip.IsLinkLocalMulticast() &&
		!ip.IsInterfaceLocalMulticast()
}
