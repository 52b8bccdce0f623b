package handlers

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/savid/tvstream/config"
	"github.com/savid/tvstream/pkg/data"
	"github.com/savid/tvstream/pkg/m3u"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("read /tmp/multipart-1234: input/output error")
}

func TestImportFileReadFailure(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store, err := data.NewStore(nil)
	require.NoError(t, err)
	fetcher := data.NewFetcher(&config.Config{FetchTimeout: time.Second}, logger)
	handler := NewImportHandler(store, fetcher, 1<<20, false, logger)

	req := httptest.NewRequest(http.MethodPost, "/api/playlists/file", nil)
	w := httptest.NewRecorder()

	handler.importUpload(w, req, &m3u.ReaderSource{Filename: "broken.m3u", Reader: failingReader{}})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decode[errorResponse](t, w)
	assert.Equal(t, "failed to read uploaded playlist", resp.Error)
	assert.NotContains(t, w.Body.String(), "/tmp/multipart")
	assert.Empty(t, store.Imports())
}

func TestImportURLBlockPrivate(t *testing.T) {
	env := setupTestEnvironmentWith(t, func(cfg *config.Config) {
		cfg.BlockPrivateImports = true
	})

	tests := []struct {
		name string
		url  string
	}{
		{name: "loopback upstream", url: env.upstream.URL + "/example.m3u"},
		{name: "private network", url: "http://10.1.2.3/list.m3u"},
		{name: "home router", url: "http://192.168.1.1:8080/list.m3u"},
		{name: "link local metadata", url: "http://169.254.169.254/latest/meta-data"},
		{name: "ipv6 loopback", url: "http://[::1]:8080/list.m3u"},
		{name: "unspecified", url: "http://0.0.0.0/list.m3u"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := fmt.Sprintf(`{"url": %q}`, tt.url)
			w := env.do(t, http.MethodPost, "/api/playlists/url", strings.NewReader(body), "application/json")

			assert.Equal(t, http.StatusForbidden, w.Code)
			assert.Equal(t, "url must point to a public address", decode[errorResponse](t, w).Error)
		})
	}

	assert.Len(t, env.store.Imports(), 1)
}

func TestIsPublicIP(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
	}{
		{ip: "93.184.216.34", want: true},
		{ip: "2606:2800:220:1:248:1893:25c8:1946", want: true},
		{ip: "127.0.0.1", want: false},
		{ip: "10.0.0.1", want: false},
		{ip: "172.16.5.4", want: false},
		{ip: "192.168.0.10", want: false},
		{ip: "169.254.1.1", want: false},
		{ip: "0.0.0.0", want: false},
		{ip: "::1", want: false},
		{ip: "fe80::1", want: false},
		{ip: "fd00::1", want: false},
	}

	for _, tt := range tests {
		if got := isPublicIP(net.ParseIP(tt.ip)); got != tt.want {
			t.Errorf("isPublicIP(%s) = %v, want %v", tt.ip, got, tt.want)
		}
	}
}
