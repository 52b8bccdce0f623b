package m3u

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ErrUnexpectedStatus is returned when a remote playlist answers with a non-2xx status code.
var ErrUnexpectedStatus = errors.New("unexpected status code")

// StatusError carries the HTTP status code of a failed playlist download.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d", ErrUnexpectedStatus, e.StatusCode)
}

// Is reports whether target is ErrUnexpectedStatus.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// Source produces the full text of a playlist.
type Source interface {
	// Name identifies the source in logs and import history.
	Name() string
	// Fetch returns the playlist text or the error that prevented reading it.
	Fetch(ctx context.Context) (string, error)
}

// FileSource reads a playlist from a filesystem path.
type FileSource struct {
	Fs   afero.Fs
	Path string
}

// Name returns the file path.
func (s *FileSource) Name() string {
	return s.Path
}

// Fetch reads the whole file.
func (s *FileSource) Fetch(_ context.Context) (string, error) {
	fs := s.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	data, err := afero.ReadFile(fs, s.Path)
	if err != nil {
		return "", fmt.Errorf("failed to read playlist file: %w", err)
	}

	return string(data), nil
}

// ReaderSource reads a playlist from an already opened file handle, such as an upload.
type ReaderSource struct {
	Filename string
	Reader   io.Reader
}

// Name returns the original file name.
func (s *ReaderSource) Name() string {
	return s.Filename
}

// Fetch reads the handle until EOF.
func (s *ReaderSource) Fetch(_ context.Context) (string, error) {
	data, err := io.ReadAll(s.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to read playlist file: %w", err)
	}

	return string(data), nil
}

// URLSource downloads a playlist over HTTP.
type URLSource struct {
	URL       string
	Client    *http.Client
	UserAgent string
}

// Name returns the playlist URL.
func (s *URLSource) Name() string {
	return s.URL
}

// Fetch performs a single GET request. Any non-2xx response is reported as a *StatusError.
func (s *URLSource) Fetch(ctx context.Context) (string, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch playlist: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", &StatusError{URL: s.URL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read playlist body: %w", err)
	}

	return string(body), nil
}

// NewSource picks an adapter for location: http(s) URLs are downloaded with client,
// file:// URLs and bare paths are read from fs.
func NewSource(fs afero.Fs, client *http.Client, userAgent, location string) Source {
	lower := strings.ToLower(location)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return &URLSource{URL: location, Client: client, UserAgent: userAgent}
	case strings.HasPrefix(lower, "file://"):
		return &FileSource{Fs: fs, Path: filepath.FromSlash(location[len("file://"):])}
	default:
		return &FileSource{Fs: fs, Path: location}
	}
}

// Load fetches the playlist text from src and parses it.
func Load(ctx context.Context, src Source) ([]Channel, error) {
	content, err := src.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", src.Name(), err)
	}

	return Parse(content), nil
}
