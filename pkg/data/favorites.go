package data

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/google/renameio/v2"
)

// FavoritesFileName is the name of the favorites file inside the data directory.
const FavoritesFileName = "favorites.json"

// FavoritesFile persists the set of favorite stream URLs as a JSON document.
type FavoritesFile struct {
	path string
}

type favoritesDocument struct {
	StreamURLs []string `json:"streamUrls"`
}

// NewFavoritesFile returns a FavoritesFile stored in dataDir.
func NewFavoritesFile(dataDir string) *FavoritesFile {
	return &FavoritesFile{path: filepath.Join(dataDir, FavoritesFileName)}
}

// Path returns the location of the favorites file.
func (f *FavoritesFile) Path() string {
	return f.path
}

// Load reads the stored stream URLs. A missing file yields no favorites.
func (f *FavoritesFile) Load() ([]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read favorites: %w", err)
	}

	var doc favoritesDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode favorites %s: %w", f.path, err)
	}

	return doc.StreamURLs, nil
}

// Save atomically replaces the favorites file.
func (f *FavoritesFile) Save(streamURLs []string) error {
	if streamURLs == nil {
		streamURLs = []string{}
	}

	data, err := json.MarshalIndent(favoritesDocument{StreamURLs: streamURLs}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode favorites: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o750); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	if err := renameio.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write favorites: %w", err)
	}

	return nil
}
