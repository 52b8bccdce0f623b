package data

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/savid/tvstream/pkg/epg"
	"github.com/savid/tvstream/pkg/m3u"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(nil)
	require.NoError(t, err)
	return store
}

func playlist(urls ...string) []m3u.Channel {
	channels := make([]m3u.Channel, 0, len(urls))
	for i, u := range urls {
		channels = append(channels, m3u.Channel{
			ID:        i + 1,
			Name:      "Channel " + u,
			StreamURL: "http://streams.example.com/" + u,
			Logo:      m3u.DefaultLogo,
			Category:  m3u.DefaultCategory,
		})
	}
	return channels
}

func TestStoreOperations(t *testing.T) {
	store := newTestStore(t)

	// Test initial state
	if store.HasData() {
		t.Error("New store should not have data")
	}

	// Test getting EPG when empty
	if _, ok := store.GetEPG(); ok {
		t.Error("GetEPG should return false when no data")
	}
	if store.Guide() != nil {
		t.Error("Guide should be nil when no data")
	}

	result := store.Import("list.m3u", playlist("a", "b"))
	if result.Added != 2 || result.Total != 2 {
		t.Errorf("Expected 2 added channels, got %+v", result)
	}

	if !store.HasData() {
		t.Error("Store should report having data after import")
	}

	// Set EPG data
	epgRaw := []byte(`<?xml version="1.0"?><tv></tv>`)
	store.SetEPG(epgRaw, &epg.TV{})

	gotEPG, ok := store.GetEPG()
	if !ok {
		t.Error("GetEPG should return true after setting data")
	}
	if string(gotEPG) != string(epgRaw) {
		t.Errorf("Expected EPG data %q, got %q", epgRaw, gotEPG)
	}

	// Test LastSync
	lastSync := store.LastSync()
	if time.Since(lastSync) > time.Second {
		t.Error("LastSync should be recent")
	}
}

func TestStoreImportKeepsIDs(t *testing.T) {
	store := newTestStore(t)

	first := store.Import("list.m3u", playlist("a", "b", "c"))
	assert.Equal(t, 3, first.Added)

	channels := store.Channels()
	require.Len(t, channels, 3)
	idOfB := channels[1].ID

	second := store.Import("list.m3u", playlist("b", "c", "d"))
	assert.Equal(t, 1, second.Added)
	assert.Equal(t, 2, second.Updated)
	assert.Equal(t, 1, second.Removed)

	channels = store.Channels()
	require.Len(t, channels, 3)
	assert.Equal(t, idOfB, channels[0].ID)
	assert.Equal(t, "http://streams.example.com/b", channels[0].StreamURL)
	assert.Equal(t, 4, channels[2].ID, "removed ids are never reused")

	_, err := store.Channel(1)
	assert.ErrorIs(t, err, ErrChannelNotFound)
}

func TestStoreImportSourcesAreIndependent(t *testing.T) {
	store := newTestStore(t)

	store.Import("sports.m3u", playlist("s1", "s2"))
	store.Import("news.m3u", playlist("n1"))
	result := store.Import("sports.m3u", nil)

	assert.Equal(t, 2, result.Removed)
	channels := store.Channels()
	require.Len(t, channels, 1)
	assert.Equal(t, "news.m3u", channels[0].Source)
}

func TestStoreImportCollapsesDuplicates(t *testing.T) {
	store := newTestStore(t)

	channels := playlist("a", "a")
	channels[1].Name = "Second copy"

	result := store.Import("dupes.m3u", channels)

	assert.Equal(t, 1, result.Total)
	require.Len(t, store.Channels(), 1)
	assert.Equal(t, "Channel a", store.Channels()[0].Name)
}

func TestStoreImportHistory(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < maxImportHistory+5; i++ {
		store.Import("list-"+strconv.Itoa(i)+".m3u", nil)
	}

	history := store.Imports()
	require.Len(t, history, maxImportHistory)
	assert.Equal(t, "list-"+strconv.Itoa(maxImportHistory+4)+".m3u", history[0].Source)
	assert.NotEqual(t, history[0].ID, history[1].ID)
}

func TestStoreSearch(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	channels := []m3u.Channel{
		{Name: "BBC World", StreamURL: "http://x/bbc", TVGID: "bbc"},
		{Name: "Первый канал", StreamURL: "http://x/perviy"},
		{Name: "Discovery", StreamURL: "http://x/disc"},
	}
	store.Import("list.m3u", channels)
	store.SetEPG(nil, &epg.TV{
		Programs: []epg.Programme{
			{Channel: "bbc", Start: "20250301120000 +0000", Stop: "20250301130000 +0000", Title: "Planet Earth"},
		},
	})

	tests := []struct {
		name  string
		query string
		fuzzy bool
		want  []string
	}{
		{name: "empty query returns all", query: "  ", want: []string{"BBC World", "Первый канал", "Discovery"}},
		{name: "case insensitive", query: "bbc", want: []string{"BBC World"}},
		{name: "cyrillic case folding", query: "ПЕРВЫЙ", want: []string{"Первый канал"}},
		{name: "matches current show", query: "planet", want: []string{"BBC World"}},
		{name: "no match", query: "cnn", want: []string{}},
		{name: "substring needs contiguous text", query: "dsc", want: []string{}},
		{name: "fuzzy matches in order", query: "dsc", fuzzy: true, want: []string{"Discovery"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			names := []string{}
			for _, ch := range store.Search(tt.query, tt.fuzzy) {
				names = append(names, ch.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestStoreDescribe(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	store.Import("list.m3u", []m3u.Channel{
		{Name: "BBC World", StreamURL: "http://x/bbc", TVGID: "bbc"},
		{Name: "Discovery", StreamURL: "http://x/disc"},
	})
	store.SetEPG(nil, &epg.TV{
		Programs: []epg.Programme{
			{Channel: "bbc", Start: "20250301120000 +0000", Stop: "20250301130000 +0000", Title: "Planet Earth"},
			{Channel: "bbc", Start: "20250301130000 +0000", Stop: "20250301140000 +0000", Title: "News"},
		},
	})
	_, err := store.ToggleFavorite(2)
	require.NoError(t, err)

	infos := store.Describe(store.Channels())

	require.Len(t, infos, 2)
	assert.Equal(t, "Planet Earth", infos[0].CurrentShow)
	assert.Equal(t, "News", infos[0].NextShow)
	assert.True(t, infos[0].IsLive)
	assert.False(t, infos[0].Favorite)

	assert.Empty(t, infos[1].CurrentShow)
	assert.False(t, infos[1].IsLive)
	assert.True(t, infos[1].Favorite)
}

func TestStoreFavorites(t *testing.T) {
	dir := t.TempDir()
	favFile := NewFavoritesFile(dir)

	store, err := NewStore(favFile)
	require.NoError(t, err)
	store.Import("list.m3u", playlist("a", "b"))

	on, err := store.ToggleFavorite(2)
	require.NoError(t, err)
	assert.True(t, on)
	assert.True(t, store.IsFavorite(2))
	require.Len(t, store.Favorites(), 1)

	_, err = store.ToggleFavorite(42)
	assert.ErrorIs(t, err, ErrChannelNotFound)

	// A fresh store picks the favorite up again by stream URL.
	reloaded, err := NewStore(favFile)
	require.NoError(t, err)
	reloaded.Import("other.m3u", playlist("b"))
	require.Len(t, reloaded.Favorites(), 1)
	assert.Equal(t, "http://streams.example.com/b", reloaded.Favorites()[0].StreamURL)

	off, err := reloaded.ToggleFavorite(1)
	require.NoError(t, err)
	assert.False(t, off)

	urls, err := favFile.Load()
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestStoreFavoriteSaveFailureReverts(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "data")

	store, err := NewStore(NewFavoritesFile(dataDir))
	require.NoError(t, err)
	store.Import("list.m3u", playlist("a"))

	// a plain file where the data directory should be
	require.NoError(t, os.WriteFile(dataDir, []byte("x"), 0o600))

	_, err = store.ToggleFavorite(1)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrChannelNotFound))
	assert.False(t, store.IsFavorite(1))
}

func TestStoreConcurrency(t *testing.T) {
	store := newTestStore(t)

	var wg sync.WaitGroup
	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				fn()
			}
		}()
	}

	// Concurrent writes
	run(func() { store.Import("list.m3u", playlist("a", "b")) })
	run(func() { store.SetEPG([]byte("test"), &epg.TV{}) })
	run(func() { _, _ = store.ToggleFavorite(1) })

	// Concurrent reads
	run(func() { store.Channels() })
	run(func() { store.Search("a", false) })
	run(func() { store.Describe(store.Channels()) })
	run(func() { store.GetEPG() })
	run(func() { store.HasData() })

	wg.Wait()

	assert.Len(t, store.Channels(), 2)
}
