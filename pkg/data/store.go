// Package data provides the in-memory channel library and the fetching of playlist and EPG data.
package data

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/samber/lo"
	"github.com/savid/tvstream/internal/metrics"
	"github.com/savid/tvstream/pkg/epg"
	"github.com/savid/tvstream/pkg/m3u"
	"github.com/savid/tvstream/pkg/utils"
)

const maxImportHistory = 50

// ErrChannelNotFound is returned when a library id does not exist.
var ErrChannelNotFound = errors.New("channel not found")

// Channel is a playlist channel owned by the library. ID is the library id,
// which stays stable across re-imports of the same stream URL.
type Channel struct {
	m3u.Channel
	Source string `json:"source"`
}

// ChannelInfo decorates a channel with favorite state and guide information.
type ChannelInfo struct {
	Channel
	Favorite    bool   `json:"favorite"`
	CurrentShow string `json:"currentShow,omitempty"`
	NextShow    string `json:"nextShow,omitempty"`
	IsLive      bool   `json:"isLive"`
}

// ImportResult summarizes one playlist import.
type ImportResult struct {
	ID      string    `json:"id"`
	Source  string    `json:"source"`
	Added   int       `json:"added"`
	Updated int       `json:"updated"`
	Removed int       `json:"removed"`
	Total   int       `json:"total"`
	At      time.Time `json:"at"`
}

// EPGData contains EPG XML data and the guide built from it.
type EPGData struct {
	Raw       []byte
	Guide     *epg.Guide
	UpdatedAt time.Time
}

// Store provides thread-safe in-memory storage for the channel library.
type Store struct {
	mu        sync.RWMutex
	channels  []Channel
	nextID    int
	favorites map[string]bool
	favFile   *FavoritesFile
	epgData   *EPGData
	imports   []ImportResult
	lastSync  time.Time
	now       func() time.Time
}

// NewStore creates a new empty library. When favFile is not nil the stored
// favorites are loaded from it and every toggle is persisted.
func NewStore(favFile *FavoritesFile) (*Store, error) {
	s := &Store{
		favorites: make(map[string]bool),
		favFile:   favFile,
		now:       time.Now,
	}

	if favFile != nil {
		urls, err := favFile.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load favorites: %w", err)
		}
		for _, u := range urls {
			s.favorites[u] = true
		}
	}

	return s, nil
}

// Import merges the channels of one playlist into the library. Channels
// previously imported from source but missing now are removed; channels whose
// stream URL is already known keep their id.
func (s *Store) Import(source string, channels []m3u.Channel) ImportResult {
	incoming := lo.UniqBy(channels, func(ch m3u.Channel) string {
		return ch.StreamURL
	})
	incomingURLs := lo.SliceToMap(incoming, func(ch m3u.Channel) (string, bool) {
		return ch.StreamURL, true
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	result := ImportResult{
		ID:     uuid.NewString(),
		Source: source,
		Total:  len(incoming),
		At:     s.now(),
	}

	kept := make([]Channel, 0, len(s.channels)+len(incoming))
	for _, ch := range s.channels {
		if ch.Source == source && !incomingURLs[ch.StreamURL] {
			result.Removed++
			continue
		}
		kept = append(kept, ch)
	}

	index := make(map[string]int, len(kept))
	for i, ch := range kept {
		index[ch.StreamURL] = i
	}

	for _, in := range incoming {
		if i, ok := index[in.StreamURL]; ok {
			id := kept[i].ID
			kept[i].Channel = in
			kept[i].ID = id
			kept[i].Source = source
			result.Updated++
			continue
		}

		s.nextID++
		ch := Channel{Channel: in, Source: source}
		ch.ID = s.nextID
		kept = append(kept, ch)
		result.Added++
	}

	s.channels = kept
	s.lastSync = result.At
	s.imports = append([]ImportResult{result}, s.imports...)
	if len(s.imports) > maxImportHistory {
		s.imports = s.imports[:maxImportHistory]
	}

	metrics.SetLibraryChannels(len(s.channels))

	return result
}

// Channels returns all channels in library id order.
func (s *Store) Channels() []Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Channel, len(s.channels))
	copy(out, s.channels)
	return out
}

// Channel returns the channel with the given library id.
func (s *Store) Channel(id int) (Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ch, ok := s.find(id)
	if !ok {
		return Channel{}, fmt.Errorf("%w: %d", ErrChannelNotFound, id)
	}
	return ch, nil
}

// Playlist returns the library as plain playlist channels.
func (s *Store) Playlist() []m3u.Channel {
	return lo.Map(s.Channels(), func(ch Channel, _ int) m3u.Channel {
		return ch.Channel
	})
}

// Search returns the channels whose name or current show matches query. The
// default is a case-insensitive substring match; with fuzzy set the characters
// of query only need to appear in order.
func (s *Store) Search(query string, fuzzyMatch bool) []Channel {
	channels := s.Channels()

	query = strings.TrimSpace(query)
	if query == "" {
		return channels
	}

	guide := s.Guide()
	now := s.now()
	needle := utils.Fold(query)

	matches := func(text string) bool {
		if text == "" {
			return false
		}
		if fuzzyMatch {
			return fuzzy.MatchNormalizedFold(query, text)
		}
		return strings.Contains(utils.Fold(text), needle)
	}

	return lo.Filter(channels, func(ch Channel, _ int) bool {
		if matches(ch.Name) {
			return true
		}
		current, _ := guide.NowNext(guide.Resolve(ch.TVGID, ch.Name), now)
		return current != nil && matches(current.Title)
	})
}

// ToggleFavorite flips the favorite state of a channel and returns the new state.
func (s *Store) ToggleFavorite(id int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.find(id)
	if !ok {
		return false, fmt.Errorf("%w: %d", ErrChannelNotFound, id)
	}

	favorite := !s.favorites[ch.StreamURL]
	s.setFavorite(ch.StreamURL, favorite)

	if s.favFile != nil {
		if err := s.favFile.Save(s.favoriteURLs()); err != nil {
			s.setFavorite(ch.StreamURL, !favorite)
			return !favorite, fmt.Errorf("failed to save favorites: %w", err)
		}
	}

	return favorite, nil
}

// IsFavorite reports whether the channel with the given id is a favorite.
func (s *Store) IsFavorite(id int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ch, ok := s.find(id)
	return ok && s.favorites[ch.StreamURL]
}

// Favorites returns the favorite channels in library order.
func (s *Store) Favorites() []Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return lo.Filter(s.channels, func(ch Channel, _ int) bool {
		return s.favorites[ch.StreamURL]
	})
}

// Describe adds favorite state and the current and next show to channels.
func (s *Store) Describe(channels []Channel) []ChannelInfo {
	guide := s.Guide()
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	return lo.Map(channels, func(ch Channel, _ int) ChannelInfo {
		info := ChannelInfo{
			Channel:  ch,
			Favorite: s.favorites[ch.StreamURL],
		}

		current, next := guide.NowNext(guide.Resolve(ch.TVGID, ch.Name), now)
		if current != nil {
			info.CurrentShow = current.Title
			info.IsLive = true
		}
		if next != nil {
			info.NextShow = next.Title
		}
		return info
	})
}

// SetEPG stores EPG data in the store.
func (s *Store) SetEPG(raw []byte, tv *epg.TV) {
	guide := epg.NewGuide(tv)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.epgData = &EPGData{
		Raw:       raw,
		Guide:     guide,
		UpdatedAt: s.now(),
	}
	s.lastSync = s.epgData.UpdatedAt

	metrics.SetEPGProgrammes(guide.ProgrammeCount())
}

// GetEPG retrieves the raw EPG data from the store. Returns false if no data is available.
func (s *Store) GetEPG() ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.epgData == nil {
		return nil, false
	}

	return s.epgData.Raw, true
}

// Guide returns the current programme guide, or nil when no EPG is loaded.
func (s *Store) Guide() *epg.Guide {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.epgData == nil {
		return nil
	}
	return s.epgData.Guide
}

// Imports returns the import history, newest first.
func (s *Store) Imports() []ImportResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ImportResult, len(s.imports))
	copy(out, s.imports)
	return out
}

// HasData returns true if the library contains at least one channel.
func (s *Store) HasData() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.channels) > 0
}

// LastSync returns the time of the last data synchronization.
func (s *Store) LastSync() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastSync
}

func (s *Store) find(id int) (Channel, bool) {
	// channels are kept sorted by id
	i := sort.Search(len(s.channels), func(i int) bool {
		return s.channels[i].ID >= id
	})
	if i < len(s.channels) && s.channels[i].ID == id {
		return s.channels[i], true
	}
	return Channel{}, false
}

func (s *Store) setFavorite(streamURL string, favorite bool) {
	if favorite {
		s.favorites[streamURL] = true
	} else {
		delete(s.favorites, streamURL)
	}
}

func (s *Store) favoriteURLs() []string {
	urls := lo.Keys(s.favorites)
	sort.Strings(urls)
	return urls
}
