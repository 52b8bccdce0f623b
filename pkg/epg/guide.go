package epg

import (
	"sort"
	"time"

	"github.com/savid/tvstream/pkg/utils"
)

// Entry is a single scheduled programme with parsed times.
type Entry struct {
	Start       time.Time     `json:"start"`
	Stop        time.Time     `json:"stop"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Duration    time.Duration `json:"-"`
}

// Guide indexes programmes by EPG channel id, sorted by start time.
type Guide struct {
	programmes map[string][]Entry
	byName     map[string]string
}

// NewGuide builds a guide from decoded XMLTV data. Programmes with
// unparseable or inverted times are skipped.
func NewGuide(tv *TV) *Guide {
	g := &Guide{
		programmes: make(map[string][]Entry),
		byName:     make(map[string]string),
	}
	if tv == nil {
		return g
	}

	for _, ch := range tv.Channels {
		if ch.ID == "" || ch.DisplayName == "" {
			continue
		}
		key := utils.NormalizeChannelName(utils.ExtractChannelName(ch.DisplayName))
		if _, exists := g.byName[key]; !exists {
			g.byName[key] = ch.ID
		}
	}

	for _, p := range tv.Programs {
		start, err := ParseTime(p.Start)
		if err != nil {
			continue
		}
		stop, err := ParseTime(p.Stop)
		if err != nil || !stop.After(start) {
			continue
		}

		g.programmes[p.Channel] = append(g.programmes[p.Channel], Entry{
			Start:       start,
			Stop:        stop,
			Title:       p.Title,
			Description: p.Description,
			Duration:    stop.Sub(start),
		})
	}

	for id := range g.programmes {
		entries := g.programmes[id]
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Start.Before(entries[j].Start)
		})
	}

	return g
}

// Resolve returns the EPG channel id for a playlist channel. The tvg-id wins
// when the guide has programmes for it; otherwise the display name is matched
// after normalization. An empty string means no match.
func (g *Guide) Resolve(tvgID, name string) string {
	if g == nil {
		return ""
	}
	if tvgID != "" {
		if _, ok := g.programmes[tvgID]; ok {
			return tvgID
		}
	}
	if name == "" {
		return ""
	}
	return g.byName[utils.NormalizeChannelName(utils.ExtractChannelName(name))]
}

// Schedule returns the programmes of channelID that start on the calendar day of day,
// evaluated in day's location.
func (g *Guide) Schedule(channelID string, day time.Time) []Entry {
	if g == nil {
		return []Entry{}
	}

	loc := day.Location()
	y, m, d := day.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, loc)
	to := from.AddDate(0, 0, 1)

	entries := []Entry{}
	for _, e := range g.programmes[channelID] {
		if !e.Start.Before(from) && e.Start.Before(to) {
			e.Start = e.Start.In(loc)
			e.Stop = e.Stop.In(loc)
			entries = append(entries, e)
		}
	}
	return entries
}

// NowNext returns the programme airing at now and the first one starting after it.
// Either result may be nil.
func (g *Guide) NowNext(channelID string, now time.Time) (current, next *Entry) {
	if g == nil {
		return nil, nil
	}

	for i := range g.programmes[channelID] {
		e := g.programmes[channelID][i]
		switch {
		case !now.Before(e.Start) && now.Before(e.Stop):
			if current == nil {
				current = &e
			}
		case e.Start.After(now):
			if next == nil {
				next = &e
			}
		}
		if next != nil {
			break
		}
	}
	return current, next
}

// ProgrammeCount returns the number of indexed programmes.
func (g *Guide) ProgrammeCount() int {
	if g == nil {
		return 0
	}
	total := 0
	for _, entries := range g.programmes {
		total += len(entries)
	}
	return total
}
