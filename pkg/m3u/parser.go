// Package m3u provides parsing, loading and writing of M3U playlist files.
package m3u

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

const (
	// DefaultLogo is used when a channel declares no tvg-logo.
	DefaultLogo = "📺"
	// DefaultCategory is used when a channel declares no group-title.
	DefaultCategory = "General"

	extinfPrefix  = "#EXTINF:"
	commentPrefix = "#"

	maxLineSize = 1024 * 1024
)

var (
	logoRegex  = regexp.MustCompile(`tvg-logo="([^"]+)"`)
	groupRegex = regexp.MustCompile(`group-title="([^"]+)"`)
	tvgIDRegex = regexp.MustCompile(`tvg-id="([^"]+)"`)
)

// Channel represents a single channel entry in an M3U playlist.
type Channel struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Logo       string `json:"logo"`
	StreamURL  string `json:"streamUrl"`
	Category   string `json:"category"`
	TVGID      string `json:"tvgId,omitempty"`
	GroupTitle string `json:"groupTitle,omitempty"`
}

// metadata holds the attributes of one #EXTINF line until its URL shows up.
type metadata struct {
	title string
	logo  string
	group string
	tvgID string
}

// parser is scoped to a single parse call.
type parser struct {
	pending  *metadata
	channels []Channel
}

// Parse extracts channels from M3U playlist text. Lines that fit neither an
// #EXTINF entry nor a stream URL are skipped, so Parse never fails.
func Parse(content string) []Channel {
	p := &parser{}
	for _, line := range strings.Split(content, "\n") {
		p.feed(line)
	}
	return p.result()
}

// ParseReader behaves like Parse but reads the playlist from r.
func ParseReader(r io.Reader) ([]Channel, error) {
	p := &parser{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		p.feed(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning M3U data: %w", err)
	}

	return p.result(), nil
}

func (p *parser) feed(line string) {
	line = strings.TrimSpace(line)

	switch {
	case strings.HasPrefix(line, extinfPrefix):
		// A previous entry without URL is dropped here.
		p.pending = parseExtinf(line)
	case line != "" && !strings.HasPrefix(line, commentPrefix) && p.pending != nil:
		p.emit(line)
	}
}

func (p *parser) emit(streamURL string) {
	meta := p.pending
	p.pending = nil

	id := len(p.channels) + 1
	channel := Channel{
		ID:         id,
		Name:       meta.title,
		Logo:       meta.logo,
		StreamURL:  streamURL,
		Category:   meta.group,
		TVGID:      meta.tvgID,
		GroupTitle: meta.group,
	}

	if channel.Name == "" {
		channel.Name = "Channel " + strconv.Itoa(id)
	}
	if channel.Logo == "" {
		channel.Logo = DefaultLogo
	}
	if channel.Category == "" {
		channel.Category = DefaultCategory
	}

	p.channels = append(p.channels, channel)
}

func (p *parser) result() []Channel {
	if p.channels == nil {
		return []Channel{}
	}
	return p.channels
}

func parseExtinf(line string) *metadata {
	meta := &metadata{
		logo:  extractAttribute(logoRegex, line),
		group: extractAttribute(groupRegex, line),
		tvgID: extractAttribute(tvgIDRegex, line),
	}

	if idx := strings.LastIndex(line, ","); idx != -1 {
		meta.title = strings.TrimSpace(line[idx+1:])
	}

	return meta
}

func extractAttribute(re *regexp.Regexp, line string) string {
	matches := re.FindStringSubmatch(line)
	if len(matches) > 1 {
		return matches[1]
	}
	return ""
}
