package m3u

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	data, err := os.ReadFile("testdata/example.m3u")
	require.NoError(t, err)

	channels := Parse(string(data))

	// Test total channel count
	require.Len(t, channels, 6)

	first := channels[0]
	assert.Equal(t, 1, first.ID)
	assert.Equal(t, "Первый канал", first.Name)
	assert.Equal(t, "perviy.ru", first.TVGID)
	assert.Equal(t, "http://logos.example.com/perviy.png", first.Logo)
	assert.Equal(t, "General", first.Category)
	assert.Equal(t, "General", first.GroupTitle)
	assert.Equal(t, "http://streams.example.com/perviy/index.m3u8", first.StreamURL)

	// Channel without any attributes falls back to defaults
	plain := channels[3]
	assert.Equal(t, "Plain Channel", plain.Name)
	assert.Equal(t, DefaultLogo, plain.Logo)
	assert.Equal(t, DefaultCategory, plain.Category)
	assert.Empty(t, plain.TVGID)
	assert.Empty(t, plain.GroupTitle)

	for i, ch := range channels {
		assert.Equal(t, i+1, ch.ID, "ids must be contiguous in emission order")
		assert.NotEmpty(t, ch.StreamURL)
	}
}

func TestParseSingleEntry(t *testing.T) {
	input := "#EXTINF:-1 tvg-logo=\"http://x/logo.png\" group-title=\"News\",BBC\nhttp://x/stream.m3u8\n"

	channels := Parse(input)

	require.Len(t, channels, 1)
	assert.Equal(t, Channel{
		ID:         1,
		Name:       "BBC",
		Logo:       "http://x/logo.png",
		StreamURL:  "http://x/stream.m3u8",
		Category:   "News",
		GroupTitle: "News",
	}, channels[0])
}

func TestParseEdgeCases(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantNames []string
	}{
		{
			name:      "empty input",
			input:     "",
			wantNames: []string{},
		},
		{
			name:      "whitespace only",
			input:     "  \n\t\n   \r\n",
			wantNames: []string{},
		},
		{
			name:      "header only",
			input:     "#EXTM3U\n",
			wantNames: []string{},
		},
		{
			name:      "orphaned metadata is discarded",
			input:     "#EXTINF:-1,Orphan\n#EXTINF:-1,Real\nhttp://x/s.m3u8\n",
			wantNames: []string{"Real"},
		},
		{
			name:      "trailing metadata without URL",
			input:     "#EXTINF:-1,One\nhttp://x/1\n#EXTINF:-1,Two\n",
			wantNames: []string{"One"},
		},
		{
			name:      "URL without metadata is ignored",
			input:     "http://x/lonely\n#EXTINF:-1,One\nhttp://x/1\nhttp://x/again\n",
			wantNames: []string{"One"},
		},
		{
			name:      "unknown comments between metadata and URL",
			input:     "#EXTM3U\n#EXTINF:-1,One\n#EXTVLCOPT:http-user-agent=foo\n\nhttp://x/1\n",
			wantNames: []string{"One"},
		},
		{
			name:      "windows line endings",
			input:     "#EXTM3U\r\n#EXTINF:-1,One\r\nhttp://x/1\r\n#EXTINF:-1,Two\r\nhttp://x/2\r\n",
			wantNames: []string{"One", "Two"},
		},
		{
			name:      "title after the final comma",
			input:     "#EXTINF:-1 group-title=\"News, World\",Euronews\nhttp://x/1\n",
			wantNames: []string{"Euronews"},
		},
		{
			name:      "missing title falls back to placeholder",
			input:     "#EXTINF:-1,One\nhttp://x/1\n#EXTINF:-1 tvg-id=\"two\"\nhttp://x/2\n#EXTINF:-1,\nhttp://x/3\n",
			wantNames: []string{"One", "Channel 2", "Channel 3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			channels := Parse(tt.input)

			names := make([]string, 0, len(channels))
			for _, ch := range channels {
				names = append(names, ch.Name)
			}
			assert.Equal(t, tt.wantNames, names)
		})
	}
}

func TestParseIDsRestartPerCall(t *testing.T) {
	input := "#EXTINF:-1,A\nhttp://x/a\n#EXTINF:-1,B\nhttp://x/b\n"

	first := Parse(input)
	second := Parse(input)

	require.Len(t, first, 2)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, second[0].ID)
	assert.Equal(t, 2, second[1].ID)
}

func TestParseMetadataDoesNotCarryOver(t *testing.T) {
	input := `#EXTINF:-1 tvg-id="a" tvg-logo="http://x/a.png" group-title="Sports",A
http://x/a
#EXTINF:-1,B
http://x/b
`
	channels := Parse(input)

	require.Len(t, channels, 2)
	assert.Empty(t, channels[1].TVGID)
	assert.Empty(t, channels[1].GroupTitle)
	assert.Equal(t, DefaultLogo, channels[1].Logo)
	assert.Equal(t, DefaultCategory, channels[1].Category)
}

func TestParseEmptyAttributeIsAbsent(t *testing.T) {
	channels := Parse(`#EXTINF:-1 tvg-id="" tvg-logo="" group-title="",Empty` + "\nhttp://x/e\n")

	require.Len(t, channels, 1)
	assert.Empty(t, channels[0].TVGID)
	assert.Equal(t, DefaultLogo, channels[0].Logo)
	assert.Equal(t, DefaultCategory, channels[0].Category)
}

func TestParseReader(t *testing.T) {
	data, err := os.ReadFile("testdata/example.m3u")
	require.NoError(t, err)

	fromReader, err := ParseReader(strings.NewReader(string(data)))
	require.NoError(t, err)

	assert.Equal(t, Parse(string(data)), fromReader)
}

func TestParseReaderLineTooLong(t *testing.T) {
	input := "#EXTINF:-1,Long\n" + strings.Repeat("a", maxLineSize+1) + "\n"

	_, err := ParseReader(strings.NewReader(input))
	assert.Error(t, err)
}

func TestExtractAttribute(t *testing.T) {
	line := `#EXTINF:-1 tvg-id="test123" tvg-name="Test Channel" tvg-logo="http://logo.png" group-title="Test Group",Test Channel Name`

	meta := parseExtinf(line)

	assert.Equal(t, "test123", meta.tvgID)
	assert.Equal(t, "http://logo.png", meta.logo)
	assert.Equal(t, "Test Group", meta.group)
	assert.Equal(t, "Test Channel Name", meta.title)
}
