package m3u

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Write renders channels back into an extended M3U playlist. Only attributes the
// channel declared are written, so defaults are not baked into the output.
func Write(w io.Writer, channels []Channel) error {
	var buf bytes.Buffer

	buf.WriteString("#EXTM3U\n")

	for _, channel := range channels {
		if channel.StreamURL == "" {
			continue
		}

		buf.WriteString(extinfLine(channel))
		buf.WriteString("\n")
		buf.WriteString(channel.StreamURL)
		buf.WriteString("\n")
	}

	_, err := io.Copy(w, &buf)
	return err
}

func extinfLine(channel Channel) string {
	tags := []string{extinfPrefix + "-1"}

	if channel.TVGID != "" {
		tags = append(tags, fmt.Sprintf(`tvg-id="%s"`, stripQuotes(channel.TVGID)))
	}
	if channel.Logo != "" && channel.Logo != DefaultLogo {
		tags = append(tags, fmt.Sprintf(`tvg-logo="%s"`, stripQuotes(channel.Logo)))
	}
	if channel.GroupTitle != "" {
		tags = append(tags, fmt.Sprintf(`group-title="%s"`, stripQuotes(channel.GroupTitle)))
	}

	return strings.Join(tags, " ") + "," + channel.Name
}

// Quoted values have no escaping in M3U.
func stripQuotes(value string) string {
	return strings.ReplaceAll(value, `"`, "")
}
