// Package epg provides parsing and lookup of XMLTV programme guide data.
package epg

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"
)

// xmltvLayout is the XMLTV timestamp format.
const xmltvLayout = "20060102150405 -0700"

// TV represents the root element of an EPG XML document.
type TV struct {
	XMLName  xml.Name    `xml:"tv"`
	Channels []Channel   `xml:"channel"`
	Programs []Programme `xml:"programme"`
}

// Channel represents a channel in the EPG data.
type Channel struct {
	ID          string `xml:"id,attr"`
	DisplayName string `xml:"display-name"`
	Icon        Icon   `xml:"icon"`
}

// Icon represents a channel icon in the EPG data.
type Icon struct {
	Src string `xml:"src,attr"`
}

// Programme represents a program/show in the EPG data.
type Programme struct {
	Channel     string `xml:"channel,attr"`
	Start       string `xml:"start,attr"`
	Stop        string `xml:"stop,attr"`
	Title       string `xml:"title"`
	Description string `xml:"desc"`
}

// ParseStream parses EPG XML data from an io.Reader.
func ParseStream(reader io.Reader) (*TV, error) {
	decoder := xml.NewDecoder(reader)

	var tv TV
	if err := decoder.Decode(&tv); err != nil {
		return nil, fmt.Errorf("failed to decode XMLTV: %w", err)
	}

	return &tv, nil
}

// ParseTime parses an XMLTV timestamp. A missing zone offset is read as UTC.
func ParseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if len(value) <= len("20060102150405") {
		return time.Parse("20060102150405", value)
	}
	if !strings.Contains(value, " ") {
		return time.Parse("20060102150405-0700", value)
	}
	return time.Parse(xmltvLayout, value)
}
