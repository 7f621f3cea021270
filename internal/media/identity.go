// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package media derives structured identities from media filenames.
//
// A filename follows the pattern {movieName}-{resolution}p.{format}. The format
// set and resolution ladder are explicit values handed to the Parser so that
// the catalog builder, the session server and the client agree on them.
package media

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultFormats is the container set served when no configuration overrides it.
var DefaultFormats = []string{"avi", "mp4", "mkv"}

// DefaultResolutions is the ascending resolution ladder.
var DefaultResolutions = []int{240, 360, 480, 720, 1080}

// Identity is the parsed form of a media filename. It is immutable once built.
type Identity struct {
	FileName   string
	MovieName  string
	Resolution int
	Format     string
}

// Parsed reports whether a (format, resolution) pair matched the filename.
// Unparsed identities are listed as raw filenames but never derived from.
func (id Identity) Parsed() bool {
	return id.Resolution != 0 && id.Format != ""
}

// Label returns the rendition label of the identity, e.g. "720p".
func (id Identity) Label() string {
	if !id.Parsed() {
		return ""
	}
	return Label(id.Resolution)
}

// Parser parses filenames against a fixed format set and resolution ladder.
type Parser struct {
	formats     []string
	resolutions []int
}

// NewParser returns a parser for the given format set and ladder. Nil slices
// select the defaults.
func NewParser(formats []string, resolutions []int) *Parser {
	if len(formats) == 0 {
		formats = DefaultFormats
	}
	if len(resolutions) == 0 {
		resolutions = DefaultResolutions
	}
	return &Parser{
		formats:     append([]string(nil), formats...),
		resolutions: append([]int(nil), resolutions...),
	}
}

// Formats returns a copy of the format set.
func (p *Parser) Formats() []string {
	return append([]string(nil), p.formats...)
}

// Resolutions returns a copy of the ladder in declaration order.
func (p *Parser) Resolutions() []int {
	return append([]int(nil), p.resolutions...)
}

// Parse derives the identity of fileName. Every (format, resolution) pair is
// tested in nested declaration order and the last match wins, so a name that
// contains several ladder values resolves to the latest one in the ladder.
func (p *Parser) Parse(fileName string) Identity {
	id := Identity{FileName: fileName}
	for _, format := range p.formats {
		if !strings.HasSuffix(fileName, format) {
			continue
		}
		for _, res := range p.resolutions {
			value := strconv.Itoa(res)
			if !strings.Contains(fileName, value) {
				continue
			}
			// The marker must be "-<value>"; a bare digit match without it
			// cannot yield a movie name.
			idx := strings.Index(fileName, "-"+value)
			if idx < 0 {
				continue
			}
			id.MovieName = fileName[:idx]
			id.Resolution = res
			id.Format = format
		}
	}
	return id
}

// Label formats a resolution as a rendition label.
func Label(resolution int) string {
	return strconv.Itoa(resolution) + "p"
}

// ParseLabel converts a rendition label ("720p" or "720") to its resolution.
func ParseLabel(label string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(label), "p"))
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid rendition label %q", label)
	}
	return v, nil
}

// RenditionFileName builds the on-disk name of a rendition.
func RenditionFileName(movieName string, resolution int, format string) string {
	return fmt.Sprintf("%s-%dp.%s", movieName, resolution, format)
}
