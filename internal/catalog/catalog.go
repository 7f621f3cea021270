// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package catalog builds and serves the authoritative list of media files.
//
// A Catalog is produced once by the Builder and is read-only afterwards; it is
// shared by reference between all sessions. Live rescans build a new Catalog
// and swap it into a Holder rather than mutating the old one.
package catalog

import (
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ManuGH/mediacast/internal/media"
)

// Separator joins filenames on the wire.
const Separator = ","

// Provenance records whether an entry was on disk before the build or was
// produced by it.
type Provenance int

const (
	Source Provenance = iota
	Derived
)

func (p Provenance) String() string {
	if p == Derived {
		return "derived"
	}
	return "source"
}

// Entry is one file of the catalog.
type Entry struct {
	media.Identity
	Provenance Provenance
}

// Catalog is an immutable, ordered list of entries in directory listing order.
type Catalog struct {
	dir     string
	entries []Entry
	index   map[string]int
	builtAt time.Time
}

// New returns a catalog over entries located in dir.
func New(dir string, entries []Entry) *Catalog {
	c := &Catalog{
		dir:     dir,
		entries: append([]Entry(nil), entries...),
		index:   make(map[string]int, len(entries)),
		builtAt: time.Now(),
	}
	for i, e := range c.entries {
		c.index[e.FileName] = i
	}
	return c
}

// Dir returns the media directory the catalog describes.
func (c *Catalog) Dir() string { return c.dir }

// BuiltAt returns when the catalog was assembled.
func (c *Catalog) BuiltAt() time.Time { return c.builtAt }

// Len returns the number of entries.
func (c *Catalog) Len() int { return len(c.entries) }

// Entries returns a copy of the entries.
func (c *Catalog) Entries() []Entry {
	return append([]Entry(nil), c.entries...)
}

// Identities returns the identities of all entries, parsed or not.
func (c *Catalog) Identities() []media.Identity {
	out := make([]media.Identity, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Identity
	}
	return out
}

// FileNames returns the raw filenames, unparsed ones included.
func (c *Catalog) FileNames() []string {
	out := make([]string, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.FileName
	}
	return out
}

// Line renders the catalog as its wire form. An empty catalog is "".
func (c *Catalog) Line() string {
	return strings.Join(c.FileNames(), Separator)
}

// Lookup finds an entry by filename.
func (c *Catalog) Lookup(fileName string) (Entry, bool) {
	i, ok := c.index[fileName]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Path returns the on-disk path of fileName.
func (c *Catalog) Path(fileName string) string {
	return filepath.Join(c.dir, fileName)
}

// ParseLine splits a wire catalog line and parses every filename.
func ParseLine(line string, parser *media.Parser) []media.Identity {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	names := strings.Split(line, Separator)
	out := make([]media.Identity, 0, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		out = append(out, parser.Parse(name))
	}
	return out
}

// Holder publishes the current catalog to concurrent readers.
type Holder struct {
	current atomic.Pointer[Catalog]
}

// NewHolder returns a holder serving c.
func NewHolder(c *Catalog) *Holder {
	h := &Holder{}
	h.current.Store(c)
	return h
}

// Load returns the catalog currently served.
func (h *Holder) Load() *Catalog {
	return h.current.Load()
}

// Swap atomically replaces the served catalog and returns the previous one.
func (h *Holder) Swap(c *Catalog) *Catalog {
	return h.current.Swap(c)
}
