// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package selector decides which renditions a client may request given its
// measured bandwidth and the native resolution of the source.
//
// Bandwidth is expressed in kilobits per second everywhere in this module;
// the probe reports Kbps and the tier floors below are Kbps.
package selector

import (
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/ManuGH/mediacast/internal/media"
)

// Bandwidth is a measured throughput in kilobits per second.
type Bandwidth float64

// Kbps returns b as kilobits per second.
func Kbps(v float64) Bandwidth { return Bandwidth(v) }

// Mbps converts megabits per second to a Bandwidth.
func Mbps(v float64) Bandwidth { return Bandwidth(v * 1000) }

// Tier is one row of the adaptive policy: a rendition is selectable when the
// bandwidth reaches Floor and the native resolution reaches MinNative.
type Tier struct {
	Label     string
	Floor     Bandwidth
	MinNative int
}

// Tiers is evaluated top to bottom. Every satisfied tier is appended; the
// lowest rendition is always available and is appended last.
var Tiers = []Tier{
	{Label: "1080p", Floor: 5000, MinNative: 1080},
	{Label: "720p", Floor: 2500, MinNative: 720},
	{Label: "480p", Floor: 1000, MinNative: 480},
	{Label: "360p", Floor: 500, MinNative: 360},
}

// Fallback is the unconditional rendition.
const Fallback = "240p"

// Selectable returns the rendition labels available for one source file.
func Selectable(bw Bandwidth, native int) []string {
	out := make([]string, 0, len(Tiers)+1)
	for _, t := range Tiers {
		if bw >= t.Floor && native >= t.MinNative {
			out = append(out, t.Label)
		}
	}
	return append(out, Fallback)
}

// ForMovie merges the selectable renditions of every catalog identity named
// movie, without duplicates, highest tier first and Fallback last.
func ForMovie(bw Bandwidth, movie string, ids []media.Identity) []string {
	seen := make(map[string]struct{})
	for _, id := range ids {
		if !id.Parsed() || id.MovieName != movie {
			continue
		}
		for _, label := range Selectable(bw, id.Resolution) {
			seen[label] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for _, t := range Tiers {
		if _, ok := seen[t.Label]; ok {
			out = append(out, t.Label)
		}
	}
	return append(out, Fallback)
}

// MovieNames returns the unique movie names of the parsed identities in
// collation order.
func MovieNames(ids []media.Identity) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, id := range ids {
		if !id.Parsed() {
			continue
		}
		if _, dup := seen[id.MovieName]; dup {
			continue
		}
		seen[id.MovieName] = struct{}{}
		names = append(names, id.MovieName)
	}
	collate.New(language.Und).SortStrings(names)
	return names
}

// Contains reports whether label is in labels.
func Contains(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}
