// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/ManuGH/mediacast/internal/log"
)

// Watcher rebuilds the catalog when the media directory changes and swaps
// the result into a Holder. Sessions already running keep the catalog they
// were given.
type Watcher struct {
	dir      string
	builder  *Builder
	holder   *Holder
	debounce time.Duration
	logger   zerolog.Logger

	// rebuilt is signalled after every successful swap. Used by tests.
	rebuilt chan struct{}
}

// NewWatcher returns a watcher over dir.
func NewWatcher(dir string, builder *Builder, holder *Holder, debounce time.Duration, logger zerolog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Watcher{
		dir:      dir,
		builder:  builder,
		holder:   holder,
		debounce: debounce,
		logger:   logger,
		rebuilt:  make(chan struct{}, 1),
	}
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	w.logger.Info().
		Str(log.FieldEvent, "catalog.watch_started").
		Str(log.FieldPath, w.dir).
		Dur("debounce", w.debounce).
		Msg("watching media directory")

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			w.logger.Debug().
				Str(log.FieldEvent, "catalog.fs_event").
				Str(log.FieldPath, ev.Name).
				Str("op", ev.Op.String()).
				Msg("media directory changed")
			timer.Reset(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Str(log.FieldEvent, "catalog.watch_error").Msg("fsnotify error")

		case <-timer.C:
			w.rebuild(ctx)
		}
	}
}

func (w *Watcher) rebuild(ctx context.Context) {
	cat, _, err := w.builder.Build(ctx)
	if err != nil {
		w.logger.Error().
			Err(err).
			Str(log.FieldEvent, "catalog.rebuild_failed").
			Msg("catalog rebuild failed, keeping previous catalog")
		return
	}
	w.holder.Swap(cat)
	w.logger.Info().
		Str(log.FieldEvent, "catalog.swapped").
		Int("entries", cat.Len()).
		Msg("serving rebuilt catalog")

	select {
	case w.rebuilt <- struct{}{}:
	default:
	}
}

// relevant filters out chmod noise and hidden temp files.
func relevant(ev fsnotify.Event) bool {
	if strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return false
	}
	return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Write)
}
