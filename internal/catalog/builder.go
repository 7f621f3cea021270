// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/mediacast/internal/log"
	"github.com/ManuGH/mediacast/internal/media"
	"github.com/ManuGH/mediacast/internal/metrics"
	"github.com/ManuGH/mediacast/internal/telemetry"
	"github.com/ManuGH/mediacast/internal/transcode"
)

// BuilderConfig wires a Builder.
type BuilderConfig struct {
	Dir        string
	Parser     *media.Parser
	Transcoder transcode.Transcoder
	// Workers bounds concurrent derivations. Values below 1 mean sequential.
	Workers int
	Logger  zerolog.Logger
}

// Builder scans the media directory and fills gaps in the rendition matrix.
type Builder struct {
	dir        string
	parser     *media.Parser
	transcoder transcode.Transcoder
	workers    int
	logger     zerolog.Logger
}

// Report summarises the derivation phase of one build.
type Report struct {
	Planned  int
	Derived  []string
	Existing int
	Failed   []*DerivationError
}

// NewBuilder returns a Builder for cfg.
func NewBuilder(cfg BuilderConfig) *Builder {
	parser := cfg.Parser
	if parser == nil {
		parser = media.NewParser(nil, nil)
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Builder{
		dir:        cfg.Dir,
		parser:     parser,
		transcoder: cfg.Transcoder,
		workers:    workers,
		logger:     cfg.Logger,
	}
}

// Build lists the directory, derives every missing rendition, and returns the
// catalog of the directory as it stands afterwards.
//
// For every parsed file with native resolution R and format F, every
// {movie}-{r}p.{f} with r <= R and f != F must exist after the build. Files
// derived during the build are themselves checked, so a single build reaches
// the fixpoint and a second build issues no transcoder calls.
func (b *Builder) Build(ctx context.Context) (_ *Catalog, _ *Report, err error) {
	ctx, span := telemetry.Tracer("catalog").Start(ctx, "catalog.build",
		trace.WithAttributes(attribute.String(telemetry.CatalogDirKey, b.dir)))
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	start := time.Now()
	b.logger.Info().
		Str(log.FieldEvent, "catalog.build_started").
		Str(log.FieldPath, b.dir).
		Msg("building catalog")

	names, err := b.list()
	if err != nil {
		metrics.ObserveCatalogBuild(false, 0, time.Since(start))
		return nil, nil, err
	}

	ids := make([]media.Identity, 0, len(names))
	for _, name := range names {
		id := b.parser.Parse(name)
		if !id.Parsed() {
			b.logger.Debug().
				Str(log.FieldEvent, "catalog.unparsed").
				Str(log.FieldFile, name).
				Msg("filename does not match any format and resolution; listing only")
		}
		ids = append(ids, id)
	}

	jobs := b.plan(names, ids)
	report := &Report{Planned: len(jobs)}
	if err := b.derive(ctx, jobs, report); err != nil {
		metrics.ObserveCatalogBuild(false, 0, time.Since(start))
		return nil, report, err
	}

	// Re-list so the catalog reflects the disk, not the plan.
	names, err = b.list()
	if err != nil {
		metrics.ObserveCatalogBuild(false, 0, time.Since(start))
		return nil, report, err
	}
	derived := make(map[string]struct{}, len(report.Derived))
	for _, name := range report.Derived {
		derived[name] = struct{}{}
	}
	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		e := Entry{Identity: b.parser.Parse(name)}
		if _, ok := derived[name]; ok {
			e.Provenance = Derived
		}
		entries = append(entries, e)
	}

	cat := New(b.dir, entries)
	metrics.ObserveCatalogBuild(true, cat.Len(), time.Since(start))
	span.SetAttributes(
		attribute.Int(telemetry.CatalogEntriesKey, cat.Len()),
		attribute.Int(telemetry.CatalogPlannedKey, report.Planned),
		attribute.Int(telemetry.CatalogDerivedKey, len(report.Derived)),
	)
	b.logger.Info().
		Str(log.FieldEvent, "catalog.build_completed").
		Int("entries", cat.Len()).
		Int("planned", report.Planned).
		Int("derived", len(report.Derived)).
		Int("existing", report.Existing).
		Int("failed", len(report.Failed)).
		Dur("duration", time.Since(start)).
		Msg("catalog ready")
	return cat, report, nil
}

// list returns the regular, non-hidden files directly under the directory in
// listing order. Subdirectories are ignored.
func (b *Builder) list() ([]string, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrStartup, b.dir, err)
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if !b.isRegular(e) {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

func (b *Builder) isRegular(e os.DirEntry) bool {
	if e.Type().IsRegular() {
		return true
	}
	if e.Type()&os.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(b.dir, e.Name()))
	return err == nil && info.Mode().IsRegular()
}

type pending struct {
	id     media.Identity
	origin string
}

// plan computes the derivation jobs for ids. Formats are the outer loop and
// the ladder the inner one; every planned rendition is queued so that its own
// gaps are planned too. Inputs always point at the originating source file.
func (b *Builder) plan(names []string, ids []media.Identity) []transcode.Job {
	present := make(map[string]struct{}, len(names))
	for _, name := range names {
		present[name] = struct{}{}
	}

	queue := make([]pending, 0, len(ids))
	for _, id := range ids {
		if id.Parsed() {
			queue = append(queue, pending{id: id, origin: id.FileName})
		}
	}

	var jobs []transcode.Job
	formats := b.parser.Formats()
	ladder := b.parser.Resolutions()
	for i := 0; i < len(queue); i++ {
		cur := queue[i]
		for _, format := range formats {
			if format == cur.id.Format {
				continue
			}
			for _, res := range ladder {
				if res > cur.id.Resolution {
					continue
				}
				name := media.RenditionFileName(cur.id.MovieName, res, format)
				if _, ok := present[name]; ok {
					continue
				}
				present[name] = struct{}{}

				// The target names the rendition being encoded; the queue takes
				// the identity a rescan will parse from the file name, so
				// ambiguous names reach the same fixpoint on every build.
				target := media.Identity{
					FileName:   name,
					MovieName:  cur.id.MovieName,
					Resolution: res,
					Format:     format,
				}
				jobs = append(jobs, transcode.Job{
					Input:  filepath.Join(b.dir, cur.origin),
					Output: filepath.Join(b.dir, name),
					Target: target,
				})
				queue = append(queue, pending{id: b.parser.Parse(name), origin: cur.origin})
			}
		}
	}
	return jobs
}

func (b *Builder) derive(ctx context.Context, jobs []transcode.Job, report *Report) error {
	if len(jobs) == 0 {
		return nil
	}
	if b.transcoder == nil {
		return errors.New("catalog: transcoder is required to derive renditions")
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)

	for _, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcome, err := b.deriveOne(gctx, job)
			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case "success":
				report.Derived = append(report.Derived, job.Target.FileName)
			case "exists":
				report.Existing++
			case "failure":
				report.Failed = append(report.Failed, &DerivationError{Job: job, Err: err})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("derive renditions: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("derive renditions: %w", err)
	}
	return nil
}

// deriveOne checks existence first and never retries.
func (b *Builder) deriveOne(ctx context.Context, job transcode.Job) (outcome string, err error) {
	ctx, span := telemetry.Tracer("catalog").Start(ctx, "catalog.derive",
		trace.WithAttributes(telemetry.RenditionAttributes(job.Target.FileName, job.Target.Resolution, job.Target.Format)...))
	defer func() {
		span.SetAttributes(attribute.String("outcome", outcome))
		telemetry.RecordError(span, err)
		span.End()
	}()

	format := job.Target.Format
	if _, err := os.Stat(job.Output); err == nil {
		metrics.IncDerivation(format, "exists")
		return "exists", nil
	}

	started := time.Now()
	err = b.transcoder.Transcode(ctx, job)
	switch {
	case err == nil:
		metrics.IncDerivation(format, "success")
		b.logger.Info().
			Str(log.FieldEvent, "catalog.derived").
			Str(log.FieldInput, job.Input).
			Str(log.FieldOutput, job.Output).
			Dur("duration", time.Since(started)).
			Msg("derived rendition")
		return "success", nil
	case errors.Is(err, transcode.ErrExists):
		metrics.IncDerivation(format, "exists")
		return "exists", nil
	default:
		metrics.IncDerivation(format, "failure")
		b.logger.Error().
			Err(err).
			Str(log.FieldEvent, "catalog.derive_failed").
			Str(log.FieldInput, job.Input).
			Str(log.FieldOutput, job.Output).
			Msg("rendition derivation failed, skipping")
		return "failure", err
	}
}
