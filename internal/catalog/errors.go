// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package catalog

import (
	"errors"
	"fmt"

	"github.com/ManuGH/mediacast/internal/transcode"
)

// ErrStartup is returned when the media directory cannot be listed. The
// server must not start serving in that case.
var ErrStartup = errors.New("media directory unavailable")

// DerivationError reports one rendition that could not be produced. It is
// logged and skipped; the build continues.
type DerivationError struct {
	Job transcode.Job
	Err error
}

func (e *DerivationError) Error() string {
	return fmt.Sprintf("derive %s from %s: %v", e.Job.Target.FileName, e.Job.Input, e.Err)
}

func (e *DerivationError) Unwrap() error { return e.Err }
