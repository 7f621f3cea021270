// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pion/sdp/v3"
)

// ErrInvalidSDP is returned when the session description written by the
// streaming peer does not describe the expected RTP video stream.
var ErrInvalidSDP = errors.New("invalid session description")

// ValidateSDP checks that raw describes a single RTP video stream on the
// endpoint's RTP port.
func ValidateSDP(raw []byte, e Endpoints) (*sdp.SessionDescription, error) {
	var desc sdp.SessionDescription
	if err := desc.Unmarshal(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSDP, err)
	}
	if len(desc.MediaDescriptions) == 0 {
		return nil, fmt.Errorf("%w: no media sections", ErrInvalidSDP)
	}
	for _, md := range desc.MediaDescriptions {
		if md.MediaName.Media != "video" {
			return nil, fmt.Errorf("%w: unexpected %s media", ErrInvalidSDP, md.MediaName.Media)
		}
		if md.MediaName.Port.Value != e.RTPPort {
			return nil, fmt.Errorf("%w: media port %d, want %d", ErrInvalidSDP, md.MediaName.Port.Value, e.RTPPort)
		}
	}
	return &desc, nil
}

// WaitForSDP polls for the SDP file until it exists and validates, or ctx ends.
func WaitForSDP(ctx context.Context, e Endpoints, interval time.Duration) (*sdp.SessionDescription, error) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		raw, err := os.ReadFile(e.SDPPath)
		if err == nil {
			desc, verr := ValidateSDP(raw, e)
			if verr == nil {
				return desc, nil
			}
			lastErr = verr
		} else {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for %s: %w (last error: %v)", e.SDPPath, ctx.Err(), lastErr)
		case <-ticker.C:
		}
	}
}
