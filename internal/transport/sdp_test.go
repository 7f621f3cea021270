// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transport

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ffmpegSDP = "v=0\r\n" +
	"o=- 0 0 IN IP4 127.0.0.1\r\n" +
	"s=No Name\r\n" +
	"c=IN IP4 127.0.0.1\r\n" +
	"t=0 0\r\n" +
	"a=tool:libavformat 60.16.100\r\n" +
	"m=video 5004 RTP/AVP 96\r\n" +
	"a=rtpmap:96 H264/90000\r\n" +
	"a=fmtp:96 packetization-mode=1\r\n"

func TestValidateSDP(t *testing.T) {
	e := DefaultEndpoints("video.sdp")

	desc, err := ValidateSDP([]byte(ffmpegSDP), e)
	require.NoError(t, err)
	require.Len(t, desc.MediaDescriptions, 1)
	assert.Equal(t, "video", desc.MediaDescriptions[0].MediaName.Media)
}

func TestValidateSDP_WrongPort(t *testing.T) {
	e := DefaultEndpoints("video.sdp")
	e.RTPPort = 6000

	_, err := ValidateSDP([]byte(ffmpegSDP), e)
	assert.ErrorIs(t, err, ErrInvalidSDP)
}

func TestValidateSDP_Garbage(t *testing.T) {
	_, err := ValidateSDP([]byte("not an sdp"), DefaultEndpoints("video.sdp"))
	assert.ErrorIs(t, err, ErrInvalidSDP)
}

func TestWaitForSDP(t *testing.T) {
	path := filepath.Join(t.TempDir(), "video.sdp")
	e := DefaultEndpoints(path)

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = os.WriteFile(path, []byte(ffmpegSDP), 0o644)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	desc, err := WaitForSDP(ctx, e, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Len(t, desc.MediaDescriptions, 1)
}

func TestWaitForSDP_Timeout(t *testing.T) {
	e := DefaultEndpoints(filepath.Join(t.TempDir(), "missing.sdp"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := WaitForSDP(ctx, e, 10*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
