// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/mediacast/internal/catalog"
	"github.com/ManuGH/mediacast/internal/media"
	"github.com/ManuGH/mediacast/internal/process/processtest"
	"github.com/ManuGH/mediacast/internal/transport"
)

func testCatalog(names ...string) *catalog.Catalog {
	p := media.NewParser(nil, nil)
	entries := make([]catalog.Entry, 0, len(names))
	for _, n := range names {
		entries = append(entries, catalog.Entry{Identity: p.Parse(n)})
	}
	return catalog.New("/media", entries)
}

func testHandler(runner *processtest.Runner) *Handler {
	resolver := transport.NewResolver(transport.DefaultEndpoints("/work/video.sdp"))
	return NewHandler(resolver, runner, "ffmpeg", zerolog.Nop())
}

// startSession runs the handler on one end of a pipe and returns a client on
// the other end plus the channel receiving Serve's result.
func startSession(t *testing.T, h *Handler, cat *catalog.Catalog) (*Client, <-chan error) {
	t.Helper()
	server, client := net.Pipe()
	done := make(chan error, 1)
	go func() {
		err := h.Serve(context.Background(), server, cat)
		_ = server.Close()
		done <- err
	}()
	t.Cleanup(func() { _ = client.Close() })
	return NewClient(client), done
}

func result(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("session did not finish")
		return nil
	}
}

func TestServe_FullExchange(t *testing.T) {
	runner := &processtest.Runner{}
	c, done := startSession(t, testHandler(runner), testCatalog("movie-720p.mp4", "movie-480p.avi"))

	files, err := c.FetchCatalog()
	require.NoError(t, err)
	assert.Equal(t, []string{"movie-720p.mp4", "movie-480p.avi"}, files)

	require.NoError(t, c.RequestStream(Request{FileName: "movie-720p.mp4", Protocol: "RTP"}))
	require.NoError(t, result(t, done))

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "ffmpeg", calls[0].Binary)
	assert.Equal(t, []string{
		"-re", "-i", "/media/movie-720p.mp4",
		"-an", "-c:v", "copy", "-f", "rtp",
		"-sdp_file", "/work/video.sdp",
		"rtp://127.0.0.1:5004?rtcpport=5008",
	}, calls[0].Args)

	// The server closes the session after the stream.
	require.NoError(t, c.Wait())
}

func TestServe_EmptyCatalogRepliesEmptyLine(t *testing.T) {
	c, done := startSession(t, testHandler(&processtest.Runner{}), testCatalog())

	files, err := c.FetchCatalog()
	require.NoError(t, err)
	assert.Empty(t, files)

	require.NoError(t, c.Close())
	assert.ErrorIs(t, result(t, done), ErrConnection)
}

func TestServe_RequestWithoutCatalogStep(t *testing.T) {
	runner := &processtest.Runner{}
	c, done := startSession(t, testHandler(runner), testCatalog("movie-720p.mp4"))

	require.NoError(t, c.RequestStream(Request{FileName: "movie-720p.mp4", Protocol: "tcp"}))
	require.NoError(t, result(t, done))
	require.Len(t, runner.Calls(), 1)
	assert.Equal(t, "tcp://127.0.0.1:8081?listen", runner.Calls()[0].Args[4])
}

func TestServe_SkipsBlankLines(t *testing.T) {
	runner := &processtest.Runner{}
	c, done := startSession(t, testHandler(runner), testCatalog("movie-720p.mp4"))

	_, err := c.FetchCatalog()
	require.NoError(t, err)
	require.NoError(t, c.writeLine(""))
	require.NoError(t, c.writeLine("   "))
	require.NoError(t, c.writeLine("movie-720p.mp4,UDP"))

	require.NoError(t, result(t, done))
	assert.Len(t, runner.Calls(), 1)
}

func TestServe_ProtocolViolations(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr error
	}{
		{name: "missing comma", line: "movie-720p.mp4", wantErr: ErrProtocolViolation},
		{name: "empty file", line: ",TCP", wantErr: ErrProtocolViolation},
		{name: "empty protocol", line: "movie-720p.mp4,", wantErr: ErrProtocolViolation},
		{name: "unknown transport", line: "movie-720p.mp4,QUIC", wantErr: transport.ErrUnsupportedProtocol},
		{name: "unknown file", line: "../etc/passwd,TCP", wantErr: ErrUnknownFile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &processtest.Runner{}
			c, done := startSession(t, testHandler(runner), testCatalog("movie-720p.mp4"))

			_, err := c.FetchCatalog()
			require.NoError(t, err)
			require.NoError(t, c.writeLine(tt.line))

			err = result(t, done)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrProtocolViolation)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, runner.Calls())
		})
	}
}

func TestServe_DisconnectBeforeRequest(t *testing.T) {
	c, done := startSession(t, testHandler(&processtest.Runner{}), testCatalog("movie-720p.mp4"))

	_, err := c.FetchCatalog()
	require.NoError(t, err)
	require.NoError(t, c.Close())

	err = result(t, done)
	assert.ErrorIs(t, err, ErrConnection)
	assert.ErrorIs(t, err, io.EOF)
}

func TestServe_StreamFailure(t *testing.T) {
	runner := &processtest.Runner{Err: errors.New("exit status 1")}
	c, done := startSession(t, testHandler(runner), testCatalog("movie-720p.mp4"))

	require.NoError(t, c.RequestStream(Request{FileName: "movie-720p.mp4", Protocol: "UDP"}))
	assert.ErrorIs(t, result(t, done), ErrStreamFailed)
}

func TestServe_StartFailure(t *testing.T) {
	runner := &processtest.Runner{StartErr: errors.New("exec: ffmpeg not found")}
	c, done := startSession(t, testHandler(runner), testCatalog("movie-720p.mp4"))

	require.NoError(t, c.RequestStream(Request{FileName: "movie-720p.mp4", Protocol: "UDP"}))
	assert.ErrorIs(t, result(t, done), ErrStreamFailed)
}

func TestParseRequest(t *testing.T) {
	req, err := ParseRequest("movie-720p.mp4,RTP\r")
	require.NoError(t, err)
	assert.Equal(t, Request{FileName: "movie-720p.mp4", Protocol: "RTP"}, req)
	assert.Equal(t, "movie-720p.mp4,RTP", req.String())

	req, err = ParseRequest("a,b-240p.avi,TCP")
	require.NoError(t, err)
	assert.Equal(t, "a,b-240p.avi", req.FileName)

	for _, bad := range []string{"", "movie", ",", "movie,", ",TCP"} {
		_, err := ParseRequest(bad)
		assert.ErrorIs(t, err, ErrProtocolViolation, bad)
	}
}

func TestRequestStream_RejectsMalformed(t *testing.T) {
	c := NewClient(nopConn{})
	assert.ErrorIs(t, c.RequestStream(Request{Protocol: "TCP"}), ErrProtocolViolation)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "AWAIT_CATALOG_REQUEST", AwaitCatalogRequest.String())
	assert.Equal(t, "STREAM_DISPATCHED", StreamDispatched.String())
	assert.Equal(t, "CLOSED", Closed.String())
}

type nopConn struct{}

func (nopConn) Read([]byte) (int, error)    { return 0, io.EOF }
func (nopConn) Write(p []byte) (int, error) { return len(p), nil }
func (nopConn) Close() error                { return nil }
