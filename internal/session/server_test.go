// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/mediacast/internal/catalog"
	"github.com/ManuGH/mediacast/internal/process/processtest"
)

func startServer(t *testing.T, runner *processtest.Runner, cat *catalog.Catalog) (*Server, context.CancelFunc, <-chan error) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewServer(ServerConfig{
		Catalogs: catalog.NewHolder(cat),
		Handler:  testHandler(runner),
		Logger:   zerolog.Nop(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()
	return srv, cancel, done
}

func dial(t *testing.T, srv *Server) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := Dial(ctx, srv.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestServer_ConcurrentSessions(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	block := make(chan struct{})
	runner := &processtest.Runner{Block: block}
	srv, cancel, done := startServer(t, runner, testCatalog("movie-720p.mp4", "movie-480p.avi"))
	defer cancel()

	// First client starts a stream that stays running.
	first := dial(t, srv)
	_, err := first.FetchCatalog()
	require.NoError(t, err)
	require.NoError(t, first.RequestStream(Request{FileName: "movie-720p.mp4", Protocol: "TCP"}))
	require.Eventually(t, func() bool { return len(runner.Calls()) == 1 }, 2*time.Second, 10*time.Millisecond)

	// A second client is served while the first stream is active.
	second := dial(t, srv)
	files, err := second.FetchCatalog()
	require.NoError(t, err)
	assert.Equal(t, []string{"movie-720p.mp4", "movie-480p.avi"}, files)
	require.NoError(t, second.RequestStream(Request{FileName: "movie-480p.avi", Protocol: "UDP"}))
	require.Eventually(t, func() bool { return len(runner.Calls()) == 2 }, 2*time.Second, 10*time.Millisecond)

	close(block)
	require.NoError(t, first.Wait())
	require.NoError(t, second.Wait())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_ProtocolViolationClosesOnlyThatSession(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	runner := &processtest.Runner{}
	srv, cancel, done := startServer(t, runner, testCatalog("movie-720p.mp4"))

	bad := dial(t, srv)
	require.NoError(t, bad.writeLine("garbage"))
	require.NoError(t, bad.Wait())

	good := dial(t, srv)
	files, err := good.FetchCatalog()
	require.NoError(t, err)
	assert.Equal(t, []string{"movie-720p.mp4"}, files)
	require.NoError(t, good.Close())

	cancel()
	require.NoError(t, <-done)
	assert.Empty(t, runner.Calls())
}

func TestServer_ShutdownClosesIdleSessions(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	srv, cancel, done := startServer(t, &processtest.Runner{}, testCatalog("movie-720p.mp4"))

	idle := dial(t, srv)
	_, err := idle.FetchCatalog()
	require.NoError(t, err)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop with an idle session open")
	}
	assert.NoError(t, idle.Wait())
}

func TestServer_UsesCurrentCatalog(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	runner := &processtest.Runner{}
	holder := catalog.NewHolder(testCatalog("movie-720p.mp4"))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := NewServer(ServerConfig{Catalogs: holder, Handler: testHandler(runner), Logger: zerolog.Nop()})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	holder.Swap(testCatalog("movie-720p.mp4", "other-360p.mkv"))

	c := dial(t, srv)
	files, err := c.FetchCatalog()
	require.NoError(t, err)
	assert.Equal(t, []string{"movie-720p.mp4", "other-360p.mkv"}, files)
	require.NoError(t, c.Close())

	cancel()
	require.NoError(t, <-done)
}
