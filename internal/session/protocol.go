// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package session implements the line-oriented catalog/stream exchange.
//
//	client -> server: get_files
//	server -> client: <file1>,<file2>,...   (empty line for an empty catalog)
//	client -> server: <movie>-<res>p.<format>,<TCP|UDP|RTP>
//
// Every message is one newline-terminated UTF-8 line. A session serves at
// most one stream and closes when the streaming process exits.
package session

import (
	"errors"
	"fmt"
	"strings"
)

// GetFiles is the catalog request token.
const GetFiles = "get_files"

var (
	// ErrProtocolViolation marks a malformed request or an unknown transport.
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrUnknownFile is a request for a file the catalog does not contain.
	ErrUnknownFile = fmt.Errorf("%w: file not in catalog", ErrProtocolViolation)
	// ErrConnection wraps read and write failures on the session stream.
	ErrConnection = errors.New("connection error")
	// ErrStreamFailed reports a streaming process that could not start or
	// exited with an error.
	ErrStreamFailed = errors.New("stream failed")
)

// State is the server-side position in the exchange.
type State int

const (
	AwaitCatalogRequest State = iota
	CatalogSent
	AwaitStreamRequest
	StreamDispatched
	Closed
)

func (s State) String() string {
	switch s {
	case AwaitCatalogRequest:
		return "AWAIT_CATALOG_REQUEST"
	case CatalogSent:
		return "CATALOG_SENT"
	case AwaitStreamRequest:
		return "AWAIT_STREAM_REQUEST"
	case StreamDispatched:
		return "STREAM_DISPATCHED"
	case Closed:
		return "CLOSED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Request asks the server to stream FileName over Protocol.
type Request struct {
	FileName string
	Protocol string
}

// ParseRequest parses "<fileName>,<protocol>". The protocol follows the last
// comma; the transport token itself is validated by the resolver.
func ParseRequest(line string) (Request, error) {
	line = strings.TrimSpace(line)
	idx := strings.LastIndex(line, ",")
	if idx < 0 {
		return Request{}, fmt.Errorf("%w: missing comma in %q", ErrProtocolViolation, line)
	}
	req := Request{
		FileName: strings.TrimSpace(line[:idx]),
		Protocol: strings.TrimSpace(line[idx+1:]),
	}
	if req.FileName == "" {
		return Request{}, fmt.Errorf("%w: empty file in %q", ErrProtocolViolation, line)
	}
	if req.Protocol == "" {
		return Request{}, fmt.Errorf("%w: empty protocol in %q", ErrProtocolViolation, line)
	}
	return req, nil
}

// String renders the request in wire form without the newline.
func (r Request) String() string {
	return r.FileName + "," + r.Protocol
}
