// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package transport maps a transport name to the argument lists handed to the
// external media tools: ffmpeg on the server, ffplay on the client.
package transport

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedProtocol is returned for any transport outside TCP, UDP and RTP.
var ErrUnsupportedProtocol = errors.New("unsupported protocol")

// Protocol names a stream transport as it appears on the wire.
type Protocol string

const (
	TCP Protocol = "TCP"
	UDP Protocol = "UDP"
	RTP Protocol = "RTP"
)

// Protocols lists the supported transports in presentation order.
func Protocols() []Protocol {
	return []Protocol{TCP, UDP, RTP}
}

// ParseProtocol normalises a transport token. Matching is case-insensitive.
func ParseProtocol(s string) (Protocol, error) {
	switch p := Protocol(strings.ToUpper(strings.TrimSpace(s))); p {
	case TCP, UDP, RTP:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedProtocol, s)
	}
}

// Endpoints holds the fixed addresses both peers agree on. They are not
// configurable; DefaultEndpoints is passed explicitly into the Resolver.
type Endpoints struct {
	Host       string
	StreamPort int
	RTPPort    int
	RTCPPort   int
	SDPPath    string
}

// DefaultEndpoints returns the fixed endpoints with the SDP file at sdpPath.
func DefaultEndpoints(sdpPath string) Endpoints {
	return Endpoints{
		Host:       "127.0.0.1",
		StreamPort: 8081,
		RTPPort:    5004,
		RTCPPort:   5008,
		SDPPath:    sdpPath,
	}
}

func (e Endpoints) tcpURL() string {
	return fmt.Sprintf("tcp://%s:%d", e.Host, e.StreamPort)
}

func (e Endpoints) udpURL() string {
	return fmt.Sprintf("udp://%s:%d", e.Host, e.StreamPort)
}

func (e Endpoints) rtpURL() string {
	return fmt.Sprintf("rtp://%s:%d?rtcpport=%d", e.Host, e.RTPPort, e.RTCPPort)
}

// Resolver constructs tool arguments. It never executes anything.
type Resolver struct {
	endpoints Endpoints
}

// NewResolver returns a resolver bound to the given endpoints.
func NewResolver(endpoints Endpoints) *Resolver {
	return &Resolver{endpoints: endpoints}
}

// Endpoints returns the endpoints the resolver was built with.
func (r *Resolver) Endpoints() Endpoints {
	return r.endpoints
}

// ServerArgs returns the ffmpeg arguments that stream filePath over protocol.
//
//	TCP: non-realtime read, MPEG-TS, listen on the stream port
//	UDP: realtime-paced read (-re), MPEG-TS, send to the stream port
//	RTP: realtime-paced, video only, stream copy, RTP muxer, SDP file written
func (r *Resolver) ServerArgs(filePath, protocol string) ([]string, error) {
	p, err := ParseProtocol(protocol)
	if err != nil {
		return nil, err
	}
	e := r.endpoints
	switch p {
	case TCP:
		return []string{"-i", filePath, "-f", "mpegts", e.tcpURL() + "?listen"}, nil
	case UDP:
		return []string{"-re", "-i", filePath, "-f", "mpegts", e.udpURL()}, nil
	default:
		return []string{
			"-re", "-i", filePath,
			"-an",
			"-c:v", "copy",
			"-f", "rtp",
			"-sdp_file", e.SDPPath,
			e.rtpURL(),
		}, nil
	}
}

// PlayerArgs returns the ffplay arguments that consume the stream on the client.
func (r *Resolver) PlayerArgs(protocol string) ([]string, error) {
	p, err := ParseProtocol(protocol)
	if err != nil {
		return nil, err
	}
	e := r.endpoints
	switch p {
	case TCP:
		return []string{e.tcpURL()}, nil
	case UDP:
		return []string{e.udpURL()}, nil
	default:
		return []string{"-protocol_whitelist", "file,rtp,udp", "-i", e.SDPPath}, nil
	}
}
