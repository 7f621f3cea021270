// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/ManuGH/mediacast/internal/catalog"
)

// Client is the requesting side of a session.
type Client struct {
	conn io.ReadWriteCloser
	r    *bufio.Reader
}

// Dial connects to a session server.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrConnection, addr, err)
	}
	return NewClient(conn), nil
}

// NewClient wraps an established stream.
func NewClient(conn io.ReadWriteCloser) *Client {
	return &Client{conn: conn, r: bufio.NewReader(conn)}
}

// FetchCatalog requests and returns the catalog filenames.
func (c *Client) FetchCatalog() ([]string, error) {
	if err := c.writeLine(GetFiles); err != nil {
		return nil, err
	}
	line, err := c.r.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("%w: read catalog: %w", ErrConnection, err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return nil, nil
	}
	return strings.Split(line, catalog.Separator), nil
}

// RequestStream sends the stream request. The server answers by starting the
// stream on the agreed transport; nothing more is sent on this connection.
func (c *Client) RequestStream(req Request) error {
	if _, err := ParseRequest(req.String()); err != nil {
		return err
	}
	return c.writeLine(req.String())
}

// Wait blocks until the server closes the session.
func (c *Client) Wait() error {
	_, err := io.Copy(io.Discard, c.r)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	return nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) writeLine(line string) error {
	if _, err := io.WriteString(c.conn, line+"\n"); err != nil {
		return fmt.Errorf("%w: write: %w", ErrConnection, err)
	}
	return nil
}
