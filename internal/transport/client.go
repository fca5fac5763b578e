package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"heroshell/internal/logging"
)

// ClientOptions configures a Client.
type ClientOptions struct {
	// Addr is the server address as host:port.
	Addr       string
	BufferSize int
	Timeout    time.Duration
}

// Client sends requests to a dump server, one datagram each.
type Client struct {
	addr *net.UDPAddr
	opts ClientOptions
}

// NewClient resolves the server address.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	addr, err := net.ResolveUDPAddr("udp", opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve server address %q: %w", opts.Addr, err)
	}
	return &Client{addr: addr, opts: opts}, nil
}

// Addr returns the resolved server address.
func (c *Client) Addr() net.Addr { return c.addr }

// Exchange sends req and waits for the response carrying the same id.
// Datagrams with other ids are discarded. If nothing matching arrives within
// the timeout the call fails with ErrNoResponse.
func (c *Client) Exchange(ctx context.Context, req Request) (Response, error) {
	data, err := encode(req, c.opts.BufferSize)
	if err != nil {
		return Response{}, err
	}

	conn, err := net.DialUDP("udp", nil, c.addr)
	if err != nil {
		return Response{}, fmt.Errorf("failed to open socket: %w", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.opts.Timeout)
	ctxBound := false
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline, ctxBound = d, true
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return Response{}, fmt.Errorf("failed to set deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := conn.Write(data); err != nil {
		return Response{}, fmt.Errorf("failed to send %s: %w", req.Kind, err)
	}
	logging.TransportDebug("Sent %s %s (%d bytes) to %s", req.Kind, req.ID, len(data), c.addr)

	buf := make([]byte, c.opts.BufferSize)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Response{}, ctxErr
			}
			if errors.Is(err, os.ErrDeadlineExceeded) {
				if ctxBound {
					return Response{}, context.DeadlineExceeded
				}
				logging.Transport("No response to %s %s within %s", req.Kind, req.ID, c.opts.Timeout)
				return Response{}, ErrNoResponse
			}
			return Response{}, fmt.Errorf("failed to receive response: %w", err)
		}

		resp, err := decodeResponse(buf[:n])
		if err != nil {
			logging.TransportDebug("Discarding datagram: %v", err)
			continue
		}
		if resp.ID != req.ID {
			logging.TransportDebug("Discarding response for %s", resp.ID)
			continue
		}
		return resp, nil
	}
}
