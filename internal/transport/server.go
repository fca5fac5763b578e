package transport

import (
	"context"
	"errors"
	"fmt"
	"net"

	"golang.org/x/sync/errgroup"

	"heroshell/internal/logging"
)

// Handler answers one request.
type Handler interface {
	Handle(ctx context.Context, req Request, from net.Addr) Response
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req Request, from net.Addr) Response

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, req Request, from net.Addr) Response {
	return f(ctx, req, from)
}

// ServerOptions configures a Server.
type ServerOptions struct {
	BufferSize int
	// Workers bounds the number of requests handled concurrently.
	Workers int
}

// Server reads request datagrams and answers each from a bounded pool.
type Server struct {
	conn net.PacketConn
	opts ServerOptions
}

// Listen opens a UDP socket on addr.
func Listen(addr string, opts ServerOptions) (*Server, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return NewServer(conn, opts), nil
}

// NewServer serves on an existing packet connection.
func NewServer(conn net.PacketConn, opts ServerOptions) *Server {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	return &Server{conn: conn, opts: opts}
}

// Addr returns the local address.
func (s *Server) Addr() net.Addr { return s.conn.LocalAddr() }

// Serve handles requests until ctx is cancelled, then waits for in-flight
// requests and closes the connection. It returns nil after cancellation.
func (s *Server) Serve(ctx context.Context, h Handler) error {
	defer s.conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.Close()
	})
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	logging.Server("Serving on %s (workers=%d, buffer=%d)", s.Addr(), s.opts.Workers, s.opts.BufferSize)

	var readErr error
	for {
		buf := make([]byte, s.opts.BufferSize)
		n, from, err := s.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				readErr = fmt.Errorf("failed to read datagram: %w", err)
			}
			break
		}

		data := buf[:n]
		g.Go(func() error {
			s.handle(gctx, h, data, from)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return readErr
}

func (s *Server) handle(ctx context.Context, h Handler, data []byte, from net.Addr) {
	var resp Response
	req, err := decodeRequest(data)
	if err != nil {
		logging.ServerError("Malformed datagram from %s: %v", from, err)
		resp = Response{OK: false, Message: "malformed request"}
	} else {
		logging.Server("Received %s %s from %s", req.Kind, req.ID, from)
		resp = h.Handle(ctx, req, from)
		resp.ID = req.ID
	}

	out, err := encode(resp, s.opts.BufferSize)
	if errors.Is(err, ErrDatagramTooLarge) {
		out, err = encode(Response{ID: resp.ID, OK: false, Message: "response too large"}, s.opts.BufferSize)
	}
	if err != nil {
		logging.ServerError("Failed to encode response to %s: %v", from, err)
		return
	}
	if _, err := s.conn.WriteTo(out, from); err != nil {
		logging.ServerError("Failed to reply to %s: %v", from, err)
	}
}
