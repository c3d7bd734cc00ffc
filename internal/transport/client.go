// internal/transport/client.go
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/tamzrod/deye-bridge/internal/fault"
)

const (
	DefaultTimeout    = 10 * time.Second
	DefaultAttempts   = 10
	DefaultBufferSize = 1024

	// MaxAttempts caps the receive budget; the logger answers within a
	// handful of timeouts or not at all.
	MaxAttempts = 10
)

var ErrNoData = fmt.Errorf("%w: no data received within attempt budget", fault.ErrTransport)

// Dialer opens one connection per request.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Config is the transport configuration.
type Config struct {
	Address    string // host:port of the logger
	Timeout    time.Duration
	Attempts   int
	BufferSize int
}

// Option customises a Client.
type Option func(*Client)

// WithHeartbeat registers fn to be called before connecting, once
// connected and before every receive attempt.
func WithHeartbeat(fn func()) Option {
	return func(c *Client) { c.heartbeat = fn }
}

// WithDialer replaces the TCP dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// Client is stateless: 1 request = 1 connection.
type Client struct {
	address    string
	timeout    time.Duration
	attempts   int
	bufferSize int

	dialer    Dialer
	heartbeat func()
}

// New creates a transport client, applying defaults to zero fields.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.Address == "" {
		return nil, errors.New("transport: address required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.Attempts > MaxAttempts {
		return nil, fmt.Errorf("transport: attempts must be <= %d, got %d", MaxAttempts, cfg.Attempts)
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}

	c := &Client{
		address:    cfg.Address,
		timeout:    cfg.Timeout,
		attempts:   cfg.Attempts,
		bufferSize: cfg.BufferSize,
		dialer:     &net.Dialer{Timeout: cfg.Timeout},
		heartbeat:  func() {},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Address returns the logger endpoint.
func (c *Client) Address() string { return c.address }

// Send writes frame on a fresh connection and returns the first non-empty
// read. Receive timeouts are retried until the attempt budget runs out.
func (c *Client) Send(ctx context.Context, frame []byte) ([]byte, error) {
	c.heartbeat()

	conn, err := c.dialer.DialContext(ctx, "tcp", c.address)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", fault.ErrTransport, c.address, err)
	}
	defer conn.Close()
	c.heartbeat()

	// unblock pending reads when the caller gives up
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	_ = conn.SetWriteDeadline(time.Now().Add(c.timeout))
	if err := writeAll(conn, frame); err != nil {
		return nil, fmt.Errorf("%w: write: %w", fault.ErrTransport, err)
	}

	buf := make([]byte, c.bufferSize)
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", fault.ErrTransport, err)
		}
		c.heartbeat()

		_ = conn.SetReadDeadline(time.Now().Add(c.timeout))
		n, err := conn.Read(buf)
		if n > 0 {
			return append([]byte(nil), buf[:n]...), nil
		}

		switch {
		case err == nil:
			// empty read, try again
		case errors.Is(err, os.ErrDeadlineExceeded):
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", fault.ErrTransport, ctx.Err())
			}
		case errors.Is(err, io.EOF):
			return nil, fmt.Errorf("%w: connection closed by logger", fault.ErrTransport)
		default:
			return nil, fmt.Errorf("%w: read: %w", fault.ErrTransport, err)
		}
	}

	return nil, fmt.Errorf("%w (%d x %s)", ErrNoData, c.attempts, c.timeout)
}

// ---- helpers ----

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}
