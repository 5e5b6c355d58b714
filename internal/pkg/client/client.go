package client

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"seqstream/internal/pkg/checksum"
	"seqstream/internal/pkg/report"
	"seqstream/internal/pkg/wire"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var logger logrus.FieldLogger = logrus.StandardLogger()

const (
	// DefaultInactivityTimeout is how long the client waits for the next item before giving up.
	DefaultInactivityTimeout = 5 * time.Second
	// DefaultDialTimeout bounds the connection attempt.
	DefaultDialTimeout = 5 * time.Second

	readBufferSize = 4096
)

// Client implements the client behaviour of seqstream.
type Client struct {
	serverAddr  string
	length      uint16
	timeout     time.Duration
	dialTimeout time.Duration

	conn net.Conn
}

// Cfg configures a Client.
type Cfg func(*Client) error

// WithServerPort sets the server port to connect to on localhost.
func WithServerPort(p uint16) Cfg {
	return func(c *Client) error {
		c.serverAddr = fmt.Sprintf("localhost:%d", p)
		return nil
	}
}

// WithServerAddr sets the server host and port to connect to.
func WithServerAddr(host string, port uint16) Cfg {
	return func(c *Client) error {
		c.serverAddr = net.JoinHostPort(host, strconv.FormatUint(uint64(port), 10))
		return nil
	}
}

// WithSequenceLength sets the length of the sequence to request.
func WithSequenceLength(l uint16) Cfg {
	return func(c *Client) error {
		if l == 0 {
			return errors.Wrap(ErrInvalidSequenceLength, "length must be at least 1")
		}
		c.length = l
		return nil
	}
}

// WithInactivityTimeout sets how long to wait for the next item before reporting what has arrived.
func WithInactivityTimeout(d time.Duration) Cfg {
	return func(c *Client) error {
		if d <= 0 {
			return errors.Errorf("inactivity timeout must be positive, got %s", d)
		}
		c.timeout = d
		return nil
	}
}

// WithDialTimeout sets the connection timeout.
func WithDialTimeout(d time.Duration) Cfg {
	return func(c *Client) error {
		if d <= 0 {
			return errors.Errorf("dial timeout must be positive, got %s", d)
		}
		c.dialTimeout = d
		return nil
	}
}

// NewClient creates a new Client with the given configuration.
func NewClient(cfgs ...Cfg) (*Client, error) {
	client := &Client{
		length:      1,
		timeout:     DefaultInactivityTimeout,
		dialTimeout: DefaultDialTimeout,
	}
	for _, cfg := range cfgs {
		if err := cfg(client); err != nil {
			return nil, errors.Wrap(err, "apply Client cfg failed")
		}
	}
	if client.serverAddr == "" {
		return nil, errors.New("server address is required")
	}
	return client, nil
}

// Connect establishes the connection to the server.
func (c *Client) Connect(ctx context.Context) error {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			return errors.Wrap(err, "close client connection failed")
		}
		c.conn = nil
	}
	d := net.Dialer{Timeout: c.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.serverAddr)
	if err != nil {
		return errors.Wrapf(err, "connect to %s failed", c.serverAddr)
	}
	c.conn = conn
	logger.WithField("addr", c.serverAddr).Info("connected")
	return nil
}

// Close releases the connection. It is safe to call when not connected.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return errors.Wrap(err, "close client connection failed")
	}
	return nil
}

// Run requests the sequence and receives it until every item has arrived, the stream ends,
// or the inactivity timeout elapses. Lost items yield a partial report, not an error.
// The connection is closed when Run returns.
func (c *Client) Run(ctx context.Context) (*report.Report, error) {
	if c.conn == nil {
		return nil, ErrNotConnected
	}
	conn := c.conn
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	w := newWindow(c.length, time.Now())
	if err := c.sendRequest(conn); err != nil {
		logger.WithError(err).Warn("send request failed, server went away")
		return c.finish(w)
	}
	logger.WithField("len", c.length).Info("sent request")

	var dec wire.Decoder
	buf := make([]byte, readBufferSize)
	for !w.full() {
		if err := conn.SetReadDeadline(w.deadline(c.timeout)); err != nil {
			logger.WithError(err).Warn("set read deadline failed")
			break
		}
		if ctx.Err() != nil {
			break
		}
		n, err := conn.Read(buf)
		if n > 0 {
			w.bytes += n
			for _, r := range dec.Decode(buf[:n]) {
				if w.accept(r, time.Now()) {
					logger.WithField("item", r.Value).Trace("received item")
				}
			}
		}
		if err == nil {
			continue
		}
		var ne net.Error
		switch {
		case ctx.Err() != nil:
			logger.Info("receive cancelled")
		case errors.As(err, &ne) && ne.Timeout():
			if r, ok := dec.Flush(); ok {
				w.acceptTail(r, time.Now())
			}
			logger.WithFields(w.fields()).WithField("timeout", c.timeout).Info("inactivity timeout, giving up on missing items")
		case errors.Is(err, io.EOF):
			if r, ok := dec.Flush(); ok {
				w.accept(r, time.Now())
			}
			logger.WithFields(w.fields()).Info("server closed the stream")
		default:
			if r, ok := dec.Flush(); ok {
				w.acceptTail(r, time.Now())
			}
			logger.WithFields(w.fields()).WithError(err).Warn("connection lost")
		}
		break
	}
	if dec.Pending() > 0 {
		// cancelled with a partial item buffered
		w.malformed++
		dec.Reset()
	}
	return c.finish(w)
}

func (c *Client) sendRequest(conn net.Conn) error {
	if err := conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return errors.Wrap(err, "set write deadline failed")
	}
	if _, err := conn.Write(wire.EncodeRequest(c.length)); err != nil {
		return errors.Wrap(err, "write request failed")
	}
	return nil
}

// finish closes the connection and checks the received set against the full sequence.
func (c *Client) finish(w *window) (*report.Report, error) {
	if err := c.Close(); err != nil {
		logger.WithError(err).Warn("close failed")
	}
	rep := w.report()
	complete, err := checksum.Complete(rep.Expected, rep.Received...)
	if err != nil {
		return nil, errors.Wrap(err, "verify received sequence failed")
	}
	fields := w.fields()
	if complete {
		logger.WithFields(fields).Info("client completed successfully")
	} else {
		logger.WithFields(fields).WithField("missing", len(rep.Missing())).Warn("client completed with missing items")
	}
	return rep, nil
}
