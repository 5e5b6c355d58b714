// Package handler serves a single seqstream session over an accepted connection.
package handler

import (
	"bufio"
	"context"
	"io"
	"net"
	"time"

	"seqstream/internal/pkg/session"
	"seqstream/internal/pkg/wire"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var logger logrus.FieldLogger = logrus.StandardLogger()

const (
	// DefaultHandshakeTimeout bounds the wait for the client's request line.
	DefaultHandshakeTimeout = 5 * time.Second
	// DefaultWriteTimeout bounds each item write, so a peer that stops reading cannot pin the session.
	DefaultWriteTimeout = 5 * time.Second
)

// Outcome describes how a session ended.
type Outcome string

// Session outcomes.
const (
	OutcomeCompleted    Outcome = "completed"
	OutcomePeerLost     Outcome = "peer_lost"
	OutcomeBadHandshake Outcome = "bad_handshake"
	OutcomeCancelled    Outcome = "cancelled"
)

// Result summarises one served session.
type Result struct {
	Outcome Outcome
	Length  uint16
	Sent    uint16
}

type handler struct {
	sessionID        uuid.UUID
	session          session.Store
	interval         time.Duration
	handshakeTimeout time.Duration
	writeTimeout     time.Duration
	defaultLength    uint16
	onItem           func()
}

// HandlerCfg configures a handler.
type HandlerCfg func(*handler) error

// WithSessionStore sets the session store.
func WithSessionStore(store session.Store) HandlerCfg {
	return func(h *handler) error {
		h.session = store
		return nil
	}
}

// WithSessionID sets the id of the session served by the handler.
func WithSessionID(id uuid.UUID) HandlerCfg {
	return func(h *handler) error {
		h.sessionID = id
		return nil
	}
}

// WithInterval sets the pause between consecutive items.
func WithInterval(d time.Duration) HandlerCfg {
	return func(h *handler) error {
		if d < 0 {
			return errors.Errorf("negative interval %s", d)
		}
		h.interval = d
		return nil
	}
}

// WithHandshakeTimeout sets how long to wait for the request line.
func WithHandshakeTimeout(d time.Duration) HandlerCfg {
	return func(h *handler) error {
		if d <= 0 {
			return errors.Errorf("handshake timeout must be positive, got %s", d)
		}
		h.handshakeTimeout = d
		return nil
	}
}

// WithWriteTimeout sets the deadline for writing a single item.
func WithWriteTimeout(d time.Duration) HandlerCfg {
	return func(h *handler) error {
		if d <= 0 {
			return errors.Errorf("write timeout must be positive, got %s", d)
		}
		h.writeTimeout = d
		return nil
	}
}

// WithDefaultLength sets the sequence length used when the client sends an empty request,
// or no request at all before the handshake timeout. Zero requires an explicit request.
func WithDefaultLength(n uint16) HandlerCfg {
	return func(h *handler) error {
		h.defaultLength = n
		return nil
	}
}

// WithItemHook registers a callback invoked after every item is written.
func WithItemHook(fn func()) HandlerCfg {
	return func(h *handler) error {
		h.onItem = fn
		return nil
	}
}

// NewHandler creates a new handler.
func NewHandler(cfgs ...HandlerCfg) (*handler, error) {
	h := &handler{
		handshakeTimeout: DefaultHandshakeTimeout,
		writeTimeout:     DefaultWriteTimeout,
	}
	for _, cfg := range cfgs {
		if err := cfg(h); err != nil {
			return nil, errors.Wrap(err, "apply handler cfg failed")
		}
	}
	if h.session == nil {
		return nil, errors.New("handler requires a session store")
	}
	return h, nil
}

// readRequest waits for the handshake and returns the requested sequence length.
func (h *handler) readRequest(conn net.Conn) (uint16, error) {
	if err := conn.SetReadDeadline(time.Now().Add(h.handshakeTimeout)); err != nil {
		return 0, errors.Wrap(err, "set handshake deadline failed")
	}
	defer conn.SetReadDeadline(time.Time{}) // nolint: errcheck // the conn is closed by the caller on error

	r := bufio.NewReaderSize(conn, 64)
	line, err := r.ReadSlice(wire.Delimiter)
	if err != nil {
		var ne net.Error
		switch {
		case len(line) == 0 && errors.As(err, &ne) && ne.Timeout() && h.defaultLength > 0:
			return h.defaultLength, nil
		case errors.Is(err, io.EOF) && len(line) > 0:
			// a half-closed peer may omit the delimiter
		default:
			return 0, errors.Wrap(err, "read request failed")
		}
	}
	n, err := wire.ParseRequest(line)
	if errors.Is(err, wire.ErrEmptyRequest) && h.defaultLength > 0 {
		return h.defaultLength, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "parse request failed")
	}
	return n, nil
}

// Run serves one session on conn: it reads the request and then writes items 1..N.
// Peer loss and bad requests end the session with a non-completed Outcome, never an error.
// The caller owns conn and must close it.
func (h *handler) Run(ctx context.Context, conn net.Conn) (Result, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	fields := logrus.Fields{"session": h.sessionID.String(), "peer": conn.RemoteAddr().String()}

	length, err := h.readRequest(conn)
	if err != nil {
		if ctx.Err() != nil {
			return Result{Outcome: OutcomeCancelled}, nil
		}
		logger.WithFields(fields).WithError(err).Warn("bad handshake")
		return Result{Outcome: OutcomeBadHandshake}, nil
	}
	fields["len"] = length
	if err := h.session.SetLength(h.sessionID, length); err != nil {
		return Result{}, errors.Wrap(err, "set session length failed")
	}
	logger.WithFields(fields).Info("streaming sequence")

	var ticker *time.Ticker
	if h.interval > 0 {
		ticker = time.NewTicker(h.interval)
		defer ticker.Stop()
	}

	res := Result{Length: length}
	buf := make([]byte, 0, 8)
	for i := uint16(1); i <= length; i++ {
		if ticker != nil && i > 1 {
			select {
			case <-ctx.Done():
			case <-ticker.C:
			}
		}
		if ctx.Err() != nil {
			res.Outcome = OutcomeCancelled
			return res, nil
		}
		if err := conn.SetWriteDeadline(time.Now().Add(h.writeTimeout)); err != nil {
			logger.WithFields(fields).WithError(err).Warn("set write deadline failed")
			res.Outcome = OutcomePeerLost
			return res, nil
		}
		buf = wire.AppendItem(buf[:0], uint64(i))
		if _, err := conn.Write(buf); err != nil {
			if ctx.Err() != nil {
				res.Outcome = OutcomeCancelled
				return res, nil
			}
			logger.WithFields(fields).WithError(err).WithField("item", i).Warn("peer lost mid-stream")
			res.Outcome = OutcomePeerLost
			return res, nil
		}
		res.Sent = i
		if err := h.session.Advance(h.sessionID, i); err != nil {
			return res, errors.Wrap(err, "advance session failed")
		}
		if h.onItem != nil {
			h.onItem()
		}
		if i == length {
			break // i++ would wrap at the largest length
		}
	}
	res.Outcome = OutcomeCompleted
	logger.WithFields(fields).Info("sequence sent")
	return res, nil
}
