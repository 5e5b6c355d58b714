package server

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"seqstream/internal/pkg/handler"
	"seqstream/internal/pkg/log"
	"seqstream/internal/pkg/session"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var logger logrus.FieldLogger = logrus.StandardLogger()

// outcomeError labels sessions that ended on an internal failure rather than a peer event.
const outcomeError = "error"

// Server accepts connections and streams a sequence on each of them.
type Server struct {
	store       session.Store
	handlerCfgs []handler.HandlerCfg
	maxSessions int
	health      *HealthServer

	listener net.Listener
	address  string
	mu       sync.RWMutex
	serving  bool
	closed   bool
	cancel   context.CancelFunc
	done     chan struct{}

	wg            sync.WaitGroup
	sem           chan struct{}
	totalSessions atomic.Int64
}

// Stats is a point-in-time view of the server.
type Stats struct {
	Address        string
	ActiveSessions int
	TotalSessions  int64
}

// Cfg configures a Server.
type Cfg func(*Server) error

// WithSessionStore sets the session store for the server.
func WithSessionStore(store session.Store) Cfg {
	return func(s *Server) error {
		s.store = store
		return nil
	}
}

// WithHandlerCfgs sets the configuration applied to every session handler.
func WithHandlerCfgs(cfgs ...handler.HandlerCfg) Cfg {
	return func(s *Server) error {
		s.handlerCfgs = append(s.handlerCfgs, cfgs...)
		return nil
	}
}

// WithMaxSessions sets how many sessions may be served at once.
// Values below 2 serve sessions one at a time on the accept loop.
func WithMaxSessions(n int) Cfg {
	return func(s *Server) error {
		if n < 0 {
			return errors.Errorf("negative max sessions %d", n)
		}
		s.maxSessions = n
		return nil
	}
}

// WithHealthServer reports the accept loop state to h.
func WithHealthServer(h *HealthServer) Cfg {
	return func(s *Server) error {
		s.health = h
		return nil
	}
}

// NewServer creates a new Server with the given configuration.
func NewServer(cfgs ...Cfg) (*Server, error) {
	server := &Server{}
	for _, cfg := range cfgs {
		if err := cfg(server); err != nil {
			return nil, errors.Wrap(err, "apply Server cfg failed")
		}
	}
	if server.store == nil {
		server.store = session.NewMemoryStore()
	}
	if server.maxSessions > 1 {
		server.sem = make(chan struct{}, server.maxSessions)
	}
	return server, nil
}

// Listen binds addr. A bind failure is returned as is, wrapped with the address.
func (s *Server) Listen(ctx context.Context, addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return errors.Wrapf(ErrAlreadyListening, "on %s", s.address)
	}
	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s failed", addr)
	}
	s.listener = listener
	s.address = listener.Addr().String()
	logger.WithField("addr", s.address).Info("listening")
	return nil
}

// Serve accepts connections until ctx is cancelled or Close is called.
// It returns nil on shutdown, after every running session has ended.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.listener == nil {
		s.mu.Unlock()
		return ErrNotListening
	}
	if s.serving {
		s.mu.Unlock()
		return errors.Wrapf(ErrAlreadyServing, "on %s", s.address)
	}
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.serving = true
	s.cancel = cancel
	s.done = make(chan struct{})
	defer close(s.done)
	listener := s.listener
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		_ = listener.Close()
	})
	defer stop()

	if s.health != nil {
		s.health.SetServing(true)
		defer s.health.SetServing(false)
	}
	defer s.wg.Wait()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || s.isClosed() {
				logger.WithField("addr", s.address).Info("stopped accepting")
				return nil
			}
			if temporaryAcceptError(err) {
				logger.WithError(err).Warn("temporary accept failure")
				time.Sleep(10 * time.Millisecond)
				continue
			}
			return errors.Wrap(err, "accept connection failed")
		}
		s.totalSessions.Add(1)

		if s.sem == nil {
			s.wg.Add(1)
			s.serveSession(ctx, conn)
			continue
		}
		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			_ = conn.Close()
			continue
		}
		s.wg.Add(1)
		go func() {
			defer func() { <-s.sem }()
			s.serveSession(ctx, conn)
		}()
	}
}

// serveSession runs one session and releases everything it holds, whatever the outcome.
func (s *Server) serveSession(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	start := time.Now()
	id := uuid.New()
	fields := logrus.Fields{"session": id.String(), "peer": conn.RemoteAddr().String()}
	outcome := outcomeError

	sessionsActive.Inc()
	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(fields).Errorf("session panicked: %v", r)
			outcome = outcomeError
		}
		if err := conn.Close(); err != nil {
			logger.WithFields(fields).WithError(err).Debug("close connection failed")
		}
		sessionsActive.Dec()
		sessionsTotal.WithLabelValues(outcome).Inc()
		sessionDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	if err := s.store.New(id, conn.RemoteAddr().String()); err != nil {
		logger.WithFields(fields).WithError(err).Error("new session failed")
		return
	}
	defer func() {
		if sess, err := s.store.Get(id); err == nil {
			logger.WithFields(log.SessionToFields(sess)).WithField("outcome", outcome).Info("session ended")
		}
		if err := s.store.Clear(id); err != nil {
			logger.WithFields(fields).WithError(err).Error("clear session failed")
		}
	}()
	logger.WithFields(fields).Info("new connection established")

	cfgs := append([]handler.HandlerCfg{}, s.handlerCfgs...)
	cfgs = append(cfgs,
		handler.WithSessionStore(s.store),
		handler.WithSessionID(id),
		handler.WithItemHook(itemsSent.Inc),
	)
	h, err := handler.NewHandler(cfgs...)
	if err != nil {
		logger.WithFields(fields).WithError(err).Error("new handler failed")
		return
	}
	res, err := h.Run(ctx, conn)
	if err != nil {
		logger.WithFields(fields).WithError(err).Error("run handler failed")
		return
	}
	outcome = string(res.Outcome)
}

// temporaryAcceptError reports whether accept failed for lack of file descriptors.
func temporaryAcceptError(err error) bool {
	return errors.Is(err, syscall.EMFILE) || errors.Is(err, syscall.ENFILE)
}

func (s *Server) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Close stops accepting, cancels running sessions and waits for Serve to return.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	listener, cancel, done := s.listener, s.cancel, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if listener != nil {
		if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			return errors.Wrap(err, "close listener failed")
		}
	}
	if done != nil {
		<-done
	}
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// Stats returns the current session counters.
func (s *Server) Stats() Stats {
	s.mu.RLock()
	addr := s.address
	s.mu.RUnlock()
	return Stats{
		Address:        addr,
		ActiveSessions: len(s.store.List()),
		TotalSessions:  s.totalSessions.Load(),
	}
}
