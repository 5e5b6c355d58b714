package apps

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"seqstream/internal/pkg/handler"
	"seqstream/internal/pkg/server"
	"seqstream/internal/pkg/validate"

	"github.com/pkg/errors"
)

// ServerAppCfg configures a ServerApp.
type ServerAppCfg interface {
	ApplyServerApp(*ServerApp) error
}

// ServerApp serves sequences until its context is cancelled.
type ServerApp struct {
	// Host is the bind host; empty binds every interface.
	Host             string
	Port             uint16
	Interval         time.Duration `validate:"min=0"`
	HandshakeTimeout time.Duration `validate:"required"`
	WriteTimeout     time.Duration `validate:"required"`
	DefaultCount     uint16
	MaxSessions      int `validate:"min=0"`
	HealthPort       uint16
	MetricsPort      uint16

	// OnListen, if set, is called with the bound address once the server is listening.
	OnListen func(net.Addr)
}

// NewServerApp creates a new ServerApp.
func NewServerApp(cfgs ...ServerAppCfg) (*ServerApp, error) {
	app := &ServerApp{
		HandshakeTimeout: handler.DefaultHandshakeTimeout,
		WriteTimeout:     handler.DefaultWriteTimeout,
		MaxSessions:      1,
	}
	for _, cfg := range cfgs {
		if err := cfg.ApplyServerApp(app); err != nil {
			return nil, errors.Wrap(err, "apply ServerApp cfg failed")
		}
	}
	if err := validate.Validate().Struct(app); err != nil {
		return nil, errors.Wrap(err, "validate ServerApp failed")
	}
	return app, nil
}

func (app *ServerApp) addr(port uint16) string {
	return net.JoinHostPort(app.Host, strconv.FormatUint(uint64(port), 10))
}

// Run binds the listener and serves until ctx is cancelled.
// A bind failure, on the main port or an auxiliary one, is returned immediately.
func (app *ServerApp) Run(ctx context.Context) error {
	cfgs := []server.Cfg{
		server.WithMaxSessions(app.MaxSessions),
		server.WithHandlerCfgs(
			handler.WithInterval(app.Interval),
			handler.WithHandshakeTimeout(app.HandshakeTimeout),
			handler.WithWriteTimeout(app.WriteTimeout),
			handler.WithDefaultLength(app.DefaultCount),
		),
	}

	if app.HealthPort != 0 {
		hs := server.NewHealthServer()
		lis, err := net.Listen("tcp", app.addr(app.HealthPort))
		if err != nil {
			return errors.Wrap(err, "listen for health checks failed")
		}
		go func() {
			if err := hs.Serve(lis); err != nil {
				logger.WithError(err).Error("health server stopped")
			}
		}()
		defer hs.Stop()
		cfgs = append(cfgs, server.WithHealthServer(hs))
	}

	if app.MetricsPort != 0 {
		lis, err := net.Listen("tcp", app.addr(app.MetricsPort))
		if err != nil {
			return errors.Wrap(err, "listen for metrics failed")
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", server.MetricsHandler())
		srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.WithError(err).Error("metrics server stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	s, err := server.NewServer(cfgs...)
	if err != nil {
		return errors.Wrap(err, "create server failed")
	}
	if err := s.Listen(ctx, app.addr(app.Port)); err != nil {
		return errors.Wrap(err, "listen failed")
	}
	if app.OnListen != nil {
		app.OnListen(s.Addr())
	}
	if err := s.Serve(ctx); err != nil {
		return errors.Wrap(err, "serve failed")
	}
	stats := s.Stats()
	logger.WithField("sessions", stats.TotalSessions).Info("server stopped")
	return nil
}
