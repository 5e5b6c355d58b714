package cfg

import (
	"seqstream/internal"
	"seqstream/internal/app/apps"
)

// ServerFlagsCfg applies the server command line flags.
type ServerFlagsCfg struct{}

// ServerFromFlags creates a ServerFlagsCfg from the parsed command line.
func ServerFromFlags() *ServerFlagsCfg {
	return &ServerFlagsCfg{}
}

// ApplyServerApp applies the server flags to a ServerApp.
func (ServerFlagsCfg) ApplyServerApp(app *apps.ServerApp) error {
	app.Interval = internal.ServerInterval
	app.HandshakeTimeout = internal.HandshakeTimeout
	app.WriteTimeout = internal.WriteTimeout
	app.DefaultCount = internal.DefaultCount
	app.MaxSessions = internal.MaxSessions
	app.HealthPort = internal.HealthPort
	app.MetricsPort = internal.MetricsPort
	return nil
}
