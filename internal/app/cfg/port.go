package cfg

import (
	"seqstream/internal/app/apps"
)

// PortCfg is configuration for the server port.
type PortCfg struct {
	port uint16
}

// NewPortCfg creates a new PortCfg from the given config.
func NewPortCfg(port uint16) *PortCfg {
	return &PortCfg{
		port: port,
	}
}

// ApplyClientApp applies the PortCfg to a ClientApp.
func (cfg PortCfg) ApplyClientApp(app *apps.ClientApp) error {
	app.Port = cfg.port
	return nil
}

// ApplyServerApp applies the PortCfg to a ServerApp.
func (cfg PortCfg) ApplyServerApp(app *apps.ServerApp) error {
	app.Port = cfg.port
	return nil
}

// HostCfg is configuration for the server host: the address a client dials, or the address a server binds.
type HostCfg struct {
	host string
}

// NewHostCfg creates a new HostCfg.
func NewHostCfg(host string) *HostCfg {
	return &HostCfg{
		host: host,
	}
}

// ApplyClientApp applies the HostCfg to a ClientApp.
func (cfg HostCfg) ApplyClientApp(app *apps.ClientApp) error {
	app.Host = cfg.host
	return nil
}

// ApplyServerApp applies the HostCfg to a ServerApp.
func (cfg HostCfg) ApplyServerApp(app *apps.ServerApp) error {
	app.Host = cfg.host
	return nil
}
