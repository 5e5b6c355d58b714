package cfg

import (
	"io"

	"seqstream/internal"
	"seqstream/internal/app/apps"

	"github.com/pkg/errors"
)

// CountCfg is configuration for the requested sequence length.
type CountCfg struct {
	count uint16
}

// NewCountCfg creates a new CountCfg.
func NewCountCfg(count uint16) *CountCfg {
	return &CountCfg{
		count: count,
	}
}

// ApplyClientApp applies the CountCfg to a ClientApp.
func (cfg CountCfg) ApplyClientApp(app *apps.ClientApp) error {
	if cfg.count == 0 {
		return errors.New("count must be at least 1")
	}
	app.Count = cfg.count
	return nil
}

// OutputCfg is configuration for where the client writes its report.
type OutputCfg struct {
	w io.Writer
}

// NewOutputCfg creates a new OutputCfg.
func NewOutputCfg(w io.Writer) *OutputCfg {
	return &OutputCfg{
		w: w,
	}
}

// ApplyClientApp applies the OutputCfg to a ClientApp.
func (cfg OutputCfg) ApplyClientApp(app *apps.ClientApp) error {
	app.Out = cfg.w
	return nil
}

// ClientFlagsCfg applies the client command line flags.
type ClientFlagsCfg struct{}

// ClientFromFlags creates a ClientFlagsCfg from the parsed command line.
func ClientFromFlags() *ClientFlagsCfg {
	return &ClientFlagsCfg{}
}

// ApplyClientApp applies the client flags to a ClientApp.
func (ClientFlagsCfg) ApplyClientApp(app *apps.ClientApp) error {
	app.Timeout = internal.InactivityTimeout
	app.DialTimeout = internal.DialTimeout
	app.Stats = internal.PrintStats
	return nil
}
