package apps

import (
	"context"
	"io"
	"os"
	"time"

	"seqstream/internal/pkg/client"
	"seqstream/internal/pkg/validate"

	"github.com/pkg/errors"
)

// ClientAppCfg configures a ClientApp.
type ClientAppCfg interface {
	ApplyClientApp(*ClientApp) error
}

// ClientApp requests a sequence from a server and prints what arrived.
type ClientApp struct {
	Host        string        `validate:"required"`
	Port        uint16        `validate:"required"`
	Count       uint16        `validate:"required"`
	Timeout     time.Duration `validate:"required"`
	DialTimeout time.Duration `validate:"required"`
	Stats       bool
	Out         io.Writer `validate:"required"`
}

// NewClientApp creates a new ClientApp.
func NewClientApp(cfgs ...ClientAppCfg) (*ClientApp, error) {
	app := &ClientApp{
		Host:        "localhost",
		Timeout:     client.DefaultInactivityTimeout,
		DialTimeout: client.DefaultDialTimeout,
		Out:         os.Stdout,
	}
	for _, cfg := range cfgs {
		if err := cfg.ApplyClientApp(app); err != nil {
			return nil, errors.Wrap(err, "apply ClientApp cfg failed")
		}
	}
	if err := validate.Validate().Struct(app); err != nil {
		return nil, errors.Wrap(err, "validate ClientApp failed")
	}
	return app, nil
}

// Run connects, receives the sequence and writes the summary line.
// Only a failure to connect, or to write the output, is an error.
func (app *ClientApp) Run(ctx context.Context) error {
	c, err := client.NewClient(
		client.WithServerAddr(app.Host, app.Port),
		client.WithSequenceLength(app.Count),
		client.WithInactivityTimeout(app.Timeout),
		client.WithDialTimeout(app.DialTimeout),
	)
	if err != nil {
		return errors.Wrap(err, "create client failed")
	}
	if err := c.Connect(ctx); err != nil {
		return errors.Wrap(err, "connect client failed")
	}
	rep, err := c.Run(ctx)
	if err != nil {
		return errors.Wrap(err, "run client failed")
	}
	if _, err := rep.WriteTo(app.Out); err != nil {
		return errors.Wrap(err, "write report failed")
	}
	if app.Stats {
		if err := rep.WriteStats(app.Out); err != nil {
			return errors.Wrap(err, "write stats failed")
		}
	}
	return nil
}
