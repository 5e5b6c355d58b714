// Package main is the seqstream application entrypoint.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"seqstream/internal"
	"seqstream/internal/app/apps"
	"seqstream/internal/app/cfg"
	"seqstream/internal/pkg/log"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// CLI command definitions.
var (
	logger logrus.FieldLogger = logrus.StandardLogger()

	rootCmd = &cobra.Command{
		Use:           "seqstream",
		Short:         "Streams a numbered sequence over TCP and reports what arrived.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	clientCmd = &cobra.Command{
		Use:   "client <host> <count> <port>",
		Short: "Requests count items from the server and prints the ones received.",
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(3)(cmd, args); err != nil {
				return err
			}
			if _, err := parseCount(args[1]); err != nil {
				return err
			}
			if _, err := parsePort(args[2]); err != nil {
				return err
			}
			return nil
		},
		RunE: runCmd,
	}

	serverCmd = &cobra.Command{
		Use:   "server <port>",
		Short: "Serves sequences on port until interrupted.",
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(1)(cmd, args); err != nil {
				return err
			}
			_, err := parsePort(args[0])
			return err
		},
		RunE: runCmd,
	}
)

func parseCount(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, errors.Wrap(err, "parse count argument failed")
	}
	if n == 0 {
		return 0, errors.New("count must be at least 1")
	}
	return uint16(n), nil
}

func parsePort(s string) (uint16, error) {
	p, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, errors.Wrap(err, "parse port argument failed")
	}
	if p == 0 {
		return 0, errors.New("port must not be 0")
	}
	return uint16(p), nil
}

func newApp(_ context.Context, cmd *cobra.Command, args []string) (apps.App, error) {
	switch cmd.Name() {
	case "client":
		count, err := parseCount(args[1])
		if err != nil {
			return nil, err
		}
		port, err := parsePort(args[2])
		if err != nil {
			return nil, err
		}
		app, err := apps.NewClientApp(
			cfg.NewHostCfg(args[0]),
			cfg.NewCountCfg(count),
			cfg.NewPortCfg(port),
			cfg.NewOutputCfg(cmd.OutOrStdout()),
			cfg.ClientFromFlags(),
		)
		if err != nil {
			return nil, errors.Wrap(err, "new client app failed")
		}
		return app, nil
	case "server":
		port, err := parsePort(args[0])
		if err != nil {
			return nil, err
		}
		app, err := apps.NewServerApp(
			cfg.NewPortCfg(port),
			cfg.ServerFromFlags(),
		)
		if err != nil {
			return nil, errors.Wrap(err, "new server app failed")
		}
		return app, nil
	default:
		return nil, fmt.Errorf("unknown command: %s", cmd.Name())
	}
}

func runCmd(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	if err := chainedCheck(
		ctx,
		flagCheck,
	); err != nil {
		return errors.Wrap(err, "chained check failed")
	}
	app, err := newApp(ctx, cmd, args)
	if err != nil {
		return errors.Wrapf(err, "new %s app failed", cmd.Name())
	}
	return errors.Wrap(app.Run(ctx), "run app failed")
}

func flagCheck(ctx context.Context) error {
	err := internal.ValidateFlags()
	if err != nil {
		return errors.Wrap(err, "validate flags failed")
	}
	log.SetLogger(internal.LogLevel)
	return nil
}

func chainedCheck(ctx context.Context, checks ...func(context.Context) error) error {
	for _, check := range checks {
		err := check(ctx)
		if err != nil {
			return err
		}
	}
	return nil
}

func init() {
	err := internal.RegisterCommandFlags(rootCmd, []*internal.Flag{
		&internal.LogLevelFlag,
	})
	if err != nil {
		logger.Fatalln(err)
	}

	err = internal.RegisterCommandFlags(clientCmd, []*internal.Flag{
		&internal.ClientTimeoutFlag,
		&internal.ClientDialTimeoutFlag,
		&internal.ClientStatsFlag,
	})
	if err != nil {
		logger.Fatalln(err)
	}

	err = internal.RegisterCommandFlags(serverCmd, []*internal.Flag{
		&internal.ServerIntervalFlag,
		&internal.ServerHandshakeTimeoutFlag,
		&internal.ServerWriteTimeoutFlag,
		&internal.ServerDefaultCountFlag,
		&internal.ServerMaxSessionsFlag,
		&internal.HealthPortFlag,
		&internal.MetricsPortFlag,
	})
	if err != nil {
		logger.Fatalln(err)
	}

	rootCmd.AddCommand(
		clientCmd,
		serverCmd,
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		logger.Fatal(errors.Wrap(err, "execute root command failed"))
	}
}
