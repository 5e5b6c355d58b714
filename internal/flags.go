// Package internal holds the command line flags shared by the seqstream commands.
package internal

import (
	"time"

	"seqstream/internal/pkg/log"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Flag describes a command line flag bound to a package variable.
type Flag struct {
	Name  string
	Usage string
	bind  func(fs *pflag.FlagSet, name, usage string)
}

// Flag values, populated when the command line is parsed.
// The initial values are the flag defaults, so flags a command does not register stay valid.
var (
	LogLevel = "error"

	InactivityTimeout = 5 * time.Second
	DialTimeout       = 5 * time.Second
	PrintStats        bool

	ServerInterval   time.Duration
	HandshakeTimeout = 5 * time.Second
	WriteTimeout     = 5 * time.Second
	DefaultCount     uint16
	MaxSessions      = 1
	HealthPort       uint16
	MetricsPort      uint16
)

// Global flags.
var (
	LogLevelFlag = Flag{
		Name:  "log-level",
		Usage: "log level: trace, debug, info, warn or error",
		bind:  stringVar(&LogLevel),
	}
)

// Client flags.
var (
	ClientTimeoutFlag = Flag{
		Name:  "timeout",
		Usage: "give up on missing items after this long without a new one",
		bind:  durationVar(&InactivityTimeout),
	}
	ClientDialTimeoutFlag = Flag{
		Name:  "dial-timeout",
		Usage: "connection timeout",
		bind:  durationVar(&DialTimeout),
	}
	ClientStatsFlag = Flag{
		Name:  "stats",
		Usage: "print latency and throughput after the summary line",
		bind:  boolVar(&PrintStats),
	}
)

// Server flags.
var (
	ServerIntervalFlag = Flag{
		Name:  "interval",
		Usage: "pause between consecutive items",
		bind:  durationVar(&ServerInterval),
	}
	ServerHandshakeTimeoutFlag = Flag{
		Name:  "handshake-timeout",
		Usage: "how long to wait for a client request",
		bind:  durationVar(&HandshakeTimeout),
	}
	ServerWriteTimeoutFlag = Flag{
		Name:  "write-timeout",
		Usage: "deadline for writing one item to a client",
		bind:  durationVar(&WriteTimeout),
	}
	ServerDefaultCountFlag = Flag{
		Name:  "default-count",
		Usage: "sequence length for clients that send an empty request or none at all, 0 to require a request",
		bind:  uint16Var(&DefaultCount),
	}
	ServerMaxSessionsFlag = Flag{
		Name:  "max-sessions",
		Usage: "sessions served at once, 1 serves them one after another",
		bind:  intVar(&MaxSessions),
	}
	HealthPortFlag = Flag{
		Name:  "health-port",
		Usage: "port for the gRPC health service, 0 to disable",
		bind:  uint16Var(&HealthPort),
	}
	MetricsPortFlag = Flag{
		Name:  "metrics-port",
		Usage: "port for prometheus metrics, 0 to disable",
		bind:  uint16Var(&MetricsPort),
	}
)

func stringVar(p *string) func(*pflag.FlagSet, string, string) {
	return func(fs *pflag.FlagSet, name, usage string) { fs.StringVar(p, name, *p, usage) }
}

func durationVar(p *time.Duration) func(*pflag.FlagSet, string, string) {
	return func(fs *pflag.FlagSet, name, usage string) { fs.DurationVar(p, name, *p, usage) }
}

func boolVar(p *bool) func(*pflag.FlagSet, string, string) {
	return func(fs *pflag.FlagSet, name, usage string) { fs.BoolVar(p, name, *p, usage) }
}

func intVar(p *int) func(*pflag.FlagSet, string, string) {
	return func(fs *pflag.FlagSet, name, usage string) { fs.IntVar(p, name, *p, usage) }
}

func uint16Var(p *uint16) func(*pflag.FlagSet, string, string) {
	return func(fs *pflag.FlagSet, name, usage string) { fs.Uint16Var(p, name, *p, usage) }
}

// RegisterCommandFlags registers flags as persistent flags of cmd.
func RegisterCommandFlags(cmd *cobra.Command, flags []*Flag) error {
	fs := cmd.PersistentFlags()
	for _, f := range flags {
		if f.bind == nil {
			return errors.Errorf("flag %q has no binding", f.Name)
		}
		if fs.Lookup(f.Name) != nil {
			return errors.Errorf("flag %q registered twice on %s", f.Name, cmd.Name())
		}
		f.bind(fs, f.Name, f.Usage)
	}
	return nil
}

// ValidateFlags checks the parsed flag values.
func ValidateFlags() error {
	if !log.ValidLevel(LogLevel) {
		return errors.Errorf("unknown log level %q", LogLevel)
	}
	if InactivityTimeout <= 0 || DialTimeout <= 0 || HandshakeTimeout <= 0 || WriteTimeout <= 0 {
		return errors.New("timeouts must be positive")
	}
	if ServerInterval < 0 {
		return errors.New("interval must not be negative")
	}
	if MaxSessions < 0 {
		return errors.New("max sessions must not be negative")
	}
	return nil
}
