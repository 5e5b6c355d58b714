// Package log add logging utilities.
package log

import (
	"os"
	"strings"
	"time"

	"seqstream/internal/pkg/session"

	"github.com/sirupsen/logrus"
)

// SetLogger sets the default logger's level and format.
// Logs go to stderr so that stdout only carries program output.
func SetLogger(level string) {
	logrus.SetOutput(os.Stderr)
	customFormatter := new(logrus.TextFormatter)
	customFormatter.TimestampFormat = time.RFC3339
	customFormatter.FullTimestamp = true
	logrus.SetFormatter(customFormatter)
	logrus.SetLevel(ParseLevel(level))
}

// ParseLevel maps a level name to a logrus level, defaulting to error.
func ParseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.ErrorLevel
	}
}

// ValidLevel reports whether level is a supported level name.
func ValidLevel(level string) bool {
	switch strings.ToLower(level) {
	case "trace", "debug", "info", "warn", "error":
		return true
	}
	return false
}

func SessionToFields(sess session.Session) logrus.Fields {
	return logrus.Fields{
		"session":  sess.ID.String(),
		"peer":     sess.Peer,
		"len":      sess.Length,
		"position": sess.Position,
	}
}
