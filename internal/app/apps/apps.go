// Package apps wires the seqstream packages into runnable applications.
package apps

import (
	"context"

	"github.com/sirupsen/logrus"
)

var logger logrus.FieldLogger = logrus.StandardLogger()

// App is a runnable seqstream application.
type App interface {
	Run(ctx context.Context) error
}
