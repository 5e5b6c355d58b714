package client

import (
	"time"

	"seqstream/internal/pkg/report"
	"seqstream/internal/pkg/wire"

	"github.com/sirupsen/logrus"
)

// window records which sequence numbers have arrived.
type window struct {
	length   uint16
	received []bool
	arrivals []report.Arrival
	count    int

	start        time.Time
	lastProgress time.Time
	bytes        int

	malformed  int
	duplicates int
	outOfRange int
}

func newWindow(length uint16, start time.Time) *window {
	return &window{
		length:       length,
		received:     make([]bool, int(length)+1),
		arrivals:     make([]report.Arrival, 0, length),
		start:        start,
		lastProgress: start,
	}
}

// accept records r and reports whether it was a new item.
func (w *window) accept(r wire.Result, now time.Time) bool {
	switch {
	case r.Err != nil:
		w.malformed++
		logger.WithError(r.Err).Debug("skipped malformed item")
		return false
	case r.Value == 0 || r.Value > uint64(w.length):
		w.outOfRange++
		logger.WithField("item", r.Value).Debug("skipped out of range item")
		return false
	case w.received[r.Value]:
		w.duplicates++
		logger.WithField("item", r.Value).Debug("skipped duplicate item")
		return false
	}
	w.received[r.Value] = true
	w.count++
	w.arrivals = append(w.arrivals, report.Arrival{Value: r.Value, Latency: now.Sub(w.start)})
	w.lastProgress = now
	return true
}

// acceptTail records the undelimited tail of a stream that did not close.
// A value that starts a longer item of the sequence may be truncated and is skipped.
func (w *window) acceptTail(r wire.Result, now time.Time) bool {
	if r.Err == nil && r.Value >= 1 && r.Value*10 <= uint64(w.length) {
		w.malformed++
		logger.WithField("item", r.Value).Debug("skipped ambiguous undelimited item")
		return false
	}
	return w.accept(r, now)
}

func (w *window) full() bool {
	return w.count == int(w.length)
}

// deadline is the moment the client gives up waiting for the next item.
func (w *window) deadline(timeout time.Duration) time.Time {
	return w.lastProgress.Add(timeout)
}

func (w *window) report() *report.Report {
	r := report.New(w.length, w.arrivals...)
	r.Bytes = w.bytes
	return r
}

func (w *window) fields() logrus.Fields {
	return logrus.Fields{
		"len":          w.length,
		"received":     w.count,
		"malformed":    w.malformed,
		"duplicates":   w.duplicates,
		"out_of_range": w.outOfRange,
	}
}
