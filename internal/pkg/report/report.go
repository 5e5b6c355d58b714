// Package report renders the client's summary of a sequence transfer.
package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Prefix starts every summary line.
const Prefix = "Received: "

// Arrival is one item as accepted by the receiver.
type Arrival struct {
	Value uint64
	// Latency is the time between sending the request and the item arriving.
	Latency time.Duration
}

// Report is the ascending, duplicate-free set of received sequence numbers.
type Report struct {
	Expected uint16
	Received []uint16
	// Latency holds the first arrival latency of every received value.
	Latency map[uint16]time.Duration
	// Bytes counts the payload bytes read from the stream, framing included.
	Bytes int
}

// New builds a Report for a sequence of length expected.
// Values outside [1, expected] are dropped and repeats keep their first arrival.
func New(expected uint16, arrivals ...Arrival) *Report {
	r := &Report{
		Expected: expected,
		Received: make([]uint16, 0, len(arrivals)),
		Latency:  make(map[uint16]time.Duration, len(arrivals)),
	}
	for _, a := range arrivals {
		if a.Value == 0 || a.Value > uint64(expected) {
			continue
		}
		v := uint16(a.Value)
		if _, ok := r.Latency[v]; ok {
			continue
		}
		r.Latency[v] = a.Latency
		r.Received = append(r.Received, v)
	}
	sort.Slice(r.Received, func(i, j int) bool { return r.Received[i] < r.Received[j] })
	return r
}

// Complete reports whether every item of the sequence was received.
func (r *Report) Complete() bool {
	return len(r.Received) == int(r.Expected)
}

// Missing returns the sequence numbers that never arrived, ascending.
func (r *Report) Missing() []uint16 {
	missing := make([]uint16, 0, int(r.Expected)-len(r.Received))
	next := 0
	for v := uint16(1); v != 0 && v <= r.Expected; v++ {
		if next < len(r.Received) && r.Received[next] == v {
			next++
			continue
		}
		missing = append(missing, v)
	}
	return missing
}

// Summary renders the single summary line without its terminator.
func (r *Report) Summary() string {
	var b strings.Builder
	b.WriteString(Prefix)
	for i, v := range r.Received {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.FormatUint(uint64(v), 10))
	}
	return b.String()
}

// WriteTo writes the summary line to w.
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, r.Summary()+"\n")
	return int64(n), errors.Wrap(err, "write summary failed")
}

// AverageLatency is the mean arrival latency over the received items.
func (r *Report) AverageLatency() time.Duration {
	if len(r.Received) == 0 {
		return 0
	}
	var total time.Duration
	for _, v := range r.Received {
		total += r.Latency[v]
	}
	return total / time.Duration(len(r.Received))
}

// Elapsed is the time between the request and the last arrival.
func (r *Report) Elapsed() time.Duration {
	var last time.Duration
	for _, l := range r.Latency {
		if l > last {
			last = l
		}
	}
	return last
}

// Throughput is the payload rate in kilobits per second, or zero if nothing was timed.
func (r *Report) Throughput() float64 {
	elapsed := r.Elapsed().Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(r.Bytes) * 8 / elapsed / 1000
}

// WriteStats writes the transfer statistics that follow the summary line.
func (r *Report) WriteStats(w io.Writer) error {
	if _, err := io.WriteString(w, "Round trip time for each message rounded to the nearest millisecond:\n"); err != nil {
		return errors.Wrap(err, "write latency header failed")
	}
	for _, v := range r.Received {
		ms := r.Latency[v].Round(time.Millisecond).Milliseconds()
		if _, err := fmt.Fprintf(w, "message %d: %d milli seconds\n", v, ms); err != nil {
			return errors.Wrap(err, "write item latency failed")
		}
	}
	if _, err := fmt.Fprintf(w, "\n%d out of %d messages received.\n", len(r.Received), r.Expected); err != nil {
		return errors.Wrap(err, "write received count failed")
	}
	if len(r.Received) == 0 {
		return nil
	}
	if _, err := fmt.Fprintf(w, "\nRunning average latency: %f milli seconds\n",
		float64(r.AverageLatency())/float64(time.Millisecond)); err != nil {
		return errors.Wrap(err, "write average latency failed")
	}
	if tp := r.Throughput(); tp > 0 {
		if _, err := fmt.Fprintf(w, "\nRunning throughput rate for all messages: %fkbps\n", tp); err != nil {
			return errors.Wrap(err, "write throughput failed")
		}
	}
	return nil
}
