package wire

import (
	"bytes"
	"math"
	"strconv"

	"github.com/pkg/errors"
)

const (
	// Delimiter terminates every item and the handshake line.
	Delimiter = '\n'

	// MaxItemLen is the longest undelimited run the Decoder buffers before discarding it.
	// It comfortably holds any uint64 in decimal form plus a carriage return.
	MaxItemLen = 24

	// MaxSequenceLength is the largest sequence a client may request.
	MaxSequenceLength = math.MaxUint16
)

// AppendItem appends the framed item v to dst.
func AppendItem(dst []byte, v uint64) []byte {
	dst = strconv.AppendUint(dst, v, 10)
	return append(dst, Delimiter)
}

// EncodeRequest frames a handshake requesting a sequence of length n.
func EncodeRequest(n uint16) []byte {
	return AppendItem(nil, uint64(n))
}

// ParseRequest parses a handshake line, with or without its delimiter.
// An empty line returns ErrEmptyRequest so that the caller may fall back to a default length.
func ParseRequest(line []byte) (uint16, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return 0, ErrEmptyRequest
	}
	n, err := strconv.ParseUint(string(line), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrMalformedItem, "parse request %q", line)
	}
	if n == 0 || n > MaxSequenceLength {
		return 0, errors.Wrapf(ErrInvalidLength, "requested %d", n)
	}
	return uint16(n), nil
}

// Result is one decoded item. Exactly one of Value and Err is meaningful.
type Result struct {
	Value uint64
	Err   error
}

// Decoder splits a byte stream into items.
// It is not safe for concurrent use; each connection owns its own Decoder.
type Decoder struct {
	pending []byte
	// skipping is set after an overlong item until its delimiter arrives.
	skipping bool
}

// Decode consumes p and returns every item completed by it.
// Bytes after the last delimiter are kept for the next call.
func (d *Decoder) Decode(p []byte) []Result {
	var results []Result
	for len(p) > 0 {
		i := bytes.IndexByte(p, Delimiter)
		if d.skipping {
			if i < 0 {
				break
			}
			d.skipping = false
			p = p[i+1:]
			continue
		}
		if i < 0 {
			d.pending = append(d.pending, p...)
			if len(d.pending) > MaxItemLen {
				results = append(results, Result{Err: errors.Wrapf(ErrItemTooLong, "%d bytes pending", len(d.pending))})
				d.pending = d.pending[:0]
				d.skipping = true
			}
			break
		}
		var item []byte
		if len(d.pending) > 0 {
			item = append(d.pending, p[:i]...)
		} else {
			item = p[:i]
		}
		results = append(results, parseItem(item))
		d.pending = d.pending[:0]
		p = p[i+1:]
	}
	return results
}

// Pending reports how many undelimited bytes are buffered.
func (d *Decoder) Pending() int {
	return len(d.pending)
}

// Flush parses the undelimited tail at end of stream.
// It reports false when nothing is pending.
func (d *Decoder) Flush() (Result, bool) {
	if d.skipping || len(d.pending) == 0 {
		d.skipping = false
		return Result{}, false
	}
	r := parseItem(d.pending)
	d.pending = d.pending[:0]
	return r, true
}

// Reset drops any pending partial item.
func (d *Decoder) Reset() {
	d.pending = d.pending[:0]
	d.skipping = false
}

func parseItem(item []byte) Result {
	if len(item) > MaxItemLen {
		return Result{Err: errors.Wrapf(ErrItemTooLong, "%d bytes", len(item))}
	}
	item = bytes.TrimSpace(item)
	v, err := strconv.ParseUint(string(item), 10, 64)
	if err != nil {
		return Result{Err: errors.Wrapf(ErrMalformedItem, "%q", item)}
	}
	return Result{Value: v}
}
