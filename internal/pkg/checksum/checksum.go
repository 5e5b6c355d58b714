// Package checksum verifies a received sequence against the full sequence 1..N.
package checksum

import (
	"math"

	"github.com/pkg/errors"
)

// ErrSequenceTooLong is returned when the sequence contains too many values.
var ErrSequenceTooLong = errors.New("sequence too long")

// ErrValueOutOfRange is returned when a value does not belong to the sequence 1..N.
var ErrValueOutOfRange = errors.New("value out of range")

// Sum adds up all the values in the sequence and returns the result.
// The maximum number of values in the sequence is 2^16-1 (0xffff) and each value is
// at most 2^16-1, so the largest sum is below 2^32 and a 64-bit integer never overflows.
func Sum(sequence ...uint16) (uint64, error) {
	if len(sequence) > math.MaxUint16 {
		return 0, ErrSequenceTooLong
	}
	var sum uint64
	for _, elem := range sequence {
		sum += uint64(elem)
	}
	return sum, nil
}

// Expected returns the sum of the complete sequence 1..n.
func Expected(n uint16) uint64 {
	return uint64(n) * (uint64(n) + 1) / 2
}

// Complete reports whether the received values form the whole sequence 1..n.
// The values must be distinct; a value outside [1, n] is an error.
func Complete(n uint16, received ...uint16) (bool, error) {
	for _, v := range received {
		if v == 0 || v > n {
			return false, errors.Wrapf(ErrValueOutOfRange, "%d not in [1, %d]", v, n)
		}
	}
	if len(received) != int(n) {
		return false, nil
	}
	sum, err := Sum(received...)
	if err != nil {
		return false, errors.Wrap(err, "sum received values failed")
	}
	return sum == Expected(n), nil
}
