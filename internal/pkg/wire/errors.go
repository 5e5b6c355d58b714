package wire

import "github.com/pkg/errors"

// ErrMalformedItem indicates that a delimited item is not a decimal integer.
var ErrMalformedItem = errors.New("malformed item")

// ErrItemTooLong indicates that pending data grew past MaxItemLen without a delimiter.
var ErrItemTooLong = errors.New("item too long")

// ErrInvalidLength indicates that a requested sequence length is outside [1, MaxSequenceLength].
var ErrInvalidLength = errors.New("invalid sequence length")

// ErrEmptyRequest indicates that the handshake line carried no length.
var ErrEmptyRequest = errors.New("empty request")
