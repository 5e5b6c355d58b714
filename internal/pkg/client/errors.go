package client

import "github.com/pkg/errors"

// ErrNotConnected indicates that Run was called before Connect.
var ErrNotConnected = errors.New("not connected")

// ErrInvalidSequenceLength indicates a sequence length outside [1, 65535].
var ErrInvalidSequenceLength = errors.New("invalid sequence length")
