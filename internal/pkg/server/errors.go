package server

import "github.com/pkg/errors"

// ErrAlreadyListening is returned when Listen is called twice.
var ErrAlreadyListening = errors.New("already listening")

// ErrNotListening is returned when Serve is called before Listen.
var ErrNotListening = errors.New("not listening")

// ErrAlreadyServing is returned when Serve is called twice.
var ErrAlreadyServing = errors.New("already serving")
