package session

import "github.com/pkg/errors"

// ErrSessionNotFound is returned when no session exists for the given id.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionAlreadyExists is returned when a session id is registered twice.
var ErrSessionAlreadyExists = errors.New("session already exists")

// ErrPositionOutOfRange is returned when a session is advanced past its sequence length.
var ErrPositionOutOfRange = errors.New("position out of range")
