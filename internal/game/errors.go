package game

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCatalog            = errors.New("catalog returned no usable items")
	ErrInsufficientDistractors = errors.New("not enough distractors in pool")
	ErrInputLocked             = errors.New("answer already submitted for this round")
	ErrNoActiveRound           = errors.New("no active round")
	ErrHintNotAllowed          = errors.New("hints are not available in this mode")
	ErrInsufficientScore       = errors.New("not enough score to buy a hint")
	ErrHintAlreadyUsed         = errors.New("hint already used this round")
	ErrNotRetryable            = errors.New("session is not in a retryable state")
	ErrEngineClosed            = errors.New("engine is closed")
)

// TransportError wraps a network or decode failure from the catalog.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is or wraps a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
