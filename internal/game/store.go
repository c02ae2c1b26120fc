package game

import (
	"context"
	"math/rand/v2"
	"time"

	"review-rush-go/internal/game/modes"
)

// Catalog supplies batches of items for a mode
type Catalog interface {
	// FetchBatch returns up to limit items whose ids are not in excluded.
	// Network and decode failures are reported as *TransportError.
	FetchBatch(ctx context.Context, limit int, mode modes.GameMode, excluded []int64) ([]Item, error)
}

// HighScoreStore persists the best score per mode
type HighScoreStore interface {
	// Observe delivers the stored value immediately (0 when unset) and then
	// every later successful write. cancel releases the subscription.
	Observe(ctx context.Context, mode modes.GameMode) (updates <-chan int, cancel func(), err error)

	// SaveIfBetter persists score only when it beats the stored value and
	// reports whether it did.
	SaveIfBetter(ctx context.Context, mode modes.GameMode, score int) (bool, error)
}

// RNG is the randomness source for sampling, shuffling and hints
type RNG interface {
	IntN(n int) int
}

// Timer is a pending scheduled callback
type Timer interface {
	Stop() bool
}

// Clock schedules delayed callbacks
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type stdRNG struct{}

func (stdRNG) IntN(n int) int { return rand.IntN(n) }

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
