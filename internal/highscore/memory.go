package highscore

import (
	"context"
	"sync"

	"review-rush-go/internal/game/modes"
)

// MemoryStore keeps high scores for the lifetime of the process.
type MemoryStore struct {
	mu     sync.Mutex
	scores map[modes.GameMode]int
	hub    *hub
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		scores: make(map[modes.GameMode]int),
		hub:    newHub(),
	}
}

func (s *MemoryStore) Observe(ctx context.Context, mode modes.GameMode) (<-chan int, func(), error) {
	return s.hub.observe(mode, func() (int, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.scores[mode], nil
	})
}

func (s *MemoryStore) SaveIfBetter(ctx context.Context, mode modes.GameMode, score int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if score <= s.scores[mode] {
		return false, nil
	}
	s.scores[mode] = score
	s.hub.publish(mode, score)
	return true, nil
}
