package highscore

import (
	"sync"

	"review-rush-go/internal/game/modes"
)

type subscriber struct {
	ch     chan int
	seen   bool
	closed bool
}

// hub fans high score writes out to observers. Each observer channel holds
// only the latest value. Records only go up, so a publish below the best one
// seen is dropped.
type hub struct {
	mu   sync.Mutex
	subs map[modes.GameMode]map[*subscriber]struct{}
	best map[modes.GameMode]int
}

func newHub() *hub {
	return &hub{
		subs: make(map[modes.GameMode]map[*subscriber]struct{}),
		best: make(map[modes.GameMode]int),
	}
}

func (h *hub) subscribe(mode modes.GameMode) (*subscriber, func()) {
	s := &subscriber{ch: make(chan int, 1)}

	h.mu.Lock()
	if h.subs[mode] == nil {
		h.subs[mode] = make(map[*subscriber]struct{})
	}
	h.subs[mode][s] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return s, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[mode], s)
			s.closed = true
			close(s.ch)
		})
	}
}

// prime delivers the initial read unless a newer write already reached s.
func (h *hub) prime(s *subscriber, value int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.seen || s.closed {
		return
	}
	s.seen = true
	s.ch <- value
}

func (h *hub) publish(mode modes.GameMode, value int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if best, ok := h.best[mode]; ok && value <= best {
		return
	}
	h.best[mode] = value
	for s := range h.subs[mode] {
		select {
		case <-s.ch:
		default:
		}
		s.ch <- value
		s.seen = true
	}
}

func (h *hub) observe(mode modes.GameMode, read func() (int, error)) (<-chan int, func(), error) {
	s, cancel := h.subscribe(mode)
	value, err := read()
	if err != nil {
		cancel()
		return nil, nil, err
	}
	h.prime(s, value)
	return s.ch, cancel, nil
}
