package game

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"review-rush-go/internal/game/modes"
)

// MockCatalog is a mock implementation of Catalog
type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) FetchBatch(ctx context.Context, limit int, mode modes.GameMode, excluded []int64) ([]Item, error) {
	args := m.Called(ctx, limit, mode, excluded)
	items, _ := args.Get(0).([]Item)
	return items, args.Error(1)
}

// MockHighScoreStore is a mock implementation of HighScoreStore
type MockHighScoreStore struct {
	mock.Mock
}

func (m *MockHighScoreStore) Observe(ctx context.Context, mode modes.GameMode) (<-chan int, func(), error) {
	args := m.Called(ctx, mode)
	ch, _ := args.Get(0).(<-chan int)
	cancel, _ := args.Get(1).(func())
	return ch, cancel, args.Error(2)
}

func (m *MockHighScoreStore) SaveIfBetter(ctx context.Context, mode modes.GameMode, score int) (bool, error) {
	args := m.Called(ctx, mode, score)
	return args.Bool(0), args.Error(1)
}

// stored returns a subscription channel primed with value.
func stored(value int) <-chan int {
	ch := make(chan int, 1)
	ch <- value
	return ch
}

// fakeClock fires timers only when advanced
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now + d, fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// scriptedRNG replays values, each reduced modulo n
type scriptedRNG struct {
	values []int
	i      int
}

func (r *scriptedRNG) IntN(n int) int {
	if len(r.values) == 0 {
		return 0
	}
	v := r.values[r.i%len(r.values)]
	r.i++
	return v % n
}

func syncExec(f func()) { f() }

func testCtx() context.Context { return context.Background() }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeItems(from, n int) []Item {
	items := make([]Item, n)
	for i := range items {
		id := int64(from + i)
		items[i] = Item{
			ID:     id,
			Title:  fmt.Sprintf("Game %d", id),
			Genres: []string{"Action", "Indie"},
			Reviews: []Review{
				{Text: fmt.Sprintf("review of %d", id), IsPositive: true, HoursPlayed: 12},
			},
		}
	}
	return items
}

type testRig struct {
	engine  *GameEngine
	catalog *MockCatalog
	scores  *MockHighScoreStore
	clock   *fakeClock
}

func newTestRig(opts ...Option) *testRig {
	rig := &testRig{
		catalog: new(MockCatalog),
		scores:  new(MockHighScoreStore),
		clock:   &fakeClock{},
	}
	base := []Option{
		WithClock(rig.clock),
		WithExecutor(syncExec),
		WithLogger(quietLogger()),
	}
	rig.engine = NewGameEngine("test-session", rig.catalog, rig.scores, append(base, opts...)...)
	return rig
}

// wrongOption returns an option id that is not the current answer.
func wrongOption(s UiState) int64 {
	for _, o := range s.Options {
		if o.ID != s.CurrentItem.ID {
			return o.ID
		}
	}
	panic("no wrong option")
}

// answer submits and lets the feedback delay elapse.
func (r *testRig) answer(id int64) error {
	if err := r.engine.SubmitAnswer(id); err != nil {
		return err
	}
	r.clock.Advance(DefaultFeedbackDelay)
	return nil
}
