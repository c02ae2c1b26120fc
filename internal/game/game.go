package game

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/exp/maps"

	"review-rush-go/internal/game/modes"
)

// errStale marks a completion that belongs to a torn down session or an
// already resolved round. It never leaves the engine.
var errStale = errors.New("stale completion")

// GameEngine owns one play session: its pool, round state, lives and score.
// Every mutation happens under mu; fetches and the feedback delay run outside
// the lock and re-enter through do with a session or round token.
type GameEngine struct {
	mu sync.Mutex

	ID       string
	catalog  Catalog
	scores   HighScoreStore
	rng      RNG
	clock    Clock
	spawn    func(func())
	logger   *slog.Logger
	settings Settings

	ctx    context.Context
	cancel context.CancelFunc

	rules modes.GameSettings
	state UiState

	available   []Item
	distractors []Item
	played      map[int64]struct{}
	highScore   int

	session    uint64
	round      uint64
	timer      Timer
	fetching   bool
	foreground bool
	closed     bool
	stopScores func()

	tasks  []func()
	subs   []chan UiState
	events chan GameOver
}

// Option configures a GameEngine
type Option func(*GameEngine)

func WithRNG(rng RNG) Option { return func(g *GameEngine) { g.rng = rng } }

func WithClock(c Clock) Option { return func(g *GameEngine) { g.clock = c } }

func WithLogger(l *slog.Logger) Option { return func(g *GameEngine) { g.logger = l } }

func WithSettings(s Settings) Option { return func(g *GameEngine) { g.settings = s } }

// WithExecutor replaces the goroutine used for catalog fetches.
func WithExecutor(spawn func(func())) Option { return func(g *GameEngine) { g.spawn = spawn } }

func NewGameEngine(id string, catalog Catalog, scores HighScoreStore, opts ...Option) *GameEngine {
	ctx, cancel := context.WithCancel(context.Background())
	g := &GameEngine{
		ID:       id,
		catalog:  catalog,
		scores:   scores,
		rng:      stdRNG{},
		clock:    realClock{},
		spawn:    func(f func()) { go f() },
		logger:   slog.Default(),
		settings: DefaultSettings(),
		ctx:      ctx,
		cancel:   cancel,
		played:   make(map[int64]struct{}),
		events:   make(chan GameOver, 8),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.settings = g.settings.withDefaults()
	g.logger = g.logger.With("session_id", id)
	return g
}

// Start resets the session for mode and begins loading the first batch.
func (g *GameEngine) Start(ctx context.Context, mode modes.GameMode) error {
	rules := g.rulesFor(mode)
	if err := modes.ValidateSettings(rules); err != nil {
		return err
	}

	high, updates, cancel, err := g.readHighScore(ctx, mode)
	if err != nil {
		return err
	}

	var session uint64
	err = g.do(func() error {
		if g.closed {
			return ErrEngineClosed
		}
		if g.stopScores != nil {
			g.stopScores()
		}
		g.stopScores = cancel
		g.stopTimer()

		g.session++
		g.round++
		session = g.session
		g.rules = rules
		g.available = nil
		g.distractors = nil
		g.played = make(map[int64]struct{})
		g.highScore = high
		g.fetching = false
		g.foreground = false
		g.state = UiState{
			Mode:         mode,
			CurrentLives: rules.Lives,
			MaxLives:     rules.Lives,
			HighScore:    high,
			HintCost:     rules.HintCost,
		}
		g.enterLoading()
		g.requestLoad(true)
		return nil
	})
	if err != nil {
		if cancel != nil {
			cancel()
		}
		return err
	}

	g.logger.Info("session started", "mode", mode, "lives", rules.Lives, "high_score", high)
	if updates != nil {
		go g.watchHighScore(session, updates)
	}
	return nil
}

// SubmitAnswer locks input and schedules resolution after the feedback delay.
func (g *GameEngine) SubmitAnswer(id int64) error {
	return g.do(func() error {
		if g.closed {
			return ErrEngineClosed
		}
		if g.state.InputLocked {
			return ErrInputLocked
		}
		if g.state.Phase != PhaseReady || g.state.CurrentItem == nil {
			return ErrNoActiveRound
		}

		correct := id == g.state.CurrentItem.ID
		g.state.SelectedID = &id
		g.state.IsCorrect = &correct
		g.state.InputLocked = true
		g.state.Phase = PhaseAnswered

		round := g.round
		g.timer = g.clock.AfterFunc(g.settings.FeedbackDelay, func() { g.resolve(round) })
		return nil
	})
}

// RequestHint buys a hint for the current round.
func (g *GameEngine) RequestHint() (Hint, error) {
	var hint Hint
	err := g.do(func() error {
		if g.closed {
			return ErrEngineClosed
		}
		if !g.rules.HintsAllowed {
			return ErrHintNotAllowed
		}
		if g.state.InputLocked {
			return ErrInputLocked
		}
		if g.state.Phase != PhaseReady || g.state.CurrentItem == nil {
			return ErrNoActiveRound
		}
		if g.state.ActiveHint != nil {
			return ErrHintAlreadyUsed
		}
		if g.state.Score < g.rules.HintCost {
			return ErrInsufficientScore
		}

		hint = g.pickHint(*g.state.CurrentItem)
		g.state.Score -= g.rules.HintCost
		g.state.ActiveHint = &hint
		return nil
	})
	return hint, err
}

// RetryLoad leaves the error state and fetches again.
func (g *GameEngine) RetryLoad() error {
	return g.do(func() error {
		if g.closed {
			return ErrEngineClosed
		}
		if g.state.Phase != PhaseError {
			return ErrNotRetryable
		}
		g.enterLoading()
		g.requestLoad(true)
		return nil
	})
}

// State returns a snapshot of the current session.
func (g *GameEngine) State() UiState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.clone()
}

// Subscribe streams state snapshots, starting with the current one. Slow
// readers only see the latest snapshot.
func (g *GameEngine) Subscribe() (<-chan UiState, func()) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ch := make(chan UiState, 1)
	if g.closed {
		close(ch)
		return ch, func() {}
	}
	ch <- g.state.clone()
	g.subs = append(g.subs, ch)

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			for i, s := range g.subs {
				if s == ch {
					g.subs = append(g.subs[:i], g.subs[i+1:]...)
					close(ch)
					return
				}
			}
		})
	}
}

// Events delivers GameOver events. It is closed by Close.
func (g *GameEngine) Events() <-chan GameOver {
	return g.events
}

// Close tears the session down. Pending fetches and timers are discarded.
func (g *GameEngine) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.closed = true
	g.stopTimer()
	g.cancel()
	if g.stopScores != nil {
		g.stopScores()
		g.stopScores = nil
	}
	for _, ch := range g.subs {
		close(ch)
	}
	g.subs = nil
	close(g.events)
	g.logger.Debug("session closed")
}

func (g *GameEngine) do(fn func() error) error {
	g.mu.Lock()
	err := fn()
	if err == nil && !g.closed {
		g.publish()
	}
	tasks := g.tasks
	g.tasks = nil
	g.mu.Unlock()

	for _, t := range tasks {
		g.spawn(t)
	}
	return err
}

func (g *GameEngine) rulesFor(mode modes.GameMode) modes.GameSettings {
	rules := modes.DefaultSettings(mode)
	if g.settings.PointsPerCorrect > 0 && mode != modes.ModeFree {
		rules.PointsPerCorrect = g.settings.PointsPerCorrect
	}
	if g.settings.HintCost > 0 {
		rules.HintCost = g.settings.HintCost
	}
	return rules
}

func (g *GameEngine) readHighScore(ctx context.Context, mode modes.GameMode) (int, <-chan int, func(), error) {
	updates, cancel, err := g.scores.Observe(g.ctx, mode)
	if err != nil {
		g.logger.Warn("high score unavailable, assuming 0", "mode", mode, "error", err)
		return 0, nil, nil, nil
	}

	select {
	case v, ok := <-updates:
		if !ok {
			return 0, nil, cancel, nil
		}
		return v, updates, cancel, nil
	case <-ctx.Done():
		cancel()
		return 0, nil, nil, ctx.Err()
	}
}

func (g *GameEngine) watchHighScore(session uint64, updates <-chan int) {
	for v := range updates {
		_ = g.do(func() error {
			if g.closed || session != g.session {
				return errStale
			}
			g.highScore = v
			g.state.HighScore = v
			return nil
		})
	}
}

// requestLoad must be called with mu held. A foreground request upgrades an
// in-flight prefetch instead of issuing a second fetch.
func (g *GameEngine) requestLoad(foreground bool) {
	if foreground {
		g.foreground = true
	}
	if g.fetching {
		return
	}
	g.fetching = true

	session := g.session
	mode := g.rules.Mode
	limit := g.settings.BatchSize
	excluded := maps.Keys(g.played)
	g.tasks = append(g.tasks, func() { g.fetch(session, mode, limit, excluded) })
}

func (g *GameEngine) fetch(session uint64, mode modes.GameMode, limit int, excluded []int64) {
	items, err := g.catalog.FetchBatch(g.ctx, limit, mode, excluded)
	_ = g.do(func() error {
		if g.closed || session != g.session {
			return errStale
		}
		g.applyBatch(items, err)
		return nil
	})
}

func (g *GameEngine) applyBatch(items []Item, err error) {
	foreground := g.foreground
	g.fetching = false
	g.foreground = false

	if err != nil {
		if !foreground {
			g.logger.Warn("prefetch failed", "error", err)
			return
		}
		g.logger.Error("failed to load batch", "error", err, "transport", IsTransport(err))
		g.fail(msgLoadFailed)
		return
	}

	fresh := make([]Item, 0, len(items))
	for _, it := range items {
		if _, seen := g.played[it.ID]; seen {
			continue
		}
		g.played[it.ID] = struct{}{}
		fresh = append(fresh, it)
	}

	if len(fresh) == 0 {
		if !foreground {
			g.logger.Info("catalog exhausted during prefetch")
			return
		}
		g.logger.Warn("catalog exhausted", "error", ErrEmptyCatalog)
		g.fail(msgNoMoreItems)
		return
	}

	g.available = append(g.available, fresh...)
	g.distractors = append(g.distractors, fresh...)
	g.logger.Debug("batch loaded", "items", len(fresh), "available", len(g.available))

	if g.state.Phase == PhaseLoading {
		g.startRound()
	}
}

func (g *GameEngine) startRound() {
	if len(g.available) == 0 {
		g.enterLoading()
		g.requestLoad(true)
		return
	}
	if len(g.available) < g.settings.LowWaterMark {
		g.requestLoad(false)
	}

	correct := g.available[0]
	distractors, err := SelectDistractors(g.rng, g.distractors, correct.ID, g.settings.OptionCount-1)
	if err != nil {
		g.logger.Debug("replenishing pool", "error", err)
		g.enterLoading()
		g.requestLoad(true)
		return
	}
	g.available = g.available[1:]

	g.round++
	g.state.Phase = PhaseReady
	g.state.IsLoading = false
	g.state.ErrorMessage = ""
	g.state.Retryable = false
	g.state.RoundState = RoundState{
		CurrentItem: &correct,
		Options:     ShuffleOptions(g.rng, correct, distractors),
	}
}

func (g *GameEngine) resolve(round uint64) {
	var over *GameOver
	var session uint64

	_ = g.do(func() error {
		if g.closed || round != g.round || g.state.Phase != PhaseAnswered {
			return errStale
		}
		g.timer = nil

		correct := g.state.IsCorrect != nil && *g.state.IsCorrect
		switch {
		case correct:
			g.state.Score += modes.CalculateScore(g.rules)
			g.state.CorrectAnswersCount++
			g.startRound()
		case modes.HasUnlimitedLives(g.rules):
			g.startRound()
		default:
			g.state.CurrentLives--
			if g.state.CurrentLives > 0 {
				g.startRound()
				return nil
			}
			g.state.Phase = PhaseGameOver
			g.state.IsLoading = false
			session = g.session
			over = &GameOver{
				FinalScore:          g.state.Score,
				CorrectAnswersCount: g.state.CorrectAnswersCount,
				Mode:                g.rules.Mode,
				PreviousHighScore:   g.highScore,
			}
		}
		return nil
	})

	if over != nil {
		g.finish(session, over)
	}
}

// finish persists a beaten record before the GameOver event goes out, so the
// event never claims a record the store does not hold.
func (g *GameEngine) finish(session uint64, over *GameOver) {
	if over.FinalScore > over.PreviousHighScore {
		saved, err := g.scores.SaveIfBetter(g.ctx, over.Mode, over.FinalScore)
		if err != nil {
			g.logger.Error("failed to save high score", "mode", over.Mode, "score", over.FinalScore, "error", err)
		}
		over.IsNewRecord = saved
	}

	_ = g.do(func() error {
		if g.closed || session != g.session {
			return errStale
		}
		if over.IsNewRecord {
			g.highScore = over.FinalScore
			g.state.HighScore = over.FinalScore
		}
		result := *over
		g.state.GameOver = &result
		g.release()
		g.logger.Info("game over",
			"mode", over.Mode,
			"score", over.FinalScore,
			"correct", over.CorrectAnswersCount,
			"new_record", over.IsNewRecord,
		)
		select {
		case g.events <- *over:
		default:
			g.logger.Warn("dropping game over event, no reader")
		}
		return nil
	})
}

// release drops the pool and the high score subscription of an ended
// session. The final state stays readable.
func (g *GameEngine) release() {
	if g.stopScores != nil {
		g.stopScores()
		g.stopScores = nil
	}
	g.available = nil
	g.distractors = nil
	g.played = make(map[int64]struct{})
}

func (g *GameEngine) pickHint(item Item) Hint {
	showGenre := g.rng.IntN(2) == 0
	hasGenres := len(item.Genres) > 0
	hasReviews := len(item.Reviews) > 0

	switch {
	case hasGenres && (showGenre || !hasReviews):
		return Hint{Type: HintTypeGenre, Content: strings.Join(item.Genres, ", ")}
	case hasReviews:
		review := item.Reviews[g.rng.IntN(len(item.Reviews))]
		return Hint{Type: HintTypeExtraReview, Content: review.Text, Review: &review}
	default:
		return Hint{Type: HintTypeGenre, Content: msgMysteryHint}
	}
}

func (g *GameEngine) enterLoading() {
	g.state.Phase = PhaseLoading
	g.state.IsLoading = true
	g.state.ErrorMessage = ""
	g.state.Retryable = false
	g.state.RoundState = RoundState{Options: []Item{}}
}

func (g *GameEngine) fail(msg string) {
	g.state.Phase = PhaseError
	g.state.IsLoading = false
	g.state.ErrorMessage = msg
	g.state.Retryable = true
}

func (g *GameEngine) stopTimer() {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

func (g *GameEngine) publish() {
	if len(g.subs) == 0 {
		return
	}
	snap := g.state.clone()
	for _, ch := range g.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
