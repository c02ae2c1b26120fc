package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"review-rush-go/internal/game/modes"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidMode     = errors.New("invalid game mode")
)

// Service hosts concurrent play sessions, one GameEngine each.
type Service interface {
	StartSession(ctx context.Context, mode modes.GameMode) (string, UiState, error)
	Answer(ctx context.Context, sessionID string, itemID int64) (UiState, error)
	Hint(ctx context.Context, sessionID string) (Hint, UiState, error)
	Retry(ctx context.Context, sessionID string) (UiState, error)
	Restart(ctx context.Context, sessionID string) (UiState, error)
	State(ctx context.Context, sessionID string) (UiState, error)
	End(ctx context.Context, sessionID string) error
	Watch(ctx context.Context, sessionID string) (<-chan GameEvent, error)
	HighScore(ctx context.Context, mode modes.GameMode) (int, error)
	Close()
}

type session struct {
	id        string
	mode      modes.GameMode
	engine    *GameEngine
	createdAt time.Time

	mu       sync.Mutex
	idle     Timer
	gen      uint64
	watching int
	removed  bool
}

type gameService struct {
	catalog Catalog
	scores  HighScoreStore
	logger  *slog.Logger
	opts    []Option
	clock   Clock
	idleTTL time.Duration

	mu       sync.RWMutex
	sessions map[string]*session
	closed   bool
}

// NewService returns a Service whose engines are built with opts. Sessions
// that nobody touches or watches for Settings.SessionIdleTimeout are ended.
func NewService(catalog Catalog, scores HighScoreStore, logger *slog.Logger, opts ...Option) Service {
	if logger == nil {
		logger = slog.Default()
	}

	// Options only set fields, so a bare engine shows which clock and
	// settings the session engines will run with.
	base := &GameEngine{clock: realClock{}, settings: DefaultSettings()}
	for _, opt := range opts {
		opt(base)
	}

	return &gameService{
		catalog:  catalog,
		scores:   scores,
		logger:   logger,
		opts:     opts,
		clock:    base.clock,
		idleTTL:  base.settings.withDefaults().SessionIdleTimeout,
		sessions: make(map[string]*session),
	}
}

func (s *gameService) StartSession(ctx context.Context, mode modes.GameMode) (string, UiState, error) {
	if _, err := modes.Parse(string(mode)); err != nil {
		return "", UiState{}, fmt.Errorf("%w: %v", ErrInvalidMode, err)
	}

	id := uuid.New().String()
	opts := append([]Option{WithLogger(s.logger)}, s.opts...)
	engine := NewGameEngine(id, s.catalog, s.scores, opts...)

	// The high score subscription outlives the request that started it.
	if err := engine.Start(context.WithoutCancel(ctx), mode); err != nil {
		engine.Close()
		return "", UiState{}, fmt.Errorf("failed to start session: %w", err)
	}

	sess := &session{
		id:        id,
		mode:      mode,
		engine:    engine,
		createdAt: time.Now(),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		engine.Close()
		return "", UiState{}, ErrEngineClosed
	}
	s.sessions[id] = sess
	s.mu.Unlock()

	s.touch(sess)
	go s.pump(sess)

	return id, engine.State(), nil
}

func (s *gameService) Answer(ctx context.Context, sessionID string, itemID int64) (UiState, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return UiState{}, err
	}
	if err := sess.engine.SubmitAnswer(itemID); err != nil {
		return UiState{}, err
	}
	return sess.engine.State(), nil
}

func (s *gameService) Hint(ctx context.Context, sessionID string) (Hint, UiState, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return Hint{}, UiState{}, err
	}
	hint, err := sess.engine.RequestHint()
	if err != nil {
		return Hint{}, UiState{}, err
	}
	return hint, sess.engine.State(), nil
}

func (s *gameService) Retry(ctx context.Context, sessionID string) (UiState, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return UiState{}, err
	}
	if err := sess.engine.RetryLoad(); err != nil {
		return UiState{}, err
	}
	return sess.engine.State(), nil
}

// Restart plays the session's mode again from a fresh pool.
func (s *gameService) Restart(ctx context.Context, sessionID string) (UiState, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return UiState{}, err
	}
	if err := sess.engine.Start(context.WithoutCancel(ctx), sess.mode); err != nil {
		return UiState{}, fmt.Errorf("failed to restart session: %w", err)
	}
	return sess.engine.State(), nil
}

func (s *gameService) State(ctx context.Context, sessionID string) (UiState, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return UiState{}, err
	}
	return sess.engine.State(), nil
}

func (s *gameService) End(ctx context.Context, sessionID string) error {
	if !s.remove(sessionID, "ended") {
		return ErrSessionNotFound
	}
	return nil
}

// Watch streams state changes and the game over event of a session until
// ctx is done or the session ends. A session that is already over replays
// its result right after the first state.
func (s *gameService) Watch(ctx context.Context, sessionID string) (<-chan GameEvent, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}

	states, unsubscribe := sess.engine.Subscribe()
	s.setWatching(sess, 1)
	out := make(chan GameEvent, 4)

	send := func(event GameEvent) bool {
		event.SessionID = sessionID
		event.Timestamp = time.Now()
		select {
		case out <- event:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(out)
		defer s.setWatching(sess, -1)
		defer unsubscribe()

		var reported *GameOver
		for {
			var state UiState
			var ok bool
			select {
			case <-ctx.Done():
				return
			case state, ok = <-states:
				if !ok {
					return
				}
			}

			if !send(GameEvent{Type: EventTypeStateChanged, State: &state}) {
				return
			}
			if state.GameOver != nil && state.GameOver != reported {
				reported = state.GameOver
				over := *state.GameOver
				if !send(GameEvent{Type: EventTypeGameOver, GameOver: &over}) {
					return
				}
			}
		}
	}()

	return out, nil
}

func (s *gameService) HighScore(ctx context.Context, mode modes.GameMode) (int, error) {
	if _, err := modes.Parse(string(mode)); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidMode, err)
	}

	updates, cancel, err := s.scores.Observe(ctx, mode)
	if err != nil {
		return 0, fmt.Errorf("failed to read high score: %w", err)
	}
	defer cancel()

	select {
	case v, ok := <-updates:
		if !ok {
			return 0, nil
		}
		return v, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Close ends every session.
func (s *gameService) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*session)
	s.closed = true
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.stopIdle()
		sess.engine.Close()
	}
}

func (s *gameService) get(id string) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch(sess)
	return sess, nil
}

func (s *gameService) remove(id, reason string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return false
	}
	sess.stopIdle()
	sess.engine.Close()
	s.logger.Info("session "+reason, "session_id", id, "mode", sess.mode, "age", time.Since(sess.createdAt))
	return true
}

// touch restarts the idle countdown of sess.
func (s *gameService) touch(sess *session) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.removed {
		return
	}
	if sess.idle != nil {
		sess.idle.Stop()
	}
	sess.gen++
	gen := sess.gen
	sess.idle = s.clock.AfterFunc(s.idleTTL, func() { s.expire(sess, gen) })
}

func (s *gameService) expire(sess *session, gen uint64) {
	sess.mu.Lock()
	if gen != sess.gen {
		sess.mu.Unlock()
		return
	}
	watched := sess.watching > 0
	sess.mu.Unlock()

	if watched {
		s.touch(sess)
		return
	}
	s.remove(sess.id, "expired")
}

func (s *gameService) setWatching(sess *session, delta int) {
	sess.mu.Lock()
	sess.watching += delta
	sess.mu.Unlock()
	if delta < 0 {
		s.touch(sess)
	}
}

// pump drains the engine's GameOver events until the engine closes. A
// finished session gets a fresh idle window for its result to be read.
func (s *gameService) pump(sess *session) {
	for over := range sess.engine.Events() {
		s.logger.Debug("session finished", "session_id", sess.id, "mode", over.Mode, "new_record", over.IsNewRecord)
		s.touch(sess)
	}
}

func (sess *session) stopIdle() {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.removed = true
	sess.gen++
	if sess.idle != nil {
		sess.idle.Stop()
		sess.idle = nil
	}
}
