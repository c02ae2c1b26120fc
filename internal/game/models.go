package game

import (
	"time"

	"review-rush-go/internal/game/modes"
)

// EventType represents different types of session events
type EventType string

const (
	EventTypeStateChanged EventType = "state_changed"
	EventTypeGameOver     EventType = "game_over"
)

// HintType represents different types of hints
type HintType string

const (
	HintTypeGenre       HintType = "genre"
	HintTypeExtraReview HintType = "extra_review"
)

// Phase represents where a session is in its round lifecycle
type Phase string

const (
	PhaseLoading  Phase = "loading"
	PhaseReady    Phase = "ready"
	PhaseAnswered Phase = "answered"
	PhaseGameOver Phase = "game_over"
	PhaseError    Phase = "error"
)

// Review is a single player review shown as the round prompt
type Review struct {
	Text        string  `json:"text"`
	IsPositive  bool    `json:"is_positive"`
	HoursPlayed float64 `json:"hours_played"`
}

// Item is a game title that can be the answer or a decoy
type Item struct {
	ID       int64    `json:"id"`
	Title    string   `json:"title"`
	Genres   []string `json:"genres"`
	ImageRef string   `json:"image_ref"`
	Reviews  []Review `json:"reviews"`
}

// Hint represents a hint bought during a round
type Hint struct {
	Type    HintType `json:"type"`
	Content string   `json:"content,omitempty"`
	Review  *Review  `json:"review,omitempty"`
}

// RoundState is the per-round part of the observed state
type RoundState struct {
	CurrentItem *Item  `json:"current_item,omitempty"`
	Options     []Item `json:"options"`
	SelectedID  *int64 `json:"selected_id,omitempty"`
	IsCorrect   *bool  `json:"is_correct,omitempty"`
	InputLocked bool   `json:"input_locked"`
	ActiveHint  *Hint  `json:"active_hint,omitempty"`
}

// UiState is the externally observed snapshot of a session
type UiState struct {
	Phase               Phase          `json:"phase"`
	IsLoading           bool           `json:"is_loading"`
	Mode                modes.GameMode `json:"mode"`
	Score               int            `json:"score"`
	CorrectAnswersCount int            `json:"correct_answers_count"`
	CurrentLives        int            `json:"current_lives"`
	MaxLives            int            `json:"max_lives"`
	HighScore           int            `json:"high_score"`
	HintCost            int            `json:"hint_cost"`
	ErrorMessage        string         `json:"error_message,omitempty"`
	Retryable           bool           `json:"retryable"`
	// GameOver is set once the session has ended and its record has been
	// settled. It is never mutated after it is set.
	GameOver *GameOver `json:"game_over,omitempty"`
	RoundState
}

// GameOver is the terminal event of a session
type GameOver struct {
	FinalScore          int            `json:"final_score"`
	CorrectAnswersCount int            `json:"correct_answers_count"`
	IsNewRecord         bool           `json:"is_new_record"`
	Mode                modes.GameMode `json:"mode"`
	PreviousHighScore   int            `json:"previous_high_score"`
}

// GameEvent represents an event that occurred during a session
type GameEvent struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	State     *UiState  `json:"state,omitempty"`
	GameOver  *GameOver `json:"game_over,omitempty"`
}

// Settings tunes the round engine
type Settings struct {
	BatchSize     int
	LowWaterMark  int
	OptionCount   int
	FeedbackDelay time.Duration
	// SessionIdleTimeout is how long the service keeps a session nobody
	// touches or watches.
	SessionIdleTimeout time.Duration
	// Overrides for the per-mode defaults; zero keeps the mode default.
	PointsPerCorrect int
	HintCost         int
}

const (
	DefaultBatchSize     = 20
	DefaultLowWaterMark  = 5
	DefaultOptionCount   = 3
	DefaultFeedbackDelay = 1500 * time.Millisecond
	DefaultIdleTimeout   = 30 * time.Minute
)

// DefaultSettings returns the engine tuning used by the mobile game
func DefaultSettings() Settings {
	return Settings{
		BatchSize:          DefaultBatchSize,
		LowWaterMark:       DefaultLowWaterMark,
		OptionCount:        DefaultOptionCount,
		FeedbackDelay:      DefaultFeedbackDelay,
		SessionIdleTimeout: DefaultIdleTimeout,
	}
}

// withDefaults fills unset fields from DefaultSettings. A zero low-water
// mark is kept and turns prefetching off.
func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.BatchSize <= 0 {
		s.BatchSize = d.BatchSize
	}
	if s.LowWaterMark < 0 {
		s.LowWaterMark = d.LowWaterMark
	}
	if s.OptionCount < 2 {
		s.OptionCount = d.OptionCount
	}
	if s.FeedbackDelay <= 0 {
		s.FeedbackDelay = d.FeedbackDelay
	}
	if s.SessionIdleTimeout <= 0 {
		s.SessionIdleTimeout = d.SessionIdleTimeout
	}
	return s
}

const (
	msgNoMoreItems = "No more games available."
	msgLoadFailed  = "Failed to load games. Check your connection."
	msgMysteryHint = "Mystery Game"
)

func (s UiState) clone() UiState {
	out := s
	if s.Options != nil {
		out.Options = make([]Item, len(s.Options))
		copy(out.Options, s.Options)
	}
	return out
}
