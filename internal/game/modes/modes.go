package modes

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// GameMode represents different game modes
type GameMode string

const (
	ModeHardcore    GameMode = "HARDCORE"     // One life, full points
	ModeFree        GameMode = "FREE"         // Unlimited lives, no points
	ModeGenre       GameMode = "GENRE"        // Single life
	ModeSurvival    GameMode = "SURVIVAL"     // Three lives, hints enabled
	ModeBadReviews  GameMode = "BAD_REVIEWS"  // Only negative reviews shown
	ModeGoodReviews GameMode = "GOOD_REVIEWS" // Only positive reviews shown
)

// UnlimitedLives marks a mode where wrong answers never end the game.
const UnlimitedLives = -1

const (
	DefaultPointsPerCorrect = 125
	DefaultHintCost         = 50
)

// Catalog endpoints, relative to the catalog base URL.
const (
	EndpointNextBatch        = "next-batch"
	EndpointBadReviewsBatch  = "bad-reviews-batch"
	EndpointGoodReviewsBatch = "good-reviews-batch"
)

// Polarity restricts which reviews an item may carry in a mode.
type Polarity int

const (
	PolarityAny Polarity = iota
	PolarityPositive
	PolarityNegative
)

// Matches reports whether a review with the given sentiment passes the filter.
func (p Polarity) Matches(positive bool) bool {
	switch p {
	case PolarityPositive:
		return positive
	case PolarityNegative:
		return !positive
	default:
		return true
	}
}

// GameSettings represents the rules applied to a session of a mode
type GameSettings struct {
	Mode             GameMode `json:"mode"`
	Lives            int      `json:"lives"`
	PointsPerCorrect int      `json:"points_per_correct"`
	HintsAllowed     bool     `json:"hints_allowed"`
	HintCost         int      `json:"hint_cost"`
	Endpoint         string   `json:"endpoint"`
	ReviewPolarity   Polarity `json:"review_polarity"`
}

var all = []GameMode{
	ModeHardcore,
	ModeFree,
	ModeGenre,
	ModeSurvival,
	ModeBadReviews,
	ModeGoodReviews,
}

// All returns every playable mode in menu order.
func All() []GameMode {
	out := make([]GameMode, len(all))
	copy(out, all)
	return out
}

// Parse accepts the canonical name as well as lower-case and dashed spellings.
func Parse(s string) (GameMode, error) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	for _, m := range all {
		if string(m) == norm {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown game mode %q", s)
}

// DisplayName returns a human friendly label, e.g. "Bad Reviews".
func (m GameMode) DisplayName() string {
	words := strings.ReplaceAll(strings.ToLower(string(m)), "_", " ")
	return cases.Title(language.English).String(words)
}

// DefaultSettings returns default settings for each game mode
func DefaultSettings(mode GameMode) GameSettings {
	base := GameSettings{
		Mode:             mode,
		Lives:            1,
		PointsPerCorrect: DefaultPointsPerCorrect,
		HintCost:         DefaultHintCost,
		Endpoint:         EndpointNextBatch,
		ReviewPolarity:   PolarityAny,
	}

	switch mode {
	case ModeHardcore:
		base.Lives = 1

	case ModeFree:
		base.Lives = UnlimitedLives
		base.PointsPerCorrect = 0

	case ModeSurvival:
		base.Lives = 3
		base.HintsAllowed = true

	case ModeBadReviews:
		base.Lives = 3
		base.Endpoint = EndpointBadReviewsBatch
		base.ReviewPolarity = PolarityNegative

	case ModeGoodReviews:
		base.Lives = 3
		base.Endpoint = EndpointGoodReviewsBatch
		base.ReviewPolarity = PolarityPositive
	}

	return base
}

// ValidateSettings validates game settings
func ValidateSettings(settings GameSettings) error {
	if _, err := Parse(string(settings.Mode)); err != nil {
		return err
	}

	switch settings.Mode {
	case ModeFree:
		if settings.Lives != UnlimitedLives {
			return fmt.Errorf("free mode must have unlimited lives")
		}
		if settings.PointsPerCorrect != 0 {
			return fmt.Errorf("free mode does not award points")
		}

	default:
		if settings.Lives < 1 {
			return fmt.Errorf("%s requires at least 1 life", settings.Mode)
		}
		if settings.PointsPerCorrect < 0 {
			return fmt.Errorf("points per correct answer must not be negative")
		}
	}

	if settings.HintsAllowed && settings.HintCost < 1 {
		return fmt.Errorf("hint cost must be positive when hints are allowed")
	}

	return nil
}

// CalculateScore returns the points awarded for a single correct answer
func CalculateScore(settings GameSettings) int {
	if settings.Mode == ModeFree {
		return 0
	}
	return settings.PointsPerCorrect
}

// HasUnlimitedLives returns whether wrong answers can end the session
func HasUnlimitedLives(settings GameSettings) bool {
	return settings.Lives == UnlimitedLives
}
