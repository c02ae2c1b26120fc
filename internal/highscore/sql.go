package highscore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"review-rush-go/internal/game/modes"
)

// SQLStore keeps high scores in SQLite or Postgres.
type SQLStore struct {
	db  *sqlx.DB
	hub *hub
	now func() time.Time
}

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db, hub: newHub(), now: time.Now}
}

// Open connects to driver ("sqlite3" or "postgres") at dsn.
func Open(driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", driver, err)
	}
	if driver == "sqlite3" {
		// :memory: databases exist per connection.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}
	return db, nil
}

func (s *SQLStore) Observe(ctx context.Context, mode modes.GameMode) (<-chan int, func(), error) {
	return s.hub.observe(mode, func() (int, error) {
		return s.get(ctx, mode)
	})
}

// SaveIfBetter writes score only when it beats the stored value. The
// comparison happens inside the upsert so concurrent sessions cannot lower a
// record.
func (s *SQLStore) SaveIfBetter(ctx context.Context, mode modes.GameMode, score int) (bool, error) {
	if score <= 0 {
		return false, nil
	}

	query := s.db.Rebind(`
		INSERT INTO high_scores (mode, score, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (mode) DO UPDATE
		SET score = excluded.score, updated_at = excluded.updated_at
		WHERE excluded.score > high_scores.score`)

	res, err := s.db.ExecContext(ctx, query, string(mode), score, s.now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to save high score: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to save high score: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	s.hub.publish(mode, score)
	return true, nil
}

func (s *SQLStore) get(ctx context.Context, mode modes.GameMode) (int, error) {
	var score int
	err := s.db.GetContext(ctx, &score, s.db.Rebind("SELECT score FROM high_scores WHERE mode = ?"), string(mode))
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get high score: %w", err)
	}
	return score, nil
}
