package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lmittmann/tint"

	"review-rush-go/config"
	"review-rush-go/internal/catalog"
	"review-rush-go/internal/game"
	"review-rush-go/internal/highscore"
	awsinfra "review-rush-go/internal/infrastructure/aws"
)

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level, _ := config.ParseLevel(cfg.LogLevel)
	if cfg.IsDevelopment() {
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// setup loads config and builds the root logger and, when a backend needs
// it, the AWS clients.
func setup(ctx context.Context) (*config.Config, *slog.Logger, *awsinfra.AWSConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return nil, nil, nil, err
	}

	logger := newLogger(cfg, os.Stderr)
	slog.SetDefault(logger)

	if !cfg.UsesAWS() {
		return cfg, logger, nil, nil
	}
	aws, err := awsinfra.NewAWSConfig(ctx, cfg.AWSRegion)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return cfg, logger, aws, nil
}

func buildSnapshot(cfg *config.Config, aws *awsinfra.AWSConfig) catalog.Snapshot {
	if cfg.SnapshotBackend == config.SnapshotS3 {
		return catalog.NewS3Snapshot(aws.S3, cfg.SnapshotBucket, cfg.SnapshotKey)
	}
	return catalog.NewFileSnapshot(cfg.SnapshotPath)
}

func buildRepository(cfg *config.Config, aws *awsinfra.AWSConfig, logger *slog.Logger) *catalog.Repository {
	client := catalog.NewClient(cfg.CatalogBaseURL, cfg.CatalogAPIKey, cfg.CatalogTimeout)
	return catalog.NewRepository(client, buildSnapshot(cfg, aws),
		catalog.WithImageBase(cfg.ImageBaseURL),
		catalog.WithLogger(logger),
	)
}

// buildHighScores opens the configured store. The returned func releases it.
func buildHighScores(cfg *config.Config, aws *awsinfra.AWSConfig, logger *slog.Logger) (game.HighScoreStore, func(), error) {
	switch cfg.HighScoreBackend {
	case config.HighScoreMemory:
		return highscore.NewMemoryStore(), func() {}, nil

	case config.HighScoreSQLite, config.HighScorePostgres:
		db, err := openSQL(cfg)
		if err != nil {
			return nil, nil, err
		}
		if db.DriverName() == "sqlite3" {
			version, err := highscore.Migrate(db)
			if err != nil {
				db.Close()
				return nil, nil, err
			}
			logger.Debug("high score schema ready", "version", version)
		}
		return highscore.NewSQLStore(db), func() { db.Close() }, nil

	case config.HighScoreDynamoDB:
		return highscore.NewDynamoStore(aws.DynamoDB, cfg.DynamoDBTable), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown high score backend %q", cfg.HighScoreBackend)
}

func openSQL(cfg *config.Config) (*sqlx.DB, error) {
	if cfg.HighScoreBackend == config.HighScorePostgres {
		return highscore.Open("postgres", cfg.DatabaseURL)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sqlite dir: %w", err)
	}
	return highscore.Open("sqlite3", cfg.SQLitePath)
}

func engineSettings(cfg *config.Config) game.Settings {
	s := game.DefaultSettings()
	s.BatchSize = cfg.BatchSize
	s.LowWaterMark = cfg.LowWaterMark
	s.FeedbackDelay = cfg.FeedbackDelay
	s.SessionIdleTimeout = cfg.SessionIdleTimeout
	s.PointsPerCorrect = cfg.PointsPerCorrect
	s.HintCost = cfg.HintCost
	return s
}
