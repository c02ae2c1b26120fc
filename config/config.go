package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	SnapshotFile = "file"
	SnapshotS3   = "s3"

	HighScoreMemory   = "memory"
	HighScoreSQLite   = "sqlite"
	HighScorePostgres = "postgres"
	HighScoreDynamoDB = "dynamodb"
)

type Config struct {
	Environment string `mapstructure:"ENVIRONMENT"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`

	// Server
	Port            int           `mapstructure:"PORT"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`

	// Catalog backend
	CatalogBaseURL string        `mapstructure:"CATALOG_BASE_URL"`
	CatalogAPIKey  string        `mapstructure:"CATALOG_API_KEY"`
	CatalogTimeout time.Duration `mapstructure:"CATALOG_TIMEOUT"`
	ImageBaseURL   string        `mapstructure:"IMAGE_BASE_URL"`

	// Offline catalog snapshot
	SnapshotBackend string `mapstructure:"SNAPSHOT_BACKEND"`
	SnapshotPath    string `mapstructure:"SNAPSHOT_PATH"`
	SnapshotBucket  string `mapstructure:"SNAPSHOT_BUCKET"`
	SnapshotKey     string `mapstructure:"SNAPSHOT_KEY"`

	// High scores
	HighScoreBackend string `mapstructure:"HIGHSCORE_BACKEND"`
	SQLitePath       string `mapstructure:"SQLITE_PATH"`
	DatabaseURL      string `mapstructure:"DATABASE_URL"`
	DynamoDBTable    string `mapstructure:"DYNAMODB_TABLE"`

	// AWS
	AWSRegion string `mapstructure:"AWS_REGION"`

	// Game tuning
	BatchSize        int           `mapstructure:"BATCH_SIZE"`
	LowWaterMark     int           `mapstructure:"LOW_WATER_MARK"`
	FeedbackDelay    time.Duration `mapstructure:"FEEDBACK_DELAY"`
	HintCost         int           `mapstructure:"HINT_COST"`
	PointsPerCorrect int           `mapstructure:"POINTS_PER_CORRECT"`

	// Sessions nobody touches for this long are ended
	SessionIdleTimeout time.Duration `mapstructure:"SESSION_IDLE_TIMEOUT"`
}

var defaults = map[string]any{
	"ENVIRONMENT":        "development",
	"LOG_LEVEL":          "info",
	"PORT":               8080,
	"SHUTDOWN_TIMEOUT":   30 * time.Second,
	"CATALOG_BASE_URL":   "",
	"CATALOG_API_KEY":    "",
	"CATALOG_TIMEOUT":    10 * time.Second,
	"IMAGE_BASE_URL":     "",
	"SNAPSHOT_BACKEND":   SnapshotFile,
	"SNAPSHOT_PATH":      "data/games_offline_cache.json",
	"SNAPSHOT_BUCKET":    "",
	"SNAPSHOT_KEY":       "catalog/games.json",
	"HIGHSCORE_BACKEND":  HighScoreSQLite,
	"SQLITE_PATH":        "data/highscores.db",
	"DATABASE_URL":       "",
	"DYNAMODB_TABLE":     "high_scores",
	"AWS_REGION":         "us-east-1",
	"BATCH_SIZE":         20,
	"LOW_WATER_MARK":     5,
	"FEEDBACK_DELAY":     1500 * time.Millisecond,
	"HINT_COST":          50,
	"POINTS_PER_CORRECT": 125,

	"SESSION_IDLE_TIMEOUT": 30 * time.Minute,
}

// Load reads .env (if present), config.yaml (if present) and the
// environment, in increasing precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables take precedence
	v.AutomaticEnv()

	// Every key needs a default so AutomaticEnv picks it up on Unmarshal.
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the keys the selected backends depend on.
func (c *Config) Validate() error {
	if c.CatalogBaseURL == "" {
		return fmt.Errorf("CATALOG_BASE_URL is required")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}

	switch c.SnapshotBackend {
	case SnapshotFile:
		if c.SnapshotPath == "" {
			return fmt.Errorf("SNAPSHOT_PATH is required for the file snapshot")
		}
	case SnapshotS3:
		if c.SnapshotBucket == "" || c.SnapshotKey == "" {
			return fmt.Errorf("SNAPSHOT_BUCKET and SNAPSHOT_KEY are required for the s3 snapshot")
		}
	default:
		return fmt.Errorf("unknown SNAPSHOT_BACKEND %q", c.SnapshotBackend)
	}

	switch c.HighScoreBackend {
	case HighScoreMemory:
	case HighScoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite high score store")
		}
	case HighScorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres high score store")
		}
	case HighScoreDynamoDB:
		if c.DynamoDBTable == "" {
			return fmt.Errorf("DYNAMODB_TABLE is required for the dynamodb high score store")
		}
	default:
		return fmt.Errorf("unknown HIGHSCORE_BACKEND %q", c.HighScoreBackend)
	}

	if c.UsesAWS() && c.AWSRegion == "" {
		return fmt.Errorf("AWS_REGION is required")
	}

	if c.BatchSize <= 0 {
		return fmt.Errorf("BATCH_SIZE must be positive")
	}
	if c.LowWaterMark < 0 || c.LowWaterMark >= c.BatchSize {
		return fmt.Errorf("LOW_WATER_MARK must be between 0 and BATCH_SIZE-1")
	}
	if c.FeedbackDelay <= 0 {
		return fmt.Errorf("FEEDBACK_DELAY must be positive")
	}
	if c.SessionIdleTimeout <= 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must be positive")
	}
	if c.HintCost <= 0 {
		return fmt.Errorf("HINT_COST must be positive")
	}
	if c.PointsPerCorrect < 0 {
		return fmt.Errorf("POINTS_PER_CORRECT must not be negative")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// UsesAWS reports whether any selected backend lives in AWS.
func (c *Config) UsesAWS() bool {
	return c.SnapshotBackend == SnapshotS3 || c.HighScoreBackend == HighScoreDynamoDB
}

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown LOG_LEVEL %q", s)
	}
}
