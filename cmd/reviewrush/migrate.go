package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"review-rush-go/config"
	"review-rush-go/internal/highscore"
	"review-rush-go/internal/infrastructure/aws/dynamodb"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the high score schema",
		Long: `Create or upgrade the high score schema for the configured backend.

SQLite and Postgres run the embedded SQL migrations. DynamoDB creates the
high score table if it does not exist. The memory backend needs nothing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, aws, err := setup(ctx)
			if err != nil {
				return err
			}

			switch cfg.HighScoreBackend {
			case config.HighScoreSQLite, config.HighScorePostgres:
				db, err := openSQL(cfg)
				if err != nil {
					return err
				}
				defer db.Close()

				version, err := highscore.Migrate(db)
				if err != nil {
					return err
				}
				logger.Info("high score schema migrated", "backend", cfg.HighScoreBackend, "version", version)

			case config.HighScoreDynamoDB:
				created, err := dynamodb.NewDynamoDBService(aws.DynamoDB).CreateHighScoreTable(ctx, cfg.DynamoDBTable)
				if err != nil {
					return err
				}
				logger.Info("high score table ready", "table", cfg.DynamoDBTable, "created", created)

			case config.HighScoreMemory:
				logger.Info("memory backend has no schema")

			default:
				return fmt.Errorf("unknown high score backend %q", cfg.HighScoreBackend)
			}
			return nil
		},
	}
}
