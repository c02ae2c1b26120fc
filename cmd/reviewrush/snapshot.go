package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSnapshotCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Refresh the offline catalog snapshot",
		Long:  "Download the full catalog and store it where the server falls back to when batch requests fail.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, aws, err := setup(ctx)
			if err != nil {
				return err
			}

			n, err := buildRepository(cfg, aws, logger).Refresh(ctx)
			if err != nil {
				return fmt.Errorf("failed to refresh snapshot: %w", err)
			}
			logger.Info("catalog snapshot refreshed", "games", n, "backend", cfg.SnapshotBackend)
			fmt.Fprintf(cmd.OutOrStdout(), "%d games saved\n", n)
			return nil
		},
	}
}
