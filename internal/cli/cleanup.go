package cli

import (
	"github.com/spf13/cobra"

	"github.com/ghga-de/datahub-file-service/internal/interrogator"
)

func newCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove approved objects from the interrogation bucket once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			comps, err := buildComponents(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer comps.Close()

			cleaner := interrogator.NewCleaner(comps.central, comps.store, comps.logger)
			if err := cleaner.ScanAndClean(cmd.Context()); err != nil {
				comps.logger.Error().Err(err).Msg("cleanup run failed")
				return err
			}
			comps.logger.Info().Msg("cleanup run finished")
			return nil
		},
	}
}
