package cli

import (
	"github.com/spf13/cobra"

	"github.com/ghga-de/datahub-file-service/internal/interrogator"
)

func newInterrogateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "interrogate",
		Short: "Run the file interrogation and re-encryption process once",
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

			worker := interrogator.New(
				comps.central,
				comps.store,
				comps.logger,
				cfg.InboxStorageAlias,
				comps.dataHubSecretKey,
			)
			if err := worker.InterrogateNewFiles(cmd.Context()); err != nil {
				comps.logger.Error().Err(err).Msg("interrogation run failed")
				return err
			}
			comps.logger.Info().Msg("interrogation run finished")
			return nil
		},
	}
}
