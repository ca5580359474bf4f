package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/utils"
)

func SetupCmd(appVersion string) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Write the config file interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := utils.LoadConfig(globalFlags.configFile)
			if err != nil {
				return err
			}
			cfg = utils.SetupConfig(cmd.InOrStdin(), cmd.OutOrStdout(), cfg)
			cfg.AppVersion = appVersion

			if err := utils.SaveConfig(globalFlags.configFile, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s configuration saved to %s\n", green("✓"), globalFlags.configFile)
			return nil
		},
	}
}
