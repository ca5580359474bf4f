package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/services"
	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/utils"
)

// AgentCmd connects to the ordering backend and queues every order it
// pushes. With --work the same process also prints them.
func AgentCmd() *cobra.Command {
	var work bool

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Receive orders from the ordering backend over websocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.close()

			if a.cfg.Printer.AgentKey == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Registering printer '%s' with server...\n", a.cfg.Printer.Name)
				if err := services.RegisterPrinter(ctx, nil, a.cfg.Agent, &a.cfg.Printer); err != nil {
					return fmt.Errorf("failed to register %s: %w", a.cfg.Printer.Name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s agent key: %s\n", green("✓"), a.cfg.Printer.AgentKey)
				if err := persistAgentKey(a.cfg.Printer.AgentKey); err != nil {
					a.logger.Warnw("Could not save agent key", "error", err)
				}
			}

			f, err := a.formatter()
			if err != nil {
				return err
			}
			agent := &services.Agent{
				WSURL:     a.cfg.Agent.WSURL,
				APIKey:    a.cfg.Agent.APIKey,
				Printer:   a.cfg.Printer,
				Jobs:      a.store,
				Formatter: f,
				Logger:    a.logger.Named("agent"),
			}

			tasks := []func(context.Context) error{agent.Run}
			if work {
				p, err := a.processor()
				if err != nil {
					return err
				}
				tasks = append(tasks, a.worker(p).Run)
			}
			return a.runAll(ctx, tasks...)
		},
	}
	cmd.Flags().BoolVar(&work, "work", true, "also run the print worker in this process")
	return cmd
}

// persistAgentKey writes the key into the config file, leaving out the
// environment and command-line overrides.
func persistAgentKey(key string) error {
	cfg, err := utils.LoadConfigFile(globalFlags.configFile)
	if err != nil {
		return err
	}
	cfg.Printer.AgentKey = key
	return utils.SaveConfig(globalFlags.configFile, cfg)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
