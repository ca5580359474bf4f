package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/printer"
	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/utils"
)

// StatusCmd queries the printer without touching the queue.
func StatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Ask the printer for its online, cover and paper state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.close()
			if err := utils.ValidatePrinter(a.cfg); err != nil {
				return err
			}

			status, err := a.monitor().CheckStatus(ctx, a.cfg.Printer.IP, a.cfg.Printer.Port)
			if err != nil {
				a.logger.Debugw("Status incomplete", "error", err)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), status)
			}
			printStatus(cmd.OutOrStdout(), fmt.Sprintf("%s:%d", a.cfg.Printer.IP, a.cfg.Printer.Port), status)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw status as JSON")
	return cmd
}

// DiscoverCmd scans the local /24 for raw print ports.
func DiscoverCmd() *cobra.Command {
	var (
		subnet  string
		port    int
		timeout time.Duration
		save    bool
	)

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Scan the local network for printers listening on port 9100",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			if subnet == "" {
				localIP, err := printer.DetectLocalIP()
				if err != nil {
					return fmt.Errorf("error detecting IP: %w", err)
				}
				if subnet, err = printer.SubnetOf(localIP); err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Scanning subnet: %s.0/24\n", subnet)

			found := printer.Discover(ctx, subnet, port, timeout)
			if len(found) == 0 {
				fmt.Fprintln(out, yellow("no printers found"))
				return nil
			}
			for _, ip := range found {
				fmt.Fprintf(out, "  %s %s:%d\n", green("●"), ip, port)
			}

			if !save {
				return nil
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cfg.Printer.IP, cfg.Printer.Port = found[0], port
			if err := utils.SaveConfig(globalFlags.configFile, cfg); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s saved %s as the printer in %s\n", green("✓"), found[0], globalFlags.configFile)
			return nil
		},
	}
	cmd.Flags().StringVar(&subnet, "subnet", "", "first three octets to scan, e.g. 192.168.1 (default: local subnet)")
	cmd.Flags().IntVar(&port, "port", printer.DefaultPort, "port to probe")
	cmd.Flags().DurationVar(&timeout, "timeout", printer.DefaultProbeTimeout, "per-host connect timeout")
	cmd.Flags().BoolVar(&save, "save", false, "store the first printer found in the config file")
	return cmd
}
