// Package cli holds the printq subcommands.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/escpos"
	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/logging"
	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/model"
	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/printer"
	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/queue"
	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/receipt"
	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/render"
	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/store"
	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/utils"
)

var globalFlags struct {
	configFile  string
	printerHost string
	printerPort int
	dbDriver    string
	dbDSN       string
	logLevel    string
}

func AddGlobalFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVarP(&globalFlags.configFile, "config", "c", utils.DefaultConfigFile, "config file")
	f.StringVar(&globalFlags.printerHost, "printer-host", "", "printer IP or hostname (overrides config)")
	f.IntVar(&globalFlags.printerPort, "printer-port", 0, "printer TCP port (overrides config)")
	f.StringVar(&globalFlags.dbDriver, "db-driver", "", "sqlite3 or pgx (overrides config)")
	f.StringVar(&globalFlags.dbDSN, "db-dsn", "", "database DSN (overrides config)")
	f.StringVar(&globalFlags.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
}

// app is everything a command needs, built from config file, environment
// and flags in that order.
type app struct {
	cfg    model.Config
	logger *zap.SugaredLogger
	store  *store.Store
}

func loadConfig() (model.Config, error) {
	cfg, err := utils.LoadConfig(globalFlags.configFile)
	if err != nil {
		return cfg, err
	}
	if globalFlags.printerHost != "" {
		cfg.Printer.IP = globalFlags.printerHost
	}
	if globalFlags.printerPort != 0 {
		cfg.Printer.Port = globalFlags.printerPort
	}
	if globalFlags.dbDriver != "" {
		cfg.Database.Driver = globalFlags.dbDriver
	}
	if globalFlags.dbDSN != "" {
		cfg.Database.DSN = globalFlags.dbDSN
	}
	if globalFlags.logLevel != "" {
		cfg.Log.Level = globalFlags.logLevel
	}
	return cfg, nil
}

func newApp(ctx context.Context, withStore bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	if withStore {
		a.store, err = store.Open(cfg.Database.Driver, cfg.Database.DSN, logger.Named("store"))
		if err != nil {
			return nil, err
		}
		if err := a.store.Migrate(ctx); err != nil {
			a.store.Close()
			return nil, err
		}
	}
	return a, nil
}

// runAll runs tasks until the first one fails or ctx ends, and returns
// only after every task has returned. The store must stay open until then.
func (a *app) runAll(ctx context.Context, tasks ...func(context.Context) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		task := task
		g.Go(func() error { return task(ctx) })
	}
	return g.Wait()
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
	a.logger.Sync()
}

func (a *app) transport() *printer.Transport {
	return printer.NewTransport(a.cfg.Printer.Timeout())
}

func (a *app) monitor() *printer.Monitor {
	return printer.NewMonitor(a.transport())
}

func (a *app) formatter() (*receipt.Formatter, error) {
	loc, err := utils.Location(a.cfg)
	if err != nil {
		return nil, err
	}
	return receipt.NewFormatter(a.cfg.RestaurantName, a.cfg.Currency, loc), nil
}

// encoder picks text or image receipts per render mode.
func (a *app) encoder() (queue.EncodeFunc, error) {
	switch a.cfg.RenderMode {
	case "", model.RenderModeText:
		enc := escpos.NewEncoder(a.cfg.Printer.Columns)
		return queue.TextEncoder(enc), nil
	case model.RenderModeImage:
		path, ok := render.FindChrome()
		if !ok {
			return nil, fmt.Errorf("render mode image needs Chrome or Chromium: %s", render.InstallHint())
		}
		a.logger.Infow("Rendering receipts as images", "chrome", path)
		return render.NewRenderer(path, a.cfg.Printer.Dots).Encode, nil
	}
	return nil, fmt.Errorf("unknown render mode %q", a.cfg.RenderMode)
}

func (a *app) processor() (*queue.Processor, error) {
	if err := utils.ValidatePrinter(a.cfg); err != nil {
		return nil, err
	}
	encode, err := a.encoder()
	if err != nil {
		return nil, err
	}
	logger := a.logger.Named("queue").With("printer", a.cfg.Printer.Name)
	return queue.NewProcessor(utils.ProcessorConfig(a.cfg), a.store, a.transport(), encode, logger), nil
}

func (a *app) worker(p *queue.Processor) *queue.Worker {
	w := &queue.Worker{
		Processor: p,
		Interval:  a.cfg.Queue.Interval.Std(),
		Logger:    a.logger.Named("worker"),
	}
	if a.cfg.Queue.CheckStatus {
		w.Monitor = a.monitor()
	}
	return w
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
