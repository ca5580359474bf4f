package queue

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/model"
)

const DefaultInterval = 10 * time.Second

type StatusChecker interface {
	CheckStatus(ctx context.Context, host string, port int) (model.PrinterStatus, error)
}

// Worker re-runs ProcessBatch until its context ends.
type Worker struct {
	Processor *Processor
	// Monitor, when set, is queried before each batch. Its answer is only
	// logged and never changes a job.
	Monitor  StatusChecker
	Interval time.Duration
	Logger   *zap.SugaredLogger

	// OnBatch observes every finished batch. Used by tests and the CLI.
	OnBatch func(model.BatchResult, error)
}

func (w *Worker) Run(ctx context.Context) error {
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	logger := w.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	logger.Infow("Print worker started", "printer", w.Processor.addr(), "interval", interval)
	defer logger.Infow("Print worker stopped")

	for {
		if w.Monitor != nil {
			w.checkHealth(ctx, logger)
		}

		result, err := w.Processor.ProcessBatch(ctx)
		if w.OnBatch != nil {
			w.OnBatch(result, err)
		}
		var cfgErr *ConfigurationError
		if errors.As(err, &cfgErr) {
			return err
		}
		if err != nil && ctx.Err() == nil {
			logger.Errorw("Batch failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

func (w *Worker) checkHealth(ctx context.Context, logger *zap.SugaredLogger) {
	cfg := w.Processor.cfg
	status, err := w.Monitor.CheckStatus(ctx, cfg.Host, cfg.Port)
	switch {
	case !status.Connected:
		logger.Warnw("Printer offline", "printer", w.Processor.addr(), "error", status.Error)
	case !status.Ready():
		logger.Warnw("Printer needs attention",
			"printer", w.Processor.addr(),
			"online", status.Online,
			"coverClosed", status.CoverClosed,
			"paperPresent", status.PaperPresent,
			"paperNearEnd", status.PaperNearEnd,
		)
	case status.PaperNearEnd != nil && *status.PaperNearEnd:
		logger.Warnw("Printer paper running low", "printer", w.Processor.addr())
	case err != nil:
		logger.Debugw("Printer status incomplete", "printer", w.Processor.addr(), "error", err)
	}
}
