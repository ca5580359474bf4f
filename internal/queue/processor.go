// Package queue drains the print job table into a printer.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/escpos"
	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/model"
	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/printer"
	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/store"
)

const (
	DefaultMaxAttempts = 3
	DefaultBatchSize   = 10
	DefaultLease       = 2 * time.Minute
)

// recordTimeout bounds the state write that follows a send, which runs
// even when the batch context is already cancelled.
const recordTimeout = 5 * time.Second

type Config struct {
	Host        string
	Port        int
	MaxAttempts int
	BatchSize   int
	// Cooldown skips whole batches for this long after the printer could
	// not be reached at all. Zero disables it.
	Cooldown time.Duration
	// Lease is how long a claim stays exclusive before another worker may
	// take the job over.
	Lease time.Duration
}

// ConfigurationError aborts a whole invocation.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s %s", e.Field, e.Reason)
}

// JobStore is the subset of the job table the processor drives.
type JobStore interface {
	FetchPending(ctx context.Context, limit int, staleBefore time.Time) ([]*model.PrintJob, error)
	Claim(ctx context.Context, id, owner string, now, staleBefore time.Time) (int, bool, error)
	Reject(ctx context.Context, id, message string, now, staleBefore time.Time) (bool, error)
	Complete(ctx context.Context, id, owner string, now time.Time) error
	Fail(ctx context.Context, id, owner, message string, now time.Time) error
	Release(ctx context.Context, id, owner string) error
}

type Sender interface {
	Send(ctx context.Context, host string, port int, data []byte) error
}

// EncodeFunc turns a stored receipt into printer bytes. An
// *escpos.EncodingError fails the job without using an attempt; any other
// error counts as a failed attempt.
type EncodeFunc func(ctx context.Context, doc model.ReceiptDocument) ([]byte, error)

// TextEncoder adapts an escpos.Encoder to EncodeFunc.
func TextEncoder(enc *escpos.Encoder) EncodeFunc {
	return func(_ context.Context, doc model.ReceiptDocument) ([]byte, error) {
		return enc.Encode(doc)
	}
}

type Processor struct {
	cfg    Config
	jobs   JobStore
	sender Sender
	encode EncodeFunc
	logger *zap.SugaredLogger
	owner  string
	now    func() time.Time

	mu            sync.Mutex
	cooldownUntil time.Time
}

func NewProcessor(cfg Config, jobs JobStore, sender Sender, encode EncodeFunc, logger *zap.SugaredLogger) *Processor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Port == 0 {
		cfg.Port = printer.DefaultPort
	}
	if cfg.Lease <= 0 {
		cfg.Lease = DefaultLease
	}
	if encode == nil {
		encode = TextEncoder(escpos.NewEncoder(escpos.DefaultColumns))
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	owner := uuid.NewString()
	return &Processor{
		cfg:    cfg,
		jobs:   jobs,
		sender: sender,
		encode: encode,
		logger: logger.With("worker", owner),
		owner:  owner,
		now:    time.Now,
	}
}

type outcome int

const (
	outcomePrinted outcome = iota
	outcomeFailed
	outcomeRetry
	outcomeSkipped
	outcomeInterrupted
)

// ProcessBatch claims and prints up to BatchSize pending jobs, oldest
// first. Per-job failures land in the result; only configuration and
// queue read errors are returned.
func (p *Processor) ProcessBatch(ctx context.Context) (model.BatchResult, error) {
	result := model.BatchResult{Errors: []string{}}

	if p.cfg.Host == "" {
		return result, &ConfigurationError{Field: "printer host", Reason: "is not set"}
	}

	if until, cooling := p.coolingDown(); cooling {
		result.Errors = append(result.Errors,
			fmt.Sprintf("printer %s unreachable, retrying after %s", p.addr(), until.Format(time.RFC3339)))
		return result, nil
	}

	jobs, err := p.jobs.FetchPending(ctx, p.cfg.BatchSize, p.now().Add(-p.cfg.Lease))
	if err != nil {
		return result, fmt.Errorf("failed to fetch pending jobs: %w", err)
	}
	result.Processed = len(jobs)
	if len(jobs) == 0 {
		return result, nil
	}
	p.logger.Infow("Processing batch", "jobs", len(jobs), "printer", p.addr())

	for i, job := range jobs {
		if ctx.Err() != nil {
			result.Skipped += len(jobs) - i
			result.Errors = append(result.Errors, fmt.Sprintf("batch interrupted: %v", ctx.Err()))
			break
		}

		out, err := p.processJob(ctx, job)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("job %s (order %s): %v", job.ID, job.OrderID, err))
		}

		switch out {
		case outcomePrinted:
			result.Succeeded++
		case outcomeFailed, outcomeRetry:
			result.Failed++
		case outcomeSkipped:
			result.Skipped++
		case outcomeInterrupted:
			result.Skipped += len(jobs) - i
			return result, nil
		}

		var terr *printer.TransportError
		if errors.As(err, &terr) && terr.Unreachable() && p.cfg.Cooldown > 0 {
			p.startCooldown()
			result.Skipped += len(jobs) - i - 1
			if rest := len(jobs) - i - 1; rest > 0 {
				result.Errors = append(result.Errors,
					fmt.Sprintf("printer %s unreachable, %d jobs left pending", p.addr(), rest))
			}
			return result, nil
		}
	}

	p.logger.Infow("Batch finished",
		"processed", result.Processed,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"skipped", result.Skipped,
	)
	return result, nil
}

func (p *Processor) processJob(ctx context.Context, job *model.PrintJob) (outcome, error) {
	log := p.logger.With("job", job.ID, "order", job.OrderID)

	if job.DataError != nil {
		return p.reject(ctx, log, job, job.DataError)
	}

	data, encErr := p.encode(ctx, job.Document)
	var badDoc *escpos.EncodingError
	if errors.As(encErr, &badDoc) {
		return p.reject(ctx, log, job, encErr)
	}

	now := p.now()
	attempts, ok, err := p.jobs.Claim(ctx, job.ID, p.owner, now, now.Add(-p.cfg.Lease))
	if err != nil {
		return outcomeSkipped, err
	}
	if !ok {
		log.Debugw("Job claimed by another worker")
		return outcomeSkipped, nil
	}

	sendErr := encErr
	if sendErr == nil {
		sendErr = p.sender.Send(ctx, p.cfg.Host, p.cfg.Port, data)
	}

	// Once bytes reach the printer the outcome must be recorded even if
	// the caller has gone away, or the job is reprinted after its lease.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if sendErr == nil {
		if err := p.jobs.Complete(writeCtx, job.ID, p.owner, p.now()); err != nil {
			log.Errorw("Printed but could not record completion", "error", err)
			return outcomePrinted, fmt.Errorf("printed but not recorded: %w", err)
		}
		log.Infow("Printed", "attempt", attempts)
		return outcomePrinted, nil
	}

	if ctx.Err() != nil {
		if err := p.jobs.Release(writeCtx, job.ID, p.owner); err != nil {
			log.Errorw("Failed to release interrupted job", "error", err)
		}
		log.Warnw("Interrupted, job left pending", "attempt", attempts, "error", sendErr)
		return outcomeInterrupted, sendErr
	}

	if attempts >= p.cfg.MaxAttempts {
		if err := p.jobs.Fail(writeCtx, job.ID, p.owner, sendErr.Error(), p.now()); err != nil {
			return outcomeFailed, fmt.Errorf("%v (and failed to record failure: %w)", sendErr, err)
		}
		log.Errorw("Print failed, giving up", "attempt", attempts, "error", sendErr)
		return outcomeFailed, sendErr
	}

	if err := p.jobs.Release(writeCtx, job.ID, p.owner); err != nil {
		return outcomeRetry, fmt.Errorf("%v (and failed to release: %w)", sendErr, err)
	}
	log.Warnw("Print failed, will retry", "attempt", attempts, "max", p.cfg.MaxAttempts, "error", sendErr)
	return outcomeRetry, sendErr
}

func (p *Processor) reject(ctx context.Context, log *zap.SugaredLogger, job *model.PrintJob, cause error) (outcome, error) {
	now := p.now()
	ok, err := p.jobs.Reject(ctx, job.ID, cause.Error(), now, now.Add(-p.cfg.Lease))
	if err != nil {
		return outcomeSkipped, err
	}
	if !ok {
		return outcomeSkipped, nil
	}
	log.Errorw("Rejected unprintable job", "error", cause)
	return outcomeFailed, cause
}

func (p *Processor) coolingDown() (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cooldownUntil, p.now().Before(p.cooldownUntil)
}

func (p *Processor) startCooldown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cooldownUntil = p.now().Add(p.cfg.Cooldown)
	p.logger.Warnw("Printer unreachable, pausing batches", "printer", p.addr(), "until", p.cooldownUntil)
}

func (p *Processor) addr() string {
	return fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port)
}

var _ JobStore = (*store.Store)(nil)
