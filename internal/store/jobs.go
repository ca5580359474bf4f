package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/model"
)

var (
	ErrNotFound       = errors.New("print job not found")
	ErrClaimLost      = errors.New("print job is no longer claimed by this worker")
	ErrNotRequeueable = errors.New("only printed or failed jobs can be requeued")
)

const jobColumns = `id, order_id, print_data, status, attempts, error_message, claimed_by, claimed_at, created_at, processed_at`

// claimable matches pending jobs and claims abandoned by a dead worker.
// Takes one staleBefore argument.
const claimable = `(status = 'pending' OR (status = 'in_progress' AND claimed_at < ?))`

// Enqueue inserts a new pending job carrying a pre-rendered receipt.
func (s *Store) Enqueue(ctx context.Context, orderID string, doc model.ReceiptDocument) (*model.PrintJob, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal print data: %w", err)
	}

	job := &model.PrintJob{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		Document:  doc,
		Status:    model.JobStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO print_jobs (id, order_id, print_data, status, attempts, created_at) VALUES (?, ?, ?, ?, 0, ?)`),
		job.ID, job.OrderID, string(data), job.Status, job.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue print job: %w", err)
	}
	return job, nil
}

// Get retrieves a job by its ID.
func (s *Store) Get(ctx context.Context, id string) (*model.PrintJob, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+jobColumns+` FROM print_jobs WHERE id = ?`), id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get print job: %w", err)
	}
	return job, nil
}

// List returns jobs oldest first, optionally filtered by status.
func (s *Store) List(ctx context.Context, status model.JobStatus, limit int) ([]*model.PrintJob, error) {
	query := `SELECT ` + jobColumns + ` FROM print_jobs WHERE 1=1`
	args := []any{}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at, id"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.queryJobs(ctx, query, args...)
}

// FetchPending returns up to limit claimable jobs, oldest first.
func (s *Store) FetchPending(ctx context.Context, limit int, staleBefore time.Time) ([]*model.PrintJob, error) {
	return s.queryJobs(ctx,
		`SELECT `+jobColumns+` FROM print_jobs WHERE `+claimable+` ORDER BY created_at, id LIMIT ?`,
		staleBefore.UTC(), limit,
	)
}

// Claim atomically moves a claimable job to in_progress for owner and
// counts the attempt. ok is false when another worker got there first.
func (s *Store) Claim(ctx context.Context, id, owner string, now, staleBefore time.Time) (attempts int, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, s.rebind(
		`UPDATE print_jobs SET status = 'in_progress', attempts = attempts + 1, claimed_by = ?, claimed_at = ?
		 WHERE id = ? AND `+claimable+` RETURNING attempts`),
		owner, now.UTC(), id, staleBefore.UTC(),
	).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to claim print job: %w", err)
	}
	return attempts, true, nil
}

// Reject fails a claimable job outright without counting an attempt. Used
// for documents that can never print.
func (s *Store) Reject(ctx context.Context, id, message string, now, staleBefore time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE print_jobs SET status = 'failed', error_message = ?, processed_at = ?, claimed_by = NULL, claimed_at = NULL
		 WHERE id = ? AND `+claimable),
		message, now.UTC(), id, staleBefore.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to reject print job: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	return rowsAffected == 1, nil
}

// Complete marks a claimed job printed and clears any previous error.
func (s *Store) Complete(ctx context.Context, id, owner string, now time.Time) error {
	return s.finish(ctx, "complete",
		`UPDATE print_jobs SET status = 'printed', processed_at = ?, error_message = NULL, claimed_by = NULL, claimed_at = NULL
		 WHERE id = ? AND status = 'in_progress' AND claimed_by = ?`,
		now.UTC(), id, owner,
	)
}

// Fail marks a claimed job terminally failed.
func (s *Store) Fail(ctx context.Context, id, owner, message string, now time.Time) error {
	return s.finish(ctx, "fail",
		`UPDATE print_jobs SET status = 'failed', error_message = ?, processed_at = ?, claimed_by = NULL, claimed_at = NULL
		 WHERE id = ? AND status = 'in_progress' AND claimed_by = ?`,
		message, now.UTC(), id, owner,
	)
}

// Release hands a claimed job back to the queue. Its attempt stays counted.
func (s *Store) Release(ctx context.Context, id, owner string) error {
	return s.finish(ctx, "release",
		`UPDATE print_jobs SET status = 'pending', claimed_by = NULL, claimed_at = NULL
		 WHERE id = ? AND status = 'in_progress' AND claimed_by = ?`,
		id, owner,
	)
}

// Requeue inserts a fresh pending copy of a finished job. The original row
// is left untouched.
func (s *Store) Requeue(ctx context.Context, id string) (*model.PrintJob, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !job.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotRequeueable, id, job.Status)
	}
	if job.DataError != nil {
		return nil, fmt.Errorf("cannot requeue %s: %w", id, job.DataError)
	}
	return s.Enqueue(ctx, job.OrderID, job.Document)
}

func (s *Store) finish(ctx context.Context, op, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return fmt.Errorf("failed to %s print job: %w", op, err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrClaimLost
	}
	return nil
}

func (s *Store) queryJobs(ctx context.Context, query string, args ...any) ([]*model.PrintJob, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list print jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*model.PrintJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan print job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*model.PrintJob, error) {
	var (
		job          model.PrintJob
		data         []byte
		errorMessage sql.NullString
		claimedBy    sql.NullString
		claimedAt    sql.NullTime
		processedAt  sql.NullTime
	)
	err := row.Scan(&job.ID, &job.OrderID, &data, &job.Status, &job.Attempts,
		&errorMessage, &claimedBy, &claimedAt, &job.CreatedAt, &processedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, &job.Document); err != nil {
		job.DataError = fmt.Errorf("invalid print_data: %w", err)
	}
	if errorMessage.Valid {
		job.ErrorMessage = &errorMessage.String
	}
	job.ClaimedBy = claimedBy.String
	if claimedAt.Valid {
		job.ClaimedAt = &claimedAt.Time
	}
	if processedAt.Valid {
		job.ProcessedAt = &processedAt.Time
	}
	return &job, nil
}
