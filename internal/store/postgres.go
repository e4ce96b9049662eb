package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sandeepmv/vcflow/pkg/models"
)

const jobColumns = `id, filename, filepath, status, environment, client_name, datacenter,
	error_message, vm_count, alarm_count, output_files, started_at, completed_at, created_at`

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateJob inserts a pending job. The partial unique index on filepath makes
// this a conditional write: a second insert for a path with a live job fails
// with ErrDuplicateJob no matter how the callers race.
func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = models.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, filename, filepath, status, environment, client_name, datacenter,
			vm_count, alarm_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		job.ID, job.Filename, job.Filepath, job.Status, job.Environment, job.ClientName,
		job.Datacenter, job.VMCount, job.AlarmCount, job.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateJob
		}
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// GetActiveJobByPath returns the pending or processing job for a path, if any.
func (s *PostgresStore) GetActiveJobByPath(ctx context.Context, filepath string) (*models.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE filepath = $1 AND status IN ('pending', 'processing') LIMIT 1`, filepath)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get active job by path: %w", err)
	}
	return job, nil
}

// ExistsByPath reports whether any job row, terminal or not, references
// the path.
func (s *PostgresStore) ExistsByPath(ctx context.Context, filepath string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM jobs WHERE filepath = $1)`, filepath).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("exists by path: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, int, error) {
	conditions := []string{"TRUE"}
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}
	if filter.Environment != "" {
		conditions = append(conditions, fmt.Sprintf("environment = $%d", argIdx))
		args = append(args, filter.Environment)
		argIdx++
	}
	if filter.Client != "" {
		conditions = append(conditions, fmt.Sprintf("client_name = $%d", argIdx))
		args = append(args, filter.Client)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM jobs WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	query := fmt.Sprintf(
		`SELECT `+jobColumns+` FROM jobs WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, total, rows.Err()
}

// ClaimPending atomically claims up to limit pending jobs, moving them to
// processing with a start timestamp before any work happens. SKIP LOCKED
// keeps two concurrent claimers from taking the same job.
func (s *PostgresStore) ClaimPending(ctx context.Context, limit int) ([]*models.Job, error) {
	rows, err := s.pool.Query(ctx,
		`UPDATE jobs SET status = 'processing', started_at = NOW()
		 WHERE id IN (
			SELECT id FROM jobs WHERE status = 'pending'
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+jobColumns, limit)
	if err != nil {
		return nil, fmt.Errorf("claim pending jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claimed job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *PostgresStore) SetCounts(ctx context.Context, id uuid.UUID, vmCount, alarmCount int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET vm_count = $2, alarm_count = $3 WHERE id = $1`, id, vmCount, alarmCount)
	if err != nil {
		return fmt.Errorf("set counts: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) MarkCompleted(ctx context.Context, id uuid.UUID, outputFiles []string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = 'completed', completed_at = NOW(), output_files = $2
		 WHERE id = $1 AND status = 'processing'`, id, outputFiles)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionError(ctx, id, models.JobStatusCompleted)
	}
	return nil
}

func (s *PostgresStore) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = 'failed', completed_at = NOW(), error_message = $2
		 WHERE id = $1 AND status IN ('pending', 'processing')`, id, errorMessage)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionError(ctx, id, models.JobStatusFailed)
	}
	return nil
}

// ResetFailed requeues a failed job, clearing its error, timestamps,
// artifacts, and counts. Only the failed status is eligible.
func (s *PostgresStore) ResetFailed(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = 'pending', started_at = NULL, completed_at = NULL,
			error_message = NULL, output_files = NULL, vm_count = 0, alarm_count = 0
		 WHERE id = $1 AND status = 'failed'`, id)
	if err != nil {
		return fmt.Errorf("reset failed job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionError(ctx, id, models.JobStatusPending)
	}
	return nil
}

// ListExpired returns terminal jobs whose completion timestamp is older than
// the cutoff, so the retention sweep can remove their artifacts first.
func (s *PostgresStore) ListExpired(ctx context.Context, cutoff time.Time) ([]*models.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE status IN ('completed', 'failed') AND completed_at < $1`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list expired jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *PostgresStore) DeleteJob(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// Totals sums the extracted record counts across completed jobs.
func (s *PostgresStore) Totals(ctx context.Context) (int, int, error) {
	var vms, alarms int
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(vm_count), 0), COALESCE(SUM(alarm_count), 0)
		 FROM jobs WHERE status = 'completed'`).Scan(&vms, &alarms)
	if err != nil {
		return 0, 0, fmt.Errorf("sum record counts: %w", err)
	}
	return vms, alarms, nil
}

// transitionError distinguishes a missing row from a lifecycle violation
// after a guarded update matched nothing.
func (s *PostgresStore) transitionError(ctx context.Context, id uuid.UUID, target string) error {
	var current string
	err := s.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get job status: %w", err)
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, target)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var j models.Job
	err := row.Scan(&j.ID, &j.Filename, &j.Filepath, &j.Status, &j.Environment, &j.ClientName,
		&j.Datacenter, &j.ErrorMessage, &j.VMCount, &j.AlarmCount, &j.OutputFiles,
		&j.StartedAt, &j.CompletedAt, &j.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// isUniqueViolation checks if a pgx error is a unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
