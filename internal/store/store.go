package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sandeepmv/vcflow/pkg/models"
)

var (
	ErrNotFound = errors.New("resource not found")
	// ErrDuplicateJob is returned when a non-terminal job already exists for
	// the same filepath.
	ErrDuplicateJob = errors.New("active job already exists for file")
	// ErrInvalidTransition is returned for a status change the job lifecycle
	// does not allow.
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// Store is the data access interface. All database operations go through
// here. CreateJob and ClaimPending are conditional writes: the database
// enforces single-active-job-per-path and single-claimer semantics.
type Store interface {
	Ping(ctx context.Context) error

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	GetActiveJobByPath(ctx context.Context, filepath string) (*models.Job, error)
	ExistsByPath(ctx context.Context, filepath string) (bool, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, int, error)

	ClaimPending(ctx context.Context, limit int) ([]*models.Job, error)
	SetCounts(ctx context.Context, id uuid.UUID, vmCount, alarmCount int) error
	MarkCompleted(ctx context.Context, id uuid.UUID, outputFiles []string) error
	MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error
	ResetFailed(ctx context.Context, id uuid.UUID) error

	ListExpired(ctx context.Context, cutoff time.Time) ([]*models.Job, error)
	DeleteJob(ctx context.Context, id uuid.UUID) error
	CountByStatus(ctx context.Context) (map[string]int, error)
	Totals(ctx context.Context) (vmCount, alarmCount int, err error)
}

// JobFilter narrows and paginates job listings.
type JobFilter struct {
	Status      string
	Environment string
	Client      string
	Page        int
	Limit       int
}
