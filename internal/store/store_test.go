package store_test

import (
	"context"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sandeepmv/vcflow/internal/store"
	"github.com/sandeepmv/vcflow/pkg/models"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("vcflow_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

func strPtr(s string) *string { return &s }

func newJob(path string) *models.Job {
	return &models.Job{
		Filename:    filepath.Base(path),
		Filepath:    path,
		Status:      models.JobStatusPending,
		Environment: strPtr("production-vc1"),
		ClientName:  strPtr("client-a"),
	}
}

func TestCreateJob_AndGet(t *testing.T) {
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	job := newJob("/watch/a.json")
	require.NoError(t, s.CreateJob(ctx, job))
	require.NotEqual(t, uuid.Nil, job.ID)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.json", got.Filename)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Equal(t, "production-vc1", *got.Environment)
	assert.Nil(t, got.StartedAt)
	assert.Nil(t, got.CompletedAt)
}

func TestCreateJob_RejectsDuplicateActivePath(t *testing.T) {
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, s.CreateJob(ctx, newJob("/watch/dup.json")))

	err := s.CreateJob(ctx, newJob("/watch/dup.json"))
	assert.ErrorIs(t, err, store.ErrDuplicateJob)
}

func TestCreateJob_AllowsNewJobAfterTerminal(t *testing.T) {
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	first := newJob("/watch/again.json")
	require.NoError(t, s.CreateJob(ctx, first))

	claimed, err := s.ClaimPending(ctx, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.NoError(t, s.MarkFailed(ctx, first.ID, "boom"))

	// Terminal jobs do not block re-enqueue of the same path.
	require.NoError(t, s.CreateJob(ctx, newJob("/watch/again.json")))
}

func TestCreateJob_ConcurrentEnqueueSingleWinner(t *testing.T) {
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.CreateJob(ctx, newJob("/watch/race.json"))
		}(i)
	}
	wg.Wait()

	var created, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			created++
		case assert.ErrorIs(t, err, store.ErrDuplicateJob):
			dup++
		}
	}
	assert.Equal(t, 1, created, "exactly one concurrent enqueue must win")
	assert.Equal(t, attempts-1, dup)
}

func TestClaimPending_SetsProcessingAndStartTime(t *testing.T) {
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, s.CreateJob(ctx, newJob("/watch/c1.json")))
	require.NoError(t, s.CreateJob(ctx, newJob("/watch/c2.json")))
	require.NoError(t, s.CreateJob(ctx, newJob("/watch/c3.json")))

	claimed, err := s.ClaimPending(ctx, 2)
	require.NoError(t, err)
	require.Len(t, claimed, 2)

	for _, job := range claimed {
		assert.Equal(t, models.JobStatusProcessing, job.Status)
		assert.NotNil(t, job.StartedAt)
	}

	// Oldest first.
	assert.Equal(t, "/watch/c1.json", claimed[0].Filepath)

	remaining, err := s.ClaimPending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestClaimPending_ConcurrentClaimsDoNotOverlap(t *testing.T) {
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		require.NoError(t, s.CreateJob(ctx, newJob(filepath.Join("/watch", uuid.NewString()+".json"))))
	}

	var mu sync.Mutex
	seen := map[uuid.UUID]int{}
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			jobs, err := s.ClaimPending(ctx, 3)
			assert.NoError(t, err)
			mu.Lock()
			for _, j := range jobs {
				seen[j.ID]++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 6)
	for id, n := range seen {
		assert.Equal(t, 1, n, "job %s claimed %d times", id, n)
	}
}

func TestMarkCompleted_RecordsArtifacts(t *testing.T) {
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	job := newJob("/watch/done.json")
	require.NoError(t, s.CreateJob(ctx, job))
	_, err := s.ClaimPending(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, s.SetCounts(ctx, job.ID, 12, 3))
	files := []string{"/out/vms.csv", "/out/vms.xlsx", "/out/summary.json"}
	require.NoError(t, s.MarkCompleted(ctx, job.ID, files))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, 12, got.VMCount)
	assert.Equal(t, 3, got.AlarmCount)
	assert.Equal(t, files, got.OutputFiles)
	assert.NotNil(t, got.CompletedAt)
}

func TestMarkCompleted_RequiresProcessing(t *testing.T) {
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	job := newJob("/watch/pending.json")
	require.NoError(t, s.CreateJob(ctx, job))

	err := s.MarkCompleted(ctx, job.ID, nil)
	assert.ErrorIs(t, err, store.ErrInvalidTransition)
}

func TestMarkFailed_RecordsError(t *testing.T) {
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	job := newJob("/watch/bad.json")
	require.NoError(t, s.CreateJob(ctx, job))
	_, err := s.ClaimPending(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, s.MarkFailed(ctx, job.ID, "file not found: /watch/bad.json"))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Contains(t, *got.ErrorMessage, "/watch/bad.json")
	assert.Empty(t, got.OutputFiles)
}

func TestResetFailed_OnlyFromFailed(t *testing.T) {
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	job := newJob("/watch/retry.json")
	require.NoError(t, s.CreateJob(ctx, job))

	// pending -> reject
	assert.ErrorIs(t, s.ResetFailed(ctx, job.ID), store.ErrInvalidTransition)

	_, err := s.ClaimPending(ctx, 1)
	require.NoError(t, err)

	// processing -> reject
	assert.ErrorIs(t, s.ResetFailed(ctx, job.ID), store.ErrInvalidTransition)

	require.NoError(t, s.MarkFailed(ctx, job.ID, "boom"))
	require.NoError(t, s.ResetFailed(ctx, job.ID))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Nil(t, got.ErrorMessage)
	assert.Nil(t, got.StartedAt)
	assert.Nil(t, got.CompletedAt)
	assert.Empty(t, got.OutputFiles)
	assert.Zero(t, got.VMCount)

	// completed -> reject
	_, err = s.ClaimPending(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, s.MarkCompleted(ctx, job.ID, nil))
	assert.ErrorIs(t, s.ResetFailed(ctx, job.ID), store.ErrInvalidTransition)
}

func TestResetFailed_MissingJob(t *testing.T) {
	s := store.NewPostgresStore(setupTestDB(t))

	err := s.ResetFailed(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListJobs_FilterAndPagination(t *testing.T) {
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.CreateJob(ctx, newJob(filepath.Join("/watch", uuid.NewString()+".json"))))
	}
	other := newJob("/watch/other.json")
	other.Environment = strPtr("development")
	require.NoError(t, s.CreateJob(ctx, other))

	jobs, total, err := s.ListJobs(ctx, store.JobFilter{Status: models.JobStatusPending})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, jobs, 4)

	jobs, total, err = s.ListJobs(ctx, store.JobFilter{Environment: "development"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, jobs, 1)
	assert.Equal(t, "/watch/other.json", jobs[0].Filepath)

	jobs, total, err = s.ListJobs(ctx, store.JobFilter{Page: 2, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, jobs, 1)
}

func TestGetActiveJobByPath(t *testing.T) {
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	job := newJob("/watch/active.json")
	require.NoError(t, s.CreateJob(ctx, job))

	got, err := s.GetActiveJobByPath(ctx, "/watch/active.json")
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)

	_, err = s.GetActiveJobByPath(ctx, "/watch/missing.json")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestExistsByPath_IncludesTerminalJobs(t *testing.T) {
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	exists, err := s.ExistsByPath(ctx, "/watch/never-seen.json")
	require.NoError(t, err)
	assert.False(t, exists)

	job := newJob("/watch/seen.json")
	require.NoError(t, s.CreateJob(ctx, job))

	exists, err = s.ExistsByPath(ctx, "/watch/seen.json")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = s.ClaimPending(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, s.MarkFailed(ctx, job.ID, "boom"))

	// Terminal rows still count; the startup scan relies on that to
	// avoid re-queueing files that already ran.
	exists, err = s.ExistsByPath(ctx, "/watch/seen.json")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestListExpired_RetentionWindow(t *testing.T) {
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	old := newJob("/watch/old.json")
	require.NoError(t, s.CreateJob(ctx, old))
	fresh := newJob("/watch/fresh.json")
	require.NoError(t, s.CreateJob(ctx, fresh))

	_, err := s.ClaimPending(ctx, 2)
	require.NoError(t, err)
	require.NoError(t, s.MarkCompleted(ctx, old.ID, []string{"/out/old.csv"}))
	require.NoError(t, s.MarkCompleted(ctx, fresh.ID, nil))

	// Backdate one completion past the 30-day window.
	_, err = pool.Exec(ctx,
		`UPDATE jobs SET completed_at = NOW() - INTERVAL '31 days' WHERE id = $1`, old.ID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx,
		`UPDATE jobs SET completed_at = NOW() - INTERVAL '29 days' WHERE id = $1`, fresh.ID)
	require.NoError(t, err)

	cutoff := time.Now().AddDate(0, 0, -30)
	expired, err := s.ListExpired(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, old.ID, expired[0].ID)
	assert.Equal(t, []string{"/out/old.csv"}, expired[0].OutputFiles)

	require.NoError(t, s.DeleteJob(ctx, expired[0].ID))
	_, err = s.GetJob(ctx, old.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCountByStatus(t *testing.T) {
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	a := newJob("/watch/s1.json")
	require.NoError(t, s.CreateJob(ctx, a))
	b := newJob("/watch/s2.json")
	require.NoError(t, s.CreateJob(ctx, b))

	claimed, err := s.ClaimPending(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, s.MarkFailed(ctx, claimed[0].ID, "x"))

	counts, err := s.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.JobStatusPending])
	assert.Equal(t, 1, counts[models.JobStatusFailed])
}

func TestTotals_SumsCompletedJobsOnly(t *testing.T) {
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	done := newJob("/watch/t1.json")
	require.NoError(t, s.CreateJob(ctx, done))
	pending := newJob("/watch/t2.json")
	require.NoError(t, s.CreateJob(ctx, pending))

	claimed, err := s.ClaimPending(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, s.SetCounts(ctx, claimed[0].ID, 10, 4))
	require.NoError(t, s.MarkCompleted(ctx, claimed[0].ID, nil))
	require.NoError(t, s.SetCounts(ctx, pending.ID, 99, 99))

	vms, alarms, err := s.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, vms)
	assert.Equal(t, 4, alarms)
}
