package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sandeepmv/vcflow/internal/cache"
	"github.com/sandeepmv/vcflow/internal/config"
	"github.com/sandeepmv/vcflow/internal/export"
	"github.com/sandeepmv/vcflow/internal/metric"
	"github.com/sandeepmv/vcflow/internal/parser"
	"github.com/sandeepmv/vcflow/internal/store"
	"github.com/sandeepmv/vcflow/pkg/models"
)

// jobStatusTTL bounds how long job status stays in Redis after the
// last transition. Terminal states are authoritative in Postgres.
const jobStatusTTL = 24 * time.Hour

// Scanner enqueues files already on disk. Implemented by the watcher.
type Scanner interface {
	ScanExisting(ctx context.Context) error
}

// Scheduler drives the background loops: claiming and processing
// pending jobs, the retention sweep, and the one-shot startup scan.
type Scheduler struct {
	cfg      config.ProcessorConfig
	store    store.Store
	cache    cache.Cache
	exporter *export.Exporter
	scanner  Scanner
	metrics  *metric.Metrics
	logger   *slog.Logger
}

func New(cfg config.ProcessorConfig, st store.Store, c cache.Cache, exporter *export.Exporter, scanner Scanner, metrics *metric.Metrics, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		store:    st,
		cache:    c,
		exporter: exporter,
		scanner:  scanner,
		metrics:  metrics,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	processTicker := time.NewTicker(s.cfg.ProcessingInterval)
	defer processTicker.Stop()
	cleanupTicker := time.NewTicker(s.cfg.CleanupInterval)
	defer cleanupTicker.Stop()

	// Delay the startup scan so the watcher is registered first and
	// mid-copy files from before startup have settled.
	scanTimer := time.NewTimer(s.cfg.StartupScanDelay)
	defer scanTimer.Stop()

	s.logger.Info("scheduler started",
		"processing_interval", s.cfg.ProcessingInterval,
		"cleanup_interval", s.cfg.CleanupInterval)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-scanTimer.C:
			if s.scanner != nil {
				if err := s.scanner.ScanExisting(ctx); err != nil && ctx.Err() == nil {
					s.logger.Error("startup scan failed", "error", err)
				}
			}
		case <-processTicker.C:
			if err := s.ProcessPending(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("processing pass failed", "error", err)
			}
		case <-cleanupTicker.C:
			if err := s.Cleanup(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("retention sweep failed", "error", err)
			}
		}
	}
}

// ProcessPending claims up to a batch of pending jobs and processes
// them one at a time. Processing is sequential within a pass; parallel
// replicas coordinate through the claim query.
func (s *Scheduler) ProcessPending(ctx context.Context) error {
	jobs, err := s.store.ClaimPending(ctx, s.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("claim pending jobs: %w", err)
	}
	for _, job := range jobs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.processJob(ctx, job)
	}
	return nil
}

func (s *Scheduler) processJob(ctx context.Context, job *models.Job) {
	start := time.Now()
	logger := s.logger.With("job_id", job.ID, "path", job.Filepath)
	s.setCachedStatus(ctx, job, models.JobStatusProcessing)

	if _, err := os.Stat(job.Filepath); err != nil {
		s.fail(ctx, job, fmt.Sprintf("source file not found: %s", job.Filepath), start)
		return
	}

	result, err := parser.ParseFile(job.Filepath)
	if err != nil {
		s.fail(ctx, job, fmt.Sprintf("parse failed: %v", err), start)
		return
	}

	s.metrics.RecordExtracted(len(result.VMs), len(result.Alarms))
	if err := s.store.SetCounts(ctx, job.ID, len(result.VMs), len(result.Alarms)); err != nil {
		logger.Warn("failed to record counts", "error", err)
	}

	outputs, err := s.exporter.Process(result, job)
	if err != nil {
		s.fail(ctx, job, fmt.Sprintf("export failed: %v", err), start)
		return
	}
	for _, out := range outputs {
		s.metrics.RecordArtifact(artifactFormat(out))
	}

	if err := s.store.MarkCompleted(ctx, job.ID, outputs); err != nil {
		logger.Error("failed to mark job completed", "error", err)
		return
	}
	s.setCachedStatus(ctx, job, models.JobStatusCompleted)
	s.relocateSource(job, logger)

	s.metrics.RecordJobProcessed(models.JobStatusCompleted, time.Since(start))
	logger.Info("job completed",
		"vms", len(result.VMs),
		"alarms", len(result.Alarms),
		"artifacts", len(outputs),
		"duration", time.Since(start))
}

func (s *Scheduler) fail(ctx context.Context, job *models.Job, msg string, start time.Time) {
	if err := s.store.MarkFailed(ctx, job.ID, msg); err != nil {
		s.logger.Error("failed to mark job failed", "job_id", job.ID, "error", err)
	}
	s.setCachedStatus(ctx, job, models.JobStatusFailed)
	s.metrics.RecordJobProcessed(models.JobStatusFailed, time.Since(start))
	s.logger.Error("job failed", "job_id", job.ID, "path", job.Filepath, "reason", msg)
}

// relocateSource moves the processed file out of the watch directory
// so rescans and watcher restarts do not enqueue it again. Failure to
// move is logged but does not fail the job.
func (s *Scheduler) relocateSource(job *models.Job, logger *slog.Logger) {
	if err := os.MkdirAll(s.cfg.ProcessedDir, 0o755); err != nil {
		logger.Warn("failed to create processed dir", "error", err)
		return
	}
	dest := filepath.Join(s.cfg.ProcessedDir,
		fmt.Sprintf("%s_%s", time.Now().Format("20060102_150405"), job.Filename))
	if err := os.Rename(job.Filepath, dest); err != nil {
		logger.Warn("failed to move processed file", "dest", dest, "error", err)
	}
}

// Cleanup removes jobs whose completion fell outside the retention
// window, along with any artifacts they produced. Artifact removal is
// best effort; a missing file does not keep the job row around.
func (s *Scheduler) Cleanup(ctx context.Context) error {
	cutoff := time.Now().AddDate(0, 0, -s.cfg.RetentionDays)
	expired, err := s.store.ListExpired(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list expired jobs: %w", err)
	}

	for _, job := range expired {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		for _, artifact := range job.OutputFiles {
			if err := os.Remove(artifact); err != nil && !os.IsNotExist(err) {
				s.logger.Warn("failed to remove artifact", "job_id", job.ID, "path", artifact, "error", err)
			}
		}
		if err := s.store.DeleteJob(ctx, job.ID); err != nil {
			s.logger.Error("failed to delete expired job", "job_id", job.ID, "error", err)
			continue
		}
		s.metrics.JobsCleaned.Inc()
		s.logger.Info("expired job removed", "job_id", job.ID, "completed_at", job.CompletedAt)
	}
	return nil
}

func (s *Scheduler) setCachedStatus(ctx context.Context, job *models.Job, status string) {
	if err := s.cache.SetJobStatus(ctx, job.ID, status, jobStatusTTL); err != nil {
		s.logger.Debug("failed to cache job status", "job_id", job.ID, "error", err)
	}
}

func artifactFormat(path string) string {
	switch filepath.Ext(path) {
	case ".csv":
		return "csv"
	case ".xlsx":
		return "excel"
	case ".json":
		return "json"
	default:
		return "other"
	}
}
