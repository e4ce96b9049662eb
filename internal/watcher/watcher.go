package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sandeepmv/vcflow/internal/classify"
	"github.com/sandeepmv/vcflow/internal/config"
	"github.com/sandeepmv/vcflow/internal/metric"
	"github.com/sandeepmv/vcflow/internal/store"
	"github.com/sandeepmv/vcflow/pkg/models"
)

// ErrUnsupportedExtension is returned when a file's extension is not in
// the configured supported set.
var ErrUnsupportedExtension = errors.New("unsupported file extension")

// ErrFileTooLarge is returned when a file exceeds the configured size cap.
var ErrFileTooLarge = errors.New("file exceeds maximum size")

// Watcher monitors the inbound directory tree and enqueues a job for
// every supported file that appears in it.
type Watcher struct {
	cfg        config.WatcherConfig
	store      store.Store
	classifier *classify.Classifier
	metrics    *metric.Metrics
	logger     *slog.Logger
	fsw        *fsnotify.Watcher
}

func New(cfg config.WatcherConfig, st store.Store, classifier *classify.Classifier, metrics *metric.Metrics, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Watcher{
		cfg:        cfg,
		store:      st,
		classifier: classifier,
		metrics:    metrics,
		logger:     logger,
		fsw:        fsw,
	}, nil
}

func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run watches the configured directory tree until ctx is cancelled.
// Directories created while running are added to the watch set, so
// files dropped into new client subdirectories are still picked up.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.addRecursive(w.cfg.WatchDir); err != nil {
		return fmt.Errorf("watch %s: %w", w.cfg.WatchDir, err)
	}
	w.logger.Info("watcher started", "dir", w.cfg.WatchDir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			info, err := os.Stat(event.Name)
			if err != nil {
				// Renamed-away paths no longer exist; nothing to do.
				continue
			}
			if info.IsDir() {
				if err := w.addRecursive(event.Name); err != nil {
					w.logger.Warn("failed to watch new directory", "dir", event.Name, "error", err)
				}
				continue
			}
			go w.settleAndEnqueue(ctx, event.Name)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

// maxSettleChecks bounds how many settle intervals a growing file can
// consume before it is enqueued regardless.
const maxSettleChecks = 5

// settleAndEnqueue waits for the writer to finish before enqueueing.
// Files are often picked up mid-copy; each settle interval the size is
// compared and the wait re-armed until it stops changing. A file that
// never stabilizes is enqueued after the last check so a slow copy is
// delayed, not dropped.
func (w *Watcher) settleAndEnqueue(ctx context.Context, path string) {
	before, err := os.Stat(path)
	if err != nil {
		return
	}
	for i := 0; i < maxSettleChecks; i++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.cfg.SettleDelay):
		}
		after, err := os.Stat(path)
		if err != nil {
			return
		}
		if after.Size() == before.Size() {
			break
		}
		w.logger.Debug("file still growing, waiting", "path", path)
		before = after
	}

	if _, err := w.Enqueue(ctx, path, "watcher"); err != nil {
		w.logEnqueueSkip(path, err)
	}
}

// Enqueue validates a file and creates a pending job for it. The
// returned job carries the environment tag derived from the path.
// Callers outside the watcher loop (the manual trigger API, the
// startup scan) use this too, with their own source label.
func (w *Watcher) Enqueue(ctx context.Context, path string, source string) (*models.Job, error) {
	if !w.supported(path) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedExtension, filepath.Ext(path))
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	maxBytes := int64(w.cfg.MaxFileSizeMB) * 1024 * 1024
	if info.Size() > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes (limit %d MB)", ErrFileTooLarge, info.Size(), w.cfg.MaxFileSizeMB)
	}

	tag := w.classifier.Classify(path)
	job := &models.Job{
		Filename:    filepath.Base(path),
		Filepath:    path,
		Status:      models.JobStatusPending,
		Environment: &tag.Environment,
		ClientName:  &tag.Client,
		Datacenter:  &tag.Datacenter,
	}
	if err := w.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	w.metrics.RecordFileEnqueued(source)
	w.logger.Info("job enqueued",
		"job_id", job.ID,
		"path", path,
		"environment", tag.Environment,
		"client", tag.Client,
		"source", source)
	return job, nil
}

// ScanExisting walks the watch directory and enqueues every supported
// file already present. Run once at startup to pick up files dropped
// while the service was down. Paths with any job row, terminal
// included, are skipped so restarts do not re-queue files that already
// ran; only the API retry endpoint reprocesses a failed job.
func (w *Watcher) ScanExisting(ctx context.Context) error {
	return filepath.WalkDir(w.cfg.WatchDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !w.supported(path) {
			return nil
		}
		known, err := w.store.ExistsByPath(ctx, path)
		if err != nil {
			return err
		}
		if known {
			w.logger.Debug("already tracked, skipping", "path", path)
			return nil
		}
		if _, err := w.Enqueue(ctx, path, "scan"); err != nil {
			w.logEnqueueSkip(path, err)
		}
		return nil
	})
}

func (w *Watcher) supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.cfg.SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

func (w *Watcher) logEnqueueSkip(path string, err error) {
	switch {
	case errors.Is(err, store.ErrDuplicateJob):
		w.logger.Debug("file already queued", "path", path)
	case errors.Is(err, ErrUnsupportedExtension):
		w.logger.Debug("ignoring unsupported file", "path", path)
	case errors.Is(err, ErrFileTooLarge):
		w.logger.Warn("skipping oversized file", "path", path, "error", err)
	default:
		w.logger.Error("failed to enqueue file", "path", path, "error", err)
	}
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
}
