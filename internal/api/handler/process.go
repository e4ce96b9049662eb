package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/sandeepmv/vcflow/internal/api/response"
	"github.com/sandeepmv/vcflow/internal/store"
	"github.com/sandeepmv/vcflow/internal/watcher"
	"github.com/sandeepmv/vcflow/pkg/models"
)

// Enqueuer validates a file and creates a pending job for it.
// Implemented by the watcher.
type Enqueuer interface {
	Enqueue(ctx context.Context, path string, source string) (*models.Job, error)
}

// NewProcessFileHandler returns an http.HandlerFunc for POST
// /api/v1/process-file. It enqueues a single file by path without
// waiting for the watcher to notice it.
func NewProcessFileHandler(enq Enqueuer, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Filepath string `json:"filepath"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.Filepath == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "filepath is required", nil)
			return
		}

		job, err := enq.Enqueue(r.Context(), req.Filepath, "api")
		if err != nil {
			switch {
			case errors.Is(err, store.ErrDuplicateJob):
				var details any
				if existing, lookupErr := st.GetActiveJobByPath(r.Context(), req.Filepath); lookupErr == nil {
					details = map[string]string{
						"job_id": existing.ID.String(),
						"status": existing.Status,
					}
				}
				response.Error(w, http.StatusConflict, "DUPLICATE_JOB",
					"An active job already exists for this file", details)
			case errors.Is(err, watcher.ErrUnsupportedExtension):
				response.Error(w, http.StatusBadRequest, "UNSUPPORTED_FORMAT",
					"File extension is not supported", nil)
			case errors.Is(err, watcher.ErrFileTooLarge):
				response.Error(w, http.StatusBadRequest, "FILE_TOO_LARGE",
					"File exceeds the maximum allowed size", nil)
			case errors.Is(err, os.ErrNotExist):
				response.Error(w, http.StatusNotFound, "FILE_NOT_FOUND",
					"No file exists at the given path", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
			}
			return
		}

		response.Created(w, job)
	}
}

// ProcessTrigger runs one processing pass over pending jobs.
// Implemented by the scheduler.
type ProcessTrigger interface {
	ProcessPending(ctx context.Context) error
}

// NewTriggerHandler returns an http.HandlerFunc for POST /api/v1/process.
// It kicks a processing pass without waiting for the next tick. The pass
// runs in the background; callers poll job status for results.
func NewTriggerHandler(trigger ProcessTrigger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		go func() {
			// Detached from the request; a closed connection must not
			// abort processing already underway.
			_ = trigger.ProcessPending(context.Background())
		}()
		response.Accepted(w, map[string]string{"message": "processing started"})
	}
}
