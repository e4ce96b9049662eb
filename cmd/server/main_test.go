package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandeepmv/vcflow/internal/store"
	"github.com/sandeepmv/vcflow/pkg/models"
)

// --- stubs ---

type testStore struct {
	pingErr error
}

func (s *testStore) Ping(_ context.Context) error                     { return s.pingErr }
func (s *testStore) CreateJob(_ context.Context, _ *models.Job) error { return nil }
func (s *testStore) GetJob(_ context.Context, _ uuid.UUID) (*models.Job, error) {
	return nil, store.ErrNotFound
}
func (s *testStore) GetActiveJobByPath(_ context.Context, _ string) (*models.Job, error) {
	return nil, store.ErrNotFound
}
func (s *testStore) ExistsByPath(_ context.Context, _ string) (bool, error) { return false, nil }
func (s *testStore) ListJobs(_ context.Context, _ store.JobFilter) ([]*models.Job, int, error) {
	return nil, 0, nil
}
func (s *testStore) ClaimPending(_ context.Context, _ int) ([]*models.Job, error) { return nil, nil }
func (s *testStore) SetCounts(_ context.Context, _ uuid.UUID, _, _ int) error     { return nil }
func (s *testStore) MarkCompleted(_ context.Context, _ uuid.UUID, _ []string) error {
	return nil
}
func (s *testStore) MarkFailed(_ context.Context, _ uuid.UUID, _ string) error { return nil }
func (s *testStore) ResetFailed(_ context.Context, _ uuid.UUID) error          { return nil }
func (s *testStore) ListExpired(_ context.Context, _ time.Time) ([]*models.Job, error) {
	return nil, nil
}
func (s *testStore) DeleteJob(_ context.Context, _ uuid.UUID) error { return nil }
func (s *testStore) CountByStatus(_ context.Context) (map[string]int, error) {
	return nil, nil
}
func (s *testStore) Totals(_ context.Context) (int, int, error) { return 0, 0, nil }

type testCache struct {
	pingErr error
}

func (c *testCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *testCache) Get(_ context.Context, _ string) ([]byte, bool, error) {
	return nil, false, nil
}
func (c *testCache) Delete(_ context.Context, _ string) error { return nil }
func (c *testCache) Ping(_ context.Context) error             { return c.pingErr }
func (c *testCache) SetJobStatus(_ context.Context, _ uuid.UUID, _ string, _ time.Duration) error {
	return nil
}
func (c *testCache) GetJobStatus(_ context.Context, _ uuid.UUID) (string, bool, error) {
	return "", false, nil
}
func (c *testCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 0, nil
}

// --- healthHandler ---

func TestHealthHandler_AllOK(t *testing.T) {
	h := healthHandler(&testStore{}, &testCache{})

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	data := body["data"].(map[string]any)
	assert.Equal(t, "ok", data["status"])
}

func TestHealthHandler_DatabaseDegraded(t *testing.T) {
	h := healthHandler(&testStore{pingErr: errors.New("connection refused")}, &testCache{})

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "degraded")
}

func TestHealthHandler_CacheDegraded(t *testing.T) {
	h := healthHandler(&testStore{}, &testCache{pingErr: errors.New("redis down")})

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthHandler_BothDegraded(t *testing.T) {
	h := healthHandler(
		&testStore{pingErr: errors.New("down")},
		&testCache{pingErr: errors.New("down")},
	)

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "DEGRADED")
}
