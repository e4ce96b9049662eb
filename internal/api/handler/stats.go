package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sandeepmv/vcflow/internal/api/response"
	"github.com/sandeepmv/vcflow/internal/cache"
	"github.com/sandeepmv/vcflow/internal/store"
)

// statsCacheTTL keeps the stats endpoint cheap under dashboard polling.
const statsCacheTTL = 30 * time.Second

type statsResponse struct {
	Jobs        map[string]int `json:"jobs"`
	TotalVMs    int            `json:"total_vms"`
	TotalAlarms int            `json:"total_alarms"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// NewStatsHandler returns an http.HandlerFunc for GET /api/v1/stats.
// Results are cached in Redis for a short window.
func NewStatsHandler(st store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cached, found, err := c.Get(r.Context(), cache.StatsKey()); err == nil && found {
			var stats statsResponse
			if json.Unmarshal(cached, &stats) == nil {
				response.JSON(w, stats)
				return
			}
		}

		counts, err := st.CountByStatus(r.Context())
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}
		vms, alarms, err := st.Totals(r.Context())
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}
		if counts == nil {
			counts = map[string]int{}
		}

		stats := statsResponse{
			Jobs:        counts,
			TotalVMs:    vms,
			TotalAlarms: alarms,
			GeneratedAt: time.Now().UTC(),
		}
		if payload, err := json.Marshal(stats); err == nil {
			_ = c.Set(r.Context(), cache.StatsKey(), payload, statsCacheTTL)
		}

		response.JSON(w, stats)
	}
}
