package export

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/sandeepmv/vcflow/pkg/models"
)

// writeSummary produces the per-job summary artifact. Statistics are
// computed over the cleaned record sets so the distributions match what the
// other artifacts contain.
func (e *Exporter) writeSummary(vms []models.CleanVM, alarms []models.CleanAlarm, job *models.Job, timestamp string, now time.Time) (string, error) {
	summary := models.Summary{
		ProcessingSummary: models.ProcessingSummary{
			JobID:       job.ID,
			ProcessedAt: now.UTC().Format(time.RFC3339),
			TotalVMs:    len(vms),
			TotalAlarms: len(alarms),
		},
		VMStatistics:    vmStatistics(vms),
		AlarmStatistics: alarmStatistics(alarms),
	}

	path := filepath.Join(e.cfg.OutputDir, fmt.Sprintf("processing_summary_%s.json", timestamp))
	if err := writeJSON(path, summary); err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}
	return path, nil
}

func vmStatistics(vms []models.CleanVM) *models.VMStatistics {
	if len(vms) == 0 {
		return nil
	}

	stats := &models.VMStatistics{
		TotalCount:             len(vms),
		PowerStateDistribution: map[string]int{},
		ResourceCategories:     map[string]int{},
	}

	var cpuTotal, memTotal, diskTotal float64
	osCounts := map[string]int{}
	for _, vm := range vms {
		stats.PowerStateDistribution[vm.PowerState]++
		stats.ResourceCategories[vm.ResourceCategory]++
		cpuTotal += float64(vm.CPUCount)
		memTotal += vm.MemoryGB
		diskTotal += vm.DiskGB
		if vm.GuestOS != "" {
			osCounts[vm.GuestOS]++
		}
	}

	n := float64(len(vms))
	stats.AverageCPUCount = round2(cpuTotal / n)
	stats.AverageMemoryGB = round2(memTotal / n)
	stats.TotalDiskGB = round2(diskTotal)
	stats.GuestOSDistribution = topN(osCounts, 10)

	return stats
}

func alarmStatistics(alarms []models.CleanAlarm) *models.AlarmStatistics {
	if len(alarms) == 0 {
		return nil
	}

	stats := &models.AlarmStatistics{
		TotalCount:           len(alarms),
		SeverityDistribution: map[string]int{},
	}

	vms := map[string]bool{}
	for _, a := range alarms {
		stats.SeverityDistribution[a.SeverityNormalized]++
		if a.Acknowledged {
			stats.AcknowledgedCount++
		} else {
			stats.UnacknowledgedCount++
		}
		vms[a.VMName] = true
	}
	stats.UniqueVMsWithAlarms = len(vms)

	return stats
}

// topN keeps the n highest-count entries of a distribution.
func topN(counts map[string]int, n int) map[string]int {
	if len(counts) <= n {
		return counts
	}
	type entry struct {
		key   string
		count int
	}
	entries := make([]entry, 0, len(counts))
	for k, v := range counts {
		entries = append(entries, entry{k, v})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].key < entries[j].key
	})
	out := make(map[string]int, n)
	for _, e := range entries[:n] {
		out[e.key] = e.count
	}
	return out
}
