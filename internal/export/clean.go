// Package export cleans extracted records, derives analytics metrics,
// partitions record sets by environment, and writes the output artifacts.
package export

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sandeepmv/vcflow/pkg/models"
)

// severityTable maps raw severities onto the fixed reporting vocabulary.
// Every input maps to exactly one entry; anything unlisted becomes Unknown.
var severityTable = map[string]string{
	"critical":    "Critical",
	"error":       "Critical",
	"warning":     "Warning",
	"info":        "Information",
	"information": "Information",
	"normal":      "Normal",
}

// priorityScores ranks normalized severities for sorting in downstream
// dashboards.
var priorityScores = map[string]int{
	"Critical":    5,
	"Warning":     3,
	"Unknown":     2,
	"Information": 1,
	"Normal":      0,
}

// CleanVMs applies defaults, coerces numeric fields with zero substitution,
// derives the computed metrics, and attaches the job's tags. Total: never
// fails, never emits null numerics.
func CleanVMs(vms []models.VMRecord, tag models.EnvironmentTag, jobID uuid.UUID, now time.Time) []models.CleanVM {
	out := make([]models.CleanVM, 0, len(vms))
	for _, vm := range vms {
		c := models.CleanVM{
			Name:           vm.Name,
			UUID:           vm.UUID,
			PowerState:     vm.PowerState,
			CPUCount:       intOrZero(vm.CPUCount),
			MemoryMB:       intOrZero(vm.MemoryMB),
			DiskGB:         floatOrZero(vm.DiskGB),
			NetworkCount:   intOrZero(vm.NetworkCount),
			GuestOS:        vm.GuestOS,
			HostName:       vm.HostName,
			ClusterName:    vm.ClusterName,
			DatacenterName: vm.DatacenterName,
			Environment:    tag.Environment,
			ClientName:     tag.Client,
			JobID:          jobID,
			ProcessedAt:    now,
		}
		if c.Name == "" {
			c.Name = "Unknown VM"
		}
		if c.PowerState == "" {
			c.PowerState = "unknown"
		}

		c.MemoryGB = round2(float64(c.MemoryMB) / 1024)
		c.CPUMemoryRatio = round2(c.MemoryGB / float64(max(c.CPUCount, 1)))
		c.ResourceScore = round2(float64(c.CPUCount)*0.3 + c.MemoryGB*0.4 + c.DiskGB*0.3)
		c.ResourceCategory = resourceCategory(c.ResourceScore)
		c.IsPoweredOn = c.PowerState == "poweredon"

		out = append(out, c)
	}
	return out
}

// CleanAlarms applies defaults, normalizes severities, scores priorities,
// and derives alarm age where a trigger time exists.
func CleanAlarms(alarms []models.AlarmRecord, tag models.EnvironmentTag, jobID uuid.UUID, now time.Time) []models.CleanAlarm {
	out := make([]models.CleanAlarm, 0, len(alarms))
	for _, a := range alarms {
		c := models.CleanAlarm{
			Name:          a.Name,
			Description:   a.Description,
			Severity:      a.Severity,
			Status:        a.Status,
			VMName:        a.VMName,
			TriggeredTime: a.TriggeredTime,
			Acknowledged:  a.Acknowledged,
			Environment:   tag.Environment,
			ClientName:    tag.Client,
			JobID:         jobID,
			ProcessedAt:   now,
		}
		if c.Name == "" {
			c.Name = "Unknown Alarm"
		}
		if c.VMName == "" {
			c.VMName = "Unknown VM"
		}
		if c.Severity == "" {
			c.Severity = "unknown"
		}
		if c.Status == "" {
			c.Status = "unknown"
		}

		c.SeverityNormalized = NormalizeSeverity(c.Severity)
		c.PriorityScore = priorityScores[c.SeverityNormalized]

		if c.TriggeredTime != nil {
			days := int(now.Sub(*c.TriggeredTime).Hours() / 24)
			c.DaysSinceTriggered = &days
		}

		out = append(out, c)
	}
	return out
}

// NormalizeSeverity maps any raw severity string onto the fixed vocabulary
// {Critical, Warning, Information, Normal, Unknown}.
func NormalizeSeverity(raw string) string {
	if normalized, ok := severityTable[strings.ToLower(raw)]; ok {
		return normalized
	}
	return "Unknown"
}

// resourceCategory buckets a resource score. Boundaries are closed-open:
// [0,10) Low, [10,50) Medium, [50,100) High, [100,∞) Critical.
func resourceCategory(score float64) string {
	switch {
	case score < 10:
		return "Low"
	case score < 50:
		return "Medium"
	case score < 100:
		return "High"
	default:
		return "Critical"
	}
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func floatOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
