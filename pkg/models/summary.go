package models

import "github.com/google/uuid"

// Summary is the per-job summary artifact written once per processing run
// regardless of how the export set was partitioned.
type Summary struct {
	ProcessingSummary ProcessingSummary `json:"processing_summary"`
	VMStatistics      *VMStatistics     `json:"vm_statistics,omitempty"`
	AlarmStatistics   *AlarmStatistics  `json:"alarm_statistics,omitempty"`
}

type ProcessingSummary struct {
	JobID       uuid.UUID `json:"job_id"`
	ProcessedAt string    `json:"processed_at"`
	TotalVMs    int       `json:"total_vms"`
	TotalAlarms int       `json:"total_alarms"`
}

type VMStatistics struct {
	TotalCount             int            `json:"total_count"`
	PowerStateDistribution map[string]int `json:"power_state_distribution"`
	AverageCPUCount        float64        `json:"average_cpu_count"`
	AverageMemoryGB        float64        `json:"average_memory_gb"`
	TotalDiskGB            float64        `json:"total_disk_gb"`
	ResourceCategories     map[string]int `json:"resource_category_distribution"`
	GuestOSDistribution    map[string]int `json:"guest_os_distribution"`
}

type AlarmStatistics struct {
	TotalCount           int            `json:"total_count"`
	SeverityDistribution map[string]int `json:"severity_distribution"`
	AcknowledgedCount    int            `json:"acknowledged_count"`
	UnacknowledgedCount  int            `json:"unacknowledged_count"`
	UniqueVMsWithAlarms  int            `json:"unique_vms_with_alarms"`
}
