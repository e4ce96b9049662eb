package models

import (
	"time"

	"github.com/google/uuid"
)

// CleanVM is a VMRecord after the cleaning stage: numeric fields coerced with
// zero defaults, derived metrics computed, and the owning job's tags attached.
type CleanVM struct {
	Name             string    `json:"name"`
	UUID             string    `json:"uuid,omitempty"`
	PowerState       string    `json:"power_state"`
	CPUCount         int       `json:"cpu_count"`
	MemoryMB         int       `json:"memory_mb"`
	DiskGB           float64   `json:"disk_gb"`
	NetworkCount     int       `json:"network_count"`
	GuestOS          string    `json:"guest_os,omitempty"`
	HostName         string    `json:"host_name,omitempty"`
	ClusterName      string    `json:"cluster_name,omitempty"`
	DatacenterName   string    `json:"datacenter_name,omitempty"`
	MemoryGB         float64   `json:"memory_gb"`
	CPUMemoryRatio   float64   `json:"cpu_memory_ratio"`
	ResourceScore    float64   `json:"resource_score"`
	ResourceCategory string    `json:"resource_category"`
	IsPoweredOn      bool      `json:"is_powered_on"`
	Environment      string    `json:"environment"`
	ClientName       string    `json:"client_name"`
	JobID            uuid.UUID `json:"processing_job_id"`
	ProcessedAt      time.Time `json:"processed_at"`
}

// CleanAlarm is an AlarmRecord after cleaning: severity mapped to the fixed
// vocabulary, priority scored, and age derived when a trigger time exists.
type CleanAlarm struct {
	Name               string     `json:"name"`
	Description        string     `json:"description"`
	Severity           string     `json:"severity"`
	SeverityNormalized string     `json:"severity_normalized"`
	PriorityScore      int        `json:"priority_score"`
	Status             string     `json:"status"`
	VMName             string     `json:"vm_name"`
	TriggeredTime      *time.Time `json:"triggered_time,omitempty"`
	DaysSinceTriggered *int       `json:"days_since_triggered,omitempty"`
	Acknowledged       bool       `json:"acknowledged"`
	Environment        string     `json:"environment"`
	ClientName         string     `json:"client_name"`
	JobID              uuid.UUID  `json:"processing_job_id"`
	ProcessedAt        time.Time  `json:"processed_at"`
}
