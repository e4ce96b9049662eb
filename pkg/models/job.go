package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Job tracks one source file through its processing lifecycle. The watcher
// (or the manual trigger API) creates it at pending; the scheduler claims it,
// runs extraction and export, and moves it to a terminal status. At most one
// job in {pending, processing} may exist per filepath at any time.
type Job struct {
	ID           uuid.UUID  `db:"id"            json:"id"`
	Filename     string     `db:"filename"      json:"filename"`
	Filepath     string     `db:"filepath"      json:"filepath"`
	Status       string     `db:"status"        json:"status"`
	Environment  *string    `db:"environment"   json:"environment,omitempty"`
	ClientName   *string    `db:"client_name"   json:"client_name,omitempty"`
	Datacenter   *string    `db:"datacenter"    json:"datacenter,omitempty"`
	ErrorMessage *string    `db:"error_message" json:"error_message,omitempty"`
	VMCount      int        `db:"vm_count"      json:"vm_count"`
	AlarmCount   int        `db:"alarm_count"   json:"alarm_count"`
	OutputFiles  []string   `db:"output_files"  json:"output_files,omitempty"`
	StartedAt    *time.Time `db:"started_at"    json:"started_at,omitempty"`
	CompletedAt  *time.Time `db:"completed_at"  json:"completed_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at"    json:"created_at"`
}

// Terminal reports whether the job has reached a final status.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Tag returns the job's environment tag with unset fields as "unknown".
func (j *Job) Tag() EnvironmentTag {
	tag := EnvironmentTag{Environment: "unknown", Client: "unknown", Datacenter: "unknown"}
	if j.Environment != nil && *j.Environment != "" {
		tag.Environment = *j.Environment
	}
	if j.ClientName != nil && *j.ClientName != "" {
		tag.Client = *j.ClientName
	}
	if j.Datacenter != nil && *j.Datacenter != "" {
		tag.Datacenter = *j.Datacenter
	}
	return tag
}

// EnvironmentTag is the {environment, client, datacenter} triple resolved
// once per job. Downstream records inherit it; once set on a job it is never
// overwritten by later stages.
type EnvironmentTag struct {
	Environment string `json:"environment"`
	Client      string `json:"client"`
	Datacenter  string `json:"datacenter"`
}
