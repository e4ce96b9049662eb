package models

import "time"

// VMRecord is a virtual machine recovered from a source document and
// normalized to a canonical field set. Numeric fields stay nil when the
// source did not carry a usable value; defaulting to zero happens in the
// cleaning stage, not here.
type VMRecord struct {
	Name           string   `json:"name"`
	UUID           string   `json:"uuid,omitempty"`
	PowerState     string   `json:"power_state"`
	CPUCount       *int     `json:"cpu_count,omitempty"`
	MemoryMB       *int     `json:"memory_mb,omitempty"`
	DiskGB         *float64 `json:"disk_gb,omitempty"`
	NetworkCount   *int     `json:"network_count,omitempty"`
	GuestOS        string   `json:"guest_os,omitempty"`
	HostName       string   `json:"host_name,omitempty"`
	ClusterName    string   `json:"cluster_name,omitempty"`
	DatacenterName string   `json:"datacenter_name,omitempty"`
}

// AlarmRecord is a vCenter alarm recovered from a source document.
// TriggeredTime is nil when the source value was absent or unparseable.
type AlarmRecord struct {
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Severity      string     `json:"severity"`
	Status        string     `json:"status"`
	VMName        string     `json:"vm_name"`
	TriggeredTime *time.Time `json:"triggered_time,omitempty"`
	Acknowledged  bool       `json:"acknowledged"`
}

// ExtractResult is the output of extraction: every VM and alarm recovered
// from one document. Empty slices are valid output, not a failure.
type ExtractResult struct {
	VMs    []VMRecord    `json:"vms"`
	Alarms []AlarmRecord `json:"alarms"`
}
