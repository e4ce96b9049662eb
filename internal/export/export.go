package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sandeepmv/vcflow/internal/config"
	"github.com/sandeepmv/vcflow/pkg/models"
)

// Exporter writes cleaned record sets to the configured output encodings.
type Exporter struct {
	cfg config.ExportConfig
}

// New creates an Exporter.
func New(cfg config.ExportConfig) *Exporter {
	return &Exporter{cfg: cfg}
}

// Process cleans the extracted records, partitions them by environment when
// configured, writes each group to every configured encoding, and always
// writes one summary artifact for the job. Returns every artifact path
// produced, including those written before any error.
func (e *Exporter) Process(result *models.ExtractResult, job *models.Job) ([]string, error) {
	now := time.Now()
	timestamp := now.Format("20060102_150405")
	tag := job.Tag()

	vms := CleanVMs(result.VMs, tag, job.ID, now)
	alarms := CleanAlarms(result.Alarms, tag, job.ID, now)

	var outputs []string

	if len(vms) > 0 {
		for _, group := range partitionVMs(vms, e.cfg.SeparateByEnvironment) {
			base := fmt.Sprintf("vcenter_vms_%s_%s_%s", group.client, group.environment, timestamp)
			files, err := e.writeVMGroup(group.vms, base)
			outputs = append(outputs, files...)
			if err != nil {
				return outputs, err
			}
		}
	}

	if len(alarms) > 0 {
		for _, group := range partitionAlarms(alarms, e.cfg.SeparateByEnvironment) {
			base := fmt.Sprintf("vcenter_alarms_%s_%s_%s", group.client, group.environment, timestamp)
			files, err := e.writeAlarmGroup(group.alarms, base)
			outputs = append(outputs, files...)
			if err != nil {
				return outputs, err
			}
		}
	}

	summaryPath, err := e.writeSummary(vms, alarms, job, timestamp, now)
	if summaryPath != "" {
		outputs = append(outputs, summaryPath)
	}
	if err != nil {
		return outputs, err
	}

	return outputs, nil
}

type vmGroup struct {
	environment string
	client      string
	vms         []models.CleanVM
}

type alarmGroup struct {
	environment string
	client      string
	alarms      []models.CleanAlarm
}

// partitionVMs groups records by environment for separate artifact sets.
// Records with no environment value are dropped from the grouping. With
// separation disabled the whole collection forms a single group.
func partitionVMs(vms []models.CleanVM, separate bool) []vmGroup {
	if !separate {
		return []vmGroup{{environment: vms[0].Environment, client: vms[0].ClientName, vms: vms}}
	}
	var order []string
	byEnv := map[string][]models.CleanVM{}
	for _, vm := range vms {
		if vm.Environment == "" {
			continue
		}
		if _, seen := byEnv[vm.Environment]; !seen {
			order = append(order, vm.Environment)
		}
		byEnv[vm.Environment] = append(byEnv[vm.Environment], vm)
	}
	groups := make([]vmGroup, 0, len(order))
	for _, env := range order {
		members := byEnv[env]
		groups = append(groups, vmGroup{environment: env, client: members[0].ClientName, vms: members})
	}
	return groups
}

func partitionAlarms(alarms []models.CleanAlarm, separate bool) []alarmGroup {
	if !separate {
		return []alarmGroup{{environment: alarms[0].Environment, client: alarms[0].ClientName, alarms: alarms}}
	}
	var order []string
	byEnv := map[string][]models.CleanAlarm{}
	for _, a := range alarms {
		if a.Environment == "" {
			continue
		}
		if _, seen := byEnv[a.Environment]; !seen {
			order = append(order, a.Environment)
		}
		byEnv[a.Environment] = append(byEnv[a.Environment], a)
	}
	groups := make([]alarmGroup, 0, len(order))
	for _, env := range order {
		members := byEnv[env]
		groups = append(groups, alarmGroup{environment: env, client: members[0].ClientName, alarms: members})
	}
	return groups
}

func (e *Exporter) writeVMGroup(vms []models.CleanVM, base string) ([]string, error) {
	var files []string
	for _, format := range e.cfg.Formats {
		switch format {
		case "csv":
			path := filepath.Join(e.cfg.OutputDir, base+".csv")
			if err := writeCSV(path, vmHeaders, vmRows(vms)); err != nil {
				return files, fmt.Errorf("write vm csv: %w", err)
			}
			files = append(files, path)
		case "excel":
			path := filepath.Join(e.cfg.OutputDir, base+".xlsx")
			if err := writeExcel(path, "VM_Details", vmHeaders, vmRows(vms)); err != nil {
				return files, fmt.Errorf("write vm excel: %w", err)
			}
			files = append(files, path)
		case "json":
			path := filepath.Join(e.cfg.OutputDir, base+".json")
			if err := writeJSON(path, vms); err != nil {
				return files, fmt.Errorf("write vm json: %w", err)
			}
			files = append(files, path)
		}
	}
	return files, nil
}

func (e *Exporter) writeAlarmGroup(alarms []models.CleanAlarm, base string) ([]string, error) {
	var files []string
	for _, format := range e.cfg.Formats {
		switch format {
		case "csv":
			path := filepath.Join(e.cfg.OutputDir, base+".csv")
			if err := writeCSV(path, alarmHeaders, alarmRows(alarms)); err != nil {
				return files, fmt.Errorf("write alarm csv: %w", err)
			}
			files = append(files, path)
		case "excel":
			path := filepath.Join(e.cfg.OutputDir, base+".xlsx")
			if err := writeExcel(path, "VM_Alarms", alarmHeaders, alarmRows(alarms)); err != nil {
				return files, fmt.Errorf("write alarm excel: %w", err)
			}
			files = append(files, path)
		case "json":
			path := filepath.Join(e.cfg.OutputDir, base+".json")
			if err := writeJSON(path, alarms); err != nil {
				return files, fmt.Errorf("write alarm json: %w", err)
			}
			files = append(files, path)
		}
	}
	return files, nil
}

var vmHeaders = []string{
	"name", "uuid", "power_state", "cpu_count", "memory_mb", "disk_gb",
	"network_count", "guest_os", "host_name", "cluster_name", "datacenter_name",
	"memory_gb", "cpu_memory_ratio", "resource_score", "resource_category",
	"is_powered_on", "environment", "client_name", "processing_job_id", "processed_at",
}

func vmRows(vms []models.CleanVM) [][]string {
	rows := make([][]string, 0, len(vms))
	for _, vm := range vms {
		rows = append(rows, []string{
			vm.Name,
			vm.UUID,
			vm.PowerState,
			strconv.Itoa(vm.CPUCount),
			strconv.Itoa(vm.MemoryMB),
			formatFloat(vm.DiskGB),
			strconv.Itoa(vm.NetworkCount),
			vm.GuestOS,
			vm.HostName,
			vm.ClusterName,
			vm.DatacenterName,
			formatFloat(vm.MemoryGB),
			formatFloat(vm.CPUMemoryRatio),
			formatFloat(vm.ResourceScore),
			vm.ResourceCategory,
			strconv.FormatBool(vm.IsPoweredOn),
			vm.Environment,
			vm.ClientName,
			vm.JobID.String(),
			vm.ProcessedAt.UTC().Format(time.RFC3339),
		})
	}
	return rows
}

var alarmHeaders = []string{
	"name", "description", "severity", "severity_normalized", "priority_score",
	"status", "vm_name", "triggered_time", "days_since_triggered", "acknowledged",
	"environment", "client_name", "processing_job_id", "processed_at",
}

func alarmRows(alarms []models.CleanAlarm) [][]string {
	rows := make([][]string, 0, len(alarms))
	for _, a := range alarms {
		triggered := ""
		if a.TriggeredTime != nil {
			triggered = a.TriggeredTime.UTC().Format(time.RFC3339)
		}
		days := ""
		if a.DaysSinceTriggered != nil {
			days = strconv.Itoa(*a.DaysSinceTriggered)
		}
		rows = append(rows, []string{
			a.Name,
			a.Description,
			a.Severity,
			a.SeverityNormalized,
			strconv.Itoa(a.PriorityScore),
			a.Status,
			a.VMName,
			triggered,
			days,
			strconv.FormatBool(a.Acknowledged),
			a.Environment,
			a.ClientName,
			a.JobID.String(),
			a.ProcessedAt.UTC().Format(time.RFC3339),
		})
	}
	return rows
}

func writeCSV(path string, headers []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(headers); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
