package parser

import (
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/sandeepmv/vcflow/pkg/models"
)

// normalizeVM maps one raw VM object onto the canonical record shape.
// defaultName is used when the object carries no name alias (it is the
// mapping key for VMs found in a keyed container).
func normalizeVM(m map[string]any, defaultName string) models.VMRecord {
	vm := models.VMRecord{}

	vm.Name = stringField(m, "name", "vm_name", "guest_name")
	if vm.Name == "" {
		vm.Name = defaultName
	}
	if vm.Name == "" {
		vm.Name = "Unknown"
	}

	vm.UUID = stringField(m, "uuid", "instance_uuid", "vm_uuid")

	if ps := stringField(m, "power_state", "runtime.powerState"); ps != "" {
		vm.PowerState = strings.ToLower(ps)
	} else {
		vm.PowerState = "unknown"
	}

	vm.CPUCount = intField(m, "num_cpu", "cpu_count", "config.hardware.numCPU")
	vm.MemoryMB = intField(m, "memory_mb", "memory_size_mb", "config.hardware.memoryMB")
	vm.DiskGB = diskGB(m)
	vm.NetworkCount = networkCount(m)
	vm.GuestOS = stringField(m, "guest_fullname", "guest_os", "config.guestFullName")
	vm.HostName = stringField(m, "host_name", "runtime.host")
	vm.ClusterName = stringField(m, "cluster_name", "cluster")
	vm.DatacenterName = stringField(m, "datacenter_name", "datacenter")

	return vm
}

// normalizeAlarm maps one raw alarm object onto the canonical record shape.
func normalizeAlarm(m map[string]any, defaultName string) models.AlarmRecord {
	a := models.AlarmRecord{}

	a.Name = stringField(m, "name", "alarm_name")
	if a.Name == "" {
		a.Name = defaultName
	}
	if a.Name == "" {
		a.Name = "Unknown Alarm"
	}

	a.Description = stringField(m, "description", "alarm_description")

	if sev := stringField(m, "severity", "alarm_severity"); sev != "" {
		a.Severity = strings.ToLower(sev)
	} else {
		a.Severity = "unknown"
	}

	if st := stringField(m, "status", "alarm_status"); st != "" {
		a.Status = strings.ToLower(st)
	} else {
		a.Status = "unknown"
	}

	a.VMName = stringField(m, "vm_name", "entity_name", "object_name")
	if a.VMName == "" {
		a.VMName = "Unknown VM"
	}

	a.TriggeredTime = timeField(m, "triggered_time", "time", "created_time")
	a.Acknowledged = boolField(m, "acknowledged")

	return a
}

// diskGB takes a direct disk size when present, otherwise sums a disk list's
// size_kb entries (1 GB = 1024*1024 KB). Absent both, stays nil.
func diskGB(m map[string]any) *float64 {
	if v := floatField(m, "disk_gb", "disk_size_gb"); v != nil {
		return v
	}
	disks, ok := m["disk"].([]any)
	if !ok {
		return nil
	}
	var totalKB float64
	for _, d := range disks {
		if dm, ok := d.(map[string]any); ok {
			if kb, ok := toFloat(dm["size_kb"]); ok {
				totalKB += kb
			}
		}
	}
	if totalKB <= 0 {
		return nil
	}
	gb := totalKB / (1024 * 1024)
	return &gb
}

// networkCount resolves a direct count or falls back to the length of a
// networks list.
func networkCount(m map[string]any) *int {
	if v := intField(m, "network_count"); v != nil {
		return v
	}
	if nets, ok := m["networks"].([]any); ok {
		n := len(nets)
		return &n
	}
	return nil
}

// stringField returns the first alias bound to a non-empty string.
func stringField(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// intField returns the first alias whose value coerces to an integer.
func intField(m map[string]any, keys ...string) *int {
	for _, key := range keys {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		if f, ok := toFloat(v); ok {
			n := int(f)
			return &n
		}
	}
	return nil
}

// floatField returns the first alias whose value coerces to a float.
func floatField(m map[string]any, keys ...string) *float64 {
	for _, key := range keys {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		if f, ok := toFloat(v); ok {
			return &f
		}
	}
	return nil
}

// timeField parses the first alias that yields a timestamp. Dateparse covers
// the heterogeneous formats the exports carry; any parse failure leaves the
// field nil rather than surfacing an error.
func timeField(m map[string]any, keys ...string) *time.Time {
	for _, key := range keys {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		switch val := v.(type) {
		case time.Time:
			return &val
		case string:
			if val == "" {
				continue
			}
			t, err := dateparse.ParseAny(val)
			if err != nil {
				return nil
			}
			return &t
		}
	}
	return nil
}

func boolField(m map[string]any, key string) bool {
	switch v := m[key].(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(v)
		return err == nil && b
	case float64:
		return v != 0
	case int:
		return v != 0
	default:
		return false
	}
}

// toFloat coerces the numeric types both decoders produce, plus numeric
// strings.
func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
