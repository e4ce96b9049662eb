package parser

import "github.com/sandeepmv/vcflow/pkg/models"

// Container keys probed for VM payloads, in priority order. The first key
// present in a leaf determines the source; later keys are not consulted.
var vmContainerKeys = []string{
	"vm_info", "virtual_machines", "vms", "instances",
	"vm_facts", "vmware_vm_info", "vcenter_vm_info",
}

// Container keys probed for alarm payloads, in priority order.
var alarmContainerKeys = []string{
	"alarms", "vm_alarms", "alerts", "events",
	"alarm_info", "vmware_alarms",
}

// Keys whose presence marks a leaf object as itself being a VM record.
var vmIndicatorKeys = []string{
	"name", "uuid", "instance_uuid", "power_state",
	"num_cpu", "memory_mb", "guest_fullname",
}

// Extract recovers all VM and alarm records from a decoded document. The
// top-level shape is discriminated structurally: an Ansible playbook dump
// (plays → tasks → per-host results), a results list, an ansible_facts
// object, or a direct result object (or list of them). Every leaf found is
// scanned for both VM and alarm data; a malformed leaf yields fewer records
// but never aborts its siblings.
func Extract(doc any) *models.ExtractResult {
	res := &models.ExtractResult{
		VMs:    []models.VMRecord{},
		Alarms: []models.AlarmRecord{},
	}

	switch v := doc.(type) {
	case map[string]any:
		switch {
		case v["plays"] != nil:
			extractPlaybook(v, res)
		case v["results"] != nil:
			extractResults(v["results"], res)
		case v["ansible_facts"] != nil:
			if facts, ok := v["ansible_facts"].(map[string]any); ok {
				scanLeaf(facts, res)
			}
		default:
			scanLeaf(v, res)
		}
	case []any:
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				scanLeaf(m, res)
			}
		}
	}

	return res
}

// extractPlaybook descends the play → task → hosts nesting down to the
// per-host result objects.
func extractPlaybook(doc map[string]any, res *models.ExtractResult) {
	plays, _ := doc["plays"].([]any)
	for _, p := range plays {
		play, ok := p.(map[string]any)
		if !ok {
			continue
		}
		tasks, _ := play["tasks"].([]any)
		for _, t := range tasks {
			task, ok := t.(map[string]any)
			if !ok {
				continue
			}
			hosts, _ := task["hosts"].(map[string]any)
			for _, hr := range hosts {
				if leaf, ok := hr.(map[string]any); ok {
					scanLeaf(leaf, res)
				}
			}
		}
	}
}

// extractResults handles a top-level results array or single result object.
func extractResults(results any, res *models.ExtractResult) {
	switch v := results.(type) {
	case []any:
		for _, item := range v {
			if leaf, ok := item.(map[string]any); ok {
				scanLeaf(leaf, res)
			}
		}
	case map[string]any:
		scanLeaf(v, res)
	}
}

// scanLeaf runs both the VM and the alarm scan on one leaf result object.
// The scans are not mutually exclusive.
func scanLeaf(leaf map[string]any, res *models.ExtractResult) {
	scanVMs(leaf, res)
	scanAlarms(leaf, res)
}

func scanVMs(leaf map[string]any, res *models.ExtractResult) {
	for _, key := range vmContainerKeys {
		container, ok := leaf[key]
		if !ok {
			continue
		}
		switch v := container.(type) {
		case []any:
			for _, item := range v {
				if m, ok := item.(map[string]any); ok {
					res.VMs = append(res.VMs, normalizeVM(m, ""))
				}
			}
		case map[string]any:
			// A mapping of VMs keyed by name or id; the key becomes the
			// record name when the value carries none.
			for name, item := range v {
				if m, ok := item.(map[string]any); ok {
					res.VMs = append(res.VMs, normalizeVM(m, name))
				}
			}
		}
		break
	}

	// The leaf itself may be a VM record, in addition to any container it
	// carried. Duplicates across the two paths are preserved, not deduped.
	if looksLikeVM(leaf) {
		res.VMs = append(res.VMs, normalizeVM(leaf, ""))
	}
}

func scanAlarms(leaf map[string]any, res *models.ExtractResult) {
	for _, key := range alarmContainerKeys {
		container, ok := leaf[key]
		if !ok {
			continue
		}
		switch v := container.(type) {
		case []any:
			for _, item := range v {
				if m, ok := item.(map[string]any); ok {
					res.Alarms = append(res.Alarms, normalizeAlarm(m, ""))
				}
			}
		case map[string]any:
			for name, item := range v {
				switch inner := item.(type) {
				case map[string]any:
					res.Alarms = append(res.Alarms, normalizeAlarm(inner, name))
				case []any:
					// A named group holding a list of alarms.
					for _, a := range inner {
						if m, ok := a.(map[string]any); ok {
							res.Alarms = append(res.Alarms, normalizeAlarm(m, ""))
						}
					}
				}
			}
		}
		break
	}
}

// looksLikeVM reports whether a leaf object carries any VM indicator key.
func looksLikeVM(leaf map[string]any) bool {
	for _, key := range vmIndicatorKeys {
		if _, ok := leaf[key]; ok {
			return true
		}
	}
	return false
}
