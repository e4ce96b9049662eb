package parser

import (
	"encoding/json"
	"reflect"
	"testing"
)

// doc decodes a JSON literal into the decoded-document typing Extract expects.
func doc(t *testing.T, raw string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("bad test document: %v", err)
	}
	return v
}

func TestExtract_PlaybookShape(t *testing.T) {
	res := Extract(doc(t, `{
		"plays": [{
			"tasks": [{
				"hosts": {
					"vcenter01": {
						"virtual_machines": [
							{"name": "web-01", "power_state": "poweredOn"},
							{"name": "web-02", "power_state": "poweredOff"}
						]
					}
				}
			}]
		}]
	}`))

	if len(res.VMs) != 2 {
		t.Fatalf("expected 2 VMs, got %d", len(res.VMs))
	}
	if res.VMs[0].PowerState != "poweredon" {
		t.Errorf("expected lower-cased power state, got %q", res.VMs[0].PowerState)
	}
}

func TestExtract_ResultsList(t *testing.T) {
	res := Extract(doc(t, `{
		"results": [
			{"vms": [{"name": "a"}]},
			{"vms": [{"name": "b"}]}
		]
	}`))

	if len(res.VMs) != 2 {
		t.Fatalf("expected 2 VMs, got %d", len(res.VMs))
	}
}

func TestExtract_ResultsSingleObject(t *testing.T) {
	res := Extract(doc(t, `{"results": {"vms": [{"name": "solo"}]}}`))

	if len(res.VMs) != 1 || res.VMs[0].Name != "solo" {
		t.Fatalf("expected one VM named solo, got %+v", res.VMs)
	}
}

func TestExtract_FactsShape(t *testing.T) {
	res := Extract(doc(t, `{
		"ansible_facts": {
			"vm_info": [{"name": "facts-vm", "num_cpu": 2}]
		}
	}`))

	if len(res.VMs) != 1 || res.VMs[0].Name != "facts-vm" {
		t.Fatalf("expected one VM named facts-vm, got %+v", res.VMs)
	}
}

func TestExtract_DirectObject(t *testing.T) {
	res := Extract(doc(t, `{"vms": [{"name": "direct"}]}`))

	if len(res.VMs) != 1 {
		t.Fatalf("expected 1 VM, got %d", len(res.VMs))
	}
}

func TestExtract_TopLevelList(t *testing.T) {
	res := Extract(doc(t, `[
		{"vms": [{"name": "a"}]},
		{"alarms": [{"name": "cpu-high"}]}
	]`))

	if len(res.VMs) != 1 || len(res.Alarms) != 1 {
		t.Fatalf("expected 1 VM and 1 alarm, got %d/%d", len(res.VMs), len(res.Alarms))
	}
}

func TestExtract_VMContainerPriorityOrder(t *testing.T) {
	// vm_info is probed before vms; only the first present container is read.
	res := Extract(doc(t, `{
		"vm_info": [{"name": "from-vm-info"}],
		"vms": [{"name": "from-vms"}]
	}`))

	if len(res.VMs) != 1 {
		t.Fatalf("expected 1 VM, got %d", len(res.VMs))
	}
	if res.VMs[0].Name != "from-vm-info" {
		t.Errorf("expected vm_info to win, got %q", res.VMs[0].Name)
	}
}

func TestExtract_VMMappingKeyAsDefaultName(t *testing.T) {
	res := Extract(doc(t, `{
		"virtual_machines": {
			"db-01": {"power_state": "poweredOn"},
			"db-02": {"name": "explicit", "power_state": "poweredOff"}
		}
	}`))

	if len(res.VMs) != 2 {
		t.Fatalf("expected 2 VMs, got %d", len(res.VMs))
	}
	names := map[string]bool{}
	for _, vm := range res.VMs {
		names[vm.Name] = true
	}
	if !names["db-01"] {
		t.Errorf("mapping key should default the name, got %v", names)
	}
	if !names["explicit"] {
		t.Errorf("explicit name should win over the key, got %v", names)
	}
}

func TestExtract_LeafLooksLikeVMAppendsDuplicate(t *testing.T) {
	// The leaf carries both a container and VM indicator keys; both paths
	// fire and the duplicate is kept.
	res := Extract(doc(t, `{
		"name": "leaf-vm",
		"power_state": "poweredOn",
		"vms": [{"name": "contained"}]
	}`))

	if len(res.VMs) != 2 {
		t.Fatalf("expected container VM plus leaf VM, got %d", len(res.VMs))
	}
}

func TestExtract_AlarmMappings(t *testing.T) {
	res := Extract(doc(t, `{
		"alarms": {
			"disk-full": {"severity": "CRITICAL"},
			"grouped": [
				{"name": "a1", "severity": "warning"},
				{"name": "a2", "severity": "info"}
			]
		}
	}`))

	if len(res.Alarms) != 3 {
		t.Fatalf("expected 3 alarms, got %d", len(res.Alarms))
	}
	byName := map[string]string{}
	for _, a := range res.Alarms {
		byName[a.Name] = a.Severity
	}
	if byName["disk-full"] != "critical" {
		t.Errorf("expected key-named alarm with lower-cased severity, got %v", byName)
	}
	if _, ok := byName["a1"]; !ok {
		t.Errorf("expected nested list alarms, got %v", byName)
	}
}

func TestExtract_BothScansRunOnEveryLeaf(t *testing.T) {
	res := Extract(doc(t, `{
		"vms": [{"name": "vm-1"}],
		"alarms": [{"name": "al-1"}]
	}`))

	if len(res.VMs) != 1 || len(res.Alarms) != 1 {
		t.Fatalf("expected both scans to fire, got %d VMs / %d alarms", len(res.VMs), len(res.Alarms))
	}
}

func TestExtract_MalformedLeafSkipsNotAborts(t *testing.T) {
	res := Extract(doc(t, `{
		"vms": [
			"not-an-object",
			{"name": "good"},
			42
		]
	}`))

	if len(res.VMs) != 1 || res.VMs[0].Name != "good" {
		t.Fatalf("expected only the well-formed record, got %+v", res.VMs)
	}
}

func TestExtract_UnrecognizedDocumentYieldsEmpty(t *testing.T) {
	res := Extract(doc(t, `{"unrelated": {"stuff": true}}`))

	if res.VMs == nil || res.Alarms == nil {
		t.Fatal("result slices must be non-nil")
	}
	if len(res.VMs) != 0 || len(res.Alarms) != 0 {
		t.Fatalf("expected empty result, got %d/%d", len(res.VMs), len(res.Alarms))
	}
}

func TestExtract_ScalarDocumentYieldsEmpty(t *testing.T) {
	res := Extract("just a string")

	if len(res.VMs) != 0 || len(res.Alarms) != 0 {
		t.Fatalf("expected empty result, got %d/%d", len(res.VMs), len(res.Alarms))
	}
}

func TestExtract_Idempotent(t *testing.T) {
	d := doc(t, `{
		"plays": [{"tasks": [{"hosts": {
			"h1": {
				"vm_info": {"vm-a": {"num_cpu": 4, "memory_mb": 8192}},
				"alarms": [{"name": "x", "severity": "ERROR", "triggered_time": "2024-01-15T10:30:00Z"}]
			}
		}}]}]
	}`)

	first := Extract(d)
	second := Extract(d)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("extraction is not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}
