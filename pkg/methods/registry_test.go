package methods

import (
	"encoding/json"
	"testing"
)

func TestRegistryNewAppliesDefaults(t *testing.T) {
	m, ok := Default.New("NCNR_TransferWithRinse")
	if !ok {
		t.Fatal("transfer not registered")
	}
	transfer, ok := m.(*TransferWithRinse)
	if !ok {
		t.Fatalf("wrong type %T", m)
	}
	if transfer.FlowRate != 2.5 || !transfer.UseLiquidLevelDetection {
		t.Fatalf("defaults not applied: %+v", transfer)
	}
	if transfer.ID == "" {
		t.Fatal("missing id")
	}
}

func TestRegistryUnmarshalDispatch(t *testing.T) {
	payload := []byte(`{
		"method_name": "NCNR_MixWithRinse",
		"Target": {"rack_id": "Mix", "well_number": 3},
		"Volume": 1.8,
		"Repeats": 5
	}`)
	m, err := Default.Unmarshal(payload)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	mix, ok := m.(*MixWithRinse)
	if !ok {
		t.Fatalf("wrong type %T", m)
	}
	if mix.Volume != 1.8 || mix.Repeats != 5 {
		t.Fatalf("fields not decoded: %+v", mix)
	}
	if mix.FlowRate != 2.5 {
		t.Fatalf("unset field lost its default: %+v", mix)
	}
	if mix.Target.RackID != "Mix" || mix.Target.WellNumber != 3 {
		t.Fatalf("target not decoded: %+v", mix.Target)
	}
}

func TestRegistryUnmarshalUnknownRoundTrips(t *testing.T) {
	payload := []byte(`{"method_name":"FutureMethod","mystery_field":42}`)
	m, err := Default.Unmarshal(payload)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	u, ok := m.(*Unknown)
	if !ok {
		t.Fatalf("wrong type %T", m)
	}
	out, err := json.Marshal(u)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if got["mystery_field"] != float64(42) {
		t.Fatalf("payload not preserved: %v", got)
	}
}

func TestRegistryUnmarshalList(t *testing.T) {
	payload := []byte(`[
		{"method_name": "NCNR_Sleep", "Time": 5},
		{"method_name": "QCMDRecord", "record_time": 30}
	]`)
	ms, err := Default.UnmarshalList(payload)
	if err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(ms) != 2 {
		t.Fatalf("decoded %d methods", len(ms))
	}
	if _, ok := ms[0].(*Sleep); !ok {
		t.Fatalf("first method %T", ms[0])
	}
	if rec, ok := ms[1].(*QCMDRecord); !ok || rec.RecordTime != 30 {
		t.Fatalf("second method %T %+v", ms[1], ms[1])
	}
}

func TestClusterJSONRoundTrip(t *testing.T) {
	cluster := NewMethodCluster(NewSleep(), NewPrime())
	data, err := json.Marshal(cluster)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	m, err := Default.Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got, ok := m.(*MethodCluster)
	if !ok {
		t.Fatalf("wrong type %T", m)
	}
	if len(got.Methods) != 2 {
		t.Fatalf("children = %d", len(got.Methods))
	}
	if _, ok := got.Methods[1].(*Prime); !ok {
		t.Fatalf("second child %T", got.Methods[1])
	}
}

func TestSchemaListsOwnFieldsOnly(t *testing.T) {
	var def *Definition
	for _, d := range Default.Definitions() {
		if d.MethodName == "NCNR_TransferWithRinse" {
			dd := d
			def = &dd
			break
		}
	}
	if def == nil {
		t.Fatal("transfer definition missing")
	}
	props, ok := def.Schema["properties"].(map[string]any)
	if !ok {
		t.Fatalf("schema shape: %+v", def.Schema)
	}
	if _, ok := props["Volume"]; !ok {
		t.Fatal("schema missing Volume")
	}
	if _, ok := props["id"]; ok {
		t.Fatal("schema leaked lifecycle field")
	}
	if def.DisplayName != "Transfer With Rinse" {
		t.Fatalf("display name = %q", def.DisplayName)
	}
}

func TestDisplayableExcludesInternalMethods(t *testing.T) {
	for _, d := range Default.Displayable() {
		if d.MethodName == "LHMethodCluster" || d.MethodName == "SetWellID" {
			t.Fatalf("%s should not be displayable", d.MethodName)
		}
	}
}
