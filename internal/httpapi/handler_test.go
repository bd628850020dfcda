package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/roadmap-automation/lh-manager-sub000/internal/lhinterface"
	"github.com/roadmap-automation/lh-manager-sub000/internal/scheduler"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/bedlayout"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/devices"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/methods"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/samples"
)

func testLayout(t *testing.T) *bedlayout.LHBedLayout {
	t.Helper()
	layout := bedlayout.DefaultLayout()
	err := layout.AddWell(bedlayout.RackSolvent, bedlayout.Well{
		Solution: bedlayout.Solution{
			Composition: bedlayout.Composition{Solvents: []bedlayout.Solvent{{Name: "H2O", Fraction: 1.0}}},
			Volume:      10.0,
		},
		WellNumber: 1,
	})
	if err != nil {
		t.Fatalf("add solvent well: %v", err)
	}
	if err := layout.AddWell(bedlayout.RackMix, bedlayout.Well{WellNumber: 1}); err != nil {
		t.Fatalf("add mix well: %v", err)
	}
	return layout
}

func testTransfer() *methods.TransferWithRinse {
	m := methods.NewTransferWithRinse()
	m.Source = bedlayout.WellLocation{RackID: bedlayout.RackSolvent, WellNumber: 1}
	m.Target = bedlayout.WellLocation{RackID: bedlayout.RackMix, WellNumber: 1}
	m.Volume = 0.5
	return m
}

func newTestHandler(t *testing.T) (*Handler, *samples.SampleContainer, *lhinterface.Interface) {
	t.Helper()
	layout := testLayout(t)
	container := samples.NewSampleContainer()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	iface := lhinterface.NewInterface(layout, nil, nil, logger)
	sched := scheduler.New(scheduler.Options{
		Runner:    scheduler.NewRunnerClient("http://127.0.0.1:1", nil),
		Container: container,
		Layout:    layout,
		Devices:   devices.NewDefaultManager(),
		Logger:    logger,
	})
	return NewHandler(iface, sched, container, layout, logger), container, iface
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestVendorSampleListFlow(t *testing.T) {
	h, _, iface := newTestHandler(t)

	job := lhinterface.NewJob("acid wash", "cleanup", []methods.Method{testTransfer()})
	if err := iface.ActivateJob(context.Background(), job); err != nil {
		t.Fatalf("activate job: %v", err)
	}

	rec := doJSON(t, h, http.MethodGet, "/LH/GetListofSampleLists", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d: %s", rec.Code, rec.Body.String())
	}
	var listing struct {
		SampleLists []lhinterface.SampleList `json:"sampleLists"`
	}
	decodeBody(t, rec, &listing)
	if len(listing.SampleLists) != 1 {
		t.Fatalf("sample list count = %d, want 1", len(listing.SampleLists))
	}
	if listing.SampleLists[0].Columns != nil {
		t.Fatal("header listing carries columns")
	}
	lhID := listing.SampleLists[0].ID

	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/LH/GetSampleList/%d", lhID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("full list status = %d: %s", rec.Code, rec.Body.String())
	}
	var full struct {
		SampleList lhinterface.SampleList `json:"sampleList"`
	}
	decodeBody(t, rec, &full)
	if len(full.SampleList.Columns) == 0 {
		t.Fatal("full listing carries no columns")
	}

	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/LH/GetSampleList/%d", lhID+7), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("mismatched id status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/LH/PutSampleListValidation/%d", lhID), map[string]any{
		"validation": map[string]any{"validationType": "SUCCESS"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("validation status = %d: %s", rec.Code, rec.Body.String())
	}
	if iface.State() != lhinterface.StateBusy {
		t.Fatalf("state = %s after validation, want BUSY", iface.State())
	}

	rec = doJSON(t, h, http.MethodPost, "/LH/PutSampleData/", map[string]any{
		"sampleData": map[string]any{
			"runData": []map[string]any{{
				"sampleListID": lhID,
				"iteration":    1,
				"methodName":   "Transfer With Rinse",
			}},
			"resultNotifications": map[string]any{
				"notifications": map[string]string{"line 1": "method completed successfully"},
			},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("sample data status = %d: %s", rec.Code, rec.Body.String())
	}
	if iface.State() != lhinterface.StateUp {
		t.Fatalf("state = %s after successful run, want UP", iface.State())
	}
}

func TestPutValidationWithoutActiveJob(t *testing.T) {
	h, _, _ := newTestHandler(t)
	rec := doJSON(t, h, http.MethodPost, "/LH/PutSampleListValidation/1", map[string]any{
		"validation": map[string]any{"validationType": "SUCCESS"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAddRunAndStopSample(t *testing.T) {
	h, _, _ := newTestHandler(t)

	sample := samples.NewSample("buffer prep", "")
	sample.Stages[samples.StagePrep].AddMethod(methods.NewQCMDRecord())
	rec := doJSON(t, h, http.MethodPost, "/GUI/AddSample", sample)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add sample status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPost, "/GUI/RunSample", map[string]any{
		"sample_name": "buffer prep",
		"stage":       string(samples.StagePrep),
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("run sample status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/GUI/GetStatus", nil)
	var st struct {
		InterfaceState string `json:"interface_state"`
		PendingTasks   int    `json:"pending_tasks"`
	}
	decodeBody(t, rec, &st)
	if st.PendingTasks != 1 {
		t.Fatalf("pending tasks = %d, want 1", st.PendingTasks)
	}
	if st.InterfaceState != string(lhinterface.StateUp) {
		t.Fatalf("interface state = %s, want UP", st.InterfaceState)
	}

	rec = doJSON(t, h, http.MethodPost, "/GUI/StopStage", map[string]any{
		"sample_id": sample.ID,
		"stage":     string(samples.StagePrep),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("stop stage status = %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, h, http.MethodGet, "/GUI/GetStatus", nil)
	decodeBody(t, rec, &st)
	if st.PendingTasks != 0 {
		t.Fatalf("pending tasks = %d after stop, want 0", st.PendingTasks)
	}
}

func TestRunSampleRequiresStage(t *testing.T) {
	h, _, _ := newTestHandler(t)
	rec := doJSON(t, h, http.MethodPost, "/GUI/RunSample", map[string]any{"sample_name": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAddSampleRejectsDuplicateID(t *testing.T) {
	h, container, _ := newTestHandler(t)
	sample := samples.NewSample("first", "")
	if err := container.AddSample(sample); err != nil {
		t.Fatalf("seed sample: %v", err)
	}
	rec := doJSON(t, h, http.MethodPost, "/GUI/AddSample", sample)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestDryRunReportsQueuedErrors(t *testing.T) {
	h, container, _ := newTestHandler(t)

	sample := samples.NewSample("overdraw", "")
	bad := testTransfer()
	bad.Volume = 50.0
	sample.Stages[samples.StagePrep].AddMethod(bad)
	if err := container.AddSample(sample); err != nil {
		t.Fatalf("add sample: %v", err)
	}
	container.DryRunQueue.AddItem(samples.Item{ID: sample.ID, Stage: samples.StagePrep})

	rec := doJSON(t, h, http.MethodPost, "/GUI/DryRun", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dry run status = %d: %s", rec.Code, rec.Body.String())
	}
	var result struct {
		Errors []samples.DryRunError `json:"errors"`
	}
	decodeBody(t, rec, &result)
	if len(result.Errors) != 1 {
		t.Fatalf("dry run error count = %d, want 1", len(result.Errors))
	}
	if result.Errors[0].SampleName != "overdraw" {
		t.Fatalf("dry run error sample = %q", result.Errors[0].SampleName)
	}
}

func TestGetSamplesHoldsStateLock(t *testing.T) {
	h, container, _ := newTestHandler(t)
	if err := container.AddSample(samples.NewSample("visible", "")); err != nil {
		t.Fatalf("add sample: %v", err)
	}
	rec := doJSON(t, h, http.MethodGet, "/GUI/GetSamples", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Samples samples.SampleContainer `json:"samples"`
	}
	decodeBody(t, rec, &payload)
	if len(payload.Samples.Samples) != 1 {
		t.Fatalf("sample count = %d, want 1", len(payload.Samples.Samples))
	}
}
