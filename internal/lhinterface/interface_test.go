package lhinterface

import (
	"context"
	"errors"
	"testing"

	"github.com/roadmap-automation/lh-manager-sub000/internal/persistence"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/bedlayout"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/methods"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/waste"
)

func testLayout(t *testing.T) *bedlayout.LHBedLayout {
	t.Helper()
	layout := bedlayout.DefaultLayout()
	err := layout.AddWell(bedlayout.RackSolvent, bedlayout.Well{
		Solution: bedlayout.Solution{
			Composition: bedlayout.Composition{Solvents: []bedlayout.Solvent{{Name: "D2O", Fraction: 1.0}}},
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

func testTransfer(volume float64) *methods.TransferWithRinse {
	m := methods.NewTransferWithRinse()
	m.Source = bedlayout.WellLocation{RackID: bedlayout.RackSolvent, WellNumber: 1}
	m.Target = bedlayout.WellLocation{RackID: bedlayout.RackMix, WellNumber: 1}
	m.Volume = volume
	return m
}

func successReport(name string) ResultReport {
	return ResultReport{
		MethodName:    name,
		Notifications: map[string]string{"note": "method completed successfully"},
	}
}

func failReport(name string) ResultReport {
	return ResultReport{
		MethodName:    name,
		Notifications: map[string]string{"note": "aspiration error on channel 1"},
	}
}

func TestActivateAssignsMonotonicLHID(t *testing.T) {
	ctx := context.Background()
	layout := testLayout(t)
	history := persistence.NewMemoryStores()
	iface := NewInterface(layout, nil, history, nil)

	for want := 1; want <= 3; want++ {
		job := NewJob("s", "", []methods.Method{testTransfer(0.5)})
		if err := iface.ActivateJob(ctx, job); err != nil {
			t.Fatalf("activate %d: %v", want, err)
		}
		if job.LHID == nil || *job.LHID != want {
			t.Fatalf("LH_id = %v, want %d", job.LHID, want)
		}
		if err := iface.UpdateJobResult(ctx, job.ID, successReport("Transfer With Rinse")); err != nil {
			t.Fatalf("result %d: %v", want, err)
		}
	}
	if iface.State() != StateUp {
		t.Fatalf("state = %s, want UP", iface.State())
	}
}

func TestActivateWhileBusyRejected(t *testing.T) {
	ctx := context.Background()
	iface := NewInterface(testLayout(t), nil, persistence.NewMemoryStores(), nil)

	first := NewJob("s", "", []methods.Method{testTransfer(0.5)})
	if err := iface.ActivateJob(ctx, first); err != nil {
		t.Fatalf("activate: %v", err)
	}
	second := NewJob("s2", "", []methods.Method{testTransfer(0.5)})
	if err := iface.ActivateJob(ctx, second); !errors.Is(err, ErrInterfaceBusy) {
		t.Fatalf("err = %v, want ErrInterfaceBusy", err)
	}
}

func TestValidationFailLatchesError(t *testing.T) {
	ctx := context.Background()
	iface := NewInterface(testLayout(t), nil, persistence.NewMemoryStores(), nil)

	job := NewJob("s", "", []methods.Method{testTransfer(0.5)})
	if err := iface.ActivateJob(ctx, job); err != nil {
		t.Fatalf("activate: %v", err)
	}
	err := iface.UpdateJobValidation(ctx, job.ID, Validation{ValidationType: ValidationFail, Message: "bad zone"})
	if err != nil {
		t.Fatalf("validation: %v", err)
	}
	if iface.State() != StateError {
		t.Fatalf("state = %s, want ERROR", iface.State())
	}
	if iface.ActiveJob() != nil {
		t.Fatal("job not deactivated on validation failure")
	}
	iface.ResetErrorState()
	if iface.State() != StateUp {
		t.Fatalf("state after reset = %s, want UP", iface.State())
	}
}

func TestResultSuccessExecutesMethodsAndWaste(t *testing.T) {
	ctx := context.Background()
	layout := testLayout(t)
	wasteMgr := &waste.Manager{Layout: waste.NewWasteLayout()}
	iface := NewInterface(layout, wasteMgr, persistence.NewMemoryStores(), nil)

	job := NewJob("water sample", "", []methods.Method{testTransfer(2.0)})
	if err := iface.ActivateJob(ctx, job); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if iface.State() != StateBusy {
		t.Fatalf("state = %s, want BUSY", iface.State())
	}
	if err := iface.UpdateJobResult(ctx, job.ID, successReport("Transfer With Rinse")); err != nil {
		t.Fatalf("result: %v", err)
	}

	source, _, err := layout.GetWellAndRack(bedlayout.RackSolvent, 1)
	if err != nil {
		t.Fatalf("well lookup: %v", err)
	}
	if source.Volume != 7.9 {
		t.Fatalf("source volume = %g, want 7.9", source.Volume)
	}
	carboy := wasteMgr.Layout.Carboy()
	if carboy.Volume != 1.1 {
		t.Fatalf("carboy volume = %g, want 1.1", carboy.Volume)
	}
	if iface.State() != StateUp {
		t.Fatalf("state = %s, want UP", iface.State())
	}
}

func TestResultIncompleteKeepsSlotBusy(t *testing.T) {
	ctx := context.Background()
	iface := NewInterface(testLayout(t), nil, persistence.NewMemoryStores(), nil)

	job := NewJob("s", "", []methods.Method{testTransfer(0.5), testTransfer(0.25)})
	if err := iface.ActivateJob(ctx, job); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := iface.UpdateJobResult(ctx, job.ID, successReport("Transfer With Rinse")); err != nil {
		t.Fatalf("result: %v", err)
	}
	if got := job.ResultStatus(); got != ResultIncomplete {
		t.Fatalf("result status = %s, want INCOMPLETE", got)
	}
	if iface.State() != StateBusy {
		t.Fatalf("state = %s, want BUSY", iface.State())
	}
}

func TestResultFailLatchesError(t *testing.T) {
	ctx := context.Background()
	iface := NewInterface(testLayout(t), nil, persistence.NewMemoryStores(), nil)

	job := NewJob("s", "", []methods.Method{testTransfer(0.5)})
	if err := iface.ActivateJob(ctx, job); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := iface.UpdateJobResult(ctx, job.ID, failReport("Transfer With Rinse")); err != nil {
		t.Fatalf("result: %v", err)
	}
	if iface.State() != StateError {
		t.Fatalf("state = %s, want ERROR", iface.State())
	}
}

func TestReportForWrongJobRejected(t *testing.T) {
	ctx := context.Background()
	iface := NewInterface(testLayout(t), nil, persistence.NewMemoryStores(), nil)

	job := NewJob("s", "", []methods.Method{testTransfer(0.5)})
	if err := iface.ActivateJob(ctx, job); err != nil {
		t.Fatalf("activate: %v", err)
	}
	err := iface.UpdateJobResult(ctx, "other-job", successReport("x"))
	if !errors.Is(err, ErrJobMismatch) {
		t.Fatalf("err = %v, want ErrJobMismatch", err)
	}
}

func TestResubmitBumpsLHID(t *testing.T) {
	ctx := context.Background()
	iface := NewInterface(testLayout(t), nil, persistence.NewMemoryStores(), nil)

	job := NewJob("s", "", []methods.Method{testTransfer(0.5)})
	if err := iface.ActivateJob(ctx, job); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := iface.ResubmitActiveJob(ctx); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if job.LHID == nil || *job.LHID != 2 {
		t.Fatalf("LH_id after resubmit = %v, want 2", job.LHID)
	}
}

func TestSampleListNullFillsColumnUnion(t *testing.T) {
	ctx := context.Background()
	layout := testLayout(t)
	iface := NewInterface(layout, nil, persistence.NewMemoryStores(), nil)

	sleep := methods.NewSleep()
	sleep.Time = 5.0
	job := NewJob("mixed", "two kinds", []methods.Method{testTransfer(1.0), sleep})
	if err := iface.ActivateJob(ctx, job); err != nil {
		t.Fatalf("activate: %v", err)
	}

	headers := iface.SampleLists()
	if len(headers) != 1 || headers[0].Columns != nil {
		t.Fatalf("header listing = %+v", headers)
	}

	list, err := iface.SampleList(*job.LHID)
	if err != nil {
		t.Fatalf("sample list: %v", err)
	}
	if len(list.Columns) != 2 {
		t.Fatalf("column rows = %d, want 2", len(list.Columns))
	}
	transferRow, sleepRow := list.Columns[0], list.Columns[1]
	if v := transferRow["Volume"]; v == nil || *v != "1.0" {
		t.Fatalf("transfer Volume = %v", v)
	}
	if v, ok := sleepRow["Volume"]; !ok || v != nil {
		t.Fatalf("sleep Volume = (%v, %v), want explicit null", v, ok)
	}
	if _, err := iface.SampleList(999); !errors.Is(err, ErrJobMismatch) {
		t.Fatalf("wrong LH_id err = %v", err)
	}
}

func TestLHIDMonotonicAcrossRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	stores, err := persistence.NewSQLiteStores(dir)
	if err != nil {
		t.Fatalf("open stores: %v", err)
	}
	iface := NewInterface(testLayout(t), nil, stores, nil)
	for n := 1; n <= 3; n++ {
		job := NewJob("s", "", []methods.Method{testTransfer(0.1)})
		if err := iface.ActivateJob(ctx, job); err != nil {
			t.Fatalf("activate %d: %v", n, err)
		}
		if err := iface.UpdateJobResult(ctx, job.ID, successReport("Transfer With Rinse")); err != nil {
			t.Fatalf("result %d: %v", n, err)
		}
	}
	if err := stores.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := persistence.NewSQLiteStores(dir)
	if err != nil {
		t.Fatalf("reopen stores: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	restarted := NewInterface(testLayout(t), nil, reopened, nil)

	job := NewJob("s4", "", []methods.Method{testTransfer(0.1)})
	if err := restarted.ActivateJob(ctx, job); err != nil {
		t.Fatalf("activate after restart: %v", err)
	}
	if job.LHID == nil || *job.LHID != 4 {
		t.Fatalf("LH_id after restart = %v, want 4", job.LHID)
	}
}
