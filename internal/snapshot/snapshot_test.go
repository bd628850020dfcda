package snapshot

import (
	"context"
	"testing"

	"github.com/roadmap-automation/lh-manager-sub000/internal/blob"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/bedlayout"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/devices"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/samples"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/waste"
)

func TestLoadLayoutFallsBackToDefault(t *testing.T) {
	m := NewManager(blob.NewMemory(), nil)
	layout, err := m.LoadLayout(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := layout.Racks[bedlayout.RackMix]; !ok {
		t.Fatal("default layout missing mix rack")
	}
}

func TestLayoutRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewManager(blob.NewMemory(), nil)

	layout := bedlayout.DefaultLayout()
	err := layout.AddWell(bedlayout.RackSolvent, bedlayout.Well{
		Solution: bedlayout.Solution{
			Composition: bedlayout.Composition{Solvents: []bedlayout.Solvent{{Name: "D2O", Fraction: 1.0}}},
			Volume:      7.5,
		},
		WellNumber: 2,
	})
	if err != nil {
		t.Fatalf("add well: %v", err)
	}
	if err := m.SaveLayout(ctx, layout); err != nil {
		t.Fatalf("save: %v", err)
	}

	restored, err := m.LoadLayout(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	well, _, err := restored.GetWellAndRack(bedlayout.RackSolvent, 2)
	if err != nil {
		t.Fatalf("well lookup: %v", err)
	}
	if well.Volume != 7.5 {
		t.Fatalf("volume = %g, want 7.5", well.Volume)
	}
}

func TestSamplesRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewManager(blob.NewMemory(), nil)

	container := samples.NewSampleContainer()
	s := samples.NewSample("persisted", "round trip")
	s.Channel = 2
	if err := container.AddSample(s); err != nil {
		t.Fatalf("add: %v", err)
	}
	container.DryRunQueue.AddItem(samples.Item{ID: s.ID, Stage: samples.StagePrep})

	if err := m.SaveSamples(ctx, container); err != nil {
		t.Fatalf("save: %v", err)
	}
	restored, err := m.LoadSamples(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	_, got := restored.GetSampleByID(s.ID)
	if got == nil || got.Channel != 2 {
		t.Fatalf("restored sample = %+v", got)
	}
	if len(restored.DryRunQueue.Stages) != 1 {
		t.Fatal("dry run queue not restored")
	}
}

func TestWasteRoundTripKeepsBottleID(t *testing.T) {
	ctx := context.Background()
	m := NewManager(blob.NewMemory(), nil)

	layout := waste.NewWasteLayout()
	carboy := layout.Carboy()
	carboy.MixWith(3.0, bedlayout.Composition{Solvents: []bedlayout.Solvent{{Name: "H2O", Fraction: 1.0}}})
	wantID := *carboy.ID

	if err := m.SaveWaste(ctx, layout); err != nil {
		t.Fatalf("save: %v", err)
	}
	restored, err := m.LoadWaste(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got := restored.Carboy()
	if got == nil || got.ID == nil || *got.ID != wantID {
		t.Fatal("bottle id not preserved")
	}
	if got.Volume != 3.0 {
		t.Fatalf("carboy volume = %g, want 3.0", got.Volume)
	}
}

func TestDevicesRoundTripKeepsRegistrations(t *testing.T) {
	ctx := context.Background()
	m := NewManager(blob.NewMemory(), nil)

	catalog := devices.NewManager()
	catalog.Register(devices.QCMD())
	custom := devices.QCMD()
	custom.DeviceName = "Backup QCMD"
	custom.Address = "/backup_qcmd"
	catalog.Register(custom)

	if err := m.SaveDevices(ctx, catalog); err != nil {
		t.Fatalf("save: %v", err)
	}
	restored, err := m.LoadDevices(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(restored.List()) != 2 {
		t.Fatalf("device count = %d, want 2", len(restored.List()))
	}
	d, err := restored.Get("Backup QCMD")
	if err != nil {
		t.Fatalf("get restored device: %v", err)
	}
	if d.Address != "/backup_qcmd" {
		t.Fatalf("restored address = %q", d.Address)
	}
}

func TestLoadDevicesFallsBackToDefaultCatalog(t *testing.T) {
	m := NewManager(blob.NewMemory(), nil)
	catalog, err := m.LoadDevices(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := catalog.Get(devices.QCMDName); err != nil {
		t.Fatalf("default catalog missing QCMD: %v", err)
	}
}
