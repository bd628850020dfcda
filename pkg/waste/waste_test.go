package waste

import (
	"context"
	"math"
	"testing"

	"github.com/roadmap-automation/lh-manager-sub000/pkg/bedlayout"
)

type recordedWaste struct {
	bottleID string
	item     WasteItem
}

type fakeHistory struct {
	entries []recordedWaste
}

func (f *fakeHistory) InsertWaste(_ context.Context, bottleID string, item WasteItem) error {
	f.entries = append(f.entries, recordedWaste{bottleID: bottleID, item: item})
	return nil
}

type fakeSaver struct{ saves int }

func (f *fakeSaver) SaveWaste(context.Context, *WasteLayout) error {
	f.saves++
	return nil
}

func TestAddWasteMassBalance(t *testing.T) {
	hist := &fakeHistory{}
	saver := &fakeSaver{}
	m := &Manager{Layout: NewWasteLayout(), History: hist, Snapshots: saver}

	item := WasteItem{
		Composition: bedlayout.Water(),
		Volume:      1.1,
	}
	if err := m.AddWaste(context.Background(), item); err != nil {
		t.Fatalf("add waste: %v", err)
	}
	carboy := m.Layout.Carboy()
	if math.Abs(carboy.Volume-1.1) > 1e-9 {
		t.Fatalf("carboy volume = %g, want 1.1", carboy.Volume)
	}
	if len(hist.entries) != 1 {
		t.Fatalf("history entries = %d", len(hist.entries))
	}
	if carboy.ID == nil || hist.entries[0].bottleID != *carboy.ID {
		t.Fatal("history entry not keyed by the carboy bottle id")
	}
	if saver.saves != 1 {
		t.Fatalf("snapshot saves = %d", saver.saves)
	}
}

func TestEmptyWasteRotatesBottleID(t *testing.T) {
	m := &Manager{Layout: NewWasteLayout()}
	first := *m.Layout.Carboy().ID
	if err := m.AddWaste(context.Background(), WasteItem{Composition: bedlayout.Water(), Volume: 2}); err != nil {
		t.Fatalf("add waste: %v", err)
	}
	if err := m.EmptyWaste(context.Background()); err != nil {
		t.Fatalf("empty waste: %v", err)
	}
	carboy := m.Layout.Carboy()
	if carboy.Volume != 0 || !carboy.Composition.IsEmpty() {
		t.Fatalf("carboy not reset: %+v", carboy)
	}
	if *carboy.ID == first {
		t.Fatal("bottle id did not rotate")
	}
}
