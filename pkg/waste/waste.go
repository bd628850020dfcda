// Package waste tracks the waste stream of the workstation: a single carboy
// that every method's waste is mixed into, with an append-only history of
// individual contributions.
package waste

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/roadmap-automation/lh-manager-sub000/pkg/bedlayout"
)

// WasteRack is the rack id of the waste bed.
const WasteRack = "waste"

// WasteItem is a single waste contribution.
type WasteItem struct {
	Composition bedlayout.Composition `json:"composition"`
	Volume      float64               `json:"volume"`
}

// WasteLayout is a specialized one-rack bed holding the carboy. The carboy
// well carries a stable bottle id that rotates each time the waste is
// emptied.
type WasteLayout struct {
	bedlayout.LHBedLayout
}

// NewWasteLayout builds a waste bed with a fresh 10 L carboy.
func NewWasteLayout() *WasteLayout {
	layout := &WasteLayout{}
	layout.AddRack(WasteRack, bedlayout.Rack{
		Columns:   1,
		Rows:      1,
		MaxVolume: 10e3,
		Height:    300,
		Width:     300,
		Shape:     "rect",
	})
	layout.rotateCarboy()
	return layout
}

// Carboy returns the active waste bottle.
func (w *WasteLayout) Carboy() *bedlayout.Well {
	rack, ok := w.Racks[WasteRack]
	if !ok || len(rack.Wells) == 0 {
		return nil
	}
	return rack.Wells[0]
}

func (w *WasteLayout) rotateCarboy() {
	id := uuid.NewString()
	_ = w.UpdateWell(bedlayout.Well{
		RackID:     WasteRack,
		WellNumber: 1,
		ID:         &id,
	})
}

// History records waste contributions keyed by bottle id.
type History interface {
	InsertWaste(ctx context.Context, bottleID string, item WasteItem) error
}

// Saver snapshots the waste layout after mutation.
type Saver interface {
	SaveWaste(ctx context.Context, layout *WasteLayout) error
}

// Manager couples the waste layout with its history and snapshot stores.
// History and Snapshots may be nil for dry runs and tests.
type Manager struct {
	Layout    *WasteLayout
	History   History
	Snapshots Saver
}

// AddWaste mixes the item into the carboy, records it in the history under
// the current bottle id, and snapshots the layout.
func (m *Manager) AddWaste(ctx context.Context, item WasteItem) error {
	carboy := m.Layout.Carboy()
	if carboy == nil {
		return fmt.Errorf("waste layout has no carboy")
	}
	carboy.MixWith(item.Volume, item.Composition)
	if m.Snapshots != nil {
		if err := m.Snapshots.SaveWaste(ctx, m.Layout); err != nil {
			return fmt.Errorf("save waste layout: %w", err)
		}
	}
	if m.History != nil {
		bottleID := ""
		if carboy.ID != nil {
			bottleID = *carboy.ID
		}
		if err := m.History.InsertWaste(ctx, bottleID, item); err != nil {
			return fmt.Errorf("record waste: %w", err)
		}
	}
	return nil
}

// EmptyWaste replaces the carboy with a fresh empty bottle under a new id.
func (m *Manager) EmptyWaste(ctx context.Context) error {
	m.Layout.rotateCarboy()
	if m.Snapshots != nil {
		if err := m.Snapshots.SaveWaste(ctx, m.Layout); err != nil {
			return fmt.Errorf("save waste layout: %w", err)
		}
	}
	return nil
}
