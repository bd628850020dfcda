package bedlayout

import (
	"fmt"
	"sort"
)

// Rack is a physical holder with a grid or staggered arrangement of wells.
// MinVolume is the dead volume a well cannot aspirate below; MaxVolume caps
// the fill level.
type Rack struct {
	Columns    int     `json:"columns"`
	Rows       int     `json:"rows"`
	MaxVolume  float64 `json:"max_volume"`
	MinVolume  float64 `json:"min_volume"`
	Wells      []*Well `json:"wells"`
	Style      string  `json:"style"` // grid | staggered
	Height     int     `json:"height"`
	Width      int     `json:"width"`
	XTranslate int     `json:"x_translate"`
	YTranslate int     `json:"y_translate"`
	Shape      string  `json:"shape"` // rect | circle
	Editable   bool    `json:"editable"`
}

// Clone returns a deep copy of the rack.
func (r Rack) Clone() Rack {
	out := r
	out.Wells = make([]*Well, len(r.Wells))
	for i, w := range r.Wells {
		cw := w.Clone()
		out.Wells[i] = &cw
	}
	return out
}

// LHBedLayout is the full bed: a mapping of rack ids to racks. The carrier
// reservoir is the single well of the Carrier rack when present.
type LHBedLayout struct {
	Racks map[string]*Rack `json:"racks"`
}

// ErrWellNotFound reports a failed direct well lookup.
type ErrWellNotFound struct {
	RackID     string
	WellNumber int
}

func (e ErrWellNotFound) Error() string {
	return fmt.Sprintf("well %s/%d not found", e.RackID, e.WellNumber)
}

// ErrRackNotFound reports an unknown rack id.
type ErrRackNotFound struct{ RackID string }

func (e ErrRackNotFound) Error() string {
	return fmt.Sprintf("rack %s not found", e.RackID)
}

// AddRack registers a rack under the given id.
func (l *LHBedLayout) AddRack(id string, rack Rack) {
	if l.Racks == nil {
		l.Racks = make(map[string]*Rack)
	}
	r := rack
	if r.Wells == nil {
		r.Wells = []*Well{}
	}
	l.Racks[id] = &r
}

// AddWell appends a well to the named rack, stamping its rack id.
func (l *LHBedLayout) AddWell(rackID string, well Well) error {
	rack, ok := l.Racks[rackID]
	if !ok {
		return ErrRackNotFound{RackID: rackID}
	}
	well.RackID = rackID
	w := well
	rack.Wells = append(rack.Wells, &w)
	return nil
}

// GetWellAndRack resolves a direct (rack, well number) address.
func (l *LHBedLayout) GetWellAndRack(rackID string, wellNumber int) (*Well, *Rack, error) {
	rack, ok := l.Racks[rackID]
	if !ok {
		return nil, nil, ErrRackNotFound{RackID: rackID}
	}
	for _, w := range rack.Wells {
		if w.WellNumber == wellNumber {
			return w, rack, nil
		}
	}
	return nil, rack, ErrWellNotFound{RackID: rackID, WellNumber: wellNumber}
}

// GetAllWells returns every well on the bed.
func (l *LHBedLayout) GetAllWells() []*Well {
	var out []*Well
	ids := make([]string, 0, len(l.Racks))
	for id := range l.Racks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		out = append(out, l.Racks[id].Wells...)
	}
	return out
}

// FindNextEmpty returns the location of the lowest-numbered well in the rack
// with zero volume and no pin id, or nil if none exists.
func (l *LHBedLayout) FindNextEmpty(rackID string) *WellLocation {
	rack, ok := l.Racks[rackID]
	if !ok {
		return nil
	}
	wells := make([]*Well, len(rack.Wells))
	copy(wells, rack.Wells)
	sort.SliceStable(wells, func(i, j int) bool { return wells[i].WellNumber < wells[j].WellNumber })
	for _, w := range wells {
		if w.Volume == 0 && w.ID == nil {
			return &WellLocation{RackID: rackID, WellNumber: w.WellNumber}
		}
	}
	return nil
}

// InferLocation binds a late-bound location to a physical well. A location
// without a pin id is returned unchanged. With a pin id, an existing well
// carrying that id wins; otherwise the next empty well in the location's rack
// is claimed and tagged with the id. Returns nil if no well can be bound.
func (l *LHBedLayout) InferLocation(loc *WellLocation) *WellLocation {
	if loc.ID == nil {
		return loc
	}
	for _, w := range l.GetAllWells() {
		if w.ID != nil && *w.ID == *loc.ID {
			loc.RackID, loc.WellNumber = w.RackID, w.WellNumber
			return loc
		}
	}
	nextEmpty := l.FindNextEmpty(loc.RackID)
	if nextEmpty == nil {
		return nil
	}
	target, _, err := l.GetWellAndRack(nextEmpty.RackID, nextEmpty.WellNumber)
	if err != nil {
		return nil
	}
	id := *loc.ID
	target.ID = &id
	loc.RackID, loc.WellNumber = nextEmpty.RackID, nextEmpty.WellNumber
	return loc
}

// UpdateWell replaces any existing definition at the well's address and
// appends the new definition.
func (l *LHBedLayout) UpdateWell(well Well) error {
	if _, ok := l.Racks[well.RackID]; !ok {
		return ErrRackNotFound{RackID: well.RackID}
	}
	l.RemoveWellDefinition(well.RackID, well.WellNumber)
	w := well
	rack := l.Racks[well.RackID]
	rack.Wells = append(rack.Wells, &w)
	return nil
}

// RemoveWellDefinition removes every well definition at the given address.
func (l *LHBedLayout) RemoveWellDefinition(rackID string, wellNumber int) {
	rack, ok := l.Racks[rackID]
	if !ok {
		return
	}
	kept := rack.Wells[:0]
	for _, w := range rack.Wells {
		if w.WellNumber != wellNumber {
			kept = append(kept, w)
		}
	}
	rack.Wells = kept
}

// CarrierWell returns the carrier reservoir when the bed has one.
func (l *LHBedLayout) CarrierWell() *Well {
	well, _, err := l.GetWellAndRack(RackCarrier, 1)
	if err != nil {
		return nil
	}
	return well
}

// Clone returns a deep copy of the whole bed, used for dry runs so the live
// layout is never mutated speculatively.
func (l *LHBedLayout) Clone() *LHBedLayout {
	out := &LHBedLayout{Racks: make(map[string]*Rack, len(l.Racks))}
	for id, rack := range l.Racks {
		cr := rack.Clone()
		out.Racks[id] = &cr
	}
	return out
}
