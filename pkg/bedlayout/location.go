package bedlayout

import "github.com/google/uuid"

// WellLocation addresses a well either directly by (rack, well number) or
// indirectly by pin id. ExpectedComposition carries what the well is supposed
// to contain once upstream methods have run.
type WellLocation struct {
	RackID              string       `json:"rack_id,omitempty"`
	WellNumber          int          `json:"well_number,omitempty"`
	ID                  *string      `json:"id,omitempty"`
	ExpectedComposition *Composition `json:"expected_composition,omitempty"`
}

// IsInferred reports whether the location still needs to be bound to a
// physical well.
func (l WellLocation) IsInferred() bool {
	return l.WellNumber == 0 && l.ID != nil
}

// NewInferredLocation creates a late-bound location in the given rack with a
// fresh pin id. The id survives across method boundaries so a plan can
// formulate into a fresh well and then aspirate from it before the well
// physically exists.
func NewInferredLocation(rackID string) WellLocation {
	id := uuid.NewString()
	return WellLocation{RackID: rackID, ID: &id}
}

// Clone returns a deep copy of the location.
func (l WellLocation) Clone() WellLocation {
	out := l
	if l.ID != nil {
		id := *l.ID
		out.ID = &id
	}
	if l.ExpectedComposition != nil {
		c := l.ExpectedComposition.Clone()
		out.ExpectedComposition = &c
	}
	return out
}
