package bedlayout

// Solution is a volume of material with a composition.
type Solution struct {
	Composition Composition `json:"composition"`
	Volume      float64     `json:"volume"`
}

// MixWith updates the solution in place by mixing in a volume of another
// composition. Solvent fractions combine by volume-weighted average. Solutes
// already present keep their units; incoming concentrations are converted to
// them, so unit priority belongs to the existing composition.
func (s *Solution) MixWith(volume float64, composition Composition) {
	names1, fractions1 := s.Composition.SolventFractions()
	names2, fractions2 := composition.SolventFractions()
	newNames, newFractions, newVolume := combineComponents(names1, fractions1, s.Volume, names2, fractions2, volume)

	incoming := make(map[string]Solute, len(composition.Solutes))
	for _, sol := range composition.Solutes {
		incoming[sol.Name] = sol
	}
	var newSolutes []Solute
	for _, sol := range s.Composition.Solutes {
		merged := sol
		if other, ok := incoming[sol.Name]; ok {
			conv, err := other.ConvertUnits(sol.Units)
			if err != nil {
				// units cannot be reconciled; treat the incoming solute as absent
				conv = 0
			}
			merged.Concentration = (sol.Concentration*s.Volume + conv*volume) / newVolume
		} else {
			merged.Concentration = sol.Concentration * s.Volume / newVolume
		}
		newSolutes = append(newSolutes, merged)
	}
	existing := make(map[string]bool, len(s.Composition.Solutes))
	for _, sol := range s.Composition.Solutes {
		existing[sol.Name] = true
	}
	for _, sol := range composition.Solutes {
		if existing[sol.Name] {
			continue
		}
		diluted := sol
		diluted.Concentration = sol.Concentration * volume / newVolume
		newSolutes = append(newSolutes, diluted)
	}

	solvents := make([]Solvent, len(newNames))
	for i, n := range newNames {
		solvents[i] = Solvent{Name: n, Fraction: newFractions[i]}
	}
	s.Volume = newVolume
	s.Composition = Composition{Solvents: solvents, Solutes: newSolutes}
}

// Well is a single container in a rack. A zero volume with no pin id marks
// the well as empty; the id, when set, lets later methods in a plan refer to
// a well created dynamically by an earlier one.
type Well struct {
	Solution
	RackID     string  `json:"rack_id"`
	WellNumber int     `json:"well_number"`
	ID         *string `json:"id,omitempty"`
}

// Clone returns a deep copy of the well.
func (w Well) Clone() Well {
	out := w
	out.Composition = w.Composition.Clone()
	if w.ID != nil {
		id := *w.ID
		out.ID = &id
	}
	return out
}

// FindComposition returns the wells whose contents equal the target
// composition.
func FindComposition(target Composition, wells []*Well) []*Well {
	var out []*Well
	for _, w := range wells {
		if w.Composition.Equal(target) {
			out = append(out, w)
		}
	}
	return out
}
