// Package bedlayout models the physical bed of a liquid-handling robot:
// racks of wells, the solutions they contain, and the composition algebra
// used to mix them.
package bedlayout

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

const fractionTolerance = 1e-9

func isClose(a, b float64) bool {
	return math.Abs(a-b) < fractionTolerance
}

// Solvent is a named component of a solution measured by volume fraction.
type Solvent struct {
	Name     string  `json:"name"`
	Fraction float64 `json:"fraction"`
}

// Solute is a named dissolved component measured by concentration.
type Solute struct {
	Name            string   `json:"name"`
	Concentration   float64  `json:"concentration"`
	MolecularWeight *float64 `json:"molecular_weight,omitempty"`
	Units           string   `json:"units"`
}

// ConvertUnits returns the solute concentration in the reference units.
func (s Solute) ConvertUnits(refUnits string) (float64, error) {
	return ConvertUnits(s.Concentration, s.Units, refUnits, s.MolecularWeight)
}

// Equal compares name and concentration after converting the other solute to
// this solute's units. Mismatched molecular weights can defeat the
// conversion; missing weights are tolerated.
func (s Solute) Equal(other Solute) bool {
	if s.Name != other.Name {
		return false
	}
	conv, err := other.ConvertUnits(s.Units)
	if err != nil {
		return false
	}
	return isClose(s.Concentration, conv)
}

// Composition is the contents of a solution: solvent volume fractions plus
// solute concentrations. Solvent fractions are normalized on read so stored
// fractions need not sum to exactly one.
type Composition struct {
	Solvents []Solvent `json:"solvents"`
	Solutes  []Solute  `json:"solutes"`
}

// NewComposition builds a composition from parallel name/value slices, with
// solute concentrations in molar units.
func NewComposition(solventNames []string, solventFractions []float64, soluteNames []string, soluteConcentrations []float64) Composition {
	c := Composition{}
	for i, name := range solventNames {
		c.Solvents = append(c.Solvents, Solvent{Name: name, Fraction: solventFractions[i]})
	}
	for i, name := range soluteNames {
		c.Solutes = append(c.Solutes, Solute{Name: name, Concentration: soluteConcentrations[i], Units: UnitsMolar})
	}
	return c
}

// IsEmpty reports whether the composition has no components at all.
func (c Composition) IsEmpty() bool {
	return len(c.Solvents) == 0 && len(c.Solutes) == 0
}

// SolventNames returns the solvent names in declaration order.
func (c Composition) SolventNames() []string {
	names := make([]string, len(c.Solvents))
	for i, s := range c.Solvents {
		names[i] = s.Name
	}
	return names
}

// SoluteNames returns the solute names in declaration order.
func (c Composition) SoluteNames() []string {
	names := make([]string, len(c.Solutes))
	for i, s := range c.Solutes {
		names[i] = s.Name
	}
	return names
}

// SolventFractions returns solvent names and normalized volume fractions.
func (c Composition) SolventFractions() ([]string, []float64) {
	var sum float64
	for _, s := range c.Solvents {
		sum += s.Fraction
	}
	names := make([]string, len(c.Solvents))
	fractions := make([]float64, len(c.Solvents))
	for i, s := range c.Solvents {
		names[i] = s.Name
		if sum > 0 {
			fractions[i] = s.Fraction / sum
		}
	}
	return names, fractions
}

// HasComponent returns the normalized fraction (solvents) or raw
// concentration (solutes) of the named component, or false.
func (c Composition) HasComponent(name string) (float64, bool) {
	names, fractions := c.SolventFractions()
	for i, n := range names {
		if n == name {
			return fractions[i], true
		}
	}
	for _, s := range c.Solutes {
		if s.Name == name {
			return s.Concentration, true
		}
	}
	return 0, false
}

// Equal performs set equality over normalized solvent fractions and solute
// concentrations, ignoring order and zero-amount components.
func (c Composition) Equal(other Composition) bool {
	normalize := func(comp Composition) map[string]float64 {
		names, fractions := comp.SolventFractions()
		m := make(map[string]float64)
		for i, n := range names {
			if fractions[i] > 0 {
				m[n] = fractions[i]
			}
		}
		return m
	}
	a, b := normalize(c), normalize(other)
	if len(a) != len(b) {
		return false
	}
	for name, fa := range a {
		fb, ok := b[name]
		if !ok || !isClose(fa, fb) {
			return false
		}
	}

	solutesOf := func(comp Composition) map[string]Solute {
		m := make(map[string]Solute)
		for _, s := range comp.Solutes {
			if s.Concentration > 0 {
				m[s.Name] = s
			}
		}
		return m
	}
	sa, sb := solutesOf(c), solutesOf(other)
	if len(sa) != len(sb) {
		return false
	}
	for name, s := range sa {
		o, ok := sb[name]
		if !ok || !s.Equal(o) {
			return false
		}
	}
	return true
}

// String renders the canonical form used for metadata tagging, e.g.
// "90:10 D2O:H2O + 0.1 M KCl".
func (c Composition) String() string {
	var res string
	switch {
	case len(c.Solvents) > 1:
		sorted := make([]Solvent, len(c.Solvents))
		copy(sorted, c.Solvents)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Fraction > sorted[j].Fraction })
		ratios := make([]string, len(sorted))
		names := make([]string, len(sorted))
		for i, s := range sorted {
			ratios[i] = fmt.Sprintf("%.0f", s.Fraction*100)
			names[i] = s.Name
		}
		res = strings.Join(ratios, ":") + " " + strings.Join(names, ":")
	case len(c.Solvents) == 1:
		res = c.Solvents[0].Name
	}
	for _, s := range c.Solutes {
		res += fmt.Sprintf(" + %.4g %s %s", s.Concentration, s.Units, s.Name)
	}
	return res
}

// Clone returns a deep copy.
func (c Composition) Clone() Composition {
	out := Composition{}
	if c.Solvents != nil {
		out.Solvents = make([]Solvent, len(c.Solvents))
		copy(out.Solvents, c.Solvents)
	}
	if c.Solutes != nil {
		out.Solutes = make([]Solute, len(c.Solutes))
		for i, s := range c.Solutes {
			if s.MolecularWeight != nil {
				mw := *s.MolecularWeight
				s.MolecularWeight = &mw
			}
			out.Solutes[i] = s
		}
	}
	return out
}

// Water is the composition of pure rinse water.
func Water() Composition {
	return Composition{Solvents: []Solvent{{Name: "H2O", Fraction: 1.0}}}
}

// combineComponents merges two component sets by volume-weighted average.
func combineComponents(names1 []string, concs1 []float64, volume1 float64, names2 []string, concs2 []float64, volume2 float64) ([]string, []float64, float64) {
	total := volume1 + volume2
	index2 := make(map[string]int, len(names2))
	for i, n := range names2 {
		index2[n] = i
	}
	var outNames []string
	var outConcs []float64
	seen := make(map[string]bool)
	for i, n := range names1 {
		amount := concs1[i] * volume1
		if j, ok := index2[n]; ok {
			amount += concs2[j] * volume2
		}
		outNames = append(outNames, n)
		outConcs = append(outConcs, amount/total)
		seen[n] = true
	}
	for i, n := range names2 {
		if seen[n] {
			continue
		}
		outNames = append(outNames, n)
		outConcs = append(outConcs, concs2[i]*volume2/total)
	}
	return outNames, outConcs, total
}
