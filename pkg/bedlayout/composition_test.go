package bedlayout

import (
	"math"
	"testing"
)

func mw(v float64) *float64 { return &v }

func TestConvertUnits(t *testing.T) {
	got, err := ConvertUnits(1.0, UnitsMilliMolar, UnitsMolar, nil)
	if err != nil {
		t.Fatalf("convert mM to M: %v", err)
	}
	if !isClose(got, 1e-3) {
		t.Fatalf("mM to M: got %g", got)
	}

	// 74.55 mg/mL of KCl (MW 74.55) is 1 M
	got, err = ConvertUnits(74.55, UnitsMgPerML, UnitsMolar, mw(74.55))
	if err != nil {
		t.Fatalf("convert mg/mL to M: %v", err)
	}
	if !isClose(got, 1.0) {
		t.Fatalf("mg/mL to M: got %g", got)
	}

	got, err = ConvertUnits(1.0, UnitsMolar, UnitsMgPerML, mw(74.55))
	if err != nil {
		t.Fatalf("convert M to mg/mL: %v", err)
	}
	if math.Abs(got-74.55) > 1e-9 {
		t.Fatalf("M to mg/mL: got %g", got)
	}

	if _, err := ConvertUnits(1.0, UnitsMgPerL, UnitsMolar, nil); err == nil {
		t.Fatal("expected error crossing unit families without molecular weight")
	}
	if _, err := ConvertUnits(1.0, "furlongs", UnitsMolar, nil); err == nil {
		t.Fatal("expected error for unknown units")
	}
}

func TestCompositionString(t *testing.T) {
	c := Composition{
		Solvents: []Solvent{{Name: "H2O", Fraction: 0.1}, {Name: "D2O", Fraction: 0.9}},
		Solutes:  []Solute{{Name: "KCl", Concentration: 0.1, Units: UnitsMolar}},
	}
	if got, want := c.String(), "90:10 D2O:H2O + 0.1 M KCl"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
	single := Composition{Solvents: []Solvent{{Name: "D2O", Fraction: 1.0}}}
	if got := single.String(); got != "D2O" {
		t.Fatalf("single solvent String() = %q", got)
	}
}

func TestCompositionEqualIgnoresOrder(t *testing.T) {
	a := Composition{
		Solvents: []Solvent{{Name: "D2O", Fraction: 0.5}, {Name: "H2O", Fraction: 0.5}},
		Solutes:  []Solute{{Name: "KCl", Concentration: 0.1, Units: UnitsMolar}},
	}
	b := Composition{
		Solvents: []Solvent{{Name: "H2O", Fraction: 0.5}, {Name: "D2O", Fraction: 0.5}},
		Solutes:  []Solute{{Name: "KCl", Concentration: 0.1, Units: UnitsMolar}},
	}
	if !a.Equal(b) {
		t.Fatal("expected order-independent equality")
	}
	b.Solutes[0].Concentration = 0.2
	if a.Equal(b) {
		t.Fatal("expected inequality on concentration change")
	}
}

func TestCompositionEqualNormalizesFractions(t *testing.T) {
	a := Composition{Solvents: []Solvent{{Name: "D2O", Fraction: 2.0}, {Name: "H2O", Fraction: 2.0}}}
	b := Composition{Solvents: []Solvent{{Name: "D2O", Fraction: 0.5}, {Name: "H2O", Fraction: 0.5}}}
	if !a.Equal(b) {
		t.Fatal("expected normalized fractions to compare equal")
	}
}

func TestSoluteEqualAcrossUnits(t *testing.T) {
	a := Solute{Name: "KCl", Concentration: 1.0, Units: UnitsMolar, MolecularWeight: mw(74.55)}
	b := Solute{Name: "KCl", Concentration: 1000.0, Units: UnitsMilliMolar}
	if !a.Equal(b) {
		t.Fatal("expected 1 M == 1000 mM")
	}
}

func TestMixWithConservesComponents(t *testing.T) {
	well := Well{
		Solution: Solution{
			Composition: Composition{
				Solvents: []Solvent{{Name: "D2O", Fraction: 1.0}},
				Solutes:  []Solute{{Name: "KCl", Concentration: 0.1, Units: UnitsMolar}},
			},
			Volume: 4.0,
		},
		RackID: "Mix", WellNumber: 1,
	}
	incoming := Composition{Solvents: []Solvent{{Name: "H2O", Fraction: 1.0}}}
	oldVolume := well.Volume
	oldKClAmount := 0.1 * oldVolume

	well.MixWith(2.0, incoming)

	if !isClose(well.Volume, oldVolume+2.0) {
		t.Fatalf("volume after mix = %g", well.Volume)
	}
	d2o, ok := well.Composition.HasComponent("D2O")
	if !ok || !isClose(d2o, 4.0/6.0) {
		t.Fatalf("D2O fraction = %g", d2o)
	}
	h2o, _ := well.Composition.HasComponent("H2O")
	if !isClose(h2o, 2.0/6.0) {
		t.Fatalf("H2O fraction = %g", h2o)
	}
	kcl, _ := well.Composition.HasComponent("KCl")
	if math.Abs(kcl*well.Volume-oldKClAmount) > 1e-9 {
		t.Fatalf("KCl amount not conserved: %g", kcl*well.Volume)
	}
}

func TestMixWithKeepsExistingUnits(t *testing.T) {
	s := Solution{
		Composition: Composition{
			Solvents: []Solvent{{Name: "H2O", Fraction: 1.0}},
			Solutes:  []Solute{{Name: "KCl", Concentration: 74.55, Units: UnitsMgPerML, MolecularWeight: mw(74.55)}},
		},
		Volume: 1.0,
	}
	incoming := Composition{
		Solvents: []Solvent{{Name: "H2O", Fraction: 1.0}},
		Solutes:  []Solute{{Name: "KCl", Concentration: 1.0, Units: UnitsMolar, MolecularWeight: mw(74.55)}},
	}
	s.MixWith(1.0, incoming)
	if s.Composition.Solutes[0].Units != UnitsMgPerML {
		t.Fatalf("units changed to %s", s.Composition.Solutes[0].Units)
	}
	if math.Abs(s.Composition.Solutes[0].Concentration-74.55) > 1e-9 {
		t.Fatalf("concentration = %g, want 74.55", s.Composition.Solutes[0].Concentration)
	}
}
