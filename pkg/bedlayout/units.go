package bedlayout

import "fmt"

// Concentration units come in two families: molar units defined on a volume
// basis and mass units defined on a mass-per-volume basis. Conversion between
// families requires a molecular weight.
const (
	UnitsMolar      = "M"
	UnitsMilliMolar = "mM"
	UnitsMicroMolar = "uM"
	UnitsNanoMolar  = "nM"
	UnitsMgPerML    = "mg/mL"
	UnitsMgPerL     = "mg/L"
	UnitsUgPerML    = "ug/mL"
)

// factor to convert to M
var volumeConversion = map[string]float64{
	UnitsMolar:      1,
	UnitsMilliMolar: 1e-3,
	UnitsMicroMolar: 1e-6,
	UnitsNanoMolar:  1e-9,
}

// factor to convert to mg/mL
var massConversion = map[string]float64{
	UnitsMgPerML: 1,
	UnitsMgPerL:  1e-3,
	UnitsUgPerML: 1e3,
}

// ConvertUnits returns the concentration expressed in refUnits. Conversions
// that cross the molar/mass boundary require a molecular weight (g/mol).
func ConvertUnits(concentration float64, units, refUnits string, molecularWeight *float64) (float64, error) {
	if units == refUnits {
		return concentration, nil
	}
	vFrom, volFrom := volumeConversion[units]
	vTo, volTo := volumeConversion[refUnits]
	mFrom, massFrom := massConversion[units]
	mTo, massTo := massConversion[refUnits]
	switch {
	case massFrom && massTo:
		return concentration * mFrom / mTo, nil
	case volFrom && volTo:
		return concentration * vFrom / vTo, nil
	case massFrom && volTo:
		if molecularWeight == nil {
			return 0, fmt.Errorf("conversion from %s to %s requires a molecular weight", units, refUnits)
		}
		return concentration * mFrom / *molecularWeight / vTo, nil
	case volFrom && massTo:
		if molecularWeight == nil {
			return 0, fmt.Errorf("conversion from %s to %s requires a molecular weight", units, refUnits)
		}
		return concentration * vFrom * *molecularWeight / mTo, nil
	case !volFrom && !massFrom:
		return 0, fmt.Errorf("unknown units %s", units)
	default:
		return 0, fmt.Errorf("unknown units %s", refUnits)
	}
}
