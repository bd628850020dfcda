// Package formulation plans the mixing steps needed to realize a target
// composition from the stock solutions available on the bed. The volume
// assignment is a nonnegative least squares problem over the candidate
// wells' component matrix.
package formulation

import (
	"math"
	"sort"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/roadmap-automation/lh-manager-sub000/pkg/bedlayout"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/methods"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/status"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/waste"
)

// Transfers below this volume are dropped from the plan.
const zeroVolumeTolerance = 1e-3

const residualTolerance = 1e-9

func init() {
	methods.Default.Register(func() methods.Method { return NewFormulation() }, true)
	methods.Default.Register(func() methods.Method { return NewSoluteFormulation() }, true)
}

// result is a solved volume assignment over source wells.
type result struct {
	Volumes []float64
	Wells   []*bedlayout.Well
	Success bool
}

// Formulation dynamically generates the transfers and final mix that
// produce TargetVolume of TargetComposition in the Target well.
type Formulation struct {
	methods.Base
	TargetComposition bedlayout.Composition      `json:"target_composition"`
	TargetVolume      float64                    `json:"target_volume"`
	Target            bedlayout.WellLocation     `json:"Target"`
	IncludeZones      []bedlayout.Zone           `json:"include_zones"`
	ExactMatch        bool                       `json:"exact_match"`
	TransferTemplate  *methods.TransferWithRinse `json:"transfer_template"`
	MixTemplate       *methods.MixWithRinse      `json:"mix_template"`

	solve  func(layout *bedlayout.LHBedLayout) result
	cached *result
}

func NewFormulation() *Formulation {
	f := &Formulation{
		Base:             methods.NewBase("Formulation", "Formulation", methods.TypeContainer),
		IncludeZones:     []bedlayout.Zone{bedlayout.ZoneSolvent, bedlayout.ZoneStock, bedlayout.ZoneSample},
		ExactMatch:       true,
		TransferTemplate: methods.NewTransferWithRinse(),
		MixTemplate:      methods.NewMixWithRinse(),
	}
	f.solve = f.formulate
	return f
}

// Formulate computes the volume of each source well needed to hit the
// target, retrying with infeasible wells removed. Results are cached per
// method instance.
func (f *Formulation) Formulate(layout *bedlayout.LHBedLayout) ([]float64, []*bedlayout.Well, bool) {
	r := f.results(layout)
	return r.Volumes, r.Wells, r.Success
}

func (f *Formulation) results(layout *bedlayout.LHBedLayout) result {
	if f.cached == nil {
		r := f.solve(layout)
		f.cached = &r
	}
	return *f.cached
}

// Invalidate clears the cached solution so the next use replans against the
// current layout.
func (f *Formulation) Invalidate() { f.cached = nil }

func (f *Formulation) formulate(layout *bedlayout.LHBedLayout) result {
	targetNames, targetVector, targetUnits := f.makeTargetVector()
	if len(targetNames) == 0 {
		return result{}
	}

	sourceWells, available := f.selectWells(f.candidateWells(layout), targetNames)
	if len(sourceWells) == 0 {
		return result{}
	}
	for _, name := range targetNames {
		if !available[name] {
			return result{}
		}
	}

	var sol []float64
	var wells []*bedlayout.Well
	for {
		matrix, relevant := f.makeSourceMatrix(targetNames, sourceWells, targetUnits)
		if len(relevant) == 0 {
			return result{}
		}

		b := mat.NewVecDense(len(targetVector), append([]float64(nil), targetVector...))
		x, residual := nnls(matrix, b)
		if math.Abs(residual) > residualTolerance {
			return result{}
		}

		// Every assignment must leave the source rack's dead volume behind.
		feasible := true
		for i, well := range relevant {
			required := x[i] * f.TargetVolume
			minVolume := 0.0
			if rack, ok := layout.Racks[well.RackID]; ok {
				minVolume = rack.MinVolume
			}
			if required+minVolume > well.Volume {
				sourceWells = removeWell(sourceWells, well)
				feasible = false
			}
		}
		if feasible {
			sol, wells = x, relevant
			break
		}
	}

	var volumes []float64
	var resultWells []*bedlayout.Well
	for i, well := range wells {
		if v := sol[i] * f.TargetVolume; v > zeroVolumeTolerance {
			volumes = append(volumes, v)
			resultWells = append(resultWells, well)
		}
	}
	return result{Volumes: volumes, Wells: resultWells, Success: true}
}

// GetExpectedComposition simulates the planned mixing and reports the
// composition the target well will hold.
func (f *Formulation) GetExpectedComposition(layout *bedlayout.LHBedLayout) bedlayout.Composition {
	r := f.results(layout)
	if !r.Success {
		return bedlayout.Composition{}
	}
	var mix bedlayout.Solution
	for i, well := range r.Wells {
		mix.MixWith(r.Volumes[i], well.Composition)
	}
	return mix.Composition
}

// GetTargetWell returns where the formulated material will live: the
// declared target, or the source well itself when the formulation already
// exists on the bed as a single well.
func (f *Formulation) GetTargetWell(layout *bedlayout.LHBedLayout) (bedlayout.WellLocation, bool) {
	r := f.results(layout)
	if !r.Success {
		return bedlayout.WellLocation{}, false
	}
	if len(r.Volumes) > 1 {
		return f.Target, true
	}
	comp := f.TargetComposition.Clone()
	return bedlayout.WellLocation{
		RackID:              r.Wells[0].RackID,
		WellNumber:          r.Wells[0].WellNumber,
		ExpectedComposition: &comp,
	}, true
}

// GetMethods expands the formulation into a cluster of transfers in
// descending volume order, followed by a mix when more than one transfer
// contributes.
func (f *Formulation) GetMethods(layout *bedlayout.LHBedLayout) []methods.Method {
	r := f.results(layout)
	if !r.Success || len(r.Volumes) == 0 {
		return nil
	}

	order := make([]int, len(r.Volumes))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return r.Volumes[order[a]] > r.Volumes[order[b]] })

	var children []methods.Method
	for _, i := range order {
		transfer := *f.TransferTemplate
		transfer.ID = uuid.NewString()
		transfer.Tasks = nil
		transfer.Status = status.Inactive
		transfer.Source = bedlayout.WellLocation{RackID: r.Wells[i].RackID, WellNumber: r.Wells[i].WellNumber}
		transfer.Target = f.Target
		transfer.Volume = r.Volumes[i]
		children = append(children, &transfer)
	}

	if len(r.Volumes) > 1 {
		total := 0.0
		for _, v := range r.Volumes {
			total += v
		}
		mixVolume := 0.9 * total
		if mixVolume < 0.1 {
			mixVolume = 0.1
		}
		mix := *f.MixTemplate
		mix.ID = uuid.NewString()
		mix.Tasks = nil
		mix.Status = status.Inactive
		mix.Target = f.Target
		mix.Volume = mixVolume
		children = append(children, &mix)
	}

	return []methods.Method{methods.NewMethodCluster(children...)}
}

func (f *Formulation) Render(sampleName, sampleDescription string, layout *bedlayout.LHBedLayout) []methods.DeviceMethods {
	return methods.RenderAll(f, sampleName, sampleDescription, layout)
}

func (f *Formulation) Execute(layout *bedlayout.LHBedLayout) *methods.MethodError {
	return methods.ExecuteAll(f, layout)
}

func (f *Formulation) Waste(layout *bedlayout.LHBedLayout) waste.WasteItem {
	return methods.WasteAll(f, layout)
}

// makeTargetVector flattens the target composition into parallel name and
// amount slices. Solvents contribute volume fractions, solutes total
// concentration in their declared units.
func (f *Formulation) makeTargetVector() ([]string, []float64, map[string]string) {
	names, fractions := f.TargetComposition.SolventFractions()
	vector := append([]float64(nil), fractions...)
	units := map[string]string{}
	for _, solute := range f.TargetComposition.Solutes {
		names = append(names, solute.Name)
		vector = append(vector, solute.Concentration)
		units[solute.Name] = solute.Units
	}
	return names, vector, units
}

// candidateWells lists the wells in the zones this formulation may draw
// from.
func (f *Formulation) candidateWells(layout *bedlayout.LHBedLayout) []*bedlayout.Well {
	var out []*bedlayout.Well
	for _, well := range layout.GetAllWells() {
		zone, _ := bedlayout.LayoutWellToZoneWell(well.RackID, well.WellNumber)
		for _, include := range f.IncludeZones {
			if zone == include {
				out = append(out, well)
				break
			}
		}
	}
	return out
}

// selectWells filters candidates by component compatibility and reports
// every component seen.
func (f *Formulation) selectWells(wells []*bedlayout.Well, targetNames []string) ([]*bedlayout.Well, map[string]bool) {
	targets := map[string]bool{}
	for _, name := range targetNames {
		targets[name] = true
	}

	var acceptable []*bedlayout.Well
	available := map[string]bool{}
	for _, well := range wells {
		components := append(well.Composition.SolventNames(), well.Composition.SoluteNames()...)
		match := f.ExactMatch
		for _, cmp := range components {
			available[cmp] = true
			if f.ExactMatch {
				// every component must belong to the target
				if !targets[cmp] {
					match = false
				}
			} else {
				// any shared component qualifies the well
				if targets[cmp] {
					match = true
				}
			}
		}
		if match && len(components) > 0 {
			acceptable = append(acceptable, well)
		}
	}
	return acceptable, available
}

// makeSourceMatrix builds the component matrix with one column per well
// that can contribute. Solute concentrations are converted to the target's
// units.
func (f *Formulation) makeSourceMatrix(targetNames []string, wells []*bedlayout.Well, targetUnits map[string]string) (*mat.Dense, []*bedlayout.Well) {
	var cols [][]float64
	var relevant []*bedlayout.Well
	for _, well := range wells {
		solventNames, solventFractions := well.Composition.SolventFractions()
		col := make([]float64, len(targetNames))
		total := 0.0
		for row, name := range targetNames {
			for i, sn := range solventNames {
				if sn == name {
					col[row] = solventFractions[i]
				}
			}
			for _, solute := range well.Composition.Solutes {
				if solute.Name == name {
					conv, err := solute.ConvertUnits(targetUnits[name])
					if err == nil {
						col[row] = conv
					}
				}
			}
			total += col[row]
		}
		if total > 0 {
			cols = append(cols, col)
			relevant = append(relevant, well)
		}
	}
	if len(relevant) == 0 {
		return nil, nil
	}

	matrix := mat.NewDense(len(targetNames), len(cols), nil)
	for j, col := range cols {
		for i, v := range col {
			matrix.Set(i, j, v)
		}
	}
	return matrix, relevant
}

func removeWell(wells []*bedlayout.Well, target *bedlayout.Well) []*bedlayout.Well {
	out := wells[:0]
	for _, w := range wells {
		if w != target {
			out = append(out, w)
		}
	}
	return out
}

// SoluteFormulation specifies only the solutes of interest; the missing
// volume is filled with a diluent that must already exist on the bed.
type SoluteFormulation struct {
	Formulation
	Diluent bedlayout.Composition `json:"diluent"`
}

func NewSoluteFormulation() *SoluteFormulation {
	f := &SoluteFormulation{Formulation: *NewFormulation()}
	f.Base = methods.NewBase("SoluteFormulation", "SoluteFormulation", methods.TypeContainer)
	f.ExactMatch = false
	f.solve = f.formulateWithDiluent
	return f
}

func (f *SoluteFormulation) formulateWithDiluent(layout *bedlayout.LHBedLayout) result {
	base := f.formulate(layout)

	var diluentWell *bedlayout.Well
	for _, well := range f.candidateWells(layout) {
		if well.Composition.Equal(f.Diluent) {
			diluentWell = well
			break
		}
	}
	if diluentWell == nil {
		return result{}
	}

	used := 0.0
	for _, v := range base.Volumes {
		used += v
	}
	diluentVolume := f.TargetVolume - used
	if math.Abs(diluentVolume) > zeroVolumeTolerance {
		if diluentVolume < 0 {
			return result{}
		}
		base.Volumes = append(base.Volumes, diluentVolume)
		base.Wells = append(base.Wells, diluentWell)
	}
	base.Success = true
	return base
}
