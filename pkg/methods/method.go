// Package methods implements the declarative units of work a sample plan is
// made of: transfers, mixes, injections, instrument commands, and the
// containers that expand into them against a live bed layout.
package methods

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/roadmap-automation/lh-manager-sub000/pkg/bedlayout"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/status"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/tasks"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/waste"
)

// MethodType classifies what a method does to the bed.
type MethodType string

const (
	TypeNone      MethodType = "none"
	TypeContainer MethodType = "container"
	TypeTransfer  MethodType = "transfer"
	TypeMix       MethodType = "mix"
	TypeInject    MethodType = "inject"
	TypePrepare   MethodType = "prepare"
	TypeMeasure   MethodType = "measure"
)

// MethodError reports a failed simulated execution.
type MethodError struct {
	Name    string `json:"name"`
	Message string `json:"error"`
}

func (e *MethodError) String() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// wrap prefixes an inner error with the enclosing container's display name.
func (e *MethodError) wrap(displayName string) *MethodError {
	return &MethodError{Name: displayName + "." + e.Name, Message: e.Message}
}

// Record is one rendered sub-method for a single device.
type Record struct {
	SampleName        string         `json:"sample_name,omitempty"`
	SampleDescription string         `json:"sample_description,omitempty"`
	MethodName        string         `json:"method_name"`
	MethodData        map[string]any `json:"method_data"`
}

// DeviceMethods is one rendered dictionary: device name to the sub-methods
// that device runs. A dictionary with more than one key is a transfer
// coordinated across devices.
type DeviceMethods map[string][]Record

// VendorRow is one stringified row of the vendor sample-list wire format.
type VendorRow map[string]string

// Method is a declarative unit of work.
type Method interface {
	// Meta exposes the shared identity and lifecycle fields.
	Meta() *Base
	// GetMethods expands the method against the live layout. Leaf methods
	// return themselves; containers generate their children.
	GetMethods(layout *bedlayout.LHBedLayout) []Method
	// Render converts the method to device-keyed sub-method dictionaries.
	Render(sampleName, sampleDescription string, layout *bedlayout.LHBedLayout) []DeviceMethods
	// Execute simulates the method's effect on the layout. Preconditions are
	// checked before any mutation so a failed method leaves the layout
	// untouched.
	Execute(layout *bedlayout.LHBedLayout) *MethodError
	// Waste reports the waste stream the method produces.
	Waste(layout *bedlayout.LHBedLayout) waste.WasteItem
}

// VendorRenderer is implemented by robot methods that appear in the vendor
// sample list.
type VendorRenderer interface {
	RenderVendor(sampleName, sampleDescription string, layout *bedlayout.LHBedLayout) []VendorRow
}

// Exploder is implemented by methods whose expansion is not simply GetMethods
// over self (e.g. clusters that flatten their children).
type Exploder interface {
	Explode(layout *bedlayout.LHBedLayout) []Method
}

// Base carries the fields shared by every method.
type Base struct {
	ID          string                `json:"id"`
	Tasks       []*tasks.TaskContainer `json:"tasks"`
	Status      status.Status         `json:"status"`
	MethodName  string                `json:"method_name"`
	DisplayName string                `json:"display_name"`
	MethodType  MethodType            `json:"method_type"`
}

func newBase(methodName, displayName string, methodType MethodType) Base {
	return Base{
		ID:          uuid.NewString(),
		Status:      status.Inactive,
		MethodName:  methodName,
		DisplayName: displayName,
		MethodType:  methodType,
	}
}

// NewBase seeds the shared fields for a method implemented outside this
// package.
func NewBase(methodName, displayName string, methodType MethodType) Base {
	return newBase(methodName, displayName, methodType)
}

// Meta returns the shared fields for mutation.
func (b *Base) Meta() *Base { return b }

// Execute is the default no-op simulation.
func (b *Base) Execute(*bedlayout.LHBedLayout) *MethodError { return nil }

// Waste is the default empty waste stream.
func (b *Base) Waste(*bedlayout.LHBedLayout) waste.WasteItem { return waste.WasteItem{} }

// Render is the default empty rendering.
func (b *Base) Render(string, string, *bedlayout.LHBedLayout) []DeviceMethods { return nil }

// RollupStatus recomputes the method status from its task containers.
func (b *Base) RollupStatus() status.Status {
	if len(b.Tasks) == 0 {
		return b.Status
	}
	states := make([]status.Status, len(b.Tasks))
	cancelled := 0
	for i, t := range b.Tasks {
		states[i] = t.Status
		if t.Status == status.Cancelled {
			cancelled++
		}
	}
	if cancelled == len(b.Tasks) {
		b.Status = status.Cancelled
		return b.Status
	}
	b.Status = status.RollupMethod(states)
	return b.Status
}

// AddTask appends a task container to the method.
func (b *Base) AddTask(t *tasks.TaskContainer) {
	b.Tasks = append(b.Tasks, t)
}

// Explode computes the transitive closure of GetMethods: the flat list of
// leaf methods this method expands to against the given layout.
func Explode(m Method, layout *bedlayout.LHBedLayout) []Method {
	if ex, ok := m.(Exploder); ok {
		return ex.Explode(layout)
	}
	expanded := m.GetMethods(layout)
	if len(expanded) == 1 && expanded[0] == m {
		return expanded
	}
	var out []Method
	for _, child := range expanded {
		out = append(out, Explode(child, layout)...)
	}
	return out
}

// ExecuteAll simulates a container method by executing its expansion in
// order. A child failure is reported under the container's display name.
func ExecuteAll(m Method, layout *bedlayout.LHBedLayout) *MethodError {
	for _, child := range m.GetMethods(layout) {
		if child == m {
			continue
		}
		if err := child.Execute(layout); err != nil {
			return err.wrap(m.Meta().DisplayName)
		}
	}
	return nil
}

// WasteAll accumulates the waste streams of a container's expansion.
func WasteAll(m Method, layout *bedlayout.LHBedLayout) waste.WasteItem {
	var parts []waste.WasteItem
	for _, child := range m.GetMethods(layout) {
		if child == m {
			continue
		}
		parts = append(parts, child.Waste(layout))
	}
	return mixWaste(parts...)
}

// RenderAll concatenates the renderings of a container's expansion.
func RenderAll(m Method, sampleName, sampleDescription string, layout *bedlayout.LHBedLayout) []DeviceMethods {
	var out []DeviceMethods
	for _, child := range m.GetMethods(layout) {
		if child == m {
			continue
		}
		out = append(out, child.Render(sampleName, sampleDescription, layout)...)
	}
	return out
}

// fieldMap renders a method's own fields as a JSON-shaped map, excluding the
// shared identity and lifecycle fields.
func fieldMap(m Method) map[string]any {
	data, err := json.Marshal(m)
	if err != nil {
		return map[string]any{}
	}
	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{}
	}
	for _, key := range []string{"id", "tasks", "status", "method_name", "display_name", "method_type"} {
		delete(out, key)
	}
	return out
}

// renderSingle renders a leaf method as a single-device dictionary.
func renderSingle(m Method, device, sampleName, sampleDescription string) []DeviceMethods {
	return []DeviceMethods{{
		device: []Record{{
			SampleName:        sampleName,
			SampleDescription: sampleDescription,
			MethodName:        m.Meta().MethodName,
			MethodData:        fieldMap(m),
		}},
	}}
}

// bindLocation resolves a late-bound location in place. When the layout has
// no well left to claim the location is left unbound rather than panicking
// mid-render.
func bindLocation(loc *bedlayout.WellLocation, layout *bedlayout.LHBedLayout) {
	if bound := layout.InferLocation(loc); bound != nil {
		*loc = *bound
	}
}

// sourceComposition resolves the composition a location will hold at run
// time: the realized well contents when the location binds to a physical
// well, else the expected composition.
func sourceComposition(loc *bedlayout.WellLocation, layout *bedlayout.LHBedLayout) bedlayout.Composition {
	inferred := layout.InferLocation(loc)
	if inferred != nil && inferred.WellNumber != 0 {
		if well, _, err := layout.GetWellAndRack(inferred.RackID, inferred.WellNumber); err == nil {
			return well.Composition
		}
	}
	if loc.ExpectedComposition != nil {
		return *loc.ExpectedComposition
	}
	return bedlayout.Composition{}
}

// mixWaste accumulates waste contributions into a single item.
func mixWaste(parts ...waste.WasteItem) waste.WasteItem {
	var s bedlayout.Solution
	for _, p := range parts {
		s.MixWith(p.Volume, p.Composition)
	}
	return waste.WasteItem{Composition: s.Composition, Volume: s.Volume}
}
