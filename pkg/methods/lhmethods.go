package methods

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/roadmap-automation/lh-manager-sub000/pkg/bedlayout"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/devices"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/waste"
)

func init() {
	Default.Register(func() Method { return NewTransferWithRinse() }, true)
	Default.Register(func() Method { return NewMixWithRinse() }, true)
	Default.Register(func() Method { return NewInjectWithRinse() }, true)
	Default.Register(func() Method { return NewSleep() }, true)
	Default.Register(func() Method { return NewSleep2() }, true)
	Default.Register(func() Method { return NewPrime() }, true)
	Default.Register(func() Method { return NewLoadLoop() }, true)
	Default.Register(func() Method { return NewDirectInject() }, true)
	Default.Register(func() Method { return NewMethodCluster() }, false)
	Default.Register(func() Method { return NewSetWellID() }, false)
	Default.Register(func() Method { return NewRelease() }, false)
}

// formatFloat renders a float the way the robot sample list expects,
// always with a decimal point ("2.5", "10.0").
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	for i := 0; i < len(s); i++ {
		if s[i] == '.' || s[i] == 'e' || s[i] == 'E' {
			return s
		}
	}
	return s + ".0"
}

func formatBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}

func vendorBase(sampleName, sampleDescription, methodName string) VendorRow {
	return VendorRow{
		"SAMPLENAME":        sampleName,
		"SAMPLEDESCRIPTION": sampleDescription,
		"METHODNAME":        methodName,
	}
}

// TransferWithRinse moves liquid from a source well to a target well,
// aspirating an extra volume that is discarded along with the needle rinses.
type TransferWithRinse struct {
	Base
	Source                  bedlayout.WellLocation `json:"Source"`
	Target                  bedlayout.WellLocation `json:"Target"`
	Volume                  float64                `json:"Volume"`
	FlowRate                float64                `json:"Flow_Rate"`
	AspirateFlowRate        float64                `json:"Aspirate_Flow_Rate"`
	ExtraVolume             float64                `json:"Extra_Volume"`
	OutsideRinseVolume      float64                `json:"Outside_Rinse_Volume"`
	InsideRinseVolume       float64                `json:"Inside_Rinse_Volume"`
	AirGap                  float64                `json:"Air_Gap"`
	UseLiquidLevelDetection bool                   `json:"Use_Liquid_Level_Detection"`
}

// NewTransferWithRinse returns a transfer with the standard flow defaults.
func NewTransferWithRinse() *TransferWithRinse {
	return &TransferWithRinse{
		Base:                    newBase("NCNR_TransferWithRinse", "Transfer With Rinse", TypeTransfer),
		Volume:                  1.0,
		FlowRate:                2.5,
		AspirateFlowRate:        2.0,
		ExtraVolume:             0.1,
		OutsideRinseVolume:      0.5,
		InsideRinseVolume:       0.5,
		AirGap:                  0.1,
		UseLiquidLevelDetection: true,
	}
}

func (m *TransferWithRinse) GetMethods(*bedlayout.LHBedLayout) []Method { return []Method{m} }

func (m *TransferWithRinse) Render(sampleName, sampleDescription string, layout *bedlayout.LHBedLayout) []DeviceMethods {
	return renderSingle(m, devices.LiquidHandlerName, sampleName, sampleDescription)
}

// transferVolume is the volume aspirated from the source.
func (m *TransferWithRinse) transferVolume() float64 { return m.Volume + m.ExtraVolume }

func (m *TransferWithRinse) Execute(layout *bedlayout.LHBedLayout) *MethodError {
	source, _, err := layout.GetWellAndRack(m.Source.RackID, m.Source.WellNumber)
	if err != nil {
		return &MethodError{Name: m.DisplayName, Message: err.Error()}
	}
	target, targetRack, err := layout.GetWellAndRack(m.Target.RackID, m.Target.WellNumber)
	if err != nil {
		return &MethodError{Name: m.DisplayName, Message: err.Error()}
	}
	if m.transferVolume() > source.Volume {
		return &MethodError{
			Name:    m.DisplayName,
			Message: fmt.Sprintf("well %d in %s rack contains %v but needs %v", source.WellNumber, source.RackID, source.Volume, m.transferVolume()),
		}
	}
	if target.Volume+m.Volume > targetRack.MaxVolume {
		return &MethodError{
			Name:    m.DisplayName,
			Message: fmt.Sprintf("total volume %v from existing volume %v and transfer volume %v exceeds rack maximum volume %v", target.Volume+m.Volume, target.Volume, m.Volume, targetRack.MaxVolume),
		}
	}
	source.Volume -= m.transferVolume()
	target.MixWith(m.Volume, source.Composition)
	return nil
}

func (m *TransferWithRinse) Waste(layout *bedlayout.LHBedLayout) waste.WasteItem {
	return mixWaste(
		waste.WasteItem{Composition: sourceComposition(&m.Source, layout), Volume: m.ExtraVolume},
		waste.WasteItem{Composition: bedlayout.Water(), Volume: m.OutsideRinseVolume + m.InsideRinseVolume},
	)
}

func (m *TransferWithRinse) RenderVendor(sampleName, sampleDescription string, layout *bedlayout.LHBedLayout) []VendorRow {
	bindLocation(&m.Source, layout)
	bindLocation(&m.Target, layout)
	sourceZone, sourceWell := bedlayout.LayoutWellToZoneWell(m.Source.RackID, m.Source.WellNumber)
	targetZone, targetWell := bedlayout.LayoutWellToZoneWell(m.Target.RackID, m.Target.WellNumber)
	row := vendorBase(sampleName, sampleDescription, m.MethodName)
	row["Source_Zone"] = string(sourceZone)
	row["Source_Well"] = sourceWell
	row["Volume"] = formatFloat(m.Volume)
	row["Flow_Rate"] = formatFloat(m.FlowRate)
	row["Aspirate_Flow_Rate"] = formatFloat(m.AspirateFlowRate)
	row["Extra_Volume"] = formatFloat(m.ExtraVolume)
	row["Outside_Rinse_Volume"] = formatFloat(m.OutsideRinseVolume)
	row["Inside_Rinse_Volume"] = formatFloat(m.InsideRinseVolume)
	row["Air_Gap"] = formatFloat(m.AirGap)
	row["Use_Liquid_Level_Detection"] = formatBool(m.UseLiquidLevelDetection)
	row["Target_Zone"] = string(targetZone)
	row["Target_Well"] = targetWell
	return []VendorRow{row}
}

// MixWithRinse mixes a target well in place, consuming the extra volume.
type MixWithRinse struct {
	Base
	Target                  bedlayout.WellLocation `json:"Target"`
	Volume                  float64                `json:"Volume"`
	FlowRate                float64                `json:"Flow_Rate"`
	AspirateFlowRate        float64                `json:"Aspirate_Flow_Rate"`
	ExtraVolume             float64                `json:"Extra_Volume"`
	OutsideRinseVolume      float64                `json:"Outside_Rinse_Volume"`
	InsideRinseVolume       float64                `json:"Inside_Rinse_Volume"`
	AirGap                  float64                `json:"Air_Gap"`
	Repeats                 int                    `json:"Repeats"`
	UseLiquidLevelDetection bool                   `json:"Use_Liquid_Level_Detection"`
}

func NewMixWithRinse() *MixWithRinse {
	return &MixWithRinse{
		Base:                    newBase("NCNR_MixWithRinse", "Mix With Rinse", TypeMix),
		Volume:                  1.0,
		FlowRate:                2.5,
		AspirateFlowRate:        2.0,
		ExtraVolume:             0.1,
		OutsideRinseVolume:      0.5,
		InsideRinseVolume:       0.5,
		AirGap:                  0.1,
		Repeats:                 3,
		UseLiquidLevelDetection: true,
	}
}

func (m *MixWithRinse) GetMethods(*bedlayout.LHBedLayout) []Method { return []Method{m} }

func (m *MixWithRinse) Render(sampleName, sampleDescription string, layout *bedlayout.LHBedLayout) []DeviceMethods {
	return renderSingle(m, devices.LiquidHandlerName, sampleName, sampleDescription)
}

func (m *MixWithRinse) Execute(layout *bedlayout.LHBedLayout) *MethodError {
	target, _, err := layout.GetWellAndRack(m.Target.RackID, m.Target.WellNumber)
	if err != nil {
		return &MethodError{Name: m.DisplayName, Message: err.Error()}
	}
	if m.Volume > target.Volume {
		return &MethodError{
			Name:    m.DisplayName,
			Message: fmt.Sprintf("mix with volume %v requested but well %d in %s rack contains only %v", m.Volume, target.WellNumber, target.RackID, target.Volume),
		}
	}
	target.Volume -= m.ExtraVolume
	return nil
}

func (m *MixWithRinse) Waste(layout *bedlayout.LHBedLayout) waste.WasteItem {
	return mixWaste(
		waste.WasteItem{Composition: sourceComposition(&m.Target, layout), Volume: m.ExtraVolume},
		waste.WasteItem{Composition: bedlayout.Water(), Volume: m.OutsideRinseVolume + m.InsideRinseVolume},
	)
}

func (m *MixWithRinse) RenderVendor(sampleName, sampleDescription string, layout *bedlayout.LHBedLayout) []VendorRow {
	bindLocation(&m.Target, layout)
	targetZone, targetWell := bedlayout.LayoutWellToZoneWell(m.Target.RackID, m.Target.WellNumber)
	row := vendorBase(sampleName, sampleDescription, m.MethodName)
	row["Volume"] = formatFloat(m.Volume)
	row["Flow_Rate"] = formatFloat(m.FlowRate)
	row["Aspirate_Flow_Rate"] = formatFloat(m.AspirateFlowRate)
	row["Extra_Volume"] = formatFloat(m.ExtraVolume)
	row["Outside_Rinse_Volume"] = formatFloat(m.OutsideRinseVolume)
	row["Inside_Rinse_Volume"] = formatFloat(m.InsideRinseVolume)
	row["Air_Gap"] = formatFloat(m.AirGap)
	row["Use_Liquid_Level_Detection"] = formatBool(m.UseLiquidLevelDetection)
	row["Repeats"] = strconv.Itoa(m.Repeats)
	row["Target_Zone"] = string(targetZone)
	row["Target_Well"] = targetWell
	return []VendorRow{row}
}

// InjectWithRinse pushes source liquid into the injection port.
type InjectWithRinse struct {
	Base
	Source                  bedlayout.WellLocation `json:"Source"`
	Volume                  float64                `json:"Volume"`
	AspirateFlowRate        float64                `json:"Aspirate_Flow_Rate"`
	FlowRate                float64                `json:"Flow_Rate"`
	ExtraVolume             float64                `json:"Extra_Volume"`
	OutsideRinseVolume      float64                `json:"Outside_Rinse_Volume"`
	AirGap                  float64                `json:"Air_Gap"`
	UseLiquidLevelDetection bool                   `json:"Use_Liquid_Level_Detection"`
}

func NewInjectWithRinse() *InjectWithRinse {
	return &InjectWithRinse{
		Base:                    newBase("NCNR_InjectWithRinse", "Inject With Rinse", TypeInject),
		Volume:                  1.0,
		AspirateFlowRate:        2.0,
		FlowRate:                2.5,
		ExtraVolume:             0.1,
		OutsideRinseVolume:      0.5,
		AirGap:                  0.1,
		UseLiquidLevelDetection: true,
	}
}

func (m *InjectWithRinse) GetMethods(*bedlayout.LHBedLayout) []Method { return []Method{m} }

func (m *InjectWithRinse) Render(sampleName, sampleDescription string, layout *bedlayout.LHBedLayout) []DeviceMethods {
	return renderSingle(m, devices.LiquidHandlerName, sampleName, sampleDescription)
}

func (m *InjectWithRinse) sampleVolume() float64 { return m.Volume + m.ExtraVolume }

func (m *InjectWithRinse) Execute(layout *bedlayout.LHBedLayout) *MethodError {
	return executeInject(m.DisplayName, &m.Source, m.sampleVolume(), layout)
}

func (m *InjectWithRinse) Waste(layout *bedlayout.LHBedLayout) waste.WasteItem {
	return injectWaste(&m.Source, m.Volume+m.ExtraVolume, m.OutsideRinseVolume, layout)
}

func (m *InjectWithRinse) RenderVendor(sampleName, sampleDescription string, layout *bedlayout.LHBedLayout) []VendorRow {
	bindLocation(&m.Source, layout)
	sourceZone, sourceWell := bedlayout.LayoutWellToZoneWell(m.Source.RackID, m.Source.WellNumber)
	row := vendorBase(sampleName, sampleDescription, m.MethodName)
	row["Source_Zone"] = string(sourceZone)
	row["Source_Well"] = sourceWell
	row["Volume"] = formatFloat(m.Volume)
	row["Aspirate_Flow_Rate"] = formatFloat(m.AspirateFlowRate)
	row["Flow_Rate"] = formatFloat(m.FlowRate)
	row["Extra_Volume"] = formatFloat(m.ExtraVolume)
	row["Outside_Rinse_Volume"] = formatFloat(m.OutsideRinseVolume)
	row["Air_Gap"] = formatFloat(m.AirGap)
	row["Use_Liquid_Level_Detection"] = formatBool(m.UseLiquidLevelDetection)
	return []VendorRow{row}
}

// executeInject removes the aspirated volume from the source well.
func executeInject(displayName string, source *bedlayout.WellLocation, volume float64, layout *bedlayout.LHBedLayout) *MethodError {
	well, _, err := layout.GetWellAndRack(source.RackID, source.WellNumber)
	if err != nil {
		return &MethodError{Name: displayName, Message: err.Error()}
	}
	if volume > well.Volume {
		return &MethodError{
			Name:    displayName,
			Message: fmt.Sprintf("injection of volume %v requested but well %d in %s rack contains only %v", volume, well.WellNumber, well.RackID, well.Volume),
		}
	}
	well.Volume -= volume
	return nil
}

// injectWaste is the waste stream common to injection-style methods: the
// whole aspirated volume plus the outside rinse and the loop flush.
func injectWaste(source *bedlayout.WellLocation, volume, outsideRinse float64, layout *bedlayout.LHBedLayout) waste.WasteItem {
	return mixWaste(
		waste.WasteItem{Composition: sourceComposition(source, layout), Volume: volume},
		waste.WasteItem{Composition: bedlayout.Water(), Volume: outsideRinse + 0.5},
	)
}

// Sleep pauses the robot.
type Sleep struct {
	Base
	Time float64 `json:"Time"`
}

func NewSleep() *Sleep {
	return &Sleep{Base: newBase("NCNR_Sleep", "Sleep", TypeNone), Time: 1.0}
}

func (m *Sleep) GetMethods(*bedlayout.LHBedLayout) []Method { return []Method{m} }

func (m *Sleep) Render(sampleName, sampleDescription string, layout *bedlayout.LHBedLayout) []DeviceMethods {
	return renderSingle(m, devices.LiquidHandlerName, sampleName, sampleDescription)
}

func (m *Sleep) RenderVendor(sampleName, sampleDescription string, _ *bedlayout.LHBedLayout) []VendorRow {
	row := vendorBase(sampleName, sampleDescription, m.MethodName)
	row["Time"] = formatFloat(m.Time)
	return []VendorRow{row}
}

// Sleep2 is the second timer variant of Sleep.
type Sleep2 struct {
	Base
	Time2 float64 `json:"Time2"`
}

func NewSleep2() *Sleep2 {
	return &Sleep2{Base: newBase("NCNR_Sleep2", "Sleep2", TypeNone), Time2: 1.0}
}

func (m *Sleep2) GetMethods(*bedlayout.LHBedLayout) []Method { return []Method{m} }

func (m *Sleep2) Render(sampleName, sampleDescription string, layout *bedlayout.LHBedLayout) []DeviceMethods {
	return renderSingle(m, devices.LiquidHandlerName, sampleName, sampleDescription)
}

func (m *Sleep2) RenderVendor(sampleName, sampleDescription string, _ *bedlayout.LHBedLayout) []VendorRow {
	row := vendorBase(sampleName, sampleDescription, m.MethodName)
	row["Time2"] = formatFloat(m.Time2)
	return []VendorRow{row}
}

// Prime flushes the flow path with water.
type Prime struct {
	Base
	Volume  float64 `json:"Volume"`
	Repeats int     `json:"Repeats"`
}

func NewPrime() *Prime {
	return &Prime{Base: newBase("NCNR_Prime", "Prime", TypeNone), Volume: 10.0, Repeats: 1}
}

func (m *Prime) GetMethods(*bedlayout.LHBedLayout) []Method { return []Method{m} }

func (m *Prime) Render(sampleName, sampleDescription string, layout *bedlayout.LHBedLayout) []DeviceMethods {
	return renderSingle(m, devices.LiquidHandlerName, sampleName, sampleDescription)
}

func (m *Prime) Waste(*bedlayout.LHBedLayout) waste.WasteItem {
	return waste.WasteItem{Composition: bedlayout.Water(), Volume: m.Volume * float64(m.Repeats)}
}

func (m *Prime) RenderVendor(sampleName, sampleDescription string, _ *bedlayout.LHBedLayout) []VendorRow {
	row := vendorBase(sampleName, sampleDescription, m.MethodName)
	row["Volume"] = formatFloat(m.Volume)
	row["Repeats"] = strconv.Itoa(m.Repeats)
	return []VendorRow{row}
}

// LoadLoop aspirates from a source well into the injection system loop.
type LoadLoop struct {
	Base
	Source                  bedlayout.WellLocation `json:"Source"`
	Volume                  float64                `json:"Volume"`
	AspirateFlowRate        float64                `json:"Aspirate_Flow_Rate"`
	FlowRate                float64                `json:"Flow_Rate"`
	OutsideRinseVolume      float64                `json:"Outside_Rinse_Volume"`
	ExtraVolume             float64                `json:"Extra_Volume"`
	AirGap                  float64                `json:"Air_Gap"`
	UseLiquidLevelDetection bool                   `json:"Use_Liquid_Level_Detection"`
}

func NewLoadLoop() *LoadLoop {
	return &LoadLoop{
		Base:                    newBase("ROADMAP_QCMD_LoadLoop", "Load Injection System Loop", TypeInject),
		Volume:                  1.0,
		AspirateFlowRate:        2.5,
		FlowRate:                2.5,
		OutsideRinseVolume:      0.5,
		ExtraVolume:             0.1,
		AirGap:                  0.1,
		UseLiquidLevelDetection: true,
	}
}

func (m *LoadLoop) GetMethods(*bedlayout.LHBedLayout) []Method { return []Method{m} }

func (m *LoadLoop) Render(sampleName, sampleDescription string, layout *bedlayout.LHBedLayout) []DeviceMethods {
	return renderSingle(m, devices.LiquidHandlerName, sampleName, sampleDescription)
}

func (m *LoadLoop) sampleVolume() float64 { return m.Volume + m.ExtraVolume }

func (m *LoadLoop) Execute(layout *bedlayout.LHBedLayout) *MethodError {
	return executeInject(m.DisplayName, &m.Source, m.sampleVolume(), layout)
}

func (m *LoadLoop) Waste(layout *bedlayout.LHBedLayout) waste.WasteItem {
	return injectWaste(&m.Source, m.Volume+m.ExtraVolume, m.OutsideRinseVolume, layout)
}

func (m *LoadLoop) RenderVendor(sampleName, sampleDescription string, layout *bedlayout.LHBedLayout) []VendorRow {
	bindLocation(&m.Source, layout)
	sourceZone, sourceWell := bedlayout.LayoutWellToZoneWell(m.Source.RackID, m.Source.WellNumber)
	row := vendorBase(sampleName, sampleDescription, m.MethodName)
	row["Source_Zone"] = string(sourceZone)
	row["Source_Well"] = sourceWell
	row["Volume"] = formatFloat(m.Volume)
	row["Aspirate_Flow_Rate"] = formatFloat(m.AspirateFlowRate)
	row["Flow_Rate"] = formatFloat(m.FlowRate)
	row["Outside_Rinse_Volume"] = formatFloat(m.OutsideRinseVolume)
	row["Extra_Volume"] = formatFloat(m.ExtraVolume)
	row["Air_Gap"] = formatFloat(m.AirGap)
	row["Use_Liquid_Level_Detection"] = formatBool(m.UseLiquidLevelDetection)
	return []VendorRow{row}
}

// DirectInject pushes source liquid straight through the injection valve
// onto the measurement cell.
type DirectInject struct {
	Base
	Source                  bedlayout.WellLocation `json:"Source"`
	Volume                  float64                `json:"Volume"`
	AspirateFlowRate        float64                `json:"Aspirate_Flow_Rate"`
	LoadFlowRate            float64                `json:"Load_Flow_Rate"`
	InjectionFlowRate       float64                `json:"Injection_Flow_Rate"`
	OutsideRinseVolume      float64                `json:"Outside_Rinse_Volume"`
	ExtraVolume             float64                `json:"Extra_Volume"`
	AirGap                  float64                `json:"Air_Gap"`
	UseLiquidLevelDetection bool                   `json:"Use_Liquid_Level_Detection"`
	UseBubbleSensors        bool                   `json:"Use_Bubble_Sensors"`
}

func NewDirectInject() *DirectInject {
	return &DirectInject{
		Base:                    newBase("ROADMAP_QCMD_DirectInject", "Direct Inject", TypeInject),
		Volume:                  1.0,
		AspirateFlowRate:        2.5,
		LoadFlowRate:            2.5,
		InjectionFlowRate:       1.0,
		OutsideRinseVolume:      0.5,
		ExtraVolume:             0.1,
		AirGap:                  0.1,
		UseLiquidLevelDetection: true,
		UseBubbleSensors:        true,
	}
}

func (m *DirectInject) GetMethods(*bedlayout.LHBedLayout) []Method { return []Method{m} }

func (m *DirectInject) Render(sampleName, sampleDescription string, layout *bedlayout.LHBedLayout) []DeviceMethods {
	return renderSingle(m, devices.LiquidHandlerName, sampleName, sampleDescription)
}

func (m *DirectInject) sampleVolume() float64 { return m.Volume + m.ExtraVolume }

func (m *DirectInject) Execute(layout *bedlayout.LHBedLayout) *MethodError {
	return executeInject(m.DisplayName, &m.Source, m.sampleVolume(), layout)
}

func (m *DirectInject) Waste(layout *bedlayout.LHBedLayout) waste.WasteItem {
	return injectWaste(&m.Source, m.Volume+m.ExtraVolume, m.OutsideRinseVolume, layout)
}

func (m *DirectInject) RenderVendor(sampleName, sampleDescription string, layout *bedlayout.LHBedLayout) []VendorRow {
	bindLocation(&m.Source, layout)
	sourceZone, sourceWell := bedlayout.LayoutWellToZoneWell(m.Source.RackID, m.Source.WellNumber)
	methodName := m.MethodName
	if m.UseBubbleSensors {
		methodName = "ROADMAP_QCMD_DirectInject_BubbleSensor"
	}
	row := vendorBase(sampleName, sampleDescription, methodName)
	row["Source_Zone"] = string(sourceZone)
	row["Source_Well"] = sourceWell
	row["Volume"] = formatFloat(m.Volume)
	row["Aspirate_Flow_Rate"] = formatFloat(m.AspirateFlowRate)
	row["Load_Flow_Rate"] = formatFloat(m.LoadFlowRate)
	row["Injection_Flow_Rate"] = formatFloat(m.InjectionFlowRate)
	row["Outside_Rinse_Volume"] = formatFloat(m.OutsideRinseVolume)
	row["Extra_Volume"] = formatFloat(m.ExtraVolume)
	row["Air_Gap"] = formatFloat(m.AirGap)
	row["Use_Liquid_Level_Detection"] = formatBool(m.UseLiquidLevelDetection)
	return []VendorRow{row}
}

// MethodCluster groups robot methods so they render as a single job and
// dispatch as one preparation task.
type MethodCluster struct {
	Base
	Methods []Method `json:"methods"`
}

func NewMethodCluster(children ...Method) *MethodCluster {
	return &MethodCluster{
		Base:    newBase("LHMethodCluster", "LHMethodCluster", TypePrepare),
		Methods: children,
	}
}

func (m *MethodCluster) GetMethods(*bedlayout.LHBedLayout) []Method { return []Method{m} }

// Explode flattens the cluster into its children's expansions.
func (m *MethodCluster) Explode(layout *bedlayout.LHBedLayout) []Method {
	var out []Method
	for _, child := range m.Methods {
		out = append(out, Explode(child, layout)...)
	}
	return out
}

func (m *MethodCluster) Execute(layout *bedlayout.LHBedLayout) *MethodError {
	for _, child := range m.Methods {
		if err := child.Execute(layout); err != nil {
			return err.wrap(m.DisplayName)
		}
	}
	return nil
}

func (m *MethodCluster) Waste(layout *bedlayout.LHBedLayout) waste.WasteItem {
	var parts []waste.WasteItem
	for _, child := range m.Methods {
		parts = append(parts, child.Waste(layout))
	}
	return mixWaste(parts...)
}

func (m *MethodCluster) Render(sampleName, sampleDescription string, layout *bedlayout.LHBedLayout) []DeviceMethods {
	records := make([]Record, 0, len(m.Methods))
	for _, child := range m.Methods {
		records = append(records, Record{
			SampleName:        sampleName,
			SampleDescription: sampleDescription,
			MethodName:        child.Meta().MethodName,
			MethodData:        fieldMap(child),
		})
	}
	return []DeviceMethods{{devices.LiquidHandlerName: records}}
}

func (m *MethodCluster) UnmarshalJSON(data []byte) error {
	type alias struct {
		Base
		Methods []json.RawMessage `json:"methods"`
	}
	var a alias
	a.Base = m.Base
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	m.Base = a.Base
	m.Methods = m.Methods[:0]
	for _, raw := range a.Methods {
		child, err := Default.Unmarshal(raw)
		if err != nil {
			return err
		}
		m.Methods = append(m.Methods, child)
	}
	return nil
}

// SetWellID tags a physical well with a location id so later inferred
// locations bind to it.
type SetWellID struct {
	Base
	Well   bedlayout.WellLocation `json:"well"`
	WellID *string                `json:"well_id"`
}

func NewSetWellID() *SetWellID {
	return &SetWellID{Base: newBase("SetWellID", "SetWellID", TypePrepare)}
}

func (m *SetWellID) GetMethods(*bedlayout.LHBedLayout) []Method { return []Method{m} }

func (m *SetWellID) Execute(layout *bedlayout.LHBedLayout) *MethodError {
	well, _, err := layout.GetWellAndRack(m.Well.RackID, m.Well.WellNumber)
	if err != nil {
		return &MethodError{Name: m.DisplayName, Message: err.Error()}
	}
	well.ID = m.WellID
	return nil
}

// Release marks the boundary up to which queued methods may run while the
// rest of the plan is still being edited.
type Release struct {
	Base
}

func NewRelease() *Release {
	return &Release{Base: newBase("", "---release---", TypeNone)}
}

func (m *Release) GetMethods(*bedlayout.LHBedLayout) []Method { return []Method{m} }
