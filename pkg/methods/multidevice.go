package methods

import (
	"github.com/roadmap-automation/lh-manager-sub000/pkg/bedlayout"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/devices"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/waste"
)

func init() {
	Default.Register(func() Method { return NewLoadLoopSync() }, true)
	Default.Register(func() Method { return NewInjectLoopToQCMD() }, true)
	Default.Register(func() Method { return NewDirectInjectPrime() }, true)
	Default.Register(func() Method { return NewDirectInjectToQCMD() }, true)
}

// Organics variants of the standard robot methods. Slower flow rates and no
// liquid level detection for volatile solvents. Wire names are unchanged
// because the robot runs the same underlying method.

func NewTransferOrganicsWithRinse() *TransferWithRinse {
	m := NewTransferWithRinse()
	m.FlowRate = 1.0
	m.AspirateFlowRate = 2.0
	m.UseLiquidLevelDetection = false
	return m
}

func NewMixOrganicsWithRinse() *MixWithRinse {
	m := NewMixWithRinse()
	m.FlowRate = 1.0
	m.AspirateFlowRate = 2.0
	m.UseLiquidLevelDetection = false
	return m
}

func NewInjectOrganicsWithRinse() *InjectWithRinse {
	m := NewInjectWithRinse()
	m.AspirateFlowRate = 1.0
	m.FlowRate = 2.0
	m.UseLiquidLevelDetection = false
	return m
}

// lhRecord renders a robot method as its task-stream record.
func lhRecord(m Method, sampleName, sampleDescription string) []Record {
	return []Record{{
		SampleName:        sampleName,
		SampleDescription: sampleDescription,
		MethodName:        m.Meta().MethodName,
		MethodData:        fieldMap(m),
	}}
}

func initiateDistribution() []Record {
	return []Record{{MethodName: "InitiateDistribution", MethodData: map[string]any{}}}
}

// LoadLoopSync loads the injection system loop from a bed well, with the
// robot aspiration and the loop pump coordinated through the distribution
// valve.
type LoadLoopSync struct {
	Base
	Source                  bedlayout.WellLocation `json:"Source"`
	Volume                  float64                `json:"Volume"`
	AspirateFlowRate        float64                `json:"Aspirate_Flow_Rate"`
	FlowRate                float64                `json:"Flow_Rate"`
	OutsideRinseVolume      float64                `json:"Outside_Rinse_Volume"`
	ExtraVolume             float64                `json:"Extra_Volume"`
	AirGap                  float64                `json:"Air_Gap"`
	UseLiquidLevelDetection bool                   `json:"Use_Liquid_Level_Detection"`
	UseBubbleSensors        bool                   `json:"Use_Bubble_Sensors"`
}

func NewLoadLoopSync() *LoadLoopSync {
	return &LoadLoopSync{
		Base:                    newBase("ROADMAP_LoadLoop_Sync", "ROADMAP Load Injection System Loop", TypeInject),
		Volume:                  1.0,
		AspirateFlowRate:        2.5,
		FlowRate:                2.5,
		OutsideRinseVolume:      0.5,
		ExtraVolume:             0.1,
		AirGap:                  0.1,
		UseLiquidLevelDetection: true,
		UseBubbleSensors:        true,
	}
}

func (m *LoadLoopSync) GetMethods(*bedlayout.LHBedLayout) []Method { return []Method{m} }

func (m *LoadLoopSync) sampleVolume() float64 { return m.Volume + m.ExtraVolume }

func (m *LoadLoopSync) Execute(layout *bedlayout.LHBedLayout) *MethodError {
	return executeInject(m.DisplayName, &m.Source, m.sampleVolume(), layout)
}

func (m *LoadLoopSync) Waste(layout *bedlayout.LHBedLayout) waste.WasteItem {
	return injectWaste(&m.Source, m.Volume+m.ExtraVolume, m.OutsideRinseVolume, layout)
}

func (m *LoadLoopSync) Render(sampleName, sampleDescription string, layout *bedlayout.LHBedLayout) []DeviceMethods {
	loopMethod := "LoadLoop"
	if m.UseBubbleSensors {
		loopMethod = "LoadLoopBubbleSensor"
	}
	return []DeviceMethods{{
		devices.LiquidHandlerName:      lhRecord(m, sampleName, sampleDescription),
		devices.DistributionSystemName: initiateDistribution(),
		devices.InjectionSystemName: []Record{{MethodName: loopMethod, MethodData: map[string]any{
			"pump_volume":   m.Volume * 1000,
			"excess_volume": m.ExtraVolume * 1000,
			"air_gap":       m.AirGap * 1000,
			"composition":   sourceComposition(&m.Source, layout),
		}}},
	}}
}

// InjectLoopToQCMD injects the loaded loop contents and announces the
// incoming liquid to the measurement instrument.
type InjectLoopToQCMD struct {
	Base
	Volume           float64 `json:"Volume"`
	FlowRate         float64 `json:"Flow_Rate"`
	Contents         string  `json:"contents"`
	UseBubbleSensors bool    `json:"Use_Bubble_Sensors"`
}

func NewInjectLoopToQCMD() *InjectLoopToQCMD {
	return &InjectLoopToQCMD{
		Base:             newBase("ROADMAP_InjectLooptoQCMD", "ROADMAP Inject Injection System Loop", TypeNone),
		FlowRate:         1.0,
		UseBubbleSensors: true,
	}
}

func (m *InjectLoopToQCMD) GetMethods(*bedlayout.LHBedLayout) []Method { return []Method{m} }

func (m *InjectLoopToQCMD) Render(_, _ string, _ *bedlayout.LHBedLayout) []DeviceMethods {
	injectMethod := "InjectLoop"
	if m.UseBubbleSensors {
		injectMethod = "InjectLoopBubbleSensor"
	}
	return []DeviceMethods{{
		devices.InjectionSystemName: []Record{{MethodName: injectMethod, MethodData: map[string]any{
			"pump_volume":    m.Volume * 1000,
			"pump_flow_rate": m.FlowRate,
		}}},
		devices.QCMDName: []Record{{MethodName: "QCMDAcceptTransfer", MethodData: map[string]any{
			"contents": m.Contents,
		}}},
	}}
}

// DirectInjectPrime flushes the direct injection line with carrier liquid.
type DirectInjectPrime struct {
	Base
	Volume   float64 `json:"Volume"`
	FlowRate float64 `json:"Flow_Rate"`
}

func NewDirectInjectPrime() *DirectInjectPrime {
	return &DirectInjectPrime{
		Base:     newBase("ROADMAP_DirectInjectPrime", "ROADMAP Direct Inject Prime", TypeNone),
		Volume:   3.0,
		FlowRate: 3.0,
	}
}

func (m *DirectInjectPrime) GetMethods(*bedlayout.LHBedLayout) []Method { return []Method{m} }

func (m *DirectInjectPrime) Execute(layout *bedlayout.LHBedLayout) *MethodError {
	carrier := layout.CarrierWell()
	if carrier == nil {
		return &MethodError{Name: m.DisplayName, Message: "no carrier well on bed"}
	}
	if m.Volume > carrier.Volume {
		return &MethodError{Name: m.DisplayName, Message: "insufficient carrier liquid for prime"}
	}
	carrier.Volume -= m.Volume
	return nil
}

func (m *DirectInjectPrime) Waste(layout *bedlayout.LHBedLayout) waste.WasteItem {
	carrier := layout.CarrierWell()
	if carrier == nil {
		return waste.WasteItem{Volume: m.Volume}
	}
	return waste.WasteItem{Composition: carrier.Composition, Volume: m.Volume}
}

func (m *DirectInjectPrime) Render(sampleName, sampleDescription string, _ *bedlayout.LHBedLayout) []DeviceMethods {
	return []DeviceMethods{{
		devices.LiquidHandlerName:      lhRecord(m, sampleName, sampleDescription),
		devices.DistributionSystemName: initiateDistribution(),
		devices.InjectionSystemName: []Record{{MethodName: "DirectInjectPrime", MethodData: map[string]any{
			"pump_volume":    m.Volume * 1000,
			"pump_flow_rate": m.FlowRate,
		}}},
	}}
}

func (m *DirectInjectPrime) RenderVendor(sampleName, sampleDescription string, _ *bedlayout.LHBedLayout) []VendorRow {
	row := vendorBase(sampleName, sampleDescription, m.MethodName)
	row["Volume"] = formatFloat(m.Volume)
	row["Flow_Rate"] = formatFloat(m.FlowRate)
	return []VendorRow{row}
}

// DirectInjectToQCMD pushes source liquid through the injection valve onto
// the measurement cell and announces the transferred composition.
type DirectInjectToQCMD struct {
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

func NewDirectInjectToQCMD() *DirectInjectToQCMD {
	return &DirectInjectToQCMD{
		Base:                    newBase("ROADMAP_DirectInjecttoQCMD", "ROADMAP Direct Inject to QCMD", TypeInject),
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

func (m *DirectInjectToQCMD) GetMethods(*bedlayout.LHBedLayout) []Method { return []Method{m} }

func (m *DirectInjectToQCMD) sampleVolume() float64 { return m.Volume + m.ExtraVolume }

func (m *DirectInjectToQCMD) Execute(layout *bedlayout.LHBedLayout) *MethodError {
	return executeInject(m.DisplayName, &m.Source, m.sampleVolume(), layout)
}

func (m *DirectInjectToQCMD) Waste(layout *bedlayout.LHBedLayout) waste.WasteItem {
	return injectWaste(&m.Source, m.Volume+m.ExtraVolume, m.OutsideRinseVolume, layout)
}

func (m *DirectInjectToQCMD) Render(sampleName, sampleDescription string, layout *bedlayout.LHBedLayout) []DeviceMethods {
	// Announce the composition the instrument will see: the planned one if
	// declared, else what the inferred source well actually holds.
	var contents bedlayout.Composition
	if m.Source.ExpectedComposition != nil {
		contents = *m.Source.ExpectedComposition
	} else {
		contents = sourceComposition(&m.Source, layout)
	}
	injectMethod := "DirectInject"
	if m.UseBubbleSensors {
		injectMethod = "DirectInjectBubbleSensor"
	}
	return []DeviceMethods{{
		devices.LiquidHandlerName:      lhRecord(m, sampleName, sampleDescription),
		devices.DistributionSystemName: initiateDistribution(),
		devices.InjectionSystemName: []Record{{MethodName: injectMethod, MethodData: map[string]any{
			"pump_volume":    m.Volume * 1000,
			"pump_flow_rate": m.InjectionFlowRate,
		}}},
		devices.QCMDName: []Record{{MethodName: "QCMDAcceptTransfer", MethodData: map[string]any{
			"contents": contents,
		}}},
	}}
}
