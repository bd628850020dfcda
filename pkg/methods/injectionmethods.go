package methods

import (
	"github.com/roadmap-automation/lh-manager-sub000/pkg/bedlayout"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/devices"
)

func init() {
	Default.Register(func() Method { return NewChannelInit() }, true)
	Default.Register(func() Method { return NewChannelSleep() }, true)
	Default.Register(func() Method { return NewPrimeLoop() }, true)
	Default.Register(func() Method { return NewInjectLoop() }, true)
	Default.Register(func() Method { return NewRinseLoadLoop() }, true)
	Default.Register(func() Method { return NewRinseLoadLoopBubbleSensor() }, true)
}

// ChannelInit initializes an injection system channel.
type ChannelInit struct {
	Base
}

func NewChannelInit() *ChannelInit {
	return &ChannelInit{Base: newBase("RoadmapChannelInit", "Init Injection System", TypeNone)}
}

func (m *ChannelInit) GetMethods(*bedlayout.LHBedLayout) []Method { return []Method{m} }

func (m *ChannelInit) Render(_, _ string, _ *bedlayout.LHBedLayout) []DeviceMethods {
	return renderSub(devices.InjectionSystemName, m.MethodName, nil)
}

// ChannelSleep pauses an injection system channel.
type ChannelSleep struct {
	Base
	SleepTime float64 `json:"sleep_time"`
}

func NewChannelSleep() *ChannelSleep {
	return &ChannelSleep{Base: newBase("RoadmapChannelSleep", "Sleep Injection System", TypeNone), SleepTime: 1.0}
}

func (m *ChannelSleep) GetMethods(*bedlayout.LHBedLayout) []Method { return []Method{m} }

func (m *ChannelSleep) Render(_, _ string, _ *bedlayout.LHBedLayout) []DeviceMethods {
	return renderSub(devices.InjectionSystemName, m.MethodName, map[string]any{"sleep_time": m.SleepTime})
}

// PrimeLoop primes the injection system loop.
type PrimeLoop struct {
	Base
	NumberOfPrimes int `json:"number_of_primes"`
}

func NewPrimeLoop() *PrimeLoop {
	return &PrimeLoop{Base: newBase("PrimeLoop", "Prime Injection System Loop", TypeNone), NumberOfPrimes: 3}
}

func (m *PrimeLoop) GetMethods(*bedlayout.LHBedLayout) []Method { return []Method{m} }

func (m *PrimeLoop) Render(_, _ string, _ *bedlayout.LHBedLayout) []DeviceMethods {
	return renderSub(devices.InjectionSystemName, m.MethodName, map[string]any{"number_of_primes": m.NumberOfPrimes})
}

// InjectLoop pushes the loaded loop contents onto the measurement cell.
// Pump volumes are reported in microliters.
type InjectLoop struct {
	Base
	Volume   float64 `json:"Volume"`
	FlowRate float64 `json:"Flow_Rate"`
}

func NewInjectLoop() *InjectLoop {
	return &InjectLoop{Base: newBase("InjectLoop", "Inject Injection System Loop", TypeNone), FlowRate: 1.0}
}

func (m *InjectLoop) GetMethods(*bedlayout.LHBedLayout) []Method { return []Method{m} }

func (m *InjectLoop) Render(_, _ string, _ *bedlayout.LHBedLayout) []DeviceMethods {
	return renderSub(devices.InjectionSystemName, m.MethodName, map[string]any{
		"pump_volume":    m.Volume * 1000,
		"pump_flow_rate": m.FlowRate,
	})
}

// RinseLoadLoop loads the injection loop from the rinse system instead of a
// bed well, coordinating the rinse and distribution subsystems.
type RinseLoadLoop struct {
	Base
	RinseComposition bedlayout.Composition `json:"Rinse_Composition"`
	AspirateFlowRate float64               `json:"Aspirate_Flow_Rate"`
	FlowRate         float64               `json:"Flow_Rate"`
	Volume           float64               `json:"Volume"`
	ExtraVolume      float64               `json:"Extra_Volume"`
	AirGap           float64               `json:"Air_Gap"`
	RinseVolume      float64               `json:"Rinse_Volume"`
}

func NewRinseLoadLoop() *RinseLoadLoop {
	return &RinseLoadLoop{
		Base:             newBase("RinseLoadLoop", "Load Injection Loop from Rinse", TypeInject),
		AspirateFlowRate: 1.0,
		FlowRate:         1.0,
		Volume:           1.0,
		ExtraVolume:      0.1,
		AirGap:           0.1,
		RinseVolume:      0.5,
	}
}

func (m *RinseLoadLoop) GetMethods(*bedlayout.LHBedLayout) []Method { return []Method{m} }

func (m *RinseLoadLoop) Render(_, _ string, _ *bedlayout.LHBedLayout) []DeviceMethods {
	return []DeviceMethods{m.renderAs(m.MethodName)}
}

// renderAs assembles the coordinated rinse, distribution, and injection
// records. Record order matters to the runner.
func (m *RinseLoadLoop) renderAs(methodName string) DeviceMethods {
	return DeviceMethods{
		devices.RinseSystemName:        []Record{{MethodName: "InitiateRinse", MethodData: map[string]any{}}},
		devices.DistributionSystemName: []Record{{MethodName: "InitiateDistribution", MethodData: map[string]any{}}},
		devices.InjectionSystemName: []Record{{MethodName: methodName, MethodData: map[string]any{
			"composition":        m.RinseComposition,
			"aspirate_flow_rate": m.AspirateFlowRate,
			"excess_volume":      m.ExtraVolume,
			"air_gap":            m.AirGap,
			"rinse_volume":       m.RinseVolume,
			"pump_volume":        m.Volume,
			"flow_rate":          m.FlowRate,
		}}},
	}
}

// RinseLoadLoopBubbleSensor is RinseLoadLoop with bubble sensor monitoring
// at the loop inlet and outlet.
type RinseLoadLoopBubbleSensor struct {
	RinseLoadLoop
}

func NewRinseLoadLoopBubbleSensor() *RinseLoadLoopBubbleSensor {
	m := &RinseLoadLoopBubbleSensor{RinseLoadLoop: *NewRinseLoadLoop()}
	m.Base = newBase("RinseLoadLoopBubbleSensor", "Load Injection Loop from Rinse with Bubble Sensor", TypeInject)
	return m
}

func (m *RinseLoadLoopBubbleSensor) GetMethods(*bedlayout.LHBedLayout) []Method { return []Method{m} }

func (m *RinseLoadLoopBubbleSensor) Render(_, _ string, _ *bedlayout.LHBedLayout) []DeviceMethods {
	return []DeviceMethods{m.renderAs(m.MethodName)}
}
