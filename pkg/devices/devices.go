// Package devices catalogs the workstation hardware that tasks are routed
// to: the pipetting robot, the multichannel injection system, the QCMD
// measurement instrument, and ancillary rinse/waste devices.
package devices

import (
	"fmt"
	"sort"

	"github.com/roadmap-automation/lh-manager-sub000/pkg/tasks"
)

// Device names used as keys in rendered method dictionaries.
const (
	LiquidHandlerName      = "Gilson 271 Liquid Handler"
	InjectionSystemName    = "Multichannel Injection System"
	QCMDName               = "QCMD Measurement Device"
	RinseSystemName        = "Rinse System Device"
	DistributionSystemName = "Distribution System"
	WasteSystemName        = "Waste System"
)

// Device describes a single addressable instrument.
type Device struct {
	DeviceName        string `json:"device_name"`
	DeviceType        string `json:"device_type"`
	Multichannel      bool   `json:"multichannel"`
	AllowSampleMixing bool   `json:"allow_sample_mixing"`
	Address           string `json:"address"`
}

// CreateJobData wraps a rendered method list in the wire shape the device's
// driver expects.
func (d Device) CreateJobData(methodList any) map[string]any {
	return map[string]any{"method_list": methodList}
}

// LiquidHandler returns the pipetting robot definition.
func LiquidHandler() Device {
	return Device{DeviceName: LiquidHandlerName, DeviceType: "lh", Multichannel: true, AllowSampleMixing: true, Address: "http://localhost:5001"}
}

// InjectionSystem returns the multichannel injection subsystem definition.
func InjectionSystem() Device {
	return Device{DeviceName: InjectionSystemName, DeviceType: "injection", Multichannel: true, AllowSampleMixing: true, Address: "http://localhost:5003"}
}

// QCMD returns the quartz-crystal microbalance definition.
func QCMD() Device {
	return Device{DeviceName: QCMDName, DeviceType: "qcmd", Multichannel: true, AllowSampleMixing: false, Address: "http://localhost:5005"}
}

// RinseSystem returns the rinse subsystem definition.
func RinseSystem() Device {
	return Device{DeviceName: RinseSystemName, DeviceType: "rinse", Multichannel: false, AllowSampleMixing: false, Address: "http://localhost:5014"}
}

// DistributionSystem returns the liquid distribution subsystem definition.
func DistributionSystem() Device {
	return Device{DeviceName: DistributionSystemName, DeviceType: "distribution", Multichannel: false, AllowSampleMixing: false, Address: "http://localhost:5003/distribution_system/"}
}

// WasteSystem returns the waste subsystem definition.
func WasteSystem() Device {
	return Device{DeviceName: WasteSystemName, DeviceType: "waste", Multichannel: false, AllowSampleMixing: true, Address: "/Waste"}
}

// Manager holds the registered device catalog.
type Manager struct {
	devices map[string]Device
}

// NewManager returns an empty device manager.
func NewManager() *Manager {
	return &Manager{devices: make(map[string]Device)}
}

// NewDefaultManager returns a manager with the standard workstation devices
// registered.
func NewDefaultManager() *Manager {
	m := NewManager()
	m.Register(LiquidHandler())
	m.Register(InjectionSystem())
	m.Register(QCMD())
	m.Register(RinseSystem())
	m.Register(DistributionSystem())
	return m
}

// Register adds or replaces a device by name.
func (m *Manager) Register(device Device) {
	m.devices[device.DeviceName] = device
}

// Get looks up a device by name.
func (m *Manager) Get(name string) (Device, error) {
	d, ok := m.devices[name]
	if !ok {
		return Device{}, fmt.Errorf("device %s not registered", name)
	}
	return d, nil
}

// List returns all registered devices ordered by name.
func (m *Manager) List() []Device {
	out := make([]Device, 0, len(m.devices))
	for _, d := range m.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceName < out[j].DeviceName })
	return out
}

// InitTasks builds one init task per registered device, announcing its type,
// address and channel count to the runner.
func (m *Manager) InitTasks(nChannels int) []tasks.Task {
	var out []tasks.Task
	for _, device := range m.List() {
		task := tasks.NewTask(tasks.TypeInit)
		data := tasks.TaskData{
			Device:        device.DeviceName,
			DeviceType:    device.DeviceType,
			DeviceAddress: device.Address,
		}
		if device.Multichannel {
			n := nChannels
			data.NumberOfChannels = &n
		}
		task.Tasks = []tasks.TaskData{data}
		out = append(out, task)
	}
	return out
}
