package methods

import (
	"github.com/roadmap-automation/lh-manager-sub000/pkg/bedlayout"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/devices"
)

func init() {
	Default.Register(func() Method { return NewQCMDInit() }, true)
	Default.Register(func() Method { return NewQCMDSleep() }, true)
	Default.Register(func() Method { return NewQCMDAcceptTransfer() }, true)
	Default.Register(func() Method { return NewQCMDRecord() }, true)
	Default.Register(func() Method { return NewQCMDRecordTag() }, true)
	Default.Register(func() Method { return NewQCMDStop() }, true)
}

// renderSub renders an instrument sub-method under a single device key.
func renderSub(device, methodName string, methodData map[string]any) []DeviceMethods {
	if methodData == nil {
		methodData = map[string]any{}
	}
	return []DeviceMethods{{
		device: []Record{{MethodName: methodName, MethodData: methodData}},
	}}
}

// QCMDInit initializes the measurement instrument.
type QCMDInit struct {
	Base
}

func NewQCMDInit() *QCMDInit {
	return &QCMDInit{Base: newBase("QCMDInit", "QCMD Init", TypeNone)}
}

func (m *QCMDInit) GetMethods(*bedlayout.LHBedLayout) []Method { return []Method{m} }

func (m *QCMDInit) Render(_, _ string, _ *bedlayout.LHBedLayout) []DeviceMethods {
	return renderSub(devices.QCMDName, m.MethodName, nil)
}

// QCMDSleep pauses the measurement instrument.
type QCMDSleep struct {
	Base
	SleepTime float64 `json:"sleep_time"`
}

func NewQCMDSleep() *QCMDSleep {
	return &QCMDSleep{Base: newBase("QCMDSleep", "QCMD Sleep", TypeNone), SleepTime: 10.0}
}

func (m *QCMDSleep) GetMethods(*bedlayout.LHBedLayout) []Method { return []Method{m} }

func (m *QCMDSleep) Render(_, _ string, _ *bedlayout.LHBedLayout) []DeviceMethods {
	return renderSub(devices.QCMDName, m.MethodName, map[string]any{"sleep_time": m.SleepTime})
}

// QCMDAcceptTransfer registers the composition of incoming liquid with the
// measurement instrument.
type QCMDAcceptTransfer struct {
	Base
	Contents string `json:"contents"`
}

func NewQCMDAcceptTransfer() *QCMDAcceptTransfer {
	return &QCMDAcceptTransfer{Base: newBase("QCMDAcceptTransfer", "QCMD Accept Transfer", TypeNone)}
}

func (m *QCMDAcceptTransfer) GetMethods(*bedlayout.LHBedLayout) []Method { return []Method{m} }

func (m *QCMDAcceptTransfer) Render(_, _ string, _ *bedlayout.LHBedLayout) []DeviceMethods {
	return renderSub(devices.QCMDName, m.MethodName, map[string]any{"contents": m.Contents})
}

// QCMDRecord records a measurement after an optional equilibration sleep.
type QCMDRecord struct {
	Base
	RecordTime float64 `json:"record_time"`
	SleepTime  float64 `json:"sleep_time"`
}

func NewQCMDRecord() *QCMDRecord {
	return &QCMDRecord{
		Base:       newBase("QCMDRecord", "QCMD Record", TypeMeasure),
		RecordTime: 60.0,
	}
}

func (m *QCMDRecord) GetMethods(*bedlayout.LHBedLayout) []Method { return []Method{m} }

func (m *QCMDRecord) Render(_, _ string, _ *bedlayout.LHBedLayout) []DeviceMethods {
	return renderSub(devices.QCMDName, m.MethodName, map[string]any{
		"record_time": m.RecordTime,
		"sleep_time":  m.SleepTime,
	})
}

// QCMDRecordTag records a tagged measurement.
type QCMDRecordTag struct {
	Base
	TagName    string  `json:"tag_name"`
	RecordTime float64 `json:"record_time"`
	SleepTime  float64 `json:"sleep_time"`
}

func NewQCMDRecordTag() *QCMDRecordTag {
	return &QCMDRecordTag{
		Base:       newBase("QCMDRecordTag", "QCMD Record Tag", TypeMeasure),
		RecordTime: 60.0,
	}
}

func (m *QCMDRecordTag) GetMethods(*bedlayout.LHBedLayout) []Method { return []Method{m} }

func (m *QCMDRecordTag) Render(_, _ string, _ *bedlayout.LHBedLayout) []DeviceMethods {
	return renderSub(devices.QCMDName, m.MethodName, map[string]any{
		"tag_name":    m.TagName,
		"record_time": m.RecordTime,
		"sleep_time":  m.SleepTime,
	})
}

// QCMDStop stops an in-progress recording.
type QCMDStop struct {
	Base
}

func NewQCMDStop() *QCMDStop {
	return &QCMDStop{Base: newBase("QCMDStop", "QCMD Stop", TypeNone)}
}

func (m *QCMDStop) GetMethods(*bedlayout.LHBedLayout) []Method { return []Method{m} }

func (m *QCMDStop) Render(_, _ string, _ *bedlayout.LHBedLayout) []DeviceMethods {
	return renderSub(devices.QCMDName, m.MethodName, nil)
}
