// Package samples models the experiment plans queued against the
// workstation: samples, their staged method lists, and the container that
// tracks them through execution.
package samples

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/roadmap-automation/lh-manager-sub000/pkg/bedlayout"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/devices"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/methods"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/status"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/tasks"
)

// StageName identifies one stage of a sample's plan.
type StageName string

const (
	StagePrep   StageName = "prep"
	StageInject StageName = "inject"
)

// DefaultStages is the stage set new samples are created with.
var DefaultStages = []StageName{StagePrep, StageInject}

// MethodList is the ordered methods of one stage.
type MethodList struct {
	CreatedDate *time.Time       `json:"createdDate"`
	Methods     []methods.Method `json:"methods"`
	Status      status.Status    `json:"status"`
}

// NewMethodList returns an empty inactive stage.
func NewMethodList() *MethodList {
	return &MethodList{Status: status.Inactive}
}

// AddMethod appends a method and stamps the creation date on first use.
func (l *MethodList) AddMethod(m methods.Method) {
	if l.CreatedDate == nil {
		now := time.Now()
		l.CreatedDate = &now
	}
	l.Methods = append(l.Methods, m)
}

// Explode permanently replaces the methods with their expansion against the
// layout. Cannot be undone.
func (l *MethodList) Explode(layout *bedlayout.LHBedLayout) {
	var out []methods.Method
	for _, m := range l.Methods {
		out = append(out, methods.Explode(m, layout)...)
	}
	l.Methods = out
}

// Execute runs every method against the layout, returning one error slot
// per method. Used for dry runs.
func (l *MethodList) Execute(layout *bedlayout.LHBedLayout) []*methods.MethodError {
	errors := make([]*methods.MethodError, len(l.Methods))
	for i, m := range l.Methods {
		errors[i] = m.Execute(layout)
	}
	return errors
}

// UpdateStatus recomputes the stage status from its methods' task states.
func (l *MethodList) UpdateStatus() status.Status {
	if len(l.Methods) == 0 {
		return l.Status
	}
	if l.Status.Terminal() {
		return l.Status
	}
	states := make([]status.Status, len(l.Methods))
	for i, m := range l.Methods {
		states[i] = m.Meta().RollupStatus()
	}
	l.Status = status.RollupStage(states)
	return l.Status
}

func (l *MethodList) UnmarshalJSON(data []byte) error {
	var raw struct {
		CreatedDate *time.Time      `json:"createdDate"`
		Methods     json.RawMessage `json:"methods"`
		Status      status.Status   `json:"status"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding method list: %w", err)
	}
	l.CreatedDate = raw.CreatedDate
	l.Status = raw.Status
	if l.Status == "" {
		l.Status = status.Inactive
	}
	l.Methods = nil
	if len(raw.Methods) > 0 {
		ms, err := methods.Default.UnmarshalList(raw.Methods)
		if err != nil {
			return err
		}
		l.Methods = ms
	}
	return nil
}

// Sample is one experiment plan: named, assigned to a measurement channel,
// and split into stages.
type Sample struct {
	ID              string                    `json:"id"`
	Name            string                    `json:"name"`
	Description     string                    `json:"description"`
	Channel         int                       `json:"channel"`
	Stages          map[StageName]*MethodList `json:"stages"`
	NICEUUID        *string                   `json:"NICE_uuid"`
	NICESlotID      *int                      `json:"NICE_slotID"`
	CurrentContents string                    `json:"current_contents"`
}

// NewSample creates a sample with the default stages.
func NewSample(name, description string) *Sample {
	s := &Sample{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Stages:      map[StageName]*MethodList{},
	}
	for _, stage := range DefaultStages {
		s.Stages[stage] = NewMethodList()
	}
	return s
}

// GenerateNewID assigns a fresh id, e.g. when duplicating.
func (s *Sample) GenerateNewID() {
	s.ID = uuid.NewString()
}

// Status rolls the sample status up from its stages.
func (s *Sample) Status() status.Status {
	states := make([]status.Status, 0, len(s.Stages))
	for _, stage := range s.Stages {
		states = append(states, stage.Status)
	}
	return status.RollupSample(states)
}

// EarliestCreatedDate returns the oldest stage creation date, or nil if no
// stage has methods yet.
func (s *Sample) EarliestCreatedDate() *time.Time {
	var earliest *time.Time
	for _, stage := range s.Stages {
		if stage.CreatedDate == nil {
			continue
		}
		if earliest == nil || stage.CreatedDate.Before(*earliest) {
			earliest = stage.CreatedDate
		}
	}
	return earliest
}

// Clone returns a deep copy of the sample through its JSON form.
func (s *Sample) Clone() (*Sample, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("cloning sample %s: %w", s.ID, err)
	}
	var out Sample
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("cloning sample %s: %w", s.ID, err)
	}
	return &out, nil
}

// PrepareTasks expands a stage against the layout and converts each rendered
// method dictionary into a runner task. A task container is attached to the
// owning method so later status updates roll back up.
func (s *Sample) PrepareTasks(stage StageName, layout *bedlayout.LHBedLayout, catalog *devices.Manager) ([]*tasks.TaskContainer, error) {
	methodList, ok := s.Stages[stage]
	if !ok {
		return nil, fmt.Errorf("sample %s has no stage %s", s.Name, stage)
	}

	var containers []*tasks.TaskContainer
	for _, m := range methodList.Methods {
		for _, leaf := range methods.Explode(m, layout) {
			for _, rendered := range leaf.Render(s.Name, s.Description, layout) {
				task := tasks.NewTask(taskTypeFor(leaf, rendered))
				task.MD = map[string]any{"sample_id": s.ID, "method_id": leaf.Meta().ID}

				for _, deviceName := range sortedDeviceNames(rendered) {
					device, err := catalog.Get(deviceName)
					if err != nil {
						return nil, fmt.Errorf("preparing stage %s: %w", stage, err)
					}
					data := tasks.TaskData{
						ID:         uuid.NewString(),
						Device:     deviceName,
						MethodData: device.CreateJobData(rendered[deviceName]),
					}
					if device.Multichannel {
						channel := s.Channel
						data.Channel = &channel
					} else {
						data.NonChannelStorage = tasks.NonChannelStorage
					}
					task.Tasks = append(task.Tasks, data)
				}

				container := tasks.NewContainer(task)
				leaf.Meta().AddTask(container)
				containers = append(containers, container)
			}
		}
	}
	return containers, nil
}

// taskTypeFor applies the routing rules: coordinated multi-device renders
// are transfers, otherwise the method's own type decides.
func taskTypeFor(m methods.Method, rendered methods.DeviceMethods) tasks.TaskType {
	if len(rendered) > 1 {
		return tasks.TypeTransfer
	}
	switch m.Meta().MethodType {
	case methods.TypePrepare:
		return tasks.TypePrepare
	case methods.TypeMeasure:
		return tasks.TypeMeasure
	default:
		return tasks.TypeNoChannel
	}
}

func sortedDeviceNames(rendered methods.DeviceMethods) []string {
	names := make([]string, 0, len(rendered))
	for name := range rendered {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
