// Package tasks defines the device-level units of work exchanged with the
// external task runner.
package tasks

import (
	"github.com/google/uuid"

	"github.com/roadmap-automation/lh-manager-sub000/pkg/status"
)

// TaskType classifies a task for the external runner.
type TaskType string

const (
	TypeNone      TaskType = "none"
	TypeInit      TaskType = "init"
	TypePrepare   TaskType = "prepare"
	TypeTransfer  TaskType = "transfer"
	TypeMeasure   TaskType = "measure"
	TypeNoChannel TaskType = "nochannel"
)

// NonChannelStorage is the storage class reported for tasks without a
// channel assignment.
const NonChannelStorage = "vial"

// TaskData is the per-device slice of a task.
type TaskData struct {
	ID                string         `json:"id"`
	Device            string         `json:"device"`
	Channel           *int           `json:"channel,omitempty"`
	DeviceType        string         `json:"device_type,omitempty"`
	DeviceAddress     string         `json:"device_address,omitempty"`
	NumberOfChannels  *int           `json:"number_of_channels,omitempty"`
	NonChannelStorage string         `json:"non_channel_storage,omitempty"`
	MethodData        map[string]any `json:"method_data,omitempty"`
}

// Task is a unit of work submitted to the external runner. A task spanning
// more than one device is a transfer coordinated across them.
type Task struct {
	ID       string         `json:"id"`
	Tasks    []TaskData     `json:"tasks"`
	TaskType TaskType       `json:"task_type"`
	MD       map[string]any `json:"md,omitempty"`
}

// NewTask creates an empty task of the given type with a fresh id.
func NewTask(taskType TaskType) Task {
	return Task{ID: uuid.NewString(), TaskType: taskType}
}

// TaskContainer tracks a task and its lifecycle state inside a method.
type TaskContainer struct {
	ID             string        `json:"id"`
	Task           Task          `json:"task"`
	Status         status.Status `json:"status"`
	SubtaskResults []any         `json:"subtask_results,omitempty"`
}

// NewContainer wraps a task with an inactive lifecycle state.
func NewContainer(task Task) *TaskContainer {
	return &TaskContainer{ID: task.ID, Task: task, Status: status.Inactive}
}

// Advance moves the container's status forward. Regressions and transitions
// out of a terminal state are ignored, keeping task history monotonic; it
// reports whether the status changed.
func (c *TaskContainer) Advance(next status.Status) bool {
	if next == c.Status || !c.Status.CanAdvance(next) {
		return false
	}
	c.Status = next
	return true
}
