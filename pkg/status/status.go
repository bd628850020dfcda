// Package status defines the shared lifecycle states of samples, stages,
// methods and tasks, together with the roll-up rules that derive a parent
// state from its children.
package status

// Status is a lifecycle state shared by tasks, methods, stages and samples.
type Status string

const (
	Inactive  Status = "inactive"
	Pending   Status = "pending"
	Active    Status = "active"
	Completed Status = "completed"
	Failed    Status = "failed"
	Cancelled Status = "cancelled"
	Partial   Status = "partially complete"
	Error     Status = "error"
	Unknown   Status = "unknown"
)

// Terminal reports whether a state admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case Completed, Failed, Cancelled:
		return true
	}
	return false
}

// rank orders states along the forward lifecycle. Terminal states share the
// highest rank so that none of them can replace another.
func rank(s Status) int {
	switch s {
	case Inactive:
		return 0
	case Pending:
		return 1
	case Active:
		return 2
	case Completed, Failed, Cancelled, Unknown:
		return 3
	default:
		return 0
	}
}

// CanAdvance reports whether a transition from s to next moves forward.
// Backwards transitions and transitions out of a terminal state are rejected;
// re-asserting the current state is allowed.
func (s Status) CanAdvance(next Status) bool {
	if s == next {
		return true
	}
	if s.Terminal() {
		return false
	}
	return rank(next) >= rank(s)
}

// RollupMethod derives a method state from its task states: all completed
// wins, any active wins next, then any error, otherwise pending.
func RollupMethod(tasks []Status) Status {
	if len(tasks) == 0 {
		return Pending
	}
	completed := 0
	anyActive, anyError := false, false
	for _, ts := range tasks {
		switch ts {
		case Completed:
			completed++
		case Active:
			anyActive = true
		case Error, Failed:
			anyError = true
		}
	}
	switch {
	case completed == len(tasks):
		return Completed
	case anyActive:
		return Active
	case anyError:
		return Error
	default:
		return Pending
	}
}

// RollupStage derives a stage state from its method states.
func RollupStage(methods []Status) Status {
	if len(methods) == 0 {
		return Inactive
	}
	completed := 0
	anyActive, anyPending := false, false
	for _, ms := range methods {
		switch ms {
		case Completed:
			completed++
		case Active:
			anyActive = true
		case Pending:
			anyPending = true
		}
	}
	switch {
	case completed == len(methods):
		return Completed
	case anyActive:
		return Active
	case anyPending:
		return Pending
	default:
		return Inactive
	}
}

// RollupSample derives a sample state from its stage states.
func RollupSample(stages []Status) Status {
	if len(stages) == 0 {
		return Inactive
	}
	inactive, completed := 0, 0
	anyActive, anyPending := false, false
	for _, ss := range stages {
		switch ss {
		case Inactive:
			inactive++
		case Completed:
			completed++
		case Active:
			anyActive = true
		case Pending:
			anyPending = true
		}
	}
	switch {
	case inactive == len(stages):
		return Inactive
	case anyActive:
		return Active
	case anyPending:
		return Pending
	case completed == len(stages):
		return Completed
	case completed > 0 && completed+inactive == len(stages):
		return Partial
	default:
		return Active
	}
}
