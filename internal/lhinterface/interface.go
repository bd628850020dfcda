package lhinterface

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roadmap-automation/lh-manager-sub000/internal/persistence"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/bedlayout"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/waste"
)

// State of the single-slot machine.
type State string

const (
	StateUp    State = "UP"
	StateBusy  State = "BUSY"
	StateError State = "ERROR"
	StateDown  State = "DOWN"
)

// Sanity violations. These indicate a caller bug, not an operational
// condition.
var (
	ErrInterfaceBusy = errors.New("lhinterface: interface is not idle")
	ErrJobMismatch   = errors.New("lhinterface: report does not match the active job")
	ErrNoActiveJob   = errors.New("lhinterface: no active job")
)

// Observer receives job lifecycle events.
type Observer func(job *LHJob)

// Interface is the single-slot machine the robot polls: at most one active
// job, a monotonic LH_id sequence backed by the job history, and an error
// latch that freezes the slot until explicitly reset.
type Interface struct {
	mu        sync.Mutex
	layout    *bedlayout.LHBedLayout
	waste     *waste.Manager
	history   persistence.JobHistory
	logger    *slog.Logger
	activeJob *LHJob
	hasError  bool
	down      bool

	onActivation []Observer
	onValidation []Observer
	onResult     []Observer
}

// NewInterface builds a machine over the live layout. History and waste may
// be nil for tests.
func NewInterface(layout *bedlayout.LHBedLayout, wasteMgr *waste.Manager, history persistence.JobHistory, logger *slog.Logger) *Interface {
	if logger == nil {
		logger = slog.Default()
	}
	return &Interface{layout: layout, waste: wasteMgr, history: history, logger: logger}
}

// OnActivation registers a callback fired after a job is activated.
func (i *Interface) OnActivation(fn Observer) { i.onActivation = append(i.onActivation, fn) }

// OnValidation registers a callback fired after a validation report.
func (i *Interface) OnValidation(fn Observer) { i.onValidation = append(i.onValidation, fn) }

// OnResult registers a callback fired after a result report.
func (i *Interface) OnResult(fn Observer) { i.onResult = append(i.onResult, fn) }

// State reports the machine state.
func (i *Interface) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.stateLocked()
}

func (i *Interface) stateLocked() State {
	switch {
	case i.down:
		return StateDown
	case i.hasError:
		return StateError
	case i.activeJob != nil:
		return StateBusy
	default:
		return StateUp
	}
}

// SetDown marks the machine unreachable (or reachable again).
func (i *Interface) SetDown(down bool) {
	i.mu.Lock()
	i.down = down
	i.mu.Unlock()
}

// ResetErrorState clears the error latch.
func (i *Interface) ResetErrorState() {
	i.mu.Lock()
	i.hasError = false
	i.mu.Unlock()
}

// ActiveJob returns the current job, or nil when idle.
func (i *Interface) ActiveJob() *LHJob {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.activeJob
}

// ActivateJob admits a job into the slot: requires UP, assigns the next
// LH_id, renders the vendor rows, and persists to history.
func (i *Interface) ActivateJob(ctx context.Context, job *LHJob) error {
	i.mu.Lock()
	if state := i.stateLocked(); state != StateUp {
		i.mu.Unlock()
		return fmt.Errorf("%w: state %s", ErrInterfaceBusy, state)
	}
	i.activeJob = job
	i.mu.Unlock()

	next, err := i.nextLHID(ctx)
	if err != nil {
		i.mu.Lock()
		i.activeJob = nil
		i.mu.Unlock()
		return err
	}
	job.LHID = &next
	job.RenderRows(i.layout)
	if err := i.persistJob(ctx, job); err != nil {
		i.mu.Lock()
		i.activeJob = nil
		i.mu.Unlock()
		return err
	}
	i.logger.Info("job activated", "job_id", job.ID, "LH_id", next, "sample", job.SampleName)
	for _, fn := range i.onActivation {
		fn(job)
	}
	return nil
}

func (i *Interface) nextLHID(ctx context.Context) (int, error) {
	if i.history == nil {
		return 1, nil
	}
	max, err := i.history.MaxLHID(ctx)
	if err != nil {
		return 0, fmt.Errorf("next LH_id: %w", err)
	}
	return max + 1, nil
}

func (i *Interface) persistJob(ctx context.Context, job *LHJob) error {
	if i.history == nil {
		return nil
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	rec := persistence.JobRecord{UUID: job.ID, LHID: job.LHID, Job: data}
	if err := i.history.PutJob(ctx, rec); err != nil {
		return fmt.Errorf("persist job %s: %w", job.ID, err)
	}
	return nil
}

// requireActive returns the active job if it matches id.
func (i *Interface) requireActive(id string) (*LHJob, error) {
	if i.activeJob == nil {
		return nil, ErrNoActiveJob
	}
	if i.activeJob.ID != id {
		return nil, fmt.Errorf("%w: got %s, active %s", ErrJobMismatch, id, i.activeJob.ID)
	}
	return i.activeJob, nil
}

// UpdateJobValidation records the robot's validation verdict. A FAIL latches
// the error state and frees the slot.
func (i *Interface) UpdateJobValidation(ctx context.Context, jobID string, v Validation) error {
	i.mu.Lock()
	job, err := i.requireActive(jobID)
	if err != nil {
		i.mu.Unlock()
		return err
	}
	job.Validation = &v
	failed := v.ValidationType == ValidationFail
	if failed {
		i.hasError = true
		i.activeJob = nil
	}
	i.mu.Unlock()

	if err := i.persistJob(ctx, job); err != nil {
		return err
	}
	if failed {
		i.logger.Warn("sample list validation failed", "job_id", job.ID, "message", v.Message)
	}
	for _, fn := range i.onValidation {
		fn(job)
	}
	return nil
}

// UpdateJobResult records one per-method result report. On overall SUCCESS
// the job's methods are executed against the live layout and their waste
// streams recorded, then the slot is freed. On FAIL the error state latches.
// INCOMPLETE keeps the slot busy.
func (i *Interface) UpdateJobResult(ctx context.Context, jobID string, report ResultReport) error {
	i.mu.Lock()
	job, err := i.requireActive(jobID)
	if err != nil {
		i.mu.Unlock()
		return err
	}
	job.Results = append(job.Results, report)
	status := job.ResultStatus()
	switch status {
	case ResultSuccess, ResultFail:
		i.activeJob = nil
		if status == ResultFail {
			i.hasError = true
		}
	}
	i.mu.Unlock()

	var execErr error
	if status == ResultSuccess {
		execErr = i.applyJob(ctx, job)
	}
	if err := i.persistJob(ctx, job); err != nil {
		return err
	}
	for _, fn := range i.onResult {
		fn(job)
	}
	if status == ResultFail {
		i.logger.Warn("job reported failure", "job_id", job.ID, "method", report.MethodName)
	}
	return execErr
}

// applyJob executes the job's methods against the real layout and mixes
// their waste into the carboy. Execution errors do not revert earlier
// mutations; the physical run already happened.
func (i *Interface) applyJob(ctx context.Context, job *LHJob) error {
	var errs []error
	for _, m := range job.Methods {
		if methodErr := m.Execute(i.layout); methodErr != nil {
			errs = append(errs, fmt.Errorf("executing %s: %s", methodErr.Name, methodErr.Message))
			continue
		}
		if i.waste == nil {
			continue
		}
		item := m.Waste(i.layout)
		if item.Volume <= 0 {
			continue
		}
		if err := i.waste.AddWaste(ctx, item); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Deactivate frees the slot without a result, persisting the job as-is.
func (i *Interface) Deactivate(ctx context.Context) error {
	i.mu.Lock()
	job := i.activeJob
	i.activeJob = nil
	i.mu.Unlock()
	if job == nil {
		return nil
	}
	return i.persistJob(ctx, job)
}

// ResubmitActiveJob reissues the active job under the next LH_id so the
// robot re-polls it.
func (i *Interface) ResubmitActiveJob(ctx context.Context) error {
	i.mu.Lock()
	job := i.activeJob
	i.mu.Unlock()
	if job == nil {
		return ErrNoActiveJob
	}
	next, err := i.nextLHID(ctx)
	if err != nil {
		return err
	}
	job.LHID = &next
	job.Results = nil
	job.Validation = nil
	if err := i.persistJob(ctx, job); err != nil {
		return err
	}
	i.logger.Info("job resubmitted", "job_id", job.ID, "LH_id", next)
	return nil
}

// SampleLists returns the header-only listing the robot polls: the active
// job, or nothing when idle.
func (i *Interface) SampleLists() []SampleList {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.activeJob == nil {
		return []SampleList{}
	}
	return []SampleList{buildSampleList(i.activeJob, false)}
}

// SampleList returns the full sample list for lhID if it matches the active
// job.
func (i *Interface) SampleList(lhID int) (SampleList, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.activeJob == nil {
		return SampleList{}, ErrNoActiveJob
	}
	if i.activeJob.LHID == nil || *i.activeJob.LHID != lhID {
		return SampleList{}, fmt.Errorf("%w: LH_id %d", ErrJobMismatch, lhID)
	}
	return buildSampleList(i.activeJob, true), nil
}

// JobByLHID resolves the active job id for a reported LH_id.
func (i *Interface) JobByLHID(lhID int) (*LHJob, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.activeJob == nil {
		return nil, ErrNoActiveJob
	}
	if i.activeJob.LHID == nil || *i.activeJob.LHID != lhID {
		return nil, fmt.Errorf("%w: LH_id %d", ErrJobMismatch, lhID)
	}
	return i.activeJob, nil
}
