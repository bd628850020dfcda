// Package scheduler submits device tasks to the external runner and
// reconciles their lifecycle back onto methods, stages and samples.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roadmap-automation/lh-manager-sub000/internal/metrics"
	"github.com/roadmap-automation/lh-manager-sub000/internal/persistence"
	"github.com/roadmap-automation/lh-manager-sub000/internal/snapshot"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/bedlayout"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/devices"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/methods"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/samples"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/status"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/tasks"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/waste"
)

// taskEntry ties a queued task back to the sample plan it came from.
type taskEntry struct {
	container *tasks.TaskContainer
	sample    *samples.Sample
	stage     samples.StageName
	method    methods.Method
	resubmit  bool
	flushed   bool
}

// Options configures a Scheduler. Runner, Container, Layout and Devices are
// required; the rest may be nil.
type Options struct {
	Runner    *RunnerClient
	Container *samples.SampleContainer
	Layout    *bedlayout.LHBedLayout
	Devices   *devices.Manager
	Waste     *waste.Manager
	History   persistence.SampleHistory
	Snapshots *snapshot.Manager
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	PollDelay time.Duration
	Channels  int
}

// Scheduler owns the pending and active task tables, a serialized submission
// worker and the status-reconciliation daemon.
//
// mu guards the tables and every sample mutation reached through them.
// submitMu serializes outbound POSTs so the runner sees FIFO per client.
// Neither lock is held across a network or storage call.
type Scheduler struct {
	runner    *RunnerClient
	container *samples.SampleContainer
	layout    *bedlayout.LHBedLayout
	devices   *devices.Manager
	waste     *waste.Manager
	history   persistence.SampleHistory
	snapshots *snapshot.Manager
	metrics   *metrics.Metrics
	logger    *slog.Logger
	pollDelay time.Duration
	channels  int

	mu       sync.Mutex
	pending  map[string]*taskEntry
	active   map[string]*taskEntry
	submitMu sync.Mutex
	queue    chan *taskEntry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a stopped scheduler. Call Start to launch the workers.
func New(opts Options) *Scheduler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pollDelay := opts.PollDelay
	if pollDelay <= 0 {
		pollDelay = 5 * time.Second
	}
	channels := opts.Channels
	if channels <= 0 {
		channels = 1
	}
	return &Scheduler{
		runner:    opts.Runner,
		container: opts.Container,
		layout:    opts.Layout,
		devices:   opts.Devices,
		waste:     opts.Waste,
		history:   opts.History,
		snapshots: opts.Snapshots,
		metrics:   opts.Metrics,
		logger:    logger,
		pollDelay: pollDelay,
		channels:  channels,
		pending:   map[string]*taskEntry{},
		active:    map[string]*taskEntry{},
		queue:     make(chan *taskEntry, 256),
	}
}

// Start launches the submission worker and the reconciliation daemon.
func (s *Scheduler) Start() {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.wg.Add(2)
	go s.submitLoop()
	go s.pollLoop()
}

// Stop cancels the workers and waits for them to exit, or until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunSampleByName resolves a sample by name and submits one of its stages.
// Only inactive or pending samples are eligible.
func (s *Scheduler) RunSampleByName(name string, stage samples.StageName) error {
	s.mu.Lock()
	sample := s.container.GetSampleByName(name, status.Inactive, status.Pending, status.Active, status.Partial)
	s.mu.Unlock()
	if sample == nil {
		return fmt.Errorf("no runnable sample named %q", name)
	}
	return s.RunSample(sample.ID, stage)
}

// RunSample expands one stage of a sample against the live layout, builds a
// runner task per rendered method dictionary, and queues the tasks for
// submission.
func (s *Scheduler) RunSample(sampleID string, stage samples.StageName) error {
	s.mu.Lock()

	_, sample := s.container.GetSampleByID(sampleID)
	if sample == nil {
		s.mu.Unlock()
		return fmt.Errorf("sample %s not found", sampleID)
	}
	methodList, ok := sample.Stages[stage]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("sample %s has no stage %s", sample.Name, stage)
	}

	// Expand in place first so the stage's draft methods are the leaves the
	// tasks attach to.
	methodList.Explode(s.layout)
	byID := make(map[string]methods.Method, len(methodList.Methods))
	for _, m := range methodList.Methods {
		byID[m.Meta().ID] = m
	}

	containers, err := sample.PrepareTasks(stage, s.layout, s.devices)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("running sample %s: %w", sample.Name, err)
	}

	entries := make([]*taskEntry, 0, len(containers))
	for _, c := range containers {
		methodID, _ := c.Task.MD["method_id"].(string)
		entry := &taskEntry{
			container: c,
			sample:    sample,
			stage:     stage,
			method:    byID[methodID],
		}
		s.pending[c.ID] = entry
		entries = append(entries, entry)
	}
	for _, m := range methodList.Methods {
		m.Meta().RollupStatus()
	}
	methodList.UpdateStatus()
	s.updateGauges()
	s.mu.Unlock()

	s.logger.Info("sample stage queued",
		"sample", sample.Name, "stage", string(stage), "tasks", len(entries))
	for _, entry := range entries {
		s.enqueue(entry)
	}
	return nil
}

// ResubmitTasks moves the given active tasks back to pending and reissues
// them through the runner's resubmit endpoint.
func (s *Scheduler) ResubmitTasks(taskIDs []string) error {
	s.mu.Lock()
	var entries []*taskEntry
	var errs []error
	for _, id := range taskIDs {
		entry, ok := s.active[id]
		if !ok {
			errs = append(errs, fmt.Errorf("task %s is not active", id))
			continue
		}
		delete(s.active, id)
		entry.resubmit = true
		s.pending[id] = entry
		entries = append(entries, entry)
	}
	s.updateGauges()
	s.mu.Unlock()

	for _, entry := range entries {
		s.enqueue(entry)
	}
	return errors.Join(errs...)
}

// CancelTasks asks the runner to drop the given tasks and, on acceptance,
// marks them cancelled and rolls the owning methods up. A task that already
// reconciled to a terminal state is left alone, making cancellation
// idempotent.
func (s *Scheduler) CancelTasks(ctx context.Context, taskIDs []string, includeActiveQueue, dropMaterial bool) error {
	var errs []error
	for _, id := range taskIDs {
		s.mu.Lock()
		entry, ok := s.pending[id]
		if !ok {
			entry, ok = s.active[id]
		}
		if !ok || entry.container.Status.Terminal() {
			s.mu.Unlock()
			continue
		}
		s.mu.Unlock()

		if err := s.runner.CancelTask(ctx, id, includeActiveQueue, dropMaterial); err != nil {
			errs = append(errs, err)
			continue
		}

		s.mu.Lock()
		if entry.container.Status.Terminal() {
			// Reconciled while the cancel was in flight; drop the ack.
			s.mu.Unlock()
			continue
		}
		entry.flushed = true
		delete(s.pending, id)
		delete(s.active, id)
		entry.container.Advance(status.Cancelled)
		outcome := s.rollup(entry)
		s.updateGauges()
		s.mu.Unlock()
		s.flushOutcome(ctx, outcome)
		if s.metrics != nil {
			s.metrics.TasksCancelled.Inc()
		}
		s.logger.Info("task cancelled", "task_id", id, "sample", entry.sample.Name)
	}
	return errors.Join(errs...)
}

// StopStage flushes the unsubmitted tasks of one stage and resets the stage
// to inactive. Tasks already accepted by the runner are unaffected.
func (s *Scheduler) StopStage(sampleID string, stage samples.StageName) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, sample := s.container.GetSampleByID(sampleID)
	if sample == nil {
		return fmt.Errorf("sample %s not found", sampleID)
	}
	methodList, ok := sample.Stages[stage]
	if !ok {
		return fmt.Errorf("sample %s has no stage %s", sample.Name, stage)
	}

	flushed := map[*tasks.TaskContainer]bool{}
	for id, entry := range s.pending {
		if entry.sample != sample || entry.stage != stage {
			continue
		}
		entry.flushed = true
		flushed[entry.container] = true
		delete(s.pending, id)
	}
	for _, m := range methodList.Methods {
		meta := m.Meta()
		kept := meta.Tasks[:0]
		for _, c := range meta.Tasks {
			if !flushed[c] {
				kept = append(kept, c)
			}
		}
		meta.Tasks = kept
		if len(meta.Tasks) == 0 && !meta.Status.Terminal() {
			meta.Status = status.Inactive
		}
	}
	methodList.UpdateStatus()
	s.updateGauges()
	return nil
}

// SubmitInitTasks announces every registered device to the runner, one init
// task per device. Init tasks are fire-and-forget and are not tracked in the
// tables.
func (s *Scheduler) SubmitInitTasks(ctx context.Context) error {
	s.submitMu.Lock()
	defer s.submitMu.Unlock()

	var errs []error
	for _, task := range s.devices.InitTasks(s.channels) {
		if err := s.runner.SubmitTask(ctx, task); err != nil {
			errs = append(errs, fmt.Errorf("init task for %s: %w", task.Tasks[0].Device, err))
		}
	}
	return errors.Join(errs...)
}

// StateLock exposes the scheduler lock so callers outside the package can
// read or mutate the sample container and layout without racing the workers.
func (s *Scheduler) StateLock() sync.Locker { return &s.mu }

// baseCtx returns the worker context, or background when the workers have
// not been started.
func (s *Scheduler) baseCtx() context.Context {
	if s.ctx != nil {
		return s.ctx
	}
	return context.Background()
}

// Counts reports the table sizes, pending then active.
func (s *Scheduler) Counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending), len(s.active)
}

func (s *Scheduler) enqueue(entry *taskEntry) {
	select {
	case s.queue <- entry:
	default:
		// The queue is deep; hitting the cap means the runner stopped
		// accepting long ago. Fail the task instead of blocking callers.
		s.mu.Lock()
		delete(s.pending, entry.container.ID)
		entry.container.Advance(status.Failed)
		outcome := s.rollup(entry)
		s.updateGauges()
		s.mu.Unlock()
		s.flushOutcome(context.Background(), outcome)
		if s.metrics != nil {
			s.metrics.TasksFailed.Inc()
		}
		s.logger.Error("submission queue full, task failed", "task_id", entry.container.ID)
	}
}

func (s *Scheduler) submitLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case entry := <-s.queue:
			s.submit(entry)
		}
	}
}

// submit POSTs one task to the runner. submitMu keeps at most one POST in
// flight so the runner sees tasks in queue order.
func (s *Scheduler) submit(entry *taskEntry) {
	s.submitMu.Lock()
	defer s.submitMu.Unlock()

	s.mu.Lock()
	if entry.flushed {
		s.mu.Unlock()
		return
	}
	task := entry.container.Task
	resubmit := entry.resubmit
	s.mu.Unlock()

	ctx := s.baseCtx()
	var err error
	if resubmit {
		err = s.runner.ResubmitTask(ctx, task)
	} else {
		err = s.runner.SubmitTask(ctx, task)
	}

	s.mu.Lock()
	if entry.flushed {
		s.mu.Unlock()
		return
	}
	if err != nil {
		delete(s.pending, task.ID)
		entry.container.Advance(status.Failed)
		outcome := s.rollup(entry)
		s.updateGauges()
		s.mu.Unlock()
		s.flushOutcome(ctx, outcome)
		if s.metrics != nil {
			s.metrics.TasksFailed.Inc()
		}
		s.logger.Error("task submission failed", "task_id", task.ID, "error", err)
		return
	}
	delete(s.pending, task.ID)
	s.active[task.ID] = entry
	entry.container.Advance(status.Pending)
	s.rollup(entry)
	s.updateGauges()
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.TasksSubmitted.Inc()
	}
	s.logger.Info("task submitted", "task_id", task.ID, "type", string(task.TaskType))
}

func (s *Scheduler) pollLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.pollDelay)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.PollOnce(s.ctx)
		}
	}
}

// PollOnce reconciles every active task against the runner's queues. The
// active id set is snapshotted up front; the scheduler lock is never held
// across the status calls.
func (s *Scheduler) PollOnce(ctx context.Context) {
	start := time.Now()

	s.mu.Lock()
	entries := make([]*taskEntry, 0, len(s.active))
	for _, entry := range s.active {
		entries = append(entries, entry)
	}
	s.mu.Unlock()

	for _, entry := range entries {
		id := entry.container.ID
		queue, err := s.runner.TaskQueue(ctx, id)
		if err != nil {
			s.logger.Warn("task status poll failed", "task_id", id, "error", err)
			continue
		}
		next, ok := queueStatus(queue)
		if !ok {
			s.logger.Warn("unrecognized runner queue", "task_id", id, "queue", queue)
			continue
		}
		s.applyStatus(ctx, entry, next)
	}

	if s.metrics != nil {
		s.metrics.PollCycle.Observe(time.Since(start).Seconds())
	}
}

// queueStatus maps a runner queue name to a task status.
func queueStatus(queue string) (status.Status, bool) {
	switch queue {
	case queueScheduled:
		return status.Pending, true
	case queueActive:
		return status.Active, true
	case queueHistory:
		return status.Completed, true
	case noTaskFound:
		return status.Unknown, true
	}
	return status.Unknown, false
}

// applyStatus advances one task and propagates the change upward. Storage
// writes triggered by a completion run after the lock is released.
func (s *Scheduler) applyStatus(ctx context.Context, entry *taskEntry, next status.Status) {
	s.mu.Lock()
	if !entry.container.Advance(next) {
		s.mu.Unlock()
		return
	}
	if next.Terminal() || next == status.Unknown {
		delete(s.active, entry.container.ID)
	}
	outcome := s.rollup(entry)
	s.updateGauges()
	s.mu.Unlock()

	if next == status.Completed {
		if s.metrics != nil {
			s.metrics.TasksCompleted.Inc()
		}
		s.collectSubtaskResults(ctx, entry)
	}
	s.flushOutcome(ctx, outcome)
	if next.Terminal() {
		s.persistSnapshots(ctx)
	}
}

// collectSubtaskResults pulls the per-device result payloads of a completed
// task and stores them on its container.
func (s *Scheduler) collectSubtaskResults(ctx context.Context, entry *taskEntry) {
	taskID := entry.container.ID
	results := make([]any, 0, len(entry.container.Task.Tasks))
	for _, td := range entry.container.Task.Tasks {
		payload, err := s.runner.SubtaskResults(ctx, taskID, td.ID)
		if err != nil {
			s.logger.Warn("fetching subtask results", "task_id", taskID, "subtask_id", td.ID, "error", err)
			continue
		}
		var decoded any
		if err := json.Unmarshal(payload, &decoded); err != nil {
			s.logger.Warn("decoding subtask results", "task_id", taskID, "subtask_id", td.ID, "error", err)
			continue
		}
		results = append(results, decoded)
	}
	if len(results) == 0 {
		return
	}
	s.mu.Lock()
	entry.container.SubtaskResults = append(entry.container.SubtaskResults, results...)
	s.mu.Unlock()
}

// rollupOutcome collects the storage writes a rollup produced, to be flushed
// after the scheduler lock is released.
type rollupOutcome struct {
	wastes   []waste.WasteItem
	archived []*samples.Sample
}

// rollup recomputes the owning method, stage and sample after a task status
// change. Completed methods are executed against the live layout; their
// waste and any fully completed samples are returned for the caller to
// persist without the lock. Fully completed samples are removed from the
// live container here.
func (s *Scheduler) rollup(entry *taskEntry) rollupOutcome {
	var outcome rollupOutcome
	if entry.method != nil {
		meta := entry.method.Meta()
		was := meta.Status
		now := meta.RollupStatus()
		if now == status.Completed && was != status.Completed {
			if item, ok := s.applyMethod(entry.method); ok {
				outcome.wastes = append(outcome.wastes, item)
			}
		}
	}
	if list, ok := entry.sample.Stages[entry.stage]; ok {
		list.UpdateStatus()
	}

	if entry.sample.Status() != status.Completed {
		return outcome
	}
	clone, err := entry.sample.Clone()
	if err != nil {
		s.logger.Error("cloning completed sample", "sample", entry.sample.Name, "error", err)
		return outcome
	}
	if err := s.container.DeleteSample(entry.sample.ID); err != nil {
		s.logger.Error("removing completed sample", "sample", entry.sample.Name, "error", err)
		return outcome
	}
	outcome.archived = append(outcome.archived, clone)
	return outcome
}

// flushOutcome performs the storage writes produced by a rollup.
func (s *Scheduler) flushOutcome(ctx context.Context, outcome rollupOutcome) {
	for _, item := range outcome.wastes {
		if s.waste == nil {
			break
		}
		if err := s.waste.AddWaste(ctx, item); err != nil {
			s.logger.Error("recording waste", "error", err)
		}
	}
	for _, sample := range outcome.archived {
		s.archiveSample(ctx, sample)
	}
}

// applyMethod mutates the bed for a method whose tasks all completed and
// reports the waste it produced. The run already happened on the hardware,
// so an execution error is logged rather than reverted.
func (s *Scheduler) applyMethod(m methods.Method) (waste.WasteItem, bool) {
	if methodErr := m.Execute(s.layout); methodErr != nil {
		s.logger.Error("applying completed method", "method", methodErr.Name, "error", methodErr.Message)
		return waste.WasteItem{}, false
	}
	item := m.Waste(s.layout)
	if item.Volume <= 0 {
		return waste.WasteItem{}, false
	}
	return item, true
}

func (s *Scheduler) archiveSample(ctx context.Context, sample *samples.Sample) {
	if s.history == nil {
		return
	}
	if err := s.history.ArchiveSample(ctx, sample); err != nil {
		s.logger.Error("archiving sample", "sample", sample.Name, "error", err)
		return
	}
	s.logger.Info("sample archived", "sample", sample.Name)
}

func (s *Scheduler) persistSnapshots(ctx context.Context) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.SaveLayout(ctx, s.layout); err != nil {
		s.logger.Error("saving layout snapshot", "error", err)
	}
	if err := s.snapshots.SaveSamples(ctx, s.container); err != nil {
		s.logger.Error("saving samples snapshot", "error", err)
	}
}

// updateGauges refreshes the table-size gauges; callers hold mu.
func (s *Scheduler) updateGauges() {
	if s.metrics == nil {
		return
	}
	s.metrics.PendingTasks.Set(float64(len(s.pending)))
	s.metrics.ActiveTasks.Set(float64(len(s.active)))
}
