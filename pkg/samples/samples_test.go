package samples

import (
	"encoding/json"
	"testing"

	"github.com/roadmap-automation/lh-manager-sub000/pkg/bedlayout"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/devices"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/methods"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/status"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/tasks"
)

func testLayout(t *testing.T) *bedlayout.LHBedLayout {
	t.Helper()
	layout := bedlayout.DefaultLayout()
	err := layout.AddWell(bedlayout.RackSolvent, bedlayout.Well{
		Solution: bedlayout.Solution{
			Composition: bedlayout.Composition{Solvents: []bedlayout.Solvent{{Name: "D2O", Fraction: 1.0}}},
			Volume:      10.0,
		},
		WellNumber: 1,
	})
	if err != nil {
		t.Fatalf("add solvent well: %v", err)
	}
	if err := layout.AddWell(bedlayout.RackMix, bedlayout.Well{WellNumber: 1}); err != nil {
		t.Fatalf("add mix well: %v", err)
	}
	return layout
}

func testTransfer(volume float64) *methods.TransferWithRinse {
	m := methods.NewTransferWithRinse()
	m.Source = bedlayout.WellLocation{RackID: bedlayout.RackSolvent, WellNumber: 1}
	m.Target = bedlayout.WellLocation{RackID: bedlayout.RackMix, WellNumber: 1}
	m.Volume = volume
	return m
}

func TestMethodListExplodeFlattensClusters(t *testing.T) {
	layout := testLayout(t)
	list := NewMethodList()
	list.AddMethod(methods.NewMethodCluster(testTransfer(1.0), testTransfer(2.0)))
	list.AddMethod(testTransfer(0.5))

	list.Explode(layout)
	if len(list.Methods) != 3 {
		t.Fatalf("exploded method count = %d, want 3", len(list.Methods))
	}
	for i, m := range list.Methods {
		if _, ok := m.(*methods.TransferWithRinse); !ok {
			t.Fatalf("method %d is %T, want transfer", i, m)
		}
	}
}

func TestMethodListCreatedDateSetOnce(t *testing.T) {
	list := NewMethodList()
	if list.CreatedDate != nil {
		t.Fatal("fresh list has a creation date")
	}
	list.AddMethod(testTransfer(1.0))
	first := list.CreatedDate
	if first == nil {
		t.Fatal("creation date not stamped")
	}
	list.AddMethod(testTransfer(2.0))
	if list.CreatedDate != first {
		t.Fatal("creation date changed on second add")
	}
}

func TestSampleStatusRollup(t *testing.T) {
	cases := []struct {
		name   string
		stages []status.Status
		want   status.Status
	}{
		{"all inactive", []status.Status{status.Inactive, status.Inactive}, status.Inactive},
		{"any active", []status.Status{status.Active, status.Inactive}, status.Active},
		{"any pending", []status.Status{status.Pending, status.Inactive}, status.Pending},
		{"all completed", []status.Status{status.Completed, status.Completed}, status.Completed},
		{"completed and inactive", []status.Status{status.Completed, status.Inactive}, status.Partial},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSample("test", "")
			names := []StageName{StagePrep, StageInject}
			for i, st := range tc.stages {
				s.Stages[names[i]].Status = st
			}
			if got := s.Status(); got != tc.want {
				t.Fatalf("status = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestPrepareTasksSingleDeviceTransfer(t *testing.T) {
	layout := testLayout(t)
	catalog := devices.NewDefaultManager()

	s := NewSample("water sample", "")
	s.Channel = 2
	s.Stages[StagePrep].AddMethod(testTransfer(1.0))

	containers, err := s.PrepareTasks(StagePrep, layout, catalog)
	if err != nil {
		t.Fatalf("prepare tasks: %v", err)
	}
	if len(containers) != 1 {
		t.Fatalf("container count = %d, want 1", len(containers))
	}
	task := containers[0].Task
	if task.TaskType != tasks.TypeNoChannel {
		t.Fatalf("task type = %s, want %s", task.TaskType, tasks.TypeNoChannel)
	}
	if len(task.Tasks) != 1 {
		t.Fatalf("task data count = %d, want 1", len(task.Tasks))
	}
	data := task.Tasks[0]
	if data.Device != devices.LiquidHandlerName {
		t.Fatalf("device = %s", data.Device)
	}
	if data.Channel == nil || *data.Channel != 2 {
		t.Fatalf("channel = %v, want 2", data.Channel)
	}
	if data.NonChannelStorage != "" {
		t.Fatalf("non-channel storage set on a channelled task")
	}
	if _, ok := data.MethodData["method_list"]; !ok {
		t.Fatal("method data missing method_list")
	}
	if len(s.Stages[StagePrep].Methods[0].Meta().Tasks) != 1 {
		t.Fatal("task container not attached to method")
	}
}

func TestPrepareTasksMultiDeviceIsTransfer(t *testing.T) {
	layout := testLayout(t)
	catalog := devices.NewDefaultManager()

	m := methods.NewLoadLoopSync()
	m.Source = bedlayout.WellLocation{RackID: bedlayout.RackSolvent, WellNumber: 1}
	m.Volume = 1.0

	s := NewSample("loop sample", "")
	s.Channel = 1
	s.Stages[StageInject].AddMethod(m)

	containers, err := s.PrepareTasks(StageInject, layout, catalog)
	if err != nil {
		t.Fatalf("prepare tasks: %v", err)
	}
	if len(containers) != 1 {
		t.Fatalf("container count = %d, want 1", len(containers))
	}
	task := containers[0].Task
	if task.TaskType != tasks.TypeTransfer {
		t.Fatalf("task type = %s, want %s", task.TaskType, tasks.TypeTransfer)
	}
	if len(task.Tasks) != 3 {
		t.Fatalf("task data count = %d, want 3", len(task.Tasks))
	}
	for _, data := range task.Tasks {
		device, err := catalog.Get(data.Device)
		if err != nil {
			t.Fatalf("device lookup: %v", err)
		}
		if device.Multichannel {
			if data.Channel == nil || *data.Channel != 1 {
				t.Fatalf("%s channel = %v, want 1", data.Device, data.Channel)
			}
		} else {
			if data.Channel != nil {
				t.Fatalf("%s channel = %v, want nil", data.Device, data.Channel)
			}
			if data.NonChannelStorage != tasks.NonChannelStorage {
				t.Fatalf("%s non-channel storage = %q", data.Device, data.NonChannelStorage)
			}
		}
	}
}

func TestPrepareTasksMeasureType(t *testing.T) {
	layout := testLayout(t)
	catalog := devices.NewDefaultManager()

	s := NewSample("record sample", "")
	s.Stages[StageInject].AddMethod(methods.NewQCMDRecord())

	containers, err := s.PrepareTasks(StageInject, layout, catalog)
	if err != nil {
		t.Fatalf("prepare tasks: %v", err)
	}
	if len(containers) != 1 {
		t.Fatalf("container count = %d, want 1", len(containers))
	}
	if got := containers[0].Task.TaskType; got != tasks.TypeMeasure {
		t.Fatalf("task type = %s, want %s", got, tasks.TypeMeasure)
	}
}

func TestContainerAddAndLookup(t *testing.T) {
	c := NewSampleContainer()
	s := NewSample("alpha", "")
	if err := c.AddSample(s); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := c.AddSample(s); err == nil {
		t.Fatal("duplicate id accepted")
	}

	i, found := c.GetSampleByID(s.ID)
	if i != 0 || found != s {
		t.Fatalf("lookup by id = (%d, %v)", i, found)
	}
	if got := c.GetSampleByName("alpha"); got != s {
		t.Fatal("lookup by name failed")
	}
	if got := c.GetSampleByName("alpha", status.Completed); got != nil {
		t.Fatal("status filter did not exclude inactive sample")
	}
	if got := c.GetSampleByName("beta"); got != nil {
		t.Fatal("unknown name returned a sample")
	}
}

func TestContainerNameLookupMatchesAnyFilterStatus(t *testing.T) {
	c := NewSampleContainer()
	s := NewSample("alpha", "")
	if err := c.AddSample(s); err != nil {
		t.Fatalf("add: %v", err)
	}

	runnable := []status.Status{status.Inactive, status.Pending, status.Active, status.Partial}
	s.Stages[StagePrep].Status = status.Pending
	if got := c.GetSampleByName("alpha", runnable...); got != s {
		t.Fatal("pending sample not matched by multi-status filter")
	}
	s.Stages[StagePrep].Status = status.Completed
	if got := c.GetSampleByName("alpha", runnable...); got != s {
		t.Fatal("partial sample not matched by multi-status filter")
	}
	s.Stages[StageInject].Status = status.Completed
	if got := c.GetSampleByName("alpha", runnable...); got != nil {
		t.Fatal("completed sample matched a filter without Completed")
	}
}

func TestContainerDuplicateSample(t *testing.T) {
	c := NewSampleContainer()
	s := NewSample("alpha", "original")
	s.Stages[StagePrep].AddMethod(testTransfer(1.0))
	if err := c.AddSample(s); err != nil {
		t.Fatalf("add: %v", err)
	}

	copied, err := c.DuplicateSample(s.ID)
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	if copied.ID == s.ID {
		t.Fatal("copy shares the original id")
	}
	if copied.Name != "alpha copy" {
		t.Fatalf("copy name = %q", copied.Name)
	}
	if len(c.Samples) != 2 || c.Samples[1] != copied {
		t.Fatal("copy not inserted after original")
	}
	if len(copied.Stages[StagePrep].Methods) != 1 {
		t.Fatal("methods not carried into copy")
	}
	if copied.Stages[StagePrep].Methods[0].Meta().ID == s.Stages[StagePrep].Methods[0].Meta().ID {
		t.Fatal("copied method shares the original method id")
	}
}

func TestDryRunQueueOrdering(t *testing.T) {
	q := &DryRunQueue{}
	a := Item{ID: "a", Stage: StagePrep}
	b := Item{ID: "b", Stage: StagePrep}

	q.AddItem(a)
	q.AddItem(b)
	q.AddItem(a) // no-op
	if len(q.Stages) != 2 {
		t.Fatalf("queue length = %d, want 2", len(q.Stages))
	}

	q.MoveItemUp(b)
	if q.Stages[0].ID != "b" {
		t.Fatalf("head = %s, want b", q.Stages[0].ID)
	}
	q.MoveItemUp(b) // already at head
	if q.Stages[0].ID != "b" {
		t.Fatal("move up at head reordered the queue")
	}
	q.MoveItemDown(b)
	if q.Stages[1].ID != "b" {
		t.Fatalf("tail = %s, want b", q.Stages[1].ID)
	}
	q.ClearItem(a)
	if len(q.Stages) != 1 || q.Stages[0].ID != "b" {
		t.Fatal("clear item removed the wrong entry")
	}
	q.Clear()
	if len(q.Stages) != 0 {
		t.Fatal("clear left entries behind")
	}
}

func TestDryRunCollectsErrorsWithoutMutatingLayout(t *testing.T) {
	layout := testLayout(t)
	c := NewSampleContainer()

	good := NewSample("good", "")
	good.Stages[StagePrep].AddMethod(testTransfer(1.0))
	bad := NewSample("bad", "")
	bad.Stages[StagePrep].AddMethod(testTransfer(50.0)) // exceeds source volume
	if err := c.AddSample(good); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := c.AddSample(bad); err != nil {
		t.Fatalf("add: %v", err)
	}

	c.DryRunQueue.AddItem(Item{ID: good.ID, Stage: StagePrep})
	c.DryRunQueue.AddItem(Item{ID: bad.ID, Stage: StagePrep})
	c.DryRunQueue.AddItem(Item{ID: "gone", Stage: StagePrep})

	errs := c.DryRun(layout)
	if len(errs) != 1 {
		t.Fatalf("error count = %d, want 1: %v", len(errs), errs)
	}
	if errs[0].SampleName != "bad" {
		t.Fatalf("error sample = %s", errs[0].SampleName)
	}
	if len(c.DryRunQueue.Stages) != 2 {
		t.Fatalf("stale queue item not dropped: %d entries", len(c.DryRunQueue.Stages))
	}

	source, _, err := layout.GetWellAndRack(bedlayout.RackSolvent, 1)
	if err != nil {
		t.Fatalf("well lookup: %v", err)
	}
	if source.Volume != 10.0 {
		t.Fatalf("live layout mutated: source volume = %g", source.Volume)
	}
}

func TestSampleJSONRoundTrip(t *testing.T) {
	s := NewSample("roundtrip", "desc")
	s.Channel = 3
	s.Stages[StagePrep].AddMethod(testTransfer(1.5))

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Sample
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.ID != s.ID || out.Channel != 3 {
		t.Fatalf("identity fields lost: %+v", out)
	}
	m, ok := out.Stages[StagePrep].Methods[0].(*methods.TransferWithRinse)
	if !ok {
		t.Fatalf("method decoded as %T", out.Stages[StagePrep].Methods[0])
	}
	if m.Volume != 1.5 {
		t.Fatalf("volume = %g, want 1.5", m.Volume)
	}
}
