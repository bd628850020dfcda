package samples

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/roadmap-automation/lh-manager-sub000/pkg/bedlayout"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/status"
)

// Archiver receives completed samples for long-term storage.
type Archiver interface {
	ArchiveSample(s *Sample) error
}

// SampleContainer holds the live samples and their dry-run queue.
type SampleContainer struct {
	Samples     []*Sample   `json:"samples"`
	DryRunQueue DryRunQueue `json:"dryrun_queue"`
}

// NewSampleContainer returns an empty container.
func NewSampleContainer() *SampleContainer {
	return &SampleContainer{}
}

// GetSampleByID returns the index and sample with the given id, or (-1, nil).
func (c *SampleContainer) GetSampleByID(id string) (int, *Sample) {
	for i, s := range c.Samples {
		if s.ID == id {
			return i, s
		}
	}
	return -1, nil
}

// GetSampleByName returns the first sample with the given name, optionally
// restricted to any of the given statuses. Returns nil if no sample matches.
func (c *SampleContainer) GetSampleByName(name string, filter ...status.Status) *Sample {
	for _, s := range c.Samples {
		if s.Name != name {
			continue
		}
		if len(filter) == 0 || slices.Contains(filter, s.Status()) {
			return s
		}
	}
	return nil
}

// AddSample appends a sample. A sample with a duplicate id is rejected.
func (c *SampleContainer) AddSample(s *Sample) error {
	if _, existing := c.GetSampleByID(s.ID); existing != nil {
		return fmt.Errorf("sample id %s already present", s.ID)
	}
	c.Samples = append(c.Samples, s)
	return nil
}

// DeleteSample removes a sample by id.
func (c *SampleContainer) DeleteSample(id string) error {
	i, _ := c.GetSampleByID(id)
	if i < 0 {
		return fmt.Errorf("sample %s not found", id)
	}
	c.Samples = append(c.Samples[:i], c.Samples[i+1:]...)
	return nil
}

// DuplicateSample inserts a copy of a sample, with a fresh id and a marked
// name, directly after the original.
func (c *SampleContainer) DuplicateSample(id string) (*Sample, error) {
	i, s := c.GetSampleByID(id)
	if s == nil {
		return nil, fmt.Errorf("sample %s not found", id)
	}
	copied, err := s.Clone()
	if err != nil {
		return nil, err
	}
	copied.GenerateNewID()
	copied.Name = s.Name + " copy"
	for _, stage := range copied.Stages {
		stage.Status = status.Inactive
		for _, m := range stage.Methods {
			m.Meta().Tasks = nil
			m.Meta().ID = uuid.NewString()
			m.Meta().Status = status.Inactive
		}
	}
	c.Samples = append(c.Samples[:i+1], append([]*Sample{copied}, c.Samples[i+1:]...)...)
	return copied, nil
}

// Archive hands a sample over to the archiver and removes it from the
// container.
func (c *SampleContainer) Archive(id string, archiver Archiver) error {
	_, s := c.GetSampleByID(id)
	if s == nil {
		return fmt.Errorf("sample %s not found", id)
	}
	if err := archiver.ArchiveSample(s); err != nil {
		return fmt.Errorf("archiving sample %s: %w", id, err)
	}
	return c.DeleteSample(id)
}

// ValidateQueue drops queued items whose sample no longer exists.
func (c *SampleContainer) ValidateQueue() {
	var kept []Item
	for _, item := range c.DryRunQueue.Stages {
		if _, s := c.GetSampleByID(item.ID); s != nil {
			kept = append(kept, item)
		}
	}
	c.DryRunQueue.Stages = kept
}

// DryRunError reports one failed method during a dry run.
type DryRunError struct {
	SampleName string    `json:"sample_name"`
	Stage      StageName `json:"stage"`
	Message    string    `json:"error"`
}

func (e DryRunError) String() string {
	return fmt.Sprintf("%s/%s: %s", e.SampleName, e.Stage, e.Message)
}

// DryRun executes every queued stage against a copy of the layout, in queue
// order, and collects the per-method errors. The live layout is never
// touched.
func (c *SampleContainer) DryRun(layout *bedlayout.LHBedLayout) []DryRunError {
	c.ValidateQueue()

	scratch := layout.Clone()

	var errors []DryRunError
	for _, item := range c.DryRunQueue.Stages {
		_, s := c.GetSampleByID(item.ID)
		stage, ok := s.Stages[item.Stage]
		if !ok {
			errors = append(errors, DryRunError{SampleName: s.Name, Stage: item.Stage, Message: "stage not found"})
			continue
		}
		for _, methodErr := range stage.Execute(scratch) {
			if methodErr == nil {
				continue
			}
			errors = append(errors, DryRunError{SampleName: s.Name, Stage: item.Stage, Message: methodErr.String()})
		}
	}
	return errors
}

// Summary returns a short human-readable listing, used for logging.
func (c *SampleContainer) Summary() string {
	parts := make([]string, len(c.Samples))
	for i, s := range c.Samples {
		parts[i] = fmt.Sprintf("%s (%s)", s.Name, s.Status())
	}
	return strings.Join(parts, ", ")
}
