package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/roadmap-automation/lh-manager-sub000/pkg/samples"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/waste"
)

// memoryStores is the ephemeral backend used by tests and dry deployments.
type memoryStores struct {
	mu       sync.RWMutex
	jobs     map[string]JobRecord
	archived map[string]*samples.Sample
	wastes   []wasteRow
}

type wasteRow struct {
	bottleID string
	item     waste.WasteItem
}

// NewMemoryStores returns empty in-memory history stores.
func NewMemoryStores() Stores {
	return &memoryStores{
		jobs:     make(map[string]JobRecord),
		archived: make(map[string]*samples.Sample),
	}
}

func (s *memoryStores) Close() error { return nil }

func (s *memoryStores) PutJob(ctx context.Context, record JobRecord) error {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	s.mu.Lock()
	s.jobs[record.UUID] = record
	s.mu.Unlock()
	return nil
}

func (s *memoryStores) JobByUUID(ctx context.Context, uuid string) (JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.jobs[uuid]
	if !ok {
		return JobRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *memoryStores) JobByLHID(ctx context.Context, lhID int) (JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *JobRecord
	for _, rec := range s.jobs {
		if rec.LHID == nil || *rec.LHID != lhID {
			continue
		}
		if found == nil || rec.Timestamp.After(found.Timestamp) {
			r := rec
			found = &r
		}
	}
	if found == nil {
		return JobRecord{}, ErrNotFound
	}
	return *found, nil
}

func (s *memoryStores) MaxLHID(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	max := 0
	for _, rec := range s.jobs {
		if rec.LHID != nil && *rec.LHID > max {
			max = *rec.LHID
		}
	}
	return max, nil
}

func (s *memoryStores) ArchiveSample(ctx context.Context, sample *samples.Sample) error {
	copied, err := sample.Clone()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.archived[sample.ID] = copied
	s.mu.Unlock()
	return nil
}

func (s *memoryStores) ArchivedSample(ctx context.Context, uuid string) (*samples.Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sample, ok := s.archived[uuid]
	if !ok {
		return nil, ErrNotFound
	}
	return sample, nil
}

func (s *memoryStores) InsertWaste(ctx context.Context, bottleID string, item waste.WasteItem) error {
	s.mu.Lock()
	s.wastes = append(s.wastes, wasteRow{bottleID: bottleID, item: item})
	s.mu.Unlock()
	return nil
}

func (s *memoryStores) BottleVolume(ctx context.Context, bottleID string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0.0
	for _, row := range s.wastes {
		if row.bottleID == bottleID {
			total += row.item.Volume
		}
	}
	return total, nil
}

var _ Stores = (*memoryStores)(nil)
