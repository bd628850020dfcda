// Package persistence provides the append-only history stores: the robot job
// record, the completed-sample archive, and the waste ledger. Backends are
// selected by driver name (sqlite, postgres, memory).
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/roadmap-automation/lh-manager-sub000/pkg/samples"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/waste"
)

// ErrNotFound is returned by lookups that match no record.
var ErrNotFound = errors.New("persistence: not found")

// JobRecord is one row of the robot job history.
type JobRecord struct {
	UUID      string          `json:"uuid"`
	LHID      *int            `json:"LH_id"`
	Job       json.RawMessage `json:"job"`
	Timestamp time.Time       `json:"timestamp"`
}

// JobHistory records every robot job keyed by its uuid. PutJob upserts, so
// re-submissions and status updates rewrite the same row.
type JobHistory interface {
	PutJob(ctx context.Context, record JobRecord) error
	JobByUUID(ctx context.Context, uuid string) (JobRecord, error)
	JobByLHID(ctx context.Context, lhID int) (JobRecord, error)
	// MaxLHID returns the highest LH_id ever issued, 0 when none.
	MaxLHID(ctx context.Context) (int, error)
}

// SampleHistory archives completed samples. Archiving the same sample twice
// rewrites its row.
type SampleHistory interface {
	ArchiveSample(ctx context.Context, s *samples.Sample) error
	ArchivedSample(ctx context.Context, uuid string) (*samples.Sample, error)
}

// WasteHistory appends waste contributions keyed by carboy bottle id.
type WasteHistory interface {
	InsertWaste(ctx context.Context, bottleID string, item waste.WasteItem) error
	// BottleVolume sums the recorded contributions for one bottle.
	BottleVolume(ctx context.Context, bottleID string) (float64, error)
}

// Stores bundles the three history stores behind one handle.
type Stores interface {
	JobHistory
	SampleHistory
	WasteHistory
	Close() error
}
