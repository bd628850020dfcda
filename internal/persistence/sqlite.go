package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/roadmap-automation/lh-manager-sub000/pkg/samples"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/waste"
)

// sqliteStores keeps each history in its own database file under one
// directory, matching the on-disk layout of earlier deployments.
type sqliteStores struct {
	jobs      *sql.DB
	samplesDB *sql.DB
	wasteDB   *sql.DB
}

// NewSQLiteStores opens (creating if needed) the three history databases
// under dir.
func NewSQLiteStores(dir string) (Stores, error) {
	if dir == "" {
		dir = "./logs"
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	jobs, err := openSQLite(filepath.Join(dir, "history.db"), `CREATE TABLE IF NOT EXISTS lh_job_record (
		uuid TEXT PRIMARY KEY,
		LH_id INTEGER,
		job TEXT,
		timestamp TEXT NOT NULL
	)`)
	if err != nil {
		return nil, err
	}
	samplesDB, err := openSQLite(filepath.Join(dir, "completed_samples.db"), `CREATE TABLE IF NOT EXISTS completed_samples (
		uuid TEXT PRIMARY KEY,
		name TEXT,
		sample TEXT,
		timestamp TEXT NOT NULL
	)`)
	if err != nil {
		_ = jobs.Close()
		return nil, err
	}
	wasteDB, err := openSQLite(filepath.Join(dir, "waste.db"), `CREATE TABLE IF NOT EXISTS waste_record (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		bottle_id TEXT NOT NULL,
		waste TEXT,
		volume REAL,
		timestamp TEXT NOT NULL
	)`)
	if err != nil {
		_ = jobs.Close()
		_ = samplesDB.Close()
		return nil, err
	}
	return &sqliteStores{jobs: jobs, samplesDB: samplesDB, wasteDB: wasteDB}, nil
}

func openSQLite(path, ddl string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := db.Exec(ddl); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create table in %s: %w", path, err)
	}
	return db, nil
}

func (s *sqliteStores) Close() error {
	var first error
	for _, db := range []*sql.DB{s.jobs, s.samplesDB, s.wasteDB} {
		if err := db.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (s *sqliteStores) PutJob(ctx context.Context, record JobRecord) error {
	ts := record.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.jobs.ExecContext(ctx, `INSERT INTO lh_job_record (uuid, LH_id, job, timestamp)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(uuid) DO UPDATE SET LH_id=excluded.LH_id, job=excluded.job, timestamp=excluded.timestamp`,
		record.UUID, record.LHID, string(record.Job), ts.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record job %s: %w", record.UUID, err)
	}
	return nil
}

func scanJob(row *sql.Row) (JobRecord, error) {
	var rec JobRecord
	var lhID sql.NullInt64
	var job sql.NullString
	var ts string
	if err := row.Scan(&rec.UUID, &lhID, &job, &ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return JobRecord{}, ErrNotFound
		}
		return JobRecord{}, err
	}
	if lhID.Valid {
		id := int(lhID.Int64)
		rec.LHID = &id
	}
	if job.Valid {
		rec.Job = json.RawMessage(job.String)
	}
	if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		rec.Timestamp = parsed
	}
	return rec, nil
}

func (s *sqliteStores) JobByUUID(ctx context.Context, uuid string) (JobRecord, error) {
	row := s.jobs.QueryRowContext(ctx,
		`SELECT uuid, LH_id, job, timestamp FROM lh_job_record WHERE uuid = ?`, uuid)
	return scanJob(row)
}

func (s *sqliteStores) JobByLHID(ctx context.Context, lhID int) (JobRecord, error) {
	row := s.jobs.QueryRowContext(ctx,
		`SELECT uuid, LH_id, job, timestamp FROM lh_job_record WHERE LH_id = ? ORDER BY timestamp DESC LIMIT 1`, lhID)
	return scanJob(row)
}

func (s *sqliteStores) MaxLHID(ctx context.Context) (int, error) {
	var max sql.NullInt64
	err := s.jobs.QueryRowContext(ctx, `SELECT MAX(LH_id) FROM lh_job_record`).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max LH_id: %w", err)
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64), nil
}

func (s *sqliteStores) ArchiveSample(ctx context.Context, sample *samples.Sample) error {
	data, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("encode sample %s: %w", sample.ID, err)
	}
	_, err = s.samplesDB.ExecContext(ctx, `INSERT INTO completed_samples (uuid, name, sample, timestamp)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(uuid) DO UPDATE SET name=excluded.name, sample=excluded.sample, timestamp=excluded.timestamp`,
		sample.ID, sample.Name, string(data), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("archive sample %s: %w", sample.ID, err)
	}
	return nil
}

func (s *sqliteStores) ArchivedSample(ctx context.Context, uuid string) (*samples.Sample, error) {
	var data string
	err := s.samplesDB.QueryRowContext(ctx,
		`SELECT sample FROM completed_samples WHERE uuid = ?`, uuid).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var sample samples.Sample
	if err := json.Unmarshal([]byte(data), &sample); err != nil {
		return nil, fmt.Errorf("decode archived sample %s: %w", uuid, err)
	}
	return &sample, nil
}

func (s *sqliteStores) InsertWaste(ctx context.Context, bottleID string, item waste.WasteItem) error {
	data, err := json.Marshal(item.Composition)
	if err != nil {
		return fmt.Errorf("encode waste composition: %w", err)
	}
	_, err = s.wasteDB.ExecContext(ctx, `INSERT INTO waste_record (bottle_id, waste, volume, timestamp)
		VALUES (?, ?, ?, ?)`,
		bottleID, string(data), item.Volume, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record waste: %w", err)
	}
	return nil
}

func (s *sqliteStores) BottleVolume(ctx context.Context, bottleID string) (float64, error) {
	var total sql.NullFloat64
	err := s.wasteDB.QueryRowContext(ctx,
		`SELECT SUM(volume) FROM waste_record WHERE bottle_id = ?`, bottleID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("bottle volume: %w", err)
	}
	return total.Float64, nil
}

var _ Stores = (*sqliteStores)(nil)
