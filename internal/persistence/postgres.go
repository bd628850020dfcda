package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"github.com/roadmap-automation/lh-manager-sub000/pkg/samples"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/waste"
)

// postgresStores keeps all three histories as tables in one database.
type postgresStores struct {
	db *sql.DB
}

// NewPostgresStores opens the history database at dsn and ensures the tables
// exist.
func NewPostgresStores(ctx context.Context, dsn string) (Stores, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	for _, ddl := range []string{
		`CREATE TABLE IF NOT EXISTS lh_job_record (
			uuid TEXT PRIMARY KEY,
			lh_id INTEGER,
			job JSONB,
			ts TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS completed_samples (
			uuid TEXT PRIMARY KEY,
			name TEXT,
			sample JSONB,
			ts TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS waste_record (
			id BIGSERIAL PRIMARY KEY,
			bottle_id TEXT NOT NULL,
			waste JSONB,
			volume DOUBLE PRECISION,
			ts TIMESTAMPTZ NOT NULL
		)`,
	} {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure history tables: %w", err)
		}
	}
	return &postgresStores{db: db}, nil
}

func (s *postgresStores) Close() error { return s.db.Close() }

func (s *postgresStores) PutJob(ctx context.Context, record JobRecord) error {
	ts := record.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO lh_job_record (uuid, lh_id, job, ts)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (uuid) DO UPDATE SET lh_id=EXCLUDED.lh_id, job=EXCLUDED.job, ts=EXCLUDED.ts`,
		record.UUID, record.LHID, string(record.Job), ts)
	if err != nil {
		return fmt.Errorf("record job %s: %w", record.UUID, err)
	}
	return nil
}

func (s *postgresStores) scanJob(row *sql.Row) (JobRecord, error) {
	var rec JobRecord
	var lhID sql.NullInt64
	var job sql.NullString
	if err := row.Scan(&rec.UUID, &lhID, &job, &rec.Timestamp); err != nil {
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
	return rec, nil
}

func (s *postgresStores) JobByUUID(ctx context.Context, uuid string) (JobRecord, error) {
	return s.scanJob(s.db.QueryRowContext(ctx,
		`SELECT uuid, lh_id, job, ts FROM lh_job_record WHERE uuid = $1`, uuid))
}

func (s *postgresStores) JobByLHID(ctx context.Context, lhID int) (JobRecord, error) {
	return s.scanJob(s.db.QueryRowContext(ctx,
		`SELECT uuid, lh_id, job, ts FROM lh_job_record WHERE lh_id = $1 ORDER BY ts DESC LIMIT 1`, lhID))
}

func (s *postgresStores) MaxLHID(ctx context.Context) (int, error) {
	var max sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(lh_id) FROM lh_job_record`).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max LH_id: %w", err)
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64), nil
}

func (s *postgresStores) ArchiveSample(ctx context.Context, sample *samples.Sample) error {
	data, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("encode sample %s: %w", sample.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO completed_samples (uuid, name, sample, ts)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (uuid) DO UPDATE SET name=EXCLUDED.name, sample=EXCLUDED.sample, ts=EXCLUDED.ts`,
		sample.ID, sample.Name, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("archive sample %s: %w", sample.ID, err)
	}
	return nil
}

func (s *postgresStores) ArchivedSample(ctx context.Context, uuid string) (*samples.Sample, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT sample FROM completed_samples WHERE uuid = $1`, uuid).Scan(&data)
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

func (s *postgresStores) InsertWaste(ctx context.Context, bottleID string, item waste.WasteItem) error {
	data, err := json.Marshal(item.Composition)
	if err != nil {
		return fmt.Errorf("encode waste composition: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO waste_record (bottle_id, waste, volume, ts)
		VALUES ($1, $2, $3, $4)`,
		bottleID, string(data), item.Volume, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record waste: %w", err)
	}
	return nil
}

func (s *postgresStores) BottleVolume(ctx context.Context, bottleID string) (float64, error) {
	var total sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT SUM(volume) FROM waste_record WHERE bottle_id = $1`, bottleID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("bottle volume: %w", err)
	}
	return total.Float64, nil
}

var _ Stores = (*postgresStores)(nil)
