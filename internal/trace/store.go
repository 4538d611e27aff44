package trace

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/cablesim/internal/cell"
	"github.com/nvandessel/cablesim/internal/sampling"
)

// RunInfo describes one recorded simulation run.
type RunInfo struct {
	ID        string
	CreatedAt time.Time
	TFinal    float64
	Dt        float64
	Cells     int
}

// Store records spikes and samples to a SQLite database under dir.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	dir    string
	dbPath string
}

// Open creates (if needed) dir and the trace database inside it.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create trace directory: %w", err)
	}

	dbPath := filepath.Join(dir, "cablesim.db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db, dir: dir, dbPath: dbPath}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// BeginRun registers a new run and returns its info.
func (s *Store) BeginRun(ctx context.Context, id string, tfinal, dt float64, cells int) (RunInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := RunInfo{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		TFinal:    tfinal,
		Dt:        dt,
		Cells:     cells,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, tfinal, dt, cells) VALUES (?, ?, ?, ?, ?)`,
		info.ID, info.CreatedAt.Format(time.RFC3339Nano), info.TFinal, info.Dt, info.Cells)
	if err != nil {
		return RunInfo{}, fmt.Errorf("failed to register run %s: %w", id, err)
	}
	return info, nil
}

// RecordSpikes appends spikes to a run in one transaction.
func (s *Store) RecordSpikes(ctx context.Context, runID string, spikes []cell.Spike) error {
	if len(spikes) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO spikes (run_id, gid, source, time) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, sp := range spikes {
		if _, err := stmt.ExecContext(ctx, runID, sp.Source.Gid, sp.Source.Index, sp.Time); err != nil {
			return fmt.Errorf("failed to insert spike: %w", err)
		}
	}
	return tx.Commit()
}

// RecordSamples appends probe samples to a run in one transaction.
func (s *Store) RecordSamples(ctx context.Context, runID string, probe sampling.ProbeID, records []sampling.Record) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO samples (run_id, gid, probe, time, value) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, runID, probe.Gid, probe.Index, r.Time, r.Value); err != nil {
			return fmt.Errorf("failed to insert sample: %w", err)
		}
	}
	return tx.Commit()
}

// Spikes returns a run's spikes ordered by time.
func (s *Store) Spikes(ctx context.Context, runID string) ([]cell.Spike, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT gid, source, time FROM spikes WHERE run_id = ? ORDER BY time, gid, source`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query spikes: %w", err)
	}
	defer rows.Close()

	var spikes []cell.Spike
	for rows.Next() {
		var sp cell.Spike
		if err := rows.Scan(&sp.Source.Gid, &sp.Source.Index, &sp.Time); err != nil {
			return nil, fmt.Errorf("failed to scan spike: %w", err)
		}
		spikes = append(spikes, sp)
	}
	return spikes, rows.Err()
}

// SpikeCount returns the number of recorded spikes for a run.
func (s *Store) SpikeCount(ctx context.Context, runID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM spikes WHERE run_id = ?`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count spikes: %w", err)
	}
	return n, nil
}

// Samples returns one probe's samples for a run, ordered by time.
func (s *Store) Samples(ctx context.Context, runID string, probe sampling.ProbeID) ([]sampling.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT time, value FROM samples WHERE run_id = ? AND gid = ? AND probe = ? ORDER BY time`,
		runID, probe.Gid, probe.Index)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var records []sampling.Record
	for rows.Next() {
		var r sampling.Record
		if err := rows.Scan(&r.Time, &r.Value); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Runs lists all recorded runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]RunInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, tfinal, dt, cells FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var info RunInfo
		var created string
		if err := rows.Scan(&info.ID, &created, &info.TFinal, &info.Dt, &info.Cells); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			info.CreatedAt = t
		}
		runs = append(runs, info)
	}
	return runs, rows.Err()
}
