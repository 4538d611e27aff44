package trace

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// spikeLine is the JSONL export form of one spike.
type spikeLine struct {
	Gid    int     `json:"gid"`
	Source int     `json:"source"`
	Time   float64 `json:"time"`
}

// sampleLine is the JSONL export form of one sample.
type sampleLine struct {
	Gid   int     `json:"gid"`
	Probe int     `json:"probe"`
	Time  float64 `json:"time"`
	Value float64 `json:"value"`
}

// ExportSpikesJSONL writes a run's spikes to path, one JSON object per line,
// ordered by time.
func (s *Store) ExportSpikesJSONL(ctx context.Context, runID, path string) error {
	spikes, err := s.Spikes(ctx, runID)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, sp := range spikes {
		if err := enc.Encode(spikeLine{Gid: sp.Source.Gid, Source: sp.Source.Index, Time: sp.Time}); err != nil {
			return fmt.Errorf("failed to encode spike: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush export: %w", err)
	}
	return nil
}

// ExportSamplesJSONL writes all of a run's samples to path, one JSON object
// per line.
func (s *Store) ExportSamplesJSONL(ctx context.Context, runID, path string) error {
	s.mu.Lock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT gid, probe, time, value FROM samples WHERE run_id = ? ORDER BY gid, probe, time`, runID)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to query samples: %w", err)
	}

	var lines []sampleLine
	for rows.Next() {
		var l sampleLine
		if err := rows.Scan(&l.Gid, &l.Probe, &l.Time, &l.Value); err != nil {
			rows.Close()
			s.mu.Unlock()
			return fmt.Errorf("failed to scan sample: %w", err)
		}
		lines = append(lines, l)
	}
	err = rows.Err()
	rows.Close()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, l := range lines {
		if err := enc.Encode(l); err != nil {
			return fmt.Errorf("failed to encode sample: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush export: %w", err)
	}
	return nil
}
