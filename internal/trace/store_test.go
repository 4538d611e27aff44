package trace

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/cablesim/internal/cell"
	"github.com/nvandessel/cablesim/internal/sampling"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBeginRunAndList(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	info, err := s.BeginRun(ctx, "run-1", 100, 0.025, 4)
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if info.ID != "run-1" || info.TFinal != 100 || info.Cells != 4 {
		t.Errorf("BeginRun info = %+v", info)
	}

	// Duplicate run id is rejected by the primary key.
	if _, err := s.BeginRun(ctx, "run-1", 1, 1, 1); err == nil {
		t.Error("duplicate run id accepted")
	}

	runs, err := s.Runs(ctx)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "run-1" {
		t.Errorf("Runs = %+v", runs)
	}
}

func TestRecordAndQuerySpikes(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	if _, err := s.BeginRun(ctx, "r", 10, 0.1, 2); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}

	spikes := []cell.Spike{
		{Source: cell.Member{Gid: 1, Index: 0}, Time: 3.5},
		{Source: cell.Member{Gid: 0, Index: 0}, Time: 1.2},
	}
	if err := s.RecordSpikes(ctx, "r", spikes); err != nil {
		t.Fatalf("RecordSpikes: %v", err)
	}
	// Empty batch is a no-op.
	if err := s.RecordSpikes(ctx, "r", nil); err != nil {
		t.Fatalf("RecordSpikes(nil): %v", err)
	}

	got, err := s.Spikes(ctx, "r")
	if err != nil {
		t.Fatalf("Spikes: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d spikes, want 2", len(got))
	}
	// Ordered by time.
	if got[0].Time != 1.2 || got[0].Source.Gid != 0 {
		t.Errorf("spikes[0] = %+v", got[0])
	}

	n, err := s.SpikeCount(ctx, "r")
	if err != nil {
		t.Fatalf("SpikeCount: %v", err)
	}
	if n != 2 {
		t.Errorf("SpikeCount = %d, want 2", n)
	}
	if n, _ := s.SpikeCount(ctx, "other"); n != 0 {
		t.Errorf("SpikeCount for unknown run = %d", n)
	}
}

func TestRecordAndQuerySamples(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	if _, err := s.BeginRun(ctx, "r", 10, 0.1, 1); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}

	probe := sampling.ProbeID{Gid: 0, Index: 0}
	records := []sampling.Record{{Time: 0, Value: -65}, {Time: 1, Value: -60.5}}
	if err := s.RecordSamples(ctx, "r", probe, records); err != nil {
		t.Fatalf("RecordSamples: %v", err)
	}

	got, err := s.Samples(ctx, "r", probe)
	if err != nil {
		t.Fatalf("Samples: %v", err)
	}
	if len(got) != 2 || got[1].Value != -60.5 {
		t.Errorf("Samples = %+v", got)
	}

	other, err := s.Samples(ctx, "r", sampling.ProbeID{Gid: 9, Index: 9})
	if err != nil {
		t.Fatalf("Samples: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("unknown probe returned %d samples", len(other))
	}
}

func TestExportSpikesJSONL(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	if _, err := s.BeginRun(ctx, "r", 10, 0.1, 1); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	spikes := []cell.Spike{
		{Source: cell.Member{Gid: 2, Index: 1}, Time: 0.5},
		{Source: cell.Member{Gid: 0, Index: 0}, Time: 0.25},
	}
	if err := s.RecordSpikes(ctx, "r", spikes); err != nil {
		t.Fatalf("RecordSpikes: %v", err)
	}

	path := filepath.Join(t.TempDir(), "spikes.jsonl")
	if err := s.ExportSpikesJSONL(ctx, "r", path); err != nil {
		t.Fatalf("ExportSpikesJSONL: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()

	var lines []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("bad JSONL line %q: %v", scanner.Text(), err)
		}
		lines = append(lines, entry)
	}
	if len(lines) != 2 {
		t.Fatalf("exported %d lines, want 2", len(lines))
	}
	if lines[0]["time"] != 0.25 || lines[1]["gid"] != float64(2) {
		t.Errorf("export content wrong: %+v", lines)
	}
}

func TestExportSamplesJSONL(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	if _, err := s.BeginRun(ctx, "r", 10, 0.1, 1); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	probe := sampling.ProbeID{Gid: 0, Index: 0}
	if err := s.RecordSamples(ctx, "r", probe, []sampling.Record{{Time: 1, Value: -64}}); err != nil {
		t.Fatalf("RecordSamples: %v", err)
	}

	path := filepath.Join(t.TempDir(), "samples.jsonl")
	if err := s.ExportSamplesJSONL(ctx, "r", path); err != nil {
		t.Fatalf("ExportSamplesJSONL: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(data), `"value":-64`) {
		t.Errorf("export missing sample: %s", data)
	}
}
