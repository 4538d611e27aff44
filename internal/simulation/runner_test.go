package simulation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nvandessel/cablesim/internal/cell"
	"github.com/nvandessel/cablesim/internal/config"
	"github.com/nvandessel/cablesim/internal/sampling"
)

func spikeAt(gid int, t float64) cell.Spike {
	return cell.Spike{Source: cell.Member{Gid: gid, Index: 0}, Time: t}
}

// testConfig returns a small, fast configuration that spikes reliably.
func testConfig() *config.SimConfig {
	cfg := config.Default()
	cfg.Run.TFinal = 50
	cfg.Run.Dt = 0.1
	cfg.Run.Epoch = 1
	cfg.Run.SampleEvery = 1
	cfg.Network.Cells = 3
	cfg.Network.FanOut = 1
	cfg.Network.Weight = 1.0
	cfg.Network.Delay = 1
	cfg.Network.StimCells = 1
	cfg.Network.StimAmplitude = 5
	return cfg
}

func runScenario(t *testing.T, cfg *config.SimConfig) *Result {
	t.Helper()
	r, err := NewRunner(cfg, nil)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	result, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return result
}

func spikesByGid(result *Result) map[int]int {
	counts := make(map[int]int)
	for _, sp := range result.Spikes {
		counts[sp.Source.Gid]++
	}
	return counts
}

func TestRun_StimulatedCellSpikes(t *testing.T) {
	result := runScenario(t, testConfig())

	counts := spikesByGid(result)
	if counts[0] < 2 {
		t.Errorf("stimulated cell spiked %d times, want repeated spiking", counts[0])
	}
	// Spikes are appended step by step; within one step cells report in
	// index order, so ordering is only guaranteed up to one dt.
	for i := 1; i < len(result.Spikes); i++ {
		if result.Spikes[i].Time+0.1 < result.Spikes[i-1].Time {
			t.Errorf("spike times not ordered: %g after %g",
				result.Spikes[i].Time, result.Spikes[i-1].Time)
		}
	}
}

func TestRun_SpikesPropagateThroughRing(t *testing.T) {
	result := runScenario(t, testConfig())

	counts := spikesByGid(result)
	if counts[1] == 0 {
		t.Error("fan-out target cell 1 never spiked")
	}
	if counts[2] == 0 {
		t.Error("second-hop cell 2 never spiked")
	}

	// The unstimulated cells can only spike after the first delivery.
	for _, sp := range result.Spikes {
		if sp.Source.Gid != 0 && sp.Time < testConfig().Network.Delay {
			t.Errorf("cell %d spiked at %g, before any event could arrive",
				sp.Source.Gid, sp.Time)
		}
	}
}

func TestRun_QuietWithoutStimulus(t *testing.T) {
	cfg := testConfig()
	cfg.Network.StimCells = 0
	result := runScenario(t, cfg)
	if len(result.Spikes) != 0 {
		t.Errorf("unstimulated network produced %d spikes", len(result.Spikes))
	}
}

func TestRun_SomaSampling(t *testing.T) {
	cfg := testConfig()
	cfg.Run.TFinal = 10
	result := runScenario(t, cfg)

	// One soma probe per cell.
	if len(result.Samples) != cfg.Network.Cells {
		t.Fatalf("sampled %d probes, want %d", len(result.Samples), cfg.Network.Cells)
	}
	for id, records := range result.Samples {
		if id.Index != 0 {
			t.Errorf("sampled non-soma probe %v", id)
		}
		if len(records) < 8 {
			t.Errorf("probe %v collected %d samples, want ~10", id, len(records))
		}
		for i := 1; i < len(records); i++ {
			if records[i].Time < records[i-1].Time {
				t.Errorf("probe %v sample times not ordered", id)
			}
		}
	}
}

func TestRun_SamplingDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Run.SampleEvery = 0
	result := runScenario(t, cfg)
	if len(result.Samples) != 0 {
		t.Errorf("sampling disabled but %d probes sampled", len(result.Samples))
	}
}

func TestRun_BinningPolicies(t *testing.T) {
	for _, policy := range []string{"none", "regular", "following"} {
		t.Run(policy, func(t *testing.T) {
			cfg := testConfig()
			cfg.Binning.Policy = policy
			cfg.Binning.Interval = 0.5
			result := runScenario(t, cfg)
			if len(result.Spikes) == 0 {
				t.Errorf("policy %s: no spikes", policy)
			}
		})
	}
}

func TestRun_EpochClampedToDelay(t *testing.T) {
	cfg := testConfig()
	cfg.Run.Epoch = 5
	cfg.Network.Delay = 1

	r, err := NewRunner(cfg, nil)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	if r.epoch != 1 {
		t.Errorf("epoch = %g, want clamp to delay 1", r.epoch)
	}
}

func TestRun_Canceled(t *testing.T) {
	r, err := NewRunner(testConfig(), nil)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Run(ctx); err == nil {
		t.Error("canceled run returned no error")
	}
}

func TestRun_ResetAllowsRerun(t *testing.T) {
	cfg := testConfig()
	cfg.Run.TFinal = 20
	r, err := NewRunner(cfg, nil)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	first, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	r.Reset()
	second, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if len(first.Spikes) == 0 || len(second.Spikes) != len(first.Spikes) {
		t.Errorf("rerun not reproducible: %d vs %d spikes",
			len(first.Spikes), len(second.Spikes))
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Run.Dt = 0
	if _, err := NewRunner(cfg, nil); err == nil {
		t.Error("invalid config accepted")
	}
}

func TestNetwork_Recipe(t *testing.T) {
	cfg := testConfig()
	net, err := NewNetwork(cfg.Network)
	if err != nil {
		t.Fatalf("NewNetwork: %v", err)
	}
	if net.NumCells() != 3 {
		t.Errorf("NumCells = %d, want 3", net.NumCells())
	}
	// Default morphology has three branches.
	if net.NumTargets(0) != 3 || net.NumProbes(0) != 3 {
		t.Errorf("targets/probes = %d/%d, want 3/3", net.NumTargets(0), net.NumProbes(0))
	}
	if net.NumSources(0) != 1 {
		t.Errorf("NumSources = %d, want 1", net.NumSources(0))
	}

	gids := net.Gids()
	if len(gids) != 3 || gids[2] != 2 {
		t.Errorf("Gids = %v", gids)
	}
}

func TestNetwork_TargetsWrapAround(t *testing.T) {
	cfg := testConfig()
	cfg.Network.FanOut = 2
	net, err := NewNetwork(cfg.Network)
	if err != nil {
		t.Fatalf("NewNetwork: %v", err)
	}

	events := net.Targets(spikeAt(2, 7.5))
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Target.Gid != 0 || events[1].Target.Gid != 1 {
		t.Errorf("ring wrap wrong: %+v", events)
	}
	for _, ev := range events {
		if ev.Time != 7.5+cfg.Network.Delay {
			t.Errorf("event time = %g, want %g", ev.Time, 7.5+cfg.Network.Delay)
		}
		if ev.Weight != cfg.Network.Weight {
			t.Errorf("event weight = %g, want %g", ev.Weight, cfg.Network.Weight)
		}
	}
}

func TestNetwork_MorphologyFromSWC(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cell.swc")
	swcText := `# soma with one dendrite
1 1 0 0 0 3 -1
2 3 10 0 0 1 1
3 3 20 0 0 0.5 2
4 3 0 10 0 1 1
`
	if err := os.WriteFile(path, []byte(swcText), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig()
	cfg.Network.Morphology = path
	net, err := NewNetwork(cfg.Network)
	if err != nil {
		t.Fatalf("NewNetwork: %v", err)
	}
	// Soma plus two dendrite branches.
	if net.NumTargets(0) != 3 {
		t.Errorf("NumTargets = %d, want 3", net.NumTargets(0))
	}

	result := runScenario(t, cfg)
	if len(result.Spikes) == 0 {
		t.Error("SWC-backed network produced no spikes")
	}
}

func TestNetwork_MorphologyFileMissing(t *testing.T) {
	cfg := testConfig()
	cfg.Network.Morphology = "/does/not/exist.swc"
	if _, err := NewNetwork(cfg.Network); err == nil {
		t.Error("missing morphology file accepted")
	}
}

func TestRun_SampleValuesAreVoltages(t *testing.T) {
	cfg := testConfig()
	cfg.Run.TFinal = 10
	result := runScenario(t, cfg)

	probe := sampling.ProbeID{Gid: 2, Index: 0}
	records := result.Samples[probe]
	if len(records) == 0 {
		t.Fatalf("no samples for %v", probe)
	}
	for _, rec := range records {
		if rec.Value < -200 || rec.Value > 100 {
			t.Errorf("implausible membrane voltage %g at t=%g", rec.Value, rec.Time)
		}
	}
}
