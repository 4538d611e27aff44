package simulation

import (
	"fmt"
	"os"

	"github.com/nvandessel/cablesim/internal/backend"
	"github.com/nvandessel/cablesim/internal/cell"
	"github.com/nvandessel/cablesim/internal/config"
	"github.com/nvandessel/cablesim/internal/morph"
	"github.com/nvandessel/cablesim/internal/swc"
)

// Network is a ring of identical cells: each spike source projects onto the
// somas of the next FanOut cells. It implements cell.Recipe.
type Network struct {
	cfg   config.NetworkConfig
	desc  backend.CellDescription
	comps int
}

// defaultMorphology is a soma with two unbranched dendrites: three branches,
// so three compartments per cell.
func defaultMorphology() ([]int, []morph.Point) {
	parentIndex := []int{0, 0, 1, 2, 0, 4}
	points := []morph.Point{
		{X: 0, Radius: 3},
		{X: 10, Radius: 1},
		{X: 20, Radius: 0.8},
		{X: 30, Radius: 0.5},
		{X: -10, Radius: 1},
		{X: -20, Radius: 0.5},
	}
	return parentIndex, points
}

// loadMorphology reads an SWC file and returns the canonical parent index
// and node samples.
func loadMorphology(path string) ([]int, []morph.Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	records, err := swc.Parse(f)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	canonical, err := swc.Canonicalize(records)
	if err != nil {
		return nil, nil, fmt.Errorf("canonicalize %s: %w", path, err)
	}
	parentIndex, err := swc.ParentIndex(canonical)
	if err != nil {
		return nil, nil, err
	}
	points := make([]morph.Point, len(canonical))
	for i, r := range canonical {
		points[i] = morph.Point{X: r.X, Y: r.Y, Z: r.Z, Radius: r.Radius}
	}
	return parentIndex, points, nil
}

// NewNetwork builds the ring network from configuration. Every cell shares
// one morphology, loaded from cfg.Morphology when set. Stimulated cells
// receive a constant soma current for the whole run.
func NewNetwork(netCfg config.NetworkConfig) (*Network, error) {
	parentIndex, points := defaultMorphology()
	if netCfg.Morphology != "" {
		var err error
		parentIndex, points, err = loadMorphology(netCfg.Morphology)
		if err != nil {
			return nil, fmt.Errorf("load morphology: %w", err)
		}
	}

	tree, err := morph.NewTree(parentIndex)
	if err != nil {
		return nil, err
	}

	n := &Network{
		cfg: netCfg,
		desc: backend.CellDescription{
			ParentIndex: parentIndex,
			Points:      points,
		},
		comps: tree.NumBranches(),
	}
	return n, nil
}

// Describe returns the cell description for a gid, adding the stimulus for
// driven cells. The stimulus window is open-ended; the run's end bounds it.
func (n *Network) Describe(tfinal float64) func(gid int) backend.CellDescription {
	return func(gid int) backend.CellDescription {
		desc := n.desc
		if gid < n.cfg.StimCells {
			desc.Stimuli = []backend.Stimulus{{
				From:        0,
				Until:       tfinal,
				Amplitude:   n.cfg.StimAmplitude,
				Compartment: 0,
			}}
		}
		return desc
	}
}

// Gids returns all cell gids, 0..Cells-1.
func (n *Network) Gids() []int {
	gids := make([]int, n.cfg.Cells)
	for i := range gids {
		gids[i] = i
	}
	return gids
}

// Targets returns the postsynaptic events triggered by one spike.
func (n *Network) Targets(sp cell.Spike) []cell.PostsynapticEvent {
	events := make([]cell.PostsynapticEvent, 0, n.cfg.FanOut)
	for k := 1; k <= n.cfg.FanOut; k++ {
		target := (sp.Source.Gid + k) % n.cfg.Cells
		events = append(events, cell.PostsynapticEvent{
			Target: cell.Member{Gid: target, Index: 0},
			Time:   sp.Time + n.cfg.Delay,
			Weight: n.cfg.Weight,
		})
	}
	return events
}

// cell.Recipe implementation.

func (n *Network) NumCells() int      { return n.cfg.Cells }
func (n *Network) NumProbes(int) int  { return n.comps }
func (n *Network) NumSources(int) int { return 1 }
func (n *Network) NumTargets(int) int { return n.comps }
