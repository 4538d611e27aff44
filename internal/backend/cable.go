// Package backend provides the cable numerical backend: a lowered state
// that discretizes each cell into one compartment per morphology branch and
// integrates the coupled leaky-cable equations with exponential Euler.
package backend

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/nvandessel/cablesim/internal/cell"
	"github.com/nvandessel/cablesim/internal/event"
	"github.com/nvandessel/cablesim/internal/morph"
	"github.com/nvandessel/cablesim/internal/sampling"
)

// Params holds the electrical constants shared by all cells of a backend
// instance. Voltages are mV, times ms, conductances and capacitances in
// arbitrary consistent units.
type Params struct {
	Capacitance         float64
	LeakConductance     float64
	RestPotential       float64
	Threshold           float64
	ResetPotential      float64
	SynTau              float64
	SynReversal         float64
	CouplingConductance float64
}

// DefaultParams returns a parameter set that produces regular spiking under
// modest stimulus current.
func DefaultParams() Params {
	return Params{
		Capacitance:         1.0,
		LeakConductance:     0.1,
		RestPotential:       -65,
		Threshold:           -50,
		ResetPotential:      -70,
		SynTau:              2.0,
		SynReversal:         0,
		CouplingConductance: 0.5,
	}
}

// Stimulus injects a constant current into one compartment over a time
// window.
type Stimulus struct {
	From, Until float64
	Amplitude   float64
	Compartment int
}

// CellDescription is the morphology and stimulation of one cell. Points are
// optional; when present they must cover every morphology node and are used
// to scale inter-compartment coupling by branch length.
type CellDescription struct {
	ParentIndex []int
	Points      []morph.Point
	Stimuli     []Stimulus
}

// synEvent is a synaptic weight due on a compartment at a given time.
type synEvent struct {
	time   float64
	cell   int
	comp   int
	weight float64
}

func (e synEvent) EventTime() float64 { return e.time }

// cableCell is the per-cell integrated state.
type cableCell struct {
	tree    *morph.Tree
	couple  []float64 // conductance to parent compartment, index 0 unused
	v       []float64
	gsyn    []float64
	stimuli []Stimulus
	time    float64
}

// Cable implements cell.Lowered. All cells step in lockstep, so the state
// is synchronized at every step boundary.
type Cable struct {
	params   Params
	describe func(gid int) CellDescription

	cells      []*cableCell
	crossings  []cell.Crossing
	events     event.Queue[synEvent]
	tfinal, dt float64
}

// NewCable returns a backend that builds each cell from describe(gid).
func NewCable(params Params, describe func(gid int) CellDescription) *Cable {
	return &Cable{params: params, describe: describe}
}

// Initialize builds the compartmental state for the given cells. Each cell
// exposes one synaptic target and one voltage probe per compartment, and a
// single spike source at the soma.
func (c *Cable) Initialize(gids []int, rec cell.Recipe) ([]cell.TargetHandle, map[sampling.ProbeID]cell.ProbeInfo, error) {
	c.cells = make([]*cableCell, len(gids))
	var handles []cell.TargetHandle
	probes := make(map[sampling.ProbeID]cell.ProbeInfo)

	for i, gid := range gids {
		cc, err := c.buildCell(c.describe(gid))
		if err != nil {
			return nil, nil, fmt.Errorf("backend: cell %d: %w", gid, err)
		}
		c.cells[i] = cc

		n := cc.tree.NumBranches()
		if want := rec.NumTargets(gid); want != n {
			return nil, nil, fmt.Errorf("backend: cell %d: recipe expects %d targets, morphology has %d compartments", gid, want, n)
		}
		if want := rec.NumProbes(gid); want != n {
			return nil, nil, fmt.Errorf("backend: cell %d: recipe expects %d probes, morphology has %d compartments", gid, want, n)
		}
		// Crossings identify cells by group position, which is only valid
		// with exactly one spike source per cell.
		if want := rec.NumSources(gid); want != 1 {
			return nil, nil, fmt.Errorf("backend: cell %d: recipe expects %d spike sources, the soma provides 1", gid, want)
		}
		for comp := 0; comp < n; comp++ {
			handles = append(handles, cell.TargetHandle{Cell: i, Index: comp})
			probes[sampling.ProbeID{Gid: gid, Index: comp}] = cell.ProbeInfo{
				Handle: cell.ProbeHandle{Cell: i, Index: comp},
				Tag:    comp,
			}
		}
	}
	return handles, probes, nil
}

// buildCell balances the morphology and sets up one compartment per branch.
func (c *Cable) buildCell(desc CellDescription) (*cableCell, error) {
	tree, err := morph.NewTree(desc.ParentIndex)
	if err != nil {
		return nil, err
	}
	balanced, perm, err := tree.Balance()
	if err != nil {
		return nil, err
	}

	n := balanced.NumBranches()
	cc := &cableCell{
		tree:    balanced,
		couple:  make([]float64, n),
		v:       make([]float64, n),
		gsyn:    make([]float64, n),
		stimuli: desc.Stimuli,
	}

	// Coupling to the parent compartment, attenuated by branch length when
	// geometry is available.
	lengths := make([]float64, n)
	if desc.Points != nil {
		emb, err := morph.NewEmbedding(tree, desc.Points)
		if err != nil {
			return nil, err
		}
		for b := 0; b < n; b++ {
			l, err := emb.BranchLength(perm[b])
			if err != nil {
				return nil, err
			}
			lengths[b] = l
		}
	}
	for b := 1; b < n; b++ {
		g := c.params.CouplingConductance
		if lengths[b] > 0 {
			g /= lengths[b]
		}
		cc.couple[b] = g
	}

	for b := range cc.v {
		cc.v[b] = c.params.RestPotential
	}

	for _, s := range desc.Stimuli {
		if s.Compartment < 0 || s.Compartment >= n {
			return nil, fmt.Errorf("stimulus compartment %d out of range [0,%d)", s.Compartment, n)
		}
	}
	return cc, nil
}

func (c *Cable) Reset() {
	for _, cc := range c.cells {
		for b := range cc.v {
			cc.v[b] = c.params.RestPotential
			cc.gsyn[b] = 0
		}
		cc.time = 0
	}
	c.crossings = nil
	c.events.Clear()
	c.tfinal, c.dt = 0, 0
}

func (c *Cable) MinTime() float64 {
	min := math.Inf(1)
	for _, cc := range c.cells {
		if cc.time < min {
			min = cc.time
		}
	}
	if math.IsInf(min, 1) {
		return 0
	}
	return min
}

func (c *Cable) MaxTime() float64 {
	max := math.Inf(-1)
	for _, cc := range c.cells {
		if cc.time > max {
			max = cc.time
		}
	}
	if math.IsInf(max, -1) {
		return 0
	}
	return max
}

func (c *Cable) Time(idx int) float64 { return c.cells[idx].time }

func (c *Cable) StateSynchronized() bool {
	for _, cc := range c.cells {
		if cc.time != c.cells[0].time {
			return false
		}
	}
	return true
}

func (c *Cable) SetupIntegration(tfinal, dt float64) {
	c.tfinal, c.dt = tfinal, dt
}

func (c *Cable) IntegrationComplete() bool {
	for _, cc := range c.cells {
		if cc.time < c.tfinal {
			return false
		}
	}
	return true
}

func (c *Cable) AddEvent(t float64, h cell.TargetHandle, weight float64) {
	c.events.Push(synEvent{time: t, cell: h.Cell, comp: h.Index, weight: weight})
}

func (c *Cable) Probe(h cell.ProbeHandle) float64 {
	return c.cells[h.Cell].v[h.Index]
}

func (c *Cable) Crossings() []cell.Crossing { return c.crossings }
func (c *Cable) ClearCrossings()            { c.crossings = nil }

// IsPhysicalSolution bounds the membrane potential to a plausible band.
func (c *Cable) IsPhysicalSolution() bool {
	for _, cc := range c.cells {
		if floats.Norm(cc.v, math.Inf(1)) > 1000 {
			return false
		}
	}
	return true
}

// StepIntegration advances every cell by one dt, delivering due synaptic
// events first.
func (c *Cable) StepIntegration() {
	t := c.MinTime()
	tNext := math.Min(t+c.dt, c.tfinal)

	for {
		ev, ok := c.events.PopIfBefore(tNext)
		if !ok {
			break
		}
		c.cells[ev.cell].gsyn[ev.comp] += ev.weight
	}

	for idx, cc := range c.cells {
		c.stepCell(idx, cc, t, tNext)
	}
}

func (c *Cable) stepCell(idx int, cc *cableCell, t, tNext float64) {
	dt := tNext - t
	p := c.params
	n := len(cc.v)

	vOld := append([]float64(nil), cc.v...)
	for b := 0; b < n; b++ {
		gtot := p.LeakConductance + cc.gsyn[b]
		drive := p.LeakConductance*p.RestPotential + cc.gsyn[b]*p.SynReversal

		if b != 0 {
			parent, _ := cc.tree.Parent(b)
			gtot += cc.couple[b]
			drive += cc.couple[b] * vOld[parent]
		}
		children, _ := cc.tree.Children(b)
		for _, ch := range children {
			gtot += cc.couple[ch]
			drive += cc.couple[ch] * vOld[ch]
		}
		for _, s := range cc.stimuli {
			if s.Compartment == b && t >= s.From && t < s.Until {
				drive += s.Amplitude
			}
		}

		veq := drive / gtot
		cc.v[b] = veq + (vOld[b]-veq)*math.Exp(-dt*gtot/p.Capacitance)
	}

	// Soma threshold crossing: record, then reset like an integrate-and-fire
	// soma. One spike source per cell, so the local source index is the
	// cell's position in the group.
	if vOld[0] < p.Threshold && cc.v[0] >= p.Threshold {
		frac := (p.Threshold - vOld[0]) / (cc.v[0] - vOld[0])
		c.crossings = append(c.crossings, cell.Crossing{Index: idx, Time: t + frac*dt})
		cc.v[0] = p.ResetPotential
	}

	floats.Scale(math.Exp(-dt/p.SynTau), cc.gsyn)
	cc.time = tNext
}
