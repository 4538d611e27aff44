package cell

import "github.com/nvandessel/cablesim/internal/sampling"

// Lowered is the capability interface of an external numerical backend
// holding the integrated state of the group's cells. The engine treats it
// as an opaque black box honoring these contracts:
//
//   - Cells integrate independently between synchronization points, so
//     Time(cell) may differ across cells while MinTime/MaxTime bound them.
//   - SetupIntegration opens a window; StepIntegration advances one
//     internal step; IntegrationComplete reports when the window is done,
//     at which point all cells are synchronized again.
//   - AddEvent delivery times must not precede MinTime.
type Lowered interface {
	// Initialize builds the backend state for the given cells, returning
	// one handle per synaptic target (grouped by cell, in gid order) and
	// the probe association map.
	Initialize(gids []int, rec Recipe) ([]TargetHandle, map[sampling.ProbeID]ProbeInfo, error)
	Reset()

	MinTime() float64
	MaxTime() float64
	Time(cell int) float64
	StateSynchronized() bool

	SetupIntegration(tfinal, dt float64)
	StepIntegration()
	IntegrationComplete() bool
	IsPhysicalSolution() bool

	AddEvent(t float64, h TargetHandle, weight float64)
	Probe(h ProbeHandle) float64

	Crossings() []Crossing
	ClearCrossings()
}
