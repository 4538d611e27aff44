// Package event provides time-ordered event queues and delivery-time
// binning for the cell-group engine.
package event

import "math"

// BinKind selects an event time binning policy.
type BinKind int

const (
	// BinNone delivers events at their exact time.
	BinNone BinKind = iota
	// BinRegular rounds delivery times down to a regular grid of the
	// binner's interval.
	BinRegular
	// BinFollowing lets an event share the bin of the previous event for
	// the same target when they fall within one interval of each other.
	BinFollowing
)

func (k BinKind) String() string {
	switch k {
	case BinNone:
		return "none"
	case BinRegular:
		return "regular"
	case BinFollowing:
		return "following"
	}
	return "unknown"
}

// Binner maps event delivery times to binned times. Binned times never fall
// below the floor passed to Bin, so a binned event cannot be scheduled
// before the integrator's current progress point.
type Binner struct {
	kind     BinKind
	interval float64
	lastBin  map[int]float64
}

// NewBinner returns a binner with the given policy and bin interval. The
// interval is ignored by BinNone.
func NewBinner(kind BinKind, interval float64) *Binner {
	return &Binner{
		kind:     kind,
		interval: interval,
		lastBin:  make(map[int]float64),
	}
}

// Bin maps the delivery time t of an event for the given target to its
// binned time, clamped to be no earlier than floor.
func (b *Binner) Bin(target int, t, floor float64) float64 {
	switch b.kind {
	case BinRegular:
		if b.interval > 0 {
			t = math.Floor(t/b.interval) * b.interval
		}
	case BinFollowing:
		if last, ok := b.lastBin[target]; ok && t-last < b.interval {
			t = last
		} else {
			b.lastBin[target] = t
		}
	}
	return math.Max(t, floor)
}

// Reset forgets all per-target binning state.
func (b *Binner) Reset() {
	b.lastBin = make(map[int]float64)
}

// ResetTarget forgets the binning state of a single target.
func (b *Binner) ResetTarget(target int) {
	delete(b.lastBin, target)
}
