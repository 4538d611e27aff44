// Package cell implements the cell-group engine: it owns a set of cells
// backed by one lowered (numerical) state, routes time-stamped events into
// it, schedules probe sampling and harvests threshold crossings as globally
// identified spikes.
package cell

// Member identifies an item on a cell: the cell's global id plus the item's
// index on that cell (a spike source, a synaptic target).
type Member struct {
	Gid   int
	Index int
}

// Spike is a threshold crossing attributed to a global spike source.
type Spike struct {
	Source Member
	Time   float64
}

// PostsynapticEvent is a weighted event due for delivery to a synaptic
// target at a given time.
type PostsynapticEvent struct {
	Target Member
	Time   float64
	Weight float64
}

func (e PostsynapticEvent) EventTime() float64 { return e.Time }

// Crossing is a threshold crossing as recorded by the lowered state, with a
// group-local spike source index.
type Crossing struct {
	Index int
	Time  float64
}

// TargetHandle addresses one synaptic target inside the lowered state. It
// is produced during initialization and immutable afterwards.
type TargetHandle struct {
	Cell  int
	Index int
}

// ProbeHandle addresses one probe inside the lowered state.
type ProbeHandle struct {
	Cell  int
	Index int
}

// ProbeInfo pairs a probe's lowered handle with its caller-defined tag.
type ProbeInfo struct {
	Handle ProbeHandle
	Tag    int
}

// sampleEvent schedules one pending sample against a sampler table slot.
type sampleEvent struct {
	samplerIndex int
	time         float64
}

func (e sampleEvent) EventTime() float64 { return e.time }
