package sampling

// ProbeID identifies one probe: a cell by global id and the probe's index
// on that cell.
type ProbeID struct {
	Gid   int
	Index int
}

// Record is one sampled observation.
type Record struct {
	Time  float64
	Value float64
}

// Sampler receives sampled records for one probe. The tag is caller-defined
// and opaque to this package.
type Sampler func(id ProbeID, tag int, records []Record)

// Association couples a schedule with a callback and the probes it covers.
type Association struct {
	Schedule Schedule
	Sampler  Sampler
	ProbeIDs []ProbeID
}

// Handle names one registered association.
type Handle int

// Registry holds live sampler associations keyed by handle. Iteration order
// is insertion order and is stable for one pass.
type Registry struct {
	order  []Handle
	assocs map[Handle]*Association
}

func NewRegistry() *Registry {
	return &Registry{assocs: make(map[Handle]*Association)}
}

// Add registers an association under the given handle. Associations with an
// empty probe set are silently ignored, as are reused handles.
func (r *Registry) Add(h Handle, a Association) {
	if len(a.ProbeIDs) == 0 {
		return
	}
	if _, exists := r.assocs[h]; exists {
		return
	}
	r.assocs[h] = &a
	r.order = append(r.order, h)
}

// Remove deletes one association. Unknown handles are a no-op.
func (r *Registry) Remove(h Handle) {
	if _, ok := r.assocs[h]; !ok {
		return
	}
	delete(r.assocs, h)
	for i, o := range r.order {
		if o == h {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Clear removes all associations.
func (r *Registry) Clear() {
	r.order = r.order[:0]
	r.assocs = make(map[Handle]*Association)
}

// Len reports the number of live associations.
func (r *Registry) Len() int { return len(r.order) }

// Each calls fn for every live association in insertion order.
func (r *Registry) Each(fn func(Handle, *Association)) {
	for _, h := range r.order {
		if a, ok := r.assocs[h]; ok {
			fn(h, a)
		}
	}
}

// ResetSchedules rewinds every registered schedule, for reuse across
// simulation epochs.
func (r *Registry) ResetSchedules() {
	for _, a := range r.assocs {
		a.Schedule.Reset()
	}
}
