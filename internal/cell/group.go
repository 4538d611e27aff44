package cell

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/nvandessel/cablesim/internal/event"
	"github.com/nvandessel/cablesim/internal/sampling"
)

// Group drives one set of cells through time. It owns its event queues,
// spike buffer and sampler registry exclusively; a Group is not safe for
// concurrent use, but independent groups may be advanced concurrently.
type Group struct {
	gids     []int
	gidIndex map[int]int

	lowered Lowered

	spikeSources []Member
	spikes       []Spike

	binner       *event.Binner
	events       event.Queue[PostsynapticEvent]
	sampleEvents event.Queue[sampleEvent]

	targetHandles   []TargetHandle
	targetDivisions []int
	probeMap        map[sampling.ProbeID]ProbeInfo
	samplers        *sampling.Registry

	log *slog.Logger
}

// NewGroup builds a group over the given cells. The recipe is consulted
// only here, to size the target handle partition and the spike source
// table; the lowered backend is initialized with the same cell set.
func NewGroup(gids []int, rec Recipe, lowered Lowered, log *slog.Logger) (*Group, error) {
	if log == nil {
		log = slog.Default()
	}
	g := &Group{
		gids:     append([]int(nil), gids...),
		gidIndex: make(map[int]int, len(gids)),
		lowered:  lowered,
		binner:   event.NewBinner(event.BinNone, 0),
		samplers: sampling.NewRegistry(),
		log:      log,
	}
	for i, gid := range g.gids {
		if _, dup := g.gidIndex[gid]; dup {
			return nil, fmt.Errorf("cell: duplicate gid %d in group", gid)
		}
		g.gidIndex[gid] = i
	}

	// Partition target handles by cell: divisions[i] is the offset of cell
	// i's first target, divisions[len] the total.
	g.targetDivisions = make([]int, len(g.gids)+1)
	for i, gid := range g.gids {
		g.targetDivisions[i+1] = g.targetDivisions[i] + rec.NumTargets(gid)
	}

	handles, probes, err := lowered.Initialize(g.gids, rec)
	if err != nil {
		return nil, fmt.Errorf("cell: initialize lowered state: %w", err)
	}
	if len(handles) != g.targetDivisions[len(g.gids)] {
		return nil, fmt.Errorf("cell: lowered produced %d target handles, recipe expects %d",
			len(handles), g.targetDivisions[len(g.gids)])
	}
	g.targetHandles = handles
	g.probeMap = probes

	for _, gid := range g.gids {
		for lid := 0; lid < rec.NumSources(gid); lid++ {
			g.spikeSources = append(g.spikeSources, Member{Gid: gid, Index: lid})
		}
	}
	return g, nil
}

// SetBinning replaces the event time binning policy. Takes effect on the
// next Advance.
func (g *Group) SetBinning(kind event.BinKind, interval float64) {
	g.binner = event.NewBinner(kind, interval)
}

// EnqueueEvents adds externally delivered events to the pending queue.
// Delivery order across calls is determined by event time only.
func (g *Group) EnqueueEvents(events []PostsynapticEvent) {
	for _, e := range events {
		g.events.Push(e)
	}
}

// Spikes returns the accumulated spikes since the last ClearSpikes.
func (g *Group) Spikes() []Spike { return g.spikes }

// ClearSpikes drains the accumulated spike buffer.
func (g *Group) ClearSpikes() { g.spikes = nil }

// SpikeSources returns the global identifier of every spike source in the
// group, in local index order.
func (g *Group) SpikeSources() []Member { return g.spikeSources }

// Reset restores the group to its initial state: accumulated spikes and
// pending events are dropped, sampler schedules rewound, binning state
// forgotten and the lowered backend reset. Registered samplers survive.
func (g *Group) Reset() {
	g.spikes = nil
	g.events.Clear()
	g.sampleEvents.Clear()
	g.samplers.ResetSchedules()
	g.binner.Reset()
	g.lowered.Reset()
}

// AddSampler registers a sampler over the probes accepted by the predicate.
// Registration is silently skipped when no probe matches.
func (g *Group) AddSampler(h sampling.Handle, accept func(sampling.ProbeID) bool, sched sampling.Schedule, fn sampling.Sampler) {
	var probes []sampling.ProbeID
	for p := range g.probeMap {
		if accept(p) {
			probes = append(probes, p)
		}
	}
	sort.Slice(probes, func(i, j int) bool {
		if probes[i].Gid != probes[j].Gid {
			return probes[i].Gid < probes[j].Gid
		}
		return probes[i].Index < probes[j].Index
	})
	g.samplers.Add(h, sampling.Association{Schedule: sched, Sampler: fn, ProbeIDs: probes})
}

// RemoveSampler deletes one sampler association.
func (g *Group) RemoveSampler(h sampling.Handle) { g.samplers.Remove(h) }

// RemoveAllSamplers deletes every sampler association.
func (g *Group) RemoveAllSamplers() { g.samplers.Clear() }

// samplerEntry is one slot of the per-advance sampler table, addressed by
// queued sample events.
type samplerEntry struct {
	handle  ProbeHandle
	tag     int
	probeID sampling.ProbeID
	fn      sampling.Sampler
}

// Advance integrates the group up to tfinal with nominal step dt. The group
// must be synchronized on entry (all cells at the same time) and is
// synchronized again on return. Pending events with delivery time at or
// after tfinal stay queued for the next call.
func (g *Group) Advance(tfinal, dt float64) error {
	if !g.lowered.StateSynchronized() {
		return fmt.Errorf("cell: advance on unsynchronized state")
	}
	tstart := g.lowered.MinTime()

	// Bin pending events and hand them to the lowered state. The floor is
	// the minimum unintegrated time, which equals MaxTime here because the
	// state is synchronized.
	evMinTime := g.lowered.MaxTime()
	for {
		ev, ok := g.events.PopIfBefore(tfinal)
		if !ok {
			break
		}
		handle, err := g.targetHandle(ev.Target)
		if err != nil {
			return err
		}
		g.lowered.AddEvent(g.binner.Bin(ev.Target.Gid, ev.Time, evMinTime), handle, ev.Weight)
	}

	g.lowered.SetupIntegration(tfinal, dt)

	// Build the sampler table for this window and queue one sample event
	// per (probe, instant).
	var samplers []samplerEntry
	var samplerErr error
	g.samplers.Each(func(_ sampling.Handle, a *sampling.Association) {
		if samplerErr != nil {
			return
		}
		ts := a.Schedule.EventsBetween(tstart, tfinal)
		if len(ts) == 0 {
			return
		}
		for _, p := range a.ProbeIDs {
			pinfo, ok := g.probeMap[p]
			if !ok {
				samplerErr = fmt.Errorf("cell: sampler references unknown probe %d.%d", p.Gid, p.Index)
				return
			}
			idx := len(samplers)
			samplers = append(samplers, samplerEntry{
				handle:  pinfo.Handle,
				tag:     pinfo.Tag,
				probeID: p,
				fn:      a.Sampler,
			})
			for _, t := range ts {
				g.sampleEvents.Push(sampleEvent{samplerIndex: idx, time: t})
			}
		}
	})
	if samplerErr != nil {
		return samplerErr
	}

	_, haveSample := g.sampleEvents.TimeIfBefore(tfinal)
	var requeue []sampleEvent
	for !g.lowered.IntegrationComplete() {
		if haveSample {
			cellMaxTime := g.lowered.MaxTime()
			requeue = requeue[:0]
			for {
				m, ok := g.sampleEvents.PopIfBefore(cellMaxTime)
				if !ok {
					break
				}
				s := samplers[m.samplerIndex]
				cellTime := g.lowered.Time(g.gidIndex[s.probeID.Gid])
				if cellTime < m.time {
					// This cell hasn't reached the sample time yet.
					requeue = append(requeue, m)
					continue
				}
				value := g.lowered.Probe(s.handle)
				s.fn(s.probeID, s.tag, []sampling.Record{{Time: cellTime, Value: value}})
			}
			for _, m := range requeue {
				g.sampleEvents.Push(m)
			}
			_, haveSample = g.sampleEvents.TimeIfBefore(tfinal)
		}

		g.lowered.StepIntegration()

		if !g.lowered.IsPhysicalSolution() {
			g.log.Warn("solution out of bounds", "t", g.lowered.MaxTime())
		}
	}

	// Every cell has reached tfinal, so instants from the final step can be
	// delivered now. The queue must be empty on return: its entries index
	// this window's sampler table, which is rebuilt on the next call.
	for {
		m, ok := g.sampleEvents.PopIfBefore(tfinal)
		if !ok {
			break
		}
		s := samplers[m.samplerIndex]
		cellTime := g.lowered.Time(g.gidIndex[s.probeID.Gid])
		value := g.lowered.Probe(s.handle)
		s.fn(s.probeID, s.tag, []sampling.Record{{Time: cellTime, Value: value}})
	}

	// Translate local threshold crossings into globally identified spikes.
	for _, c := range g.lowered.Crossings() {
		if c.Index < 0 || c.Index >= len(g.spikeSources) {
			return fmt.Errorf("cell: crossing source index %d out of range", c.Index)
		}
		g.spikes = append(g.spikes, Spike{Source: g.spikeSources[c.Index], Time: c.Time})
	}
	g.lowered.ClearCrossings()

	return nil
}

// targetHandle resolves a global target id to its lowered handle.
func (g *Group) targetHandle(id Member) (TargetHandle, error) {
	idx, ok := g.gidIndex[id.Gid]
	if !ok {
		return TargetHandle{}, fmt.Errorf("cell: event for gid %d not in group", id.Gid)
	}
	off := g.targetDivisions[idx] + id.Index
	if id.Index < 0 || off >= g.targetDivisions[idx+1] {
		return TargetHandle{}, fmt.Errorf("cell: target index %d out of range for gid %d", id.Index, id.Gid)
	}
	return g.targetHandles[off], nil
}
