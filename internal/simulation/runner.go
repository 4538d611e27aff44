package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/nvandessel/cablesim/internal/backend"
	"github.com/nvandessel/cablesim/internal/cell"
	"github.com/nvandessel/cablesim/internal/config"
	"github.com/nvandessel/cablesim/internal/event"
	"github.com/nvandessel/cablesim/internal/sampling"
)

// Result collects everything a run produced.
type Result struct {
	Spikes  []cell.Spike
	Samples map[sampling.ProbeID][]sampling.Record
	Epochs  int
}

// Runner wires a configured network and backend into a cell group and
// drives it to completion.
type Runner struct {
	cfg   *config.SimConfig
	net   *Network
	group *cell.Group
	epoch float64
	log   *slog.Logger
}

// NewRunner builds the network, backend and cell group for cfg. The epoch
// length is clamped to the connection delay so that events generated in one
// epoch are never due before the next one starts.
func NewRunner(cfg *config.SimConfig, log *slog.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("simulation: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}

	net, err := NewNetwork(cfg.Network)
	if err != nil {
		return nil, fmt.Errorf("simulation: building network: %w", err)
	}

	params := backend.Params{
		Capacitance:         cfg.Backend.Capacitance,
		LeakConductance:     cfg.Backend.LeakConductance,
		RestPotential:       cfg.Backend.RestPotential,
		Threshold:           cfg.Backend.Threshold,
		ResetPotential:      cfg.Backend.ResetPotential,
		SynTau:              cfg.Backend.SynTau,
		SynReversal:         cfg.Backend.SynReversal,
		CouplingConductance: cfg.Backend.CouplingConductance,
	}
	lowered := backend.NewCable(params, net.Describe(cfg.Run.TFinal))

	group, err := cell.NewGroup(net.Gids(), net, lowered, log)
	if err != nil {
		return nil, fmt.Errorf("simulation: %w", err)
	}

	switch cfg.Binning.Policy {
	case "regular":
		group.SetBinning(event.BinRegular, cfg.Binning.Interval)
	case "following":
		group.SetBinning(event.BinFollowing, cfg.Binning.Interval)
	}

	epoch := cfg.Run.Epoch
	if cfg.Network.FanOut > 0 && cfg.Network.Delay > 0 && cfg.Network.Delay < epoch {
		log.Debug("clamping epoch to connection delay",
			"epoch", epoch, "delay", cfg.Network.Delay)
		epoch = cfg.Network.Delay
	}

	return &Runner{
		cfg:   cfg,
		net:   net,
		group: group,
		epoch: epoch,
		log:   log,
	}, nil
}

// Group exposes the underlying cell group, mainly for tests.
func (r *Runner) Group() *cell.Group { return r.group }

// Run advances the group epoch by epoch until TFinal, exchanging spikes for
// synaptic events at every boundary. The context is checked between epochs.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	result := &Result{Samples: make(map[sampling.ProbeID][]sampling.Record)}

	if r.cfg.Run.SampleEvery > 0 {
		r.group.AddSampler(1,
			func(p sampling.ProbeID) bool { return p.Index == 0 }, // soma voltage
			sampling.NewRegularSchedule(r.cfg.Run.SampleEvery),
			func(id sampling.ProbeID, _ int, records []sampling.Record) {
				result.Samples[id] = append(result.Samples[id], records...)
			})
	}

	r.log.Info("starting run",
		"cells", r.cfg.Network.Cells,
		"tfinal", r.cfg.Run.TFinal,
		"dt", r.cfg.Run.Dt,
		"epoch", r.epoch)

	for t := 0.0; t < r.cfg.Run.TFinal; {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("simulation: run canceled at t=%g: %w", t, err)
		}

		tnext := math.Min(t+r.epoch, r.cfg.Run.TFinal)
		if err := r.group.Advance(tnext, r.cfg.Run.Dt); err != nil {
			return nil, fmt.Errorf("simulation: advance to %g: %w", tnext, err)
		}
		result.Epochs++

		// Harvest this epoch's spikes and feed them back as events.
		spikes := r.group.Spikes()
		if len(spikes) > 0 {
			var events []cell.PostsynapticEvent
			for _, sp := range spikes {
				events = append(events, r.net.Targets(sp)...)
			}
			r.group.EnqueueEvents(events)
			result.Spikes = append(result.Spikes, spikes...)
			r.group.ClearSpikes()

			r.log.Debug("epoch complete",
				"t", tnext, "spikes", len(spikes), "events", len(events))
		}

		t = tnext
	}

	r.log.Info("run complete",
		"epochs", result.Epochs, "spikes", len(result.Spikes))
	return result, nil
}

// Reset restores the runner for another run with the same configuration.
func (r *Runner) Reset() {
	r.group.Reset()
	r.group.RemoveAllSamplers()
}
