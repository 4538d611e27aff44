package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nvandessel/cablesim/internal/config"
	"github.com/nvandessel/cablesim/internal/logging"
	"github.com/nvandessel/cablesim/internal/simulation"
	"github.com/nvandessel/cablesim/internal/trace"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation and record the results",
		Long: `Run a network simulation from the active configuration.

Spikes and voltage samples are written to the trace store under the output
directory, keyed by a generated run id. Use 'cablesim stats' afterwards to
inspect them.

Examples:
  cablesim run                          # Run with defaults
  cablesim run --tfinal 500 --cells 8   # Longer run, bigger ring
  cablesim run --morphology neuron.swc  # Build cells from an SWC file
  cablesim run --export spikes.jsonl    # Also export spikes as JSONL`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			outDir, _ := cmd.Flags().GetString("out")
			export, _ := cmd.Flags().GetString("export")
			noStore, _ := cmd.Flags().GetBool("no-store")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applyRunFlags(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			log := logging.NewLogger(cfg.Logging.Level, os.Stderr)
			var diag *logging.DiagnosticLogger
			if cfg.Logging.Level == "debug" || cfg.Logging.Level == "trace" {
				diag = logging.NewDiagnosticLogger(outDir, cfg.Logging.Level)
				defer diag.Close()
			}

			runner, err := simulation.NewRunner(cfg, log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			started := time.Now()
			result, err := runner.Run(ctx)
			if err != nil {
				return err
			}
			elapsed := time.Since(started)

			diag.Log(map[string]any{
				"event":   "run_complete",
				"epochs":  result.Epochs,
				"spikes":  len(result.Spikes),
				"elapsed": elapsed.String(),
			})

			runID := time.Now().UTC().Format("20060102T150405.000")
			if !noStore {
				store, err := trace.Open(outDir)
				if err != nil {
					return fmt.Errorf("open trace store: %w", err)
				}
				defer store.Close()

				if _, err := store.BeginRun(ctx, runID, cfg.Run.TFinal, cfg.Run.Dt, cfg.Network.Cells); err != nil {
					return err
				}
				if err := store.RecordSpikes(ctx, runID, result.Spikes); err != nil {
					return err
				}
				for probe, records := range result.Samples {
					if err := store.RecordSamples(ctx, runID, probe, records); err != nil {
						return err
					}
				}
				if export != "" {
					if err := store.ExportSpikesJSONL(ctx, runID, export); err != nil {
						return err
					}
				}
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"run_id":  runID,
					"epochs":  result.Epochs,
					"spikes":  len(result.Spikes),
					"probes":  len(result.Samples),
					"elapsed": elapsed.String(),
				})
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Run %s complete: %d spikes from %d cells over %g ms (%s)\n",
				runID, len(result.Spikes), cfg.Network.Cells, cfg.Run.TFinal, elapsed.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().String("out", ".cablesim", "Output directory for the trace store")
	cmd.Flags().String("export", "", "Also export spikes to this JSONL file")
	cmd.Flags().Bool("no-store", false, "Skip persisting results")
	cmd.Flags().Float64("tfinal", 0, "Override total simulated time (ms)")
	cmd.Flags().Float64("dt", 0, "Override integration step (ms)")
	cmd.Flags().Int("cells", 0, "Override number of cells")
	cmd.Flags().Int("fan-out", -1, "Override connection fan-out")
	cmd.Flags().String("morphology", "", "SWC morphology file used for every cell")
	cmd.Flags().String("log-level", "", "Override log level (info, debug, trace)")

	return cmd
}

// loadConfig resolves the active configuration: an explicit --config file if
// given, otherwise defaults plus ~/.cablesim/config.yaml and environment
// overrides.
func loadConfig(cmd *cobra.Command) (*config.SimConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		cfg, err := config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return config.Load()
}

func applyRunFlags(cmd *cobra.Command, cfg *config.SimConfig) {
	if v, _ := cmd.Flags().GetFloat64("tfinal"); v > 0 {
		cfg.Run.TFinal = v
	}
	if v, _ := cmd.Flags().GetFloat64("dt"); v > 0 {
		cfg.Run.Dt = v
	}
	if n, _ := cmd.Flags().GetInt("cells"); n > 0 {
		cfg.Network.Cells = n
	}
	if n, _ := cmd.Flags().GetInt("fan-out"); n >= 0 {
		cfg.Network.FanOut = n
	}
	if s, _ := cmd.Flags().GetString("morphology"); s != "" {
		cfg.Network.Morphology = s
	}
	if s, _ := cmd.Flags().GetString("log-level"); s != "" {
		cfg.Logging.Level = s
	}
}
