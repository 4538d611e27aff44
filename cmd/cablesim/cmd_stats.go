package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/nvandessel/cablesim/internal/trace"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"
)

type cellStats struct {
	Gid     int     `json:"gid"`
	Spikes  int     `json:"spikes"`
	Rate    float64 `json:"rate_hz"`
	MeanISI float64 `json:"mean_isi_ms"`
	StdISI  float64 `json:"std_isi_ms"`
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats [run-id]",
		Short: "Show spike statistics for a recorded run",
		Long: `Display per-cell spike statistics for a recorded run.

Shows spike counts, firing rates and inter-spike interval statistics.
Without a run id the most recent run is used.

Examples:
  cablesim stats                    # Most recent run
  cablesim stats 20260823T101500.000
  cablesim stats --dir /tmp/traces`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			dir, _ := cmd.Flags().GetString("dir")

			store, err := trace.Open(dir)
			if err != nil {
				return fmt.Errorf("open trace store: %w", err)
			}
			defer store.Close()

			ctx := context.Background()
			info, err := resolveRun(ctx, store, args)
			if err != nil {
				return err
			}

			spikes, err := store.Spikes(ctx, info.ID)
			if err != nil {
				return fmt.Errorf("load spikes: %w", err)
			}

			perCell := make(map[int][]float64)
			for _, sp := range spikes {
				perCell[sp.Source.Gid] = append(perCell[sp.Source.Gid], sp.Time)
			}

			gids := make([]int, 0, len(perCell))
			for gid := range perCell {
				gids = append(gids, gid)
			}
			sort.Ints(gids)

			rows := make([]cellStats, 0, len(gids))
			for _, gid := range gids {
				times := perCell[gid]
				sort.Float64s(times)
				row := cellStats{Gid: gid, Spikes: len(times)}
				if info.TFinal > 0 {
					// Times are ms, rates reported in Hz.
					row.Rate = float64(len(times)) / info.TFinal * 1000
				}
				if len(times) > 1 {
					isi := make([]float64, len(times)-1)
					for i := 1; i < len(times); i++ {
						isi[i-1] = times[i] - times[i-1]
					}
					row.MeanISI = stat.Mean(isi, nil)
					row.StdISI = stat.StdDev(isi, nil)
				}
				rows = append(rows, row)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"run_id": info.ID,
					"tfinal": info.TFinal,
					"cells":  info.Cells,
					"spikes": len(spikes),
					"stats":  rows,
				})
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Run %s: %d spikes over %g ms\n\n", info.ID, len(spikes), info.TFinal)
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No spikes recorded.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-6s %-8s %-10s %-12s %-12s\n", "GID", "SPIKES", "RATE(Hz)", "MEAN ISI", "STD ISI")
			for _, row := range rows {
				fmt.Fprintf(cmd.OutOrStdout(), "%-6d %-8d %-10.2f %-12.3f %-12.3f\n",
					row.Gid, row.Spikes, row.Rate, row.MeanISI, row.StdISI)
			}
			return nil
		},
	}

	cmd.Flags().String("dir", ".cablesim", "Trace store directory")

	return cmd
}

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			dir, _ := cmd.Flags().GetString("dir")

			store, err := trace.Open(dir)
			if err != nil {
				return fmt.Errorf("open trace store: %w", err)
			}
			defer store.Close()

			runs, err := store.Runs(context.Background())
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No recorded runs.")
				return nil
			}
			for _, r := range runs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  cells=%d tfinal=%g dt=%g  (%s)\n",
					r.ID, r.Cells, r.TFinal, r.Dt, r.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}

	cmd.Flags().String("dir", ".cablesim", "Trace store directory")

	return cmd
}

// resolveRun picks the run named on the command line, or the most recent one.
func resolveRun(ctx context.Context, store *trace.Store, args []string) (trace.RunInfo, error) {
	runs, err := store.Runs(ctx)
	if err != nil {
		return trace.RunInfo{}, err
	}
	if len(runs) == 0 {
		return trace.RunInfo{}, fmt.Errorf("no recorded runs; use 'cablesim run' first")
	}
	if len(args) == 0 {
		return runs[0], nil
	}
	for _, r := range runs {
		if r.ID == args[0] {
			return r, nil
		}
	}
	return trace.RunInfo{}, fmt.Errorf("unknown run id %q", args[0])
}
