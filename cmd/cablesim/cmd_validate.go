package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nvandessel/cablesim/internal/morph"
	"github.com/nvandessel/cablesim/internal/swc"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file.swc>",
		Short: "Validate an SWC morphology file",
		Long: `Parse and canonicalize an SWC morphology file and report its shape.

The file is checked record by record, reduced to a single contiguous tree
and converted to a branch structure. Problems are reported with the line
they occur on.

Examples:
  cablesim validate neuron.swc
  cablesim validate neuron.swc --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			records, err := swc.Parse(f)
			if err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			canonical, err := swc.Canonicalize(records)
			if err != nil {
				return fmt.Errorf("canonicalize %s: %w", args[0], err)
			}
			parentIndex, err := swc.ParentIndex(canonical)
			if err != nil {
				return fmt.Errorf("build parent index: %w", err)
			}
			tree, err := morph.NewTree(parentIndex)
			if err != nil {
				return fmt.Errorf("build branch tree: %w", err)
			}

			dropped := len(records) - len(canonical)
			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"file":     args[0],
					"records":  len(records),
					"dropped":  dropped,
					"nodes":    tree.NumNodes(),
					"branches": tree.NumBranches(),
					"depth":    tree.Depth(),
				})
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "  records:  %d (%d dropped during canonicalization)\n", len(records), dropped)
			fmt.Fprintf(cmd.OutOrStdout(), "  nodes:    %d\n", tree.NumNodes())
			fmt.Fprintf(cmd.OutOrStdout(), "  branches: %d\n", tree.NumBranches())
			fmt.Fprintf(cmd.OutOrStdout(), "  depth:    %d\n", tree.Depth())
			return nil
		},
	}
}
