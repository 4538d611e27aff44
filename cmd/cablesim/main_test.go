package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

// newTestRootCmd creates a root command with persistent flags for testing subcommands
func newTestRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use: "cablesim",
	}
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("config", "", "Path to a config file")
	return rootCmd
}

// isolateHome sets HOME to a temp directory to avoid picking up a real
// ~/.cablesim/config.yaml.
func isolateHome(t *testing.T, tmpDir string) {
	t.Helper()
	tmpHome := filepath.Join(tmpDir, "home")
	if err := os.MkdirAll(tmpHome, 0700); err != nil {
		t.Fatalf("Failed to create temp home: %v", err)
	}
	t.Setenv("HOME", tmpHome)
}

// writeTestSWC writes a small soma-plus-two-dendrites morphology.
func writeTestSWC(t *testing.T, dir string) string {
	t.Helper()
	swc := `# test morphology
1 1 0 0 0 3 -1
2 3 10 0 0 1 1
3 3 20 0 0 0.8 2
4 3 0 10 0 1 1
5 3 0 20 0 0.5 4
`
	path := filepath.Join(dir, "neuron.swc")
	if err := os.WriteFile(path, []byte(swc), 0644); err != nil {
		t.Fatalf("write swc fixture: %v", err)
	}
	return path
}
