// Package cli implements the cube command-line interface: inspecting and
// querying a dataset directory without running the server.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cube-demo/internal/cube"
	"cube-demo/internal/dataset"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var (
		datasetDir string
		output     string
	)

	rootCmd := &cobra.Command{
		Use:           "cube",
		Short:         "Query a cube dataset from the command line",
		Long:          "Load a dataset directory (cube.yaml plus CSV files) and run its queries locally.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// flag > env > default
			if !cmd.Flags().Changed("dataset") {
				if v := os.Getenv("DATASET_DIR"); v != "" {
					datasetDir = v
				}
			}
			return validateOutputFormat(output)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&datasetDir, "dataset", "d", ".", "dataset directory containing cube.yaml")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "output format: table or json")

	rootCmd.AddCommand(
		newQueryCmd(&datasetDir),
		newDimensionsCmd(&datasetDir),
		newMetricsCmd(&datasetDir),
		newQueriesCmd(&datasetDir),
		newCommandsCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func loadCube(dir string) (*cube.Hypercube, error) {
	h, err := dataset.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	return h, nil
}
