// Command stilllift runs the Still Lift narration service and its
// maintenance tools.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stilllift/pkg/version"
)

const defaultConfigPath = "configs/stilllift.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "stilllift",
		Short:         "Mood-based micro-wellness narration service",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCmd(),
		newPickCmd(),
		newCandidatesCmd(),
		newValidateCmd(),
		newInitConfigCmd(),
	)
	return root
}
