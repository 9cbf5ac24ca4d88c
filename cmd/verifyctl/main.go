// Command verifyctl plays, scores and submits games against a verification
// server from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const programName = "verifyctl"

var globalFlags = struct {
	algo    string
	version string
}{}

func main() {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Play, score and submit verifiable game runs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().
		StringVar(&globalFlags.algo, "algo", "", "hash chain algorithm (sha256, keccak256, blake2b-256)")
	rootCmd.PersistentFlags().
		StringVar(&globalFlags.version, "game-version", "1.0.0", "game version folded into the chain")

	rootCmd.AddCommand(simulateCommand())
	rootCmd.AddCommand(scoreCommand())
	rootCmd.AddCommand(submitCommand())
	rootCmd.AddCommand(seedCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}
