// Package main provides the gapfit CLI entry point.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gapfit",
	Short: "Fit sparse Gaussian approximation potentials",
	Long: `gapfit fits sparse kernel regression potentials from atomic structure
datasets and precomputed descriptor features.

A fit is described by a JSON parameter document; command-line flags
override individual document values. Passing several --n-train values
produces a learning curve: one model per training set size.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Version = Version
}
