// Package main is the slipup-flags binary: it serves a flag resolver behind
// the inspect API, evaluates single flags and publishes definition sets to Redis.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rafaeljc/slipup/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "slipup-flags",
		Short:         "Resolve feature flags from a remote provider with local fallbacks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd(), newEvalCmd(), newPublishCmd())
	return root
}

// loadConfig wraps config.Load so every subcommand reports errors the same way.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}
