// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/schemaplan/core/internal/config"
	"github.com/schemaplan/core/internal/hostports"
	"github.com/schemaplan/core/pkg/ports"
)

// Version is the schemaplan version.
var Version = "development"

var rootCmd = &cobra.Command{
	Use:          "schemaplan",
	Short:        "Plan, analyze, and gate SQL schema migrations",
	SilenceUsage: true,
	Version:      Version,
}

func init() {
	config.RegisterFlags(rootCmd)
}

// crypto and clock are the only host ports the core depends on; every
// subcommand shares one instance of each.
var (
	crypto ports.CryptoPort = &hostports.SHA256Crypto{}
	clock  ports.ClockPort  = hostports.SystemClock{}
)

// Prepare registers every subcommand and returns the root command without
// executing it, for tooling that introspects the CLI's shape (e.g.
// generating a CLI definition for documentation or AI tooling).
func Prepare() *cobra.Command {
	rootCmd.AddCommand(diffCmd())
	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(rollbackCmd())
	rootCmd.AddCommand(metadataCmd())
	rootCmd.AddCommand(tagCmd())
	rootCmd.AddCommand(gateCmd())
	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return Prepare().Execute()
}
