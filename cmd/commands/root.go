package commands

// Root command for Cobra CLI
// Registers the configuration flags shared by every subcommand
// Registers all subcommands (snapshot, supply, owner)

import (
	"holders-snapshot/internal/infra/config"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "holders-snapshot",
	Short: "Holders Snapshot - owner tally of an ERC-721 collection",
	Long: `Holders Snapshot enumerates every minted token of an ERC-721 collection through an Ethereum node
and writes one "address,count" line per owner, ready for whitelist and merkle tree tooling.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(supplyCmd)
	rootCmd.AddCommand(ownerCmd)
}
