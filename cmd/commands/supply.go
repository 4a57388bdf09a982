package commands

// Command to print the collection's total supply
// One totalSupply call, useful to check the node and contract settings before a full snapshot

import (
	"context"
	"fmt"

	"holders-snapshot/internal/infra/log"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var supplyCmd = &cobra.Command{
	Use:   "supply",
	Short: "Print the total supply of the collection",
	Args:  cobra.NoArgs,
	RunE:  runSupply,
}

func runSupply(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	s, err := openSession(ctx, cmd)
	if err != nil {
		log.LogError("Failed to read total supply", zap.Error(err))
		return err
	}
	defer s.Close()

	supply, err := s.client.TotalSupply(ctx)
	if err != nil {
		log.LogError("Failed to read total supply", zap.Error(err))
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), supply)
	return nil
}
