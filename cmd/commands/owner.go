package commands

// Command to print the owner of a single token

import (
	"context"
	"fmt"
	"strconv"

	"holders-snapshot/internal/infra/apperr"
	"holders-snapshot/internal/infra/log"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var ownerCmd = &cobra.Command{
	Use:   "owner <token-id>",
	Short: "Print the owner of a token",
	Args:  cobra.ExactArgs(1),
	RunE:  runOwner,
}

func runOwner(cmd *cobra.Command, args []string) error {
	tokenID, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return apperr.Config("token id", fmt.Errorf("invalid token id %q: %w", args[0], err))
	}

	ctx := context.Background()
	s, err := openSession(ctx, cmd)
	if err != nil {
		log.LogError("Failed to read owner", zap.Error(err))
		return err
	}
	defer s.Close()

	owner, err := s.client.OwnerOf(ctx, tokenID)
	if err != nil {
		log.LogError("Failed to read owner", zap.Uint64("token_id", tokenID), zap.Error(err))
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), owner.Hex())
	return nil
}
