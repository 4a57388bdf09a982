package commands

// Shared startup for commands that talk to the collection contract
// Loads configuration, sets up logging, resolves the contract handle and dials the node
// Every configuration problem surfaces here, before the first remote call

import (
	"context"

	"holders-snapshot/internal/clients_api/ledger"
	"holders-snapshot/internal/infra/config"
	"holders-snapshot/internal/infra/fs"
	"holders-snapshot/internal/infra/log"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type session struct {
	cfg      *config.Config
	artifact *fs.Artifact
	network  ledger.Network
	client   *ledger.Client
}

func (s *session) Close() {
	if s.client != nil {
		s.client.Close()
	}
	log.Sync()
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := log.Setup(log.Options{Dir: cfg.App.LogsDir, Console: true}); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openSession(ctx context.Context, cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return connect(ctx, cfg)
}

// connect loads the artifact, resolves the contract and dials the node. Logging must already be set up.
func connect(ctx context.Context, cfg *config.Config) (*session, error) {
	var err error
	s := &session{cfg: cfg, network: ledger.ResolveNetwork(cfg.Ledger.Mainnet)}
	fail := func(err error) (*session, error) {
		s.Close()
		return nil, err
	}

	s.artifact, err = fs.LoadContractArtifact(cfg.Ledger.ArtifactPath)
	if err != nil {
		return fail(err)
	}

	address := common.HexToAddress(cfg.Ledger.ContractAddress)
	if cfg.Ledger.AddressFromArtifact() {
		address, err = s.artifact.AddressFor(s.network.ChainID)
		if err != nil {
			return fail(err)
		}
	}
	contract, err := ledger.NewContract(address, s.artifact.ABI)
	if err != nil {
		return fail(err)
	}

	endpoint, err := ledger.Endpoint(s.network, cfg.Ledger.RPCURL, cfg.Ledger.InfuraPID)
	if err != nil {
		return fail(err)
	}

	s.client, err = ledger.Dial(ctx, endpoint, contract,
		ledger.WithRateLimit(cfg.Ledger.RateLimit),
		ledger.WithRetry(cfg.Ledger.MaxRetries),
		ledger.WithTimeout(cfg.Ledger.Timeout()),
		ledger.WithBlockNumber(cfg.Ledger.BlockNumber),
	)
	if err != nil {
		return fail(err)
	}

	log.LogInfo("Connected to node",
		zap.String("network", s.network.Name),
		zap.String("contract", address.Hex()),
		zap.Uint64("block", cfg.Ledger.BlockNumber))
	return s, nil
}
