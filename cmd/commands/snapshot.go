package commands

// Command to take a holders snapshot of the collection
// Asks the contract for its supply, then the owner of every token, and writes address,count lines
// Optionally renders a top holders chart and posts the result to Telegram
// Any failed call aborts the run before the output file is touched

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"holders-snapshot/bots_monitor"
	"holders-snapshot/internal/features/holders"
	"holders-snapshot/internal/features/tg_charts"
	"holders-snapshot/internal/infra/config"
	"holders-snapshot/internal/infra/log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Write the owner -> token count tally of the collection",
	Long: `Enumerate token ids 0..totalSupply-1, query the owner of each one and write one
"address,count" line per distinct owner to the output file (no header, overwritten on every run).`,
	Args: cobra.NoArgs,
	RunE: runSnapshot,
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log.LogProgress("Taking snapshot of holders",
		zap.String("artifact", cfg.Ledger.ArtifactPath),
		zap.String("contract", cfg.Ledger.ContractAddress))

	s, err := connect(ctx, cfg)
	if err != nil {
		log.LogError("Snapshot aborted", zap.Error(err))
		log.Sync()
		return err
	}
	defer s.Close()

	name := s.artifact.Name("collection")
	log.LogProgress(fmt.Sprintf("Collection %s at %s on %s", name, s.client.Address().Hex(), s.network.Name),
		zap.String("network", s.network.Name),
		zap.String("contract", s.client.Address().Hex()))

	snap, err := holders.Run(ctx, s.client, holders.Options{
		Workers:    cfg.Snapshot.Workers,
		SkipBurned: cfg.Snapshot.SkipBurned,
	}, cfg.Snapshot.OutputPath, cfg.Snapshot.Sort)
	if err != nil {
		log.LogError("Snapshot aborted", zap.Error(err))
		return err
	}

	report := bots_monitor.SnapshotReport{
		Collection: name,
		Network:    s.network.Name,
		Contract:   s.client.Address().Hex(),
		Supply:     snap.Supply,
		Owners:     snap.Holdings.Len(),
		Skipped:    len(snap.Skipped),
		Top:        snap.Holdings.Top(cfg.Snapshot.ChartTop),
		CSVPath:    cfg.Snapshot.OutputPath,
		Duration:   snap.Duration,
	}

	if cfg.Snapshot.ChartPath != "" && len(report.Top) > 0 {
		title := fmt.Sprintf("%s top holders", name)
		chartPath, err := tg_charts.GenerateHoldersChart(report.Top, snap.Supply, snap.Holdings.Len(), title, cfg.Snapshot.ChartPath)
		if err != nil {
			log.LogWarn("Failed to generate holders chart", zap.Error(err))
		} else {
			report.ChartPath = chartPath
		}
	}

	if cfg.Telegram.NotificationsEnabled() {
		if err := notify(cfg.Telegram, report); err != nil {
			// the snapshot file is already written, a failed notification does not fail the run
			log.LogError("Failed to send snapshot report", zap.Error(err))
		}
	}

	log.LogSuccess(fmt.Sprintf("Stored %d %s owners in %s", snap.Holdings.Len(), name, cfg.Snapshot.OutputPath),
		zap.Uint64("supply", snap.Supply),
		zap.Int("skipped", len(snap.Skipped)),
		zap.Int64("duration_ms", snap.Duration.Milliseconds()))
	return nil
}

func notify(tg config.TelegramConfig, report bots_monitor.SnapshotReport) error {
	chatID, err := bots_monitor.ParseChatID(tg.ChatID)
	if err != nil {
		return err
	}
	bot, err := tgbotapi.NewBotAPI(tg.BotToken)
	if err != nil {
		return fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return bots_monitor.SendSnapshotReport(bot, chatID, report)
}
