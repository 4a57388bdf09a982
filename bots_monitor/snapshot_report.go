package bots_monitor

// Sends the result of a holders snapshot to a Telegram chat
// Chart as a photo with the summary as caption when there is one, plain message otherwise
// The CSV itself follows as a document

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"holders-snapshot/internal/features/holders"
	"holders-snapshot/internal/infra/apperr"
	log "holders-snapshot/internal/infra/log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Telegram rejects photo captions longer than this
const maxCaptionLength = 1024

// Sender is the part of *tgbotapi.BotAPI the report needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type SnapshotReport struct {
	Collection string
	Network    string
	Contract   string
	Supply     uint64
	Owners     int
	Skipped    int
	Top        []holders.Holding
	CSVPath    string
	ChartPath  string
	Duration   time.Duration
}

// ParseChatID parses a numeric chat id, negative for groups and channels.
func ParseChatID(chatIDStr string) (int64, error) {
	chatID, err := strconv.ParseInt(strings.TrimSpace(chatIDStr), 10, 64)
	if err != nil {
		return 0, apperr.Config("telegram chat id", fmt.Errorf("invalid chat id %q: %w", chatIDStr, err))
	}
	return chatID, nil
}

func FormatSnapshotMessage(r SnapshotReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📸 <b>%s holders snapshot</b>\n\n", html.EscapeString(r.Collection))
	fmt.Fprintf(&b, "Network: %s\n", html.EscapeString(r.Network))
	fmt.Fprintf(&b, "Contract: <code>%s</code>\n", html.EscapeString(r.Contract))
	fmt.Fprintf(&b, "Supply: <b>%d</b>\n", r.Supply)
	fmt.Fprintf(&b, "Holders: <b>%d</b>\n", r.Owners)
	if r.Skipped > 0 {
		fmt.Fprintf(&b, "Skipped tokens: %d\n", r.Skipped)
	}
	if len(r.Top) > 0 {
		b.WriteString("\n<b>Top holders</b>\n")
		for i, h := range r.Top {
			fmt.Fprintf(&b, "%d. <code>%s</code> - %d\n", i+1, html.EscapeString(h.Owner), h.Count)
		}
	}
	if r.Duration > 0 {
		fmt.Fprintf(&b, "\nTook %s", r.Duration.Round(time.Second))
	}
	return b.String()
}

// FormatSnapshotCaption is FormatSnapshotMessage cut down to fit a photo caption.
// Top holders are dropped from the tail until it fits; trimmed reports whether any were.
func FormatSnapshotCaption(r SnapshotReport) (caption string, trimmed bool) {
	caption = FormatSnapshotMessage(r)
	if utf8.RuneCountInString(caption) <= maxCaptionLength {
		return caption, false
	}

	log.LogWarn("Snapshot caption too long, trimming top holders",
		zap.Int("currentLength", utf8.RuneCountInString(caption)),
		zap.Int("maxLength", maxCaptionLength))

	short := r
	for len(short.Top) > 0 && utf8.RuneCountInString(caption) > maxCaptionLength {
		short.Top = short.Top[:len(short.Top)-1]
		caption = FormatSnapshotMessage(short)
	}
	if utf8.RuneCountInString(caption) > maxCaptionLength {
		// only a huge collection name gets here
		short.Collection = truncateRunes(short.Collection, 64)
		caption = FormatSnapshotMessage(short)
	}
	return caption, true
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}

// SendSnapshotReport posts the summary (with chart if any) and then the CSV.
// A chart whose caption had to be trimmed is followed by the full summary as text.
func SendSnapshotReport(sender Sender, chatID int64, r SnapshotReport) error {
	message := FormatSnapshotMessage(r)

	sent := false
	if r.ChartPath != "" {
		caption, trimmed := FormatSnapshotCaption(r)
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(r.ChartPath))
		photo.Caption = caption
		photo.ParseMode = tgbotapi.ModeHTML
		if _, err := sender.Send(photo); err != nil {
			log.LogWarn("Failed to send holders chart, falling back to text", zap.String("chartPath", r.ChartPath), zap.Error(err))
		} else {
			sent = !trimmed
		}
	}
	if !sent {
		msg := tgbotapi.NewMessage(chatID, message)
		msg.ParseMode = tgbotapi.ModeHTML
		if _, err := sender.Send(msg); err != nil {
			return apperr.Transport("telegram report", err)
		}
	}

	if r.CSVPath != "" {
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(r.CSVPath))
		if _, err := sender.Send(doc); err != nil {
			return apperr.Transport("telegram report", fmt.Errorf("failed to send csv: %w", err))
		}
	}

	log.LogInfo("Snapshot report sent",
		zap.Int64("chatID", chatID),
		zap.Uint64("supply", r.Supply),
		zap.Int("owners", r.Owners))
	return nil
}
