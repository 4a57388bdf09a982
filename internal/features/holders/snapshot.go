package holders

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"holders-snapshot/internal/infra/apperr"
	"holders-snapshot/internal/infra/fs"
	"holders-snapshot/internal/infra/log"

	"go.uber.org/zap"
)

// Snapshot is the outcome of a complete enumeration.
type Snapshot struct {
	Supply   uint64
	Holdings *Holdings
	Skipped  []uint64
	Duration time.Duration
}

// TakeSnapshot enumerates the whole collection into a fresh tally.
func TakeSnapshot(ctx context.Context, ledger Ledger, opts Options) (*Snapshot, error) {
	startTime := time.Now()
	holdings := NewHoldings()

	res, err := NewEnumerator(ledger, opts).Run(ctx, holdings)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Supply:   res.Supply,
		Holdings: holdings,
		Skipped:  res.Skipped,
		Duration: time.Since(startTime),
	}
	log.LogProgress(fmt.Sprintf("Found %d owners", holdings.Len()),
		zap.Int("owners", holdings.Len()),
		zap.Uint64("supply", snap.Supply),
		zap.Int("skipped", len(snap.Skipped)),
		zap.Int64("duration_ms", snap.Duration.Milliseconds()),
	)
	return snap, nil
}

// WriteCSV writes one "address,count" line per holding. No header, no quoting.
func WriteCSV(w io.Writer, entries []Holding) error {
	for _, h := range entries {
		if _, err := fmt.Fprintf(w, "%s,%d\n", h.Owner, h.Count); err != nil {
			return err
		}
	}
	return nil
}

// Flush overwrites path with the tally. A failure part way leaves a partial file behind.
func Flush(path string, holdings *Holdings, sorted bool) error {
	f, err := fs.CreateOutput(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	if err := WriteCSV(w, holdings.Entries(sorted)); err != nil {
		f.Close()
		return apperr.IO("write snapshot", err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return apperr.IO("write snapshot", err)
	}
	if err := f.Close(); err != nil {
		return apperr.IO("close snapshot", err)
	}

	log.LogInfo("Snapshot written", zap.String("path", path), zap.Int("owners", holdings.Len()))
	return nil
}

// Run takes the snapshot and writes it to output. Nothing is written unless the enumeration succeeds.
func Run(ctx context.Context, ledger Ledger, opts Options, output string, sorted bool) (*Snapshot, error) {
	snap, err := TakeSnapshot(ctx, ledger, opts)
	if err != nil {
		return nil, err
	}
	if err := Flush(output, snap.Holdings, sorted); err != nil {
		return nil, err
	}
	return snap, nil
}
