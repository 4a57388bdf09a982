package holders

// Walks token ids 0..supply-1 and feeds every owner to a Recorder
// Serial by default: one ownerOf round trip at a time, ids in increasing order
// With Workers > 1 the calls run on a bounded pool one window of ids at a time,
// owners are still recorded in id order once every call of the window is back

import (
	"context"
	"fmt"

	"holders-snapshot/internal/infra/apperr"
	"holders-snapshot/internal/infra/log"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ids in flight per worker, bounds parallel memory whatever totalSupply claims
const windowPerWorker = 256

// Ledger is the read side of the collection contract.
type Ledger interface {
	TotalSupply(ctx context.Context) (uint64, error)
	OwnerOf(ctx context.Context, tokenID uint64) (common.Address, error)
}

type Recorder interface {
	Record(owner string)
}

type Options struct {
	// Workers bounds concurrent ownerOf calls, 1 keeps the run serial.
	Workers int
	// SkipBurned continues past tokens whose ownerOf reverts instead of aborting.
	SkipBurned bool
}

type Result struct {
	Supply  uint64
	Skipped []uint64
}

type Enumerator struct {
	ledger Ledger
	opts   Options
}

func NewEnumerator(ledger Ledger, opts Options) *Enumerator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Enumerator{ledger: ledger, opts: opts}
}

// Run records the owner of every minted token.
// The first failed call aborts the run, nothing recorded before it is meant to be written out.
func (e *Enumerator) Run(ctx context.Context, rec Recorder) (*Result, error) {
	supply, err := e.ledger.TotalSupply(ctx)
	if err != nil {
		return nil, err
	}
	log.LogProgress(fmt.Sprintf("Looping through supply (%d)", supply), zap.Uint64("supply", supply))

	res := &Result{Supply: supply}
	if e.opts.Workers == 1 || supply < 2 {
		err = e.runSerial(ctx, supply, rec, res)
	} else {
		err = e.runParallel(ctx, supply, rec, res)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (e *Enumerator) runSerial(ctx context.Context, supply uint64, rec Recorder, res *Result) error {
	for id := uint64(0); id < supply; id++ {
		owner, err := e.ledger.OwnerOf(ctx, id)
		if err != nil {
			if e.skippable(err) {
				e.skip(id, err, res)
				continue
			}
			return fmt.Errorf("token %d: %w", id, err)
		}
		e.record(id, owner, rec)
	}
	return nil
}

func (e *Enumerator) runParallel(ctx context.Context, supply uint64, rec Recorder, res *Result) error {
	window := uint64(e.opts.Workers) * windowPerWorker
	owners := make([]common.Address, min(window, supply))
	failures := make([]error, len(owners))

	for start := uint64(0); start < supply; start += window {
		end := min(start+window, supply)
		clear(failures)
		if err := e.fetchWindow(ctx, start, end, owners, failures); err != nil {
			return err
		}
		for id := start; id < end; id++ {
			if failures[id-start] != nil {
				e.skip(id, failures[id-start], res)
				continue
			}
			e.record(id, owners[id-start], rec)
		}
	}
	return nil
}

// fetchWindow asks for the owners of ids [start, end), slot i holds id start+i.
func (e *Enumerator) fetchWindow(ctx context.Context, start, end uint64, owners []common.Address, failures []error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)

	for id := start; id < end; id++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			owner, err := e.ledger.OwnerOf(gctx, id)
			if err != nil {
				if e.skippable(err) {
					failures[id-start] = err
					return nil
				}
				return fmt.Errorf("token %d: %w", id, err)
			}
			owners[id-start] = owner
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return apperr.Transport("enumerate owners", err)
	}
	return nil
}

// skippable: only a contract-level rejection of a single token, never a node or config failure.
func (e *Enumerator) skippable(err error) bool {
	return e.opts.SkipBurned && apperr.Is(err, apperr.KindExecution)
}

func (e *Enumerator) record(id uint64, owner common.Address, rec Recorder) {
	rec.Record(owner.Hex())
	log.LogProgress(fmt.Sprintf("Found token %d with owner %s", id, owner.Hex()),
		zap.Uint64("token_id", id), zap.String("owner", owner.Hex()))
}

func (e *Enumerator) skip(id uint64, err error, res *Result) {
	res.Skipped = append(res.Skipped, id)
	log.LogWarn("Skipping token without owner", zap.Uint64("token_id", id), zap.Error(err))
}
