package retry

// Opt-in retry for node calls: exponential backoff capped by MaxDelay, full jitter on every wait
// By default only HTTP 429/5xx from the JSON-RPC transport and provider rate-limit errors are retried
// MaxRetries 0 means a single attempt

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
)

const defaultBaseDelay = 300 * time.Millisecond

type Options struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// Retryable overrides IsRetryable.
	Retryable func(error) bool
	// OnRetry is called before each wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// limitExceededCode is returned by hosted providers (Infura) when the project is over its rate.
const limitExceededCode = -32005

var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return retryableStatus[httpErr.StatusCode]
	}
	var rpcErr rpc.Error
	return errors.As(err, &rpcErr) && rpcErr.ErrorCode() == limitExceededCode
}

// FullJitterSleep picks a delay in [0, min(base*2^attempt, max)].
func FullJitterSleep(attempt int, baseDelay, maxDelay time.Duration) time.Duration {
	if baseDelay <= 0 {
		return 0
	}
	ceiling := baseDelay << max(attempt, 0)
	if maxDelay > 0 && (ceiling > maxDelay || ceiling <= 0) {
		ceiling = maxDelay
	}
	if ceiling <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(ceiling) + 1))
}

// Do runs fn until it succeeds, fails with a non-retryable error or runs out of attempts.
// The last error is returned as is.
func Do(ctx context.Context, opts Options, fn func() error) error {
	retryable := opts.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn()
		if err == nil || attempt >= opts.MaxRetries || !retryable(err) {
			return err
		}

		delay := FullJitterSleep(attempt, baseDelay, opts.MaxDelay)
		if opts.OnRetry != nil {
			opts.OnRetry(attempt+1, delay, err)
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
