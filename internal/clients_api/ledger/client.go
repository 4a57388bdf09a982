package ledger

// Read-only client for an ERC-721 contract behind an Ethereum JSON-RPC node
// Exposes totalSupply() and ownerOf(uint256), nothing is cached: every call is a round trip
// Each call passes the rate limiter, then the circuit breaker, inside the opt-in retry loop

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"holders-snapshot/internal/infra/apperr"
	"holders-snapshot/internal/infra/log"
	"holders-snapshot/internal/infra/retry"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	methodTotalSupply = "totalSupply"
	methodOwnerOf     = "ownerOf"
)

// Contract is the handle of a deployed collection: its address and interface.
type Contract struct {
	Address common.Address
	ABI     abi.ABI
}

// NewContract checks that the interface exposes both calls the snapshot makes.
func NewContract(address common.Address, parsed abi.ABI) (Contract, error) {
	for _, name := range []string{methodTotalSupply, methodOwnerOf} {
		if _, ok := parsed.Methods[name]; !ok {
			return Contract{}, apperr.Configf("contract handle", "abi has no %s method", name)
		}
	}
	return Contract{Address: address, ABI: parsed}, nil
}

type Client struct {
	contract       Contract
	bound          *bind.BoundContract
	closeFn        func()
	rateLimiter    *rate.Limiter
	circuitBreaker *gobreaker.CircuitBreaker
	retry          retry.Options
	timeout        time.Duration
	blockNumber    *big.Int
}

type Option func(*Client)

// WithRateLimit caps requests per second, burst is twice the rate. 0 disables limiting.
func WithRateLimit(perSecond int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.rateLimiter = nil
			return
		}
		c.rateLimiter = rate.NewLimiter(rate.Limit(perSecond), perSecond*2)
	}
}

// WithRetry retries rate-limited and 5xx calls up to maxRetries times.
func WithRetry(maxRetries int) Option {
	return func(c *Client) {
		c.retry.MaxRetries = maxRetries
	}
}

// WithRetryDelays overrides the backoff bounds.
func WithRetryDelays(base, max time.Duration) Option {
	return func(c *Client) {
		c.retry.BaseDelay = base
		c.retry.MaxDelay = max
	}
}

// WithTimeout bounds each call. 0 leaves it to the transport.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithBlockNumber runs every call against a fixed block. 0 means latest.
func WithBlockNumber(n uint64) Option {
	return func(c *Client) {
		if n == 0 {
			c.blockNumber = nil
			return
		}
		c.blockNumber = new(big.Int).SetUint64(n)
	}
}

// NewClient builds a client on top of any contract caller (ethclient, simulated backend, test fake).
func NewClient(caller bind.ContractCaller, contract Contract, opts ...Option) *Client {
	c := &Client{
		contract:       contract,
		bound:          bind.NewBoundContract(contract.Address, contract.ABI, caller, nil, nil),
		circuitBreaker: newCircuitBreaker(contract.Address),
		retry: retry.Options{
			BaseDelay: 300 * time.Millisecond,
			MaxDelay:  5 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dial connects to the node at rawurl.
func Dial(ctx context.Context, rawurl string, contract Contract, opts ...Option) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, rawurl)
	if err != nil {
		return nil, apperr.Transport("dial node", err)
	}
	c := NewClient(ec, contract, opts...)
	c.closeFn = ec.Close
	return c, nil
}

func (c *Client) Close() {
	if c.closeFn != nil {
		c.closeFn()
	}
}

func (c *Client) Address() common.Address {
	return c.contract.Address
}

func newCircuitBreaker(address common.Address) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ledger-" + address.Hex(),
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		// a revert is the contract answering, not the node failing
		IsSuccessful: func(err error) bool {
			return err == nil || isContractFailure(err)
		},
	})
}

// TotalSupply returns the number of minted tokens.
func (c *Client) TotalSupply(ctx context.Context) (uint64, error) {
	out, err := c.call(ctx, methodTotalSupply, nil)
	if err != nil {
		return 0, err
	}
	supply, ok := single[*big.Int](out)
	if !ok || supply == nil {
		return 0, apperr.Transport(methodTotalSupply, fmt.Errorf("unexpected result %v", out))
	}
	if supply.Sign() < 0 || !supply.IsUint64() {
		return 0, apperr.Transport(methodTotalSupply, fmt.Errorf("total supply %s out of range", supply))
	}
	return supply.Uint64(), nil
}

// OwnerOf returns the current owner of tokenID.
func (c *Client) OwnerOf(ctx context.Context, tokenID uint64) (common.Address, error) {
	id := new(big.Int).SetUint64(tokenID)
	out, err := c.call(ctx, methodOwnerOf, []zap.Field{zap.Uint64("token_id", tokenID)}, id)
	if err != nil {
		return common.Address{}, err
	}
	owner, ok := single[common.Address](out)
	if !ok {
		return common.Address{}, apperr.Transport(methodOwnerOf, fmt.Errorf("unexpected result %v for token %d", out, tokenID))
	}
	return owner, nil
}

func (c *Client) call(ctx context.Context, method string, fields []zap.Field, params ...interface{}) ([]interface{}, error) {
	requestID := log.GenerateRequestID()
	startTime := time.Now()

	if ctx.Err() != nil {
		return nil, apperr.Transport(method, fmt.Errorf("context cancelled: %w", ctx.Err()))
	}

	retryOpts := c.retry
	retryOpts.OnRetry = func(attempt int, delay time.Duration, err error) {
		log.LogWarn("Retrying node call",
			append(fields, zap.String("request_id", requestID), zap.String("method", method),
				zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))...)
	}

	var out []interface{}
	err := retry.Do(ctx, retryOpts, func() error {
		if c.rateLimiter != nil {
			if err := c.rateLimiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limiter wait failed: %w", err)
			}
		}
		_, err := c.circuitBreaker.Execute(func() (interface{}, error) {
			callCtx, cancel := c.callContext(ctx)
			defer cancel()

			out = nil
			opts := &bind.CallOpts{Context: callCtx, BlockNumber: c.blockNumber}
			return nil, c.bound.Call(opts, &out, method, params...)
		})
		return err
	})

	log.LogCall(requestID, method, time.Since(startTime).Milliseconds(), err, fields...)
	if err != nil {
		return nil, classify(method, err)
	}
	return out, nil
}

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

func single[T any](out []interface{}) (T, bool) {
	var zero T
	if len(out) != 1 {
		return zero, false
	}
	v, ok := out[0].(T)
	return v, ok
}
