// Package chain implements the Chain Reader: a read-only, retrying,
// rate-limited adapter over the AMM pool, the position-NFT contract, and
// the reward-token contract. Modeled on the teacher's ContractClient
// call-and-classify shape in blackhole.go, adapted to a read-only path.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/blackhole-labs/lp-reward-engine/internal/apperr"
	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"
)

// CallContracter is the subset of ethclient.Client the Client needs, so
// tests can substitute a fake without dialing a real RPC endpoint.
type CallContracter interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// RetryConfig bounds the §4.1 retry budget: ≤3 retries after the first attempt, exponential
// backoff 250ms → 2s, with jitter.
type RetryConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	OuterTimeout    time.Duration
}

// DefaultRetryConfig matches the spec's stated defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 250 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		OuterTimeout:    10 * time.Second,
	}
}

// Client is the low-level ABI-call adapter shared by the Chain Reader's
// pool, position-manager, and token calls. It owns the global QPS cap and
// per-endpoint token-buckets the spec's §5 concurrency model requires.
type Client struct {
	eth     CallContracter
	retry   RetryConfig
	global  *rate.Limiter
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewClient wires an ethclient.Client with the default retry and a global
// QPS cap. qps <= 0 disables the cap (unlimited, used in tests).
func NewClient(eth *ethclient.Client, qps float64) *Client {
	var global *rate.Limiter
	if qps > 0 {
		global = rate.NewLimiter(rate.Limit(qps), int(qps))
	}
	return &Client{
		eth:     eth,
		retry:   DefaultRetryConfig(),
		global:  global,
		buckets: make(map[string]*rate.Limiter),
	}
}

// Halve cuts the global QPS cap in half for a backpressure cooldown window,
// per §5's "token-bucket refill rate is halved" rule. No-op if uncapped.
func (c *Client) Halve() {
	if c.global == nil {
		return
	}
	c.global.SetLimit(c.global.Limit() / 2)
}

func (c *Client) bucketFor(method string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.buckets[method]; ok {
		return b
	}
	b := rate.NewLimiter(rate.Limit(10), 10)
	c.buckets[method] = b
	return b
}

func (c *Client) acquireSlot(ctx context.Context, method string) error {
	if c.global != nil {
		if err := c.global.Wait(ctx); err != nil {
			return err
		}
	}
	return c.bucketFor(method).Wait(ctx)
}

// call packs args, invokes the contract's eth_call, unpacks the result into
// out, and retries transient failures per retry. Revert-style failures are
// classified as permanent and returned unwrapped so callers can branch on
// apperr.IsPermanent.
func (c *Client) call(ctx context.Context, addr common.Address, parsed abi.ABI, method string, out interface{}, args ...interface{}) error {
	outer, cancel := context.WithTimeout(ctx, c.retry.OuterTimeout)
	defer cancel()

	if err := c.acquireSlot(outer, method); err != nil {
		return apperr.NewTransient(fmt.Sprintf("rate limiter wait for %s", method), err)
	}

	input, err := parsed.Pack(method, args...)
	if err != nil {
		return apperr.NewPermanent(apperr.ReasonValidation, fmt.Sprintf("pack %s args: %v", method, err))
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retry.InitialInterval
	bo.MaxInterval = c.retry.MaxInterval
	withRetries := backoff.WithMaxRetries(bo, c.retry.MaxRetries)
	withCtx := backoff.WithContext(withRetries, outer)

	var raw []byte
	operation := func() error {
		raw, err = c.eth.CallContract(outer, ethereum.CallMsg{To: &addr, Data: input}, nil)
		if err != nil {
			if isPermanentRevert(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}

	if err := backoff.Retry(operation, withCtx); err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return apperr.NewPermanent(apperr.ReasonNotFound, fmt.Sprintf("%s reverted: %v", method, perm.Err))
		}
		return apperr.NewTransient(fmt.Sprintf("%s call failed after retries", method), err)
	}

	if out == nil {
		return nil
	}
	return unpackInto(parsed, method, raw, out)
}

func unpackInto(parsed abi.ABI, method string, raw []byte, out interface{}) error {
	if err := parsed.UnpackIntoInterface(out, method, raw); err != nil {
		return apperr.NewTransient(fmt.Sprintf("unpack %s result", method), err)
	}
	return nil
}

func isPermanentRevert(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "execution reverted") || strings.Contains(msg, "invalid opcode")
}
