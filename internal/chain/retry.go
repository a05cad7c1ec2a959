package chain

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

const (
	defaultAttempts = 3
	defaultDelay    = 200 * time.Millisecond
)

// RetryingProvider retries read calls with a short backoff. The delay only
// doubles when the node reports rate limiting. Reverts are never retried, and
// neither is SendTransaction since a resend can double-spend a nonce.
type RetryingProvider struct {
	Provider
	attempts uint
	delay    time.Duration
	onRetry  func(method string, n uint, err error)
}

type RetryOption func(*RetryingProvider)

func Attempts(n uint) RetryOption {
	return func(p *RetryingProvider) {
		if n > 0 {
			p.attempts = n
		}
	}
}

func Delay(d time.Duration) RetryOption {
	return func(p *RetryingProvider) { p.delay = d }
}

// OnRetry registers a hook invoked before each retry.
func OnRetry(fn func(method string, n uint, err error)) RetryOption {
	return func(p *RetryingProvider) { p.onRetry = fn }
}

func WithRetry(p Provider, opts ...RetryOption) *RetryingProvider {
	rp := &RetryingProvider{Provider: p, attempts: defaultAttempts, delay: defaultDelay}
	for _, o := range opts {
		o(rp)
	}
	return rp
}

// IsRateLimitError reports whether the node throttled the request: an HTTP
// 429 or a JSON-RPC "limit exceeded" (-32005) error.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == -32005 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "Too Many Requests") || strings.Contains(s, "-32005")
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !strings.Contains(err.Error(), "execution reverted")
}

func rateLimitDelay(n uint, err error, c *retry.Config) time.Duration {
	if IsRateLimitError(err) {
		return retry.BackOffDelay(n, err, c)
	}
	return retry.FixedDelay(n, err, c)
}

func (p *RetryingProvider) do(ctx context.Context, method string, fn func() error) error {
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(p.attempts),
		retry.Delay(p.delay),
		retry.DelayType(rateLimitDelay),
		retry.RetryIf(isRetryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			if p.onRetry != nil {
				p.onRetry(method, n, err)
			}
		}),
	)
}

func (p *RetryingProvider) ChainID(ctx context.Context) (id *big.Int, err error) {
	err = p.do(ctx, "eth_chainId", func() (e error) {
		id, e = p.Provider.ChainID(ctx)
		return e
	})
	return id, err
}

func (p *RetryingProvider) BlockNumber(ctx context.Context) (n uint64, err error) {
	err = p.do(ctx, "eth_blockNumber", func() (e error) {
		n, e = p.Provider.BlockNumber(ctx)
		return e
	})
	return n, err
}

func (p *RetryingProvider) HeaderByNumber(ctx context.Context, number *big.Int) (h *types.Header, err error) {
	err = p.do(ctx, "eth_getBlockByNumber", func() (e error) {
		h, e = p.Provider.HeaderByNumber(ctx, number)
		return e
	})
	return h, err
}

func (p *RetryingProvider) BlockByNumber(ctx context.Context, number *big.Int) (b *types.Block, err error) {
	err = p.do(ctx, "eth_getBlockByNumber", func() (e error) {
		b, e = p.Provider.BlockByNumber(ctx, number)
		return e
	})
	return b, err
}

func (p *RetryingProvider) NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (n uint64, err error) {
	err = p.do(ctx, "eth_getTransactionCount", func() (e error) {
		n, e = p.Provider.NonceAt(ctx, account, blockNumber)
		return e
	})
	return n, err
}

func (p *RetryingProvider) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) (code []byte, err error) {
	err = p.do(ctx, "eth_getCode", func() (e error) {
		code, e = p.Provider.CodeAt(ctx, account, blockNumber)
		return e
	})
	return code, err
}

func (p *RetryingProvider) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (bal *big.Int, err error) {
	err = p.do(ctx, "eth_getBalance", func() (e error) {
		bal, e = p.Provider.BalanceAt(ctx, account, blockNumber)
		return e
	})
	return bal, err
}

func (p *RetryingProvider) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) (ret []byte, err error) {
	err = p.do(ctx, "eth_call", func() (e error) {
		ret, e = p.Provider.CallContract(ctx, msg, blockNumber)
		return e
	})
	return ret, err
}

func (p *RetryingProvider) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (g uint64, err error) {
	err = p.do(ctx, "eth_estimateGas", func() (e error) {
		g, e = p.Provider.EstimateGas(ctx, msg)
		return e
	})
	return g, err
}

func (p *RetryingProvider) SuggestGasPrice(ctx context.Context) (price *big.Int, err error) {
	err = p.do(ctx, "eth_gasPrice", func() (e error) {
		price, e = p.Provider.SuggestGasPrice(ctx)
		return e
	})
	return price, err
}

func (p *RetryingProvider) SuggestGasTipCap(ctx context.Context) (tip *big.Int, err error) {
	err = p.do(ctx, "eth_maxPriorityFeePerGas", func() (e error) {
		tip, e = p.Provider.SuggestGasTipCap(ctx)
		return e
	})
	return tip, err
}

func (p *RetryingProvider) FeeHistory(ctx context.Context, blockCount uint64, lastBlock *big.Int, rewardPercentiles []float64) (fh *ethereum.FeeHistory, err error) {
	err = p.do(ctx, "eth_feeHistory", func() (e error) {
		fh, e = p.Provider.FeeHistory(ctx, blockCount, lastBlock, rewardPercentiles)
		return e
	})
	return fh, err
}
