// Package chaintest provides an in-memory chain.Provider for tests.
package chaintest

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var ErrNotConfigured = errors.New("chaintest: not configured")

// Provider answers every call from its fields or hooks and records what it
// was asked. The zero value reports chain id 0 and fails calls it cannot
// answer.
type Provider struct {
	mu sync.Mutex

	ID   uint64
	Head uint64

	// Nonce is returned for NonceAt unless NonceFn is set.
	Nonce   uint64
	NonceFn func(block *big.Int) (uint64, error)

	CallFn     func(msg ethereum.CallMsg, block *big.Int) ([]byte, error)
	EstimateFn func(msg ethereum.CallMsg) (uint64, error)
	SendFn     func(tx *types.Transaction) error

	GasPrice    *big.Int
	GasPriceErr error
	TipCap      *big.Int
	TipCapErr   error
	BaseFee     *big.Int
	Latest      *types.Block
	FeeHist     *ethereum.FeeHistory
	FeeHistErr  error

	Code     map[common.Address][]byte
	Balances map[common.Address]*big.Int

	Sent        []*types.Transaction
	NonceBlocks []*big.Int
	CallCount   map[string]int
	Failures    map[string]int
}

func (p *Provider) count(method string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.CallCount == nil {
		p.CallCount = map[string]int{}
	}
	p.CallCount[method]++
	if p.Failures[method] > 0 {
		p.Failures[method]--
		return errors.New("429 Too Many Requests")
	}
	return nil
}

// Calls returns how often method was invoked.
func (p *Provider) Calls(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CallCount[method]
}

func (p *Provider) ChainID(context.Context) (*big.Int, error) {
	if err := p.count("ChainID"); err != nil {
		return nil, err
	}
	return new(big.Int).SetUint64(p.ID), nil
}

func (p *Provider) BlockNumber(context.Context) (uint64, error) {
	if err := p.count("BlockNumber"); err != nil {
		return 0, err
	}
	return p.Head, nil
}

func (p *Provider) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	if err := p.count("HeaderByNumber"); err != nil {
		return nil, err
	}
	h := &types.Header{Number: new(big.Int).SetUint64(p.Head)}
	if p.BaseFee != nil {
		h.BaseFee = new(big.Int).Set(p.BaseFee)
	}
	return h, nil
}

func (p *Provider) BlockByNumber(context.Context, *big.Int) (*types.Block, error) {
	if err := p.count("BlockByNumber"); err != nil {
		return nil, err
	}
	if p.Latest == nil {
		return nil, ErrNotConfigured
	}
	return p.Latest, nil
}

func (p *Provider) NonceAt(_ context.Context, _ common.Address, block *big.Int) (uint64, error) {
	if err := p.count("NonceAt"); err != nil {
		return 0, err
	}
	p.mu.Lock()
	p.NonceBlocks = append(p.NonceBlocks, block)
	p.mu.Unlock()
	if p.NonceFn != nil {
		return p.NonceFn(block)
	}
	return p.Nonce, nil
}

func (p *Provider) CodeAt(_ context.Context, account common.Address, _ *big.Int) ([]byte, error) {
	if err := p.count("CodeAt"); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Code[account], nil
}

func (p *Provider) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	if err := p.count("BalanceAt"); err != nil {
		return nil, err
	}
	if b, ok := p.Balances[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (p *Provider) CallContract(_ context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	if err := p.count("CallContract"); err != nil {
		return nil, err
	}
	if p.CallFn == nil {
		return nil, ErrNotConfigured
	}
	return p.CallFn(msg, block)
}

func (p *Provider) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	if err := p.count("EstimateGas"); err != nil {
		return 0, err
	}
	if p.EstimateFn == nil {
		return 0, ErrNotConfigured
	}
	return p.EstimateFn(msg)
}

func (p *Provider) SuggestGasPrice(context.Context) (*big.Int, error) {
	if err := p.count("SuggestGasPrice"); err != nil {
		return nil, err
	}
	if p.GasPriceErr != nil {
		return nil, p.GasPriceErr
	}
	if p.GasPrice == nil {
		return nil, ErrNotConfigured
	}
	return new(big.Int).Set(p.GasPrice), nil
}

func (p *Provider) SuggestGasTipCap(context.Context) (*big.Int, error) {
	if err := p.count("SuggestGasTipCap"); err != nil {
		return nil, err
	}
	if p.TipCapErr != nil {
		return nil, p.TipCapErr
	}
	if p.TipCap == nil {
		return nil, ErrNotConfigured
	}
	return new(big.Int).Set(p.TipCap), nil
}

func (p *Provider) FeeHistory(context.Context, uint64, *big.Int, []float64) (*ethereum.FeeHistory, error) {
	if err := p.count("FeeHistory"); err != nil {
		return nil, err
	}
	if p.FeeHistErr != nil {
		return nil, p.FeeHistErr
	}
	if p.FeeHist == nil {
		return nil, ErrNotConfigured
	}
	return p.FeeHist, nil
}

func (p *Provider) SendTransaction(_ context.Context, tx *types.Transaction) error {
	if err := p.count("SendTransaction"); err != nil {
		return err
	}
	if p.SendFn != nil {
		if err := p.SendFn(tx); err != nil {
			return err
		}
	}
	p.mu.Lock()
	p.Sent = append(p.Sent, tx)
	p.mu.Unlock()
	return nil
}

// SentTxs returns a copy of the transactions accepted so far.
func (p *Provider) SentTxs() []*types.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*types.Transaction(nil), p.Sent...)
}
