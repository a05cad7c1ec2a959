package funder

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ligun0805/merkle-funder/internal/chain"
	"github.com/ligun0805/merkle-funder/internal/contracts"
	"github.com/ligun0805/merkle-funder/internal/gasprice"
)

// DefaultGasLimit is used when estimation fails and no limit is configured.
const DefaultGasLimit uint64 = 2_000_000

var (
	ErrNothingToSubmit  = errors.New("no eligible calls")
	ErrSubmissionFailed = errors.New("submission failed")
)

// Executor sends the eligible calls of a group as one tryMulticall
// transaction.
type Executor struct {
	Provider   chain.Provider
	Signer     *chain.Signer
	Factory    common.Address
	Strategies []gasprice.Strategy
	GasLimit   uint64
	Heights    chain.HeightResolver
}

// Submission describes a transaction the node accepted.
type Submission struct {
	Tx     *types.Transaction
	Nonce  uint64
	Target gasprice.Target
}

func callData(calls []FundCall) [][]byte {
	out := make([][]byte, len(calls))
	for i, c := range calls {
		out[i] = c.Data
	}
	return out
}

// EstimateGasLimit estimates multicall(calls) plus 10%, since multicall is
// slightly cheaper than the tryMulticall actually sent. It falls back to the
// configured limit, then to DefaultGasLimit. The second result says where
// the limit came from.
func (e *Executor) EstimateGasLimit(ctx context.Context, calls []FundCall) (uint64, string) {
	data, err := contracts.PackMulticall(callData(calls))
	if err == nil {
		g, err := e.Provider.EstimateGas(ctx, ethereum.CallMsg{From: e.Signer.Address(), To: &e.Factory, Data: data})
		if err == nil {
			return g * 110 / 100, "estimated"
		}
	}
	if e.GasLimit > 0 {
		return e.GasLimit, "configured"
	}
	return DefaultGasLimit, "default"
}

// ResolveGas prices a transaction carrying calls.
func (e *Executor) ResolveGas(ctx context.Context, calls []FundCall) ([]gasprice.Log, gasprice.Target) {
	limit, _ := e.EstimateGasLimit(ctx, calls)
	return gasprice.Resolve(ctx, e.Provider, e.Strategies, limit)
}

// ResolveNonce resolves seq at the height the simulation observed, mapped
// through the chain's height strategy.
func (e *Executor) ResolveNonce(ctx context.Context, seq *NonceSequencer, probed uint64) (uint64, error) {
	return seq.Resolve(ctx, func(ctx context.Context) (uint64, error) {
		heights := e.Heights
		if heights == nil {
			heights = chain.ProbedHeight{}
		}
		h, err := heights.Height(ctx, e.Provider, probed)
		if err != nil {
			return 0, err
		}
		n, err := e.Provider.NonceAt(ctx, e.Signer.Address(), new(big.Int).SetUint64(h))
		if err != nil {
			return 0, fmt.Errorf("transaction count at %d: %w", h, err)
		}
		return n, nil
	})
}

// Execute submits the simulation's eligible calls with the sequencer's
// current nonce and advances the sequencer only if the node accepted the
// transaction. The contract re-checks every call, so a recipient funded by
// someone else in the meantime is skipped on chain instead of failing the
// batch.
func (e *Executor) Execute(ctx context.Context, sim *Simulation, seq *NonceSequencer, target gasprice.Target) (*Submission, error) {
	calls := sim.Eligible()
	if len(calls) == 0 {
		return nil, ErrNothingToSubmit
	}
	nonce, err := e.ResolveNonce(ctx, seq, sim.BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve nonce: %v", ErrSubmissionFailed, err)
	}
	data, err := contracts.PackTryMulticall(callData(calls))
	if err != nil {
		return nil, fmt.Errorf("pack tryMulticall: %w", err)
	}
	signed, err := e.sign(nonce, data, target)
	if err != nil {
		return nil, err
	}
	if err := e.Provider.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSubmissionFailed, chain.FriendlyError(contracts.ErrorReason(err)))
	}
	if err := seq.Advance(); err != nil {
		return nil, err
	}
	return &Submission{Tx: signed, Nonce: nonce, Target: target}, nil
}

func (e *Executor) sign(nonce uint64, data []byte, target gasprice.Target) (*types.Transaction, error) {
	params := chain.TxParams{
		Nonce:    nonce,
		To:       e.Factory,
		Data:     data,
		GasLimit: target.GasLimit,
	}
	if target.Type == gasprice.EIP1559 {
		params.GasTipCap = target.MaxPriorityFeePerGas
		params.GasFeeCap = target.MaxFeePerGas
	} else {
		params.GasPrice = target.GasPrice
	}
	signed, err := e.Signer.Sign(e.Signer.BuildTx(params))
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	return signed, nil
}
