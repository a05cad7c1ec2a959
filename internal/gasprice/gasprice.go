// Package gasprice picks the fee parameters of a funding transaction by
// walking a configured list of pricing strategies until one produces a price.
package gasprice

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ligun0805/merkle-funder/internal/units"
)

// Provider is the part of the node API pricing strategies read from.
type Provider interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	FeeHistory(ctx context.Context, blockCount uint64, lastBlock *big.Int, rewardPercentiles []float64) (*ethereum.FeeHistory, error)
}

type TxType uint8

const (
	Legacy  TxType = types.LegacyTxType
	EIP1559 TxType = types.DynamicFeeTxType
)

func (t TxType) String() string {
	if t == EIP1559 {
		return "eip1559"
	}
	return "legacy"
}

// Target holds the fee fields of a transaction. GasPrice is set for legacy
// targets, MaxFeePerGas and MaxPriorityFeePerGas for EIP-1559 ones.
type Target struct {
	Type                 TxType
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	GasLimit             uint64
}

func (t Target) String() string {
	if t.Type == EIP1559 {
		return fmt.Sprintf("maxFee=%s gwei tip=%s gwei gasLimit=%d",
			units.FormatGwei(t.MaxFeePerGas), units.FormatGwei(t.MaxPriorityFeePerGas), t.GasLimit)
	}
	return fmt.Sprintf("gasPrice=%s gwei gasLimit=%d", units.FormatGwei(t.GasPrice), t.GasLimit)
}

// Log is one diagnostic produced while resolving a price. Err is set for
// failed attempts.
type Log struct {
	Message string
	Err     error
}

// Strategy produces a price or an error explaining why it cannot.
type Strategy interface {
	Name() string
	Price(ctx context.Context, p Provider) (Target, error)
}

// FallbackGasPrice is used when every strategy failed.
var FallbackGasPrice = units.GweiToWei(10)

// Resolve tries strategies in order and returns the first usable price. It
// never fails: when nothing works the legacy fallback price is returned.
func Resolve(ctx context.Context, p Provider, strategies []Strategy, gasLimit uint64) ([]Log, Target) {
	var logs []Log
	for _, s := range strategies {
		logs = append(logs, Log{Message: fmt.Sprintf("Attempting gas pricing strategy %s", s.Name())})
		target, err := s.Price(ctx, p)
		if err != nil {
			logs = append(logs, Log{Message: fmt.Sprintf("Gas pricing strategy %s failed", s.Name()), Err: err})
			continue
		}
		if err := target.validate(); err != nil {
			logs = append(logs, Log{Message: fmt.Sprintf("Gas pricing strategy %s returned an unusable price", s.Name()), Err: err})
			continue
		}
		target.GasLimit = gasLimit
		logs = append(logs, Log{Message: fmt.Sprintf("Gas price set by %s: %s", s.Name(), target)})
		return logs, target
	}
	target := Target{Type: Legacy, GasPrice: new(big.Int).Set(FallbackGasPrice), GasLimit: gasLimit}
	logs = append(logs, Log{Message: fmt.Sprintf("All gas pricing strategies failed, using fallback: %s", target)})
	return logs, target
}

func (t Target) validate() error {
	switch t.Type {
	case Legacy:
		if t.GasPrice == nil || t.GasPrice.Sign() <= 0 {
			return fmt.Errorf("gas price %v is not positive", t.GasPrice)
		}
	case EIP1559:
		if t.MaxFeePerGas == nil || t.MaxPriorityFeePerGas == nil {
			return fmt.Errorf("missing eip1559 fee fields")
		}
		if t.MaxPriorityFeePerGas.Sign() < 0 || t.MaxFeePerGas.Cmp(t.MaxPriorityFeePerGas) < 0 {
			return fmt.Errorf("max fee %s below priority fee %s", t.MaxFeePerGas, t.MaxPriorityFeePerGas)
		}
	default:
		return fmt.Errorf("unknown transaction type %d", t.Type)
	}
	return nil
}
