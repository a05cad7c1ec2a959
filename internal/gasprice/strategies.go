package gasprice

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
)

var (
	ErrNotEnoughTransactions = errors.New("not enough transactions in block")
	ErrDeviation             = errors.New("gas price deviates too much from past block")
	ErrNoBaseFee             = errors.New("no baseFee (pre-1559?)")
)

func mulDecimal(x *big.Int, m decimal.Decimal) *big.Int {
	return decimal.NewFromBigInt(x, 0).Mul(m).Floor().BigInt()
}

// LatestBlockPercentile prices at a percentile of the effective gas prices
// paid in the latest block. When PastToCompareInBlocks is set, the result is
// rejected if it exceeds the same percentile of that older block by more than
// MaxDeviationMultiplier.
type LatestBlockPercentile struct {
	Percentile             int
	MinTransactionCount    int
	PastToCompareInBlocks  uint64
	MaxDeviationMultiplier decimal.Decimal
}

func (LatestBlockPercentile) Name() string { return StrategyLatestBlockPercentile }

func (s LatestBlockPercentile) Price(ctx context.Context, p Provider) (Target, error) {
	latest, err := p.BlockByNumber(ctx, nil)
	if err != nil {
		return Target{}, fmt.Errorf("latest block: %w", err)
	}
	price, err := s.blockPercentile(latest)
	if err != nil {
		return Target{}, fmt.Errorf("block %d: %w", latest.NumberU64(), err)
	}
	if s.PastToCompareInBlocks > 0 && latest.NumberU64() >= s.PastToCompareInBlocks {
		pastNumber := latest.NumberU64() - s.PastToCompareInBlocks
		past, err := p.BlockByNumber(ctx, new(big.Int).SetUint64(pastNumber))
		if err != nil {
			return Target{}, fmt.Errorf("block %d: %w", pastNumber, err)
		}
		// A thin reference block says nothing about the market.
		if reference, err := s.blockPercentile(past); err == nil {
			limit := mulDecimal(reference, s.MaxDeviationMultiplier)
			if price.Cmp(limit) > 0 {
				return Target{}, fmt.Errorf("%w: %s > %s", ErrDeviation, price, limit)
			}
		}
	}
	return Target{Type: Legacy, GasPrice: price}, nil
}

func (s LatestBlockPercentile) blockPercentile(b *types.Block) (*big.Int, error) {
	txs := b.Transactions()
	if len(txs) < s.MinTransactionCount || len(txs) == 0 {
		return nil, fmt.Errorf("%w: %d < %d", ErrNotEnoughTransactions, len(txs), s.MinTransactionCount)
	}
	prices := make([]*big.Int, len(txs))
	for i, tx := range txs {
		prices[i] = effectiveGasPrice(tx, b.BaseFee())
	}
	return percentile(prices, s.Percentile), nil
}

// effectiveGasPrice is what the sender actually paid per gas unit.
func effectiveGasPrice(tx *types.Transaction, baseFee *big.Int) *big.Int {
	if tx.Type() == types.LegacyTxType || tx.Type() == types.AccessListTxType || baseFee == nil {
		return new(big.Int).Set(tx.GasPrice())
	}
	price := new(big.Int).Add(baseFee, tx.GasTipCap())
	if price.Cmp(tx.GasFeeCap()) > 0 {
		price.Set(tx.GasFeeCap())
	}
	return price
}

// percentile uses the nearest-rank method.
func percentile(values []*big.Int, p int) *big.Int {
	sorted := append([]*big.Int(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Cmp(sorted[j]) < 0 })
	idx := (p*len(sorted)+99)/100 - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return new(big.Int).Set(sorted[idx])
}

// ProviderRecommended scales eth_gasPrice.
type ProviderRecommended struct {
	Multiplier decimal.Decimal
}

func (ProviderRecommended) Name() string { return StrategyProviderRecommended }

func (s ProviderRecommended) Price(ctx context.Context, p Provider) (Target, error) {
	price, err := p.SuggestGasPrice(ctx)
	if err != nil {
		return Target{}, fmt.Errorf("eth_gasPrice: %w", err)
	}
	return Target{Type: Legacy, GasPrice: mulDecimal(price, s.Multiplier)}, nil
}

// ProviderRecommendedEIP1559 sets maxFee = baseFee*BaseFeeMultiplier + PriorityFee.
type ProviderRecommendedEIP1559 struct {
	BaseFeeMultiplier decimal.Decimal
	PriorityFee       *big.Int
}

func (ProviderRecommendedEIP1559) Name() string { return StrategyProviderRecommendedEIP1559 }

func (s ProviderRecommendedEIP1559) Price(ctx context.Context, p Provider) (Target, error) {
	h, err := p.HeaderByNumber(ctx, nil)
	if err != nil {
		return Target{}, fmt.Errorf("latest header: %w", err)
	}
	if h.BaseFee == nil {
		return Target{}, ErrNoBaseFee
	}
	tip := new(big.Int).Set(s.PriorityFee)
	maxFee := new(big.Int).Add(mulDecimal(h.BaseFee, s.BaseFeeMultiplier), tip)
	return Target{Type: EIP1559, MaxFeePerGas: maxFee, MaxPriorityFeePerGas: tip}, nil
}

// FeeHistoryEIP1559 takes the largest reward at Percentile over the last
// Blocks blocks as the tip, and the next block's base fee from the same
// eth_feeHistory response.
type FeeHistoryEIP1559 struct {
	Blocks            uint64
	Percentile        float64
	BaseFeeMultiplier decimal.Decimal
}

func (FeeHistoryEIP1559) Name() string { return StrategyFeeHistoryEIP1559 }

func (s FeeHistoryEIP1559) Price(ctx context.Context, p Provider) (Target, error) {
	fh, err := p.FeeHistory(ctx, s.Blocks, nil, []float64{s.Percentile})
	if err != nil {
		return Target{}, fmt.Errorf("eth_feeHistory: %w", err)
	}
	if len(fh.BaseFee) == 0 {
		return Target{}, fmt.Errorf("eth_feeHistory: %w", ErrNoBaseFee)
	}
	tip := big.NewInt(0)
	for _, row := range fh.Reward {
		if len(row) > 0 && row[0] != nil && row[0].Cmp(tip) > 0 {
			tip = new(big.Int).Set(row[0])
		}
	}
	if tip.Sign() == 0 {
		return Target{}, errors.New("eth_feeHistory: empty reward")
	}
	nextBase := fh.BaseFee[len(fh.BaseFee)-1]
	maxFee := new(big.Int).Add(mulDecimal(nextBase, s.BaseFeeMultiplier), tip)
	return Target{Type: EIP1559, MaxFeePerGas: maxFee, MaxPriorityFeePerGas: tip}, nil
}

// Constant always returns the configured legacy price.
type Constant struct {
	GasPrice *big.Int
}

func (Constant) Name() string { return StrategyConstant }

func (s Constant) Price(context.Context, Provider) (Target, error) {
	return Target{Type: Legacy, GasPrice: new(big.Int).Set(s.GasPrice)}, nil
}
