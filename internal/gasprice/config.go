package gasprice

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ligun0805/merkle-funder/internal/units"
)

const (
	StrategyLatestBlockPercentile      = "latestBlockPercentileGasPrice"
	StrategyProviderRecommended        = "providerRecommendedGasPrice"
	StrategyProviderRecommendedEIP1559 = "providerRecommendedEip1559GasPrice"
	StrategyFeeHistoryEIP1559          = "feeHistoryEip1559GasPrice"
	StrategyConstant                   = "constantGasPrice"
)

var ErrUnknownStrategy = errors.New("unknown gas price strategy")

// Config is one entry of a chain's gasPriceOracle list. Only the fields of the
// named strategy are read.
type Config struct {
	Strategy string `json:"gasPriceStrategy"`

	Percentile             *int             `json:"percentile,omitempty"`
	MinTransactionCount    *int             `json:"minTransactionCount,omitempty"`
	PastToCompareInBlocks  *uint64          `json:"pastToCompareInBlocks,omitempty"`
	MaxDeviationMultiplier *decimal.Decimal `json:"maxDeviationMultiplier,omitempty"`

	RecommendedGasPriceMultiplier *decimal.Decimal `json:"recommendedGasPriceMultiplier,omitempty"`

	BaseFeeMultiplier *decimal.Decimal `json:"baseFeeMultiplier,omitempty"`
	PriorityFee       *units.Amount    `json:"priorityFee,omitempty"`

	Blocks *uint64 `json:"blocks,omitempty"`

	GasPrice *units.Amount `json:"gasPrice,omitempty"`
}

func missing(field string) error {
	return fmt.Errorf("missing %s", field)
}

func positive(field string, d *decimal.Decimal) error {
	if d == nil {
		return missing(field)
	}
	if !d.IsPositive() {
		return fmt.Errorf("%s must be positive, got %s", field, d)
	}
	return nil
}

// Build validates the entry and returns its strategy.
func (c Config) Build() (Strategy, error) {
	switch c.Strategy {
	case StrategyLatestBlockPercentile:
		if c.Percentile == nil {
			return nil, missing("percentile")
		}
		if *c.Percentile < 1 || *c.Percentile > 100 {
			return nil, fmt.Errorf("percentile must be within 1..100, got %d", *c.Percentile)
		}
		if c.MinTransactionCount == nil {
			return nil, missing("minTransactionCount")
		}
		if c.PastToCompareInBlocks == nil {
			return nil, missing("pastToCompareInBlocks")
		}
		if err := positive("maxDeviationMultiplier", c.MaxDeviationMultiplier); err != nil {
			return nil, err
		}
		return LatestBlockPercentile{
			Percentile:             *c.Percentile,
			MinTransactionCount:    *c.MinTransactionCount,
			PastToCompareInBlocks:  *c.PastToCompareInBlocks,
			MaxDeviationMultiplier: *c.MaxDeviationMultiplier,
		}, nil

	case StrategyProviderRecommended:
		if err := positive("recommendedGasPriceMultiplier", c.RecommendedGasPriceMultiplier); err != nil {
			return nil, err
		}
		return ProviderRecommended{Multiplier: *c.RecommendedGasPriceMultiplier}, nil

	case StrategyProviderRecommendedEIP1559:
		if err := positive("baseFeeMultiplier", c.BaseFeeMultiplier); err != nil {
			return nil, err
		}
		if c.PriorityFee == nil {
			return nil, missing("priorityFee")
		}
		tip, err := c.PriorityFee.Wei()
		if err != nil {
			return nil, fmt.Errorf("priorityFee: %w", err)
		}
		return ProviderRecommendedEIP1559{BaseFeeMultiplier: *c.BaseFeeMultiplier, PriorityFee: tip}, nil

	case StrategyFeeHistoryEIP1559:
		if err := positive("baseFeeMultiplier", c.BaseFeeMultiplier); err != nil {
			return nil, err
		}
		blocks := uint64(20)
		if c.Blocks != nil {
			blocks = *c.Blocks
		}
		if blocks == 0 || blocks > 1024 {
			return nil, fmt.Errorf("blocks must be within 1..1024, got %d", blocks)
		}
		pct := 50
		if c.Percentile != nil {
			pct = *c.Percentile
		}
		if pct < 1 || pct > 99 {
			return nil, fmt.Errorf("percentile must be within 1..99, got %d", pct)
		}
		return FeeHistoryEIP1559{Blocks: blocks, Percentile: float64(pct), BaseFeeMultiplier: *c.BaseFeeMultiplier}, nil

	case StrategyConstant:
		if c.GasPrice == nil {
			return nil, missing("gasPrice")
		}
		price, err := c.GasPrice.Wei()
		if err != nil {
			return nil, fmt.Errorf("gasPrice: %w", err)
		}
		if price.Sign() == 0 {
			return nil, errors.New("gasPrice must be positive")
		}
		return Constant{GasPrice: price}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, c.Strategy)
}

// BuildAll builds every entry, stopping at the first invalid one.
func BuildAll(cfgs []Config) ([]Strategy, error) {
	if len(cfgs) == 0 {
		return nil, errors.New("no gas price strategies configured")
	}
	out := make([]Strategy, 0, len(cfgs))
	for i, c := range cfgs {
		s, err := c.Build()
		if err != nil {
			return nil, fmt.Errorf("gasPriceOracle[%d] %s: %w", i, c.Strategy, err)
		}
		out = append(out, s)
	}
	return out, nil
}
