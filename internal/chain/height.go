package chain

import (
	"context"
	"fmt"
)

// HeightResolver picks the block number nonces are read at, given the height
// the MerkleFunder contract reported during simulation.
type HeightResolver interface {
	Height(ctx context.Context, p Provider, probed uint64) (uint64, error)
}

// ProbedHeight uses the height observed by the getBlockNumber probe.
type ProbedHeight struct{}

func (ProbedHeight) Height(_ context.Context, _ Provider, probed uint64) (uint64, error) {
	return probed, nil
}

// ProviderHeight asks the node for its own head. Needed on chains whose
// block.number is the parent chain's height.
type ProviderHeight struct{}

func (ProviderHeight) Height(ctx context.Context, p Provider, _ uint64) (uint64, error) {
	n, err := p.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("provider block number: %w", err)
	}
	return n, nil
}

// Arbitrum One and Arbitrum Nova expose the L1 block number to contracts.
var providerHeightChains = map[uint64]struct{}{
	42161: {},
	42170: {},
}

func HeightResolverFor(chainID uint64) HeightResolver {
	if _, ok := providerHeightChains[chainID]; ok {
		return ProviderHeight{}
	}
	return ProbedHeight{}
}
