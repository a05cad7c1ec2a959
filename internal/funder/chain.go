// Package funder tops up recipients from MerkleFunder depositories. Every
// group is simulated with a single tryMulticall static call and only the fund
// calls that would succeed are sent, batched into one transaction.
package funder

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/ligun0805/merkle-funder/internal/chain"
	"github.com/ligun0805/merkle-funder/internal/contracts"
	"github.com/ligun0805/merkle-funder/internal/gasprice"
)

// Chain is everything one chain's run needs. Chains share nothing, so
// separate chains can run concurrently.
type Chain struct {
	ID           uint64
	Name         string
	Provider     chain.Provider
	Signer       *chain.Signer
	MerkleFunder common.Address
	// CreationCode is the MerkleFunderDepository creation bytecode.
	CreationCode  []byte
	Groups        []Group
	GasStrategies []gasprice.Strategy
	// GasLimit is used when estimation fails; 0 means the built-in default.
	GasLimit uint64
	// Heights picks the nonce height; nil means chain.HeightResolverFor(ID).
	Heights chain.HeightResolver
	Log     *zap.Logger
}

func (c *Chain) label() string {
	if c.Name != "" {
		return c.Name
	}
	return strconv.FormatUint(c.ID, 10)
}

func (c *Chain) logger() *zap.Logger {
	lg := c.Log
	if lg == nil {
		lg = zap.NewNop()
	}
	return lg.With(zap.Uint64("chain", c.ID))
}

func (c *Chain) heights() chain.HeightResolver {
	if c.Heights != nil {
		return c.Heights
	}
	return chain.HeightResolverFor(c.ID)
}

func (c *Chain) depositoryAddress(owner common.Address, root common.Hash) (common.Address, error) {
	return contracts.DepositoryAddress(c.MerkleFunder, owner, root, c.CreationCode)
}

func (c *Chain) executor() *Executor {
	return &Executor{
		Provider:   c.Provider,
		Signer:     c.Signer,
		Factory:    c.MerkleFunder,
		Strategies: c.GasStrategies,
		GasLimit:   c.GasLimit,
		Heights:    c.heights(),
	}
}
