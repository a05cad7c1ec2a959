package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ligun0805/merkle-funder/internal/chain"
	"github.com/ligun0805/merkle-funder/internal/config"
	"github.com/ligun0805/merkle-funder/internal/funder"
	"github.com/ligun0805/merkle-funder/internal/registry"
)

var errNoProvider = errors.New("no provider reachable")

// offlineChain resolves everything a chain needs that does not require RPC.
func offlineChain(cc config.Chain, reg *registry.Registry, creationCode []byte, lg *zap.Logger) (*funder.Chain, error) {
	factory, err := reg.MerkleFunder(cc.ID)
	if err != nil {
		return nil, err
	}
	if block, ok := reg.DeploymentBlock(cc.ID); ok {
		lg.Debug("MerkleFunder deployment", zap.Uint64("chain", cc.ID), zap.String("address", factory.Hex()), zap.Uint64("block", block))
	}
	return &funder.Chain{
		ID:            cc.ID,
		Name:          reg.ChainName(cc.ID),
		MerkleFunder:  factory,
		CreationCode:  creationCode,
		Groups:        cc.Groups,
		GasStrategies: cc.GasStrategies,
		GasLimit:      cc.FulfillmentGasLimit,
		Log:           lg,
	}, nil
}

// connect picks the first provider, in name order, that dials and reports
// the configured chain id, then builds the signer.
func connect(ctx context.Context, c *funder.Chain, cc config.Chain, settings config.Settings, promptKey bool, lg *zap.Logger) error {
	lg = lg.With(zap.Uint64("chain", cc.ID))

	var provider chain.Provider
	for _, np := range cc.Providers {
		client, err := chain.Dial(ctx, np.URL, settings.RPC.Timeout)
		if err != nil {
			lg.Warn("dial provider", zap.String("provider", np.Name), zap.Error(err))
			continue
		}
		id, err := client.ChainID(ctx)
		if err != nil {
			lg.Warn("provider chain id", zap.String("provider", np.Name), zap.Error(err))
			client.Close()
			continue
		}
		if !id.IsUint64() || id.Uint64() != cc.ID {
			lg.Warn("provider serves another chain", zap.String("provider", np.Name), zap.String("chainId", id.String()))
			client.Close()
			continue
		}
		lg.Info("using provider", zap.String("provider", np.Name))
		provider = chain.WithRetry(client,
			chain.Attempts(settings.RPC.Attempts),
			chain.OnRetry(func(method string, n uint, err error) {
				lg.Debug("rpc retry", zap.String("method", method), zap.Uint("attempt", n), zap.Error(err))
			}))
		break
	}
	if provider == nil {
		return errNoProvider
	}

	key := cc.FunderPrivateKey
	if key == "" {
		if !promptKey {
			return fmt.Errorf("funderPrivateKey is empty, set it in the config or pass -prompt-key")
		}
		var err error
		key, err = readPassword(fmt.Sprintf("Funder private key for chain %d: ", cc.ID))
		if err != nil {
			return err
		}
	}
	signer, err := chain.NewSigner(key, cc.ID)
	if err != nil {
		return err
	}
	lg.Info("funder wallet", zap.String("address", signer.Address().Hex()))

	c.Provider, c.Signer = provider, signer
	return nil
}
