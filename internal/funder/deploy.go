package funder

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/ligun0805/merkle-funder/internal/chain"
	"github.com/ligun0805/merkle-funder/internal/contracts"
	"github.com/ligun0805/merkle-funder/internal/gasprice"
	"github.com/ligun0805/merkle-funder/internal/merkle"
	"github.com/ligun0805/merkle-funder/internal/metrics"
)

type DeployStatus string

const (
	DeployStatusDeployed        DeployStatus = "deployed"
	DeployStatusAlreadyDeployed DeployStatus = "already_deployed"
	DeployStatusFailed          DeployStatus = "failed"
)

type DeployReport struct {
	Group      string
	Owner      common.Address
	Root       common.Hash
	Depository common.Address
	Status     DeployStatus
	Tx         common.Hash
	Err        error
}

// DeployDepositories deploys the depository of every group that has no code
// at its predicted address yet. Transactions share one nonce sequencer,
// resolved at the latest block.
func DeployDepositories(ctx context.Context, c *Chain) []DeployReport {
	lg := c.logger()
	exec := c.executor()
	seq := &NonceSequencer{}
	reports := make([]DeployReport, 0, len(c.Groups))
	for _, g := range c.Groups {
		if ctx.Err() != nil {
			break
		}
		r := deployGroup(ctx, c, exec, seq, g, lg.With(zap.String("group", g.Label)))
		reports = append(reports, r)
	}
	return reports
}

func deployGroup(ctx context.Context, c *Chain, exec *Executor, seq *NonceSequencer, g Group, lg *zap.Logger) DeployReport {
	r := DeployReport{Group: g.Label, Owner: g.Owner, Status: DeployStatusFailed}
	auth, err := c.Authorize(g)
	if err != nil {
		r.Err = err
		return r
	}
	r.Root, r.Depository = auth.Tree.Root(), auth.Depository
	lg = lg.With(zap.String("depository", auth.Depository.Hex()))

	code, err := c.Provider.CodeAt(ctx, auth.Depository, nil)
	if err != nil {
		r.Err = fmt.Errorf("get code: %w", err)
		lg.Error("failed to check depository", zap.Error(r.Err))
		return r
	}
	if len(code) > 0 {
		lg.Info("depository already deployed")
		r.Status = DeployStatusAlreadyDeployed
		return r
	}

	data, err := contracts.PackDeployDepository(g.Owner, r.Root)
	if err != nil {
		r.Err = err
		return r
	}
	limit := DefaultGasLimit
	if est, err := c.Provider.EstimateGas(ctx, ethereum.CallMsg{From: c.Signer.Address(), To: &c.MerkleFunder, Data: data}); err == nil {
		limit = est * 110 / 100
	} else if c.GasLimit > 0 {
		limit = c.GasLimit
	}
	logs, target := gasprice.Resolve(ctx, c.Provider, c.GasStrategies, limit)
	logGas(lg, logs)

	nonce, err := seq.Resolve(ctx, func(ctx context.Context) (uint64, error) {
		return c.Provider.NonceAt(ctx, c.Signer.Address(), nil)
	})
	if err != nil {
		r.Err = fmt.Errorf("%w: resolve nonce: %v", ErrSubmissionFailed, err)
		lg.Error("failed to deploy depository", zap.Error(r.Err))
		return r
	}
	signed, err := exec.sign(nonce, data, target)
	if err != nil {
		r.Err = err
		return r
	}
	if err := c.Provider.SendTransaction(ctx, signed); err != nil {
		r.Err = fmt.Errorf("%w: %s", ErrSubmissionFailed, chain.FriendlyError(contracts.ErrorReason(err)))
		lg.Error("[send] failed to deploy depository", zap.Error(r.Err))
		return r
	}
	if err := seq.Advance(); err != nil {
		r.Err = err
		return r
	}
	metrics.TransactionSent(c.label(), "deploy")
	r.Status, r.Tx = DeployStatusDeployed, signed.Hash()
	lg.Info("[send] sent deployment tx", zap.String("tx", r.Tx.Hex()), zap.Uint64("nonce", nonce))
	return r
}

type BalanceReport struct {
	Group      string
	Depository common.Address
	Deployed   bool
	Balance    *big.Int
	Err        error
}

// DepositoryBalances reports whether each group's depository exists and how
// much it holds.
func DepositoryBalances(ctx context.Context, c *Chain) []BalanceReport {
	reports := make([]BalanceReport, 0, len(c.Groups))
	for _, g := range c.Groups {
		r := BalanceReport{Group: g.Label}
		auth, err := c.Authorize(g)
		if err != nil {
			r.Err = err
			reports = append(reports, r)
			continue
		}
		r.Depository = auth.Depository
		code, err := c.Provider.CodeAt(ctx, auth.Depository, nil)
		if err != nil {
			r.Err = fmt.Errorf("get code: %w", err)
			reports = append(reports, r)
			continue
		}
		r.Deployed = len(code) > 0
		r.Balance, err = c.Provider.BalanceAt(ctx, auth.Depository, nil)
		if err != nil {
			r.Err = fmt.Errorf("get balance: %w", err)
		}
		reports = append(reports, r)
	}
	return reports
}

type TreeReport struct {
	Group      string
	Owner      common.Address
	Root       common.Hash
	Depository common.Address
	Entries    []merkle.Entry
	Rendered   string
	Err        error
}

// Trees builds every group's tree and depository address without touching
// the network.
func Trees(c *Chain) []TreeReport {
	reports := make([]TreeReport, 0, len(c.Groups))
	for _, g := range c.Groups {
		r := TreeReport{Group: g.Label, Owner: g.Owner}
		auth, err := c.Authorize(g)
		if err != nil {
			r.Err = err
		} else {
			r.Root, r.Depository = auth.Tree.Root(), auth.Depository
			r.Entries, r.Rendered = auth.Tree.Entries(), auth.Tree.Render()
		}
		reports = append(reports, r)
	}
	return reports
}
