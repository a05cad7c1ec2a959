package funder

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/ligun0805/merkle-funder/internal/chain"
	"github.com/ligun0805/merkle-funder/internal/gasprice"
	"github.com/ligun0805/merkle-funder/internal/metrics"
	"github.com/ligun0805/merkle-funder/internal/units"
)

// Status is the terminal state of a group in one run.
type Status string

const (
	StatusSubmitted        Status = "submitted"
	StatusSkipped          Status = "skipped"
	StatusProbeFailed      Status = "probe_failed"
	StatusSubmissionFailed Status = "submission_failed"
	StatusInvalid          Status = "invalid"
)

// GroupReport is what happened to one group.
type GroupReport struct {
	Group       string
	Owner       common.Address
	Root        common.Hash
	Depository  common.Address
	Status      Status
	BlockNumber uint64
	Outcomes    []Outcome
	Tx          common.Hash
	Nonce       uint64
	Target      *gasprice.Target
	Err         error
}

// Included counts the calls that went into the transaction.
func (r GroupReport) Included() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Included {
			n++
		}
	}
	return n
}

// FundChainRecipients runs every group of c in order with one nonce sequencer
// shared by the groups. A failing group never stops the ones after it, so the
// only way to get fewer reports than groups is a cancelled context.
func FundChainRecipients(ctx context.Context, c *Chain) []GroupReport {
	lg := c.logger()
	lg.Info("processing depositories", zap.Int("groups", len(c.Groups)))

	seq := &NonceSequencer{}
	exec := c.executor()
	reports := make([]GroupReport, 0, len(c.Groups))
	for _, g := range c.Groups {
		if ctx.Err() != nil {
			lg.Warn("run cancelled", zap.Error(ctx.Err()))
			break
		}
		r := fundGroup(ctx, c, exec, seq, g, lg)
		metrics.GroupProcessed(c.label(), string(r.Status))
		reports = append(reports, r)
	}
	return reports
}

func fundGroup(ctx context.Context, c *Chain, exec *Executor, seq *NonceSequencer, g Group, lg *zap.Logger) GroupReport {
	r := GroupReport{Group: g.Label, Owner: g.Owner}
	lg = lg.With(zap.String("group", g.Label))

	auth, err := c.Authorize(g)
	if err != nil {
		lg.Error("invalid group", zap.Error(err))
		r.Status, r.Err = StatusInvalid, err
		return r
	}
	r.Root, r.Depository = auth.Tree.Root(), auth.Depository
	lg = lg.With(zap.String("depository", auth.Depository.Hex()))
	lg.Debug("merkle tree", zap.String("root", r.Root.Hex()), zap.String("tree", auth.Tree.Render()))

	calls, err := auth.FundCalls()
	if err != nil {
		lg.Error("encode fund calls", zap.Error(err))
		r.Status, r.Err = StatusInvalid, err
		return r
	}
	for _, call := range calls {
		rule := g.Rules[call.Index]
		lg.Debug("testing funding",
			zap.String("recipient", call.Recipient.Hex()),
			zap.String("lowThreshold", units.FormatETH(rule.Low)),
			zap.String("highThreshold", units.FormatETH(rule.High)))
	}

	sim, err := Simulate(ctx, c.Provider, c.Signer.Address(), c.MerkleFunder, calls)
	if err != nil {
		lg.Info("[simulate] aborted", zap.Error(err))
		r.Status, r.Err = StatusProbeFailed, err
		return r
	}
	r.BlockNumber, r.Outcomes = sim.BlockNumber, sim.Outcomes
	lg.Info("[simulate] block number fetched while testing funding of recipients", zap.Uint64("block", sim.BlockNumber))
	for _, o := range sim.Outcomes {
		switch {
		case o.Included && o.AmountErr != nil:
			lg.Warn("[simulate] funding test succeeded but the amount did not decode",
				zap.String("recipient", o.Call.Recipient.Hex()),
				zap.Error(o.AmountErr))
		case o.Included:
			lg.Info("[simulate] funding test succeeded",
				zap.String("recipient", o.Call.Recipient.Hex()),
				zap.String("amount", units.FormatETH(o.Amount)))
		default:
			lg.Info("[simulate] funding test reverted", zap.String("recipient", o.Call.Recipient.Hex()), zap.String("reason", o.Reason))
		}
	}
	eligible := sim.Eligible()
	metrics.RecipientsSimulated(c.label(), len(eligible), sim.Rejected())

	if len(eligible) == 0 {
		lg.Info("no recipient needs funding")
		r.Status = StatusSkipped
		return r
	}

	logs, target := exec.ResolveGas(ctx, eligible)
	logGas(lg, logs)
	r.Target = &target

	sub, err := exec.Execute(ctx, sim, seq, target)
	if err != nil {
		lg.Error("[send] failed to send tryMulticall", zap.Error(err))
		r.Status, r.Err = StatusSubmissionFailed, err
		if n, ok := seq.Current(); ok {
			r.Nonce = n
		}
		return r
	}
	metrics.TransactionSent(c.label(), "fund")
	r.Status, r.Tx, r.Nonce = StatusSubmitted, sub.Tx.Hash(), sub.Nonce
	lg.Info("[send] sent tx",
		zap.String("tx", sub.Tx.Hash().Hex()),
		zap.Uint64("nonce", sub.Nonce),
		zap.Int("recipients", len(eligible)),
		zap.String("gas", target.String()),
		zap.String("maxCost", units.FormatETH(maxCost(target))))
	lg.Debug("[send] raw tx", zap.String("raw", chain.TxHex(sub.Tx)))
	return r
}

func logGas(lg *zap.Logger, logs []gasprice.Log) {
	for _, l := range logs {
		if l.Err != nil {
			lg.Warn("[gas] "+l.Message, zap.Error(l.Err))
			continue
		}
		lg.Info("[gas] " + l.Message)
	}
}

// maxCost is the most the transaction can spend on gas.
func maxCost(t gasprice.Target) *big.Int {
	price := t.GasPrice
	if t.Type == gasprice.EIP1559 {
		price = t.MaxFeePerGas
	}
	if price == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Mul(price, new(big.Int).SetUint64(t.GasLimit))
}
