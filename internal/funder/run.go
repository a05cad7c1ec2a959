package funder

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/iter"
	"go.uber.org/zap"

	"github.com/ligun0805/merkle-funder/internal/metrics"
)

// ChainReport is the outcome of one chain's run.
type ChainReport struct {
	ChainID  uint64
	Name     string
	Groups   []GroupReport
	Started  time.Time
	Finished time.Time
}

// Count returns how many groups ended in status s.
func (r ChainReport) Count(s Status) int {
	n := 0
	for _, g := range r.Groups {
		if g.Status == s {
			n++
		}
	}
	return n
}

// RunChains funds every chain concurrently. Each chain keeps its own nonce
// sequencer and processes its groups in order. Reports come back in the
// order of chains.
func RunChains(ctx context.Context, chains []*Chain) []ChainReport {
	return iter.Map(chains, func(c **Chain) ChainReport {
		ch := *c
		r := ChainReport{ChainID: ch.ID, Name: ch.label(), Started: time.Now()}
		r.Groups = FundChainRecipients(ctx, ch)
		r.Finished = time.Now()
		metrics.RunFinished(ch.label(), r.Finished)
		ch.logger().Info("chain run finished",
			zap.Duration("took", r.Finished.Sub(r.Started)),
			zap.Int("submitted", r.Count(StatusSubmitted)),
			zap.Int("skipped", r.Count(StatusSkipped)))
		return r
	})
}
