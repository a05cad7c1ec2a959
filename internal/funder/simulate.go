package funder

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ligun0805/merkle-funder/internal/contracts"
)

var ErrProbeFailed = errors.New("block number probe failed")

// FundCall is the encoded fund() call for one rule of a group.
type FundCall struct {
	Index     int
	Recipient common.Address
	Data      []byte
}

// FundCalls encodes one fund() call per rule, in rule order.
func (a *Authorization) FundCalls() ([]FundCall, error) {
	root := a.Tree.Root()
	calls := make([]FundCall, len(a.Group.Rules))
	for i, r := range a.Group.Rules {
		proof, err := a.Tree.Proof(i)
		if err != nil {
			return nil, err
		}
		data, err := contracts.PackFund(a.Group.Owner, root, proof, r.Recipient, r.Low, r.High)
		if err != nil {
			return nil, fmt.Errorf("pack fund for %s: %w", r.Recipient.Hex(), err)
		}
		calls[i] = FundCall{Index: i, Recipient: r.Recipient, Data: data}
	}
	return calls, nil
}

// Outcome is the simulated result of one fund call. Amount is what an
// included call would send; AmountErr is set when its return data did not
// decode. Reason is the decoded revert data of excluded calls.
type Outcome struct {
	Call      FundCall
	Included  bool
	Amount    *big.Int
	AmountErr error
	Reason    string
}

// Simulation is the result of one successful probe-and-simulate call.
type Simulation struct {
	// BlockNumber is what getBlockNumber() returned inside the batch.
	BlockNumber uint64
	Outcomes    []Outcome
}

// Eligible returns the calls that simulated successfully, in their original
// order.
func (s *Simulation) Eligible() []FundCall {
	var out []FundCall
	for _, o := range s.Outcomes {
		if o.Included {
			out = append(out, o.Call)
		}
	}
	return out
}

// Rejected counts the excluded calls.
func (s *Simulation) Rejected() int {
	return len(s.Outcomes) - len(s.Eligible())
}

// Caller is the static-call capability Simulate needs.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Simulate static-calls tryMulticall([getBlockNumber(), calls...]) on the
// factory as from. A failure of the whole call or of the probe sub-call is
// reported as ErrProbeFailed and no outcome is produced.
func Simulate(ctx context.Context, p Caller, from, factory common.Address, calls []FundCall) (*Simulation, error) {
	batch := make([][]byte, 0, len(calls)+1)
	batch = append(batch, contracts.PackGetBlockNumber())
	for _, c := range calls {
		batch = append(batch, c.Data)
	}
	data, err := contracts.PackTryMulticall(batch)
	if err != nil {
		return nil, fmt.Errorf("pack tryMulticall: %w", err)
	}

	ret, err := p.CallContract(ctx, ethereum.CallMsg{From: from, To: &factory, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: tryMulticall: %s", ErrProbeFailed, contracts.ErrorReason(err))
	}
	successes, returndata, err := contracts.UnpackTryMulticall(ret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}
	if len(successes) != len(batch) {
		return nil, fmt.Errorf("%w: %d results for %d calls", ErrProbeFailed, len(successes), len(batch))
	}
	if !successes[0] {
		return nil, fmt.Errorf("%w: %s", ErrProbeFailed, contracts.DecodeRevert(returndata[0]))
	}
	height, err := contracts.UnpackBlockNumber(returndata[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}

	sim := &Simulation{BlockNumber: height, Outcomes: make([]Outcome, len(calls))}
	for i, c := range calls {
		o := Outcome{Call: c, Included: successes[i+1]}
		if o.Included {
			o.Amount, o.AmountErr = contracts.UnpackFund(returndata[i+1])
		} else {
			o.Reason = contracts.DecodeRevert(returndata[i+1])
		}
		sim.Outcomes[i] = o
	}
	return sim, nil
}
