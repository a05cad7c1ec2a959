package funder

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ligun0805/merkle-funder/internal/merkle"
)

// Group is one depository: an owner and the funding rules committed to by the
// depository's Merkle root. Rules keep their configured order; the tree is
// order independent, proofs are looked up by rule index.
type Group struct {
	Owner common.Address
	Rules []merkle.Leaf
	// Label identifies the group in logs and reports, e.g. "1/0".
	Label string
}

// Authorization is a built group: its tree and the depository address the
// tree's root maps to.
type Authorization struct {
	Group      Group
	Tree       *merkle.Tree
	Depository common.Address
}

// Authorize builds the group's tree and resolves its depository address.
func (c *Chain) Authorize(g Group) (*Authorization, error) {
	tree, err := merkle.Build(g.Rules)
	if err != nil {
		return nil, fmt.Errorf("build tree: %w", err)
	}
	dep, err := c.depositoryAddress(g.Owner, tree.Root())
	if err != nil {
		return nil, fmt.Errorf("depository address: %w", err)
	}
	return &Authorization{Group: g, Tree: tree, Depository: dep}, nil
}
