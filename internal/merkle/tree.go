// Package merkle builds the authorization tree a MerkleFunder depository is
// committed to. The layout matches OpenZeppelin's StandardMerkleTree over
// (address, uint256, uint256) so roots and proofs verify with the on-chain
// MerkleProof library.
package merkle

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Leaf is one funding authorization: top up Recipient to High once its
// balance drops below Low. Amounts are in wei.
type Leaf struct {
	Recipient common.Address
	Low       *big.Int
	High      *big.Int
}

var (
	ErrEmpty        = errors.New("merkle: expected non-zero number of leaves")
	ErrIndexOutside = errors.New("merkle: leaf index out of range")
)

var leafArgs abi.Arguments

func init() {
	addressTy, _ := abi.NewType("address", "", nil)
	uint256Ty, _ := abi.NewType("uint256", "", nil)
	leafArgs = abi.Arguments{{Type: addressTy}, {Type: uint256Ty}, {Type: uint256Ty}}
}

// EncodeLeaf returns abi.encode(recipient, low, high).
func EncodeLeaf(l Leaf) ([]byte, error) {
	if l.Low == nil || l.High == nil {
		return nil, fmt.Errorf("merkle: leaf %s has nil amount", l.Recipient.Hex())
	}
	return leafArgs.Pack(l.Recipient, l.Low, l.High)
}

// LeafHash is keccak256(keccak256(abi.encode(leaf))). The double hash keeps a
// leaf from ever being mistaken for an internal node.
func LeafHash(l Leaf) (common.Hash, error) {
	enc, err := EncodeLeaf(l)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(crypto.Keccak256(enc)), nil
}

// HashPair hashes two nodes in ascending byte order.
func HashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return crypto.Keccak256Hash(a[:], b[:])
}

// Tree is a complete binary tree stored in an array. Leaves occupy the tail of
// the array in ascending hash order, so the root depends only on the set of
// leaves and not on the order they were supplied in.
type Tree struct {
	nodes  []common.Hash
	leaves []Leaf
	// position[i] is the node index of the i-th leaf passed to Build.
	position []int
}

// Build hashes, sorts and combines leaves. Proofs are addressed by the index
// of the leaf in the input slice.
func Build(leaves []Leaf) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrEmpty
	}
	type hashed struct {
		hash  common.Hash
		input int
	}
	hs := make([]hashed, len(leaves))
	for i, l := range leaves {
		h, err := LeafHash(l)
		if err != nil {
			return nil, fmt.Errorf("leaf %d: %w", i, err)
		}
		hs[i] = hashed{hash: h, input: i}
	}
	sort.SliceStable(hs, func(i, j int) bool {
		return bytes.Compare(hs[i].hash[:], hs[j].hash[:]) < 0
	})

	n := len(hs)
	nodes := make([]common.Hash, 2*n-1)
	position := make([]int, n)
	for i, h := range hs {
		idx := len(nodes) - 1 - i
		nodes[idx] = h.hash
		position[h.input] = idx
	}
	for i := len(nodes) - 1 - n; i >= 0; i-- {
		nodes[i] = HashPair(nodes[2*i+1], nodes[2*i+2])
	}

	t := &Tree{nodes: nodes, position: position, leaves: make([]Leaf, n)}
	for i, l := range leaves {
		t.leaves[i] = Leaf{Recipient: l.Recipient, Low: new(big.Int).Set(l.Low), High: new(big.Int).Set(l.High)}
	}
	return t, nil
}

func (t *Tree) Root() common.Hash { return t.nodes[0] }

func (t *Tree) Len() int { return len(t.leaves) }

// Leaf returns the i-th input leaf.
func (t *Tree) Leaf(i int) Leaf { return t.leaves[i] }

// Proof returns the sibling path from the i-th input leaf up to the root.
func (t *Tree) Proof(i int) ([]common.Hash, error) {
	if i < 0 || i >= len(t.position) {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutside, i)
	}
	var proof []common.Hash
	for k := t.position[i]; k > 0; k = (k - 1) / 2 {
		proof = append(proof, t.nodes[sibling(k)])
	}
	return proof, nil
}

func sibling(k int) int {
	if k%2 == 1 {
		return k + 1
	}
	return k - 1
}

// ProcessProof folds proof into leafHash and returns the implied root.
func ProcessProof(leafHash common.Hash, proof []common.Hash) common.Hash {
	h := leafHash
	for _, p := range proof {
		h = HashPair(h, p)
	}
	return h
}

// Verify reports whether leaf is included under root.
func Verify(root common.Hash, leaf Leaf, proof []common.Hash) (bool, error) {
	h, err := LeafHash(leaf)
	if err != nil {
		return false, err
	}
	return ProcessProof(h, proof) == root, nil
}

// Render draws the tree for debug logs.
func (t *Tree) Render() string {
	var b strings.Builder
	var walk func(k int, prefix string, last bool, root bool)
	walk = func(k int, prefix string, last bool, root bool) {
		branch, next := "├─ ", "│  "
		if last {
			branch, next = "└─ ", "   "
		}
		if root {
			branch, next = "", ""
		}
		fmt.Fprintf(&b, "%s%s%d) %s\n", prefix, branch, k, t.nodes[k].Hex())
		left, right := 2*k+1, 2*k+2
		if left < len(t.nodes) {
			walk(left, prefix+next, false, false)
			walk(right, prefix+next, true, false)
		}
	}
	walk(0, "", true, true)
	return strings.TrimRight(b.String(), "\n")
}

// Entry is a leaf together with its place in the tree.
type Entry struct {
	Index     int
	NodeIndex int
	Leaf      Leaf
	Hash      common.Hash
}

// Entries lists the leaves in input order.
func (t *Tree) Entries() []Entry {
	out := make([]Entry, len(t.leaves))
	for i, l := range t.leaves {
		out[i] = Entry{Index: i, NodeIndex: t.position[i], Leaf: l, Hash: t.nodes[t.position[i]]}
	}
	return out
}
