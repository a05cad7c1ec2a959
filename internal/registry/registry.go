// Package registry knows where MerkleFunder is deployed on each chain and
// which bytecode its depositories are created from.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const contractName = "MerkleFunder"

var ErrNotDeployed = errors.New("MerkleFunder is not deployed on chain")

// Registry maps chain ids to MerkleFunder addresses.
type Registry struct {
	chainNames   map[uint64]string
	merkleFunder map[uint64]common.Address
	// deployment block per chain, when the deployment receipt is known
	blocks map[uint64]uint64
}

// references.json as written by the deployment scripts.
type references struct {
	ChainNames   map[string]string `json:"chainNames"`
	MerkleFunder map[string]string `json:"MerkleFunder"`
}

type deployment struct {
	Address string `json:"address"`
	Receipt *struct {
		BlockNumber json.Number `json:"blockNumber"`
	} `json:"receipt,omitempty"`
}

// Load reads a references.json file, or a hardhat-deploy deployments
// directory when path is a directory.
func Load(path string) (*Registry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	if info.IsDir() {
		return loadDeployments(path)
	}
	return loadReferences(path)
}

func newRegistry() *Registry {
	return &Registry{
		chainNames:   map[uint64]string{},
		merkleFunder: map[uint64]common.Address{},
		blocks:       map[uint64]uint64{},
	}
}

func parseChainID(s string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid chain id %q", s)
	}
	return id, nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func loadReferences(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	var refs references
	if err := json.Unmarshal(raw, &refs); err != nil {
		return nil, fmt.Errorf("registry: parse %s: %w", path, err)
	}
	r := newRegistry()
	for k, name := range refs.ChainNames {
		id, err := parseChainID(k)
		if err != nil {
			return nil, fmt.Errorf("registry: chainNames: %w", err)
		}
		r.chainNames[id] = name
	}
	for k, addr := range refs.MerkleFunder {
		id, err := parseChainID(k)
		if err != nil {
			return nil, fmt.Errorf("registry: %s: %w", contractName, err)
		}
		a, err := parseAddress(addr)
		if err != nil {
			return nil, fmt.Errorf("registry: %s on chain %d: %w", contractName, id, err)
		}
		r.merkleFunder[id] = a
	}
	return r, nil
}

// loadDeployments walks <dir>/<network>/{.chainId,MerkleFunder.json}.
// localhost is skipped, matching the deployment scripts.
func loadDeployments(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	r := newRegistry()
	for _, e := range entries {
		if !e.IsDir() || e.Name() == "localhost" {
			continue
		}
		network := e.Name()
		rawID, err := os.ReadFile(filepath.Join(dir, network, ".chainId"))
		if err != nil {
			return nil, fmt.Errorf("registry: network %s: %w", network, err)
		}
		id, err := parseChainID(string(rawID))
		if err != nil {
			return nil, fmt.Errorf("registry: network %s: %w", network, err)
		}
		r.chainNames[id] = network

		raw, err := os.ReadFile(filepath.Join(dir, network, contractName+".json"))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("registry: network %s: %w", network, err)
		}
		var d deployment
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("registry: network %s: parse deployment: %w", network, err)
		}
		a, err := parseAddress(d.Address)
		if err != nil {
			return nil, fmt.Errorf("registry: network %s: %w", network, err)
		}
		r.merkleFunder[id] = a
		if d.Receipt != nil {
			if n, err := strconv.ParseUint(d.Receipt.BlockNumber.String(), 10, 64); err == nil {
				r.blocks[id] = n
			}
		}
	}
	return r, nil
}

// MerkleFunder returns the factory address on chainID.
func (r *Registry) MerkleFunder(chainID uint64) (common.Address, error) {
	a, ok := r.merkleFunder[chainID]
	if !ok {
		return common.Address{}, fmt.Errorf("%w %d", ErrNotDeployed, chainID)
	}
	return a, nil
}

// ChainName falls back to the numeric id for unknown chains.
func (r *Registry) ChainName(chainID uint64) string {
	if n, ok := r.chainNames[chainID]; ok {
		return n
	}
	return strconv.FormatUint(chainID, 10)
}

// DeploymentBlock is the block MerkleFunder was deployed at, if known.
func (r *Registry) DeploymentBlock(chainID uint64) (uint64, bool) {
	n, ok := r.blocks[chainID]
	return n, ok
}

// Chains lists the chain ids with a MerkleFunder deployment, ascending.
func (r *Registry) Chains() []uint64 {
	out := make([]uint64, 0, len(r.merkleFunder))
	for id := range r.merkleFunder {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Artifact is the part of a hardhat compilation artifact the funder needs.
type Artifact struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     string          `json:"bytecode"`
}

// CreationCode decodes the artifact's creation bytecode.
func (a Artifact) CreationCode() ([]byte, error) {
	if a.Bytecode == "" || a.Bytecode == "0x" {
		return nil, fmt.Errorf("artifact %s has no bytecode", a.ContractName)
	}
	code, err := hexutil.Decode(a.Bytecode)
	if err != nil {
		return nil, fmt.Errorf("artifact %s bytecode: %w", a.ContractName, err)
	}
	return code, nil
}

func LoadArtifact(path string) (Artifact, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("artifact: %w", err)
	}
	var a Artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return Artifact{}, fmt.Errorf("artifact: parse %s: %w", path, err)
	}
	return a, nil
}
