package contracts

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// MerkleFunderABI is the subset of the MerkleFunder factory the funder talks to.
const MerkleFunderABI = `[
  {"type":"function","stateMutability":"view","name":"getBlockNumber","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","stateMutability":"nonpayable","name":"fund",
   "inputs":[{"name":"owner","type":"address"},{"name":"root","type":"bytes32"},{"name":"proof","type":"bytes32[]"},
             {"name":"recipient","type":"address"},{"name":"lowThreshold","type":"uint256"},{"name":"highThreshold","type":"uint256"}],
   "outputs":[{"name":"amount","type":"uint256"}]},
  {"type":"function","stateMutability":"nonpayable","name":"tryMulticall",
   "inputs":[{"name":"data","type":"bytes[]"}],
   "outputs":[{"name":"successes","type":"bool[]"},{"name":"returndata","type":"bytes[]"}]},
  {"type":"function","stateMutability":"nonpayable","name":"multicall",
   "inputs":[{"name":"data","type":"bytes[]"}],"outputs":[{"name":"returndata","type":"bytes[]"}]},
  {"type":"function","stateMutability":"nonpayable","name":"deployMerkleFunderDepository",
   "inputs":[{"name":"owner","type":"address"},{"name":"root","type":"bytes32"}],
   "outputs":[{"name":"merkleFunderDepository","type":"address"}]},
  {"type":"function","stateMutability":"view","name":"computeMerkleFunderDepositoryAddress",
   "inputs":[{"name":"owner","type":"address"},{"name":"root","type":"bytes32"}],
   "outputs":[{"name":"merkleFunderDepository","type":"address"}]},
  {"type":"function","stateMutability":"view","name":"ownerToRootToMerkleFunderDepositoryAddress",
   "inputs":[{"name":"","type":"address"},{"name":"","type":"bytes32"}],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","stateMutability":"nonpayable","name":"withdraw",
   "inputs":[{"name":"root","type":"bytes32"},{"name":"recipient","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","stateMutability":"nonpayable","name":"withdrawAll",
   "inputs":[{"name":"root","type":"bytes32"},{"name":"recipient","type":"address"}],"outputs":[]},
  {"type":"event","name":"DeployedMerkleFunderDepository","anonymous":false,
   "inputs":[{"indexed":true,"name":"merkleFunderDepository","type":"address"},{"indexed":true,"name":"owner","type":"address"},{"indexed":false,"name":"root","type":"bytes32"}]},
  {"type":"event","name":"Funded","anonymous":false,
   "inputs":[{"indexed":true,"name":"merkleFunderDepository","type":"address"},{"indexed":false,"name":"recipient","type":"address"},{"indexed":false,"name":"amount","type":"uint256"}]},
  {"type":"event","name":"Withdrew","anonymous":false,
   "inputs":[{"indexed":true,"name":"merkleFunderDepository","type":"address"},{"indexed":false,"name":"recipient","type":"address"},{"indexed":false,"name":"amount","type":"uint256"}]}
]`

var merkleFunderABI abi.ABI

func init() {
	ab, err := abi.JSON(strings.NewReader(MerkleFunderABI))
	if err != nil {
		panic(fmt.Sprintf("merkle funder abi: %v", err))
	}
	merkleFunderABI = ab
}

// ABI returns the parsed MerkleFunder ABI.
func ABI() abi.ABI { return merkleFunderABI }

func PackGetBlockNumber() []byte {
	data, _ := merkleFunderABI.Pack("getBlockNumber")
	return data
}

// UnpackBlockNumber decodes getBlockNumber() return data.
func UnpackBlockNumber(ret []byte) (uint64, error) {
	out, err := merkleFunderABI.Unpack("getBlockNumber", ret)
	if err != nil {
		return 0, fmt.Errorf("unpack getBlockNumber: %w", err)
	}
	n, ok := out[0].(*big.Int)
	if !ok || !n.IsUint64() {
		return 0, fmt.Errorf("unpack getBlockNumber: unexpected value %v", out[0])
	}
	return n.Uint64(), nil
}

// PackFund encodes fund(owner, root, proof, recipient, low, high).
func PackFund(owner common.Address, root common.Hash, proof []common.Hash, recipient common.Address, low, high *big.Int) ([]byte, error) {
	p := make([][32]byte, len(proof))
	for i, h := range proof {
		p[i] = h
	}
	return merkleFunderABI.Pack("fund", owner, [32]byte(root), p, recipient, low, high)
}

func PackTryMulticall(calls [][]byte) ([]byte, error) {
	return merkleFunderABI.Pack("tryMulticall", calls)
}

// UnpackTryMulticall decodes the (bool[] successes, bytes[] returndata) pair.
func UnpackTryMulticall(ret []byte) ([]bool, [][]byte, error) {
	out, err := merkleFunderABI.Unpack("tryMulticall", ret)
	if err != nil {
		return nil, nil, fmt.Errorf("unpack tryMulticall: %w", err)
	}
	successes, ok := out[0].([]bool)
	if !ok {
		return nil, nil, fmt.Errorf("unpack tryMulticall: successes has type %T", out[0])
	}
	returndata, ok := out[1].([][]byte)
	if !ok {
		return nil, nil, fmt.Errorf("unpack tryMulticall: returndata has type %T", out[1])
	}
	if len(successes) != len(returndata) {
		return nil, nil, fmt.Errorf("unpack tryMulticall: %d successes for %d returndata", len(successes), len(returndata))
	}
	return successes, returndata, nil
}

// PackTryMulticallResult is the inverse of UnpackTryMulticall. Fakes and
// tests use it to stand in for the contract.
func PackTryMulticallResult(successes []bool, returndata [][]byte) ([]byte, error) {
	return merkleFunderABI.Methods["tryMulticall"].Outputs.Pack(successes, returndata)
}

func PackMulticall(calls [][]byte) ([]byte, error) {
	return merkleFunderABI.Pack("multicall", calls)
}

func PackDeployDepository(owner common.Address, root common.Hash) ([]byte, error) {
	return merkleFunderABI.Pack("deployMerkleFunderDepository", owner, [32]byte(root))
}

// UnpackFund decodes the amount a fund() call would send.
func UnpackFund(ret []byte) (*big.Int, error) {
	out, err := merkleFunderABI.Unpack("fund", ret)
	if err != nil {
		return nil, fmt.Errorf("unpack fund: %w", err)
	}
	amount, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unpack fund: amount has type %T", out[0])
	}
	return amount, nil
}

// Selector returns the 4-byte id of a MerkleFunder method.
func Selector(method string) []byte {
	m, ok := merkleFunderABI.Methods[method]
	if !ok {
		return nil
	}
	return m.ID
}
