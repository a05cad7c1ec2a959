package contracts

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrNoCreationCode = errors.New("depository creation bytecode is empty")

var constructorArgs abi.Arguments

func init() {
	addressTy, _ := abi.NewType("address", "", nil)
	bytes32Ty, _ := abi.NewType("bytes32", "", nil)
	constructorArgs = abi.Arguments{{Type: addressTy}, {Type: bytes32Ty}}
}

// DepositoryInitCode is the depository creation bytecode followed by the
// abi-encoded constructor arguments (owner, root).
func DepositoryInitCode(creationCode []byte, owner common.Address, root common.Hash) ([]byte, error) {
	if len(creationCode) == 0 {
		return nil, ErrNoCreationCode
	}
	args, err := constructorArgs.Pack(owner, [32]byte(root))
	if err != nil {
		return nil, fmt.Errorf("pack constructor args: %w", err)
	}
	initCode := make([]byte, 0, len(creationCode)+len(args))
	initCode = append(initCode, creationCode...)
	return append(initCode, args...), nil
}

// DepositoryAddress predicts where the factory deploys the depository of
// (owner, root). It is a pure CREATE2 computation with a zero salt and says
// nothing about whether the contract exists yet. creationCode must be the
// exact bytecode the deployed factory uses, otherwise the address is wrong.
func DepositoryAddress(factory, owner common.Address, root common.Hash, creationCode []byte) (common.Address, error) {
	initCode, err := DepositoryInitCode(creationCode, owner, root)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.CreateAddress2(factory, [32]byte{}, crypto.Keccak256(initCode)), nil
}
