package chain

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var ErrEmptyKey = errors.New("empty private key")

// Signer holds the funder wallet for one chain.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
}

// NewSigner parses a hex private key, with or without 0x.
func NewSigner(hexKey string, chainID uint64) (*Signer, error) {
	h := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if h == "" {
		return nil, ErrEmptyKey
	}
	key, err := gethcrypto.HexToECDSA(h)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &Signer{
		key:     key,
		address: gethcrypto.PubkeyToAddress(key.PublicKey),
		chainID: new(big.Int).SetUint64(chainID),
	}, nil
}

func (s *Signer) Address() common.Address { return s.address }

func (s *Signer) ChainID() *big.Int { return new(big.Int).Set(s.chainID) }

func (s *Signer) Sign(tx *types.Transaction) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.key)
}

// TxParams carries everything needed to build a transaction except the
// signature.
type TxParams struct {
	Nonce    uint64
	To       common.Address
	Value    *big.Int
	Data     []byte
	GasLimit uint64
	// Legacy pricing when GasPrice is set, EIP-1559 otherwise.
	GasPrice  *big.Int
	GasTipCap *big.Int
	GasFeeCap *big.Int
}

func (s *Signer) BuildTx(p TxParams) *types.Transaction {
	to := p.To
	value := big.NewInt(0)
	if p.Value != nil {
		value = new(big.Int).Set(p.Value)
	}
	if p.GasPrice != nil {
		return types.NewTx(&types.LegacyTx{
			Nonce:    p.Nonce,
			GasPrice: new(big.Int).Set(p.GasPrice),
			Gas:      p.GasLimit,
			To:       &to,
			Value:    value,
			Data:     p.Data,
		})
	}
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   s.ChainID(),
		Nonce:     p.Nonce,
		Gas:       p.GasLimit,
		GasTipCap: new(big.Int).Set(p.GasTipCap),
		GasFeeCap: new(big.Int).Set(p.GasFeeCap),
		To:        &to,
		Value:     value,
		Data:      p.Data,
	})
}

// TxHex returns the raw signed transaction.
func TxHex(tx *types.Transaction) string {
	b, err := tx.MarshalBinary()
	if err != nil {
		return ""
	}
	return hexutil.Encode(b)
}
