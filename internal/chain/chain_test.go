package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/merkle-funder/internal/chain/chaintest"
)

// Hardhat account #0.
const testKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestRetryingProviderRetriesRateLimits(t *testing.T) {
	fake := &chaintest.Provider{ID: 5, Head: 10, Failures: map[string]int{"BlockNumber": 2}}
	var retried []uint
	p := WithRetry(fake, Delay(time.Millisecond), OnRetry(func(method string, n uint, err error) {
		require.Equal(t, "eth_blockNumber", method)
		require.True(t, IsRateLimitError(err))
		retried = append(retried, n)
	}))

	n, err := p.BlockNumber(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(10), n)
	require.Equal(t, 3, fake.Calls("BlockNumber"))
	require.Equal(t, []uint{0, 1}, retried)
}

func TestRetryingProviderGivesUp(t *testing.T) {
	fake := &chaintest.Provider{Failures: map[string]int{"ChainID": 5}}
	p := WithRetry(fake, Attempts(2), Delay(time.Millisecond))
	_, err := p.ChainID(context.Background())
	require.Error(t, err)
	require.True(t, IsRateLimitError(err))
	require.Equal(t, 2, fake.Calls("ChainID"))
}

func TestRetryingProviderDoesNotRetryReverts(t *testing.T) {
	fake := &chaintest.Provider{CallFn: func(ethereum.CallMsg, *big.Int) ([]byte, error) {
		return nil, errors.New("execution reverted: Invalid proof")
	}}
	p := WithRetry(fake, Delay(time.Millisecond))
	_, err := p.CallContract(context.Background(), ethereum.CallMsg{}, nil)
	require.ErrorContains(t, err, "Invalid proof")
	require.Equal(t, 1, fake.Calls("CallContract"))
}

func TestRetryingProviderSendsOnce(t *testing.T) {
	fake := &chaintest.Provider{Failures: map[string]int{"SendTransaction": 1}}
	p := WithRetry(fake, Delay(time.Millisecond))
	err := p.SendTransaction(context.Background(), types.NewTx(&types.LegacyTx{}))
	require.Error(t, err)
	require.Equal(t, 1, fake.Calls("SendTransaction"))
	require.Empty(t, fake.SentTxs())
}

func TestRetryingProviderHonoursContext(t *testing.T) {
	fake := &chaintest.Provider{Failures: map[string]int{"BlockNumber": 10}}
	p := WithRetry(fake, Attempts(10), Delay(time.Hour))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.BlockNumber(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHeightResolverFor(t *testing.T) {
	fake := &chaintest.Provider{Head: 900}
	ctx := context.Background()

	for _, id := range []uint64{42161, 42170} {
		h, err := HeightResolverFor(id).Height(ctx, fake, 17)
		require.NoError(t, err)
		require.Equal(t, uint64(900), h)
	}
	for _, id := range []uint64{1, 10, 137, 421614} {
		h, err := HeightResolverFor(id).Height(ctx, fake, 17)
		require.NoError(t, err)
		require.Equal(t, uint64(17), h)
	}
}

func TestSignerBuildsAndSigns(t *testing.T) {
	s, err := NewSigner(testKey, 31337)
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), s.Address())

	to := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	tx := s.BuildTx(TxParams{Nonce: 4, To: to, Data: []byte{1}, GasLimit: 21000, GasTipCap: big.NewInt(1), GasFeeCap: big.NewInt(2)})
	require.Equal(t, uint8(types.DynamicFeeTxType), tx.Type())
	signed, err := s.Sign(tx)
	require.NoError(t, err)
	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(31337)), signed)
	require.NoError(t, err)
	require.Equal(t, s.Address(), from)
	require.Equal(t, uint64(4), signed.Nonce())
	require.NotEmpty(t, TxHex(signed))

	legacy := s.BuildTx(TxParams{Nonce: 1, To: to, GasLimit: 21000, GasPrice: big.NewInt(7)})
	require.Equal(t, uint8(types.LegacyTxType), legacy.Type())
	signed, err = s.Sign(legacy)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(31337), signed.ChainId())
}

func TestNewSignerRejectsBadKeys(t *testing.T) {
	_, err := NewSigner("  ", 1)
	require.ErrorIs(t, err, ErrEmptyKey)
	_, err = NewSigner("0x1234", 1)
	require.Error(t, err)
}

func TestFriendlyError(t *testing.T) {
	require.Equal(t, "insufficient funds for gas", FriendlyError("insufficient funds for gas * price + value"))
	require.Equal(t, "nonce too low", FriendlyError("Nonce too low: next nonce 5"))
	require.Equal(t, "network/DNS error", FriendlyError("Post \"http://x\": dial tcp 127.0.0.1:1: connect: refused"))
	require.Equal(t, "something else", FriendlyError("something else"))
}

type limitErr struct{ code int }

func (e limitErr) Error() string  { return "limit exceeded" }
func (e limitErr) ErrorCode() int { return e.code }

func TestIsRateLimitError(t *testing.T) {
	require.True(t, IsRateLimitError(errors.New("429 Too Many Requests")))
	require.True(t, IsRateLimitError(fmt.Errorf("eth_call: %w", rpc.HTTPError{StatusCode: http.StatusTooManyRequests, Status: "429"})))
	require.True(t, IsRateLimitError(limitErr{code: -32005}))
	require.True(t, IsRateLimitError(errors.New(`{"code":-32005,"message":"request rate exceeded"}`)))

	require.False(t, IsRateLimitError(nil))
	require.False(t, IsRateLimitError(limitErr{code: -32000}))
	require.False(t, IsRateLimitError(rpc.HTTPError{StatusCode: http.StatusBadGateway, Status: "502 Bad Gateway"}))
	require.False(t, IsRateLimitError(errors.New("header for block 14290 not found")))
	require.False(t, IsRateLimitError(errors.New("transaction 0x4291f0aa not found")))
	require.False(t, IsRateLimitError(errors.New("execution reverted: amount 429")))
}
