package contracts

import (
	"errors"
	"math/big"
	"math/rand"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

var (
	testFactory  = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	testOwner    = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	testBytecode = common.FromHex("0x60806040523480156100105760006000fd5b50610150806100206000396000f3fe")
)

func encodeErrorString(t *testing.T, s string) []byte {
	t.Helper()
	payload, err := stringArgs.Pack(s)
	require.NoError(t, err)
	return append(append([]byte{}, errorSelector...), payload...)
}

func TestDepositoryAddressIsDeterministic(t *testing.T) {
	root := crypto.Keccak256Hash([]byte("root"))
	a, err := DepositoryAddress(testFactory, testOwner, root, testBytecode)
	require.NoError(t, err)
	b, err := DepositoryAddress(testFactory, testOwner, root, testBytecode)
	require.NoError(t, err)
	require.Equal(t, a, b)

	initCode, err := DepositoryInitCode(testBytecode, testOwner, root)
	require.NoError(t, err)
	require.Equal(t, testBytecode, initCode[:len(testBytecode)])
	require.Equal(t, common.LeftPadBytes(testOwner.Bytes(), 32), initCode[len(testBytecode):len(testBytecode)+32])
	require.Equal(t, root.Bytes(), initCode[len(testBytecode)+32:])

	// keccak256(0xff ++ factory ++ salt ++ keccak256(initCode))[12:]
	raw := append([]byte{0xff}, testFactory.Bytes()...)
	raw = append(raw, make([]byte, 32)...)
	raw = append(raw, crypto.Keccak256(initCode)...)
	require.Equal(t, common.BytesToAddress(crypto.Keccak256(raw)[12:]), a)
}

func TestDepositoryAddressIsUnique(t *testing.T) {
	seen := map[common.Address]struct{}{}
	owners := []common.Address{testOwner, common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")}
	for _, owner := range owners {
		for i := 0; i < 10; i++ {
			root := crypto.Keccak256Hash(big.NewInt(int64(i)).Bytes())
			addr, err := DepositoryAddress(testFactory, owner, root, testBytecode)
			require.NoError(t, err)
			_, dup := seen[addr]
			require.False(t, dup)
			seen[addr] = struct{}{}
		}
	}

	_, err := DepositoryAddress(testFactory, testOwner, common.Hash{}, nil)
	require.ErrorIs(t, err, ErrNoCreationCode)
}

func TestDecodeRevertRoundTrip(t *testing.T) {
	for _, s := range []string{"", "Balance not low enough", "Invalid proof", strings.Repeat("x", 100), "ünïcødé"} {
		require.Equal(t, s, DecodeRevert(encodeErrorString(t, s)))
	}
}

func TestDecodeRevertGarbage(t *testing.T) {
	require.Equal(t, NoRevertString, DecodeRevert(nil))
	require.Equal(t, NoRevertString, DecodeRevert([]byte{0x08, 0xc3}))
	require.Equal(t, NoRevertString, DecodeRevert(errorSelector))
	require.Equal(t, NoRevertString, DecodeRevert(common.FromHex("0xdeadbeef0000")))

	truncated := encodeErrorString(t, "Amount zero")
	require.Equal(t, NoRevertString, DecodeRevert(truncated[:len(truncated)-40]))

	r := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		buf := make([]byte, r.Intn(200))
		r.Read(buf)
		if i%2 == 0 && len(buf) >= 4 {
			copy(buf, errorSelector)
		}
		require.NotPanics(t, func() { DecodeRevert(buf) })
	}
}

func TestDecodeRevertPanicAndCustom(t *testing.T) {
	payload, err := uint256Args.Pack(big.NewInt(0x11))
	require.NoError(t, err)
	require.Equal(t, "panic: 0x11", DecodeRevert(append(append([]byte{}, panicSelector...), payload...)))

	custom, err := abi.JSON(strings.NewReader(`[{"type":"error","name":"InsufficientBalance","inputs":[{"name":"have","type":"uint256"},{"name":"want","type":"uint256"}]}]`))
	require.NoError(t, err)
	e := custom.Errors["InsufficientBalance"]
	args, err := e.Inputs.Pack(big.NewInt(1), big.NewInt(2))
	require.NoError(t, err)
	data := append(append([]byte{}, e.ID[:4]...), args...)

	require.Equal(t, NoRevertString, DecodeRevert(data))
	require.Equal(t, "InsufficientBalance(1, 2)", NewRevertDecoder(custom).Decode(data))
}

type dataError struct{ data string }

func (e dataError) Error() string          { return "execution reverted: something" }
func (e dataError) ErrorData() interface{} { return e.data }

func TestErrorReason(t *testing.T) {
	require.Equal(t, "", ErrorReason(nil))
	require.Equal(t, "Invalid proof", ErrorReason(dataError{data: hexutil.Encode(encodeErrorString(t, "Invalid proof"))}))
	require.Equal(t, "execution reverted: something", ErrorReason(dataError{data: "0x"}))
	require.Equal(t, "execution reverted", ErrorReason(errors.New("call failed: execution reverted")))
	require.Equal(t, "dial tcp: refused", ErrorReason(errors.New("dial tcp: refused")))
}

func TestTryMulticallCodec(t *testing.T) {
	calls := [][]byte{PackGetBlockNumber(), {0x01, 0x02}}
	data, err := PackTryMulticall(calls)
	require.NoError(t, err)
	require.Equal(t, Selector("tryMulticall"), data[:4])

	ret, err := PackTryMulticallResult([]bool{true, false}, [][]byte{common.LeftPadBytes([]byte{0x2a}, 32), encodeErrorString(t, "nope")})
	require.NoError(t, err)
	successes, returndata, err := UnpackTryMulticall(ret)
	require.NoError(t, err)
	require.Equal(t, []bool{true, false}, successes)

	n, err := UnpackBlockNumber(returndata[0])
	require.NoError(t, err)
	require.Equal(t, uint64(42), n)
	require.Equal(t, "nope", DecodeRevert(returndata[1]))

	_, _, err = UnpackTryMulticall([]byte{0x01})
	require.Error(t, err)
}

func TestPackFund(t *testing.T) {
	root := crypto.Keccak256Hash([]byte("root"))
	proof := []common.Hash{crypto.Keccak256Hash([]byte("a")), crypto.Keccak256Hash([]byte("b"))}
	data, err := PackFund(testOwner, root, proof, testFactory, big.NewInt(1), big.NewInt(2))
	require.NoError(t, err)

	method := ABI().Methods["fund"]
	require.Equal(t, method.ID, data[:4])
	args, err := method.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	require.Equal(t, testOwner, args[0])
	require.Equal(t, [32]byte(root), args[1])
	require.Equal(t, [][32]byte{proof[0], proof[1]}, args[2])
	require.Equal(t, testFactory, args[3])
}
