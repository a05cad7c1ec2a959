package contracts

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// NoRevertString is returned whenever return data cannot be decoded.
const NoRevertString = "No revert string"

var (
	errorSelector = []byte{0x08, 0xc3, 0x79, 0xa0} // Error(string)
	panicSelector = []byte{0x4e, 0x48, 0x7b, 0x71} // Panic(uint256)
)

var (
	stringArgs  abi.Arguments
	uint256Args abi.Arguments
)

func init() {
	stringTy, _ := abi.NewType("string", "", nil)
	uint256Ty, _ := abi.NewType("uint256", "", nil)
	stringArgs = abi.Arguments{{Type: stringTy}}
	uint256Args = abi.Arguments{{Type: uint256Ty}}
}

// RevertDecoder turns failed-call return data into something an operator can
// read. Error(string) is tried first, then Panic(uint256), then the custom
// errors of the configured ABIs.
type RevertDecoder struct {
	custom []abi.ABI
}

func NewRevertDecoder(abis ...abi.ABI) *RevertDecoder {
	return &RevertDecoder{custom: abis}
}

var defaultDecoder = NewRevertDecoder(merkleFunderABI)

// DecodeRevert decodes with the MerkleFunder ABI. It never fails.
func DecodeRevert(returndata []byte) string {
	return defaultDecoder.Decode(returndata)
}

func (d *RevertDecoder) Decode(returndata []byte) (reason string) {
	defer func() {
		if recover() != nil {
			reason = NoRevertString
		}
	}()
	if len(returndata) < 4 {
		return NoRevertString
	}
	sel, payload := returndata[:4], returndata[4:]
	switch {
	case bytes.Equal(sel, errorSelector):
		if s, ok := unpackString(payload); ok {
			return s
		}
		return NoRevertString
	case bytes.Equal(sel, panicSelector):
		out, err := uint256Args.Unpack(payload)
		if err != nil || len(out) != 1 {
			return NoRevertString
		}
		code, _ := out[0].(*big.Int)
		return fmt.Sprintf("panic: 0x%x", code)
	}
	if s, ok := d.decodeCustom(sel, payload); ok {
		return s
	}
	return NoRevertString
}

func unpackString(payload []byte) (string, bool) {
	out, err := stringArgs.Unpack(payload)
	if err != nil || len(out) != 1 {
		return "", false
	}
	s, ok := out[0].(string)
	return s, ok
}

func (d *RevertDecoder) decodeCustom(sel, payload []byte) (string, bool) {
	for _, a := range d.custom {
		for name, e := range a.Errors {
			if !bytes.Equal(e.ID[:4], sel) {
				continue
			}
			vs, err := e.Inputs.Unpack(payload)
			if err != nil {
				continue
			}
			args := make([]string, len(vs))
			for i, v := range vs {
				args[i] = fmt.Sprintf("%v", v)
			}
			return fmt.Sprintf("%s(%s)", name, strings.Join(args, ", ")), true
		}
	}
	return "", false
}

// ErrorReason extracts a readable reason from an RPC error. Nodes attach the
// revert payload as error data; when it is missing the message is trimmed to
// the "execution reverted" part.
func ErrorReason(err error) string {
	if err == nil {
		return ""
	}
	var de rpc.DataError
	if errors.As(err, &de) {
		if s, ok := de.ErrorData().(string); ok {
			if data, derr := hexutil.Decode(s); derr == nil {
				if reason := DecodeRevert(data); reason != NoRevertString {
					return reason
				}
			}
		}
	}
	s := err.Error()
	if i := strings.Index(s, "execution reverted"); i >= 0 {
		return s[i:]
	}
	return s
}
