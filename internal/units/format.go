package units

import (
	"math/big"

	"github.com/shopspring/decimal"
)

func GweiToWei(g int64) *big.Int {
	x := new(big.Int).SetInt64(g)
	return x.Mul(x, big.NewInt(1_000_000_000))
}

// Human-readable helpers (ETH/gwei).
func FormatETH(x *big.Int) string {
	if x == nil {
		return "0"
	}
	r := new(big.Rat).SetFrac(new(big.Int).Set(x), big.NewInt(1_000_000_000_000_000_000))
	return r.FloatString(6)
}

func FormatGwei(x *big.Int) string {
	if x == nil {
		return "0"
	}
	r := new(big.Rat).SetFrac(new(big.Int).Set(x), big.NewInt(1_000_000_000))
	return r.FloatString(2)
}

// Format renders a wei amount in unit without losing precision.
func Format(wei *big.Int, unit Unit) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -unit.Decimals()).String()
}
