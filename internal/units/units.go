package units

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Unit is a named ether denomination.
type Unit string

const (
	Wei    Unit = "wei"
	Kwei   Unit = "kwei"
	Mwei   Unit = "mwei"
	Gwei   Unit = "gwei"
	Szabo  Unit = "szabo"
	Finney Unit = "finney"
	Ether  Unit = "ether"
)

// Names lists the supported units from smallest to largest.
var Names = []Unit{Wei, Kwei, Mwei, Gwei, Szabo, Finney, Ether}

var decimals = map[Unit]int32{
	Wei:    0,
	Kwei:   3,
	Mwei:   6,
	Gwei:   9,
	Szabo:  12,
	Finney: 15,
	Ether:  18,
}

var (
	ErrUnknownUnit     = errors.New("unknown unit")
	ErrNegative        = errors.New("negative value")
	ErrTooManyDecimals = errors.New("fractional component exceeds decimals")
	ErrOverflowUint256 = errors.New("value overflows uint256")
)

// ParseUnit accepts a unit name in any letter case.
func ParseUnit(s string) (Unit, error) {
	u := Unit(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := decimals[u]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownUnit, s)
	}
	return u, nil
}

func (u Unit) Valid() bool {
	_, ok := decimals[u]
	return ok
}

// Decimals is the power of ten one unit is worth in wei.
func (u Unit) Decimals() int32 { return decimals[u] }

// Amount is a (value, unit) pair as written by operators, e.g. {10, "gwei"}.
type Amount struct {
	Value decimal.Decimal `json:"value"`
	Unit  Unit            `json:"unit"`
}

func NewAmount(value string, unit Unit) (Amount, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Amount{}, fmt.Errorf("parse %q: %w", value, err)
	}
	return Amount{Value: d, Unit: unit}, nil
}

func MustAmount(value string, unit Unit) Amount {
	a, err := NewAmount(value, unit)
	if err != nil {
		panic(err)
	}
	return a
}

// Wei converts the amount into base units.
func (a Amount) Wei() (*big.Int, error) {
	return ToBase(a.Value, a.Unit)
}

func (a Amount) String() string {
	return a.Value.String() + " " + string(a.Unit)
}

// ToBase converts value expressed in unit into an integer wei amount. The
// result is exact: values with more fractional digits than the unit allows
// are rejected rather than rounded, and the result must fit in a uint256.
func ToBase(value decimal.Decimal, unit Unit) (*big.Int, error) {
	if !unit.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownUnit, string(unit))
	}
	if value.IsNegative() {
		return nil, fmt.Errorf("%w: %s", ErrNegative, value)
	}
	shifted := value.Shift(unit.Decimals())
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("%w: %s %s", ErrTooManyDecimals, value, unit)
	}
	wei := shifted.BigInt()
	if _, overflow := uint256.FromBig(wei); overflow {
		return nil, fmt.Errorf("%w: %s %s", ErrOverflowUint256, value, unit)
	}
	return wei, nil
}
