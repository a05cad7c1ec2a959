package units

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestToBase(t *testing.T) {
	tests := []struct {
		value string
		unit  Unit
		want  string
	}{
		{"1", Wei, "1"},
		{"1", Kwei, "1000"},
		{"1", Mwei, "1000000"},
		{"10", Gwei, "10000000000"},
		{"500", Szabo, "500000000000000"},
		{"2", Finney, "2000000000000000"},
		{"1.5", Ether, "1500000000000000000"},
		{"0", Ether, "0"},
	}
	for _, tt := range tests {
		got, err := ToBase(decimal.RequireFromString(tt.value), tt.unit)
		require.NoError(t, err, "%s %s", tt.value, tt.unit)
		require.Equal(t, tt.want, got.String(), "%s %s", tt.value, tt.unit)
	}
}

func TestToBaseRejects(t *testing.T) {
	_, err := ToBase(decimal.RequireFromString("1.5"), Wei)
	require.ErrorIs(t, err, ErrTooManyDecimals)

	_, err = ToBase(decimal.RequireFromString("0.0000000001"), Gwei)
	require.ErrorIs(t, err, ErrTooManyDecimals)

	_, err = ToBase(decimal.RequireFromString("-1"), Ether)
	require.ErrorIs(t, err, ErrNegative)

	_, err = ToBase(decimal.RequireFromString("1"), Unit("tether"))
	require.ErrorIs(t, err, ErrUnknownUnit)

	maxUint := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	got, err := ToBase(decimal.NewFromBigInt(maxUint, 0), Wei)
	require.NoError(t, err)
	require.Zero(t, maxUint.Cmp(got))

	_, err = ToBase(decimal.NewFromBigInt(new(big.Int).Add(maxUint, big.NewInt(1)), 0), Wei)
	require.ErrorIs(t, err, ErrOverflowUint256)
}

func TestParseUnit(t *testing.T) {
	for _, u := range Names {
		got, err := ParseUnit(string(u))
		require.NoError(t, err)
		require.Equal(t, u, got)
	}
	got, err := ParseUnit(" GWEI ")
	require.NoError(t, err)
	require.Equal(t, Gwei, got)

	_, err = ParseUnit("satoshi")
	require.ErrorIs(t, err, ErrUnknownUnit)
}

func TestAmountJSON(t *testing.T) {
	var a Amount
	require.NoError(t, json.Unmarshal([]byte(`{"value": 0.25, "unit": "ether"}`), &a))
	wei, err := a.Wei()
	require.NoError(t, err)
	require.Equal(t, "250000000000000000", wei.String())
	require.Equal(t, "0.25 ether", a.String())
}

func TestFormat(t *testing.T) {
	require.Equal(t, "1.5", Format(big.NewInt(1_500_000_000), Gwei))
	require.Equal(t, "0", Format(nil, Ether))
	require.Equal(t, "1.000000", FormatETH(big.NewInt(1_000_000_000_000_000_000)))
	require.Equal(t, "3.00", FormatGwei(GweiToWei(3)))
}
