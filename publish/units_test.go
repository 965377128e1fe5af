package publish

import (
	"math/big"
	"strings"
	"testing"

	"github.com/lmittmann/w3"
	"github.com/stretchr/testify/require"
)

func TestParseUnits(t *testing.T) {
	tests := []struct {
		amount   string
		decimals uint8
		want     *big.Int
	}{
		{"1000000", 18, w3.I("1000000 ether")},
		{"0.5", 6, big.NewInt(500_000)},
		{".25", 2, big.NewInt(25)},
		{"42", 0, big.NewInt(42)},
		{" 1.000001 ", 6, big.NewInt(1_000_001)},
		{"0", 18, big.NewInt(0)},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			got, err := ParseUnits(tt.amount, tt.decimals)
			require.NoError(t, err)
			require.Zero(t, tt.want.Cmp(got), "got %s want %s", got, tt.want)
		})
	}
}

func TestParseUnitsInvalid(t *testing.T) {
	for _, amount := range []string{"", "-1", "1e6", "abc", "1.", "1.2.3", "0x10", "1.1234567", "1_000", "1__0"} {
		t.Run(amount, func(t *testing.T) {
			_, err := ParseUnits(amount, 6)
			require.Error(t, err)
		})
	}
}

func TestParseUnitsUint256Bound(t *testing.T) {
	// 2^256-1 base units is the largest amount a uint256 holds
	maxUint256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	got, err := ParseUnits(maxUint256.String(), 0)
	require.NoError(t, err)
	require.Zero(t, maxUint256.Cmp(got))

	_, err = ParseUnits(new(big.Int).Add(maxUint256, big.NewInt(1)).String(), 0)
	require.ErrorContains(t, err, "uint256")

	_, err = ParseUnits("1"+strings.Repeat("0", 60), 18)
	require.ErrorContains(t, err, "uint256")
}

func TestFormatUnits(t *testing.T) {
	require.Equal(t, "1.5", FormatUnits(w3.I("1.5 ether"), 18))
	require.Equal(t, "1000000", FormatUnits(w3.I("1000000 ether"), 18))
}
