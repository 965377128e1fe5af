package publish

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/lmittmann/w3"
)

// ParseUnits converts a decimal amount such as "1000000" or "0.5" into base
// units for a token with the given number of decimals.
func ParseUnits(amount string, decimals uint8) (*big.Int, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return nil, fmt.Errorf("invalid amount %q", amount)
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if hasFrac && frac == "" {
		return nil, fmt.Errorf("invalid amount %q", amount)
	}
	if len(frac) > int(decimals) {
		return nil, fmt.Errorf("amount %q has more than %d decimals", amount, decimals)
	}
	if !isDigits(whole) || !isDigits(frac) {
		return nil, fmt.Errorf("invalid amount %q", amount)
	}

	digits := whole + frac + strings.Repeat("0", int(decimals)-len(frac))
	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", amount)
	}
	if v.BitLen() > 256 {
		return nil, fmt.Errorf("amount %q does not fit in uint256", amount)
	}
	return v, nil
}

func FormatUnits(v *big.Int, decimals uint8) string {
	return w3.FromWei(v, decimals)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
