package interfaces

import (
	"fmt"
	"math/big"
	"strings"
)

// NearDecimals is the number of yocto units per NEAR, as a power of ten.
const NearDecimals = 24

// MaxU128 bounds every on-chain balance.
var MaxU128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// ParseNearAmount converts a decimal NEAR string ("5", "0.25") to yocto units
// without going through floating point.
func ParseNearAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}

	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > NearDecimals {
		return nil, fmt.Errorf("amount %q has more than %d decimals", s, NearDecimals)
	}
	frac += strings.Repeat("0", NearDecimals-len(frac))

	digits := strings.TrimLeft(whole+frac, "0")
	if digits == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if v.Sign() < 0 || v.Cmp(MaxU128) > 0 {
		return nil, fmt.Errorf("amount %q out of range", s)
	}
	return v, nil
}

// FormatNearAmount renders yocto units as a decimal NEAR string.
func FormatNearAmount(yocto *big.Int) string {
	if yocto == nil {
		return "0"
	}
	s := yocto.String()
	for len(s) <= NearDecimals {
		s = "0" + s
	}
	pos := len(s) - NearDecimals
	frac := strings.TrimRight(s[pos:], "0")
	if frac == "" {
		return s[:pos]
	}
	return s[:pos] + "." + frac
}
