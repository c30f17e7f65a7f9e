// Package chain holds network-side helpers shared by the RPC client and the
// deploy service: retries, rate limiting, wei units, gas scaling and nonces.
package chain

import (
	"math/big"
	"strings"

	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

// Unit is a named power of ten of wei.
type Unit struct {
	Name     string
	Decimals int
}

// Common units.
//
//nolint:gochecknoglobals // Unit table
var (
	Wei   = Unit{Name: "wei", Decimals: 0}
	Gwei  = Unit{Name: "gwei", Decimals: 9}
	Ether = Unit{Name: "ether", Decimals: 18}

	// Suffix match order: "gwei" before "wei", "ether" before "eth".
	units = []Unit{Gwei, Ether, {Name: "eth", Decimals: 18}, Wei}
)

// ParseWei parses an amount such as "1000", "0x3e8", "20gwei", "20 gwei" or
// "1.5ether" into wei. Amounts finer than one wei are rejected.
func ParseWei(s string) (*big.Int, error) {
	raw := s
	s = strings.ToLower(strings.TrimSpace(s))
	if strings.HasPrefix(s, "0x") {
		n, ok := new(big.Int).SetString(s[2:], 16)
		if !ok {
			return nil, invalidAmount(raw)
		}
		return n, nil
	}

	unit := Wei
	for _, u := range units {
		if strings.HasSuffix(s, u.Name) {
			unit = u
			s = strings.TrimSpace(strings.TrimSuffix(s, u.Name))
			break
		}
	}

	amount, err := ParseDecimalAmount(s, unit.Decimals)
	if err != nil {
		return nil, invalidAmount(raw)
	}
	return amount, nil
}

// ParseDecimalAmount parses a non-negative decimal string scaled by
// 10^decimalPlaces. "1.5" with 18 decimals returns 1500000000000000000.
// Digits beyond decimalPlaces must be zero.
func ParseDecimalAmount(amount string, decimalPlaces int) (*big.Int, error) {
	if amount == "" || strings.HasPrefix(amount, "-") || strings.HasPrefix(amount, "+") {
		return nil, deployerr.ErrInvalidInput
	}

	intPart, decPart, hasDot := strings.Cut(amount, ".")
	if hasDot && strings.Contains(decPart, ".") {
		return nil, deployerr.ErrInvalidInput
	}
	if intPart == "" {
		if decPart == "" {
			return nil, deployerr.ErrInvalidInput
		}
		intPart = "0"
	}
	for _, c := range intPart + decPart {
		if c < '0' || c > '9' {
			return nil, deployerr.ErrInvalidInput
		}
	}

	if len(decPart) > decimalPlaces {
		if strings.Trim(decPart[decimalPlaces:], "0") != "" {
			return nil, deployerr.ErrInvalidInput
		}
		decPart = decPart[:decimalPlaces]
	}
	decPart += strings.Repeat("0", decimalPlaces-len(decPart))

	result, ok := new(big.Int).SetString(intPart+decPart, 10)
	if !ok {
		return nil, deployerr.ErrInvalidInput
	}
	return result, nil
}

// FormatUnits renders wei in the given unit, trimming trailing zeros.
// 1500000000000000000 in Ether is "1.5"; 2 in Gwei is "0.000000002".
func FormatUnits(amount *big.Int, unit Unit) string {
	if amount == nil {
		return "0"
	}
	str := new(big.Int).Abs(amount).String()
	sign := ""
	if amount.Sign() < 0 {
		sign = "-"
	}
	if unit.Decimals == 0 {
		return sign + str
	}

	if len(str) <= unit.Decimals {
		str = strings.Repeat("0", unit.Decimals-len(str)+1) + str
	}
	point := len(str) - unit.Decimals
	whole, frac := str[:point], strings.TrimRight(str[point:], "0")
	if frac == "" {
		return sign + whole
	}
	return sign + whole + "." + frac
}

func invalidAmount(s string) error {
	return deployerr.WithDetails(deployerr.ErrInvalidInput, map[string]string{
		"amount":   s,
		"expected": "integer wei, 0x-hex, or a decimal with a wei/gwei/ether suffix",
	})
}
