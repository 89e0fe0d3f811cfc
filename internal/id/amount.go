package id

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	clierr "github.com/ggonzalez94/defi-intents/internal/errors"
)

var decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// ParseAmount converts a human decimal amount like "1.25" into base units.
func ParseAmount(decimal string, decimals int) (*big.Int, error) {
	decimal = strings.TrimSpace(decimal)
	if decimal == "" {
		return nil, clierr.New(clierr.CodeUsage, "amount is required")
	}
	if decimals < 0 {
		return nil, clierr.New(clierr.CodeUsage, "decimals must be >= 0")
	}
	if !decimalPattern.MatchString(decimal) {
		return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("amount %q must be in decimal form like 1.23", decimal))
	}

	parts := strings.SplitN(decimal, ".", 2)
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = strings.TrimRight(parts[1], "0")
	}
	if len(fracPart) > decimals {
		return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("decimal precision exceeds token decimals (%d)", decimals))
	}
	fracPart += strings.Repeat("0", decimals-len(fracPart))

	combined := strings.TrimLeft(intPart+fracPart, "0")
	if combined == "" {
		return nil, clierr.New(clierr.CodeUsage, "amount must be greater than zero")
	}
	n, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return nil, clierr.New(clierr.CodeUsage, "invalid decimal amount")
	}
	return n, nil
}

// FormatAmount renders base units as a trimmed decimal string.
func FormatAmount(baseUnits *big.Int, decimals int) string {
	if baseUnits == nil {
		return "0"
	}
	s := new(big.Int).Abs(baseUnits).String()
	sign := ""
	if baseUnits.Sign() < 0 {
		sign = "-"
	}
	if decimals <= 0 {
		return sign + s
	}
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}
	intPart := s[:len(s)-decimals]
	fracPart := strings.TrimRight(s[len(s)-decimals:], "0")
	if fracPart == "" {
		return sign + intPart
	}
	return sign + intPart + "." + fracPart
}

// ApplySlippage returns amount reduced by bps basis points, rounded down.
func ApplySlippage(amount *big.Int, bps int64) *big.Int {
	if amount == nil {
		return big.NewInt(0)
	}
	if bps <= 0 {
		return new(big.Int).Set(amount)
	}
	if bps >= 10_000 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, big.NewInt(10_000-bps))
	return out.Quo(out, big.NewInt(10_000))
}
