// Package units converts between user-entered decimal amounts and the integer
// smallest-unit amounts contracts expect.
package units

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Policy selects how a user-entered amount maps to smallest units.
type Policy string

const (
	// PolicyScaled multiplies the amount by 10^decimals.
	PolicyScaled Policy = "scaled"
	// PolicyRaw treats the amount as already expressed in smallest units.
	PolicyRaw Policy = "raw"
)

var ErrInvalidAmount = errors.New("units: invalid amount")

// ParsePolicy validates a policy name. Empty means PolicyScaled.
func ParsePolicy(input string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(input))) {
	case "", PolicyScaled:
		return PolicyScaled, nil
	case PolicyRaw:
		return PolicyRaw, nil
	default:
		return "", fmt.Errorf("unknown scaling policy %q", input)
	}
}

// ToBaseUnits converts amount into the token's smallest unit under policy.
// Sign is preserved; callers decide whether non-positive amounts are allowed.
func ToBaseUnits(amount string, decimals uint8, policy Policy) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}

	switch policy {
	case PolicyScaled, "":
		d = d.Shift(int32(decimals))
	case PolicyRaw:
	default:
		return nil, fmt.Errorf("unknown scaling policy %q", policy)
	}

	if !d.IsInteger() {
		return nil, fmt.Errorf("%w: %q has more than %d decimal places", ErrInvalidAmount, amount, decimals)
	}
	return d.BigInt(), nil
}

// FormatUnits renders a smallest-unit value as a decimal string.
func FormatUnits(value *big.Int, decimals uint8) string {
	if value == nil {
		return ""
	}
	return decimal.NewFromBigInt(value, -int32(decimals)).String()
}

// Ratio returns num/den as a decimal string with the given precision, or "0"
// when den is zero.
func Ratio(num, den *big.Int, places int32) string {
	if num == nil || den == nil || den.Sign() == 0 {
		return "0"
	}
	return decimal.NewFromBigInt(num, 0).DivRound(decimal.NewFromBigInt(den, 0), places).String()
}
