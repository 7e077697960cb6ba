// Package quantize rounds prices and sizes to venue-mandated tick/step
// granularity. All functions are pure.
package quantize

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/helios-quant/pairtrade/pkg/errors"
)

var one = decimal.NewFromInt(1)

// Price rounds raw to the venue tick size. A tick with d fractional digits
// rounds raw half-up to d digits; a tick of 1 or more leaves raw untouched.
func Price(raw, tickSize decimal.Decimal) (decimal.Decimal, error) {
	if !tickSize.IsPositive() {
		return decimal.Decimal{}, errors.Newf(errors.ErrCodeInvalidTickSpec, "tick size must be positive, got %s", tickSize)
	}

	if tickSize.GreaterThanOrEqual(one) {
		return raw, nil
	}

	return raw.Round(int32(fractionalDigits(tickSize))), nil
}

// Size rounds raw to the venue step size. A step below 1 rounds half-up to the
// step's fractional digit count. A step of 1 or more truncates raw down to a
// multiple of 10^(digits(step)-1) — the venue's coarse lot-size rule, which is
// deliberately not a nearest-step rounder (23 at step 10 is 20, and so is 27).
func Size(raw, stepSize decimal.Decimal) (decimal.Decimal, error) {
	if !stepSize.IsPositive() {
		return decimal.Decimal{}, errors.Newf(errors.ErrCodeInvalidTickSpec, "step size must be positive, got %s", stepSize)
	}

	if stepSize.LessThan(one) {
		return raw.Round(int32(fractionalDigits(stepSize))), nil
	}

	magnitude := len(stepSize.Floor().String()) - 1

	return raw.RoundDown(int32(-magnitude)), nil
}

// fractionalDigits counts the significant fractional digits of d, ignoring
// trailing zeros ("0.010" has 2, not 3).
func fractionalDigits(d decimal.Decimal) int {
	s := d.Abs().String()

	i := strings.IndexByte(s, '.')
	if i < 0 {
		return 0
	}

	return len(strings.TrimRight(s[i+1:], "0"))
}
