package grading

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const scorePlaces = 2

var Hundred = decimal.NewFromInt(100)

// ValidateWeight accepts 0..100 with at most two fractional digits.
func ValidateWeight(w decimal.Decimal) error {
	if !inPercentRange(w) {
		return ErrInvalidWeight
	}
	return nil
}

// ValidateScore accepts 0..100 with at most two fractional digits.
func ValidateScore(s decimal.Decimal) error {
	if !inPercentRange(s) {
		return ErrInvalidScore
	}
	return nil
}

// RequireWeight unwraps a weight read from a request. An omitted weight is
// rejected rather than read as 0.
func RequireWeight(w decimal.NullDecimal) (decimal.Decimal, error) {
	if !w.Valid {
		return decimal.Zero, fmt.Errorf("%w: weight is required", ErrInvalidWeight)
	}
	return w.Decimal, ValidateWeight(w.Decimal)
}

// RequireScore is RequireWeight for raw scores.
func RequireScore(s decimal.NullDecimal) (decimal.Decimal, error) {
	if !s.Valid {
		return decimal.Zero, fmt.Errorf("%w: score is required", ErrInvalidScore)
	}
	return s.Decimal, ValidateScore(s.Decimal)
}

func inPercentRange(d decimal.Decimal) bool {
	if d.IsNegative() || d.GreaterThan(Hundred) {
		return false
	}
	return d.Equal(d.Truncate(scorePlaces))
}

// RoundScore rounds half-up to two places. Inputs are never negative, so
// decimal's half-away-from-zero rounding is half-up here.
func RoundScore(d decimal.Decimal) decimal.Decimal {
	return d.Round(scorePlaces)
}

// contribution is value × weight / 100, exact.
func contribution(value, weight decimal.Decimal) decimal.Decimal {
	return value.Mul(weight).Div(Hundred)
}

func sumWeights(ws []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, w := range ws {
		total = total.Add(w)
	}
	return total
}
