/*
wastage.go - Loss classification against allowance bands

PURPOSE:
  One pure function classifies every loss the engine sees: storage loss
  (ledger-expected vs dip-measured) and production loss (metered draw vs
  bottled output). Callers are never special-cased.

CLASSIFICATION:
  loss            = expected - observed      (negative = gain, reported as-is)
  loss_percentage = loss / expected × 100    (0 when expected is not positive)
  within          = loss_percentage <= allowable percentage
  critical        = loss_percentage >  1.0   (fixed, independent of allowance)

LEDGER LINES:
  A negative loss never enters a debit line. DebitLoss() clamps it to zero
  and CreditGain() books the magnitude as a gain instead.

EXAMPLE:
  Classify(1000, 985, 0.1) => loss 15, 1.5%, within=false, critical=true
  Classify(0, 0, 0.1)      => loss 0, 0%, within=true, critical=false
*/
package spirit

import "github.com/shopspring/decimal"

// CriticalLossPct is the fixed critical threshold. It is deliberately not
// derived from the configurable allowance.
var CriticalLossPct = decimal.NewFromInt(1)

// WastageResult is the outcome of one classification.
type WastageResult struct {
	Expected        decimal.Decimal `json:"expected"`
	Observed        decimal.Decimal `json:"observed"`
	Loss            decimal.Decimal `json:"loss"`
	LossPercentage  decimal.Decimal `json:"loss_percentage"`
	WithinAllowance bool            `json:"within_allowance"`
	Critical        bool            `json:"critical"`
}

// Classify compares an expected alcoholic volume with what was observed.
// allowablePct is a percentage: 0.1 means 0.1%.
func Classify(expected, observed, allowablePct decimal.Decimal) WastageResult {
	loss := expected.Sub(observed)

	pct := decimal.Zero
	if expected.IsPositive() {
		pct = loss.Div(expected).Mul(hundred)
	}

	return WastageResult{
		Expected:        expected,
		Observed:        observed,
		Loss:            loss,
		LossPercentage:  pct,
		WithinAllowance: pct.LessThanOrEqual(allowablePct),
		Critical:        pct.GreaterThan(CriticalLossPct),
	}
}

// Tier names the three-band classification.
func (w WastageResult) Tier() string {
	switch {
	case w.Critical:
		return "critical"
	case !w.WithinAllowance:
		return "exceeds_allowance"
	default:
		return "within_allowance"
	}
}

// DebitLoss is the loss as it enters a debit line.
func (w WastageResult) DebitLoss() decimal.Decimal {
	return DebitPart(w.Loss)
}

// CreditGain is the gain as it enters a credit line.
func (w WastageResult) CreditGain() decimal.Decimal {
	return CreditPart(w.Loss)
}

// DebitPart clamps a signed loss to its positive part.
func DebitPart(loss decimal.Decimal) decimal.Decimal {
	if loss.IsPositive() {
		return loss
	}
	return decimal.Zero
}

// CreditPart returns |loss| for a negative loss, zero otherwise.
func CreditPart(loss decimal.Decimal) decimal.Decimal {
	if loss.IsNegative() {
		return loss.Neg()
	}
	return decimal.Zero
}

// AllowableLoss is the volume the allowance permits on an expected quantity.
func AllowableLoss(expected, allowablePct decimal.Decimal) decimal.Decimal {
	return expected.Mul(allowablePct).Div(hundred)
}
