package spirit

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RECONCILIATION VALIDATOR - Expected vs actual closing, per pool
// =============================================================================

type ReconcileStatus string

const (
	StatusOK      ReconcileStatus = "ok"
	StatusWarning ReconcileStatus = "warning"
)

const reconciledNote = "Balances reconciled"

// PoolCheck is one expected/actual pair. A zero Actual stands for absent
// data and will normally produce a warning, not a silent pass.
type PoolCheck struct {
	Pool     Pool
	Expected decimal.Decimal
	Actual   decimal.Decimal
}

// ReconciliationResult is derived on demand, never the system of record.
type ReconciliationResult struct {
	Pool       Pool            `json:"pool"`
	Expected   decimal.Decimal `json:"expected_closing"`
	Actual     decimal.Decimal `json:"actual_closing"`
	Difference decimal.Decimal `json:"difference"`
	Status     ReconcileStatus `json:"status"`
	Note       string          `json:"note"`
}

// Verdict is the combined outcome over every checked pool.
type Verdict struct {
	Status  ReconcileStatus
	Note    string
	Results []ReconciliationResult
}

// Validate checks each pool against tolerance. Status is ok only when
// every pool is within tolerance; the note lists every pool that is not.
func Validate(checks []PoolCheck, tolerance decimal.Decimal) Verdict {
	v := Verdict{Status: StatusOK, Results: make([]ReconciliationResult, 0, len(checks))}

	var failures []string
	for _, c := range checks {
		diff := c.Actual.Sub(c.Expected)
		res := ReconciliationResult{
			Pool:       c.Pool,
			Expected:   c.Expected,
			Actual:     c.Actual,
			Difference: diff,
			Status:     StatusOK,
			Note:       reconciledNote,
		}
		if diff.Abs().GreaterThan(tolerance) {
			res.Status = StatusWarning
			res.Note = fmt.Sprintf("%s mismatch %s AL", c.Pool.Label(), diff.StringFixed(3))
			failures = append(failures, res.Note)
			v.Status = StatusWarning
		}
		v.Results = append(v.Results, res)
	}

	v.Note = reconciledNote
	if len(failures) > 0 {
		v.Note = strings.Join(failures, "; ")
	}
	return v
}

// ValidateOne is Validate for a single pool.
func ValidateOne(pool Pool, expected, actual, tolerance decimal.Decimal) Verdict {
	return Validate([]PoolCheck{{Pool: pool, Expected: expected, Actual: actual}}, tolerance)
}
