/*
Package daybook composes the reconciliation engine into the two daily views
and exposes the single refresh entry point used by the submission layer.

VIEWS:
  Synopsis:    One consolidated pool ("all-tanks"). Answers "what is left in
               all tanks combined" and carries the bottling fee.
  Transaction: Explicit primary vs blending pools. Exposes the transfer
               linkage between pools and the chargeable excess loss.

Each Build call aggregates once and calls the validator once.

SEE ALSO:
  - engine.go: RefreshForDate (aggregate, classify, validate, persist)
  - queue.go: Serialized refreshes for callers that need ordering
*/
package daybook

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/warp/spirit-ledger/spirit"
)

// =============================================================================
// SYNOPSIS BUILDER
// =============================================================================

type SynopsisBuilder struct {
	Aggregator *spirit.Aggregator
}

// Build returns the consolidated view for date.
func (b *SynopsisBuilder) Build(ctx context.Context, date spirit.Date) (spirit.DailySynopsis, error) {
	row, err := b.Aggregator.Aggregate(ctx, date)
	if err != nil {
		return spirit.DailySynopsis{}, err
	}
	return Synopsis(row, b.Aggregator.Plant), nil
}

// Synopsis collapses an aggregated row into the single-pool view.
func Synopsis(row spirit.DailyLedgerRow, plant spirit.Plant) spirit.DailySynopsis {
	credit := row.TotalCredit()
	debit := row.TotalDebit()
	expected := credit.Sub(debit)

	verdict := spirit.ValidateOne(spirit.PoolAll, expected, row.ActualClosing, plant.Tolerance)

	return spirit.DailySynopsis{
		Date:            row.Date,
		OpeningBalance:  row.Primary.Opening.Add(row.Blending.Opening),
		TotalCredit:     credit,
		TotalDebit:      debit,
		ExpectedClosing: expected,
		ActualClosing:   row.ActualClosing,
		Difference:      row.ActualClosing.Sub(expected),
		ReceivedAL:      row.ReceivedAL,
		MeteredDraw:     row.Production.MeteredDraw,
		BottledBulk:     row.Production.BottledBulk,
		FeePayable:      row.Production.BottledBulk.Mul(plant.FeeRatePerLitre),
		Status:          verdict.Status,
		Note:            verdict.Note,
	}
}

// =============================================================================
// TRANSACTION BUILDER
// =============================================================================

type TransactionBuilder struct {
	Aggregator *spirit.Aggregator
}

// Build returns the two-pool row for date.
func (b *TransactionBuilder) Build(ctx context.Context, date spirit.Date) (spirit.DailyLedgerRow, error) {
	row, err := b.Aggregator.Aggregate(ctx, date)
	if err != nil {
		return spirit.DailyLedgerRow{}, err
	}
	return Transaction(row, b.Aggregator.Plant), nil
}

// Transaction adds the two-pool verdict and the chargeable excess loss.
func Transaction(row spirit.DailyLedgerRow, plant spirit.Plant) spirit.DailyLedgerRow {
	verdict := spirit.Validate([]spirit.PoolCheck{
		{Pool: spirit.PoolPrimary, Expected: row.Primary.Expected, Actual: row.Primary.Actual},
		{Pool: spirit.PoolBlending, Expected: row.Blending.Expected, Actual: row.Blending.Actual},
	}, plant.Tolerance)

	row.ChargeableExcessLoss = decimal.Max(decimal.Zero, row.TotalObservedLoss.Sub(row.TotalAllowableLoss))
	row.Status = verdict.Status
	row.Note = verdict.Note
	row.Reconciliations = verdict.Results
	return row
}
