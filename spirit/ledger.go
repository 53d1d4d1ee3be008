/*
ledger.go - Daily two-pool credit/debit aggregation

PURPOSE:
  For one calendar day, pull every receipt, transfer and bottling run,
  book them as credit and debit lines against the primary and blending
  pools, and derive the expected closing balance of each pool. The actual
  closing balance comes from the tanks themselves via the Resolver.

POOL LEDGER:
  credits  = opening + receipts (advised) + transit gain + transfer in + operational gain
  debits   = transit loss + transfer out + samples + metered draw + operational loss
  expected = credits - debits

  Receipts are booked at the advised quantity and corrected by the transit
  lines, so the net credit is the received quantity. Transit gain and loss
  are split per event and never net across events.

POOL LINKAGE:
  A transfer from a primary tank to a blending tank is a debit to the
  primary pool and a credit to the blending pool for the same AL. Moves
  within a pool, and dilution in place, do not move AL between pools.

PRODUCTION:
  The metered draw leaves the blending pool. The gap between metered and
  bottled output is production loss (or gain), classified per run. It sits
  outside the pool balance: the spirit has already left the tank.

NUMERIC POLICY:
  Sums accumulate in input order. Nothing is rounded here.

SEE ALSO:
  - resolver.go: Opening and actual closing lookups
  - wastage.go: Classification of storage and production loss
  - daybook/: Builders that validate and persist the row
*/
package spirit

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEDGER ROW TYPES
// =============================================================================

// PoolLedger holds one pool's lines for the day.
type PoolLedger struct {
	Pool Pool `json:"pool"`

	// Credits
	Opening         decimal.Decimal `json:"opening"`
	Receipts        decimal.Decimal `json:"receipts"`
	TransitGain     decimal.Decimal `json:"transit_gain"`
	TransferIn      decimal.Decimal `json:"transfer_in"`
	OperationalGain decimal.Decimal `json:"operational_gain"`

	// Debits
	TransitLoss     decimal.Decimal `json:"transit_loss"`
	TransferOut     decimal.Decimal `json:"transfer_out"`
	Samples         decimal.Decimal `json:"samples"`
	MeteredDraw     decimal.Decimal `json:"metered_draw"`
	OperationalLoss decimal.Decimal `json:"operational_loss"`

	Expected   decimal.Decimal `json:"expected_closing"`
	Actual     decimal.Decimal `json:"actual_closing"`
	Difference decimal.Decimal `json:"difference"`

	// Storage classifies the net recorded storage wastage against the
	// opening balance of the pool.
	Storage WastageResult `json:"storage"`
}

func (p PoolLedger) Credits() decimal.Decimal {
	return p.Opening.Add(p.Receipts).Add(p.TransitGain).Add(p.TransferIn).Add(p.OperationalGain)
}

func (p PoolLedger) Debits() decimal.Decimal {
	return p.TransitLoss.Add(p.TransferOut).Add(p.Samples).Add(p.MeteredDraw).Add(p.OperationalLoss)
}

// RunResult is the classification of one bottling run.
type RunResult struct {
	EventID       string          `json:"event_id"`
	AllowablePct  decimal.Decimal `json:"allowable_pct"`
	AllowableLoss decimal.Decimal `json:"allowable_loss"`
	Wastage       WastageResult   `json:"wastage"`
}

// ProductionLedger holds the day's bottling figures.
type ProductionLedger struct {
	MeteredDraw    decimal.Decimal `json:"metered_draw"`
	BottledAL      decimal.Decimal `json:"bottled_al"`
	BottledBulk    decimal.Decimal `json:"bottled_bulk"`
	ProductionLoss decimal.Decimal `json:"production_loss"`
	ProductionGain decimal.Decimal `json:"production_gain"`
	AllowableLoss  decimal.Decimal `json:"allowable_loss"`

	// Classification is the day-level result over all runs.
	Classification WastageResult `json:"classification"`
	Runs           []RunResult   `json:"runs"`
}

// DailyLedgerRow is the day's consolidated two-pool output. It is created
// fresh on every recomputation and replaces any stored row for the date.
type DailyLedgerRow struct {
	Date Date `json:"date"`

	Primary    PoolLedger       `json:"primary"`
	Blending   PoolLedger       `json:"blending"`
	Production ProductionLedger `json:"production"`

	AdvisedAL  decimal.Decimal `json:"advised_al"`
	ReceivedAL decimal.Decimal `json:"received_al"`

	ExpectedClosing decimal.Decimal `json:"expected_closing"`
	ActualClosing   decimal.Decimal `json:"actual_closing"`
	NetDifference   decimal.Decimal `json:"net_difference"`

	TotalObservedLoss    decimal.Decimal `json:"total_observed_loss"`
	TotalAllowableLoss   decimal.Decimal `json:"total_allowable_loss"`
	ChargeableExcessLoss decimal.Decimal `json:"chargeable_excess_loss"`

	Status          ReconcileStatus        `json:"status"`
	Note            string                 `json:"note"`
	Reconciliations []ReconciliationResult `json:"reconciliations"`

	// Anomalies lists events that could not be booked, in input order.
	Anomalies []string `json:"anomalies,omitempty"`
}

// TotalCredit collapses both pools into one credit figure.
func (r DailyLedgerRow) TotalCredit() decimal.Decimal {
	return r.Primary.Credits().Add(r.Blending.Credits())
}

// TotalDebit collapses both pools into one debit figure.
func (r DailyLedgerRow) TotalDebit() decimal.Decimal {
	return r.Primary.Debits().Add(r.Blending.Debits())
}

// DailySynopsis is the single consolidated pool view of a day.
type DailySynopsis struct {
	Date            Date            `json:"date"`
	OpeningBalance  decimal.Decimal `json:"opening_balance"`
	TotalCredit     decimal.Decimal `json:"total_credit"`
	TotalDebit      decimal.Decimal `json:"total_debit"`
	ExpectedClosing decimal.Decimal `json:"expected_closing"`
	ActualClosing   decimal.Decimal `json:"actual_closing"`
	Difference      decimal.Decimal `json:"difference"`
	ReceivedAL      decimal.Decimal `json:"received_al"`
	MeteredDraw     decimal.Decimal `json:"metered_draw"`
	BottledBulk     decimal.Decimal `json:"bottled_bulk"`
	FeePayable      decimal.Decimal `json:"fee_payable"`
	Status          ReconcileStatus `json:"status"`
	Note            string          `json:"note"`
}

// =============================================================================
// AGGREGATOR
// =============================================================================

// Aggregator builds the day's ledger lines. It is a read-then-compute
// pipeline: calling Aggregate twice against the same upstream state yields
// identical rows.
type Aggregator struct {
	Store    EventStore
	Resolver *Resolver
	Plant    Plant
}

func NewAggregator(store EventStore, plant Plant) *Aggregator {
	return &Aggregator{Store: store, Resolver: NewResolver(store), Plant: plant}
}

// Aggregate computes ledger lines, expected and actual closing for date.
// The verdict fields are left for the builders.
func (a *Aggregator) Aggregate(ctx context.Context, date Date) (DailyLedgerRow, error) {
	if date.IsZero() {
		return DailyLedgerRow{}, fmt.Errorf("%w: aggregate", ErrInvalidDate)
	}

	row := DailyLedgerRow{
		Date:     date,
		Primary:  PoolLedger{Pool: PoolPrimary},
		Blending: PoolLedger{Pool: PoolBlending},
	}
	pools := map[Pool]*PoolLedger{
		PoolPrimary:  &row.Primary,
		PoolBlending: &row.Blending,
	}

	// 1. Opening balance per pool
	for _, pool := range []Pool{PoolPrimary, PoolBlending} {
		opening, err := a.Resolver.ResolveGroup(ctx, a.Plant.Tanks(pool), date, ModeOpening)
		if err != nil {
			return DailyLedgerRow{}, err
		}
		pools[pool].Opening = opening.AlcoholicVolume
	}

	// 2. Receipts
	receipts, err := a.Store.ReceiptsForDate(ctx, date)
	if err != nil {
		return DailyLedgerRow{}, fmt.Errorf("receipts for %s: %w", date, err)
	}
	a.bookReceipts(&row, receipts)

	// 3-4. Transfers, storage wastage, samples
	transfers, err := a.Store.TransfersForDate(ctx, date)
	if err != nil {
		return DailyLedgerRow{}, fmt.Errorf("transfers for %s: %w", date, err)
	}
	netWastage := a.bookTransfers(&row, pools, transfers)
	for _, pool := range []Pool{PoolPrimary, PoolBlending} {
		pl := pools[pool]
		pl.Storage = Classify(pl.Opening, pl.Opening.Sub(netWastage[pool]), a.Plant.AllowableLossPct)
	}

	// 5. Production
	production, err := a.Store.ProductionForDate(ctx, date)
	if err != nil {
		return DailyLedgerRow{}, fmt.Errorf("production for %s: %w", date, err)
	}
	a.bookProduction(&row, production)
	row.Blending.MeteredDraw = row.Production.MeteredDraw

	// 6-7. Expected and actual closing
	for _, pool := range []Pool{PoolPrimary, PoolBlending} {
		pl := pools[pool]
		pl.Expected = pl.Credits().Sub(pl.Debits())

		closing, err := a.Resolver.ResolveGroup(ctx, a.Plant.Tanks(pool), date, ModeClosing)
		if err != nil {
			return DailyLedgerRow{}, err
		}
		pl.Actual = closing.AlcoholicVolume
		pl.Difference = pl.Actual.Sub(pl.Expected)
	}

	// 8. Totals across both pools
	row.ExpectedClosing = row.Primary.Expected.Add(row.Blending.Expected)
	row.ActualClosing = row.Primary.Actual.Add(row.Blending.Actual)
	row.NetDifference = row.ActualClosing.Sub(row.ExpectedClosing)
	row.TotalObservedLoss = row.Primary.TransitLoss.
		Add(row.Primary.OperationalLoss).
		Add(row.Blending.OperationalLoss).
		Add(row.Production.ProductionLoss)
	row.TotalAllowableLoss = row.Production.AllowableLoss

	return row, nil
}

func (a *Aggregator) bookReceipts(row *DailyLedgerRow, receipts []ReceiptEvent) {
	for _, e := range receipts {
		row.AdvisedAL = row.AdvisedAL.Add(e.AdvisedAL)
		row.ReceivedAL = row.ReceivedAL.Add(e.ReceivedAL)

		row.Primary.Receipts = row.Primary.Receipts.Add(e.AdvisedAL)
		row.Primary.TransitLoss = row.Primary.TransitLoss.Add(e.TransitWastage())
		row.Primary.TransitGain = row.Primary.TransitGain.Add(e.TransitIncrease())

		if e.TankID != "" {
			if pool, ok := a.Plant.PoolOf(e.TankID); !ok || pool != PoolPrimary {
				row.Anomalies = append(row.Anomalies,
					fmt.Sprintf("receipt %s: tank %s is not a primary tank", e.ID, e.TankID))
			}
		}
	}
}

// bookTransfers returns the net recorded storage wastage per pool.
func (a *Aggregator) bookTransfers(row *DailyLedgerRow, pools map[Pool]*PoolLedger, transfers []TransferEvent) map[Pool]decimal.Decimal {
	net := map[Pool]decimal.Decimal{
		PoolPrimary:  decimal.Zero,
		PoolBlending: decimal.Zero,
	}

	for _, e := range transfers {
		src, srcOK := a.Plant.PoolOf(e.SourceTank)
		dst, dstOK := a.Plant.PoolOf(e.DestinationTank)
		if !srcOK || !dstOK {
			row.Anomalies = append(row.Anomalies,
				fmt.Sprintf("transfer %s: %s -> %s: %v", e.ID, e.SourceTank, e.DestinationTank, ErrUnknownTank))
			continue
		}

		from := pools[src]
		if src != dst {
			to := pools[dst]
			from.TransferOut = from.TransferOut.Add(e.AlcoholicVolume)
			to.TransferIn = to.TransferIn.Add(e.AlcoholicVolume)
		}

		if e.StorageWastage != nil {
			w := *e.StorageWastage
			from.OperationalLoss = from.OperationalLoss.Add(DebitPart(w))
			from.OperationalGain = from.OperationalGain.Add(CreditPart(w))
			net[src] = net[src].Add(w)
		}
		if e.SampleAL != nil {
			from.Samples = from.Samples.Add(*e.SampleAL)
		}
	}
	return net
}

func (a *Aggregator) bookProduction(row *DailyLedgerRow, production []ProductionEvent) {
	p := &row.Production
	p.Runs = make([]RunResult, 0, len(production))

	for _, e := range production {
		allowance := e.AllowanceOr(a.Plant.AllowableLossPct)
		bottled := e.BottledAL()
		w := Classify(e.MeteredAL, bottled, allowance)
		allowable := AllowableLoss(e.MeteredAL, allowance)

		p.MeteredDraw = p.MeteredDraw.Add(e.MeteredAL)
		p.BottledAL = p.BottledAL.Add(bottled)
		p.BottledBulk = p.BottledBulk.Add(e.BottledBulk())
		p.ProductionLoss = p.ProductionLoss.Add(w.DebitLoss())
		p.ProductionGain = p.ProductionGain.Add(w.CreditGain())
		p.AllowableLoss = p.AllowableLoss.Add(allowable)
		p.Runs = append(p.Runs, RunResult{
			EventID:       e.ID,
			AllowablePct:  allowance,
			AllowableLoss: allowable,
			Wastage:       w,
		})

		if e.SourceTank != "" {
			if pool, ok := a.Plant.PoolOf(e.SourceTank); !ok || pool != PoolBlending {
				row.Anomalies = append(row.Anomalies,
					fmt.Sprintf("production %s: tank %s is not a blending tank", e.ID, e.SourceTank))
			}
		}
	}

	// Day-level allowance is the metered-weighted allowance of the runs.
	dayAllowance := a.Plant.AllowableLossPct
	if p.MeteredDraw.IsPositive() {
		dayAllowance = p.AllowableLoss.Div(p.MeteredDraw).Mul(hundred)
	}
	p.Classification = Classify(p.MeteredDraw, p.BottledAL, dayAllowance)
}
