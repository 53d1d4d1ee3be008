/*
Package spirit provides the daily spirit balance reconciliation engine.

PURPOSE:
  This package contains the types and algorithms that turn one calendar day
  of bonded-store activity (tanker receipts, tank transfers, dilution and
  bottling runs) into a two-pool credit/debit ledger, and that check the
  expected closing balance against what the tanks actually hold.

KEY CONCEPTS IN THIS FILE (types.go):
  - TankID / Pool: Storage vessels and the two disjoint groups they belong to
  - TankState: An immutable reading of a tank (bulk litres, strength, AL)
  - ReceiptEvent, TransferEvent, ProductionEvent: Upstream activity records
  - Quantities are decimal.Decimal litres; AL = litres of pure alcohol

DESIGN PRINCIPLES:
  1. Immutability: Tank states are appended, never edited
  2. Precision: decimal.Decimal everywhere, no rounding inside the engine
  3. Explicit absence: optional measurements are pointers, nil = not taken
  4. Derivation: AL and bottled output are always computed, never backfilled

USAGE:
  state := spirit.NewTankState("PT-1", decimal.NewFromInt(5000), decimal.NewFromInt(96), spirit.NewDate(2025, time.March, 3))
  // state.AlcoholicVolume == 4800

SEE ALSO:
  - resolver.go: Opening/closing lookups over tank history
  - wastage.go: Loss classification
  - ledger.go: Daily aggregation
  - validator.go: Expected vs actual checks
*/
package spirit

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// DefaultAllowableLossPct is the regulatory production allowance, as a percentage.
var DefaultAllowableLossPct = decimal.RequireFromString("0.1")

// =============================================================================
// TANKS AND POOLS
// =============================================================================

type TankID string

// Pool is one of the two disjoint tank groups.
type Pool string

const (
	PoolPrimary  Pool = "primary"
	PoolBlending Pool = "blending"

	// PoolAll is the consolidated view used by the daily synopsis.
	PoolAll Pool = "all-tanks"
)

// Label is the name used in reconciliation notes.
func (p Pool) Label() string {
	switch p {
	case PoolPrimary, PoolBlending:
		return string(p) + "-pool"
	default:
		return string(p)
	}
}

// =============================================================================
// TANK STATE - One immutable reading per recorded operation
// =============================================================================

type TankState struct {
	ID              string
	TankID          TankID
	BulkVolume      decimal.Decimal
	AlcoholicVolume decimal.Decimal
	Strength        decimal.Decimal // % v/v
	AsOf            Date

	// Seq is the store-assigned insertion order. Used as the tie-break when
	// several readings share the same AsOf date.
	Seq int64
}

// NewTankState builds a reading and derives the alcoholic volume from
// bulk volume and strength.
func NewTankState(tank TankID, bulk, strength decimal.Decimal, asOf Date) TankState {
	return TankState{
		TankID:          tank,
		BulkVolume:      bulk,
		AlcoholicVolume: AlcoholicVolume(bulk, strength),
		Strength:        strength,
		AsOf:            asOf,
	}
}

// AlcoholicVolume returns bulk × strength / 100.
func AlcoholicVolume(bulk, strength decimal.Decimal) decimal.Decimal {
	return bulk.Mul(strength).Div(hundred)
}

// Validate checks the physical invariants of a reading.
func (s TankState) Validate() error {
	if s.TankID == "" {
		return &InvalidValueError{Field: "tank_id", Reason: "required", Kind: ErrInvalidTankState}
	}
	if s.AsOf.IsZero() {
		return &InvalidValueError{Field: "as_of_date", Reason: "required", Kind: ErrInvalidDate}
	}
	if s.BulkVolume.IsNegative() {
		return &InvalidValueError{Field: "bulk_volume", Reason: "must not be negative", Kind: ErrInvalidTankState}
	}
	if s.Strength.IsNegative() || s.Strength.GreaterThan(hundred) {
		return &InvalidValueError{Field: "strength", Reason: "must be between 0 and 100", Kind: ErrInvalidTankState}
	}
	if s.AlcoholicVolume.GreaterThan(s.BulkVolume) {
		return &InvalidValueError{Field: "alcoholic_volume", Reason: "exceeds bulk volume", Kind: ErrInvalidTankState}
	}
	return nil
}

// TankReading is the resolved content of a tank (or a group of tanks).
type TankReading struct {
	BulkVolume      decimal.Decimal
	AlcoholicVolume decimal.Decimal
	Strength        decimal.Decimal
}

func (r TankReading) Add(o TankReading) TankReading {
	sum := TankReading{
		BulkVolume:      r.BulkVolume.Add(o.BulkVolume),
		AlcoholicVolume: r.AlcoholicVolume.Add(o.AlcoholicVolume),
	}
	// Strength of a group is the volume-weighted strength.
	if sum.BulkVolume.IsPositive() {
		sum.Strength = sum.AlcoholicVolume.Mul(hundred).Div(sum.BulkVolume)
	}
	return sum
}

// =============================================================================
// RECEIPT EVENT - One inbound consignment
// =============================================================================

type ReceiptEvent struct {
	ID          string
	TankID      TankID // receiving primary tank, informational
	Reference   string // consignment / dispatch note number
	AdvisedAL   decimal.Decimal
	ReceivedAL  decimal.Decimal
	ReceiptDate Date
}

// Variance is advised minus received.
func (e ReceiptEvent) Variance() decimal.Decimal {
	return e.AdvisedAL.Sub(e.ReceivedAL)
}

// TransitWastage is the positive part of the variance.
func (e ReceiptEvent) TransitWastage() decimal.Decimal {
	if v := e.Variance(); v.IsPositive() {
		return v
	}
	return decimal.Zero
}

// TransitIncrease is the magnitude of a negative variance.
func (e ReceiptEvent) TransitIncrease() decimal.Decimal {
	if v := e.Variance(); v.IsNegative() {
		return v.Neg()
	}
	return decimal.Zero
}

func (e ReceiptEvent) Validate() error {
	if e.ReceiptDate.IsZero() {
		return &InvalidValueError{Field: "receipt_date", Reason: "required", Kind: ErrInvalidDate}
	}
	if e.AdvisedAL.IsNegative() || e.ReceivedAL.IsNegative() {
		return &InvalidValueError{Field: "alcoholic_volume", Reason: "must not be negative", Kind: ErrInvalidEvent}
	}
	return nil
}

// =============================================================================
// TRANSFER EVENT - Tank to tank movement, or dilution in place
// =============================================================================

type TransferEvent struct {
	ID              string
	SourceTank      TankID
	DestinationTank TankID
	BulkVolume      decimal.Decimal
	AlcoholicVolume decimal.Decimal
	OperationDate   Date

	// StorageWastage is ledger-expected minus dip-measured content of the
	// source tank when the operation began. nil = no dip taken.
	StorageWastage *decimal.Decimal

	// SampleAL is spirit drawn off the source tank for laboratory samples.
	SampleAL *decimal.Decimal
}

// IsDilution reports an in-place operation on a single tank.
func (e TransferEvent) IsDilution() bool {
	return e.SourceTank == e.DestinationTank
}

func (e TransferEvent) Validate() error {
	if e.OperationDate.IsZero() {
		return &InvalidValueError{Field: "operation_date", Reason: "required", Kind: ErrInvalidDate}
	}
	if e.SourceTank == "" || e.DestinationTank == "" {
		return &InvalidValueError{Field: "tank", Reason: "source and destination required", Kind: ErrInvalidEvent}
	}
	if e.BulkVolume.IsNegative() || e.AlcoholicVolume.IsNegative() {
		return &InvalidValueError{Field: "transferred_volume", Reason: "must not be negative", Kind: ErrInvalidEvent}
	}
	if e.AlcoholicVolume.GreaterThan(e.BulkVolume) {
		return &InvalidValueError{Field: "transferred_alcoholic_volume", Reason: "exceeds bulk volume", Kind: ErrInvalidEvent}
	}
	if e.SampleAL != nil && e.SampleAL.IsNegative() {
		return &InvalidValueError{Field: "sample_al", Reason: "must not be negative", Kind: ErrInvalidEvent}
	}
	return nil
}

// =============================================================================
// PRODUCTION EVENT - One bottling run
// =============================================================================

// BottleCount is the number of filled bottles of one nominal size.
type BottleCount struct {
	UnitLitres decimal.Decimal
	Count      int64
}

type ProductionEvent struct {
	ID             string
	SourceTank     TankID
	ProductionDate Date
	MeteredAL      decimal.Decimal
	Strength       decimal.Decimal // bottling strength, % v/v
	Bottles        []BottleCount

	// AllowableLossPct is the permitted production loss as a percentage.
	// nil falls back to the plant allowance.
	AllowableLossPct *decimal.Decimal
}

// BottledBulk is the nominal bulk litres filled.
func (e ProductionEvent) BottledBulk() decimal.Decimal {
	total := decimal.Zero
	for _, b := range e.Bottles {
		total = total.Add(b.UnitLitres.Mul(decimal.NewFromInt(b.Count)))
	}
	return total
}

// BottledAL is computed from bottle counts only, never from the meter.
func (e ProductionEvent) BottledAL() decimal.Decimal {
	total := decimal.Zero
	for _, b := range e.Bottles {
		bulk := b.UnitLitres.Mul(decimal.NewFromInt(b.Count))
		total = total.Add(AlcoholicVolume(bulk, e.Strength))
	}
	return total
}

// Allowance returns the allowable loss percentage for this run, or
// DefaultAllowableLossPct when the run carries none.
func (e ProductionEvent) Allowance() decimal.Decimal {
	return e.AllowanceOr(DefaultAllowableLossPct)
}

// AllowanceOr returns the run's own allowance, or def when it has none.
func (e ProductionEvent) AllowanceOr(def decimal.Decimal) decimal.Decimal {
	if e.AllowableLossPct != nil {
		return *e.AllowableLossPct
	}
	return def
}

func (e ProductionEvent) Validate() error {
	if e.ProductionDate.IsZero() {
		return &InvalidValueError{Field: "production_date", Reason: "required", Kind: ErrInvalidDate}
	}
	if e.MeteredAL.IsNegative() {
		return &InvalidValueError{Field: "metered_alcoholic_volume", Reason: "must not be negative", Kind: ErrInvalidEvent}
	}
	if e.Strength.IsNegative() || e.Strength.GreaterThan(hundred) {
		return &InvalidValueError{Field: "strength", Reason: "must be between 0 and 100", Kind: ErrInvalidEvent}
	}
	for i, b := range e.Bottles {
		if b.Count < 0 || !b.UnitLitres.IsPositive() {
			return &InvalidValueError{Field: fmt.Sprintf("bottles[%d]", i), Reason: "count and unit size must be positive", Kind: ErrInvalidEvent}
		}
	}
	return nil
}
