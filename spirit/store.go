/*
store.go - Read and write contracts with the outside world

PURPOSE:
  The engine reads upstream events and tank history from an EventStore and
  writes exactly one derived row per call to a LedgerSink. It never writes
  to the event store and never mutates a stored tank state.

KEY INTERFACES:
  EventStore:   Read-only query shape consumed by the aggregator
  EventLog:     EventStore plus append-only writes (used by the submission layer)
  LedgerSink:   Upsert of the derived daily ledger row, keyed by date
  SynopsisSink: Upsert of the consolidated synopsis, keyed by date
  LedgerReader: Lookups of previously persisted rows

APPEND-ONLY CONTRACT:
  EventLog has Append* methods only. A correction to a tank is a new
  TankState, never an edit of an old one.

LAST-WRITE-WINS:
  UpsertDailyLedger replaces the whole row for a date. Two concurrent
  refreshes of the same date both write; the later write decides.

IMPLEMENTATIONS:
  - spirit/store/memory.go: In-memory for testing
  - store/sqlite/sqlite.go: SQLite
*/
package spirit

import "context"

// =============================================================================
// EVENT STORE - Read-only upstream queries
// =============================================================================

type EventStore interface {
	// ReceiptsForDate returns receipts for the day in insertion order.
	ReceiptsForDate(ctx context.Context, date Date) ([]ReceiptEvent, error)

	// TransfersForDate returns transfers and dilutions for the day in insertion order.
	TransfersForDate(ctx context.Context, date Date) ([]TransferEvent, error)

	// ProductionForDate returns bottling runs for the day in insertion order.
	ProductionForDate(ctx context.Context, date Date) ([]ProductionEvent, error)

	// TankHistory returns every reading of a tank ordered by AsOf, then Seq.
	TankHistory(ctx context.Context, tank TankID) ([]TankState, error)
}

// EventLog extends EventStore with the append-only writes of the
// submission layer.
type EventLog interface {
	EventStore

	AppendReceipt(ctx context.Context, e ReceiptEvent) error
	AppendTransfer(ctx context.Context, e TransferEvent) error
	AppendProduction(ctx context.Context, e ProductionEvent) error

	// AppendTankState assigns Seq and returns the stored state.
	AppendTankState(ctx context.Context, s TankState) (TankState, error)
}

// =============================================================================
// SINKS - One derived record per call
// =============================================================================

type LedgerSink interface {
	// UpsertDailyLedger fully replaces any prior row for date.
	UpsertDailyLedger(ctx context.Context, date Date, row DailyLedgerRow) error
}

type SynopsisSink interface {
	UpsertDailySynopsis(ctx context.Context, date Date, s DailySynopsis) error
}

// LedgerReader returns rows equal in value to what was upserted. Decimal
// fields may come back at a different internal scale, so compare them with
// decimal.Equal or through their JSON form, never with deep equality.
type LedgerReader interface {
	// DailyLedger returns ErrLedgerNotFound when nothing is stored for date.
	DailyLedger(ctx context.Context, date Date) (DailyLedgerRow, error)
	DailySynopsis(ctx context.Context, date Date) (DailySynopsis, error)
}
