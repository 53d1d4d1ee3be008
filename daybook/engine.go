package daybook

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/warp/spirit-ledger/spirit"
)

// =============================================================================
// ENGINE - The single refresh entry point
// =============================================================================

// Engine runs aggregate -> classify -> validate -> persist for one date.
// Refreshes of the same date are not serialized here; use RefreshQueue when
// ordering matters. Store failures propagate unchanged and are never retried.
type Engine struct {
	Aggregator *spirit.Aggregator
	Sink       spirit.LedgerSink
	Synopses   spirit.SynopsisSink // optional
	Logger     zerolog.Logger
}

// NewEngine wires an engine over store. When store also implements
// SynopsisSink, synopses are persisted alongside the ledger row.
func NewEngine(store spirit.EventStore, sink spirit.LedgerSink, plant spirit.Plant, logger zerolog.Logger) *Engine {
	e := &Engine{
		Aggregator: spirit.NewAggregator(store, plant),
		Sink:       sink,
		Logger:     logger,
	}
	if ss, ok := sink.(spirit.SynopsisSink); ok {
		e.Synopses = ss
	}
	return e
}

// Result carries both views produced by one refresh.
type Result struct {
	Row      spirit.DailyLedgerRow
	Synopsis spirit.DailySynopsis
}

// RefreshForDate recomputes the day, writes the row and returns it.
func (e *Engine) RefreshForDate(ctx context.Context, date spirit.Date) (spirit.DailyLedgerRow, error) {
	res, err := e.Refresh(ctx, date)
	if err != nil {
		return spirit.DailyLedgerRow{}, err
	}
	return res.Row, nil
}

// RefreshForDateString parses YYYY-MM-DD and refreshes that day.
func (e *Engine) RefreshForDateString(ctx context.Context, s string) (spirit.DailyLedgerRow, error) {
	date, err := spirit.ParseDate(s)
	if err != nil {
		return spirit.DailyLedgerRow{}, err
	}
	return e.RefreshForDate(ctx, date)
}

// Refresh is RefreshForDate returning the synopsis too. The synopsis is
// built before the transaction row, and both come from one aggregation.
func (e *Engine) Refresh(ctx context.Context, date spirit.Date) (Result, error) {
	if date.IsZero() {
		return Result{}, fmt.Errorf("%w: refresh", spirit.ErrInvalidDate)
	}

	agg, err := e.Aggregator.Aggregate(ctx, date)
	if err != nil {
		return Result{}, err
	}

	plant := e.Aggregator.Plant
	synopsis := Synopsis(agg, plant)
	row := Transaction(agg, plant)

	if e.Synopses != nil {
		if err := e.Synopses.UpsertDailySynopsis(ctx, date, synopsis); err != nil {
			return Result{}, fmt.Errorf("upsert synopsis %s: %w", date, err)
		}
	}
	if err := e.Sink.UpsertDailyLedger(ctx, date, row); err != nil {
		return Result{}, fmt.Errorf("upsert ledger %s: %w", date, err)
	}

	e.logRefresh(row, synopsis)
	return Result{Row: row, Synopsis: synopsis}, nil
}

func (e *Engine) logRefresh(row spirit.DailyLedgerRow, synopsis spirit.DailySynopsis) {
	ev := e.Logger.Info()
	if row.Status == spirit.StatusWarning || synopsis.Status == spirit.StatusWarning {
		ev = e.Logger.Warn()
	}
	ev.Str("date", row.Date.String()).
		Str("status", string(row.Status)).
		Str("synopsis_status", string(synopsis.Status)).
		Str("net_difference", row.NetDifference.String()).
		Str("chargeable_excess_loss", row.ChargeableExcessLoss.String()).
		Int("anomalies", len(row.Anomalies)).
		Msg(row.Note)
}
