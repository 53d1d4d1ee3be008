/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements the upstream event log and the derived-row sinks using SQLite.

INTERFACES IMPLEMENTED:
  spirit.EventLog:     Receipts, transfers, production runs, tank states
  spirit.LedgerSink:   Daily ledger rows (upsert by date)
  spirit.SynopsisSink: Daily synopses (upsert by date)
  spirit.LedgerReader: Lookups of stored rows

APPEND-ONLY ENFORCEMENT:
  Event tables and tank_states are only ever INSERTed into. A correction to
  a tank is a new row; the resolver picks the latest by date, then by seq.

LAST-WRITE-WINS:
  daily_ledger and daily_synopsis are keyed by date. An upsert replaces
  every column of the prior row; no field-level merge.

KEY TABLES:
  tank_states:     Immutable tank readings (seq = insertion order)
  receipts:        Inbound consignments
  transfers:       Tank-to-tank moves and dilutions
  production_runs: Bottling runs with bottle counts as JSON
  daily_ledger:    Derived two-pool rows
  daily_synopsis:  Derived consolidated rows

DECIMALS:
  Quantities are stored as TEXT in decimal.Decimal's canonical form so that
  nothing is rounded on the way through the database.

USAGE:
  store, err := sqlite.New("./data/bond.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/spirit-ledger/spirit"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A :memory: database lives and dies with its connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Tank readings (append-only)
	CREATE TABLE IF NOT EXISTS tank_states (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		tank_id TEXT NOT NULL,
		as_of_date TEXT NOT NULL,
		bulk_volume TEXT NOT NULL,
		alcoholic_volume TEXT NOT NULL,
		strength TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tank_states_tank_date
		ON tank_states(tank_id, as_of_date, seq);

	-- Receipts
	CREATE TABLE IF NOT EXISTS receipts (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		receipt_date TEXT NOT NULL,
		tank_id TEXT,
		reference TEXT,
		advised_al TEXT NOT NULL,
		received_al TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_receipts_date
		ON receipts(receipt_date, seq);

	-- Transfers and dilutions
	CREATE TABLE IF NOT EXISTS transfers (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		operation_date TEXT NOT NULL,
		source_tank TEXT NOT NULL,
		destination_tank TEXT NOT NULL,
		bulk_volume TEXT NOT NULL,
		alcoholic_volume TEXT NOT NULL,
		storage_wastage TEXT,
		sample_al TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transfers_date
		ON transfers(operation_date, seq);

	-- Bottling runs
	CREATE TABLE IF NOT EXISTS production_runs (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		production_date TEXT NOT NULL,
		source_tank TEXT,
		metered_al TEXT NOT NULL,
		strength TEXT NOT NULL,
		allowable_loss_pct TEXT,
		bottles_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_production_runs_date
		ON production_runs(production_date, seq);

	-- Derived rows (one per date, replaced on every refresh)
	CREATE TABLE IF NOT EXISTS daily_ledger (
		ledger_date TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		note TEXT NOT NULL,
		expected_closing TEXT NOT NULL,
		actual_closing TEXT NOT NULL,
		net_difference TEXT NOT NULL,
		chargeable_excess_loss TEXT NOT NULL,
		row_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_daily_ledger_status
		ON daily_ledger(status);

	CREATE TABLE IF NOT EXISTS daily_synopsis (
		ledger_date TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		fee_payable TEXT NOT NULL,
		synopsis_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Reset clears every table. Only for demo scenarios.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"tank_states", "receipts", "transfers", "production_runs", "daily_ledger", "daily_synopsis"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// TANK STATES
// =============================================================================

// AppendTankState inserts a reading and returns it with its seq.
func (s *Store) AppendTankState(ctx context.Context, st spirit.TankState) (spirit.TankState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tank_states (id, tank_id, as_of_date, bulk_volume, alcoholic_volume, strength, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		ensureID(&st.ID), string(st.TankID), st.AsOf.String(),
		st.BulkVolume.String(), st.AlcoholicVolume.String(), st.Strength.String(),
		now(),
	)
	if err != nil {
		return spirit.TankState{}, fmt.Errorf("failed to append tank state: %w", err)
	}
	st.Seq, err = res.LastInsertId()
	if err != nil {
		return spirit.TankState{}, fmt.Errorf("failed to read tank state seq: %w", err)
	}
	return st, nil
}

// TankHistory returns readings ordered by date, then insertion.
func (s *Store) TankHistory(ctx context.Context, tank spirit.TankID) ([]spirit.TankState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, tank_id, as_of_date, bulk_volume, alcoholic_volume, strength
		FROM tank_states
		WHERE tank_id = ?
		ORDER BY as_of_date ASC, seq ASC
	`, string(tank))
	if err != nil {
		return nil, fmt.Errorf("failed to query tank states: %w", err)
	}
	defer rows.Close()

	var states []spirit.TankState
	for rows.Next() {
		var (
			st                 spirit.TankState
			tankID, asOf       string
			bulk, al, strength string
		)
		if err := rows.Scan(&st.Seq, &st.ID, &tankID, &asOf, &bulk, &al, &strength); err != nil {
			return nil, fmt.Errorf("failed to scan tank state: %w", err)
		}
		st.TankID = spirit.TankID(tankID)
		if st.AsOf, err = spirit.ParseDate(asOf); err != nil {
			return nil, err
		}
		if st.BulkVolume, err = parseDecimal(bulk); err != nil {
			return nil, err
		}
		if st.AlcoholicVolume, err = parseDecimal(al); err != nil {
			return nil, err
		}
		if st.Strength, err = parseDecimal(strength); err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	return states, rows.Err()
}

// =============================================================================
// RECEIPTS
// =============================================================================

func (s *Store) AppendReceipt(ctx context.Context, e spirit.ReceiptEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO receipts (id, receipt_date, tank_id, reference, advised_al, received_al, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		ensureID(&e.ID), e.ReceiptDate.String(), nullString(string(e.TankID)), nullString(e.Reference),
		e.AdvisedAL.String(), e.ReceivedAL.String(), now(),
	)
	if err != nil {
		return fmt.Errorf("failed to append receipt: %w", err)
	}
	return nil
}

func (s *Store) ReceiptsForDate(ctx context.Context, date spirit.Date) ([]spirit.ReceiptEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, receipt_date, tank_id, reference, advised_al, received_al
		FROM receipts
		WHERE receipt_date = ?
		ORDER BY seq ASC
	`, date.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	defer rows.Close()

	var events []spirit.ReceiptEvent
	for rows.Next() {
		var (
			e                 spirit.ReceiptEvent
			day               string
			tankID, reference sql.NullString
			advised, received string
		)
		if err := rows.Scan(&e.ID, &day, &tankID, &reference, &advised, &received); err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		if e.ReceiptDate, err = spirit.ParseDate(day); err != nil {
			return nil, err
		}
		e.TankID = spirit.TankID(tankID.String)
		e.Reference = reference.String
		if e.AdvisedAL, err = parseDecimal(advised); err != nil {
			return nil, err
		}
		if e.ReceivedAL, err = parseDecimal(received); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// =============================================================================
// TRANSFERS
// =============================================================================

func (s *Store) AppendTransfer(ctx context.Context, e spirit.TransferEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transfers
		(id, operation_date, source_tank, destination_tank, bulk_volume, alcoholic_volume,
		 storage_wastage, sample_al, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ensureID(&e.ID), e.OperationDate.String(), string(e.SourceTank), string(e.DestinationTank),
		e.BulkVolume.String(), e.AlcoholicVolume.String(),
		nullDecimal(e.StorageWastage), nullDecimal(e.SampleAL), now(),
	)
	if err != nil {
		return fmt.Errorf("failed to append transfer: %w", err)
	}
	return nil
}

func (s *Store) TransfersForDate(ctx context.Context, date spirit.Date) ([]spirit.TransferEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, operation_date, source_tank, destination_tank, bulk_volume, alcoholic_volume,
		       storage_wastage, sample_al
		FROM transfers
		WHERE operation_date = ?
		ORDER BY seq ASC
	`, date.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	defer rows.Close()

	var events []spirit.TransferEvent
	for rows.Next() {
		var (
			e               spirit.TransferEvent
			day, src, dst   string
			bulk, al        string
			wastage, sample sql.NullString
		)
		if err := rows.Scan(&e.ID, &day, &src, &dst, &bulk, &al, &wastage, &sample); err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		if e.OperationDate, err = spirit.ParseDate(day); err != nil {
			return nil, err
		}
		e.SourceTank = spirit.TankID(src)
		e.DestinationTank = spirit.TankID(dst)
		if e.BulkVolume, err = parseDecimal(bulk); err != nil {
			return nil, err
		}
		if e.AlcoholicVolume, err = parseDecimal(al); err != nil {
			return nil, err
		}
		if e.StorageWastage, err = parseNullDecimal(wastage); err != nil {
			return nil, err
		}
		if e.SampleAL, err = parseNullDecimal(sample); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// =============================================================================
// PRODUCTION RUNS
// =============================================================================

type bottleJSON struct {
	UnitLitres decimal.Decimal `json:"unit_litres"`
	Count      int64           `json:"count"`
}

func (s *Store) AppendProduction(ctx context.Context, e spirit.ProductionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bottles := make([]bottleJSON, len(e.Bottles))
	for i, b := range e.Bottles {
		bottles[i] = bottleJSON{UnitLitres: b.UnitLitres, Count: b.Count}
	}
	bottlesJSON, err := json.Marshal(bottles)
	if err != nil {
		return fmt.Errorf("failed to encode bottles: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO production_runs
		(id, production_date, source_tank, metered_al, strength, allowable_loss_pct, bottles_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ensureID(&e.ID), e.ProductionDate.String(), nullString(string(e.SourceTank)),
		e.MeteredAL.String(), e.Strength.String(), nullDecimal(e.AllowableLossPct),
		string(bottlesJSON), now(),
	)
	if err != nil {
		return fmt.Errorf("failed to append production run: %w", err)
	}
	return nil
}

func (s *Store) ProductionForDate(ctx context.Context, date spirit.Date) ([]spirit.ProductionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, production_date, source_tank, metered_al, strength, allowable_loss_pct, bottles_json
		FROM production_runs
		WHERE production_date = ?
		ORDER BY seq ASC
	`, date.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query production runs: %w", err)
	}
	defer rows.Close()

	var events []spirit.ProductionEvent
	for rows.Next() {
		var (
			e                     spirit.ProductionEvent
			day                   string
			sourceTank, allowance sql.NullString
			metered, strength     string
			bottlesJSON           string
		)
		if err := rows.Scan(&e.ID, &day, &sourceTank, &metered, &strength, &allowance, &bottlesJSON); err != nil {
			return nil, fmt.Errorf("failed to scan production run: %w", err)
		}
		if e.ProductionDate, err = spirit.ParseDate(day); err != nil {
			return nil, err
		}
		e.SourceTank = spirit.TankID(sourceTank.String)
		if e.MeteredAL, err = parseDecimal(metered); err != nil {
			return nil, err
		}
		if e.Strength, err = parseDecimal(strength); err != nil {
			return nil, err
		}
		if e.AllowableLossPct, err = parseNullDecimal(allowance); err != nil {
			return nil, err
		}

		var bottles []bottleJSON
		if err := json.Unmarshal([]byte(bottlesJSON), &bottles); err != nil {
			return nil, fmt.Errorf("failed to decode bottles for %s: %w", e.ID, err)
		}
		for _, b := range bottles {
			e.Bottles = append(e.Bottles, spirit.BottleCount{UnitLitres: b.UnitLitres, Count: b.Count})
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// =============================================================================
// DAILY LEDGER (spirit.LedgerSink / spirit.LedgerReader)
// =============================================================================

// UpsertDailyLedger replaces the row for date in full.
func (s *Store) UpsertDailyLedger(ctx context.Context, date spirit.Date, row spirit.DailyLedgerRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rowJSON, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to encode ledger row: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO daily_ledger
		(ledger_date, status, note, expected_closing, actual_closing, net_difference,
		 chargeable_excess_loss, row_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ledger_date) DO UPDATE SET
			status = excluded.status,
			note = excluded.note,
			expected_closing = excluded.expected_closing,
			actual_closing = excluded.actual_closing,
			net_difference = excluded.net_difference,
			chargeable_excess_loss = excluded.chargeable_excess_loss,
			row_json = excluded.row_json,
			updated_at = excluded.updated_at
	`,
		date.String(), string(row.Status), row.Note,
		row.ExpectedClosing.String(), row.ActualClosing.String(), row.NetDifference.String(),
		row.ChargeableExcessLoss.String(), string(rowJSON), now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert daily ledger: %w", err)
	}
	return nil
}

func (s *Store) DailyLedger(ctx context.Context, date spirit.Date) (spirit.DailyLedgerRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rowJSON string
	err := s.db.QueryRowContext(ctx,
		"SELECT row_json FROM daily_ledger WHERE ledger_date = ?", date.String(),
	).Scan(&rowJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return spirit.DailyLedgerRow{}, fmt.Errorf("%w: %s", spirit.ErrLedgerNotFound, date)
	}
	if err != nil {
		return spirit.DailyLedgerRow{}, fmt.Errorf("failed to get daily ledger: %w", err)
	}

	var row spirit.DailyLedgerRow
	if err := json.Unmarshal([]byte(rowJSON), &row); err != nil {
		return spirit.DailyLedgerRow{}, fmt.Errorf("failed to decode daily ledger: %w", err)
	}
	return row, nil
}

// LedgerSummary is one line of the ledger listing.
type LedgerSummary struct {
	Date                 spirit.Date
	Status               spirit.ReconcileStatus
	Note                 string
	NetDifference        decimal.Decimal
	ChargeableExcessLoss decimal.Decimal
	UpdatedAt            time.Time
}

// ListDailyLedger returns stored rows in [from, to], optionally filtered by status.
func (s *Store) ListDailyLedger(ctx context.Context, from, to spirit.Date, status string) ([]LedgerSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ledger_date, status, note, net_difference, chargeable_excess_loss, updated_at
		FROM daily_ledger
		WHERE ledger_date >= ? AND ledger_date <= ?
	`
	args := []any{from.String(), to.String()}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY ledger_date ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily ledger: %w", err)
	}
	defer rows.Close()

	var out []LedgerSummary
	for rows.Next() {
		var (
			sum                 LedgerSummary
			day, st, updatedAt  string
			netDiff, chargeable string
		)
		if err := rows.Scan(&day, &st, &sum.Note, &netDiff, &chargeable, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan daily ledger: %w", err)
		}
		if sum.Date, err = spirit.ParseDate(day); err != nil {
			return nil, err
		}
		sum.Status = spirit.ReconcileStatus(st)
		if sum.NetDifference, err = parseDecimal(netDiff); err != nil {
			return nil, err
		}
		if sum.ChargeableExcessLoss, err = parseDecimal(chargeable); err != nil {
			return nil, err
		}
		if sum.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
			return nil, fmt.Errorf("failed to parse updated_at for %s: %w", day, err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// =============================================================================
// DAILY SYNOPSIS (spirit.SynopsisSink)
// =============================================================================

func (s *Store) UpsertDailySynopsis(ctx context.Context, date spirit.Date, syn spirit.DailySynopsis) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	synJSON, err := json.Marshal(syn)
	if err != nil {
		return fmt.Errorf("failed to encode synopsis: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO daily_synopsis (ledger_date, status, fee_payable, synopsis_json, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(ledger_date) DO UPDATE SET
			status = excluded.status,
			fee_payable = excluded.fee_payable,
			synopsis_json = excluded.synopsis_json,
			updated_at = excluded.updated_at
	`,
		date.String(), string(syn.Status), syn.FeePayable.String(), string(synJSON), now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert daily synopsis: %w", err)
	}
	return nil
}

func (s *Store) DailySynopsis(ctx context.Context, date spirit.Date) (spirit.DailySynopsis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var synJSON string
	err := s.db.QueryRowContext(ctx,
		"SELECT synopsis_json FROM daily_synopsis WHERE ledger_date = ?", date.String(),
	).Scan(&synJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return spirit.DailySynopsis{}, fmt.Errorf("%w: synopsis %s", spirit.ErrLedgerNotFound, date)
	}
	if err != nil {
		return spirit.DailySynopsis{}, fmt.Errorf("failed to get daily synopsis: %w", err)
	}

	var syn spirit.DailySynopsis
	if err := json.Unmarshal([]byte(synJSON), &syn); err != nil {
		return spirit.DailySynopsis{}, fmt.Errorf("failed to decode daily synopsis: %w", err)
	}
	return syn, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// ensureID assigns a uuid to a blank id.
func ensureID(id *string) string {
	if *id == "" {
		*id = uuid.NewString()
	}
	return *id
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse stored decimal %q: %w", s, err)
	}
	return d, nil
}

func parseNullDecimal(ns sql.NullString) (*decimal.Decimal, error) {
	if !ns.Valid {
		return nil, nil
	}
	d, err := parseDecimal(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
