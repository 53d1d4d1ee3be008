// Package store provides in-memory EventLog and sink implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/spirit-ledger/spirit"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu         sync.RWMutex
	seq        int64
	receipts   map[string][]spirit.ReceiptEvent
	transfers  map[string][]spirit.TransferEvent
	production map[string][]spirit.ProductionEvent
	tanks      map[spirit.TankID][]spirit.TankState
	ledger     map[string]spirit.DailyLedgerRow
	synopsis   map[string]spirit.DailySynopsis

	// Upserts counts ledger writes per date, for last-write-wins tests.
	upserts map[string]int
}

func NewMemory() *Memory {
	return &Memory{
		receipts:   make(map[string][]spirit.ReceiptEvent),
		transfers:  make(map[string][]spirit.TransferEvent),
		production: make(map[string][]spirit.ProductionEvent),
		tanks:      make(map[spirit.TankID][]spirit.TankState),
		ledger:     make(map[string]spirit.DailyLedgerRow),
		synopsis:   make(map[string]spirit.DailySynopsis),
		upserts:    make(map[string]int),
	}
}

// =============================================================================
// APPEND - Event log writes
// =============================================================================

func (m *Memory) AppendReceipt(_ context.Context, e spirit.ReceiptEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := e.ReceiptDate.String()
	m.receipts[k] = append(m.receipts[k], e)
	return nil
}

func (m *Memory) AppendTransfer(_ context.Context, e spirit.TransferEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := e.OperationDate.String()
	m.transfers[k] = append(m.transfers[k], e)
	return nil
}

func (m *Memory) AppendProduction(_ context.Context, e spirit.ProductionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := e.ProductionDate.String()
	e.Bottles = append([]spirit.BottleCount(nil), e.Bottles...)
	m.production[k] = append(m.production[k], e)
	return nil
}

// AppendTankState keeps history ordered by AsOf; equal dates stay in
// insertion order.
func (m *Memory) AppendTankState(_ context.Context, s spirit.TankState) (spirit.TankState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	s.Seq = m.seq

	states := m.tanks[s.TankID]
	i := sort.Search(len(states), func(i int) bool {
		return states[i].AsOf.After(s.AsOf)
	})
	states = append(states, spirit.TankState{})
	copy(states[i+1:], states[i:])
	states[i] = s
	m.tanks[s.TankID] = states
	return s, nil
}

// =============================================================================
// QUERIES - spirit.EventStore
// =============================================================================

func (m *Memory) ReceiptsForDate(_ context.Context, date spirit.Date) ([]spirit.ReceiptEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]spirit.ReceiptEvent(nil), m.receipts[date.String()]...), nil
}

func (m *Memory) TransfersForDate(_ context.Context, date spirit.Date) ([]spirit.TransferEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]spirit.TransferEvent(nil), m.transfers[date.String()]...), nil
}

func (m *Memory) ProductionForDate(_ context.Context, date spirit.Date) ([]spirit.ProductionEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]spirit.ProductionEvent(nil), m.production[date.String()]...), nil
}

func (m *Memory) TankHistory(_ context.Context, tank spirit.TankID) ([]spirit.TankState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]spirit.TankState, len(m.tanks[tank]))
	copy(result, m.tanks[tank])
	return result, nil
}

// =============================================================================
// SINKS - spirit.LedgerSink, spirit.SynopsisSink, spirit.LedgerReader
// =============================================================================

func (m *Memory) UpsertDailyLedger(_ context.Context, date spirit.Date, row spirit.DailyLedgerRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledger[date.String()] = row
	m.upserts[date.String()]++
	return nil
}

func (m *Memory) UpsertDailySynopsis(_ context.Context, date spirit.Date, s spirit.DailySynopsis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.synopsis[date.String()] = s
	return nil
}

func (m *Memory) DailyLedger(_ context.Context, date spirit.Date) (spirit.DailyLedgerRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.ledger[date.String()]
	if !ok {
		return spirit.DailyLedgerRow{}, spirit.ErrLedgerNotFound
	}
	return row, nil
}

func (m *Memory) DailySynopsis(_ context.Context, date spirit.Date) (spirit.DailySynopsis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.synopsis[date.String()]
	if !ok {
		return spirit.DailySynopsis{}, spirit.ErrLedgerNotFound
	}
	return s, nil
}

// Upserts returns how many times the ledger row for date was written.
func (m *Memory) Upserts(date spirit.Date) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.upserts[date.String()]
}
