package spirit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/spirit-ledger/spirit"
	"github.com/warp/spirit-ledger/spirit/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var (
	march2 = spirit.NewDate(2025, time.March, 2)
	march3 = spirit.NewDate(2025, time.March, 3)
	march4 = spirit.NewDate(2025, time.March, 4)
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

// assertDec compares decimals by value, not representation.
func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Truef(t, d(want).Equal(got), "want %s, got %s %v", want, got, msgAndArgs)
}

func testPlant() spirit.Plant {
	return spirit.Plant{
		Name:             "test bond",
		PrimaryTanks:     []spirit.TankID{"PT-1", "PT-2"},
		BlendingTanks:    []spirit.TankID{"BT-1", "BT-2"},
		Tolerance:        d("0.01"),
		AllowableLossPct: d("0.1"),
		FeeRatePerLitre:  d("2"),
	}
}

func state(tank, bulk, strength string, asOf spirit.Date) spirit.TankState {
	return spirit.NewTankState(spirit.TankID(tank), d(bulk), d(strength), asOf)
}

func appendStates(t *testing.T, m *store.Memory, states ...spirit.TankState) {
	t.Helper()
	for _, s := range states {
		_, err := m.AppendTankState(context.Background(), s)
		require.NoError(t, err)
	}
}

// failingStore fails the named query and answers the rest from Memory.
type failingStore struct {
	*store.Memory
	failOn string
	err    error
}

var errStoreDown = errors.New("store down")

func (f *failingStore) ReceiptsForDate(ctx context.Context, date spirit.Date) ([]spirit.ReceiptEvent, error) {
	if f.failOn == "receipts" {
		return nil, f.err
	}
	return f.Memory.ReceiptsForDate(ctx, date)
}

func (f *failingStore) TransfersForDate(ctx context.Context, date spirit.Date) ([]spirit.TransferEvent, error) {
	if f.failOn == "transfers" {
		return nil, f.err
	}
	return f.Memory.TransfersForDate(ctx, date)
}

func (f *failingStore) ProductionForDate(ctx context.Context, date spirit.Date) ([]spirit.ProductionEvent, error) {
	if f.failOn == "production" {
		return nil, f.err
	}
	return f.Memory.ProductionForDate(ctx, date)
}

func (f *failingStore) TankHistory(ctx context.Context, tank spirit.TankID) ([]spirit.TankState, error) {
	if f.failOn == "tanks" {
		return nil, f.err
	}
	return f.Memory.TankHistory(ctx, tank)
}
