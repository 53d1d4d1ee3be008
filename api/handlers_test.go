/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Event submission (receipts, transfers, production, tank readings)
- Request validation and error status mapping
- Ledger, synopsis and tank balance reads
- Range refresh through the queue
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/spirit-ledger/factory"
	"github.com/warp/spirit-ledger/spirit"
	"github.com/warp/spirit-ledger/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestHandler(t *testing.T) (*Handler, *chi.Mux) {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	plant, err := factory.NewPlantFactory().ParsePlant(factory.DefaultPlantJSON())
	require.NoError(t, err)

	h := NewHandler(store, plant, zerolog.Nop())
	return h, NewRouter(h)
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func dec2(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// =============================================================================
// EVENT SUBMISSION TESTS
// =============================================================================

func TestCreateReceipt_RefreshesDay(t *testing.T) {
	// GIVEN: An empty store
	_, router := newTestHandler(t)

	// WHEN: Posting a receipt 2 AL short of advice
	rec := do(t, router, http.MethodPost, "/api/receipts", ReceiptRequest{
		TankID:      "PT-2",
		AdvisedAL:   "1000",
		ReceivedAL:  "998",
		ReceiptDate: "2025-03-03",
	})

	// THEN: The day is recomputed and returned with the event id
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[EventResponse](t, rec)
	assert.NotEmpty(t, resp.EventID)
	assert.Equal(t, "2025-03-03", resp.Date.String())
	assert.True(t, dec2("1000").Equal(resp.Ledger.Primary.Receipts))
	assert.True(t, dec2("2").Equal(resp.Ledger.Primary.TransitLoss))

	// AND: The row is stored
	rec = do(t, router, http.MethodGet, "/api/ledger/2025-03-03", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	row := decode[spirit.DailyLedgerRow](t, rec)
	assert.True(t, dec2("998").Equal(row.ReceivedAL))

	rec = do(t, router, http.MethodGet, "/api/synopsis/2025-03-03", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateReceipt_Validation(t *testing.T) {
	_, router := newTestHandler(t)

	cases := []struct {
		name    string
		body    any
		details string
	}{
		{
			name:    "missing advised",
			body:    ReceiptRequest{TankID: "PT-2", ReceivedAL: "998", ReceiptDate: "2025-03-03"},
			details: "advised_al: required",
		},
		{
			name:    "not a decimal",
			body:    ReceiptRequest{TankID: "PT-2", AdvisedAL: "ten", ReceivedAL: "998", ReceiptDate: "2025-03-03"},
			details: "advised_al: decimal",
		},
		{
			name:    "bad date",
			body:    ReceiptRequest{TankID: "PT-2", AdvisedAL: "1", ReceivedAL: "1", ReceiptDate: "03/03/2025"},
			details: "receipt_date: datetime",
		},
		{
			name:    "bad tank id",
			body:    ReceiptRequest{TankID: "PT 2!", AdvisedAL: "1", ReceivedAL: "1", ReceiptDate: "2025-03-03"},
			details: "tank_id: tank_id",
		},
		{
			name:    "unknown field",
			body:    `{"tank_id":"PT-2","advised_al":"1","received_al":"1","receipt_date":"2025-03-03","colour":"amber"}`,
			details: "unknown field",
		},
		{
			name:    "blending tank",
			body:    ReceiptRequest{TankID: "BT-1", AdvisedAL: "1", ReceivedAL: "1", ReceiptDate: "2025-03-03"},
			details: "BT-1 is not a primary tank",
		},
		{
			name:    "unregistered tank",
			body:    ReceiptRequest{TankID: "PT-9", AdvisedAL: "1", ReceivedAL: "1", ReceiptDate: "2025-03-03"},
			details: "unknown tank",
		},
		{
			name:    "negative advised",
			body:    ReceiptRequest{TankID: "PT-2", AdvisedAL: "-1", ReceivedAL: "1", ReceiptDate: "2025-03-03"},
			details: "invalid event",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/api/receipts", c.body)

			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			resp := decode[ErrorResponse](t, rec)
			assert.Equal(t, "Invalid receipt", resp.Error)
			assert.Contains(t, resp.Details, c.details)
		})
	}
}

func TestCreateTransfer_UnknownDestination(t *testing.T) {
	_, router := newTestHandler(t)

	rec := do(t, router, http.MethodPost, "/api/transfers", TransferRequest{
		SourceTank:      "PT-1",
		DestinationTank: "BT-9",
		BulkVolume:      "10",
		AlcoholicVolume: "8",
		OperationDate:   "2025-03-03",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Details, "BT-9")
}

func TestCreateTransfer_WithSampleAndWastage(t *testing.T) {
	_, router := newTestHandler(t)

	rec := do(t, router, http.MethodPost, "/api/transfers", TransferRequest{
		ID:              "xfer-1",
		SourceTank:      "PT-1",
		DestinationTank: "BT-2",
		BulkVolume:      "1250",
		AlcoholicVolume: "1000",
		OperationDate:   "2025-03-04",
		StorageWastage:  "3",
		SampleAL:        "0.25",
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[EventResponse](t, rec)
	assert.Equal(t, "xfer-1", resp.EventID)
	assert.True(t, dec2("1000").Equal(resp.Ledger.Primary.TransferOut))
	assert.True(t, dec2("0.25").Equal(resp.Ledger.Primary.Samples))
	assert.True(t, dec2("1000").Equal(resp.Ledger.Blending.TransferIn))
}

func TestCreateProduction_RequiresBlendingTank(t *testing.T) {
	_, router := newTestHandler(t)
	body := ProductionRequest{
		SourceTank:     "PT-1",
		ProductionDate: "2025-03-03",
		MeteredAL:      "450",
		Strength:       "40",
		Bottles:        []BottleCountRequest{{UnitLitres: "0.75", Count: 1497}},
	}

	rec := do(t, router, http.MethodPost, "/api/production", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body.SourceTank = "BT-1"
	body.Bottles = append(body.Bottles, BottleCountRequest{UnitLitres: "abc", Count: 1})
	rec = do(t, router, http.MethodPost, "/api/production", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Details, "bottles[1].unit_litres: decimal")
}

func TestCreateProduction_ClassifiesRun(t *testing.T) {
	_, router := newTestHandler(t)

	rec := do(t, router, http.MethodPost, "/api/production", ProductionRequest{
		SourceTank:     "BT-1",
		ProductionDate: "2025-03-03",
		MeteredAL:      "450",
		Strength:       "40",
		Bottles: []BottleCountRequest{
			{UnitLitres: "0.75", Count: 1497},
			{UnitLitres: "1", Count: 1},
		},
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[EventResponse](t, rec)
	assert.True(t, dec2("449.5").Equal(resp.Ledger.Production.BottledAL))
	assert.True(t, dec2("0.5").Equal(resp.Ledger.Production.ProductionLoss))
	assert.True(t, dec2("1123.75").Equal(resp.Synopsis.BottledBulk))
}

// =============================================================================
// TANK TESTS
// =============================================================================

func TestAppendTankState_RefreshesDayAndQueuesNext(t *testing.T) {
	// GIVEN: A handler whose queue is not running
	h, router := newTestHandler(t)

	// WHEN: Recording a reading for PT-1
	rec := do(t, router, http.MethodPost, "/api/tanks/PT-1/states", TankStateRequest{
		BulkVolume: "6000",
		Strength:   "80",
		AsOf:       "2025-03-02",
	})

	// THEN: Its own day closes on it and the next day is waiting
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[EventResponse](t, rec)
	require.NotNil(t, resp.State)
	assert.Equal(t, int64(1), resp.State.Seq)
	assert.True(t, dec2("4800").Equal(resp.State.AlcoholicVolume))
	assert.True(t, dec2("4800").Equal(resp.Ledger.Primary.Actual))
	assert.Equal(t, 1, h.Queue.Stats().Pending)
}

func TestAppendTankState_Errors(t *testing.T) {
	_, router := newTestHandler(t)

	rec := do(t, router, http.MethodPost, "/api/tanks/XX-1/states", TankStateRequest{BulkVolume: "1", Strength: "40", AsOf: "2025-03-02"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/tanks/PT-1/states", TankStateRequest{BulkVolume: "1", Strength: "140", AsOf: "2025-03-02"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Details, "invalid tank state")

}

func TestAppendTankState_AlcoholicVolumeIsAlwaysDerived(t *testing.T) {
	// GIVEN: A reading that tries to carry its own AL figure
	_, router := newTestHandler(t)
	body := `{"bulk_volume":"100","strength":"50","alcoholic_volume":"90","as_of_date":"2025-03-02"}`

	// WHEN: Posting it
	rec := do(t, router, http.MethodPost, "/api/tanks/PT-1/states", body)

	// THEN: The field is refused and nothing is recorded
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, router, http.MethodGet, "/api/tanks/PT-1/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]TankStateDTO](t, rec))

	// WHEN: Posting the same reading without it
	rec = do(t, router, http.MethodPost, "/api/tanks/PT-1/states",
		TankStateRequest{BulkVolume: "100", Strength: "50", AsOf: "2025-03-02"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// THEN: AL is bulk times strength
	rec = do(t, router, http.MethodGet, "/api/tanks/PT-1/history", nil)
	history := decode[[]TankStateDTO](t, rec)
	require.Len(t, history, 1)
	assert.True(t, dec2("50").Equal(history[0].AlcoholicVolume))
}

func TestTankHistoryAndBalance(t *testing.T) {
	_, router := newTestHandler(t)
	for _, req := range []TankStateRequest{
		{BulkVolume: "1000", Strength: "90", AsOf: "2025-03-02"},
		{BulkVolume: "800", Strength: "90", AsOf: "2025-03-03"},
	} {
		rec := do(t, router, http.MethodPost, "/api/tanks/PT-1/states", req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := do(t, router, http.MethodGet, "/api/tanks/PT-1/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]TankStateDTO](t, rec), 2)

	rec = do(t, router, http.MethodGet, "/api/tanks/PT-1/balance?date=2025-03-03&mode=opening", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	opening := decode[TankBalanceDTO](t, rec)
	assert.Equal(t, spirit.PoolPrimary, opening.Pool)
	assert.True(t, dec2("900").Equal(opening.AlcoholicVolume))

	rec = do(t, router, http.MethodGet, "/api/tanks/PT-1/balance?date=2025-03-03", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	closing := decode[TankBalanceDTO](t, rec)
	assert.Equal(t, "closing", closing.Mode)
	assert.True(t, dec2("720").Equal(closing.AlcoholicVolume))

	rec = do(t, router, http.MethodGet, "/api/tanks/PT-1/balance?date=2025-03-03&mode=noon", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/tanks/PT-1/balance", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// LEDGER TESTS
// =============================================================================

func TestGetLedger_Errors(t *testing.T) {
	_, router := newTestHandler(t)

	rec := do(t, router, http.MethodGet, "/api/ledger/2025-03-09", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/ledger/yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/synopsis/2025-03-09", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefreshLedger_Synchronous(t *testing.T) {
	_, router := newTestHandler(t)

	rec := do(t, router, http.MethodPost, "/api/ledger/2025-03-05/refresh", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[EventResponse](t, rec)
	assert.Equal(t, spirit.StatusOK, resp.Ledger.Status)

	rec = do(t, router, http.MethodPost, "/api/ledger/not-a-date/refresh", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshRange_WaitReturnsRows(t *testing.T) {
	// GIVEN: A running queue
	h, router := newTestHandler(t)
	h.Queue.Start()
	defer h.Queue.Stop()

	// WHEN: Refreshing three days and waiting
	rec := do(t, router, http.MethodPost, "/api/ledger/refresh", RefreshRangeRequest{From: "2025-03-02", To: "2025-03-04", Wait: true})

	// THEN: Every day was computed and stored
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[RefreshRangeResponse](t, rec)
	assert.Equal(t, []string{"2025-03-02", "2025-03-03", "2025-03-04"}, resp.Queued)
	assert.Len(t, resp.Rows, 3)
	assert.Equal(t, 3, resp.Stats.Processed)

	rec = do(t, router, http.MethodGet, "/api/ledger?from=2025-03-01&to=2025-03-31&status=ok", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]LedgerSummaryDTO](t, rec), 3)

	rec = do(t, router, http.MethodGet, "/api/ledger/queue", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[QueueStatsDTO](t, rec).Pending)
}

func TestRefreshRange_AcceptedWithoutWait(t *testing.T) {
	h, router := newTestHandler(t)

	rec := do(t, router, http.MethodPost, "/api/ledger/refresh", RefreshRangeRequest{From: "2025-03-02", To: "2025-03-03"})

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 2, h.Queue.Stats().Pending)

	h.Queue.Start()
	defer h.Queue.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.Queue.Flush(ctx))
}

func TestRefreshRange_Rejected(t *testing.T) {
	_, router := newTestHandler(t)

	rec := do(t, router, http.MethodPost, "/api/ledger/refresh", RefreshRangeRequest{From: "2025-03-04", To: "2025-03-02"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/ledger/refresh", RefreshRangeRequest{From: "2024-01-01", To: "2025-03-02"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/ledger/refresh", RefreshRangeRequest{From: "2025-03-04"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// WASTAGE AND PLANT TESTS
// =============================================================================

func TestClassifyWastage(t *testing.T) {
	_, router := newTestHandler(t)

	rec := do(t, router, http.MethodPost, "/api/wastage/classify", ClassifyRequest{Expected: "450", Observed: "449.5"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[WastageDTO](t, rec)
	assert.True(t, dec2("0.5").Equal(res.Loss))
	assert.True(t, dec2("0.45").Equal(res.AllowableLoss))
	assert.False(t, res.WithinAllowance)
	assert.False(t, res.Critical)
	assert.Equal(t, "exceeds_allowance", res.Tier)

	rec = do(t, router, http.MethodPost, "/api/wastage/classify", ClassifyRequest{Expected: "100", Observed: "98.5", AllowableLossPct: "2"})
	require.Equal(t, http.StatusOK, rec.Code)
	res = decode[WastageDTO](t, rec)
	assert.True(t, res.WithinAllowance)
	assert.Equal(t, "critical", res.Tier)

	rec = do(t, router, http.MethodPost, "/api/wastage/classify", ClassifyRequest{Expected: "0", Observed: "0"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[WastageDTO](t, rec).LossPercentage.IsZero())
}

func TestGetPlant(t *testing.T) {
	_, router := newTestHandler(t)

	rec := do(t, router, http.MethodGet, "/api/plant", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	plant := decode[factory.PlantJSON](t, rec)
	assert.Equal(t, []string{"PT-1", "PT-2"}, plant.PrimaryTanks)
	assert.Equal(t, []string{"BT-1", "BT-2"}, plant.BlendingTanks)
}
