/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with a few days
	of realistic bonded-store activity. Each scenario resets the database,
	appends tank readings and events through the same EventLog the API
	uses, then refreshes every day it touched, oldest first.

AVAILABLE SCENARIOS (cumulative, on the default plant):

	day-one:      Receipt with transit loss, transfer to blending, bottling
	              run slightly over the production allowance. Reconciles.
	storage-loss: day-one, then a transfer with a storage dip and a sample
	              draw, and 0.4 AL missing from PT-2. Primary pool warns.
	transit-gain: storage-loss, then one receipt over advice and one under.
	              Gain and loss are booked separately. Reconciles.

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "day-one"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description, last date
 2. Create loader function: loadXxx(ctx, log) returning the dates it wrote
 3. Add it to the scenarioLoaders map

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Event handlers that use the same conversions
  - daybook/engine.go: Refresh
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/spirit-ledger/spirit"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "day-one",
		Name:        "Day One",
		Description: "Receipt, transfer to blending and one bottling run; both pools reconcile",
		Date:        "2025-03-03",
	},
	{
		ID:          "storage-loss",
		Name:        "Storage Loss",
		Description: "Storage dip and sample draw on a transfer; 0.4 AL unexplained in the primary pool",
		Date:        "2025-03-04",
	},
	{
		ID:          "transit-gain",
		Name:        "Transit Gain",
		Description: "Two receipts on one day, one over advice and one short",
		Date:        "2025-03-05",
	},
}

type scenarioLoader func(ctx context.Context, log spirit.EventLog) ([]spirit.Date, error)

var scenarioLoaders = map[string]scenarioLoader{
	"day-one":      loadDayOne,
	"storage-loss": chain(loadDayOne, loadStorageLoss),
	"transit-gain": chain(loadDayOne, loadStorageLoss, loadTransitGain),
}

// ListScenarios returns all available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"scenario_id": h.currentScenario,
	})
}

// LoadScenario resets the database and loads a scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decodeRequest(r, &req, spirit.ErrInvalidEvent); err != nil {
		writeDomainError(w, "Invalid request body", err)
		return
	}

	resp, err := h.loadScenario(r.Context(), req.ScenarioID)
	if err != nil {
		if _, ok := scenarioLoaders[req.ScenarioID]; !ok {
			writeError(w, http.StatusNotFound, "Unknown scenario", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) loadScenario(ctx context.Context, id string) (LoadScenarioResponse, error) {
	loader, ok := scenarioLoaders[id]
	if !ok {
		return LoadScenarioResponse{}, fmt.Errorf("unknown scenario: %s", id)
	}

	if err := h.Store.Reset(ctx); err != nil {
		return LoadScenarioResponse{}, err
	}
	h.currentScenario = ""

	dates, err := loader(ctx, h.Store)
	if err != nil {
		return LoadScenarioResponse{}, err
	}

	resp := LoadScenarioResponse{}
	for _, s := range scenarios {
		if s.ID == id {
			resp.Scenario = s
		}
	}
	for _, d := range dates {
		res, err := h.Engine.Refresh(ctx, d)
		if err != nil {
			return LoadScenarioResponse{}, err
		}
		resp.Rows = append(resp.Rows, res.Row)
		resp.Synopses = append(resp.Synopses, res.Synopsis)
	}

	h.currentScenario = id
	h.Logger.Info().Str("scenario", id).Int("days", len(dates)).Msg("scenario loaded")
	return resp, nil
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func chain(loaders ...scenarioLoader) scenarioLoader {
	return func(ctx context.Context, log spirit.EventLog) ([]spirit.Date, error) {
		var dates []spirit.Date
		for _, l := range loaders {
			d, err := l(ctx, log)
			if err != nil {
				return nil, err
			}
			dates = append(dates, d...)
		}
		return dates, nil
	}
}

// =============================================================================
// SCENARIO: DAY ONE
// =============================================================================

// loadDayOne: 5000 AL opening in the primary pool, blending empty.
//
//	receipt   advised 1000, received 998 into PT-2  (transit loss 2)
//	transfer  PT-1 -> BT-1, 625 L @ 80% = 500 AL
//	dilution  BT-1 to 1250 L @ 40%
//	bottling  metered 450 AL, 1497 x 0.75 L + 1 x 1 L @ 40% = 449.5 AL
//
// Primary closes at 5498, blending at 50.
func loadDayOne(ctx context.Context, log spirit.EventLog) ([]spirit.Date, error) {
	prev := spirit.NewDate(2025, time.March, 2)
	day := spirit.NewDate(2025, time.March, 3)

	states := []spirit.TankState{
		reading("PT-1", "6000", "80", prev),
		reading("PT-2", "250", "80", prev),
		reading("PT-1", "5375", "80", day),
		reading("PT-2", "1497.5", "80", day),
		reading("BT-1", "625", "80", day),
		reading("BT-1", "1250", "40", day),
		reading("BT-1", "125", "40", day),
	}
	if err := appendStates(ctx, log, states); err != nil {
		return nil, err
	}

	if err := log.AppendReceipt(ctx, spirit.ReceiptEvent{
		ID:          "rcpt-0303-1",
		TankID:      "PT-2",
		Reference:   "DN-44810",
		AdvisedAL:   dec("1000"),
		ReceivedAL:  dec("998"),
		ReceiptDate: day,
	}); err != nil {
		return nil, err
	}

	for _, t := range []spirit.TransferEvent{
		{
			ID:              "xfer-0303-1",
			SourceTank:      "PT-1",
			DestinationTank: "BT-1",
			BulkVolume:      dec("625"),
			AlcoholicVolume: dec("500"),
			OperationDate:   day,
		},
		{
			ID:              "dil-0303-1",
			SourceTank:      "BT-1",
			DestinationTank: "BT-1",
			BulkVolume:      dec("625"),
			AlcoholicVolume: decimal.Zero,
			OperationDate:   day,
		},
	} {
		if err := log.AppendTransfer(ctx, t); err != nil {
			return nil, err
		}
	}

	if err := log.AppendProduction(ctx, spirit.ProductionEvent{
		ID:             "run-0303-1",
		SourceTank:     "BT-1",
		ProductionDate: day,
		MeteredAL:      dec("450"),
		Strength:       dec("40"),
		Bottles: []spirit.BottleCount{
			{UnitLitres: dec("0.75"), Count: 1497},
			{UnitLitres: dec("1"), Count: 1},
		},
		AllowableLossPct: decimalPtr("0.1"),
	}); err != nil {
		return nil, err
	}

	return []spirit.Date{day}, nil
}

// =============================================================================
// SCENARIO: STORAGE LOSS
// =============================================================================

// loadStorageLoss: PT-1 -> BT-2, 1250 L @ 80% = 1000 AL, with a dip that
// found 3 AL short in PT-1 and a 0.25 AL sample. PT-2 reads 0.4 AL low.
func loadStorageLoss(ctx context.Context, log spirit.EventLog) ([]spirit.Date, error) {
	day := spirit.NewDate(2025, time.March, 4)

	states := []spirit.TankState{
		reading("PT-1", "4120.9375", "80", day),
		reading("PT-2", "1497", "80", day),
		reading("BT-2", "1250", "80", day),
	}
	if err := appendStates(ctx, log, states); err != nil {
		return nil, err
	}

	if err := log.AppendTransfer(ctx, spirit.TransferEvent{
		ID:              "xfer-0304-1",
		SourceTank:      "PT-1",
		DestinationTank: "BT-2",
		BulkVolume:      dec("1250"),
		AlcoholicVolume: dec("1000"),
		OperationDate:   day,
		StorageWastage:  decimalPtr("3"),
		SampleAL:        decimalPtr("0.25"),
	}); err != nil {
		return nil, err
	}

	return []spirit.Date{day}, nil
}

// =============================================================================
// SCENARIO: TRANSIT GAIN
// =============================================================================

// loadTransitGain: two receipts into PT-2. 800 advised, 801.5 received
// (gain 1.5), and 500 advised, 499 received (loss 1).
func loadTransitGain(ctx context.Context, log spirit.EventLog) ([]spirit.Date, error) {
	day := spirit.NewDate(2025, time.March, 5)

	if err := appendStates(ctx, log, []spirit.TankState{
		reading("PT-2", "3122.625", "80", day),
	}); err != nil {
		return nil, err
	}

	for _, e := range []spirit.ReceiptEvent{
		{ID: "rcpt-0305-1", TankID: "PT-2", Reference: "DN-44902", AdvisedAL: dec("800"), ReceivedAL: dec("801.5"), ReceiptDate: day},
		{ID: "rcpt-0305-2", TankID: "PT-2", Reference: "DN-44903", AdvisedAL: dec("500"), ReceivedAL: dec("499"), ReceiptDate: day},
	} {
		if err := log.AppendReceipt(ctx, e); err != nil {
			return nil, err
		}
	}

	return []spirit.Date{day}, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func reading(tank, bulk, strength string, asOf spirit.Date) spirit.TankState {
	s := spirit.NewTankState(spirit.TankID(tank), dec(bulk), dec(strength), asOf)
	s.ID = idOrNew("")
	return s
}

func appendStates(ctx context.Context, log spirit.EventLog, states []spirit.TankState) error {
	for _, s := range states {
		if _, err := log.AppendTankState(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
