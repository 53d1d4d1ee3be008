/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model in spirit/ from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Tanks:
    TankStateRequest, TankStateDTO, TankBalanceDTO

  Events:
    ReceiptRequest, TransferRequest, ProductionRequest, EventResponse

  Ledger:
    RefreshRangeRequest, RefreshRangeResponse, LedgerSummaryDTO

  Wastage:
    ClassifyRequest, WastageDTO

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Request shapes are checked with go-playground/validator struct tags
  (custom rules "decimal" and "tank_id" live in validation.go).
  Quantities travel as decimal strings ("4800.25") so nothing is rounded
  by a float on the way in. Domain rules (AL <= bulk, known tanks) are
  checked by the spirit types after conversion.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/plant.go: PlantJSON type
*/
package api

import (
	"github.com/shopspring/decimal"
	"github.com/warp/spirit-ledger/spirit"
)

// =============================================================================
// TANK TYPES
// =============================================================================

// TankStateRequest records a new reading for a tank. AL is derived from
// bulk and strength.
type TankStateRequest struct {
	ID         string `json:"id,omitempty" validate:"omitempty,max=64"`
	BulkVolume string `json:"bulk_volume" validate:"required,decimal"`
	Strength   string `json:"strength" validate:"required,decimal"`
	AsOf       string `json:"as_of_date" validate:"required,datetime=2006-01-02"`
}

// TankStateDTO is one reading in a tank history.
type TankStateDTO struct {
	ID              string          `json:"id"`
	TankID          string          `json:"tank_id"`
	BulkVolume      decimal.Decimal `json:"bulk_volume"`
	AlcoholicVolume decimal.Decimal `json:"alcoholic_volume"`
	Strength        decimal.Decimal `json:"strength"`
	AsOf            spirit.Date     `json:"as_of_date"`
	Seq             int64           `json:"seq"`
}

// TankBalanceDTO is a resolved tank content for one date.
type TankBalanceDTO struct {
	TankID          string          `json:"tank_id"`
	Pool            spirit.Pool     `json:"pool"`
	Date            spirit.Date     `json:"date"`
	Mode            string          `json:"mode"`
	BulkVolume      decimal.Decimal `json:"bulk_volume"`
	AlcoholicVolume decimal.Decimal `json:"alcoholic_volume"`
	Strength        decimal.Decimal `json:"strength"`
}

func toTankStateDTO(s spirit.TankState) TankStateDTO {
	return TankStateDTO{
		ID:              s.ID,
		TankID:          string(s.TankID),
		BulkVolume:      s.BulkVolume,
		AlcoholicVolume: s.AlcoholicVolume,
		Strength:        s.Strength,
		AsOf:            s.AsOf,
		Seq:             s.Seq,
	}
}

// =============================================================================
// EVENT TYPES
// =============================================================================

// ReceiptRequest records an inbound consignment.
type ReceiptRequest struct {
	ID          string `json:"id,omitempty" validate:"omitempty,max=64"`
	TankID      string `json:"tank_id" validate:"required,tank_id"`
	Reference   string `json:"reference,omitempty"`
	AdvisedAL   string `json:"advised_al" validate:"required,decimal"`
	ReceivedAL  string `json:"received_al" validate:"required,decimal"`
	ReceiptDate string `json:"receipt_date" validate:"required,datetime=2006-01-02"`
}

// TransferRequest records a tank-to-tank move or a dilution.
type TransferRequest struct {
	ID              string `json:"id,omitempty" validate:"omitempty,max=64"`
	SourceTank      string `json:"source_tank" validate:"required,tank_id"`
	DestinationTank string `json:"destination_tank" validate:"required,tank_id"`
	BulkVolume      string `json:"bulk_volume" validate:"required,decimal"`
	AlcoholicVolume string `json:"alcoholic_volume" validate:"required,decimal"`
	OperationDate   string `json:"operation_date" validate:"required,datetime=2006-01-02"`
	StorageWastage  string `json:"storage_wastage,omitempty" validate:"omitempty,decimal"`
	SampleAL        string `json:"sample_al,omitempty" validate:"omitempty,decimal"`
}

// BottleCountRequest is one bottle size and how many were filled.
type BottleCountRequest struct {
	UnitLitres string `json:"unit_litres" validate:"required,decimal"`
	Count      int64  `json:"count" validate:"gte=0"`
}

// ProductionRequest records a bottling run.
type ProductionRequest struct {
	ID               string               `json:"id,omitempty" validate:"omitempty,max=64"`
	SourceTank       string               `json:"source_tank" validate:"required,tank_id"`
	ProductionDate   string               `json:"production_date" validate:"required,datetime=2006-01-02"`
	MeteredAL        string               `json:"metered_al" validate:"required,decimal"`
	Strength         string               `json:"strength" validate:"required,decimal"`
	Bottles          []BottleCountRequest `json:"bottles" validate:"dive"`
	AllowableLossPct string               `json:"allowable_loss_pct,omitempty" validate:"omitempty,decimal"`
}

// EventResponse is returned by every append endpoint: the stored event and
// the day it landed on, freshly recomputed.
type EventResponse struct {
	EventID  string                `json:"event_id"`
	Date     spirit.Date           `json:"date"`
	State    *TankStateDTO         `json:"state,omitempty"`
	Ledger   spirit.DailyLedgerRow `json:"ledger"`
	Synopsis spirit.DailySynopsis  `json:"synopsis"`
}

// =============================================================================
// LEDGER TYPES
// =============================================================================

// RefreshRangeRequest queues every day in [from, to].
type RefreshRangeRequest struct {
	From string `json:"from" validate:"required,datetime=2006-01-02"`
	To   string `json:"to" validate:"required,datetime=2006-01-02"`
	Wait bool   `json:"wait,omitempty"`
}

// RefreshRangeResponse reports what was queued, and the stored rows when
// the caller waited for the queue to drain.
type RefreshRangeResponse struct {
	Queued []string           `json:"queued"`
	Stats  QueueStatsDTO      `json:"stats"`
	Rows   []LedgerSummaryDTO `json:"rows,omitempty"`
}

type QueueStatsDTO struct {
	Pending   int    `json:"pending"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	LastError string `json:"last_error,omitempty"`
}

// LedgerSummaryDTO is one line of the ledger listing.
type LedgerSummaryDTO struct {
	Date                 spirit.Date            `json:"date"`
	Status               spirit.ReconcileStatus `json:"status"`
	Note                 string                 `json:"note"`
	NetDifference        decimal.Decimal        `json:"net_difference"`
	ChargeableExcessLoss decimal.Decimal        `json:"chargeable_excess_loss"`
	UpdatedAt            string                 `json:"updated_at"`
}

// =============================================================================
// WASTAGE TYPES
// =============================================================================

// ClassifyRequest asks for a one-off wastage classification.
type ClassifyRequest struct {
	Expected         string `json:"expected" validate:"required,decimal"`
	Observed         string `json:"observed" validate:"required,decimal"`
	AllowableLossPct string `json:"allowable_loss_pct,omitempty" validate:"omitempty,decimal"`
}

type WastageDTO struct {
	Expected        decimal.Decimal `json:"expected"`
	Observed        decimal.Decimal `json:"observed"`
	Loss            decimal.Decimal `json:"loss"`
	LossPercentage  decimal.Decimal `json:"loss_percentage"`
	AllowablePct    decimal.Decimal `json:"allowable_pct"`
	AllowableLoss   decimal.Decimal `json:"allowable_loss"`
	WithinAllowance bool            `json:"within_allowance"`
	Critical        bool            `json:"critical"`
	Tier            string          `json:"tier"`
}

// =============================================================================
// SCENARIO TYPES
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// LoadScenarioResponse carries the rows computed by the scenario.
type LoadScenarioResponse struct {
	Scenario ScenarioDTO             `json:"scenario"`
	Rows     []spirit.DailyLedgerRow `json:"rows"`
	Synopses []spirit.DailySynopsis  `json:"synopses"`
}

// ErrorResponse is the error body for every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
