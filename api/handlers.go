/*
handlers.go - HTTP API handlers for the spirit balance ledger

PURPOSE:
  Exposes the reconciliation engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to spirit/ and daybook/.

ENDPOINTS:
  Plant:
    GET    /api/plant                       Tank registry and constants

  Tanks:
    POST   /api/tanks/{id}/states           Record a tank reading
    GET    /api/tanks/{id}/history          All readings, oldest first
    GET    /api/tanks/{id}/balance          Resolved content (?date=&mode=)

  Events (each append is followed by a refresh of its date):
    POST   /api/receipts                    Inbound consignment
    POST   /api/transfers                   Tank transfer or dilution
    POST   /api/production                  Bottling run

  Ledger:
    GET    /api/ledger                      Stored rows (?from=&to=&status=)
    GET    /api/ledger/{date}               Stored two-pool row
    POST   /api/ledger/{date}/refresh       Recompute one day now
    POST   /api/ledger/refresh              Queue a range of days
    GET    /api/ledger/queue                Refresh queue stats
    GET    /api/synopsis/{date}             Stored consolidated row

  Wastage:
    POST   /api/wastage/classify            One-off classification

  Scenarios:
    GET    /api/scenarios                   List demo scenarios
    POST   /api/scenarios/load              Load a demo scenario

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate shape (validator tags), then domain rules (spirit Validate)
  3. Append to the event log
  4. RefreshForDate for the affected day
  5. Serialize the event id with the fresh ledger and synopsis

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, unknown tank
  - 404: No stored row for the date
  - 500: Store failures

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/warp/spirit-ledger/daybook"
	"github.com/warp/spirit-ledger/factory"
	"github.com/warp/spirit-ledger/spirit"
	"github.com/warp/spirit-ledger/store/sqlite"
)

// maxRefreshDays bounds one range refresh request.
const maxRefreshDays = 366

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store        *sqlite.Store
	Engine       *daybook.Engine
	Queue        *daybook.RefreshQueue
	Plant        spirit.Plant
	PlantFactory *factory.PlantFactory
	Logger       zerolog.Logger

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler wires the engine and the refresh queue over store. The queue
// is not started; the caller owns its lifecycle.
func NewHandler(store *sqlite.Store, plant spirit.Plant, logger zerolog.Logger) *Handler {
	engine := daybook.NewEngine(store, store, plant, logger.With().Str("subsystem", "engine").Logger())
	return &Handler{
		Store:        store,
		Engine:       engine,
		Queue:        daybook.NewRefreshQueue(engine, logger.With().Str("subsystem", "queue").Logger()),
		Plant:        plant,
		PlantFactory: factory.NewPlantFactory(),
		Logger:       logger,
	}
}

// =============================================================================
// PLANT HANDLERS
// =============================================================================

// GetPlant returns the tank registry and the regulatory constants.
func (h *Handler) GetPlant(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.PlantFactory.ToJSON(h.Plant))
}

// =============================================================================
// TANK HANDLERS
// =============================================================================

// AppendTankState records a reading. The reading's own day is refreshed
// now; the following day, whose opening balance it becomes, is queued.
func (h *Handler) AppendTankState(w http.ResponseWriter, r *http.Request) {
	tank := spirit.TankID(chi.URLParam(r, "id"))
	pool, ok := h.Plant.PoolOf(tank)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown tank", fmt.Errorf("%w: %s", spirit.ErrUnknownTank, tank))
		return
	}

	var req TankStateRequest
	if err := decodeRequest(r, &req, spirit.ErrInvalidTankState); err != nil {
		writeDomainError(w, "Invalid tank state", err)
		return
	}

	state, err := h.toTankState(tank, req)
	if err != nil {
		writeDomainError(w, "Invalid tank state", err)
		return
	}

	stored, err := h.Store.AppendTankState(r.Context(), state)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record tank state", err)
		return
	}

	res, err := h.Engine.Refresh(r.Context(), stored.AsOf)
	if err != nil {
		writeDomainError(w, "Failed to refresh ledger", err)
		return
	}
	if err := h.Queue.Enqueue(stored.AsOf.AddDays(1)); err != nil {
		h.Logger.Warn().Err(err).Str("tank", string(tank)).Msg("could not queue next-day refresh")
	}

	h.Logger.Info().
		Str("tank", string(tank)).
		Str("pool", string(pool)).
		Str("as_of", stored.AsOf.String()).
		Int64("seq", stored.Seq).
		Msg("tank state recorded")

	dto := toTankStateDTO(stored)
	writeJSON(w, http.StatusCreated, EventResponse{
		EventID:  stored.ID,
		Date:     stored.AsOf,
		State:    &dto,
		Ledger:   res.Row,
		Synopsis: res.Synopsis,
	})
}

func (h *Handler) toTankState(tank spirit.TankID, req TankStateRequest) (spirit.TankState, error) {
	asOf, err := spirit.ParseDate(req.AsOf)
	if err != nil {
		return spirit.TankState{}, err
	}
	bulk, err := parseDecimal("bulk_volume", req.BulkVolume, spirit.ErrInvalidTankState)
	if err != nil {
		return spirit.TankState{}, err
	}
	strength, err := parseDecimal("strength", req.Strength, spirit.ErrInvalidTankState)
	if err != nil {
		return spirit.TankState{}, err
	}

	state := spirit.NewTankState(tank, bulk, strength, asOf)
	state.ID = idOrNew(req.ID)

	if err := state.Validate(); err != nil {
		return spirit.TankState{}, err
	}
	return state, nil
}

// GetTankHistory returns every reading of a tank, oldest first.
func (h *Handler) GetTankHistory(w http.ResponseWriter, r *http.Request) {
	tank := spirit.TankID(chi.URLParam(r, "id"))
	if _, ok := h.Plant.PoolOf(tank); !ok {
		writeError(w, http.StatusBadRequest, "Unknown tank", fmt.Errorf("%w: %s", spirit.ErrUnknownTank, tank))
		return
	}

	history, err := h.Store.TankHistory(r.Context(), tank)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load tank history", err)
		return
	}

	dtos := make([]TankStateDTO, len(history))
	for i, s := range history {
		dtos[i] = toTankStateDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetTankBalance resolves a tank's content for ?date= in ?mode= (opening
// or closing, default closing).
func (h *Handler) GetTankBalance(w http.ResponseWriter, r *http.Request) {
	tank := spirit.TankID(chi.URLParam(r, "id"))
	pool, ok := h.Plant.PoolOf(tank)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown tank", fmt.Errorf("%w: %s", spirit.ErrUnknownTank, tank))
		return
	}

	date, err := spirit.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	mode, err := spirit.ParseResolveMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid mode", err)
		return
	}

	reading, err := h.Engine.Aggregator.Resolver.Resolve(r.Context(), tank, date, mode)
	if err != nil {
		writeDomainError(w, "Failed to resolve tank balance", err)
		return
	}

	writeJSON(w, http.StatusOK, TankBalanceDTO{
		TankID:          string(tank),
		Pool:            pool,
		Date:            date,
		Mode:            string(mode),
		BulkVolume:      reading.BulkVolume,
		AlcoholicVolume: reading.AlcoholicVolume,
		Strength:        reading.Strength,
	})
}

// =============================================================================
// EVENT HANDLERS
// =============================================================================

// CreateReceipt records an inbound consignment and refreshes its day.
func (h *Handler) CreateReceipt(w http.ResponseWriter, r *http.Request) {
	var req ReceiptRequest
	if err := decodeRequest(r, &req, spirit.ErrInvalidEvent); err != nil {
		writeDomainError(w, "Invalid receipt", err)
		return
	}

	event, err := h.toReceipt(req)
	if err != nil {
		writeDomainError(w, "Invalid receipt", err)
		return
	}

	if err := h.Store.AppendReceipt(r.Context(), event); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record receipt", err)
		return
	}
	h.refreshAndRespond(w, r, event.ID, event.ReceiptDate)
}

func (h *Handler) toReceipt(req ReceiptRequest) (spirit.ReceiptEvent, error) {
	date, err := spirit.ParseDate(req.ReceiptDate)
	if err != nil {
		return spirit.ReceiptEvent{}, err
	}
	advised, err := parseDecimal("advised_al", req.AdvisedAL, spirit.ErrInvalidEvent)
	if err != nil {
		return spirit.ReceiptEvent{}, err
	}
	received, err := parseDecimal("received_al", req.ReceivedAL, spirit.ErrInvalidEvent)
	if err != nil {
		return spirit.ReceiptEvent{}, err
	}

	event := spirit.ReceiptEvent{
		ID:          idOrNew(req.ID),
		TankID:      spirit.TankID(req.TankID),
		Reference:   req.Reference,
		AdvisedAL:   advised,
		ReceivedAL:  received,
		ReceiptDate: date,
	}
	if err := h.requirePool(event.TankID, spirit.PoolPrimary); err != nil {
		return spirit.ReceiptEvent{}, err
	}
	if err := event.Validate(); err != nil {
		return spirit.ReceiptEvent{}, err
	}
	return event, nil
}

// CreateTransfer records a tank transfer or a dilution and refreshes its day.
func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := decodeRequest(r, &req, spirit.ErrInvalidEvent); err != nil {
		writeDomainError(w, "Invalid transfer", err)
		return
	}

	event, err := h.toTransfer(req)
	if err != nil {
		writeDomainError(w, "Invalid transfer", err)
		return
	}

	if err := h.Store.AppendTransfer(r.Context(), event); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record transfer", err)
		return
	}
	h.refreshAndRespond(w, r, event.ID, event.OperationDate)
}

func (h *Handler) toTransfer(req TransferRequest) (spirit.TransferEvent, error) {
	date, err := spirit.ParseDate(req.OperationDate)
	if err != nil {
		return spirit.TransferEvent{}, err
	}
	bulk, err := parseDecimal("bulk_volume", req.BulkVolume, spirit.ErrInvalidEvent)
	if err != nil {
		return spirit.TransferEvent{}, err
	}
	al, err := parseDecimal("alcoholic_volume", req.AlcoholicVolume, spirit.ErrInvalidEvent)
	if err != nil {
		return spirit.TransferEvent{}, err
	}
	wastage, err := parseOptionalDecimal("storage_wastage", req.StorageWastage, spirit.ErrInvalidEvent)
	if err != nil {
		return spirit.TransferEvent{}, err
	}
	sample, err := parseOptionalDecimal("sample_al", req.SampleAL, spirit.ErrInvalidEvent)
	if err != nil {
		return spirit.TransferEvent{}, err
	}

	event := spirit.TransferEvent{
		ID:              idOrNew(req.ID),
		SourceTank:      spirit.TankID(req.SourceTank),
		DestinationTank: spirit.TankID(req.DestinationTank),
		BulkVolume:      bulk,
		AlcoholicVolume: al,
		OperationDate:   date,
		StorageWastage:  wastage,
		SampleAL:        sample,
	}
	for _, tank := range []spirit.TankID{event.SourceTank, event.DestinationTank} {
		if _, ok := h.Plant.PoolOf(tank); !ok {
			return spirit.TransferEvent{}, fmt.Errorf("%w: %s", spirit.ErrUnknownTank, tank)
		}
	}
	if err := event.Validate(); err != nil {
		return spirit.TransferEvent{}, err
	}
	return event, nil
}

// CreateProduction records a bottling run and refreshes its day.
func (h *Handler) CreateProduction(w http.ResponseWriter, r *http.Request) {
	var req ProductionRequest
	if err := decodeRequest(r, &req, spirit.ErrInvalidEvent); err != nil {
		writeDomainError(w, "Invalid production run", err)
		return
	}

	event, err := h.toProduction(req)
	if err != nil {
		writeDomainError(w, "Invalid production run", err)
		return
	}

	if err := h.Store.AppendProduction(r.Context(), event); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record production run", err)
		return
	}
	h.refreshAndRespond(w, r, event.ID, event.ProductionDate)
}

func (h *Handler) toProduction(req ProductionRequest) (spirit.ProductionEvent, error) {
	date, err := spirit.ParseDate(req.ProductionDate)
	if err != nil {
		return spirit.ProductionEvent{}, err
	}
	metered, err := parseDecimal("metered_al", req.MeteredAL, spirit.ErrInvalidEvent)
	if err != nil {
		return spirit.ProductionEvent{}, err
	}
	strength, err := parseDecimal("strength", req.Strength, spirit.ErrInvalidEvent)
	if err != nil {
		return spirit.ProductionEvent{}, err
	}
	allowance, err := parseOptionalDecimal("allowable_loss_pct", req.AllowableLossPct, spirit.ErrInvalidEvent)
	if err != nil {
		return spirit.ProductionEvent{}, err
	}

	event := spirit.ProductionEvent{
		ID:               idOrNew(req.ID),
		SourceTank:       spirit.TankID(req.SourceTank),
		ProductionDate:   date,
		MeteredAL:        metered,
		Strength:         strength,
		AllowableLossPct: allowance,
	}
	for i, b := range req.Bottles {
		unit, err := parseDecimal(fmt.Sprintf("bottles[%d].unit_litres", i), b.UnitLitres, spirit.ErrInvalidEvent)
		if err != nil {
			return spirit.ProductionEvent{}, err
		}
		event.Bottles = append(event.Bottles, spirit.BottleCount{UnitLitres: unit, Count: b.Count})
	}

	if err := h.requirePool(event.SourceTank, spirit.PoolBlending); err != nil {
		return spirit.ProductionEvent{}, err
	}
	if err := event.Validate(); err != nil {
		return spirit.ProductionEvent{}, err
	}
	return event, nil
}

// requirePool checks the tank is registered and sits in the expected pool.
func (h *Handler) requirePool(tank spirit.TankID, want spirit.Pool) error {
	pool, ok := h.Plant.PoolOf(tank)
	if !ok {
		return fmt.Errorf("%w: %s", spirit.ErrUnknownTank, tank)
	}
	if pool != want {
		return &spirit.InvalidValueError{
			Field:  "tank_id",
			Reason: fmt.Sprintf("%s is not a %s tank", tank, want),
			Kind:   spirit.ErrInvalidEvent,
		}
	}
	return nil
}

func (h *Handler) refreshAndRespond(w http.ResponseWriter, r *http.Request, eventID string, date spirit.Date) {
	res, err := h.Engine.Refresh(r.Context(), date)
	if err != nil {
		writeDomainError(w, "Failed to refresh ledger", err)
		return
	}
	writeJSON(w, http.StatusCreated, EventResponse{
		EventID:  eventID,
		Date:     date,
		Ledger:   res.Row,
		Synopsis: res.Synopsis,
	})
}

// =============================================================================
// LEDGER HANDLERS
// =============================================================================

// GetLedger returns the stored two-pool row for a date.
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	date, err := spirit.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	row, err := h.Store.DailyLedger(r.Context(), date)
	if err != nil {
		writeDomainError(w, "Failed to get ledger", err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// ListLedger returns stored rows in [from, to], optionally by status.
func (h *Handler) ListLedger(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := spirit.ParseDate(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date", err)
		return
	}
	to, err := spirit.ParseDate(q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to date", err)
		return
	}

	rows, err := h.Store.ListDailyLedger(r.Context(), from, to, q.Get("status"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list ledger", err)
		return
	}
	writeJSON(w, http.StatusOK, toLedgerSummaryDTOs(rows))
}

// RefreshLedger recomputes one day synchronously.
func (h *Handler) RefreshLedger(w http.ResponseWriter, r *http.Request) {
	res, err := h.refreshDateParam(r)
	if err != nil {
		writeDomainError(w, "Failed to refresh ledger", err)
		return
	}
	writeJSON(w, http.StatusOK, EventResponse{
		Date:     res.Row.Date,
		Ledger:   res.Row,
		Synopsis: res.Synopsis,
	})
}

func (h *Handler) refreshDateParam(r *http.Request) (daybook.Result, error) {
	date, err := spirit.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		return daybook.Result{}, err
	}
	return h.Engine.Refresh(r.Context(), date)
}

// RefreshRange queues every day in [from, to] on the refresh queue. With
// "wait": true the response is sent after the queue drains.
func (h *Handler) RefreshRange(w http.ResponseWriter, r *http.Request) {
	var req RefreshRangeRequest
	if err := decodeRequest(r, &req, spirit.ErrInvalidDate); err != nil {
		writeDomainError(w, "Invalid refresh range", err)
		return
	}

	from, err := spirit.ParseDate(req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date", err)
		return
	}
	to, err := spirit.ParseDate(req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to date", err)
		return
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "Invalid refresh range", fmt.Errorf("%w: to %s is before from %s", spirit.ErrInvalidDate, to, from))
		return
	}

	days := spirit.DaysInRange(from, to)
	if len(days) > maxRefreshDays {
		writeError(w, http.StatusBadRequest, "Invalid refresh range", fmt.Errorf("%w: %d days exceeds %d", spirit.ErrInvalidDate, len(days), maxRefreshDays))
		return
	}

	if err := h.Queue.Enqueue(days...); err != nil {
		writeDomainError(w, "Failed to queue refresh", err)
		return
	}

	resp := RefreshRangeResponse{Queued: make([]string, len(days))}
	for i, d := range days {
		resp.Queued[i] = d.String()
	}

	status := http.StatusAccepted
	if req.Wait {
		if err := h.Queue.Flush(r.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, "Refresh did not finish", err)
			return
		}
		rows, err := h.Store.ListDailyLedger(r.Context(), from, to, "")
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list ledger", err)
			return
		}
		resp.Rows = toLedgerSummaryDTOs(rows)
		status = http.StatusOK
	}
	resp.Stats = toQueueStatsDTO(h.Queue.Stats())

	writeJSON(w, status, resp)
}

// GetQueueStats reports the refresh queue.
func (h *Handler) GetQueueStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toQueueStatsDTO(h.Queue.Stats()))
}

// GetSynopsis returns the stored consolidated row for a date.
func (h *Handler) GetSynopsis(w http.ResponseWriter, r *http.Request) {
	date, err := spirit.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	syn, err := h.Store.DailySynopsis(r.Context(), date)
	if err != nil {
		writeDomainError(w, "Failed to get synopsis", err)
		return
	}
	writeJSON(w, http.StatusOK, syn)
}

// =============================================================================
// WASTAGE HANDLERS
// =============================================================================

// ClassifyWastage runs the classifier on caller-supplied figures. The
// allowance defaults to the plant's.
func (h *Handler) ClassifyWastage(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if err := decodeRequest(r, &req, spirit.ErrInvalidEvent); err != nil {
		writeDomainError(w, "Invalid classification request", err)
		return
	}

	expected, err := parseDecimal("expected", req.Expected, spirit.ErrInvalidEvent)
	if err != nil {
		writeDomainError(w, "Invalid classification request", err)
		return
	}
	observed, err := parseDecimal("observed", req.Observed, spirit.ErrInvalidEvent)
	if err != nil {
		writeDomainError(w, "Invalid classification request", err)
		return
	}
	allowance := h.Plant.AllowableLossPct
	if req.AllowableLossPct != "" {
		if allowance, err = parseDecimal("allowable_loss_pct", req.AllowableLossPct, spirit.ErrInvalidEvent); err != nil {
			writeDomainError(w, "Invalid classification request", err)
			return
		}
	}

	res := spirit.Classify(expected, observed, allowance)
	writeJSON(w, http.StatusOK, WastageDTO{
		Expected:        res.Expected,
		Observed:        res.Observed,
		Loss:            res.Loss,
		LossPercentage:  res.LossPercentage,
		AllowablePct:    allowance,
		AllowableLoss:   spirit.AllowableLoss(expected, allowance),
		WithinAllowance: res.WithinAllowance,
		Critical:        res.Critical,
		Tier:            res.Tier(),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// decodeRequest reads a JSON body and checks its validator tags.
func decodeRequest(r *http.Request, dst any, kind error) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", kind, err)
	}
	return validateRequest(dst, kind)
}

func idOrNew(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

func toLedgerSummaryDTOs(rows []sqlite.LedgerSummary) []LedgerSummaryDTO {
	dtos := make([]LedgerSummaryDTO, len(rows))
	for i, s := range rows {
		dtos[i] = LedgerSummaryDTO{
			Date:                 s.Date,
			Status:               s.Status,
			Note:                 s.Note,
			NetDifference:        s.NetDifference,
			ChargeableExcessLoss: s.ChargeableExcessLoss,
			UpdatedAt:            s.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
	}
	return dtos
}

func toQueueStatsDTO(s daybook.QueueStats) QueueStatsDTO {
	return QueueStatsDTO{
		Pending:   s.Pending,
		Processed: s.Processed,
		Failed:    s.Failed,
		LastError: s.LastError,
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError picks the status from the error's sentinel.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case spirit.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case spirit.IsClientError(err), errors.Is(err, spirit.ErrInvalidPlant):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

// decimalPtr is used by the scenario loaders.
func decimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
