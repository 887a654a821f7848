package session

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/appetiteclub/pos/services/pos/internal/backend"
	"github.com/appetiteclub/pos/services/pos/internal/catalog"
	"github.com/appetiteclub/pos/services/pos/internal/order"
	"github.com/appetiteclub/pos/services/pos/internal/settlement"
)

const MaxBodyBytes = 1 << 20

// OperatorHeader names the operator acting on a terminal.
const OperatorHeader = "X-Operator"

type CatalogReader interface {
	Snapshot() *catalog.Snapshot
}

type Handler struct {
	logger   aqm.Logger
	config   *aqm.Config
	tlm      *telemetry.HTTP
	registry *Registry
	catalog  CatalogReader
}

type HandlerDeps struct {
	Registry *Registry
	Catalog  CatalogReader
}

func NewHandler(hd HandlerDeps, config *aqm.Config, logger aqm.Logger) *Handler {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Handler{
		config:   config,
		logger:   logger,
		tlm:      telemetry.NewHTTP(),
		registry: hd.Registry,
		catalog:  hd.Catalog,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/catalog", h.GetCatalog)
	r.Get("/orders/active", h.ListActiveOrders)

	r.Route("/terminals/{terminalID}", func(r chi.Router) {
		r.Route("/order", func(r chi.Router) {
			r.Get("/", h.GetOrder)
			r.Post("/", h.CreateOrder)
			r.Post("/load", h.LoadOrder)
			r.Post("/release", h.ReleaseOrder)

			r.Post("/items", h.AddItem)
			r.Post("/items/repeat", h.RepeatLastItem)
			r.Post("/items/hold", h.HoldItems)
			r.Post("/items/rush", h.RushItems)
			r.Patch("/items/{itemID}", h.UpdateItem)
			r.Post("/items/{itemID}/void", h.VoidItem)

			r.Post("/send", h.Send)
			r.Post("/courses/{course}/fire", h.FireCourse)

			r.Get("/bill", h.GetBill)
			r.Put("/tip", h.SetTip)
			r.Put("/discount", h.ApplyDiscount)
			r.Delete("/discount", h.ClearDiscount)
			r.Put("/split", h.SetSplit)
			r.Post("/finalize", h.Finalize)
			r.Post("/unfinalize", h.Unfinalize)
			r.Post("/payments", h.Pay)
			r.Post("/close", h.Close)
		})

		r.Post("/orders/{orderID}/void", h.VoidOrder)
		r.Post("/orders/{orderID}/transfer", h.TransferReceipt)
		r.Post("/merge", h.MergeTables)
	})
}

// Payloads

type CreateOrderRequest struct {
	Type    string     `json:"type"`
	TableID *uuid.UUID `json:"table_id,omitempty"`
}

type LoadOrderRequest struct {
	OrderID uuid.UUID `json:"order_id"`
}

type VoidRequest struct {
	Reason string `json:"reason"`
}

type ItemsRequest struct {
	ItemIDs []uuid.UUID `json:"item_ids"`
}

type SendRequest struct {
	Destination string `json:"destination"`
}

// TipRequest sets either a percentage or a custom amount.
type TipRequest struct {
	Percent *int             `json:"percent,omitempty"`
	Amount  *decimal.Decimal `json:"amount,omitempty"`
}

type DiscountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type TransferRequest struct {
	TableID uuid.UUID `json:"table_id"`
}

type MergeRequest struct {
	PrimaryTable uuid.UUID   `json:"primary_table"`
	SourceTables []uuid.UUID `json:"source_tables"`
}

// Catalog and orders

func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetCatalog")
	defer finish()

	if h.catalog == nil || h.catalog.Snapshot() == nil {
		aqm.RespondError(w, http.StatusServiceUnavailable, "Catalog not loaded")
		return
	}
	aqm.Respond(w, http.StatusOK, h.catalog.Snapshot(), nil)
}

func (h *Handler) ListActiveOrders(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListActiveOrders")
	defer finish()

	orders, err := h.registry.ActiveOrders(r.Context())
	if err != nil {
		h.respondError(w, h.log(r), "cannot list active orders", err)
		return
	}
	aqm.RespondCollection(w, orders, "order")
}

// Order lifecycle

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetOrder")
	defer finish()

	view, err := h.session(r).View()
	if err != nil {
		h.respondError(w, h.log(r), "cannot get order", err)
		return
	}
	aqm.Respond(w, http.StatusOK, view, nil)
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CreateOrder")
	defer finish()

	log := h.log(r)
	req, ok := decodePayload[CreateOrderRequest](w, r, log)
	if !ok {
		return
	}

	view, err := h.session(r).CreateOrder(r.Context(), req.Type, req.TableID, operator(r))
	if err != nil {
		h.respondError(w, log, "cannot create order", err)
		return
	}
	aqm.Respond(w, http.StatusCreated, view, nil)
}

func (h *Handler) LoadOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.LoadOrder")
	defer finish()

	log := h.log(r)
	req, ok := decodePayload[LoadOrderRequest](w, r, log)
	if !ok {
		return
	}
	if req.OrderID == uuid.Nil {
		aqm.RespondError(w, http.StatusBadRequest, "order_id is required")
		return
	}

	view, err := h.session(r).Load(r.Context(), req.OrderID)
	if err != nil {
		h.respondError(w, log, "cannot load order", err)
		return
	}
	aqm.Respond(w, http.StatusOK, view, nil)
}

func (h *Handler) ReleaseOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ReleaseOrder")
	defer finish()

	if err := h.session(r).Release(r.Context()); err != nil {
		h.respondError(w, h.log(r), "cannot release order", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Items

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.AddItem")
	defer finish()

	log := h.log(r)
	req, ok := decodePayload[AddItemRequest](w, r, log)
	if !ok {
		return
	}

	item, err := h.session(r).AddItem(r.Context(), req, operator(r))
	if err != nil {
		h.respondError(w, log, "cannot add item", err)
		return
	}
	aqm.Respond(w, http.StatusCreated, item, nil)
}

func (h *Handler) RepeatLastItem(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.RepeatLastItem")
	defer finish()

	item, err := h.session(r).RepeatLastItem(r.Context(), operator(r))
	if err != nil {
		h.respondError(w, h.log(r), "cannot repeat item", err)
		return
	}
	aqm.Respond(w, http.StatusCreated, item, nil)
}

func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdateItem")
	defer finish()

	log := h.log(r)
	itemID, ok := parseUUIDParam(w, r, "itemID", log)
	if !ok {
		return
	}
	patch, ok := decodePayload[ItemPatch](w, r, log)
	if !ok {
		return
	}

	item, err := h.session(r).UpdateItem(r.Context(), itemID, patch, operator(r))
	if err != nil {
		h.respondError(w, log, "cannot update item", err)
		return
	}
	aqm.Respond(w, http.StatusOK, item, nil)
}

func (h *Handler) VoidItem(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.VoidItem")
	defer finish()

	log := h.log(r)
	itemID, ok := parseUUIDParam(w, r, "itemID", log)
	if !ok {
		return
	}
	req, ok := decodePayload[VoidRequest](w, r, log)
	if !ok {
		return
	}

	record, err := h.session(r).VoidItem(r.Context(), itemID, req.Reason, operator(r))
	if err != nil {
		h.respondError(w, log, "cannot void item", err)
		return
	}
	aqm.Respond(w, http.StatusOK, record, nil)
}

func (h *Handler) HoldItems(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.HoldItems")
	defer finish()

	log := h.log(r)
	req, ok := decodePayload[ItemsRequest](w, r, log)
	if !ok {
		return
	}

	result, err := h.session(r).Hold(r.Context(), req.ItemIDs, operator(r))
	if err != nil {
		h.respondError(w, log, "cannot hold items", err)
		return
	}
	aqm.Respond(w, http.StatusOK, result, nil)
}

func (h *Handler) RushItems(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.RushItems")
	defer finish()

	log := h.log(r)
	req, ok := decodePayload[ItemsRequest](w, r, log)
	if !ok {
		return
	}

	result, err := h.session(r).Rush(r.Context(), req.ItemIDs, operator(r))
	if err != nil {
		h.respondError(w, log, "cannot rush items", err)
		return
	}
	aqm.Respond(w, http.StatusOK, result, nil)
}

// Dispatch

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.Send")
	defer finish()

	log := h.log(r)
	req, ok := decodePayload[SendRequest](w, r, log)
	if !ok {
		return
	}

	result, err := h.session(r).Send(r.Context(), req.Destination, operator(r))
	if err != nil {
		h.respondError(w, log, "cannot send items", err)
		return
	}
	aqm.Respond(w, http.StatusOK, result, nil)
}

func (h *Handler) FireCourse(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.FireCourse")
	defer finish()

	log := h.log(r)
	course, err := strconv.Atoi(chi.URLParam(r, "course"))
	if err != nil {
		log.Debug("invalid course parameter", "course", chi.URLParam(r, "course"))
		aqm.RespondError(w, http.StatusBadRequest, "Invalid course parameter")
		return
	}

	result, err := h.session(r).FireCourse(r.Context(), course, operator(r))
	if err != nil {
		h.respondError(w, log, "cannot fire course", err)
		return
	}
	aqm.Respond(w, http.StatusOK, result, nil)
}

// Settlement

func (h *Handler) GetBill(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetBill")
	defer finish()

	bill, err := h.session(r).Bill()
	if err != nil {
		h.respondError(w, h.log(r), "cannot compute bill", err)
		return
	}
	aqm.Respond(w, http.StatusOK, bill, nil)
}

func (h *Handler) SetTip(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SetTip")
	defer finish()

	log := h.log(r)
	req, ok := decodePayload[TipRequest](w, r, log)
	if !ok {
		return
	}
	if (req.Percent == nil) == (req.Amount == nil) {
		aqm.RespondError(w, http.StatusBadRequest, "Provide either percent or amount")
		return
	}

	var bill *settlement.Bill
	var err error
	if req.Percent != nil {
		bill, err = h.session(r).SetTipPercent(r.Context(), *req.Percent)
	} else {
		bill, err = h.session(r).SetTipAmount(r.Context(), *req.Amount)
	}
	if err != nil {
		h.respondError(w, log, "cannot set tip", err)
		return
	}
	aqm.Respond(w, http.StatusOK, bill, nil)
}

func (h *Handler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ApplyDiscount")
	defer finish()

	log := h.log(r)
	req, ok := decodePayload[DiscountRequest](w, r, log)
	if !ok {
		return
	}

	bill, err := h.session(r).ApplyDiscount(r.Context(), req.Amount)
	if err != nil {
		h.respondError(w, log, "cannot apply discount", err)
		return
	}
	aqm.Respond(w, http.StatusOK, bill, nil)
}

func (h *Handler) ClearDiscount(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ClearDiscount")
	defer finish()

	bill, err := h.session(r).ClearDiscount(r.Context())
	if err != nil {
		h.respondError(w, h.log(r), "cannot clear discount", err)
		return
	}
	aqm.Respond(w, http.StatusOK, bill, nil)
}

func (h *Handler) SetSplit(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SetSplit")
	defer finish()

	log := h.log(r)
	req, ok := decodePayload[settlement.Split](w, r, log)
	if !ok {
		return
	}

	bill, err := h.session(r).SetSplit(r.Context(), req)
	if err != nil {
		h.respondError(w, log, "cannot set split", err)
		return
	}
	aqm.Respond(w, http.StatusOK, bill, nil)
}

func (h *Handler) Finalize(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.Finalize")
	defer finish()

	bill, err := h.session(r).Finalize(r.Context(), operator(r))
	if err != nil {
		h.respondError(w, h.log(r), "cannot finalize order", err)
		return
	}
	aqm.Respond(w, http.StatusOK, bill, nil)
}

func (h *Handler) Unfinalize(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.Unfinalize")
	defer finish()

	view, err := h.session(r).Unfinalize(r.Context(), operator(r))
	if err != nil {
		h.respondError(w, h.log(r), "cannot reopen order", err)
		return
	}
	aqm.Respond(w, http.StatusOK, view, nil)
}

func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.Pay")
	defer finish()

	log := h.log(r)
	req, ok := decodePayload[settlement.Tender](w, r, log)
	if !ok {
		return
	}

	result, err := h.session(r).Pay(r.Context(), req, operator(r))
	if err != nil {
		h.respondError(w, log, "cannot take payment", err)
		return
	}
	aqm.Respond(w, http.StatusCreated, result, nil)
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.Close")
	defer finish()

	snap, err := h.session(r).Close(r.Context(), operator(r))
	if err != nil {
		h.respondError(w, h.log(r), "cannot close order", err)
		return
	}
	aqm.Respond(w, http.StatusOK, snap, nil)
}

// Void, transfer and merge

func (h *Handler) VoidOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.VoidOrder")
	defer finish()

	log := h.log(r)
	orderID, ok := parseUUIDParam(w, r, "orderID", log)
	if !ok {
		return
	}
	req, ok := decodePayload[VoidRequest](w, r, log)
	if !ok {
		return
	}

	snap, err := h.registry.VoidOrder(r.Context(), orderID, req.Reason, operator(r))
	if err != nil {
		h.respondError(w, log, "cannot void order", err)
		return
	}
	aqm.Respond(w, http.StatusOK, snap, nil)
}

func (h *Handler) TransferReceipt(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.TransferReceipt")
	defer finish()

	log := h.log(r)
	orderID, ok := parseUUIDParam(w, r, "orderID", log)
	if !ok {
		return
	}
	req, ok := decodePayload[TransferRequest](w, r, log)
	if !ok {
		return
	}
	if req.TableID == uuid.Nil {
		aqm.RespondError(w, http.StatusBadRequest, "table_id is required")
		return
	}

	snap, err := h.registry.TransferReceipt(r.Context(), orderID, req.TableID, operator(r))
	if err != nil {
		h.respondError(w, log, "cannot transfer order", err)
		return
	}
	aqm.Respond(w, http.StatusOK, snap, nil)
}

func (h *Handler) MergeTables(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.MergeTables")
	defer finish()

	log := h.log(r)
	req, ok := decodePayload[MergeRequest](w, r, log)
	if !ok {
		return
	}
	if req.PrimaryTable == uuid.Nil {
		aqm.RespondError(w, http.StatusBadRequest, "primary_table is required")
		return
	}

	snap, err := h.registry.MergeTables(r.Context(), req.PrimaryTable, req.SourceTables, operator(r))
	if err != nil {
		h.respondError(w, log, "cannot merge tables", err)
		return
	}
	aqm.Respond(w, http.StatusOK, snap, nil)
}

// Helpers

func (h *Handler) session(r *http.Request) *Session {
	return h.registry.Get(chi.URLParam(r, "terminalID"))
}

func (h *Handler) log(r *http.Request) aqm.Logger {
	return h.logger.With(
		"request_id", r.Context().Value("request_id"),
		"terminal", chi.URLParam(r, "terminalID"),
	)
}

// respondError maps domain errors to HTTP status codes.
func (h *Handler) respondError(w http.ResponseWriter, log aqm.Logger, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error(msg, "error", err)
	} else {
		log.Debug(msg, "error", err)
	}
	aqm.RespondError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrBackend):
		return http.StatusServiceUnavailable
	case errors.Is(err, order.ErrNoOrder),
		errors.Is(err, order.ErrItemNotFound),
		errors.Is(err, backend.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, order.ErrSessionBusy),
		errors.Is(err, order.ErrOrderLocked),
		errors.Is(err, order.ErrAlreadyVoided),
		errors.Is(err, order.ErrShareSettled),
		errors.Is(err, order.ErrTableUnavailable),
		errors.Is(err, backend.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, order.ErrIncompleteModifierSelection),
		errors.Is(err, order.ErrInvalidModifier),
		errors.Is(err, order.ErrEmptyOrder),
		errors.Is(err, order.ErrInsufficientAmount),
		errors.Is(err, order.ErrUnknownTender),
		errors.Is(err, order.ErrSplitIncomplete),
		errors.Is(err, order.ErrMergeSeatCollision),
		errors.Is(err, order.ErrNothingToRepeat),
		errors.Is(err, order.ErrUnknownMenuItem),
		errors.Is(err, order.ErrUnknownDestination):
		return http.StatusUnprocessableEntity
	case errors.Is(err, order.ErrInvalidOrderType),
		errors.Is(err, order.ErrTableRequired),
		errors.Is(err, order.ErrInvalidQuantity),
		errors.Is(err, order.ErrInvalidSeat),
		errors.Is(err, order.ErrInvalidCourse),
		errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, order.ErrInvalidAmount),
		errors.Is(err, order.ErrInvalidTender),
		errors.Is(err, order.ErrInvalidSplit),
		errors.Is(err, order.ErrInvalidTip),
		errors.Is(err, order.ErrReasonRequired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func operator(r *http.Request) string {
	return r.Header.Get(OperatorHeader)
}

func parseUUIDParam(w http.ResponseWriter, r *http.Request, name string, log aqm.Logger) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, name)
	if idStr == "" {
		log.Debug("missing id parameter", "param", name)
		aqm.RespondError(w, http.StatusBadRequest, "Missing "+name+" parameter")
		return uuid.Nil, false
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		log.Debug("invalid id parameter", "param", name, "id", idStr)
		aqm.RespondError(w, http.StatusBadRequest, "Invalid "+name+" parameter")
		return uuid.Nil, false
	}

	return id, true
}

func decodePayload[T any](w http.ResponseWriter, r *http.Request, log aqm.Logger) (T, bool) {
	var req T
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Debug("failed to read request body", "error", err)
		aqm.RespondError(w, http.StatusBadRequest, "Failed to read request body")
		return req, false
	}
	if len(body) == 0 {
		return req, true
	}

	if err := json.Unmarshal(body, &req); err != nil {
		log.Debug("failed to decode request body", "error", err)
		aqm.RespondError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return req, false
	}

	return req, true
}
