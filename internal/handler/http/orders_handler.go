package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/doInfinitely/deliverycore/internal/orderservice"
)

// OrdersHandler implements spec.md §6's order-facing REST endpoints on top
// of orderservice.Service, adapted from the teacher's OrderBookHandler shape
// (validate → parse → dispatch to service → map domain error to transport
// error) with gRPC status codes replaced by HTTP ones.
type OrdersHandler struct {
	orders *orderservice.Service
	logger zerolog.Logger
}

// NewOrdersHandler constructs an OrdersHandler.
func NewOrdersHandler(orders *orderservice.Service, logger zerolog.Logger) *OrdersHandler {
	return &OrdersHandler{orders: orders, logger: logger.With().Str("component", "orders_handler").Logger()}
}

func idempotencyKey(r *http.Request) string {
	return r.Header.Get("Idempotency-Key")
}

func orderID(r *http.Request) string {
	return chi.URLParam(r, "orderID")
}

// CreateOrder handles POST /orders.
func (h *OrdersHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req orderservice.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "INVALID_BODY", "message": err.Error()})
		return
	}
	resp, err := h.orders.CreateOrder(r.Context(), &req)
	if err != nil {
		writeError(h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// VerifyAge handles POST /orders/{orderID}/verify_age.
func (h *OrdersHandler) VerifyAge(w http.ResponseWriter, r *http.Request) {
	var req orderservice.VerifyAgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "INVALID_BODY", "message": err.Error()})
		return
	}
	code, body, err := h.orders.VerifyAge(r.Context(), idempotencyKey(r), orderID(r), &req)
	if err != nil {
		writeError(h.logger, w, err)
		return
	}
	writeRaw(w, code, body)
}

// AuthorizePayment handles POST /orders/{orderID}/payment/authorize.
func (h *OrdersHandler) AuthorizePayment(w http.ResponseWriter, r *http.Request) {
	var req orderservice.AuthorizePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "INVALID_BODY", "message": err.Error()})
		return
	}
	code, body, err := h.orders.AuthorizePayment(r.Context(), idempotencyKey(r), orderID(r), &req)
	if err != nil {
		writeError(h.logger, w, err)
		return
	}
	writeRaw(w, code, body)
}

// DoorstepIDCheck handles POST /orders/{orderID}/doorstep_id_check/submit.
func (h *OrdersHandler) DoorstepIDCheck(w http.ResponseWriter, r *http.Request) {
	var req orderservice.DoorstepSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "INVALID_BODY", "message": err.Error()})
		return
	}
	code, body, err := h.orders.DoorstepIDCheck(r.Context(), idempotencyKey(r), orderID(r), &req)
	if err != nil {
		writeError(h.logger, w, err)
		return
	}
	writeRaw(w, code, body)
}

// DeliverConfirm handles POST /orders/{orderID}/deliver/confirm.
func (h *OrdersHandler) DeliverConfirm(w http.ResponseWriter, r *http.Request) {
	var req orderservice.DeliverConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "INVALID_BODY", "message": err.Error()})
		return
	}
	code, body, err := h.orders.DeliverConfirm(r.Context(), idempotencyKey(r), orderID(r), &req)
	if err != nil {
		writeError(h.logger, w, err)
		return
	}
	writeRaw(w, code, body)
}

// Refuse handles POST /orders/{orderID}/refuse.
func (h *OrdersHandler) Refuse(w http.ResponseWriter, r *http.Request) {
	var req orderservice.RefuseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "INVALID_BODY", "message": err.Error()})
		return
	}
	code, body, err := h.orders.Refuse(r.Context(), idempotencyKey(r), orderID(r), &req)
	if err != nil {
		writeError(h.logger, w, err)
		return
	}
	writeRaw(w, code, body)
}

// dossierEventDTO gives OrderEvent stable JSON field names for the wire —
// models.OrderEvent itself carries none, since its Go field names are
// already exercised directly by internal callers.
type dossierEventDTO struct {
	ID        string                 `json:"id"`
	OrderID   string                 `json:"order_id"`
	TS        string                 `json:"ts"`
	ActorType string                 `json:"actor_type"`
	ActorID   string                 `json:"actor_id"`
	EventType string                 `json:"event_type"`
	Payload   map[string]interface{} `json:"payload"`
	HashPrev  *string                `json:"hash_prev"`
	HashSelf  string                 `json:"hash_self"`
}

// Dossier handles GET /orders/{orderID}/dossier.
func (h *OrdersHandler) Dossier(w http.ResponseWriter, r *http.Request) {
	events, err := h.orders.GetDossier(r.Context(), orderID(r))
	if err != nil {
		writeError(h.logger, w, err)
		return
	}
	dtos := make([]dossierEventDTO, len(events))
	for i, e := range events {
		dtos[i] = dossierEventDTO{
			ID: e.ID, OrderID: e.OrderID, TS: e.TS.UTC().Format("2006-01-02T15:04:05.000Z"),
			ActorType: string(e.ActorType), ActorID: e.ActorID, EventType: e.EventType,
			Payload: e.Payload, HashPrev: e.HashPrev, HashSelf: e.HashSelf,
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"order_id": orderID(r), "events": dtos})
}

// Tracking handles the supplemented GET /orders/{orderID}/tracking.
func (h *OrdersHandler) Tracking(w http.ResponseWriter, r *http.Request) {
	view, err := h.orders.GetTracking(r.Context(), orderID(r))
	if err != nil {
		writeError(h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
