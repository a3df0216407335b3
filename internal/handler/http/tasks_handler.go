package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/doInfinitely/deliverycore/internal/offers"
)

// TasksHandler implements spec.md §6's driver task-lifecycle endpoints plus
// the supplemented manual dispatch/offer/reject escape hatches, on top of
// offers.Manager.
type TasksHandler struct {
	offers   *offers.Manager
	offerTTL time.Duration
	logger   zerolog.Logger
}

// NewTasksHandler constructs a TasksHandler.
func NewTasksHandler(mgr *offers.Manager, offerTTL time.Duration, logger zerolog.Logger) *TasksHandler {
	return &TasksHandler{offers: mgr, offerTTL: offerTTL, logger: logger.With().Str("component", "tasks_handler").Logger()}
}

func taskID(r *http.Request) string {
	return chi.URLParam(r, "taskID")
}

func driverIDParam(r *http.Request) string {
	return r.URL.Query().Get("driver_id")
}

// Offer handles POST /tasks/{taskID}/offer?driver_id=.
func (h *TasksHandler) Offer(w http.ResponseWriter, r *http.Request) {
	driver := driverIDParam(r)
	if driver == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "VALIDATION_ERROR", "message": "driver_id is required"})
		return
	}
	if err := h.offers.ManualOffer(r.Context(), taskID(r), driver, h.offerTTL); err != nil {
		writeError(h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"task_id": taskID(r), "status": "OFFERED", "offered_to_driver_id": driver})
}

// Accept handles POST /tasks/{taskID}/accept?driver_id=. Like the order
// mutations, it requires an Idempotency-Key and replays the cached response
// on a same-key retry.
func (h *TasksHandler) Accept(w http.ResponseWriter, r *http.Request) {
	driver := driverIDParam(r)
	if driver == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "VALIDATION_ERROR", "message": "driver_id is required"})
		return
	}
	code, body, err := h.offers.AcceptTask(r.Context(), idempotencyKey(r), taskID(r), driver)
	if err != nil {
		writeError(h.logger, w, err)
		return
	}
	writeRaw(w, code, body)
}

// Reject handles POST /tasks/{taskID}/reject?driver_id=.
func (h *TasksHandler) Reject(w http.ResponseWriter, r *http.Request) {
	driver := driverIDParam(r)
	if driver == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "VALIDATION_ERROR", "message": "driver_id is required"})
		return
	}
	if err := h.offers.RejectTask(r.Context(), taskID(r), driver); err != nil {
		writeError(h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"task_id": taskID(r), "status": "UNASSIGNED"})
}

// Start handles POST /tasks/{taskID}/start?driver_id=.
func (h *TasksHandler) Start(w http.ResponseWriter, r *http.Request) {
	driver := driverIDParam(r)
	if driver == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "VALIDATION_ERROR", "message": "driver_id is required"})
		return
	}
	if err := h.offers.StartTask(r.Context(), taskID(r), driver); err != nil {
		writeError(h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"task_id": taskID(r), "status": "IN_PROGRESS"})
}

// Complete handles POST /tasks/{taskID}/complete?driver_id=.
func (h *TasksHandler) Complete(w http.ResponseWriter, r *http.Request) {
	driver := driverIDParam(r)
	if driver == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "VALIDATION_ERROR", "message": "driver_id is required"})
		return
	}
	if err := h.offers.CompleteTask(r.Context(), taskID(r), driver); err != nil {
		writeError(h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"task_id": taskID(r), "status": "COMPLETED"})
}

// CompleteReturn handles the supplemented POST /tasks/{taskID}/return/complete.
func (h *TasksHandler) CompleteReturn(w http.ResponseWriter, r *http.Request) {
	if err := h.offers.CompleteReturn(r.Context(), taskID(r)); err != nil {
		writeError(h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"task_id": taskID(r), "status": "COMPLETED"})
}

// Dispatch handles the supplemented POST /orders/{orderID}/dispatch.
func (h *TasksHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	id, status, err := h.offers.DispatchOrder(r.Context(), orderID(r))
	if err != nil {
		writeError(h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"task_id": id, "status": string(status)})
}
