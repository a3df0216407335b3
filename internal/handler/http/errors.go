package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/doInfinitely/deliverycore/internal/models"
	"github.com/doInfinitely/deliverycore/internal/statemachine"
)

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeRaw writes a pre-encoded JSON body, used for the orderservice methods
// that already return (statusCode, body) themselves — idempotency.GetOrSet's
// cached response is raw bytes, so there is no struct to re-marshal.
func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeError maps a domain error to spec.md §7's HTTP status table and
// writes it as {"error": "<code>", "message": "<detail>"}.
func writeError(logger zerolog.Logger, w http.ResponseWriter, err error) {
	status, code := mapError(err)
	if status >= 500 {
		logger.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, map[string]string{"error": code, "message": err.Error()})
}

// mapError classifies err per spec.md §7's error-kinds table: validation
// (400), authz/state (403/409), idempotency conflict (409), lock contention
// (409), vendor transport failure (502), everything else (500) — adapted
// from the teacher's gRPC mapError switch in order_handler.go.
func mapError(err error) (int, string) {
	var ve validator.ValidationErrors
	var ite *statemachine.InvalidTransitionError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, models.ErrMissingIdempotencyKey):
		return http.StatusBadRequest, "IDEMPOTENCY_KEY_REQUIRED"
	case errors.Is(err, models.ErrProductNotFound):
		return http.StatusBadRequest, "PRODUCT_NOT_FOUND"
	case errors.Is(err, models.ErrOrderNotFound):
		return http.StatusNotFound, "ORDER_NOT_FOUND"
	case errors.Is(err, models.ErrTaskNotFound):
		return http.StatusNotFound, "TASK_NOT_FOUND"
	case errors.Is(err, models.ErrDriverNotFound):
		return http.StatusNotFound, "DRIVER_NOT_FOUND"
	case errors.Is(err, models.ErrTaskNotOfferedToYou):
		return http.StatusForbidden, "TASK_NOT_OFFERED_TO_YOU"
	case errors.Is(err, models.ErrTaskNotAssignedToYou):
		return http.StatusForbidden, "TASK_NOT_ASSIGNED_TO_YOU"
	case errors.Is(err, models.ErrMissingDoorstepPass):
		return http.StatusForbidden, "MISSING_DOORSTEP_PASS"
	case errors.Is(err, models.ErrIdempotencyMismatch):
		return http.StatusConflict, "IDEMPOTENCY_CONFLICT"
	case errors.Is(err, models.ErrInvalidOrderStatus):
		return http.StatusConflict, "INVALID_ORDER_STATUS"
	case errors.Is(err, models.ErrInvalidTaskStatus):
		return http.StatusConflict, "INVALID_TASK_STATUS"
	case errors.As(err, &ite):
		return http.StatusConflict, "INVALID_ORDER_STATUS"
	case errors.Is(err, models.ErrOptimisticLock):
		return http.StatusConflict, "CONCURRENT_MODIFICATION"
	case errors.Is(err, models.ErrAcceptLocked):
		return http.StatusConflict, "LOCK_CONTENTION"
	case errors.Is(err, models.ErrVendorTransport):
		return http.StatusBadGateway, "VENDOR_UNAVAILABLE"
	case errors.Is(err, models.ErrUnknownVendor):
		return http.StatusInternalServerError, "UNKNOWN_VENDOR"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
