package http

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/doInfinitely/deliverycore/internal/scheduler"
)

// InternalHandler implements the two operator-triggered dispatch endpoints,
// matching apps/api/routers/internal_dispatch.py and internal_expire.py.
type InternalHandler struct {
	runner *scheduler.Runner
	logger zerolog.Logger
}

// NewInternalHandler constructs an InternalHandler.
func NewInternalHandler(runner *scheduler.Runner, logger zerolog.Logger) *InternalHandler {
	return &InternalHandler{runner: runner, logger: logger.With().Str("component", "internal_handler").Logger()}
}

// Tick handles POST /internal/dispatch/tick.
func (h *InternalHandler) Tick(w http.ResponseWriter, r *http.Request) {
	if err := h.runner.TriggerFastTick(r.Context()); err != nil {
		writeError(h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ExpireOffers handles POST /internal/dispatch/expire_offers.
func (h *InternalHandler) ExpireOffers(w http.ResponseWriter, r *http.Request) {
	if err := h.runner.TriggerExpireSweep(r.Context()); err != nil {
		writeError(h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// internalTokenAuth enforces X-Internal-Token on /internal/* routes,
// matching the original's _require_token helper — a no-op when expected is
// empty (local/dev default).
func internalTokenAuth(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if expected != "" && r.Header.Get("X-Internal-Token") != expected {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "UNAUTHORIZED", "message": "invalid internal token"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
