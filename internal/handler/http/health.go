// Package http exposes deliverycore's REST surface: order checkout and
// driver task lifecycle endpoints on top of go-chi/chi/v5, plus health,
// readiness and Prometheus metrics endpoints. It replaces the teacher's
// gRPC transport (dropped — see DESIGN.md) but keeps its health-check shape
// and its logging/tracing interceptor pattern, adapted to net/http
// middleware.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/IBM/sarama"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// HealthHandler returns a liveness check (always OK).
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

// ReadyHandler checks the database and Kafka producer, matching the
// teacher's health.go exactly.
func ReadyHandler(db *pgxpool.Pool, kafkaProducer sarama.SyncProducer, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			logger.Error().Err(err).Msg("database health check failed")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "unavailable",
				"checks": map[string]string{"database": "failed", "error": err.Error()},
			})
			return
		}

		if kafkaProducer == nil {
			logger.Error().Msg("kafka producer is nil")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "unavailable",
				"checks": map[string]string{"database": "ok", "kafka": "failed"},
			})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "ready",
			"checks": map[string]string{"database": "ok", "kafka": "ok"},
		})
	}
}
