package http

import (
	"net/http"
	"time"

	"github.com/IBM/sarama"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/doInfinitely/deliverycore/internal/observability"
	"github.com/doInfinitely/deliverycore/internal/offers"
	"github.com/doInfinitely/deliverycore/internal/orderservice"
	"github.com/doInfinitely/deliverycore/internal/scheduler"
)

// RouterConfig collects everything NewRouter needs to mount the full REST
// surface — mirroring the gateway router's "one constructor, all deps"
// shape.
type RouterConfig struct {
	Pool              *pgxpool.Pool
	KafkaProducer     sarama.SyncProducer
	Orders            *orderservice.Service
	Offers            *offers.Manager
	Scheduler         *scheduler.Runner
	Metrics           *observability.Metrics
	Logger            zerolog.Logger
	OfferTTL          time.Duration
	InternalAPIToken  string
}

// NewRouter assembles the chi router for the full spec.md §6 REST surface,
// plus health/ready/metrics and the supplemented tracking/manual-dispatch
// endpoints — grounded on the gateway router's middleware ordering (CORS
// omitted — this is a server-to-server/internal API, not a browser client)
// and the teacher's gRPC interceptor pattern adapted to net/http.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(cfg.Logger))
	r.Use(tracingMiddleware())
	r.Use(metricsMiddleware(cfg.Metrics))
	r.Use(maxBodySize)

	r.Get("/healthz", HealthHandler())
	r.Get("/ready", ReadyHandler(cfg.Pool, cfg.KafkaProducer, cfg.Logger))
	if cfg.Metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}

	ordersH := NewOrdersHandler(cfg.Orders, cfg.Logger)
	tasksH := NewTasksHandler(cfg.Offers, cfg.OfferTTL, cfg.Logger)
	internalH := NewInternalHandler(cfg.Scheduler, cfg.Logger)

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", ordersH.CreateOrder)
		r.Route("/{orderID}", func(r chi.Router) {
			r.Post("/verify_age", ordersH.VerifyAge)
			r.Post("/payment/authorize", ordersH.AuthorizePayment)
			r.Post("/doorstep_id_check/submit", ordersH.DoorstepIDCheck)
			r.Post("/deliver/confirm", ordersH.DeliverConfirm)
			r.Post("/refuse", ordersH.Refuse)
			r.Get("/dossier", ordersH.Dossier)
			r.Get("/tracking", ordersH.Tracking)
			r.Post("/dispatch", tasksH.Dispatch)
		})
	})

	r.Route("/tasks/{taskID}", func(r chi.Router) {
		r.Post("/offer", tasksH.Offer)
		r.Post("/accept", tasksH.Accept)
		r.Post("/reject", tasksH.Reject)
		r.Post("/start", tasksH.Start)
		r.Post("/complete", tasksH.Complete)
		r.Post("/return/complete", tasksH.CompleteReturn)
	})

	r.Route("/internal/dispatch", func(r chi.Router) {
		r.Use(internalTokenAuth(cfg.InternalAPIToken))
		r.Post("/tick", internalH.Tick)
		r.Post("/expire_offers", internalH.ExpireOffers)
	})

	return r
}
