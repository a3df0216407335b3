package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the service.
type Config struct {
	Service  ServiceConfig
	Database DatabaseConfig
	Kafka    KafkaConfig
	HTTP     HTTPConfig
	Redis    RedisConfig
	Logging  LoggingConfig
	Vendors  VendorConfig
	Dispatch DispatchConfig
	Checkout CheckoutConfig

	// InternalAPIToken gates the /internal/dispatch/* operator endpoints —
	// matching apps/api/routers/internal_dispatch.py's and
	// internal_expire.py's X-Internal-Token header check. Empty disables the
	// check (local/dev default).
	InternalAPIToken string
}

// CheckoutConfig holds the order-service-level policy knobs not owned by
// dispatch.
type CheckoutConfig struct {
	// AutoAcceptMerchant folds merchant acceptance and dispatch-task
	// creation into authorize_payment's compute closure (the "demo policy"
	// from spec.md §4.4/§9's Open Questions) instead of halting at
	// PENDING_MERCHANT for a separate merchant-facing accept call (the
	// "production policy"). This implementation runs the demo policy by
	// default, matching original_source's authorize_payment, which the
	// spec.md source comment calls "MVP demo flow" — see DESIGN.md.
	AutoAcceptMerchant bool
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name        string
	Environment string
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	URL      string
}

// KafkaConfig holds Kafka broker configuration.
type KafkaConfig struct {
	Brokers      []string
	DossierTopic string
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int
}

// RedisConfig holds the Redis connection used for distributed locking.
type RedisConfig struct {
	URL string
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string
	Format string // "json" or "console"
}

// VendorConfig selects the tagged-variant external adapters this deployment
// talks to. Each family has a "fake" implementation usable in tests/dev and a
// real one gated by these env vars, exactly the pattern
// packages/verification/orchestrator.py, packages/payments/processor.py and
// packages/router/router.py use.
type VendorConfig struct {
	IDVVendor       string // "fake" | "onfido"
	PaymentVendor   string // "fake" | "stripe"
	RouterMode      string // "HAVERSINE" | "OSRM" (upper-cased on load)
	OSRMBaseURL     string
	AgeThresholdYrs int
	OnfidoAPIKey    string
	StripeAPIKey    string
}

// DispatchConfig holds the tunable weights and cadence of the dispatch engine.
type DispatchConfig struct {
	FastTickInterval   int // seconds
	BatchTickInterval  int // seconds
	OfferTTLSeconds    int
	KPrimeCandidates   int
	KCandidates        int
	RadiusMeters       float64
	HardPickupETAMaxS  int
	H3Resolution       int
	ClusterRadiusM     float64
	WeightAlphaTime    float64
	WeightBetaLateness float64
	WeightGammaDeadhd  float64
	WeightRhoRisk      float64
	WeightLambdaFair   float64
	WeightMuZone       float64
	TaxRateBps         int // basis points, default 825 == 8.25%
	FlatFeeCents       int64
	PaymentFloorCents  int64
}

// LoadConfig loads configuration from environment variables with defaults,
// reading a local .env file first if present (no-op in prod containers where
// none exists).
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Service: ServiceConfig{
			Name:        getEnv("SERVICE_NAME", "deliverycore"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Database: getEnv("DB_NAME", "deliverycore"),
		},
		Kafka: KafkaConfig{
			Brokers:      getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			DossierTopic: getEnv("KAFKA_DOSSIER_TOPIC", "dossier.events"),
		},
		HTTP: HTTPConfig{
			Port: getEnvInt("HTTP_PORT", 8080),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Vendors: VendorConfig{
			IDVVendor:       strings.ToLower(getEnv("IDV_VENDOR", "fake")),
			PaymentVendor:   strings.ToLower(getEnv("PAYMENT_PROCESSOR", "fake")),
			RouterMode:      strings.ToUpper(getEnv("ROUTER_MODE", "HAVERSINE")),
			OSRMBaseURL:     getEnv("OSRM_BASE_URL", "https://router.project-osrm.org"),
			AgeThresholdYrs: getEnvInt("AGE_THRESHOLD_YEARS", 21),
			OnfidoAPIKey:    getEnv("ONFIDO_API_KEY", ""),
			StripeAPIKey:    getEnv("STRIPE_API_KEY", ""),
		},
		Dispatch: DispatchConfig{
			FastTickInterval:   getEnvInt("DISPATCH_FAST_TICK_S", 3),
			BatchTickInterval:  getEnvInt("DISPATCH_BATCH_TICK_S", 30),
			OfferTTLSeconds:    getEnvInt("DISPATCH_OFFER_TTL_S", 30),
			KPrimeCandidates:   getEnvInt("DISPATCH_K_PRIME", 100),
			KCandidates:        getEnvInt("DISPATCH_K", 20),
			RadiusMeters:       getEnvFloat("DISPATCH_RADIUS_M", 6000),
			HardPickupETAMaxS:  getEnvInt("DISPATCH_HARD_PICKUP_ETA_MAX_S", 900),
			H3Resolution:       getEnvInt("DISPATCH_H3_RES", 8),
			ClusterRadiusM:     getEnvFloat("DISPATCH_CLUSTER_RADIUS_M", 3000),
			WeightAlphaTime:    getEnvFloat("DISPATCH_W_ALPHA_TOTAL_TIME", 1.0),
			WeightBetaLateness: getEnvFloat("DISPATCH_W_BETA_LATENESS", 25.0),
			WeightGammaDeadhd:  getEnvFloat("DISPATCH_W_GAMMA_DEADHEAD", 1.0),
			WeightRhoRisk:      getEnvFloat("DISPATCH_W_RHO_RETURN_RISK", 1.0),
			WeightLambdaFair:   getEnvFloat("DISPATCH_W_LAMBDA_FAIRNESS", 0.0),
			WeightMuZone:       getEnvFloat("DISPATCH_W_MU_ZONE", 0.0),
			TaxRateBps:         getEnvInt("TAX_RATE_BPS", 825),
			FlatFeeCents:       int64(getEnvInt("FLAT_FEE_CENTS", 299)),
			PaymentFloorCents:  int64(getEnvInt("PAYMENT_FLOOR_CENTS", 2500)),
		},
		Checkout: CheckoutConfig{
			AutoAcceptMerchant: getEnvBool("CHECKOUT_AUTO_ACCEPT_MERCHANT", true),
		},
		InternalAPIToken: getEnv("INTERNAL_API_TOKEN", ""),
	}

	cfg.Database.URL = fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Database,
	)

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
