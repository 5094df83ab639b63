package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	PostgresDSN  string
	MongoURI     string
	RedisAddr    string
	RabbitURL    string
	OTLPEndpoint string

	GatewayName    string
	GatewayBaseURL string
	GatewayClient  string
	GatewayKey     string
	GatewayHMACKey string

	// ServiceFeePercent is the buyer-facing service fee added on top of
	// the ticket subtotal.
	ServiceFeePercent decimal.Decimal

	// QRRatePerMinute caps per-user QR regenerations; QRBatchRatePerMinute
	// caps batch requests separately.
	QRRatePerMinute      int
	QRBatchRatePerMinute int

	SweepInterval     time.Duration
	ReconcileInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	sweep, _ := time.ParseDuration(os.Getenv("SWEEP_INTERVAL"))
	if sweep == 0 {
		sweep = time.Minute
	}
	reconcile, _ := time.ParseDuration(os.Getenv("RECONCILE_INTERVAL"))
	if reconcile == 0 {
		reconcile = 5 * time.Minute
	}

	serviceFee := decimal.Zero
	if v := os.Getenv("SERVICE_FEE_PERCENT"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			serviceFee = d
		}
	}

	return &Config{
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		MongoURI:     os.Getenv("MONGO_URI"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		RabbitURL:    os.Getenv("RABBIT_URL"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),

		GatewayName:    envOr("GATEWAY_NAME", "flutterwave"),
		GatewayBaseURL: os.Getenv("GATEWAY_BASE_URL"),
		GatewayClient:  os.Getenv("GATEWAY_CLIENT_ID"),
		GatewayKey:     os.Getenv("GATEWAY_CLIENT_KEY"),
		GatewayHMACKey: os.Getenv("GATEWAY_HMAC_KEY"),

		ServiceFeePercent: serviceFee,

		QRRatePerMinute:      envIntOr("QR_RATE_PER_MINUTE", 5),
		QRBatchRatePerMinute: envIntOr("QR_BATCH_RATE_PER_MINUTE", 2),

		SweepInterval:     sweep,
		ReconcileInterval: reconcile,
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
