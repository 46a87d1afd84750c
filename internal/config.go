package internal

import (
	"log/slog"
	"strings"
	"time"

	"water-bill-portal/internal/billing"
	"water-bill-portal/pkg/utils"
)

const (
	DirectoryStatic = "static"
	DirectoryMongo  = "mongo"

	GatewayMock      = "mock"
	GatewayProcessor = "processor"
)

type Config struct {
	Port     string
	LogLevel slog.Level

	RedisAddr  string
	SessionTTL time.Duration

	Directory     string
	LookupDelay   time.Duration
	MongoEndpoint string
	MongoDatabase string

	DiscountPolicy billing.DiscountPolicy
	Location       *time.Location

	Gateway               string
	MockGatewayDelay      time.Duration
	ProcessorDefaultAddr  string
	ProcessorFallbackAddr string
	ChargeTimeout         time.Duration

	Workers         int
	InlineWorkers   bool
	EnableProfiling bool
}

func LoadConfig() Config {
	cfg := Config{
		Port:     utils.GetEnvOrSetDefault("PORT", "9999"),
		LogLevel: parseLogLevel(utils.GetEnvOrSetDefault("LOG_LEVEL", "info")),

		RedisAddr:  utils.GetEnvOrSetDefault("REDIS_ADDR", "localhost:6379"),
		SessionTTL: utils.GetEnvDuration("SESSION_TTL", 30*time.Minute),

		Directory:     utils.GetEnvOrSetDefault("ACCOUNT_DIRECTORY", DirectoryStatic),
		LookupDelay:   utils.GetEnvDuration("LOOKUP_DELAY", 600*time.Millisecond),
		MongoEndpoint: utils.GetEnvOrSetDefault("MONGO_ENDPOINT", "mongodb://localhost:27017"),
		MongoDatabase: utils.GetEnvOrSetDefault("MONGO_DATABASE", "water-bills"),

		DiscountPolicy: billing.DiscountPolicy(utils.GetEnvOrSetDefault("DISCOUNT_POLICY", string(billing.DiscountAlways))),
		Location:       loadLocation(utils.GetEnvOrSetDefault("BILLING_TIMEZONE", "Asia/Kolkata")),

		Gateway:               utils.GetEnvOrSetDefault("PAYMENT_GATEWAY", GatewayMock),
		MockGatewayDelay:      utils.GetEnvDuration("MOCK_GATEWAY_DELAY", 1500*time.Millisecond),
		ProcessorDefaultAddr:  utils.GetEnvOrSetDefault("PAYMENT_PROCESSOR_ADDR_DEFAULT", "localhost:8001"),
		ProcessorFallbackAddr: utils.GetEnvOrSetDefault("PAYMENT_PROCESSOR_ADDR_FALLBACK", "localhost:8002"),
		ChargeTimeout:         utils.GetEnvDuration("CHARGE_TIMEOUT", 10*time.Second),

		Workers:         utils.GetEnvInt("WORKERS", 5),
		InlineWorkers:   utils.GetEnvBool("INLINE_WORKERS", true),
		EnableProfiling: utils.GetEnvBool("ENABLE_PROFILING", false),
	}

	if !cfg.DiscountPolicy.Valid() {
		slog.Warn("unknown discount policy, falling back", "policy", cfg.DiscountPolicy, "fallback", billing.DiscountAlways)
		cfg.DiscountPolicy = billing.DiscountAlways
	}

	return cfg
}

func parseLogLevel(raw string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(raw))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		slog.Warn("failed to load billing timezone, using IST offset", "name", name, "err", err)
		return time.FixedZone("IST", 5*60*60+30*60)
	}
	return loc
}
