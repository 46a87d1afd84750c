package internal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func OpenRedis(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: "",
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// OpenDirectory returns the configured account directory and a function
// releasing whatever connection it holds.
func OpenDirectory(ctx context.Context, cfg Config) (AccountDirectory, func(), error) {
	if cfg.Directory != DirectoryMongo {
		if cfg.Directory != DirectoryStatic {
			slog.Warn("unknown account directory, using the static one", "directory", cfg.Directory)
		}
		return NewStaticDirectory(cfg.LookupDelay, cfg.Location), func() {}, nil
	}

	opts := options.
		Client().
		ApplyURI(cfg.MongoEndpoint).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxConnIdleTime(30 * time.Second).
		SetMaxPoolSize(50)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	release := func() {
		if err := client.Disconnect(context.Background()); err != nil {
			slog.Error("failed to disconnect from mongodb", "err", err)
		}
	}

	return NewMongoDirectory(client.Database(cfg.MongoDatabase)), release, nil
}

// NewGateway builds the configured payment gateway. The processor gateway
// starts its health monitor on ctx.
func NewGateway(ctx context.Context, cfg Config) PaymentGateway {
	if cfg.Gateway != GatewayProcessor {
		if cfg.Gateway != GatewayMock {
			slog.Warn("unknown payment gateway, using the mock one", "gateway", cfg.Gateway)
		}
		return NewMockGateway(cfg.MockGatewayDelay)
	}

	newClient := func(addr string) *fasthttp.HostClient {
		return &fasthttp.HostClient{
			Addr:                          addr,
			MaxConns:                      cfg.Workers * 4,
			MaxIdleConnDuration:           30 * time.Second,
			ReadTimeout:                   cfg.ChargeTimeout,
			WriteTimeout:                  5 * time.Second,
			NoDefaultUserAgentHeader:      true,
			DisableHeaderNamesNormalizing: true,
		}
	}

	var fallback *fasthttp.HostClient
	if cfg.ProcessorFallbackAddr != "" {
		fallback = newClient(cfg.ProcessorFallbackAddr)
	}

	adapter := NewProcessorAdapter(newClient(cfg.ProcessorDefaultAddr), fallback, cfg.ChargeTimeout)
	adapter.EnableHealthCheck(ctx)

	return adapter
}
