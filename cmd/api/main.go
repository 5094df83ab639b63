package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongoadapter "github.com/eventhive/ticketing/internal/adapters/mongo"
	"github.com/eventhive/ticketing/internal/adapters/pg"
	redisadapter "github.com/eventhive/ticketing/internal/adapters/redis"
	"github.com/eventhive/ticketing/internal/booking"
	"github.com/eventhive/ticketing/internal/config"
	"github.com/eventhive/ticketing/internal/gateway"
	httphandler "github.com/eventhive/ticketing/internal/http"
	"github.com/eventhive/ticketing/internal/idempotency"
	"github.com/eventhive/ticketing/internal/observability"
	"github.com/eventhive/ticketing/internal/rateLimit"
	"github.com/eventhive/ticketing/internal/settlement"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	repo := pg.NewRepository(pool)

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	audit := mongoadapter.NewAuditLogger(mongoClient.Database("ticketing"), logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	redisCache := redisadapter.NewCache(redisClient)
	redisIdemp := redisadapter.NewIdempotency(redisClient)
	idemp := idempotency.NewIdempotency(redisIdemp, time.Hour)
	rl := rateLimit.NewRateLimiter(redisCache)

	gw := gateway.NewHTTPClient(gateway.ClientConfig{
		BaseURL:   cfg.GatewayBaseURL,
		ClientID:  cfg.GatewayClient,
		ClientKey: cfg.GatewayKey,
		HMACKey:   cfg.GatewayHMACKey,
	})

	bookings := booking.NewService(repo, gw, audit, logger, cfg.GatewayName, cfg.ServiceFeePercent)
	payouts := settlement.NewService(repo, gw, audit, logger)

	handlers := httphandler.NewHandlers(cfg, repo, bookings, payouts, gw, rl, idemp, logger)
	r := httphandler.SetupRouter(handlers, logger, rl, idemp)

	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
