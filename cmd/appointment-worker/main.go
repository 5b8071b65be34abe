package main

import (
	"context"
	"crypto/tls"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/mashudu-n/branch-appointments/internal/appointments"
	"github.com/mashudu-n/branch-appointments/internal/booking"
	"github.com/mashudu-n/branch-appointments/internal/config"
	"github.com/mashudu-n/branch-appointments/internal/events"
	"github.com/mashudu-n/branch-appointments/internal/noshow"
	"github.com/mashudu-n/branch-appointments/internal/observability/metrics"
	"github.com/mashudu-n/branch-appointments/pkg/logging"
)

func main() {
	_ = godotenv.Load() // .env is optional, real env wins

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DatabaseURL == "" {
		logger.Error("appointment worker requires DATABASE_URL")
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOptions)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("redis not available", "error", err)
		os.Exit(1)
	}
	defer func() { _ = redisClient.Close() }()

	bookingMetrics := metrics.NewBookingMetrics(prometheus.DefaultRegisterer)
	sequence := appointments.NewRedisSequence(redisClient)
	store := booking.NewPostgresStore(pool)
	coordinator := booking.NewCoordinator(store, sequence, booking.Config{
		MinAdvance:   cfg.MinBookingAdvance,
		CancelWindow: cfg.CancellationWindow,
		GraceWindow:  cfg.GraceWindow,
	}, logger.WithComponent("booking"), bookingMetrics)

	sweeper := noshow.NewSweeper(coordinator, logger.WithComponent("noshow"), bookingMetrics).
		WithInterval(cfg.NoShowSweepInterval).
		WithLookbackDays(cfg.NoShowLookbackDays).
		WithBatchSize(cfg.NoShowBatchSize)

	outbox := events.NewOutboxStore(pool)
	deliverer := events.NewDeliverer(outbox, events.NewLogHandler(logger.WithComponent("events")), logger).
		WithInterval(cfg.OutboxPollInterval).
		WithBatchSize(int32(cfg.OutboxBatchSize))

	go sweeper.Start(ctx)
	go deliverer.Start(ctx)
	go expirePastSlots(ctx, coordinator, cfg.SlotExpiryInterval, logger)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("appointment worker shutting down")
	cancel()
	time.Sleep(2 * time.Second)
}

// expirePastSlots retires stale slot rows so day queries stay clean. Days
// start at midnight UTC; everything before today's midnight is history.
func expirePastSlots(ctx context.Context, coordinator *booking.Coordinator, interval time.Duration, logger *logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Truncate(24 * time.Hour)
			n, err := coordinator.ExpirePastSlots(ctx, cutoff)
			if err != nil {
				logger.Error("slot expiry sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("expired past slots", "count", n)
			}
		}
	}
}
