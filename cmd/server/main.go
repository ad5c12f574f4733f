package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/akeller/storefront/internal/adapter/handler"
	"github.com/akeller/storefront/internal/adapter/storage"
	"github.com/akeller/storefront/internal/config"
	"github.com/akeller/storefront/internal/core/domain"
	"github.com/akeller/storefront/internal/core/service"
	"github.com/akeller/storefront/internal/port"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// MySQL
	db, err := sqlx.Connect("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect mysql")
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	log.Info().Msg("connected to mysql")

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect redis")
	}
	log.Info().Msg("connected to redis")

	ledger := storage.NewMySQLAdapter(db)
	cache := storage.NewRedisAdapter(rdb)

	checkout := service.NewCheckoutService(ledger, cfg.EventQueueSize)
	cart := service.NewCartService(ledger)
	catalog := service.NewCatalogService(ledger)
	accounts := service.NewAccountService(ledger)

	// Post-commit placement workers
	var wg sync.WaitGroup
	for i := 0; i < cfg.WorkerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			placementWorker(id, checkout.Events(), cache)
		}(i)
	}
	log.Info().Int("count", cfg.WorkerCount).Msg("started placement workers")

	h := handler.NewHTTPHandler(checkout, cart, catalog, accounts, cache)
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: h.Routes(),
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	log.Info().Msg("http server stopped")

	checkout.Close()
	wg.Wait()
	log.Info().Msg("placement workers stopped")

	rdb.Close()
	db.Close()
	log.Info().Msg("connections closed")
}

// placementWorker drains committed placements: structured audit log plus the
// recent-placements feed.
func placementWorker(id int, events <-chan domain.OrderPlaced, cache port.CacheStore) {
	for ev := range events {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := cache.RecordPlacement(ctx, ev); err != nil {
			log.Error().Err(err).Int("worker", id).Int64("orderId", ev.OrderID).Msg("failed to record placement")
		} else {
			log.Info().
				Int("worker", id).
				Int64("orderId", ev.OrderID).
				Int64("userId", ev.UserID).
				Str("total", ev.Total.StringFixed(2)).
				Msg("order placed")
		}
		cancel()
	}
}
