package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/corgi13/tejobeauty2-sub000/internal/config"
	kafkax "github.com/corgi13/tejobeauty2-sub000/internal/kafka"
	"github.com/corgi13/tejobeauty2-sub000/internal/logging"
	"github.com/corgi13/tejobeauty2-sub000/internal/metrics"
	"github.com/corgi13/tejobeauty2-sub000/internal/notify"
	"github.com/corgi13/tejobeauty2-sub000/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	name := cfg.ServiceName + "-worker"
	log := logging.New(cfg.LogLevel, name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &notify.Service{
		Dedup: &redisx.Dedup{R: rdb, Service: name},
		Cache: notify.NewRevalidator(cfg.RevalidateURL, cfg.RevalidateToken, cfg.RevalidateTimeout),
		Log:   log,
	}
	if cfg.RevalidateURL == "" {
		log.Warn().Msg("REVALIDATE_URL not set, events are consumed without revalidation")
	}

	var msrv *http.Server
	if cfg.MetricsAddr != "" {
		msrv = metrics.NewServer(cfg.MetricsAddr)
		go func() {
			log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listening")
			if err := msrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("metrics server")
			}
		}()
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.WorkerGroup, cfg.LifecycleTopic, cfg.Workers, log)
	log.Info().
		Str("group", cfg.WorkerGroup).
		Str("topic", cfg.LifecycleTopic).
		Int("workers", cfg.Workers).
		Msg("lifecycle consumer started")

	err := cons.Start(ctx, svc.HandleLifecycle)
	if msrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if serr := msrv.Shutdown(shutdownCtx); serr != nil {
			log.Error().Err(serr).Msg("metrics shutdown")
		}
		cancel()
	}
	if err != nil {
		log.Error().Err(err).Msg("consumer exit")
		os.Exit(1)
	}
	log.Info().Msg("consumer stopped")
}
