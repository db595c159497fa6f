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

	"github.com/corgi13/tejobeauty2-sub000/internal/checkout"
	"github.com/corgi13/tejobeauty2-sub000/internal/config"
	"github.com/corgi13/tejobeauty2-sub000/internal/httpx"
	kafkax "github.com/corgi13/tejobeauty2-sub000/internal/kafka"
	"github.com/corgi13/tejobeauty2-sub000/internal/logging"
	"github.com/corgi13/tejobeauty2-sub000/internal/orders"
	"github.com/corgi13/tejobeauty2-sub000/internal/payment"
	"github.com/corgi13/tejobeauty2-sub000/internal/postgres"
	"github.com/corgi13/tejobeauty2-sub000/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.ServiceName)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	cache := &redisx.StatusCache{R: rdb}

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, cfg.LifecycleTopic, 1024, log.With().Str("component", "producer").Logger())
	prod.Start(ctx)

	repo := &orders.Repo{DB: db}
	gw := payment.New(payment.Options{
		BaseURL:       cfg.Stripe.BaseURL,
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		Tolerance:     cfg.Stripe.WebhookTolerance,
		Timeout:       cfg.Stripe.Timeout,
	})
	svc := &checkout.Service{
		Store:           repo,
		Gateway:         gw,
		Publisher:       prod,
		Cache:           cache,
		Log:             log.With().Str("component", "checkout").Logger(),
		Producer:        cfg.ServiceName,
		DefaultCurrency: cfg.DefaultCurrency,
		SuccessURL:      cfg.Stripe.SuccessURL,
		CancelURL:       cfg.Stripe.CancelURL,
		AllowSimulate:   !cfg.Production(),
	}

	router := httpx.NewRouter(log)
	(&httpx.OrdersHandler{Checkout: svc, Catalog: repo, Cache: cache}).Register(router)
	(&httpx.WebhookHandler{Checkout: svc}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Bool("simulate", svc.AllowSimulate).Msg("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()      // stop accepting, flush buffered events
	prod.WaitClosed() // drain
}
