package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"verigate/internal/clients/entra"
	"verigate/internal/clients/exchanger"
	"verigate/internal/exchange/events"
	exchangeHandler "verigate/internal/exchange/handler"
	"verigate/internal/exchange/metrics"
	"verigate/internal/exchange/service"
	"verigate/internal/exchange/workers/sweeper"
	"verigate/internal/keys"
	keysHandler "verigate/internal/keys/handler"
	"verigate/internal/platform/config"
	"verigate/internal/platform/health"
	"verigate/internal/platform/kafka/producer"
	"verigate/internal/platform/logger"
	"verigate/internal/platform/middleware"
	"verigate/internal/platform/tracer"
	ratelimitMW "verigate/internal/ratelimit/middleware"
	ratelimitModels "verigate/internal/ratelimit/models"
	ratelimitService "verigate/internal/ratelimit/service"
	ratelimitStore "verigate/internal/ratelimit/store"
	"verigate/internal/relyingparty"
	"verigate/internal/verification"
	"verigate/internal/verification/ldproof"
	"verigate/internal/workflow"
	"verigate/internal/workflow/authrequest"
	"verigate/pkg/platform/circuit"
	"verigate/pkg/platform/clock"
)

const shutdownTimeout = 10 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	log.Info("initializing verigate",
		"addr", cfg.Addr,
		"base_uri", cfg.BaseURI,
		"environment", cfg.Environment,
		"store_backend", cfg.StoreBackend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	registry, serviceKeys, err := loadRelyingParties(cfg)
	if err != nil {
		return err
	}
	log.Info("loaded relying parties", "count", registry.Len(), "service_keys", len(serviceKeys))

	healthHandler := health.New(cfg.Environment)
	backend, err := openStore(ctx, cfg, log, healthHandler)
	if err != nil {
		return err
	}
	defer backend.close()

	publisher, closeEvents := buildPublisher(cfg, log, healthHandler)
	defer closeEvents()

	m := metrics.New()
	tr := tracer.NewOTel()
	sysClock := clock.System{}
	upstream := &http.Client{Timeout: cfg.UpstreamTimeout}

	verifier := verification.New(ldproof.New(upstream),
		verification.WithClock(sysClock),
		verification.WithTracer(tr),
		verification.WithLogger(log),
	)
	requests, err := authrequest.New(cfg.BaseURI, registry.ServiceKeys, sysClock)
	if err != nil {
		return fmt.Errorf("create request builder: %w", err)
	}
	engines, err := workflow.NewFactory(cfg.BaseURI, workflow.Dependencies{
		Verifier: verifier,
		Requests: requests,
		Exchanger: exchanger.New(
			exchanger.WithHTTPClient(upstream),
			exchanger.WithBreaker(circuit.New("exchanger")),
			exchanger.WithTracer(tr),
		),
		Entra: entra.New(
			entra.WithHTTPClient(upstream),
			entra.WithBreaker(circuit.New("entra")),
			entra.WithTracer(tr),
		),
	}, workflow.WithClock(sysClock), workflow.WithLogger(log))
	if err != nil {
		return fmt.Errorf("create workflow factory: %w", err)
	}

	exchanges, err := service.New(backend.store, registry, engines,
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithTracer(tr),
		service.WithEvents(publisher),
		service.WithClock(sysClock),
		service.WithExchangeTTL(cfg.ExchangeTTL),
		service.WithRecordTTL(cfg.RecordTTL),
	)
	if err != nil {
		return fmt.Errorf("create exchange service: %w", err)
	}

	did, err := keys.DIDWeb(cfg.BaseURI)
	if err != nil {
		return fmt.Errorf("derive service did: %w", err)
	}
	parsedKeys, err := keys.ParseAll(serviceKeys)
	if err != nil {
		return fmt.Errorf("parse service keys: %w", err)
	}

	trustedProxies, err := middleware.ParseTrustedProxies(cfg.RateLimit.TrustedProxies)
	if err != nil {
		return err
	}
	handlerOpts, pruneLimiter, err := buildRateLimit(cfg, backend, sysClock, log)
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientIP(trustedProxies))
	r.Use(middleware.Logger(log))
	r.Use(middleware.Latency)
	r.Use(middleware.BodyLimit(cfg.MaxBodyBytes))

	healthHandler.Register(r)
	r.Handle("/metrics", promhttp.Handler())
	keysHandler.New(keys.NewDocument(did, parsedKeys), log).Register(r)
	exchangeHandler.New(exchanges, log, handlerOpts...).Register(r)

	sw, err := sweeper.New(backend.store, cfg.ExchangeTTL,
		sweeper.WithInterval(cfg.SweepInterval),
		sweeper.WithLogger(log),
		sweeper.WithMetrics(m),
		sweeper.WithEvents(publisher),
		sweeper.WithClock(sysClock),
		sweeper.WithTickHook(func() {
			backend.onTick()
			pruneLimiter()
		}),
	)
	if err != nil {
		return fmt.Errorf("create sweeper: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := sw.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// loadRelyingParties reads the relying party file and, when configured, a
// separate file of service-wide signing keys.
func loadRelyingParties(cfg config.Server) (*relyingparty.Registry, []relyingparty.SigningKey, error) {
	file, err := relyingparty.LoadFile(cfg.RelyingPartiesFile)
	if err != nil {
		return nil, nil, err
	}
	serviceKeys := file.SigningKeys
	if cfg.SigningKeysFile != "" {
		extra, err := relyingparty.LoadFile(cfg.SigningKeysFile)
		if err != nil {
			return nil, nil, fmt.Errorf("load signing keys: %w", err)
		}
		serviceKeys = append(serviceKeys, extra.SigningKeys...)
	}
	registry, err := relyingparty.NewRegistry(file.RelyingParties, serviceKeys)
	if err != nil {
		return nil, nil, fmt.Errorf("build relying party registry: %w", err)
	}
	return registry, serviceKeys, nil
}

// buildRateLimit shares windows through Redis when the store runs on Redis and
// keeps them in process otherwise. The returned func prunes idle in-process windows.
func buildRateLimit(cfg config.Server, backend *storeBackend, c clock.Clock, log *slog.Logger) ([]exchangeHandler.Option, func(), error) {
	noop := func() {}
	if !cfg.RateLimit.Enabled {
		log.Info("rate limiting disabled")
		return nil, noop, nil
	}

	var (
		buckets ratelimitService.BucketStore
		prune   = noop
	)
	if backend.redis != nil {
		buckets = ratelimitStore.NewRedis(backend.redis.Client)
	} else {
		mem := ratelimitStore.NewInMemory(c)
		buckets = mem
		prune = func() {
			if n := mem.Prune(); n > 0 {
				log.Debug("pruned idle rate limit windows", "count", n)
			}
		}
	}

	limiter, err := ratelimitService.New(buckets, map[ratelimitModels.EndpointClass]ratelimitModels.Limit{
		ratelimitModels.ClassWallet:       {Requests: cfg.RateLimit.Wallet, Window: cfg.RateLimit.Window},
		ratelimitModels.ClassRelyingParty: {Requests: cfg.RateLimit.RelyingParty, Window: cfg.RateLimit.Window},
		ratelimitModels.ClassCallback:     {Requests: cfg.RateLimit.Callback, Window: cfg.RateLimit.Window},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create rate limiter: %w", err)
	}
	mw := ratelimitMW.New(limiter, log)
	return []exchangeHandler.Option{exchangeHandler.WithRateLimit(mw.RateLimit)}, prune, nil
}

func buildPublisher(cfg config.Server, log *slog.Logger, h *health.Handler) (events.Publisher, func()) {
	logPublisher := events.NewLogPublisher(log)
	if cfg.Kafka.Brokers == "" {
		return logPublisher, func() {}
	}
	p, err := producer.New(cfg.Kafka, log)
	if err != nil {
		log.Warn("kafka unavailable, exchange events are logged only", "error", err)
		return logPublisher, func() {}
	}
	h.RegisterCheck("kafka", p.Health)
	log.Info("publishing exchange events to kafka", "topic", cfg.Kafka.Topic)

	return events.Multi{logPublisher, events.NewKafkaPublisher(p, cfg.Kafka.Topic, log)}, func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := p.Close(ctx); err != nil {
			log.Warn("kafka producer close failed", "error", err)
		}
	}
}
