package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"loankyc/internal/kyc/callback"
	kychandler "loankyc/internal/kyc/handler"
	"loankyc/internal/kyc/methods"
	"loankyc/internal/kyc/methods/simulated"
	kycmetrics "loankyc/internal/kyc/metrics"
	"loankyc/internal/kyc/service"
	"loankyc/internal/platform/config"
	"loankyc/internal/platform/httpserver"
	"loankyc/internal/platform/logger"
	"loankyc/internal/platform/metrics"
	"loankyc/internal/platform/tracing"
	"loankyc/pkg/platform/httputil"
	"loankyc/pkg/platform/middleware/requestmeta"
)

// main wires the stores, the simulated verification methods and the HTTP
// surface, then serves until SIGINT or SIGTERM.
func main() {
	configFile := flag.String("config", "", "optional config file (yaml, json or toml)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	infra, err := openInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	tp := tracing.NewProvider(log, cfg.TraceSampleRatio)
	otel.SetTracerProvider(tp)
	defer func() {
		if err := tracing.Shutdown(tp, cfg.ShutdownTimeout); err != nil {
			log.Warn("failed to flush spans", "error", err)
		}
	}()

	tokens, err := callbackTokens(cfg, log)
	if err != nil {
		return err
	}

	registry, err := methods.NewRegistry(simulated.All(
		simulated.WithLatency(cfg.ProviderLatency),
		simulated.WithLogger(log),
		simulated.WithCallbackMethods(cfg.CallbackMethodIDs()...),
	)...)
	if err != nil {
		return fmt.Errorf("method registry: %w", err)
	}

	svc, err := service.New(infra.snapshots, registry,
		service.WithLogger(log),
		service.WithAuditPublisher(infra.audit),
		service.WithAuditTrail(infra.audit),
		service.WithMetrics(kycmetrics.New(reg)),
		service.WithCallbackIssuer(tokens),
		service.WithTracerProvider(tp),
	)
	if err != nil {
		return fmt.Errorf("kyc service: %w", err)
	}

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(requestmeta.Middleware)
	router.Use(tracing.Middleware(tp))
	router.Use(metrics.NewHTTP(reg).Middleware)
	router.Use(chimw.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := infra.Health(r.Context()); err != nil {
			log.WarnContext(r.Context(), "health check failed", "error", err)
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Handle("/metrics", metrics.Handler(reg))
	kychandler.New(svc, tokens, log).Register(router)

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting loan kyc server", "addr", cfg.Addr, "store_backend", cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down", "timeout", cfg.ShutdownTimeout.String())
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// startupTimeout bounds every dial and schema check made before serving.
const startupTimeout = 30 * time.Second

// callbackTokens signs provider callback tokens with the configured secret.
// Without one, a random key is generated; tokens then do not survive a restart
// and are not accepted by other instances.
func callbackTokens(cfg *config.Config, log *slog.Logger) (*callback.Tokens, error) {
	key := []byte(cfg.CallbackSecret)
	if len(key) == 0 {
		key = make([]byte, callback.MinKeyLength)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate callback key: %w", err)
		}
		log.Warn("no callback secret configured, using an ephemeral signing key",
			"callback_methods", cfg.CallbackMethods,
		)
	}
	tokens, err := callback.NewTokens(key, cfg.CallbackTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("callback tokens: %w", err)
	}
	return tokens, nil
}
