// Package main provides the entry point for the phone agent service.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ruvnet/phone-agent-sub000/internal/config"
	"github.com/ruvnet/phone-agent-sub000/internal/forward"
	"github.com/ruvnet/phone-agent-sub000/internal/handler"
	"github.com/ruvnet/phone-agent-sub000/internal/lifecycle"
	"github.com/ruvnet/phone-agent-sub000/internal/logger"
	"github.com/ruvnet/phone-agent-sub000/internal/notify"
	"github.com/ruvnet/phone-agent-sub000/internal/pipeline"
	"github.com/ruvnet/phone-agent-sub000/internal/provider"
	"github.com/ruvnet/phone-agent-sub000/internal/storage"
	"github.com/ruvnet/phone-agent-sub000/internal/transform"
	"github.com/ruvnet/phone-agent-sub000/internal/verify"
)

// Run is the testable entrypoint for the application. Every dependency
// is constructed here once and injected; there are no package-level
// singletons.
func Run(ctx context.Context) error {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New(cfg.Env)
	log.Info("Starting phone agent service", zap.String("addr", cfg.Addr))

	store := newStore(cfg, log)
	calls := storage.NewCallStore(store, cfg.Storage.DefaultTTL)

	verifier := verify.New(cfg.Webhook.MaxAge)
	transformer := transform.New()
	forwarder := forward.New(cfg.Forward, store, log)
	pipe := pipeline.New(verifier, transformer, forwarder, cfg.Webhook.SigningSecret, cfg.Webhook.Debug, log)

	callProvider := provider.NewClient(cfg.Provider)
	notifier := notify.New(cfg.Email, log)
	manager := lifecycle.NewManager(calls, callProvider, notifier, log)

	validate := validator.New()
	_ = validate.RegisterValidation("e164phone", handler.PhoneValidator)

	h := handler.New(log, pipe, manager, validate)
	r := chi.NewRouter()
	h.Routes(r)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down server")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	return nil
}

// newStore prefers the durable Redis backend whenever an address is
// configured; the in-process map is only for local/offline runs.
func newStore(cfg *config.Config, log *zap.Logger) storage.Store {
	if cfg.Storage.RedisAddr == "" {
		log.Warn("REDIS_ADDR not set; using non-durable in-process storage")
		return storage.NewMemoryStore()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Storage.RedisAddr,
		Password: cfg.Storage.RedisPassword,
		DB:       cfg.Storage.RedisDB,
	})
	log.Info("using redis storage", zap.String("addr", cfg.Storage.RedisAddr))
	return storage.NewRedisStore(rdb, cfg.Storage.Namespace)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := Run(ctx); err != nil {
		os.Exit(1)
	}
}
