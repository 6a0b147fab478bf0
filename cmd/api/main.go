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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/geocoder89/accounts/internal/auth"
	"github.com/geocoder89/accounts/internal/config"
	"github.com/geocoder89/accounts/internal/credential"
	"github.com/geocoder89/accounts/internal/db"
	"github.com/geocoder89/accounts/internal/domain/user"
	httpx "github.com/geocoder89/accounts/internal/http"
	"github.com/geocoder89/accounts/internal/http/handlers"
	"github.com/geocoder89/accounts/internal/notifications"
	"github.com/geocoder89/accounts/internal/observability"
	"github.com/geocoder89/accounts/internal/ratelimit"
	"github.com/geocoder89/accounts/internal/redisclient"
	"github.com/geocoder89/accounts/internal/security"
)

func main() {
	// Load the config set up
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.OTelEnabled {
		shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
			ServiceName: cfg.AppName,
			Endpoint:    cfg.OTelEndpoint,
			Environment: cfg.Env,
			SampleRatio: cfg.OTelSampleRatio,
		})
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		defer func() {
			sctx, cancel := config.WithTimeout(5 * time.Second)
			defer cancel()
			if err := shutdownTracer(sctx); err != nil {
				log.Error("tracer shutdown failed", "err", err)
			}
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	// store
	rawStore, closeStore, err := db.OpenStore(ctx, cfg, user.Schema(), log)
	if err != nil {
		return err
	}
	defer closeStore()
	store := observability.InstrumentStore(prom, "users", rawStore)

	checks := map[string]handlers.Check{"store": store.Ping}

	// mail
	var sender notifications.Sender
	if cfg.Mail.Host != "" {
		sender = notifications.NewSMTPSender(notifications.SMTPConfig{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
		})
	} else {
		log.Warn("mail_disabled", "hint", "EMAIL_HOST is empty, messages are only logged")
		sender = notifications.NewLogSender(log)
	}
	sender = notifications.NewProtectedSender(sender, notifications.ProtectedSenderConfig{Timeout: cfg.Mail.Timeout})
	sender = notifications.NewObservedSender(sender, prom.ObserveMail)

	mailer, err := notifications.NewMailer(sender, notifications.MailerConfig{
		AppName:         cfg.AppName,
		Support:         cfg.Mail.Support,
		From:            cfg.Mail.From,
		DefaultSiteName: cfg.Mail.DefaultSiteName,
	})
	if err != nil {
		return fmt.Errorf("load mail templates: %w", err)
	}

	// identity
	hasher := security.NewHasher(security.DefaultCost, int64(cfg.HashConcurrency))
	users := user.NewDescriptor(store, hasher, mailer)
	creds := credential.NewService(users, auth.NewManager(cfg.JWTSecret, cfg.JWTExpiresIn), hasher, mailer, credential.Options{
		ResetTTL:            cfg.PasswordResetTTL,
		ConcealUnknownEmail: cfg.ResetConcealUnknownEmail,
	})

	seedCtx, cancelSeed := context.WithTimeout(ctx, 10*time.Second)
	err = db.EnsureSuperAdmin(seedCtx, users, cfg, log)
	cancelSeed()
	if err != nil {
		return err
	}

	// rate limit counter
	var limiter ratelimit.Counter = ratelimit.NewMemory()
	if cfg.RedisAddr != "" {
		rdb, err := redisclient.Connect(ctx, redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()

		limiter = ratelimit.NewRedis(rdb.Raw(), "ratelimit")
		checks["redis"] = rdb.Ping
	}

	router := httpx.NewRouter(httpx.Deps{
		Config:      cfg,
		Users:       users,
		Credentials: creds,
		Verifier:    creds,
		Checks:      checks,
		Prom:        prom,
		Metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Limiter:     limiter,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Graceful shutdown
	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		sctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(sctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")
	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
	return nil
}
