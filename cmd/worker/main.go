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

	"github.com/geocoder89/accounts/internal/auth"
	"github.com/geocoder89/accounts/internal/config"
	"github.com/geocoder89/accounts/internal/credential"
	"github.com/geocoder89/accounts/internal/db"
	"github.com/geocoder89/accounts/internal/domain/user"
	"github.com/geocoder89/accounts/internal/observability"
	"github.com/geocoder89/accounts/internal/security"
	"github.com/geocoder89/accounts/internal/worker"
)

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	store, closeStore, err := db.OpenStore(ctx, cfg, user.Schema(), log)
	if err != nil {
		log.Error("store connect failed", "err", err)
		os.Exit(1)
	}
	defer closeStore()

	// the sweeper never hashes or mails, the collaborators only satisfy the service
	hasher := security.NewHasher(security.DefaultCost, 1)
	users := user.NewDescriptor(store, hasher, nil)
	creds := credential.NewService(users, auth.NewManager(cfg.JWTSecret, cfg.JWTExpiresIn), hasher, nil, credential.Options{})

	w := worker.New(worker.Config{
		PollInterval: cfg.SweepInterval,
		BatchSize:    cfg.SweepBatch,
	}, creds, log)

	healthSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WorkerPort),
		Handler:           w.HealthHandler(store.Ping),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("worker health server failed", "err", err)
		}
	}()

	log.Info("worker has started", "interval", cfg.SweepInterval.String(), "batch", cfg.SweepBatch)

	if err := w.Run(ctx); err != nil {
		log.Error("worker stopped with error", "err", err)
	}

	sctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()
	_ = healthSrv.Shutdown(sctx)

	log.Info("worker shutdown complete")
}

