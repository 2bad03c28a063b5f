package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/medichain/medichain-api/pkg/logger"
	"github.com/medichain/medichain-api/pkg/messaging/redis"
	"github.com/medichain/medichain-api/pkg/metrics"
	"github.com/medichain/medichain-api/pkg/worker"

	"github.com/medichain/medichain-api/internal/blockchain"
	"github.com/medichain/medichain-api/internal/config"
	"github.com/medichain/medichain-api/internal/repository/postgres"
	registrationService "github.com/medichain/medichain-api/internal/service/registration"
)

// The worker runs the reconciliation loop on its own process so a wedged API
// server cannot silence orphan detection.
func main() {
	log := logger.NewLogger(nil)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err, "failed to load configuration")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	m := metrics.NewMetrics("medichain", "worker")

	broker, err := redis.NewRedisBroker(redis.Config{URL: cfg.Redis.URL}, log.WithComponent("broker"))
	if err != nil {
		log.Fatal(err, "failed to connect to Redis")
	}
	defer broker.Close()

	userRepo := postgres.NewUserRepository(db)
	eventRepo := postgres.NewEventRepository(db)
	authLogRepo := postgres.NewAuthLogRepository(db)
	sagaRepo := postgres.NewSagaRepository(db)

	// The worker never submits transactions; the registration service is
	// constructed only for its reconciliation query.
	regSvc := registrationService.NewService(
		userRepo, sagaRepo, eventRepo, authLogRepo,
		blockchain.NewWalletProvider(), nil, nil,
		log.WithComponent("registration"), m,
	)
	regSvc.SetStuckSagaThreshold(cfg.Worker.StuckSagaSeconds)

	reconciler := worker.NewReconciler(regSvc, broker, worker.ReconcilerConfig{
		PollInterval: cfg.Worker.ReconcileInterval,
	}, log.WithComponent("reconciler"), m)

	ctx, cancel := context.WithCancel(context.Background())
	go reconciler.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	log.Info("worker exited properly")
}
