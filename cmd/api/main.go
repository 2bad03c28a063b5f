package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/medichain/medichain-api/pkg/auth"
	"github.com/medichain/medichain-api/pkg/logger"
	"github.com/medichain/medichain-api/pkg/metrics"

	"github.com/medichain/medichain-api/internal/blockchain"
	"github.com/medichain/medichain-api/internal/config"
	"github.com/medichain/medichain-api/internal/email"
	adminHandler "github.com/medichain/medichain-api/internal/handler/admin"
	authHandler "github.com/medichain/medichain-api/internal/handler/auth"
	doctorHandler "github.com/medichain/medichain-api/internal/handler/doctor"
	healthHandler "github.com/medichain/medichain-api/internal/handler/health"
	patientHandler "github.com/medichain/medichain-api/internal/handler/patient"
	"github.com/medichain/medichain-api/internal/middleware"
	"github.com/medichain/medichain-api/internal/pinning"
	"github.com/medichain/medichain-api/internal/recommend"
	"github.com/medichain/medichain-api/internal/repository/postgres"
	"github.com/medichain/medichain-api/internal/router"
	accessService "github.com/medichain/medichain-api/internal/service/access"
	auditService "github.com/medichain/medichain-api/internal/service/audit"
	authService "github.com/medichain/medichain-api/internal/service/auth"
	directoryService "github.com/medichain/medichain-api/internal/service/directory"
	prescriptionService "github.com/medichain/medichain-api/internal/service/prescription"
	registrationService "github.com/medichain/medichain-api/internal/service/registration"
)

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

	m := metrics.NewMetrics("medichain", "api")

	// Chain client and relayer; all writes funnel through this one account.
	chainClient, err := blockchain.NewClient(cfg.Chain.RPCURL, cfg.Chain.ContractAddress)
	if err != nil {
		log.Fatal(err, "failed to connect to chain RPC")
	}
	defer chainClient.Close()

	relayer, err := blockchain.NewRelayer(chainClient, blockchain.RelayerConfig{
		PrivateKey:     cfg.Chain.RelayerKey,
		ChainID:        cfg.Chain.ChainID,
		GasLimit:       cfg.Chain.GasLimit,
		ConfirmTimeout: cfg.Chain.ConfirmTimeout,
		PollInterval:   cfg.Chain.PollInterval,
		MaxRetries:     cfg.Chain.MaxRetries,
	}, log.WithComponent("relayer"), m)
	if err != nil {
		log.Fatal(err, "failed to initialize relayer")
	}
	accessReader := blockchain.NewAccessReader(chainClient)
	wallets := blockchain.NewWalletProvider()

	// Repositories
	userRepo := postgres.NewUserRepository(db)
	eventRepo := postgres.NewEventRepository(db)
	authLogRepo := postgres.NewAuthLogRepository(db)
	sagaRepo := postgres.NewSagaRepository(db)
	prescriptionRepo := postgres.NewPrescriptionRepository(db)

	// External collaborators
	var mailer email.Service
	if cfg.Email.Enabled {
		mailer = email.NewService(email.Config{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
		})
	}
	pinner := pinning.NewClient(pinning.Config{
		Endpoint:   cfg.Pinning.Endpoint,
		GatewayURL: cfg.Pinning.GatewayURL,
		APIKey:     cfg.Pinning.APIKey,
	})
	recommendCli := recommend.NewClient(recommend.Config{
		Endpoint: cfg.ML.Endpoint,
		CacheTTL: cfg.ML.CacheTTL,
	})

	// Services
	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)
	authSvc := authService.NewService(userRepo, authLogRepo, jwtSvc, log.WithComponent("auth"))
	regSvc := registrationService.NewService(
		userRepo, sagaRepo, eventRepo, authLogRepo,
		wallets, relayer, mailer,
		log.WithComponent("registration"), m,
	)
	accessSvc := accessService.NewService(userRepo, eventRepo, relayer, accessReader, log.WithComponent("access"))
	dirSvc := directoryService.NewService(userRepo)
	auditSvc := auditService.NewService(authLogRepo, eventRepo)
	prescSvc := prescriptionService.NewService(
		userRepo, prescriptionRepo, eventRepo,
		relayer, accessReader, pinner,
		log.WithComponent("prescription"),
	)

	// Handlers
	authMw := middleware.NewAuthMiddleware(jwtSvc)
	authH := authHandler.NewHandler(authSvc, regSvc)
	adminH := adminHandler.NewHandler(regSvc, dirSvc, accessSvc, auditSvc)
	doctorH := doctorHandler.NewHandler(regSvc, accessSvc, prescSvc, dirSvc, recommendCli)
	patientH := patientHandler.NewHandler(dirSvc, accessSvc, prescSvc)
	healthH := healthHandler.NewHandler(db)

	r := router.NewRouter(authMw, authH, adminH, doctorH, patientH, healthH, m, router.Config{
		RateLimit:  rate.Limit(cfg.RateLimit.RequestsPerSecond),
		RateBurst:  cfg.RateLimit.Burst,
		CORSConfig: middleware.DefaultCORSConfig(),
	})
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		log.Info("starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err, "failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal(err, "server forced to shutdown")
	}

	log.Info("server exited properly")
}
