package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/qasimbotani/health-insurance/internal/accounting"
	"github.com/qasimbotani/health-insurance/internal/application/service"
	"github.com/qasimbotani/health-insurance/internal/cession"
	"github.com/qasimbotani/health-insurance/internal/config"
	"github.com/qasimbotani/health-insurance/internal/fraud"
	httpserver "github.com/qasimbotani/health-insurance/internal/interfaces/http"
	"github.com/qasimbotani/health-insurance/internal/notification"
	"github.com/qasimbotani/health-insurance/internal/repository"
	"github.com/qasimbotani/health-insurance/internal/worker"
	"github.com/qasimbotani/health-insurance/pkg/database"
	"github.com/qasimbotani/health-insurance/pkg/utils"
)

func main() {
	// Load .env before the config layer reads the environment
	gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting Health Insurance Claims Administration",
		zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	if err := os.MkdirAll(cfg.Cession.ExportDir, 0755); err != nil {
		logger.Fatal("Failed to create export directory", zap.Error(err))
	}

	// Repositories
	claimRepo := repository.NewClaimRepository(db, logger)
	voteRepo := repository.NewVoteRepository(db, logger)
	policyRepo := repository.NewPolicyRepository(db, logger)
	memberRepo := repository.NewMemberRepository(db, logger)
	coverageRepo := repository.NewCoverageRepository(db, logger)
	providerRepo := repository.NewProviderRepository(db, logger)
	reinsuranceRepo := repository.NewReinsuranceRepository(db, logger)
	bordereauRepo := repository.NewBordereauRepository(db, logger)
	settlementRepo := repository.NewSettlementRepository(db, logger)
	auditRepo := repository.NewAuditRepository(db, logger)
	attachmentRepo := repository.NewAttachmentRepository(db, logger)
	sequenceRepo := repository.NewSequenceRepository(db, logger)
	roleRepo := repository.NewRoleRepository(db, logger)

	// Supporting services
	ledger := accounting.NewLedger(db, cfg.Accounting, logger)
	tasks := notification.NewTaskService(db, logger)
	exporter := cession.NewExcelExporter(cfg.Cession.CompanyName, cfg.Cession.ExportDir, logger)

	// Application services
	claimSvc := service.NewClaimService(service.ClaimServiceDeps{
		Tx:                    db,
		Claims:                claimRepo,
		Policies:              policyRepo,
		Members:               memberRepo,
		Coverage:              coverageRepo,
		Reinsurance:           reinsuranceRepo,
		Providers:             providerRepo,
		Ledger:                ledger,
		Tasks:                 tasks,
		Sequences:             sequenceRepo,
		Documents:             attachmentRepo,
		Authority:             roleRepo,
		Audit:                 auditRepo,
		FraudEvaluator:        fraud.NewEvaluator(claimRepo),
		DefaultExpenseAccount: cfg.Accounting.ExpenseAccount,
		CommitteeQuorum:       cfg.Claims.CommitteeQuorum,
		Logger:                logger,
	})
	committeeSvc := service.NewCommitteeService(db, claimRepo, voteRepo, roleRepo, auditRepo, claimSvc, logger)
	policySvc := service.NewPolicyService(db, policyRepo, coverageRepo, sequenceRepo, auditRepo, logger)
	memberSvc := service.NewMemberService(db, memberRepo, policyRepo, sequenceRepo, roleRepo, auditRepo, logger)
	cessionSvc := service.NewCessionService(db, claimRepo, reinsuranceRepo, bordereauRepo, settlementRepo,
		sequenceRepo, auditRepo, exporter, logger)

	// Background workers
	workers := worker.NewManager(logger)
	workers.Register(worker.NewSLASweeper(db, claimRepo, auditRepo, cfg.Workers.SLAInterval, logger))
	workers.Register(worker.NewPolicySweeper(policySvc, cfg.Workers.PolicyInterval, logger))
	workers.Register(worker.NewCoverageReset(db, coverageRepo, cfg.Workers.CoverageResetInterval, logger))
	if err := workers.StartAll(context.Background()); err != nil {
		logger.Fatal("Failed to start background workers", zap.Error(err))
	}

	// HTTP server
	handlers := httpserver.NewHandlers(claimSvc, committeeSvc, policySvc, memberSvc, cessionSvc,
		attachmentRepo, claimRepo, auditRepo, logger)
	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, handlers, logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := workers.StopAll(); err != nil {
		logger.Error("Failed to stop background workers", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}
