package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/rewardflow/rewardflow-backend/internal/adapter/chain"
	"github.com/rewardflow/rewardflow-backend/internal/adapter/httpapi"
	"github.com/rewardflow/rewardflow-backend/internal/adapter/repository/postgres"
	"github.com/rewardflow/rewardflow-backend/internal/logger"
	"github.com/rewardflow/rewardflow-backend/internal/usecase/burn"
	"github.com/rewardflow/rewardflow-backend/internal/usecase/calculator"
	"github.com/rewardflow/rewardflow-backend/internal/usecase/claim"
	"github.com/rewardflow/rewardflow-backend/internal/usecase/dashboard"
	"github.com/rewardflow/rewardflow-backend/internal/usecase/scheduler"
	"github.com/rewardflow/rewardflow-backend/internal/usecase/window"
)

const (
	defaultAPIToken          = "dev-token"
	defaultListenAddr        = ":8080"
	defaultWindowDuration    = 24 * time.Hour
	defaultSchedulerInterval = time.Minute
	defaultMaxClaimAttempts  = 3
)

func main() {
	// Load a local .env in development; a missing file is fine
	_ = godotenv.Load()

	log := logger.New(os.Getenv("LOG_VERBOSE") == "true")

	// 1. Setup Database
	dbConnStr := os.Getenv("DB_CONN_STR")
	if dbConnStr == "" {
		// If explicit string is missing, build it from individual vars (Docker friendly)
		host := envOr("DB_HOST", "localhost")
		port := envOr("DB_PORT", "5432")
		user := envOr("DB_USER", "postgres")
		password := envOr("DB_PASSWORD", "postgres")
		dbname := envOr("DB_NAME", "rewardflow")

		dbConnStr = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			host, port, user, password, dbname)
	}

	db, err := postgres.NewDB(dbConnStr)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Repositories (Postgres)
	distributionRepo := postgres.NewDistributionRepository(db)
	transferRepo := postgres.NewTransferRepository(db)
	burnRepo := postgres.NewBurnRecordRepository(db)

	// 3. External collaborators (holdings indexer, wallet/broadcast bridge)
	snapshots := chain.NewSnapshotClient(envOr("INDEXER_URL", "http://localhost:9091"))
	wallet := chain.NewWalletClient(envOr("WALLET_URL", "http://localhost:9092"))

	// 4. Initialize Services (Use Cases)
	clock := clockwork.NewRealClock()
	windowDuration := envDuration(log, "WINDOW_DURATION", defaultWindowDuration)
	schedulerInterval := envDuration(log, "SCHEDULER_INTERVAL", defaultSchedulerInterval)
	maxAttempts := envInt(log, "MAX_CLAIM_ATTEMPTS", defaultMaxClaimAttempts)

	calculatorService := calculator.NewService(distributionRepo, snapshots, clock)
	burnEngine := burn.NewEngine(burnRepo, wallet, clock, log)
	windowController := window.NewController(
		distributionRepo, transferRepo, burnRepo, burnEngine, windowDuration, clock, log)
	claimService := claim.NewService(
		distributionRepo, transferRepo, wallet, maxAttempts, clock, log)
	dashboardService := dashboard.NewService(distributionRepo, transferRepo, burnRepo)

	// 5. Start the window scheduler
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	windowScheduler := scheduler.NewScheduler(
		distributionRepo, windowController, schedulerInterval, clock, log)
	windowScheduler.Start(ctx)

	// 6. Start HTTP server
	apiToken := envOr("API_TOKEN", defaultAPIToken)
	listenAddr := envOr("LISTEN_ADDR", defaultListenAddr)

	apiServer := httpapi.NewServer(
		calculatorService, windowController, claimService, dashboardService, log)

	httpServer := &http.Server{
		Addr:    listenAddr,
		Handler: apiServer.Routes(apiToken),
	}

	go func() {
		log.Info("http server listening", "addr", listenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	waitForShutdown(httpServer, cancel, log)
}

// waitForShutdown waits for SIGTERM or SIGINT, stops the scheduler and
// drains the HTTP server
func waitForShutdown(httpServer *http.Server, cancel context.CancelFunc, log *slog.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Info("received signal, shutting down gracefully", "signal", sig.String())

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", "error", err)
	}
	log.Info("http server stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(log *slog.Logger, key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Error("invalid duration, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return d
}

func envInt(log *slog.Logger, key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Error("invalid integer, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}
