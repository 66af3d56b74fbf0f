package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/starred-sync/internal/api"
	"github.com/Kamar-Folarin/starred-sync/internal/auth"
	"github.com/Kamar-Folarin/starred-sync/internal/config"
	"github.com/Kamar-Folarin/starred-sync/internal/credential"
	"github.com/Kamar-Folarin/starred-sync/internal/crypto"
	"github.com/Kamar-Folarin/starred-sync/internal/db"
	"github.com/Kamar-Folarin/starred-sync/internal/github"
)

func main() {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	configureLogger(logger, cfg)

	clock := clockwork.NewRealClock()

	store, err := openStore(cfg, clock, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Run migrations with retry logic
	if err := retry(3, 5*time.Second, store.Migrate); err != nil {
		logger.Fatalf("Failed to run migrations after retries: %v", err)
	}

	cipher, err := crypto.NewAESCipher(cfg.EncryptionKey)
	if err != nil {
		logger.Fatalf("Failed to initialize credential encryption: %v", err)
	}
	credentials := credential.NewStore(store, cipher, clock,
		credential.WithExpiryLeeway(cfg.CredentialExpiryLeeway),
		credential.WithLogger(logger),
	)

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTTTL, clock)
	if err != nil {
		logger.Fatalf("Failed to initialize session tokens: %v", err)
	}

	// One tracker for the whole process: every request shares GitHub's quota.
	tracker := github.NewRateLimitTracker(clock, logger)
	client := github.NewClientFromConfig(cfg.GitHub(), tracker, logger, github.WithClock(clock))

	syncCfg := cfg.Sync()
	repoService := github.NewRepositoryService(client, store, logger)
	commitService := github.NewCommitService(client, store, syncCfg, clock, logger)
	syncService := github.NewSyncService(store, credentials, repoService, commitService, syncCfg, clock, logger)

	var oauth api.OAuthProvider
	if cfg.OAuthEnabled() {
		oauth = auth.NewGitHubProvider(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.GitHubRedirectURL, logger,
			auth.WithAPIBaseURL(cfg.GitHub().APIBaseURL))
	} else {
		logger.Warn("GITHUB_CLIENT_ID/GITHUB_CLIENT_SECRET not set, GitHub login is disabled")
	}

	handler := api.NewHandler(repoService, syncService, credentials, store, tokens, oauth, cfg.CredentialTTL, clock, logger)
	router := api.SetupRouter(handler, tokens, logger)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.WithCORS(router, cfg.Origins()),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	syncService.Start(ctx)

	go func() {
		logger.Infof("Server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	syncService.Stop()
	logger.Info("Server exited properly")
}

func configureLogger(logger *logrus.Logger, cfg *config.Config) {
	if cfg.LogFormat == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warnf("Unknown LOG_LEVEL %q, using info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if level < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
}

func openStore(cfg *config.Config, clock clockwork.Clock, logger *logrus.Logger) (*db.SQLStore, error) {
	opts := []db.StoreOption{db.WithClock(clock), db.WithLogger(logger)}
	if cfg.DBDriver == config.DriverSQLite {
		return db.NewSQLiteStore(cfg.DBConnectionString, opts...)
	}
	return db.NewPostgresStore(cfg.DBConnectionString, opts...)
}

// retry retries a function up to a certain number of attempts with a delay between attempts
func retry(attempts int, sleep time.Duration, fn func() error) error {
	if err := fn(); err != nil {
		if attempts--; attempts > 0 {
			time.Sleep(sleep)
			return retry(attempts, sleep, fn)
		}
		return err
	}
	return nil
}
