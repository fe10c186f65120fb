package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/heimdex/heimdex-labels/internal/api"
	"github.com/heimdex/heimdex-labels/internal/cloud"
	"github.com/heimdex/heimdex-labels/internal/config"
	"github.com/heimdex/heimdex-labels/internal/db"
	"github.com/heimdex/heimdex-labels/internal/logging"
	"github.com/heimdex/heimdex-labels/internal/ontology"
	"github.com/heimdex/heimdex-labels/internal/workspace"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.ExportDir(), 0755); err != nil {
		return fmt.Errorf("failed to create export dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting heimdex label agent", "version", config.Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := workspace.NewRepository(database.Conn())

	deviceID, err := ensureConfigSecret(repo, "device_id", 16)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}

	authToken, err := ensureConfigSecret(repo, api.AuthTokenKey, 32)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║                HEIMDEX LABEL AGENT v%-21s ║\n", config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Device ID:  %-45s ║\n", deviceID[:16]+"...")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	var cloudClient cloud.Client
	if cfg.CloudEnabled() {
		httpClient := cloud.NewHTTPClient(cfg.CloudBaseURL(), cfg.CloudToken(), cfg.CloudOrgSlug(), logger)
		httpClient.SetDeviceID(deviceID)
		cloudClient = httpClient
		logger.Info("cloud sync enabled", "base_url", cfg.CloudBaseURL(), "org_slug", cfg.CloudOrgSlug())
	} else {
		cloudClient = cloud.NewStubClient(logger)
		logger.Warn("cloud not configured, using in-memory stub", "url_env", config.EnvCloudURL, "token_env", config.EnvCloudToken)
	}

	ontologies := ontology.NewCached(cloudClient, cfg.OntologyTTL(), logger)
	service := workspace.NewService(repo, cloudClient, ontologies, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := workspace.NewRunner(service, repo, logger, cfg.PollInterval(), cfg.MaxAttempts())
	go runner.Start(ctx)

	apiServer := api.NewServer(api.ServerConfig{
		Port:       cfg.Port(),
		ExportDir:  cfg.ExportDir(),
		Workspace:  service,
		Repository: repo,
		Runner:     runner,
		Logger:     logger,
		StartTime:  startTime,
		DeviceID:   deviceID,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- apiServer.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// ensureConfigSecret returns the hex value stored under key, generating and
// storing n random bytes the first time.
func ensureConfigSecret(repo workspace.Repository, key string, n int) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, key)
	if err == nil && existing != "" {
		return existing, nil
	}

	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	value := hex.EncodeToString(b)

	if err := repo.SetConfig(ctx, key, value); err != nil {
		return "", err
	}

	return value, nil
}
