package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sabanasdb/internal/api"
	"github.com/sabanasdb/internal/cache"
	"github.com/sabanasdb/internal/config"
	"github.com/sabanasdb/internal/database"
	"github.com/sabanasdb/internal/ftp"
	"github.com/sabanasdb/internal/jobs"
	"github.com/sabanasdb/internal/logging"
	"github.com/sabanasdb/internal/storage"
	"github.com/sabanasdb/internal/version"
)

func defaultConfigPath() string {
	if p := os.Getenv("SABANAS_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}

func main() {
	// Command line flags
	var (
		configPath   = flag.String("config", defaultConfigPath(), "Path to configuration file")
		host         = flag.String("host", "", "HTTP server host (overrides config)")
		port         = flag.Int("port", 0, "HTTP server port (overrides config)")
		showVersion  = flag.Bool("version", false, "Show version information")
		createConfig = flag.Bool("create-config", false, "Write config.example.yaml and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("Sabanas Server %s\n", version.GetFullVersionInfo())
		os.Exit(0)
	}

	if *createConfig {
		if err := config.CreateExampleConfig("."); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create example config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Wrote config.example.yaml")
		os.Exit(0)
	}

	// Load configuration first
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	// Initialize logging from configuration
	if err := logging.Initialize(cfg.Logging.ToLoggingConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	logging.Info("sabanas server starting",
		slog.String("version", version.GetFullVersionInfo()),
		slog.String("config", *configPath))

	// Record store
	db, err := database.New(cfg.Database.URL)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if v, err := db.GetVersion(); err == nil {
		logging.Info("database connected",
			slog.String("engine", db.Dialect().Name),
			slog.String("server_version", v))
	}

	if err := db.Migrate(); err != nil {
		logging.Fatalf("Failed to run migrations: %v", err)
	}

	repo, err := storage.New(db)
	if err != nil {
		logging.Fatalf("Failed to initialize storage: %v", err)
	}
	defer repo.Close()

	// Job tracker (nil when disabled; every consumer handles that)
	tracker, err := cache.New(cfg.Cache.ToTrackerConfig())
	if err != nil {
		logging.Fatalf("Failed to initialize job tracker: %v", err)
	}
	defer tracker.Close()
	if tracker != nil {
		logging.Info("job tracker enabled",
			slog.String("path", cfg.Cache.Path),
			slog.Bool("in_memory", cfg.Cache.InMemory))
	} else {
		logging.Info("job tracker disabled")
	}

	// Ingest pipeline
	ftpClient := ftp.NewClient(cfg.FTP.ToClientConfig())
	engine := jobs.NewEngine(repo, ftpClient, tracker, cfg.Jobs.TmpDir, cfg.Jobs.Workers)
	logging.Info("ingest engine ready",
		slog.Int("workers", cfg.Jobs.Workers),
		slog.String("tmp_dir", cfg.Jobs.TmpDir),
		slog.String("ftp_host", cfg.FTP.Host))

	reaper := jobs.NewReaper(repo, tracker, cfg.Jobs.StaleAfter, cfg.Jobs.ReapInterval)
	reaperCtx, reaperCancel := context.WithCancel(context.Background())
	defer reaperCancel()
	reaper.Start(reaperCtx)

	// HTTP API
	apiServer := api.New(repo, db, engine)
	apiServer.SetTracker(tracker)
	apiServer.SetAPIKey(cfg.Server.APIKey)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           apiServer.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	go func() {
		logging.Info("server listening", slog.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info("server shutting down")

	reaper.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error("graceful shutdown timed out, forcing close", logging.Err(err))
		if err := server.Close(); err != nil {
			logging.Error("server force close error", logging.Err(err))
		}
	}

	// In-flight jobs finish (or abort into error state) before the
	// database goes away.
	if err := engine.Shutdown(shutdownCtx); err != nil {
		logging.Error("jobs aborted during shutdown", logging.Err(err))
	}

	logging.Info("server stopped")
}
