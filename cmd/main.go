package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matsuo0603/ShareFileBC/config"
	"github.com/matsuo0603/ShareFileBC/gateway"
	"github.com/matsuo0603/ShareFileBC/logger"
	"github.com/matsuo0603/ShareFileBC/notify"
	"github.com/matsuo0603/ShareFileBC/retention"
	"github.com/matsuo0603/ShareFileBC/scheduler"
	"github.com/matsuo0603/ShareFileBC/server"
	"github.com/matsuo0603/ShareFileBC/share"
	"github.com/matsuo0603/ShareFileBC/store"
	"github.com/matsuo0603/ShareFileBC/sweeper"
)

const sweepJobName = "retention-sweep"

func main() {
	// Define CLI flags
	var (
		// Logger flags
		logLevel = flag.String("log-level", "", "Log level: silent, error, info, debug, verbose (env: LOG_LEVEL)")

		// Store flags
		storePath   = flag.String("store-path", "", "Path to record database (env: STORE_BBOLT_PATH)")
		storeNoSync = flag.Bool("store-no-sync", false, "Disable fsync for record database (env: STORE_BBOLT_NO_SYNC)")

		// Gateway flags
		gatewayType = flag.String("gateway-type", "", "Storage backend: s3, ftp (env: GATEWAY_TYPE)")
		maxRetries  = flag.Int("gateway-max-retries", 0, "Max retries for storage operations (env: GATEWAY_MAX_RETRIES)")
		timeout     = flag.Int("gateway-timeout", 0, "Storage operation timeout in seconds (env: GATEWAY_TIMEOUT_SECONDS)")
		maxRPS      = flag.Int("gateway-max-rps", 0, "Max requests per second to storage (0 = no limit) (env: GATEWAY_MAX_RPS)")

		// S3 flags
		s3Region    = flag.String("s3-region", "", "S3 region (env: S3_REGION)")
		s3Bucket    = flag.String("s3-bucket", "", "S3 bucket name (env: S3_BUCKET)")
		s3AccessKey = flag.String("s3-access-key", "", "S3 access key ID (env: S3_ACCESS_KEY_ID)")
		s3SecretKey = flag.String("s3-secret-key", "", "S3 secret access key (env: S3_SECRET_ACCESS_KEY)")
		s3Endpoint  = flag.String("s3-endpoint", "", "S3 endpoint URL (env: S3_ENDPOINT)")

		// FTP flags
		ftpHost     = flag.String("ftp-host", "", "FTP server host (env: FTP_HOST)")
		ftpPort     = flag.Int("ftp-port", 0, "FTP server port (env: FTP_PORT)")
		ftpUsername = flag.String("ftp-username", "", "FTP username (env: FTP_USERNAME)")
		ftpPassword = flag.String("ftp-password", "", "FTP password (env: FTP_PASSWORD)")
		ftpBasePath = flag.String("ftp-base-path", "", "FTP base path (env: FTP_BASE_PATH)")
		ftpUseTLS   = flag.Bool("ftp-use-tls", false, "Use FTPS (env: FTP_USE_TLS)")

		// Retention flags
		retentionDuration  = flag.Duration("retention-duration", 0, "Lifetime of shared content, e.g. 168h (env: RETENTION_DURATION)")
		sweepInterval      = flag.Duration("sweep-interval", 0, "Period of the background sweep (env: RETENTION_SWEEP_INTERVAL)")
		schedulePolicy     = flag.String("schedule-policy", "", "Schedule conflict policy: keep, replace, update (env: RETENTION_SCHEDULE_POLICY)")
		timezone           = flag.String("timezone", "", "Fixed IANA zone for timestamps (env: RETENTION_TIMEZONE)")
		skipRemoteDeletion = flag.Bool("skip-remote-deletion", false, "Sweeps only delete local records (env: RETENTION_SKIP_REMOTE_DELETION)")

		// Share and server flags
		rootFolder    = flag.String("share-root", "", "Application root folder on the backend (env: SHARE_ROOT_FOLDER)")
		publicBaseURL = flag.String("public-base-url", "", "Base URL of shareable links (env: SHARE_PUBLIC_BASE_URL)")
		serverAddr    = flag.String("server-addr", "", "HTTP listen address (env: SERVER_ADDR)")

		// General flags
		showHelp = flag.Bool("help", false, "Show help message")
	)

	flag.Parse()

	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	// Load base configuration from environment variables
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config from environment: %v\n", err)
		os.Exit(1)
	}

	// Override with CLI flags if provided
	applyFlags(cfg, flagValues{
		logLevel:           *logLevel,
		storePath:          *storePath,
		storeNoSync:        *storeNoSync,
		gatewayType:        *gatewayType,
		maxRetries:         *maxRetries,
		timeout:            *timeout,
		maxRPS:             *maxRPS,
		s3Region:           *s3Region,
		s3Bucket:           *s3Bucket,
		s3AccessKey:        *s3AccessKey,
		s3SecretKey:        *s3SecretKey,
		s3Endpoint:         *s3Endpoint,
		ftpHost:            *ftpHost,
		ftpPort:            *ftpPort,
		ftpUsername:        *ftpUsername,
		ftpPassword:        *ftpPassword,
		ftpBasePath:        *ftpBasePath,
		ftpUseTLS:          *ftpUseTLS,
		retentionDuration:  *retentionDuration,
		sweepInterval:      *sweepInterval,
		schedulePolicy:     *schedulePolicy,
		timezone:           *timezone,
		skipRemoteDeletion: *skipRemoteDeletion,
		rootFolder:         *rootFolder,
		publicBaseURL:      *publicBaseURL,
		serverAddr:         *serverAddr,
	})

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration validation error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(&cfg.Logger)
	log.Info("Starting file sharing service")
	log.Debug("Configuration loaded and validated")

	// Initialize record store
	log.Debug("Initializing record store...")
	recordStore, err := store.CreateStore(&cfg.Store)
	if err != nil {
		log.Error("Failed to create record store: %v", err)
		os.Exit(1)
	}
	defer func() {
		log.Debug("Closing record store...")
		if err := recordStore.Close(); err != nil {
			log.Error("Error closing record store: %v", err)
		}
	}()
	log.Info("Record store initialized: type=%s", cfg.Store.StoreType)

	// Initialize storage gateway
	log.Debug("Initializing storage gateway...")
	gw, err := gateway.CreateGateway(&cfg.Gateway)
	if err != nil {
		log.Error("Failed to create storage gateway: %v", err)
		os.Exit(1)
	}
	defer func() {
		log.Debug("Closing storage gateway...")
		if err := gw.Close(); err != nil {
			log.Error("Error closing storage gateway: %v", err)
		}
	}()
	log.Info("Storage gateway initialized: type=%s", cfg.Gateway.GatewayType)

	// Initialize notifier
	notifier, err := notify.CreateNotifier(&cfg.Notifier, log)
	if err != nil {
		log.Error("Failed to create notifier: %v", err)
		os.Exit(1)
	}
	log.Info("Notifier initialized: type=%s", cfg.Notifier.NotifierType)

	// Retention policy and the components built on it
	policy := retention.NewPolicy(cfg.Retention.Duration, cfg.Retention.Location())
	sw := sweeper.NewSweeper(recordStore, gw, policy, log)
	uploader := share.NewUploader(recordStore, gw, notifier, policy, &cfg.Share, log)
	receiver := share.NewReceiver(recordStore, gw, policy, log)

	// Set up signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Sweeps that delete remotely are pointless while the backend is down,
	// so gate scheduled firings on reachability
	var probe scheduler.NetworkProbe
	if !cfg.Retention.SkipRemoteDeletion {
		probe = func(ctx context.Context) bool {
			_, err := gw.ListChildren(ctx, gw.RootID())
			return !errors.Is(err, gateway.ErrUnavailable)
		}
	}

	sched := scheduler.NewScheduler(&cfg.Retention, probe, log)
	sched.Start(ctx)
	defer sched.Stop()
	sched.Schedule(sweepJobName, func(ctx context.Context) {
		if _, err := sw.RunSweep(ctx, cfg.Retention.SkipRemoteDeletion); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Scheduled sweep failed: %v", err)
		}
	})

	// One ad-hoc sweep at startup, off the request path
	go func() {
		if _, err := sw.RunSweep(ctx, cfg.Retention.SkipRemoteDeletion); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Startup sweep failed: %v", err)
		}
	}()

	// Run HTTP server
	srv := server.New(uploader, receiver, recordStore, gw, log)
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(cfg.Server.Addr)
	}()

	// Wait for failure or interruption
	select {
	case err := <-errChan:
		if err != nil {
			log.Error("HTTP server failed: %v", err)
			os.Exit(1)
		}
	case sig := <-sigChan:
		log.Info("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Error during shutdown: %v", err)
		}
		log.Info("Shutdown completed")
	}
}

type flagValues struct {
	logLevel           string
	storePath          string
	storeNoSync        bool
	gatewayType        string
	maxRetries         int
	timeout            int
	maxRPS             int
	s3Region           string
	s3Bucket           string
	s3AccessKey        string
	s3SecretKey        string
	s3Endpoint         string
	ftpHost            string
	ftpPort            int
	ftpUsername        string
	ftpPassword        string
	ftpBasePath        string
	ftpUseTLS          bool
	retentionDuration  time.Duration
	sweepInterval      time.Duration
	schedulePolicy     string
	timezone           string
	skipRemoteDeletion bool
	rootFolder         string
	publicBaseURL      string
	serverAddr         string
}

func applyFlags(cfg *config.AppConfig, flags flagValues) {
	// Logger
	if flags.logLevel != "" {
		cfg.Logger.Level = config.LogLevel(flags.logLevel)
	}

	// Store
	if flags.storePath != "" {
		cfg.Store.Bbolt.Path = flags.storePath
	}
	if flag.Lookup("store-no-sync").Value.String() == "true" {
		cfg.Store.Bbolt.NoSync = flags.storeNoSync
	}

	// Gateway
	if flags.gatewayType != "" {
		cfg.Gateway.GatewayType = config.GatewayType(flags.gatewayType)
	}
	if flags.maxRetries > 0 {
		cfg.Gateway.Common.MaxRetries = flags.maxRetries
	}
	if flags.timeout > 0 {
		cfg.Gateway.Common.TimeoutSeconds = flags.timeout
	}
	if flags.maxRPS > 0 {
		cfg.Gateway.Common.MaxRPS = flags.maxRPS
	}

	// S3
	if flags.s3Region != "" {
		cfg.Gateway.S3.Region = flags.s3Region
	}
	if flags.s3Bucket != "" {
		cfg.Gateway.S3.Bucket = flags.s3Bucket
	}
	if flags.s3AccessKey != "" {
		cfg.Gateway.S3.AccessKeyID = flags.s3AccessKey
	}
	if flags.s3SecretKey != "" {
		cfg.Gateway.S3.SecretAccessKey = flags.s3SecretKey
	}
	if flags.s3Endpoint != "" {
		cfg.Gateway.S3.Endpoint = flags.s3Endpoint
	}

	// FTP
	if flags.ftpHost != "" {
		cfg.Gateway.FTP.Host = flags.ftpHost
	}
	if flags.ftpPort > 0 {
		cfg.Gateway.FTP.Port = flags.ftpPort
	}
	if flags.ftpUsername != "" {
		cfg.Gateway.FTP.Username = flags.ftpUsername
	}
	if flags.ftpPassword != "" {
		cfg.Gateway.FTP.Password = flags.ftpPassword
	}
	if flags.ftpBasePath != "" {
		cfg.Gateway.FTP.BasePath = flags.ftpBasePath
	}
	if flag.Lookup("ftp-use-tls").Value.String() == "true" {
		cfg.Gateway.FTP.UseTLS = flags.ftpUseTLS
	}

	// Retention
	if flags.retentionDuration > 0 {
		cfg.Retention.Duration = flags.retentionDuration
	}
	if flags.sweepInterval > 0 {
		cfg.Retention.SweepInterval = flags.sweepInterval
	}
	if flags.schedulePolicy != "" {
		cfg.Retention.Policy = config.SchedulePolicy(flags.schedulePolicy)
	}
	if flags.timezone != "" {
		cfg.Retention.Timezone = flags.timezone
	}
	if flag.Lookup("skip-remote-deletion").Value.String() == "true" {
		cfg.Retention.SkipRemoteDeletion = flags.skipRemoteDeletion
	}

	// Share and server
	if flags.rootFolder != "" {
		cfg.Share.RootFolder = flags.rootFolder
	}
	if flags.publicBaseURL != "" {
		cfg.Share.PublicBaseURL = flags.publicBaseURL
	}
	if flags.serverAddr != "" {
		cfg.Server.Addr = flags.serverAddr
	}
}

func printHelp() {
	fmt.Println("ShareFileBC File Sharing Service")
	fmt.Println()
	fmt.Println("Usage: sharefilebc [options]")
	fmt.Println()
	fmt.Println("Configuration can be provided via environment variables or command-line flags.")
	fmt.Println("Command-line flags take precedence over environment variables.")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Example:")
	fmt.Println("  sharefilebc --s3-bucket=my-bucket --s3-region=us-east-1 --retention-duration=168h")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  LOG_LEVEL                      - Log level (silent, error, info, debug, verbose)")
	fmt.Println("  STORE_TYPE                     - Record store type (bbolt)")
	fmt.Println("  STORE_BBOLT_PATH               - Path to record database")
	fmt.Println("  STORE_BBOLT_NO_SYNC            - Disable fsync (true/false)")
	fmt.Println("  GATEWAY_TYPE                   - Storage backend (s3, ftp)")
	fmt.Println("  GATEWAY_TIMEOUT_SECONDS        - Storage operation timeout in seconds")
	fmt.Println("  GATEWAY_MAX_RETRIES            - Max retries for storage operations")
	fmt.Println("  GATEWAY_MAX_RPS                - Max requests per second (0 = no limit)")
	fmt.Println("  S3_REGION                      - S3 region")
	fmt.Println("  S3_BUCKET                      - S3 bucket name")
	fmt.Println("  S3_ACCESS_KEY_ID               - S3 access key ID")
	fmt.Println("  S3_SECRET_ACCESS_KEY           - S3 secret access key")
	fmt.Println("  S3_ENDPOINT                    - S3 endpoint URL")
	fmt.Println("  FTP_HOST                       - FTP server host")
	fmt.Println("  FTP_PORT                       - FTP server port")
	fmt.Println("  FTP_USERNAME                   - FTP username")
	fmt.Println("  FTP_PASSWORD                   - FTP password")
	fmt.Println("  FTP_BASE_PATH                  - FTP base path")
	fmt.Println("  FTP_USE_TLS                    - Use FTPS (true/false)")
	fmt.Println("  RETENTION_DURATION             - Lifetime of shared content (e.g. 168h)")
	fmt.Println("  RETENTION_SWEEP_INTERVAL       - Period of the background sweep (e.g. 15m)")
	fmt.Println("  RETENTION_SCHEDULE_POLICY      - Schedule conflict policy (keep, replace, update)")
	fmt.Println("  RETENTION_TIMEZONE             - Fixed IANA zone for timestamps")
	fmt.Println("  RETENTION_SKIP_REMOTE_DELETION - Sweeps only delete local records (true/false)")
	fmt.Println("  NOTIFIER_TYPE                  - Notifier type (smtp, none)")
	fmt.Println("  SMTP_HOST                      - SMTP server host")
	fmt.Println("  SMTP_PORT                      - SMTP server port")
	fmt.Println("  SMTP_USERNAME                  - SMTP username")
	fmt.Println("  SMTP_PASSWORD                  - SMTP password")
	fmt.Println("  SMTP_FROM                      - Notification sender address")
	fmt.Println("  SHARE_ROOT_FOLDER              - Application root folder on the backend")
	fmt.Println("  SHARE_PUBLIC_BASE_URL          - Base URL of shareable links")
	fmt.Println("  SERVER_ADDR                    - HTTP listen address")
}
