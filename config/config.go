package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// AppConfig represents the complete application configuration
type AppConfig struct {
	Store     StoreConfig     `json:"store" yaml:"store" toml:"store"`
	Gateway   GatewayConfig   `json:"gateway" yaml:"gateway" toml:"gateway"`
	Retention RetentionConfig `json:"retention" yaml:"retention" toml:"retention"`
	Notifier  NotifierConfig  `json:"notifier" yaml:"notifier" toml:"notifier"`
	Share     ShareConfig     `json:"share" yaml:"share" toml:"share"`
	Server    ServerConfig    `json:"server" yaml:"server" toml:"server"`
	Logger    LoggerConfig    `json:"logger" yaml:"logger" toml:"logger"`
}

// Validate validates the entire configuration
func (ac *AppConfig) Validate() error {
	if err := ac.Store.Validate(); err != nil {
		return fmt.Errorf("store config error: %w", err)
	}
	if err := ac.Gateway.Validate(); err != nil {
		return fmt.Errorf("gateway config error: %w", err)
	}
	if err := ac.Retention.Validate(); err != nil {
		return fmt.Errorf("retention config error: %w", err)
	}
	if err := ac.Notifier.Validate(); err != nil {
		return fmt.Errorf("notifier config error: %w", err)
	}
	if err := ac.Share.Validate(); err != nil {
		return fmt.Errorf("share config error: %w", err)
	}
	if err := ac.Server.Validate(); err != nil {
		return fmt.Errorf("server config error: %w", err)
	}
	if err := ac.Logger.Validate(); err != nil {
		return fmt.Errorf("logger config error: %w", err)
	}
	return nil
}

// ApplyDefaults applies default values to all components
func (ac *AppConfig) ApplyDefaults() {
	ac.Gateway.Common.ApplyDefaults()
	ac.Retention.ApplyDefaults()
	ac.Share.ApplyDefaults()
	ac.Server.ApplyDefaults()
	ac.Logger.ApplyDefaults()

	// Apply defaults for specific configs
	if ac.Store.Bbolt != nil {
		ac.Store.Bbolt.ApplyDefaults()
	}
	if ac.Gateway.FTP != nil {
		ac.Gateway.FTP.ApplyDefaults()
	}
	if ac.Notifier.SMTP != nil {
		ac.Notifier.SMTP.ApplyDefaults()
	}
}

// LoadFromEnv loads configuration from environment variables
// This is a helper to populate config from env vars
func LoadFromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}

	// Logger configuration
	cfg.Logger.Level = LogLevel(getEnv("LOG_LEVEL", string(LogLevelInfo)))

	// Store configuration
	cfg.Store.StoreType = StoreType(getEnv("STORE_TYPE", string(StoreTypeBbolt)))
	cfg.Store.Bbolt = &BboltConfig{
		Path:   getEnv("STORE_BBOLT_PATH", "./records.db"),
		Mode:   0600,
		NoSync: getEnvBool("STORE_BBOLT_NO_SYNC", false),
	}

	// Gateway configuration
	cfg.Gateway.GatewayType = GatewayType(getEnv("GATEWAY_TYPE", string(GatewayTypeS3)))
	cfg.Gateway.Common.TimeoutSeconds = getEnvInt("GATEWAY_TIMEOUT_SECONDS", 30)
	cfg.Gateway.Common.MaxRetries = getEnvInt("GATEWAY_MAX_RETRIES", 3)
	cfg.Gateway.Common.MaxRPS = getEnvInt("GATEWAY_MAX_RPS", 0)

	cfg.Gateway.S3 = &S3Config{
		Region:          getEnv("S3_REGION", ""),
		Bucket:          getEnv("S3_BUCKET", ""),
		AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		Endpoint:        getEnv("S3_ENDPOINT", ""),
	}

	cfg.Gateway.FTP = &FTPConfig{
		Host:     getEnv("FTP_HOST", ""),
		Port:     getEnvInt("FTP_PORT", 21),
		Username: getEnv("FTP_USERNAME", ""),
		Password: getEnv("FTP_PASSWORD", ""),
		BasePath: getEnv("FTP_BASE_PATH", "/"),
		UseTLS:   getEnvBool("FTP_USE_TLS", false),
	}

	// Retention configuration
	cfg.Retention.Duration = getEnvDuration("RETENTION_DURATION", 7*24*time.Hour)
	cfg.Retention.SweepInterval = getEnvDuration("RETENTION_SWEEP_INTERVAL", 15*time.Minute)
	cfg.Retention.Policy = SchedulePolicy(getEnv("RETENTION_SCHEDULE_POLICY", string(SchedulePolicyKeep)))
	cfg.Retention.Timezone = getEnv("RETENTION_TIMEZONE", "Asia/Tokyo")
	cfg.Retention.SkipRemoteDeletion = getEnvBool("RETENTION_SKIP_REMOTE_DELETION", false)

	// Notifier configuration
	cfg.Notifier.NotifierType = NotifierType(getEnv("NOTIFIER_TYPE", string(NotifierTypeNone)))
	cfg.Notifier.SMTP = &SMTPConfig{
		Host:     getEnv("SMTP_HOST", ""),
		Port:     getEnvInt("SMTP_PORT", 587),
		Username: getEnv("SMTP_USERNAME", ""),
		Password: getEnv("SMTP_PASSWORD", ""),
		From:     getEnv("SMTP_FROM", ""),
	}

	// Share and server configuration
	cfg.Share.RootFolder = getEnv("SHARE_ROOT_FOLDER", "ShareFileBCApp")
	cfg.Share.PublicBaseURL = getEnv("SHARE_PUBLIC_BASE_URL", "https://sharefilebcapp.web.app")
	cfg.Server.Addr = getEnv("SERVER_ADDR", ":8080")

	// Apply defaults
	cfg.ApplyDefaults()

	return cfg, nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
