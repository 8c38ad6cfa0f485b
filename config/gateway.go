// The gateway configuration is designed to allow adding other storage backends in the future. To do this, you need to add a new GatewayType, update GatewayConfig, and define the validation for the new backend.
package config

import "fmt"

// GatewayType represents the type of remote storage backend
type GatewayType string

const (
	GatewayTypeS3  GatewayType = "s3"
	GatewayTypeFTP GatewayType = "ftp"
)

// GatewayConfig holds the configuration for the remote resource gateway
type GatewayConfig struct {
	GatewayType GatewayType `json:"type" yaml:"type" toml:"type"`

	// Common options for all backends
	Common CommonGatewayConfig `json:"common,omitempty" yaml:"common,omitempty" toml:"common,omitempty"`

	// Type-specific configurations
	S3  *S3Config  `json:"s3,omitempty" yaml:"s3,omitempty" toml:"s3,omitempty"`
	FTP *FTPConfig `json:"ftp,omitempty" yaml:"ftp,omitempty" toml:"ftp,omitempty"`
}

// CommonGatewayConfig contains general settings applicable to all backends
type CommonGatewayConfig struct {
	TimeoutSeconds int `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty" toml:"timeout_seconds,omitempty"` // optional: request timeout in seconds
	MaxRetries     int `json:"max_retries,omitempty" yaml:"max_retries,omitempty" toml:"max_retries,omitempty"`             // optional: maximum number of retries for API calls
	MaxRPS         int `json:"max_rps,omitempty" yaml:"max_rps,omitempty" toml:"max_rps,omitempty"`                         // optional: maximum requests per second to the backend
}

// S3Config holds S3-specific configuration
type S3Config struct {
	Region          string `json:"region" yaml:"region" toml:"region"`
	Bucket          string `json:"bucket" yaml:"bucket" toml:"bucket"`
	AccessKeyID     string `json:"access_key_id,omitempty" yaml:"access_key_id,omitempty" toml:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secret_access_key,omitempty" yaml:"secret_access_key,omitempty" toml:"secret_access_key,omitempty"`
	Endpoint        string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" toml:"endpoint,omitempty"` // For S3-compatible services
}

// FTPConfig holds FTP-specific configuration
type FTPConfig struct {
	Host     string `json:"host" yaml:"host" toml:"host"`                                           // FTP server host
	Port     int    `json:"port" yaml:"port" toml:"port"`                                           // FTP server port (default: 21)
	Username string `json:"username" yaml:"username" toml:"username"`                               // FTP username
	Password string `json:"password,omitempty" yaml:"password,omitempty" toml:"password,omitempty"` // FTP password
	BasePath string `json:"base_path,omitempty" yaml:"base_path,omitempty" toml:"base_path"`        // Base path on FTP server (optional)
	UseTLS   bool   `json:"use_tls,omitempty" yaml:"use_tls,omitempty" toml:"use_tls,omitempty"`    // Use FTPS (FTP over TLS)
	PoolSize int    `json:"pool_size,omitempty" yaml:"pool_size,omitempty" toml:"pool_size,omitempty"` // Connection pool size
}

// Validate ensures the configuration is valid for the specified gateway type
func (gc *GatewayConfig) Validate() error {
	if err := gc.Common.Validate(); err != nil {
		return err
	}

	switch gc.GatewayType {
	case GatewayTypeS3:
		if gc.S3 == nil {
			return fmt.Errorf("s3 configuration is required when type is 's3'")
		}
		return gc.S3.Validate()
	case GatewayTypeFTP:
		if gc.FTP == nil {
			return fmt.Errorf("ftp configuration is required when type is 'ftp'")
		}
		return gc.FTP.Validate()
	default:
		return fmt.Errorf("unsupported gateway type: %s", gc.GatewayType)
	}
}

// GetActiveConfig returns the active configuration based on the gateway type
func (gc *GatewayConfig) GetActiveConfig() interface{} {
	switch gc.GatewayType {
	case GatewayTypeS3:
		return gc.S3
	case GatewayTypeFTP:
		return gc.FTP
	default:
		return nil
	}
}

// Validate validates S3 configuration
func (s3c *S3Config) Validate() error {
	if s3c.Bucket == "" {
		return fmt.Errorf("s3 bucket is required")
	}
	if s3c.AccessKeyID == "" {
		return fmt.Errorf("s3 access key is required")
	}
	if s3c.SecretAccessKey == "" {
		return fmt.Errorf("s3 secret key is required")
	}
	return nil
}

// Validate validates FTP configuration
func (fc *FTPConfig) Validate() error {
	if fc.Host == "" {
		return fmt.Errorf("ftp host is required")
	}
	if fc.Port <= 0 || fc.Port > 65535 {
		return fmt.Errorf("ftp port must be between 1 and 65535")
	}
	if fc.Username == "" {
		return fmt.Errorf("ftp username is required")
	}
	// Password can be empty for anonymous FTP
	return nil
}

// ApplyDefaults sets default values for common gateway configuration
func (c *CommonGatewayConfig) ApplyDefaults() {
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	// MaxRPS leave 0 (means no limit)
}

// Validate validates common gateway configuration
func (c *CommonGatewayConfig) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds cannot be negative")
	}
	return nil
}

// ApplyDefaults sets default values for FTP configuration
func (fc *FTPConfig) ApplyDefaults() {
	if fc.Port == 0 {
		fc.Port = 21 // Default FTP port
	}
	if fc.BasePath == "" {
		fc.BasePath = "/" // Default to root
	}
	if fc.PoolSize <= 0 {
		fc.PoolSize = 3
	}
}
