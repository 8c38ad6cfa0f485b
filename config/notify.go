package config

import "fmt"

// NotifierType represents the type of notification backend
type NotifierType string

const (
	NotifierTypeSMTP NotifierType = "smtp"
	NotifierTypeNone NotifierType = "none"
)

// NotifierConfig holds the configuration for share notifications
type NotifierConfig struct {
	NotifierType NotifierType `json:"type" yaml:"type" toml:"type"`

	// Type-specific configs
	SMTP *SMTPConfig `json:"smtp,omitempty" yaml:"smtp,omitempty" toml:"smtp,omitempty"`
}

// SMTPConfig holds SMTP-specific configuration
type SMTPConfig struct {
	Host     string `json:"host" yaml:"host" toml:"host"`                                           // SMTP server host
	Port     int    `json:"port" yaml:"port" toml:"port"`                                           // SMTP server port (default: 587)
	Username string `json:"username,omitempty" yaml:"username,omitempty" toml:"username,omitempty"` // SMTP username
	Password string `json:"password,omitempty" yaml:"password,omitempty" toml:"password,omitempty"` // SMTP password
	From     string `json:"from" yaml:"from" toml:"from"`                                           // Sender address
}

// Validate validates the notifier configuration
func (nc *NotifierConfig) Validate() error {
	switch nc.NotifierType {
	case NotifierTypeSMTP:
		if nc.SMTP == nil {
			return fmt.Errorf("smtp configuration is required when type is 'smtp'")
		}
		return nc.SMTP.Validate()
	case NotifierTypeNone, "":
		return nil
	default:
		return fmt.Errorf("unsupported notifier type: %s", nc.NotifierType)
	}
}

// Validate validates SMTP configuration
func (sc *SMTPConfig) Validate() error {
	if sc.Host == "" {
		return fmt.Errorf("smtp host is required")
	}
	if sc.Port <= 0 || sc.Port > 65535 {
		return fmt.Errorf("smtp port must be between 1 and 65535")
	}
	if sc.From == "" {
		return fmt.Errorf("smtp from address is required")
	}
	return nil
}

// ApplyDefaults sets default values for SMTP configuration
func (sc *SMTPConfig) ApplyDefaults() {
	if sc.Port == 0 {
		sc.Port = 587
	}
}
