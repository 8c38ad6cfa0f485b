package config

import (
	"fmt"
	"os"
)

// StoreType represents the type of local record store backend
type StoreType string

const (
	StoreTypeBbolt StoreType = "bbolt"
)

// StoreConfig holds the configuration for the local record store
type StoreConfig struct {
	StoreType StoreType `json:"type" yaml:"type" toml:"type"`

	// Type-specific configs
	Bbolt *BboltConfig `json:"bbolt,omitempty" yaml:"bbolt,omitempty" toml:"bbolt,omitempty"`
}

// BboltConfig holds bbolt-specific configuration
type BboltConfig struct {
	Path   string      `json:"path" yaml:"path" toml:"path"`                                        // Path to bbolt DB file
	Mode   os.FileMode `json:"mode,omitempty" yaml:"mode,omitempty" toml:"mode,omitempty"`          // File open mode: "0600", "0644"
	NoSync bool        `json:"no_sync,omitempty" yaml:"no_sync,omitempty" toml:"no_sync,omitempty"` // Disable fsync for better performance
}

// Validate validates the store configuration
func (sc *StoreConfig) Validate() error {
	switch sc.StoreType {
	case StoreTypeBbolt:
		if sc.Bbolt == nil {
			return fmt.Errorf("bbolt configuration is required when type is 'bbolt'")
		}
		return sc.Bbolt.Validate()
	default:
		return fmt.Errorf("unsupported store type: %s", sc.StoreType)
	}
}

func (bc *BboltConfig) Validate() error {
	if bc.Path == "" {
		return fmt.Errorf("bbolt path is required")
	}
	return nil
}

// ApplyDefaults sets default values if not provided for bbolt
func (bc *BboltConfig) ApplyDefaults() {
	if bc.Path == "" {
		bc.Path = "./records.db"
	}
	if bc.Mode == 0 {
		bc.Mode = 0600
	}
	// NoSync remains false by default for data safety
}
