package config

import (
	"fmt"
	"net/url"
)

// ShareConfig holds the settings of the upload/share flow
type ShareConfig struct {
	RootFolder    string `json:"root_folder,omitempty" yaml:"root_folder,omitempty" toml:"root_folder,omitempty"`          // Name of the application root folder on the remote backend
	PublicBaseURL string `json:"public_base_url,omitempty" yaml:"public_base_url,omitempty" toml:"public_base_url,omitempty"` // Base URL used to build shareable deep links
}

// Validate validates the share configuration
func (sc *ShareConfig) Validate() error {
	if sc.PublicBaseURL != "" {
		u, err := url.Parse(sc.PublicBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("public_base_url must be an absolute URL, got %q", sc.PublicBaseURL)
		}
	}
	return nil
}

// ApplyDefaults sets default values for share configuration
func (sc *ShareConfig) ApplyDefaults() {
	if sc.RootFolder == "" {
		sc.RootFolder = "ShareFileBCApp"
	}
	if sc.PublicBaseURL == "" {
		sc.PublicBaseURL = "https://sharefilebcapp.web.app"
	}
}

// ServerConfig holds the HTTP server settings
type ServerConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty" toml:"addr,omitempty"` // Listen address, e.g. ":8080"
}

// Validate validates the server configuration
func (sc *ServerConfig) Validate() error {
	return nil
}

// ApplyDefaults sets default values for server configuration
func (sc *ServerConfig) ApplyDefaults() {
	if sc.Addr == "" {
		sc.Addr = ":8080"
	}
}
