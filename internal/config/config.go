// Package config loads the HCL configuration file shared by the courier
// binaries. File values are defaults; command-line flags with the same
// meaning win.
package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// Config is the file-level configuration.
type Config struct {
	// Description is the path to the service description YAML.
	Description string `hcl:"description,optional"`

	Endpoint string `hcl:"endpoint,optional"`
	Region   string `hcl:"region,optional"`
	Scheme   string `hcl:"scheme,optional"`

	Credentials *Credentials `hcl:"credentials,block"`
	Recorder    *Recorder    `hcl:"recorder,block"`
	Metrics     *Metrics     `hcl:"metrics,block"`

	// Listen and Fixtures configure the courier-mock daemon.
	Listen   string `hcl:"listen,optional"`
	Fixtures string `hcl:"fixtures,optional"`
}

// Credentials holds static signing credentials. Environment variables
// take over when the block is absent.
type Credentials struct {
	KeyID        string `hcl:"key_id,optional"`
	Secret       string `hcl:"secret,optional"`
	SessionToken string `hcl:"session_token,optional"`
}

// Recorder configures the call journal.
type Recorder struct {
	Driver string `hcl:"driver,optional"`

	// DSN is the SQLite file path when the driver is sqlite.
	DSN string `hcl:"dsn,optional"`

	Host     string `hcl:"host,optional"`
	Port     int    `hcl:"port,optional"`
	User     string `hcl:"user,optional"`
	Password string `hcl:"password,optional"`
	DBName   string `hcl:"dbname,optional"`
}

// Metrics configures the statsd sink.
type Metrics struct {
	StatsdAddr string   `hcl:"statsd_addr,optional"`
	Tags       []string `hcl:"tags,optional"`
}

// Load reads and decodes an HCL configuration file.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
