// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-dcmtools.
//
// go-dcmtools is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package config loads the dcm configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/jeremyhahn/go-dcmtools/pkg/platform"
)

const (
	// DefaultSystemStore is the platform's default certificate store.
	DefaultSystemStore = "/QIBM/UserData/ICSS/Cert/Server/DEFAULT.KDB"

	// DefaultFetchTimeout bounds --fetch-from handshakes.
	DefaultFetchTimeout = 10 * time.Second

	// PlatformFile keeps each store in a keystore file.
	PlatformFile = "file"
	// PlatformKV keeps stores in a key-value directory.
	PlatformKV = "kv"
)

// DefaultTrustCommand extracts the trust anchors installed on the host
// as a PEM bundle. The output file is appended at run time.
var DefaultTrustCommand = []string{"trust", "extract", "--format=pem-bundle", "--purpose=server-auth"}

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the complete dcm configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
	Import  ImportConfig  `yaml:"import"`
	Metrics MetricsConfig `yaml:"metrics"`
	Output  string        `yaml:"output"`

	// Warnings collects environment overrides that were ignored.
	Warnings []string `yaml:"-"`
}

// StoreConfig selects where certificate stores live.
type StoreConfig struct {
	// System is the store used for "system" and "*system".
	System string `yaml:"system"`
	// Platform is "file" or "kv".
	Platform string `yaml:"platform"`
	// KVRoot is the directory holding kv stores.
	KVRoot string `yaml:"kv_root"`
	// KeepBackup keeps the previous keystore file after each commit.
	KeepBackup bool `yaml:"keep_backup"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ImportConfig tunes the import sources.
type ImportConfig struct {
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	TrustCommand []string      `yaml:"trust_command"`

	// StrictSignatures skips candidates matching a store entry with a
	// different signature. Otherwise they are imported with a warning.
	StrictSignatures bool `yaml:"strict_signatures"`
}

// MetricsConfig controls the node_exporter textfile.
type MetricsConfig struct {
	File string `yaml:"file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			System:   DefaultSystemStore,
			Platform: PlatformFile,
			KVRoot:   filepath.Join(homeDir(), ".dcm", "kv"),
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Import: ImportConfig{
			FetchTimeout: DefaultFetchTimeout,
			TrustCommand: append([]string(nil), DefaultTrustCommand...),
		},
		Output: "text",
	}
}

// DefaultPath returns $HOME/.dcm/config.yaml.
func DefaultPath() string {
	return filepath.Join(homeDir(), ".dcm", "config.yaml")
}

// Load reads path over the defaults and applies environment overrides.
// An empty path reads DefaultPath, which may be missing.
func Load(fs afero.Fs, path string) (*Config, error) {
	cfg := Default()

	optional := path == ""
	if optional {
		path = DefaultPath()
	}
	data, err := afero.ReadFile(fs, path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case optional && errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies DCM_* environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DCM_SYSTEM_STORE"); v != "" {
		cfg.Store.System = v
	}
	if v := os.Getenv("DCM_PLATFORM"); v != "" {
		cfg.Store.Platform = v
	}
	if v := os.Getenv("DCM_KV_ROOT"); v != "" {
		cfg.Store.KVRoot = v
	}
	if v := os.Getenv("DCM_KEEP_BACKUP"); v != "" {
		keep, err := strconv.ParseBool(v)
		if err != nil {
			cfg.warnf("ignoring DCM_KEEP_BACKUP=%q: %v", v, err)
		} else {
			cfg.Store.KeepBackup = keep
		}
	}

	if v := os.Getenv("DCM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DCM_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("DCM_FETCH_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			cfg.warnf("ignoring DCM_FETCH_TIMEOUT=%q, using %s", v, cfg.Import.FetchTimeout)
		} else {
			cfg.Import.FetchTimeout = d
		}
	}
	if v := os.Getenv("DCM_TRUST_COMMAND"); v != "" {
		cfg.Import.TrustCommand = strings.Fields(v)
	}
	if v := os.Getenv("DCM_STRICT_SIGNATURES"); v != "" {
		strict, err := strconv.ParseBool(v)
		if err != nil {
			cfg.warnf("ignoring DCM_STRICT_SIGNATURES=%q: %v", v, err)
		} else {
			cfg.Import.StrictSignatures = strict
		}
	}
	if v := os.Getenv("DCM_METRICS_FILE"); v != "" {
		cfg.Metrics.File = v
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Store.System == "" {
		return fmt.Errorf("%w: store.system must be specified", ErrInvalidConfig)
	}
	switch c.Store.Platform {
	case PlatformFile:
	case PlatformKV:
		if c.Store.KVRoot == "" {
			return fmt.Errorf("%w: store.kv_root is required for the kv platform", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: store.platform %q (must be file or kv)", ErrInvalidConfig, c.Store.Platform)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("%w: log level %q (must be debug, info, warn, or error)", ErrInvalidConfig, c.Logging.Level)
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("%w: log format %q (must be json or text)", ErrInvalidConfig, c.Logging.Format)
	}

	validOutputs := map[string]bool{"text": true, "json": true, "yaml": true, "table": true}
	if !validOutputs[strings.ToLower(c.Output)] {
		return fmt.Errorf("%w: output %q (must be text, json, yaml, or table)", ErrInvalidConfig, c.Output)
	}

	if c.Import.FetchTimeout <= 0 {
		return fmt.Errorf("%w: import.fetch_timeout must be positive", ErrInvalidConfig)
	}
	if len(c.Import.TrustCommand) == 0 {
		return fmt.Errorf("%w: import.trust_command must not be empty", ErrInvalidConfig)
	}
	return nil
}

// ResolveStore maps "system" and "*system" to the configured system
// store and returns other IDs unchanged.
func (c *Config) ResolveStore(id string) string {
	if strings.TrimSpace(id) == "" || platform.IsSystemStore(id) {
		return c.Store.System
	}
	return id
}

func (c *Config) warnf(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}
