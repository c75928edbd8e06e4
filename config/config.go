// Package config loads tool configuration from TOML with environment
// variable overrides. All tunables (timeouts, ports, vendor URL, worker
// count) live here so pipeline stages never reach for ambient state.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration for the firmware update tool.
type Config struct {
	// DiscoveryEnabled controls whether mDNS autodiscovery may be used
	// when no target address is supplied.
	DiscoveryEnabled bool            `toml:"discovery_enabled"`
	Concurrency      int             `toml:"concurrency"`
	FirmwareDir      string          `toml:"firmware_dir"`
	Discovery        DiscoveryConfig `toml:"discovery"`
	SNMP             SNMPConfig      `toml:"snmp"`
	Vendor           VendorConfig    `toml:"vendor"`
	Upload           UploadConfig    `toml:"upload"`
	History          HistoryConfig   `toml:"history"`
	Logging          LoggingConfig   `toml:"logging"`
}

// DiscoveryConfig holds mDNS browse settings.
type DiscoveryConfig struct {
	Service  string `toml:"service"`
	Domain   string `toml:"domain"`
	WindowMs int    `toml:"window_ms"`
}

// Window returns the discovery window as a duration.
func (d DiscoveryConfig) Window() time.Duration {
	return time.Duration(d.WindowMs) * time.Millisecond
}

// SNMPConfig holds SNMP client settings.
type SNMPConfig struct {
	Community string `toml:"community"`
	Port      int    `toml:"port"`
	TimeoutMs int    `toml:"timeout_ms"`
	Retries   int    `toml:"retries"`
}

// Timeout returns the SNMP timeout as a duration.
func (s SNMPConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutMs) * time.Millisecond
}

// VendorConfig holds settings for the vendor firmware update service.
type VendorConfig struct {
	UpdateURL string `toml:"update_url"`
	// ReportedOS is the OS string sent to the update service
	// (WINDOWS, MAC or LINUX). Empty means detect from the runtime.
	ReportedOS string `toml:"reported_os"`
	TimeoutMs  int    `toml:"timeout_ms"`
	// MaxRetries bounds transient-error retries for metadata and
	// download requests.
	MaxRetries int `toml:"max_retries"`
}

// Timeout returns the HTTP timeout as a duration.
func (v VendorConfig) Timeout() time.Duration {
	return time.Duration(v.TimeoutMs) * time.Millisecond
}

// OS returns ReportedOS or the detected runtime OS.
func (v VendorConfig) OS() string {
	if v.ReportedOS != "" {
		return v.ReportedOS
	}
	switch runtime.GOOS {
	case "windows":
		return "WINDOWS"
	case "darwin":
		return "MAC"
	default:
		return "LINUX"
	}
}

// UploadConfig holds firmware upload channel settings.
type UploadConfig struct {
	Port      int `toml:"port"`
	TimeoutMs int `toml:"timeout_ms"`
}

// Timeout returns the upload dial/write timeout as a duration.
func (u UploadConfig) Timeout() time.Duration {
	return time.Duration(u.TimeoutMs) * time.Millisecond
}

// HistoryConfig holds run-history database settings. An empty path
// disables history recording.
type HistoryConfig struct {
	Path string `toml:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		DiscoveryEnabled: true,
		Concurrency:      4,
		FirmwareDir:      ".",
		Discovery: DiscoveryConfig{
			Service:  "_pdl-datastream._tcp",
			Domain:   "local.",
			WindowMs: 5000,
		},
		SNMP: SNMPConfig{
			Community: "public",
			Port:      161,
			TimeoutMs: 2000,
			Retries:   1,
		},
		Vendor: VendorConfig{
			UpdateURL:  "https://firmverup.brother.co.jp/kne_bh7_update_nt_ssl/ifax2.asmx/fileUpdate",
			TimeoutMs:  10000,
			MaxRetries: 3,
		},
		Upload: UploadConfig{
			Port:      9100,
			TimeoutMs: 30000,
		},
		History: HistoryConfig{Path: ""},
		Logging: LoggingConfig{Level: "info"},
	}
}

// SearchPaths returns an ordered list of locations to look for the
// config file, from system-wide to the working directory.
func SearchPaths(filename string) []string {
	var paths []string
	switch runtime.GOOS {
	case "windows":
		paths = append(paths, filepath.Join(os.Getenv("ProgramData"), "brother-printer-fwupd", filename))
	case "darwin":
		paths = append(paths, filepath.Join("/Library/Application Support", "brother-printer-fwupd", filename))
	default:
		paths = append(paths, filepath.Join("/etc/brother-printer-fwupd", filename))
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		switch runtime.GOOS {
		case "windows":
			paths = append(paths, filepath.Join(homeDir, "AppData", "Local", "brother-printer-fwupd", filename))
		case "darwin":
			paths = append(paths, filepath.Join(homeDir, "Library", "Application Support", "brother-printer-fwupd", filename))
		default:
			paths = append(paths, filepath.Join(homeDir, ".config", "brother-printer-fwupd", filename))
		}
	}
	paths = append(paths, filepath.Join(".", filename))
	return paths
}

// Load reads configuration from the given path, or from the first file
// found in SearchPaths when path is empty. A missing file yields the
// defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range SearchPaths("fwupd.toml") {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return cfg, nil
}

// applyEnvOverrides applies FWUPD_* environment variables on top of the
// file configuration.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("FWUPD_SNMP_COMMUNITY"); val != "" {
		cfg.SNMP.Community = val
	}
	if val := os.Getenv("FWUPD_SNMP_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil && port > 0 {
			cfg.SNMP.Port = port
		}
	}
	if val := os.Getenv("FWUPD_UPDATE_URL"); val != "" {
		cfg.Vendor.UpdateURL = val
	}
	if val := os.Getenv("FWUPD_FIRMWARE_DIR"); val != "" {
		cfg.FirmwareDir = val
	}
	if val := os.Getenv("FWUPD_HISTORY_PATH"); val != "" {
		cfg.History.Path = val
	}
	if val := os.Getenv("FWUPD_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
}
