// Package brand provides centralized branding constants for the tool.
// The identity is loaded from brand.json at compile time via go:embed so
// packaging scripts can read the same file.
package brand

import (
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"
)

//go:embed brand.json
var brandJSON []byte

// Brand holds all branding information.
type Brand struct {
	Name            string `json:"name"`
	LowerName       string `json:"lowerName"`
	Description     string `json:"description"`
	ConfigEnvPrefix string `json:"configEnvPrefix"`

	DefaultConfigDir string `json:"defaultConfigDir"`
	DefaultCacheDir  string `json:"defaultCacheDir"`
	DefaultLogDir    string `json:"defaultLogDir"`

	BinaryName      string `json:"binaryName"`
	ServiceName     string `json:"serviceName"`
	ConfigFileName  string `json:"configFileName"`
	WatchdogLogName string `json:"watchdogLogName"`
}

var b Brand

func init() {
	if err := json.Unmarshal(brandJSON, &b); err != nil {
		panic("failed to parse brand.json: " + err.Error())
	}

	Name = b.Name
	LowerName = b.LowerName
	Description = b.Description
	ConfigEnvPrefix = b.ConfigEnvPrefix
	DefaultConfigDir = b.DefaultConfigDir
	DefaultCacheDir = b.DefaultCacheDir
	DefaultLogDir = b.DefaultLogDir
	BinaryName = b.BinaryName
	ServiceName = b.ServiceName
	ConfigFileName = b.ConfigFileName
	WatchdogLogName = b.WatchdogLogName
}

// Exported variables for convenience.
var (
	Name            string
	LowerName       string
	Description     string
	ConfigEnvPrefix string

	DefaultConfigDir string
	DefaultCacheDir  string
	DefaultLogDir    string

	BinaryName      string
	ServiceName     string
	ConfigFileName  string
	WatchdogLogName string

	// Version is set at build time via -ldflags
	Version   = "dev"
	GitCommit = "unknown"
)

// Get returns the full Brand struct.
func Get() Brand {
	return b
}

// UserAgent returns a User-Agent string for HTTP requests.
func UserAgent(version string) string {
	if version == "" {
		version = "dev"
	}
	return Name + "/" + version
}

// DefaultConfigPath returns the full path of the default config file.
func DefaultConfigPath() string {
	return filepath.Join(GetConfigDir(), ConfigFileName)
}

// GetConfigDir returns the config directory, checking env vars first.
// Priority: GATEWALL_CONFIG_DIR > GATEWALL_PREFIX/config > DefaultConfigDir
func GetConfigDir() string {
	if dir := os.Getenv(ConfigEnvPrefix + "_CONFIG_DIR"); dir != "" {
		return dir
	}
	if prefix := os.Getenv(ConfigEnvPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, "config")
	}
	return DefaultConfigDir
}

// GetCacheDir returns the cache directory, checking env vars first.
func GetCacheDir() string {
	if dir := os.Getenv(ConfigEnvPrefix + "_CACHE_DIR"); dir != "" {
		return dir
	}
	if prefix := os.Getenv(ConfigEnvPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, "cache")
	}
	return DefaultCacheDir
}

// GetLogDir returns the log directory, checking env vars first.
func GetLogDir() string {
	if dir := os.Getenv(ConfigEnvPrefix + "_LOG_DIR"); dir != "" {
		return dir
	}
	if prefix := os.Getenv(ConfigEnvPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, "log")
	}
	return DefaultLogDir
}
