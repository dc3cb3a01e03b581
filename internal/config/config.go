// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/convo/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete convo configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Backend is the chat server the client talks to.
	Backend BackendConfig `toml:"backend" json:"backend"`

	// Location maps conversation ids to surface locations.
	Location LocationConfig `toml:"location" json:"location"`

	// Storage is the per-user local store.
	Storage StorageConfig `toml:"storage" json:"storage"`

	// Liveness controls reachability probing of a non-default backend.
	Liveness LivenessConfig `toml:"liveness" json:"liveness"`

	Logging LoggingConfig `toml:"logging" json:"logging"`

	UI UIConfig `toml:"ui" json:"ui"`
}

// BackendConfig contains chat backend settings.
type BackendConfig struct {
	// URL is the backend base URL. The default is the bundled local server.
	URL string `toml:"url" json:"url"`
	// DefaultModel is sent with every request unless overridden.
	DefaultModel string `toml:"default_model" json:"default_model"`
	// WebSearch enables the backend's web search tool.
	WebSearch bool `toml:"web_search" json:"web_search"`
	// BuiltinTools lists backend tool ids to enable.
	BuiltinTools []string `toml:"builtin_tools" json:"builtin_tools"`
	// TimeoutSecs bounds a whole streamed reply (0 = no limit).
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
}

// LocationConfig contains conversation location settings.
type LocationConfig struct {
	// BasePath is stripped from locations before they become conversation ids.
	BasePath string `toml:"base_path" json:"base_path"`
	// StartPath is the location a new surface opens at.
	StartPath string `toml:"start_path" json:"start_path"`
}

// StorageConfig contains local store settings.
type StorageConfig struct {
	// Driver is the store implementation: "bolt", "sqlite" or "memory".
	Driver string `toml:"driver" json:"driver"`
	// Path is the store file (empty = inside the config directory).
	Path string `toml:"path" json:"path"`
	// PersistIntervalMs rate-limits transcript writes while a reply streams.
	PersistIntervalMs int `toml:"persist_interval_ms" json:"persist_interval_ms"`
	// Watch delivers writes made by other processes to open surfaces.
	Watch bool `toml:"watch" json:"watch"`
}

// LivenessConfig contains backend reachability probing settings.
type LivenessConfig struct {
	BaseDelaySecs    int `toml:"base_delay_secs" json:"base_delay_secs"`
	MaxDelaySecs     int `toml:"max_delay_secs" json:"max_delay_secs"`
	TimeoutSecs      int `toml:"timeout_secs" json:"timeout_secs"`
	FailureThreshold int `toml:"failure_threshold" json:"failure_threshold"`
}

// LoggingConfig contains log output settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level" json:"level"`
	// Format is "json" or "console".
	Format string `toml:"format" json:"format"`
	// File is the log file (empty = inside the config directory).
	File       string `toml:"file" json:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days"`
	Compress   bool   `toml:"compress" json:"compress"`
	// Console also writes log lines to stderr.
	Console bool `toml:"console" json:"console"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme" json:"theme"`
	// Markdown renders assistant text with glamour
	Markdown bool `toml:"markdown" json:"markdown"`
	// SidebarWidth is the conversation list width in cells
	SidebarWidth int `toml:"sidebar_width" json:"sidebar_width"`
}

// DefaultBackendURL is the bundled local server.
const DefaultBackendURL = "http://127.0.0.1:38001"

// Storage drivers.
const (
	DriverBolt   = "bolt"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Backend: BackendConfig{
			URL:         DefaultBackendURL,
			TimeoutSecs: 0,
		},

		Location: LocationConfig{
			BasePath:  "",
			StartPath: "/",
		},

		Storage: StorageConfig{
			Driver:            DriverBolt,
			PersistIntervalMs: 500,
			Watch:             true,
		},

		Liveness: LivenessConfig{
			BaseDelaySecs:    5,
			MaxDelaySecs:     300, // 5 minutes
			TimeoutSecs:      5,
			FailureThreshold: 2,
		},

		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Compress:   true,
		},

		UI: UIConfig{
			Theme:        "dark",
			Markdown:     true,
			SidebarWidth: 28,
		},
	}
}

// =============================================================================
// DERIVED VALUES
// =============================================================================

// Timeout returns the per-reply timeout (0 = none).
func (b BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSecs) * time.Second
}

// IsDefault reports whether URL names the bundled local server.
func (b BackendConfig) IsDefault() bool {
	return strings.TrimRight(b.URL, "/") == DefaultBackendURL
}

// PersistInterval returns the transcript write interval.
func (s StorageConfig) PersistInterval() time.Duration {
	return time.Duration(s.PersistIntervalMs) * time.Millisecond
}

// ResolvedPath returns the store file, defaulting into the config directory.
func (s StorageConfig) ResolvedPath() (string, error) {
	if s.Path != "" {
		return expandHome(s.Path)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	name := "convo.db"
	if s.Driver == DriverSQLite {
		name = "convo.sqlite"
	}
	return filepath.Join(dir, name), nil
}

func (l LivenessConfig) BaseDelay() time.Duration {
	return time.Duration(l.BaseDelaySecs) * time.Second
}

func (l LivenessConfig) MaxDelay() time.Duration {
	return time.Duration(l.MaxDelaySecs) * time.Second
}

func (l LivenessConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutSecs) * time.Second
}

// ResolvedFile returns the log file, defaulting into the config directory.
func (l LoggingConfig) ResolvedFile() (string, error) {
	if l.File != "" {
		return expandHome(l.File)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "logs", "convo.log"), nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the convo configuration directory path. CONVO_HOME
// overrides the default ~/.convo.
func ConfigDir() (string, error) {
	if dir := os.Getenv("CONVO_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".convo"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	var loadErr error

	for _, pathFn := range []func() (string, error){ConfigPathTOML, ConfigPathJSON} {
		path, err := pathFn()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		cfg, err := LoadFromPath(path)
		if err != nil {
			if loadErr == nil {
				loadErr = err
			}
			continue
		}
		return cfg, nil
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Return defaults (with any load error for informational purposes)
	return cfg, loadErr
}

// LoadTOML loads configuration from a TOML file.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON loads configuration from a JSON file.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file path with full
// validation. Keys missing from the file keep their default values.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SetDefaults fills empty values that have no meaningful zero.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.Backend.URL == "" {
		c.Backend.URL = defaults.Backend.URL
	}
	if c.Location.StartPath == "" {
		c.Location.StartPath = defaults.Location.StartPath
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = defaults.Storage.Driver
	}
	c.Storage.Driver = strings.ToLower(c.Storage.Driver)
	if c.Storage.Driver == "bbolt" {
		c.Storage.Driver = DriverBolt
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaults.Logging.Format
	}
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
	if c.UI.SidebarWidth == 0 {
		c.UI.SidebarWidth = defaults.UI.SidebarWidth
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML atomically writes the configuration to a TOML file.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# convo configuration file")
	fmt.Fprintln(&buf, "# Generated by convo - edit with care")
	fmt.Fprintln(&buf, "")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON atomically writes the configuration to a JSON file.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// ErrInvalidURLScheme is returned for backend URLs that are not http or https.
var ErrInvalidURLScheme = errors.New("URL scheme must be http or https")

// ValidateBackendURL checks that rawURL is an absolute http(s) URL with a host.
func ValidateBackendURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	// file://, javascript: and friends are never a chat backend
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrInvalidURLScheme
	}
	if parsed.Host == "" {
		return errors.New("URL has no host")
	}
	return nil
}

// IsLocalhost reports whether host (optionally with a port) is a loopback
// address or "localhost".
func IsLocalhost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.Trim(host, "[]"))
	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	// Backend
	if err := ValidateBackendURL(c.Backend.URL); err != nil {
		errs = append(errs, ValidationError{
			Field:   "backend.url",
			Message: fmt.Sprintf("invalid backend URL '%s': %v", c.Backend.URL, err),
		})
	}
	if c.Backend.TimeoutSecs < 0 {
		errs = append(errs, ValidationError{
			Field:   "backend.timeout_secs",
			Message: "must not be negative",
		})
	}

	// Location
	if c.Location.BasePath != "" && !strings.HasPrefix(c.Location.BasePath, "/") {
		errs = append(errs, ValidationError{
			Field:   "location.base_path",
			Message: fmt.Sprintf("'%s' must start with '/'", c.Location.BasePath),
		})
	}
	if !strings.HasPrefix(c.Location.StartPath, "/") && !strings.Contains(c.Location.StartPath, "://") {
		errs = append(errs, ValidationError{
			Field:   "location.start_path",
			Message: fmt.Sprintf("'%s' must be a path or URL", c.Location.StartPath),
		})
	}

	// Storage
	switch c.Storage.Driver {
	case DriverBolt, DriverSQLite, DriverMemory:
	default:
		errs = append(errs, ValidationError{
			Field:   "storage.driver",
			Message: fmt.Sprintf("invalid driver '%s', must be one of: bolt, sqlite, memory", c.Storage.Driver),
		})
	}
	if c.Storage.PersistIntervalMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "storage.persist_interval_ms",
			Message: "must not be negative",
		})
	}

	// Liveness
	if c.Liveness.BaseDelaySecs <= 0 {
		errs = append(errs, ValidationError{
			Field:   "liveness.base_delay_secs",
			Message: "must be positive",
		})
	}
	if c.Liveness.MaxDelaySecs < c.Liveness.BaseDelaySecs {
		errs = append(errs, ValidationError{
			Field:   "liveness.max_delay_secs",
			Message: fmt.Sprintf("must be at least base_delay_secs (%d)", c.Liveness.BaseDelaySecs),
		})
	}
	if c.Liveness.TimeoutSecs <= 0 {
		errs = append(errs, ValidationError{
			Field:   "liveness.timeout_secs",
			Message: "must be positive",
		})
	}
	if c.Liveness.FailureThreshold < 1 {
		errs = append(errs, ValidationError{
			Field:   "liveness.failure_threshold",
			Message: "must be at least 1",
		})
	}

	// Logging
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Logging.Level),
		})
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid format '%s', must be one of: json, console", c.Logging.Format),
		})
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 || c.Logging.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging",
			Message: "rotation limits must not be negative",
		})
	}

	// UI
	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}
	if c.UI.SidebarWidth < 0 {
		errs = append(errs, ValidationError{
			Field:   "ui.sidebar_width",
			Message: "must not be negative",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported variables:
//   - CONVO_BACKEND_URL: overrides backend.url
//   - CONVO_MODEL: overrides backend.default_model
//   - CONVO_BASE_PATH: overrides location.base_path
//   - CONVO_STORAGE_DRIVER: overrides storage.driver
//   - CONVO_STORAGE_PATH: overrides storage.path
//   - CONVO_LOG_LEVEL: overrides logging.level
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("CONVO_BACKEND_URL"); v != "" {
		c.Backend.URL = v
	}
	if v := os.Getenv("CONVO_MODEL"); v != "" {
		c.Backend.DefaultModel = v
	}
	if v := os.Getenv("CONVO_BASE_PATH"); v != "" {
		c.Location.BasePath = v
	}
	if v := os.Getenv("CONVO_STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("CONVO_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("CONVO_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "backend.url").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "backend.url").
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Bool:
			lower := strings.ToLower(strVal)
			field.SetBool(lower == "1" || lower == "true" || lower == "yes")
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				var items []string
				for _, item := range strings.Split(strVal, ",") {
					if item = strings.TrimSpace(item); item != "" {
						items = append(items, item)
					}
				}
				field.Set(reflect.ValueOf(items))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"version",
		"backend.url",
		"backend.default_model",
		"backend.web_search",
		"backend.builtin_tools",
		"backend.timeout_secs",
		"location.base_path",
		"location.start_path",
		"storage.driver",
		"storage.path",
		"storage.persist_interval_ms",
		"storage.watch",
		"liveness.base_delay_secs",
		"liveness.max_delay_secs",
		"liveness.timeout_secs",
		"liveness.failure_threshold",
		"logging.level",
		"logging.format",
		"logging.file",
		"logging.max_size_mb",
		"logging.max_backups",
		"logging.max_age_days",
		"logging.compress",
		"logging.console",
		"ui.theme",
		"ui.markdown",
		"ui.sidebar_width",
	}
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Backend.BuiltinTools != nil {
		clone.Backend.BuiltinTools = append([]string(nil), c.Backend.BuiltinTools...)
	}
	return &clone
}

// String returns the configuration as TOML.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return buf.String()
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		if cfg == nil {
			cfg = Default()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
