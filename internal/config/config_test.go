// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// isolate points the config directory at a fresh temp dir and clears
// CONVO_* overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CONVO_HOME", dir)
	for _, k := range []string{
		"CONVO_BACKEND_URL", "CONVO_MODEL", "CONVO_BASE_PATH",
		"CONVO_STORAGE_DRIVER", "CONVO_STORAGE_PATH", "CONVO_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
	return dir
}

// TestConfig_ConcurrentAccess tests that Global() and SetGlobal() can be
// safely called concurrently.
// Run with: go test -race -v ./internal/config/
func TestConfig_ConcurrentAccess(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	var wg sync.WaitGroup

	// 50 writers using SetGlobal, 50 readers using Global
	for i := 0; i < 50; i++ {
		wg.Add(2)

		go func() {
			defer wg.Done()
			c := Default()
			c.Version = "test"
			SetGlobal(c)
		}()

		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}

	wg.Wait()
}

// TestConfig_GlobalInitialization tests that Global() loads the config on
// first access.
func TestConfig_GlobalInitialization(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	cfg := Global()
	if cfg == nil {
		t.Fatal("Global() returned nil")
	}
	if cfg.Version == "" {
		t.Error("Config version should not be empty")
	}
	if cfg.Backend.URL != DefaultBackendURL {
		t.Errorf("Backend URL = %q, want default", cfg.Backend.URL)
	}
}

// TestConfig_SetGlobalOverwrites tests that SetGlobal replaces the global config.
func TestConfig_SetGlobalOverwrites(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	_ = Global()

	custom := Default()
	custom.Backend.DefaultModel = "custom-model"
	SetGlobal(custom)

	if got := Global().Backend.DefaultModel; got != "custom-model" {
		t.Errorf("Expected model 'custom-model', got '%s'", got)
	}
}

// TestConfig_Default tests that Default() returns a valid config.
func TestConfig_Default(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should validate: %v", err)
	}
	if !cfg.Backend.IsDefault() {
		t.Error("Default backend should be the bundled server")
	}
	if cfg.Storage.Driver != DriverBolt {
		t.Errorf("Expected default driver 'bolt', got '%s'", cfg.Storage.Driver)
	}
	if cfg.Storage.PersistInterval() != 500*time.Millisecond {
		t.Errorf("PersistInterval = %v", cfg.Storage.PersistInterval())
	}
	if cfg.Liveness.BaseDelay() != 5*time.Second || cfg.Liveness.MaxDelay() != 5*time.Minute {
		t.Errorf("unexpected liveness delays %v / %v", cfg.Liveness.BaseDelay(), cfg.Liveness.MaxDelay())
	}
	if cfg.Liveness.FailureThreshold != 2 {
		t.Errorf("FailureThreshold = %d, want 2", cfg.Liveness.FailureThreshold)
	}
}

// TestConfig_Validate tests configuration validation.
func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		field   string
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "https backend", mutate: func(c *Config) { c.Backend.URL = "https://chat.example.com" }},
		{name: "file scheme", mutate: func(c *Config) { c.Backend.URL = "file:///etc/passwd" }, field: "backend.url", wantErr: true},
		{name: "no host", mutate: func(c *Config) { c.Backend.URL = "http://" }, field: "backend.url", wantErr: true},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage.Driver = "redis" }, field: "storage.driver", wantErr: true},
		{name: "relative base path", mutate: func(c *Config) { c.Location.BasePath = "chat" }, field: "location.base_path", wantErr: true},
		{name: "zero base delay", mutate: func(c *Config) { c.Liveness.BaseDelaySecs = 0 }, field: "liveness.base_delay_secs", wantErr: true},
		{name: "ceiling below base", mutate: func(c *Config) { c.Liveness.MaxDelaySecs = 1 }, field: "liveness.max_delay_secs", wantErr: true},
		{name: "zero threshold", mutate: func(c *Config) { c.Liveness.FailureThreshold = 0 }, field: "liveness.failure_threshold", wantErr: true},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "loud" }, field: "logging.level", wantErr: true},
		{name: "bad theme", mutate: func(c *Config) { c.UI.Theme = "neon" }, field: "ui.theme", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				return
			}
			var verrs ValidateErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidateErrors, got %T", err)
			}
			found := false
			for _, e := range verrs {
				if e.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("no error for field %s in %v", tt.field, verrs)
			}
		})
	}
}

func TestIsLocalhost(t *testing.T) {
	tests := map[string]bool{
		"localhost":       true,
		"127.0.0.1:38001": true,
		"[::1]":           true,
		"::1":             true,
		"127.1.2.3":       true,
		"example.com":     false,
		"10.0.0.1":        false,
	}
	for host, want := range tests {
		if got := IsLocalhost(host); got != want {
			t.Errorf("IsLocalhost(%q) = %v, want %v", host, got, want)
		}
	}
}

func TestBackendConfig_IsDefault(t *testing.T) {
	b := BackendConfig{URL: DefaultBackendURL + "/"}
	if !b.IsDefault() {
		t.Error("trailing slash should still be the default backend")
	}
	b.URL = "http://127.0.0.1:9000"
	if b.IsDefault() {
		t.Error("other port is not the default backend")
	}
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Storage.Driver != DriverBolt {
		t.Errorf("driver = %q", cfg.Storage.Driver)
	}
}

func TestLoad_TOMLOverridesDefaults(t *testing.T) {
	dir := isolate(t)

	data := `
[backend]
url = "https://chat.example.com"
default_model = "gpt-oss"

[storage]
driver = "SQLite"
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Backend.URL != "https://chat.example.com" {
		t.Errorf("URL = %q", cfg.Backend.URL)
	}
	if cfg.Backend.DefaultModel != "gpt-oss" {
		t.Errorf("model = %q", cfg.Backend.DefaultModel)
	}
	if cfg.Storage.Driver != DriverSQLite {
		t.Errorf("driver = %q, want normalized sqlite", cfg.Storage.Driver)
	}
	// untouched sections keep their defaults
	if cfg.Liveness.FailureThreshold != 2 {
		t.Errorf("FailureThreshold = %d", cfg.Liveness.FailureThreshold)
	}
	if cfg.Storage.PersistIntervalMs != 500 {
		t.Errorf("PersistIntervalMs = %d", cfg.Storage.PersistIntervalMs)
	}
}

func TestLoad_InvalidFileFallsBackWithError(t *testing.T) {
	dir := isolate(t)
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[backend]\nurl = \"ftp://x\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err == nil {
		t.Fatal("expected the validation error to be reported")
	}
	if cfg == nil || cfg.Backend.URL != DefaultBackendURL {
		t.Errorf("expected defaults alongside the error, got %+v", cfg)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("CONVO_BACKEND_URL", "http://10.0.0.2:8080")
	t.Setenv("CONVO_MODEL", "llama")
	t.Setenv("CONVO_BASE_PATH", "/chat")
	t.Setenv("CONVO_STORAGE_DRIVER", "memory")
	t.Setenv("CONVO_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Backend.URL != "http://10.0.0.2:8080" || cfg.Backend.IsDefault() {
		t.Errorf("URL = %q", cfg.Backend.URL)
	}
	if cfg.Backend.DefaultModel != "llama" {
		t.Errorf("model = %q", cfg.Backend.DefaultModel)
	}
	if cfg.Location.BasePath != "/chat" {
		t.Errorf("base path = %q", cfg.Location.BasePath)
	}
	if cfg.Storage.Driver != DriverMemory {
		t.Errorf("driver = %q", cfg.Storage.Driver)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "nested", "config.toml")

	cfg := Default()
	cfg.Backend.URL = "https://chat.example.com"
	cfg.Backend.BuiltinTools = []string{"code", "image"}
	cfg.Storage.Driver = DriverSQLite
	if err := SaveTOML(cfg, path); err != nil {
		t.Fatalf("SaveTOML() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("permissions = %o, want 0600", info.Mode().Perm())
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	if loaded.Backend.URL != cfg.Backend.URL || loaded.Storage.Driver != DriverSQLite {
		t.Errorf("round trip mismatch: %+v", loaded)
	}
	if len(loaded.Backend.BuiltinTools) != 2 {
		t.Errorf("builtin tools = %v", loaded.Backend.BuiltinTools)
	}
}

func TestStorageConfig_ResolvedPath(t *testing.T) {
	dir := isolate(t)

	path, err := StorageConfig{Driver: DriverBolt}.ResolvedPath()
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(dir, "convo.db") {
		t.Errorf("bolt path = %q", path)
	}

	path, _ = StorageConfig{Driver: DriverSQLite}.ResolvedPath()
	if path != filepath.Join(dir, "convo.sqlite") {
		t.Errorf("sqlite path = %q", path)
	}

	path, _ = StorageConfig{Path: "/var/lib/convo.db"}.ResolvedPath()
	if path != "/var/lib/convo.db" {
		t.Errorf("explicit path = %q", path)
	}
}

// TestConfig_GetSet tests Get and Set methods with dot notation.
func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	val, err := cfg.Get("storage.driver")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if val != "bolt" {
		t.Errorf("Get('storage.driver') = %v, want 'bolt'", val)
	}

	if err := cfg.Set("liveness.failure_threshold", "4"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if cfg.Liveness.FailureThreshold != 4 {
		t.Errorf("FailureThreshold = %d after Set", cfg.Liveness.FailureThreshold)
	}

	if err := cfg.Set("backend.builtin_tools", "code, image"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if len(cfg.Backend.BuiltinTools) != 2 || cfg.Backend.BuiltinTools[1] != "image" {
		t.Errorf("BuiltinTools = %v", cfg.Backend.BuiltinTools)
	}

	if err := cfg.Set("ui.markdown", "no"); err != nil {
		t.Fatal(err)
	}
	if cfg.UI.Markdown {
		t.Error("ui.markdown should be false")
	}

	if _, err := cfg.Get("invalid.key"); err == nil {
		t.Error("Get() with invalid key should return error")
	}
	if _, err := cfg.Get("backend.url.host"); err == nil {
		t.Error("Get() through a non-struct should return error")
	}
}

func TestGetAllKeys_Resolve(t *testing.T) {
	cfg := Default()
	for _, key := range GetAllKeys() {
		if _, err := cfg.Get(key); err != nil {
			t.Errorf("Get(%q) error = %v", key, err)
		}
	}
}

// TestConfig_Clone tests that Clone creates an independent copy.
func TestConfig_Clone(t *testing.T) {
	original := Default()
	original.Backend.BuiltinTools = []string{"code"}

	clone := original.Clone()
	clone.Backend.BuiltinTools[0] = "image"
	clone.Backend.URL = "https://other"

	if original.Backend.BuiltinTools[0] != "code" {
		t.Error("Clone should copy slices")
	}
	if original.Backend.URL != DefaultBackendURL {
		t.Error("Clone should create an independent copy")
	}
}
