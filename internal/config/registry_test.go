package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestGetConfigDir(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG layout is linux only")
	}
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if configDir != "/tmp/xdg/husky" {
		t.Errorf("GetConfigDir() = %v, want /tmp/xdg/husky", configDir)
	}

	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	if filepath.Base(configPath) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", configPath)
	}

	logPath, err := GetLogPath()
	if err != nil {
		t.Fatalf("GetLogPath() error = %v", err)
	}
	if filepath.Dir(logPath) != configDir {
		t.Errorf("GetLogPath() = %v, want it inside %v", logPath, configDir)
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()

	if reg.Version != CurrentVersion {
		t.Errorf("NewRegistry().Version = %v, want %v", reg.Version, CurrentVersion)
	}
	if reg.Server == nil || reg.Server.Port != 8080 {
		t.Errorf("NewRegistry().Server = %+v, want localhost:8080", reg.Server)
	}
	if reg.Relays == nil {
		t.Error("NewRegistry().Relays should not be nil")
	}
	if reg.Preferences.SettleDelayMs != 500 {
		t.Errorf("SettleDelayMs = %v, want 500", reg.Preferences.SettleDelayMs)
	}
	if reg.Preferences.DrainIntervalMs != 50 {
		t.Errorf("DrainIntervalMs = %v, want 50", reg.Preferences.DrainIntervalMs)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	reg := NewRegistry()
	reg.Server = &Server{Name: "Office", Host: "chat.example.org", Port: 9000, Secret: "s3cret", TLS: true}
	reg.Preferences.DialTimeoutS = 5
	reg.RememberRelay("Lab", Relay{Host: "10.0.0.9", Port: 8080, Version: "v1"})

	if err := reg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
		t.Errorf("config mode = %v, want 0600", info.Mode().Perm())
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file should be gone after save")
	}

	data, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(data), "# Husky client configuration") {
		t.Error("saved file should start with the header comment")
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if *loaded.Server != *reg.Server {
		t.Errorf("Server = %+v, want %+v", loaded.Server, reg.Server)
	}
	if loaded.Preferences.DialTimeoutS != 5 {
		t.Errorf("DialTimeoutS = %v, want 5", loaded.Preferences.DialTimeoutS)
	}
	if lab := loaded.Relays["Lab"]; lab == nil || lab.Host != "10.0.0.9" || lab.LastSeen.IsZero() {
		t.Errorf("Relays[Lab] = %+v", lab)
	}
}

func TestLoadMissingFile(t *testing.T) {
	reg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if reg.Version != CurrentVersion || reg.Server == nil {
		t.Errorf("LoadFrom(missing) = %+v, want defaults", reg)
	}
}

func TestLoadFillsMissingSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("version: 1\n"), 0600); err != nil {
		t.Fatal(err)
	}

	reg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if reg.Server == nil || reg.Relays == nil || reg.Preferences == nil {
		t.Errorf("LoadFrom() left nil sections: %+v", reg)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantVer bool
	}{
		{"future version", "version: 2\n", true},
		{"missing version", "server:\n  host: x\n", true},
		{"invalid yaml", "version: [1\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}

			_, err := LoadFrom(path)
			if err == nil {
				t.Fatal("LoadFrom() should fail")
			}
			if got := errors.Is(err, ErrUnsupportedVersion); got != tt.wantVer {
				t.Errorf("errors.Is(err, ErrUnsupportedVersion) = %v, want %v (err: %v)", got, tt.wantVer, err)
			}
		})
	}
}

func TestRememberAndUseRelay(t *testing.T) {
	reg := NewRegistry()
	reg.Server.Secret = "keep-me"

	before := time.Now()
	reg.RememberRelay("Office", Relay{Host: "192.168.1.20", Port: 8443, HTTPPort: 8080, TLS: true})

	if got := reg.EnsureRelay("Office"); got.LastSeen.Before(before) {
		t.Errorf("LastSeen = %v, should be after %v", got.LastSeen, before)
	}

	if reg.UseRelay("Nowhere") {
		t.Error("UseRelay() of an unknown relay should fail")
	}
	if !reg.UseRelay("Office") {
		t.Fatal("UseRelay() should succeed")
	}

	want := Server{Name: "Office", Host: "192.168.1.20", Port: 8443, HTTPPort: 8080, Secret: "keep-me", TLS: true}
	if *reg.Server != want {
		t.Errorf("Server = %+v, want %+v", *reg.Server, want)
	}
}

func TestSessionOptions(t *testing.T) {
	reg := NewRegistry()
	reg.Server = &Server{Host: "relay", Port: 80, Secret: "k", PreflightPath: "/hello"}
	reg.Preferences = &Preferences{SettleDelayMs: 250, DrainIntervalMs: 20, DialTimeoutS: 3}

	opts := reg.SessionOptions()
	if opts.Endpoint.Host != "relay" || opts.Endpoint.Secret != "k" {
		t.Errorf("Endpoint = %+v", opts.Endpoint)
	}
	if got := opts.Endpoint.PreflightURL(); got != "http://relay:80/hello" {
		t.Errorf("PreflightURL() = %v", got)
	}
	if opts.SettleDelay != 250*time.Millisecond {
		t.Errorf("SettleDelay = %v", opts.SettleDelay)
	}
	if opts.DrainInterval != 20*time.Millisecond {
		t.Errorf("DrainInterval = %v", opts.DrainInterval)
	}
	if opts.DialTimeout != 3*time.Second {
		t.Errorf("DialTimeout = %v", opts.DialTimeout)
	}
	if reg.Server.DisplayName() != "relay" {
		t.Errorf("DisplayName() = %v, want host fallback", reg.Server.DisplayName())
	}
}
