package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveBindAddress(t *testing.T) {
	tests := []struct {
		name     string
		addr     string
		wantIP   string
		wantPort int
		wantErr  bool
	}{
		{name: "bare ipv4", addr: "0.0.0.0", wantIP: "0.0.0.0", wantPort: DefaultPort},
		{name: "ipv4 with port", addr: "127.0.0.1:5000", wantIP: "127.0.0.1", wantPort: 5000},
		{name: "default port explicit", addr: "10.0.0.1:41001", wantIP: "10.0.0.1", wantPort: 41001},
		{name: "empty", addr: "", wantErr: true},
		{name: "hostname", addr: "example.com", wantErr: true},
		{name: "ipv6", addr: "::1", wantErr: true},
		{name: "bad port", addr: "0.0.0.0:notaport", wantErr: true},
		{name: "port out of range", addr: "0.0.0.0:70000", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveBindAddress(tt.addr)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.addr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveBindAddress(%q) failed: %v", tt.addr, err)
			}
			if got.IP.String() != tt.wantIP || got.Port != tt.wantPort {
				t.Errorf("got %v, want %s:%d", got, tt.wantIP, tt.wantPort)
			}
		})
	}
}

func TestApplyArgs(t *testing.T) {
	t.Run("no args keeps defaults", func(t *testing.T) {
		cfg := Default()
		if err := cfg.ApplyArgs(nil); err != nil {
			t.Fatalf("ApplyArgs failed: %v", err)
		}
		if !cfg.Standalone() {
			t.Error("expected standalone mode with no args")
		}
	})

	t.Run("address only", func(t *testing.T) {
		cfg := Default()
		if err := cfg.ApplyArgs([]string{"0.0.0.0:5000"}); err != nil {
			t.Fatalf("ApplyArgs failed: %v", err)
		}
		if cfg.BindAddress != "0.0.0.0:5000" || !cfg.Standalone() {
			t.Errorf("unexpected config: %+v", cfg)
		}
	})

	t.Run("full central setup", func(t *testing.T) {
		cfg := Default()
		err := cfg.ApplyArgs([]string{"0.0.0.0", "http://central.example/", "pw"})
		if err != nil {
			t.Fatalf("ApplyArgs failed: %v", err)
		}
		if cfg.CentralURL != "http://central.example/" || cfg.CentralPassword != "pw" {
			t.Errorf("unexpected config: %+v", cfg)
		}
	})

	t.Run("missing password", func(t *testing.T) {
		cfg := Default()
		if err := cfg.ApplyArgs([]string{"0.0.0.0", "http://central.example/"}); err == nil {
			t.Fatal("expected error for missing central password")
		}
	})
}

func TestApplyEnv_Precedence(t *testing.T) {
	t.Setenv(EnvBindAddress, "10.1.2.3:9000")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvNoFileLog, "1")

	cfg := Default()
	cfg.BindAddress = "0.0.0.0"
	cfg.LogFile = "relay.log"
	cfg.ApplyEnv()

	if cfg.BindAddress != "10.1.2.3:9000" {
		t.Errorf("env bind address should win, got %q", cfg.BindAddress)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("env log level should win, got %q", cfg.LogLevel)
	}
	if cfg.LogFile != "" {
		t.Errorf("RELAY_NO_FILE_LOG should clear the log file, got %q", cfg.LogFile)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "bad address", mutate: func(c *Config) { c.BindAddress = "nope" }, wantErr: true},
		{name: "bad level", mutate: func(c *Config) { c.LogLevel = "verbose" }, wantErr: true},
		{name: "bad format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: true},
		{name: "central without password", mutate: func(c *Config) { c.CentralURL = "http://x/" }, wantErr: true},
		{name: "central with password", mutate: func(c *Config) {
			c.CentralURL = "http://x/"
			c.CentralPassword = "pw"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
bind_address: 127.0.0.1:5100
central_url: http://central.example/
central_password: secret
log_level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.BindAddress != "127.0.0.1:5100" || cfg.CentralPassword != "secret" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("defaults should fill unset fields, got format %q", cfg.LogFormat)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
