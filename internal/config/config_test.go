package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dcgate.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

const validSecret = "0123456789abcdef0123456789abcdef"

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"server": {"addr": ":5600"},
		"auth": {"jwt_secret": "`+validSecret+`"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Storage.Driver != "sqlite" || cfg.Storage.DSN != "dcgate.db" {
		t.Errorf("storage defaults: %+v", cfg.Storage)
	}
	if cfg.Session.IdleTimeout.Duration != 30*time.Minute {
		t.Errorf("idle timeout default: %v", cfg.Session.IdleTimeout.Duration)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging defaults: %+v", cfg.Logging)
	}
	if cfg.Auth.JWTExpiry.Duration != 24*time.Hour {
		t.Errorf("jwt expiry default: %v", cfg.Auth.JWTExpiry.Duration)
	}
	if cfg.Server.PingInterval.Duration != 30*time.Second {
		t.Errorf("ping interval default: %v", cfg.Server.PingInterval.Duration)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing addr",
			content: `{"auth": {"jwt_secret": "` + validSecret + `"}}`,
			wantErr: "server.addr",
		},
		{
			name:    "missing secret",
			content: `{"server": {"addr": ":5600"}}`,
			wantErr: "jwt_secret is required",
		},
		{
			name:    "short secret",
			content: `{"server": {"addr": ":5600"}, "auth": {"jwt_secret": "short"}}`,
			wantErr: "at least 32 characters",
		},
		{
			name:    "tls without cert",
			content: `{"server": {"tls_addr": ":5601"}, "auth": {"jwt_secret": "` + validSecret + `"}}`,
			wantErr: "tls_cert",
		},
		{
			name:    "oidc without issuer",
			content: `{"server": {"addr": ":5600"}, "auth": {"provider": "oidc"}}`,
			wantErr: "oidc_issuer",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("got %v, want error containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestDurationUnmarshal(t *testing.T) {
	path := writeConfig(t, `{
		"server": {"addr": ":5600"},
		"auth": {"jwt_secret": "`+validSecret+`"},
		"session": {"idle_timeout": "15m", "reap_interval": 30}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Session.IdleTimeout.Duration != 15*time.Minute {
		t.Errorf("string duration: %v", cfg.Session.IdleTimeout.Duration)
	}
	if cfg.Session.ReapInterval.Duration != 30*time.Second {
		t.Errorf("numeric duration (seconds): %v", cfg.Session.ReapInterval.Duration)
	}
}

func TestGenerateRandomSecret(t *testing.T) {
	a, err := GenerateRandomSecret()
	if err != nil {
		t.Fatal(err)
	}
	b, err := GenerateRandomSecret()
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != 64 || a == b {
		t.Fatalf("secrets must be 64 hex chars and unique: %q %q", a, b)
	}
}
