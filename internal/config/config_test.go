package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DB_PATH", "HTTP_ADDRESS", "GRPC_ADDRESS", "JWT_SECRET", "API_KEY", "TOKEN_TTL", "BCRYPT_COST", "LOGIN_RATE_LIMIT", "LOGIN_RATE_BURST", "ROUTE_POLICY_FILE", "LOG_LEVEL"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	// Point at a file that does not exist so a stray .env is never read.
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadWithDefaults_Succeeds(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadWithDefaults()
	if err != nil {
		t.Fatalf("LoadWithDefaults: %v", err)
	}
	if cfg.HTTP.Address != ":3000" || cfg.Database.Path == "" || cfg.Auth.JWTSecret == "" || cfg.Auth.APIKey == "" {
		t.Fatalf("unexpected empty defaults: %+v", cfg)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Fatalf("token ttl = %s", cfg.Auth.TokenTTL)
	}
	if cfg.GRPC.Address != "" {
		t.Fatalf("grpc should be disabled by default")
	}
}

func TestLoad_RequiresSecrets(t *testing.T) {
	clearEnv(t)
	if _, err := Load(); err == nil {
		t.Fatalf("expected error when JWT_SECRET is not set")
	}
	t.Setenv("JWT_SECRET", "x")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error when API_KEY is not set")
	}
	t.Setenv("API_KEY", "k")
	if _, err := Load(); err != nil {
		t.Fatalf("Load with secrets set: %v", err)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("JWT_SECRET=fromfile\nAPI_KEY=filekey\nTOKEN_TTL=86400\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("ENV_FILE", path)
	t.Setenv("API_KEY", "fromenv")
	t.Cleanup(func() { os.Unsetenv("JWT_SECRET"); os.Unsetenv("TOKEN_TTL") })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.JWTSecret != "fromfile" {
		t.Fatalf("secret = %q", cfg.Auth.JWTSecret)
	}
	if cfg.Auth.APIKey != "fromenv" {
		t.Fatalf("existing env must win, got %q", cfg.Auth.APIKey)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Fatalf("ttl = %s", cfg.Auth.TokenTTL)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("BCRYPT_COST", "99")
	if _, err := LoadWithDefaults(); err == nil {
		t.Fatalf("expected bcrypt cost range error")
	}
	t.Setenv("BCRYPT_COST", "4")
	t.Setenv("TOKEN_TTL", "soon")
	if _, err := LoadWithDefaults(); err == nil {
		t.Fatalf("expected duration error")
	}
}

func TestString_MasksSecrets(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "super-secret")
	t.Setenv("API_KEY", "client-key")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := cfg.String()
	if strings.Contains(s, "super-secret") || strings.Contains(s, "client-key") {
		t.Fatalf("secrets leaked: %s", s)
	}
}
