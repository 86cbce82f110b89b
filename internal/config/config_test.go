package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr want :8080, got %q", cfg.HTTPAddr)
	}
	if cfg.JWTIssuer != "painel-auth" {
		t.Errorf("JWTIssuer want painel-auth, got %q", cfg.JWTIssuer)
	}
	if cfg.JWTAudience != "painel-api" {
		t.Errorf("JWTAudience want painel-api, got %q", cfg.JWTAudience)
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost want 12, got %d", cfg.BcryptCost)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("DATABASE_URL", "postgres://localhost/painel")
	t.Setenv("APP_ENV", "production")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Errorf("HTTPAddr want :9999, got %q", cfg.HTTPAddr)
	}
	if cfg.DatabaseURL != "postgres://localhost/painel" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.Env != "production" {
		t.Errorf("Env want production, got %q", cfg.Env)
	}
}

func TestLoad_BcryptCostBounds(t *testing.T) {
	tests := []struct {
		name    string
		cost    string
		wantErr bool
	}{
		{"too low", "3", true},
		{"min", "4", false},
		{"default-ish", "12", false},
		{"max", "31", false},
		{"too high", "32", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("BCRYPT_COST", tc.cost)
			_, err := Load()
			if tc.wantErr && err == nil {
				t.Fatalf("Load with BCRYPT_COST=%s should fail", tc.cost)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("Load with BCRYPT_COST=%s: %v", tc.cost, err)
			}
		})
	}
}

func TestTTLHelpers(t *testing.T) {
	cfg := &Config{JWTAccessTTL: "30m", JWTRefreshTTL: "48h"}
	if got := cfg.AccessTTL(); got != 30*time.Minute {
		t.Errorf("AccessTTL = %v", got)
	}
	if got := cfg.RefreshTTL(); got != 48*time.Hour {
		t.Errorf("RefreshTTL = %v", got)
	}
}

func TestTTLHelpers_Invalid(t *testing.T) {
	cfg := &Config{JWTAccessTTL: "bogus", JWTRefreshTTL: "-1h"}
	if got := cfg.AccessTTL(); got != 15*time.Minute {
		t.Errorf("AccessTTL fallback want 15m, got %v", got)
	}
	if got := cfg.RefreshTTL(); got != 168*time.Hour {
		t.Errorf("RefreshTTL fallback want 168h, got %v", got)
	}
}
