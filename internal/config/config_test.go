package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DEVFOLIO_ADDR", "")
	t.Setenv("DEVFOLIO_PG_DSN", "")
	t.Setenv("DEVFOLIO_AUTH_SECRET", "test-secret")
	t.Setenv("DEVFOLIO_AUTH_ISSUER", "")
	t.Setenv("DEVFOLIO_ACCESS_TTL", "")
	t.Setenv("DEVFOLIO_REFRESH_TTL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("default addr = %s", cfg.Addr)
	}
	if cfg.AccessTTL != 30*time.Minute || cfg.RefreshTTL != 7*24*time.Hour {
		t.Fatalf("default TTLs = %v / %v", cfg.AccessTTL, cfg.RefreshTTL)
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("DEVFOLIO_AUTH_SECRET", "")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "DEVFOLIO_AUTH_SECRET") {
		t.Fatalf("expected missing-secret error, got %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DEVFOLIO_ADDR", ":9090")
	t.Setenv("DEVFOLIO_AUTH_SECRET", "test-secret")
	t.Setenv("DEVFOLIO_ACCESS_TTL", "15m")
	t.Setenv("DEVFOLIO_REFRESH_TTL", "48h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9090" || cfg.AccessTTL != 15*time.Minute || cfg.RefreshTTL != 48*time.Hour {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoadRejectsBadTTL(t *testing.T) {
	t.Setenv("DEVFOLIO_AUTH_SECRET", "test-secret")
	for _, v := range []string{"banana", "-5m", "0s"} {
		t.Setenv("DEVFOLIO_ACCESS_TTL", v)
		if _, err := Load(); err == nil {
			t.Fatalf("TTL %q accepted", v)
		}
	}
}
