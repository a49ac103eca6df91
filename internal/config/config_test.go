package config

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("VIDEOFLIX_MEDIA_ROOT", "")
	t.Setenv("VIDEOFLIX_REVOCATION_BACKEND", "")
	t.Setenv("VIDEOFLIX_EMAIL_HOST_USER", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AppPort != 8000 || cfg.AccessTokenTTL != 45*time.Minute || cfg.RefreshTokenTTL != 24*time.Hour {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.HLSRoot != filepath.Join("media", "hls") {
		t.Fatalf("expected hls root under media root, got %q", cfg.HLSRoot)
	}
	if cfg.Revocation.Backend != RevocationPostgres || cfg.CookieSameSite != http.SameSiteLaxMode {
		t.Fatalf("unexpected revocation or cookie defaults: %+v", cfg)
	}
	if cfg.Email.From != "no-reply@example.com" {
		t.Fatalf("unexpected sender %q", cfg.Email.From)
	}
	if cfg.Queue.WorkerName != "" || cfg.Queue.ClaimIdle != 2*time.Hour {
		t.Fatalf("unexpected worker defaults: %+v", cfg.Queue)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("VIDEOFLIX_PORT", "9001")
	t.Setenv("VIDEOFLIX_MEDIA_ROOT", "/srv/media")
	t.Setenv("VIDEOFLIX_ACCESS_TOKEN_TTL", "5m")
	t.Setenv("VIDEOFLIX_EMAIL_HOST_USER", "mailer@videoflix.test")
	t.Setenv("VIDEOFLIX_FRONTEND_BASE_URL", "https://videoflix.test/")
	t.Setenv("VIDEOFLIX_COOKIE_SAMESITE", "strict")
	t.Setenv("VIDEOFLIX_REVOCATION_BACKEND", "Memory")
	t.Setenv("VIDEOFLIX_WORKER_NAME", "worker-a")
	t.Setenv("VIDEOFLIX_WORKER_CLAIM_IDLE", "45m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AppPort != 9001 || cfg.AccessTokenTTL != 5*time.Minute {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.HLSRoot != filepath.Join("/srv/media", "hls") {
		t.Fatalf("unexpected hls root %q", cfg.HLSRoot)
	}
	if cfg.Email.From != "mailer@videoflix.test" {
		t.Fatalf("expected sender to follow smtp user, got %q", cfg.Email.From)
	}
	if cfg.Frontend.BaseURL != "https://videoflix.test" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Frontend.BaseURL)
	}
	if cfg.CookieSameSite != http.SameSiteStrictMode || cfg.Revocation.Backend != RevocationMemory {
		t.Fatalf("unexpected policy values: %+v", cfg)
	}
	if cfg.Queue.WorkerName != "worker-a" || cfg.Queue.ClaimIdle != 45*time.Minute {
		t.Fatalf("unexpected worker settings: %+v", cfg.Queue)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := map[string]map[string]string{
		"samesite":        {"VIDEOFLIX_COOKIE_SAMESITE": "sometimes"},
		"unknown backend": {"VIDEOFLIX_REVOCATION_BACKEND": "etcd"},
		"redis backend":   {"VIDEOFLIX_REVOCATION_BACKEND": "redis", "VIDEOFLIX_REDIS_URL": ""},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadReadsExtraEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "videoflix.env")
	if err := os.WriteFile(path, []byte("VIDEOFLIX_PORT=7070\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("VIDEOFLIX_PORT", "")
	t.Setenv("ENV_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AppPort != 7070 {
		t.Fatalf("expected port from env file, got %d", cfg.AppPort)
	}
}

func TestParseSameSite(t *testing.T) {
	if mode, err := ParseSameSite(" None "); err != nil || mode != http.SameSiteNoneMode {
		t.Fatalf("unexpected result %v %v", mode, err)
	}
	if _, err := ParseSameSite("bogus"); err == nil {
		t.Fatal("expected error")
	}
}
