package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromEnv(t *testing.T) {
	t.Run("required fields", func(t *testing.T) {
		t.Setenv("CAMPUSLINK_SUPABASE_URL", "")
		t.Setenv("CAMPUSLINK_ANON_KEY", "")

		if _, err := LoadFromEnv(); err == nil {
			t.Fatal("LoadFromEnv succeeded without required variables")
		}
	})

	t.Run("defaults", func(t *testing.T) {
		t.Setenv("CAMPUSLINK_SUPABASE_URL", "https://abc.supabase.co")
		t.Setenv("CAMPUSLINK_ANON_KEY", "anon-key")

		cfg, err := LoadFromEnv()
		if err != nil {
			t.Fatalf("LoadFromEnv failed: %v", err)
		}
		if cfg.DedupWindow != 500*time.Millisecond {
			t.Errorf("DedupWindow = %v, want 500ms", cfg.DedupWindow)
		}
		if cfg.CacheTTL != 5*time.Minute {
			t.Errorf("CacheTTL = %v, want 5m", cfg.CacheTTL)
		}
		if cfg.LogLevel != "info" {
			t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
		}
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("CAMPUSLINK_SUPABASE_URL", "https://abc.supabase.co")
		t.Setenv("CAMPUSLINK_ANON_KEY", "anon-key")
		t.Setenv("CAMPUSLINK_DEDUP_WINDOW_MS", "750")
		t.Setenv("CAMPUSLINK_CACHE_TTL_SECONDS", "60")
		t.Setenv("CAMPUSLINK_LOG_LEVEL", "debug")

		cfg, err := LoadFromEnv()
		if err != nil {
			t.Fatalf("LoadFromEnv failed: %v", err)
		}
		if cfg.DedupWindow != 750*time.Millisecond {
			t.Errorf("DedupWindow = %v, want 750ms", cfg.DedupWindow)
		}
		if cfg.CacheTTL != time.Minute {
			t.Errorf("CacheTTL = %v, want 1m", cfg.CacheTTL)
		}
		if cfg.LogLevel != "debug" {
			t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
		}
	})

	t.Run("invalid window", func(t *testing.T) {
		t.Setenv("CAMPUSLINK_SUPABASE_URL", "https://abc.supabase.co")
		t.Setenv("CAMPUSLINK_ANON_KEY", "anon-key")
		t.Setenv("CAMPUSLINK_DEDUP_WINDOW_MS", "not-a-number")

		if _, err := LoadFromEnv(); err == nil {
			t.Fatal("LoadFromEnv accepted a non-numeric dedup window")
		}
	})
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "appcore.yaml")
	data := []byte("supabase_url: https://abc.supabase.co\nanon_key: anon-key\nlog_level: warn\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.SupabaseURL != "https://abc.supabase.co" {
		t.Errorf("SupabaseURL = %q", cfg.SupabaseURL)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
	if cfg.DedupWindow != 500*time.Millisecond {
		t.Errorf("DedupWindow = %v, want default 500ms", cfg.DedupWindow)
	}

	t.Run("missing required field", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.yaml")
		if err := os.WriteFile(bad, []byte("log_level: warn\n"), 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}
		if _, err := LoadFromFile(bad); err == nil {
			t.Fatal("LoadFromFile accepted config without supabase_url")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadFromFile(filepath.Join(dir, "nope.yaml")); err == nil {
			t.Fatal("LoadFromFile succeeded on a missing file")
		}
	})
}
