package config

import (
	"testing"
	"time"
)

func TestLoadRequiresStoreURL(t *testing.T) {
	t.Setenv("STORE_BASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without STORE_BASE_URL")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_BASE_URL", "http://store.local:5000/")
	t.Setenv("PREDICTOR_BASE_URL", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StoreBaseURL != "http://store.local:5000" {
		t.Fatalf("trailing slash not trimmed: %q", cfg.StoreBaseURL)
	}
	if cfg.PredictorBaseURL != cfg.StoreBaseURL {
		t.Fatalf("predictor should default to store url, got %q", cfg.PredictorBaseURL)
	}
	if cfg.ScanCooldown != 10*time.Second {
		t.Fatalf("cooldown = %s", cfg.ScanCooldown)
	}
	if cfg.AttendancePollInterval != 3*time.Second || cfg.DashboardPollInterval != 5*time.Second {
		t.Fatalf("poll intervals = %s / %s", cfg.AttendancePollInterval, cfg.DashboardPollInterval)
	}
	if cfg.Heuristics != DefaultHeuristics() {
		t.Fatalf("heuristics = %+v", cfg.Heuristics)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BASE_URL", "http://store")
	t.Setenv("SCAN_COOLDOWN", "30")
	t.Setenv("HEURISTIC_ACTUAL_FACTOR", "0.8")
	t.Setenv("HEURISTIC_SHIFT_HOURS", "not-a-number")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ScanCooldown != 30*time.Second {
		t.Fatalf("integer seconds not honoured: %s", cfg.ScanCooldown)
	}
	if cfg.Heuristics.ActualFactor != 0.8 {
		t.Fatalf("actual factor = %v", cfg.Heuristics.ActualFactor)
	}
	if cfg.Heuristics.ShiftHours != 8 {
		t.Fatalf("bad value should fall back, got %v", cfg.Heuristics.ShiftHours)
	}
}
