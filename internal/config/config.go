package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Heuristics are the business multipliers used by the production aggregator.
// None of them is derived from data.
type Heuristics struct {
	ActualFactor        float64
	TargetFactor        float64
	ShiftHours          float64
	StaffedEfficiency   float64
	UnstaffedEfficiency float64
	FallbackMultiplier  float64
}

// DefaultHeuristics mirrors the values the floor dashboard has always used.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		ActualFactor:        0.92,
		TargetFactor:        1.1,
		ShiftHours:          8,
		StaffedEfficiency:   0.9,
		UnstaffedEfficiency: 0.7,
		FallbackMultiplier:  2,
	}
}

// Config holds application runtime configuration.
type Config struct {
	Env                    string
	HTTPPort               string
	StoreBaseURL           string
	PredictorBaseURL       string
	DatabaseURL            string
	DBMaxConns             int
	ScanLogRetention       time.Duration
	JWTSecret              string
	ScanCooldown           time.Duration
	CooldownMaxEntries     int
	AttendancePollInterval time.Duration
	DashboardPollInterval  time.Duration
	FetchTimeout           time.Duration
	ScanRateLimit          int
	Heuristics             Heuristics
	ReadTimeout            time.Duration
	WriteTimeout           time.Duration
	IdleTimeout            time.Duration
	ShutdownTimeout        time.Duration
}

// Load reads environment variables and .env (if present).
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:                    getEnv("APP_ENV", "development"),
		HTTPPort:               getEnv("HTTP_PORT", "8080"),
		StoreBaseURL:           strings.TrimRight(os.Getenv("STORE_BASE_URL"), "/"),
		PredictorBaseURL:       strings.TrimRight(os.Getenv("PREDICTOR_BASE_URL"), "/"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		DBMaxConns:             getInt("DB_MAX_CONNS", 4),
		ScanLogRetention:       getDuration("SCAN_LOG_RETENTION", 30*24*time.Hour),
		JWTSecret:              os.Getenv("JWT_SECRET"),
		ScanCooldown:           getDuration("SCAN_COOLDOWN", 10*time.Second),
		CooldownMaxEntries:     getInt("COOLDOWN_MAX_ENTRIES", 1024),
		AttendancePollInterval: getDuration("ATTENDANCE_POLL_INTERVAL", 3*time.Second),
		DashboardPollInterval:  getDuration("DASHBOARD_POLL_INTERVAL", 5*time.Second),
		FetchTimeout:           getDuration("FETCH_TIMEOUT", 10*time.Second),
		ScanRateLimit:          getInt("SCAN_RATE_LIMIT", 120),
		Heuristics:             HeuristicsFromEnv(),
		ReadTimeout:            getDuration("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:           getDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:            getDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:        getDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	if cfg.StoreBaseURL == "" {
		return cfg, errors.New("STORE_BASE_URL is required")
	}
	if cfg.PredictorBaseURL == "" {
		cfg.PredictorBaseURL = cfg.StoreBaseURL
	}
	if cfg.ScanCooldown <= 0 {
		return cfg, errors.New("SCAN_COOLDOWN must be positive")
	}
	if cfg.AttendancePollInterval <= 0 || cfg.DashboardPollInterval <= 0 {
		return cfg, errors.New("poll intervals must be positive")
	}
	return cfg, nil
}

// HeuristicsFromEnv applies HEURISTIC_* overrides to the defaults.
func HeuristicsFromEnv() Heuristics {
	def := DefaultHeuristics()
	return Heuristics{
		ActualFactor:        getFloat("HEURISTIC_ACTUAL_FACTOR", def.ActualFactor),
		TargetFactor:        getFloat("HEURISTIC_TARGET_FACTOR", def.TargetFactor),
		ShiftHours:          getFloat("HEURISTIC_SHIFT_HOURS", def.ShiftHours),
		StaffedEfficiency:   getFloat("HEURISTIC_STAFFED_EFFICIENCY", def.StaffedEfficiency),
		UnstaffedEfficiency: getFloat("HEURISTIC_UNSTAFFED_EFFICIENCY", def.UnstaffedEfficiency),
		FallbackMultiplier:  getFloat("HEURISTIC_FALLBACK_MULTIPLIER", def.FallbackMultiplier),
	}
}

func getEnv(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		// Support seconds as integer without suffix.
		if secs, convErr := strconv.Atoi(val); convErr == nil {
			return time.Duration(secs) * time.Second
		}
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return f
}
