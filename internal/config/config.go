package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, loaded from environment
// variables.
type Config struct {
	// Analysis service connection
	APIBaseURL  string
	HTTPTimeout time.Duration
	PollTimeout time.Duration // long-poll budget per request

	// Transport tuning
	SkipStep     time.Duration // skip forward/backward increment
	EndTolerance time.Duration // natural-end detection window

	// UI
	FrameInterval time.Duration // position poll rate

	// Preference store
	PrefsPath string
}

// Load reads configuration with sane defaults. A .env file in the
// working directory is honored if present.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		APIBaseURL:    envStr("STEMGRID_API_URL", "http://localhost:8000"),
		HTTPTimeout:   envDur("STEMGRID_HTTP_TIMEOUT", 30*time.Second),
		PollTimeout:   envDur("STEMGRID_POLL_TIMEOUT", 35*time.Second),
		SkipStep:      envDur("STEMGRID_SKIP_STEP", 10*time.Second),
		EndTolerance:  envDur("STEMGRID_END_TOLERANCE", 100*time.Millisecond),
		FrameInterval: envDur("STEMGRID_FRAME_INTERVAL", 33*time.Millisecond),
		PrefsPath:     envStr("STEMGRID_PREFS_PATH", defaultPrefsPath()),
	}
}

func defaultPrefsPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "stemgrid", "prefs.json")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./prefs.json"
	}
	return filepath.Join(home, ".config", "stemgrid", "prefs.json")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return fallback
}
