// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries every tunable the service reads at startup. Loaded once in
// cmd and passed down explicitly.
type Config struct {
	// Storage.
	StorageDriver string // memory|sqlite|postgres
	SQLiteDir     string
	PostgresDSN   string

	// Snapshots.
	BlobDriver string // fs|s3|memory
	BlobFSRoot string

	// External task runner.
	RunnerURL string
	PollDelay time.Duration

	// Workstation shape.
	Channels   int
	StageNames []string

	// Startup behavior.
	NoLoadSamples bool
	NoLoadLayout  bool

	// HTTP surface.
	ListenAddr string
}

// Load reads the LH_* environment variables, applying defaults for any that
// are unset.
func Load() Config {
	return Config{
		StorageDriver: envOr("LH_STORAGE_DRIVER", "sqlite"),
		SQLiteDir:     envOr("LH_SQLITE_DIR", "./logs"),
		PostgresDSN:   os.Getenv("LH_POSTGRES_DSN"),
		BlobDriver:    envOr("LH_BLOB_DRIVER", "fs"),
		BlobFSRoot:    envOr("LH_BLOB_FS_ROOT", "./persistent_state"),
		RunnerURL:     envOr("LH_RUNNER_URL", "http://localhost:5004"),
		PollDelay:     envDuration("LH_POLL_DELAY", 5*time.Second),
		Channels:      envInt("LH_CHANNELS", 1),
		StageNames:    envList("LH_STAGE_NAMES", []string{"prep", "inject"}),
		NoLoadSamples: envBool("LH_NOLOAD_SAMPLES"),
		NoLoadLayout:  envBool("LH_NOLOAD_LAYOUT"),
		ListenAddr:    envOr("LH_LISTEN_ADDR", ":5001"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string) bool {
	return strings.EqualFold(os.Getenv(key), "true") || os.Getenv(key) == "1"
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	// Accept bare seconds for compatibility with older deployments.
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(n * float64(time.Second))
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
