package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries the process-level settings, read once at startup.
type Config struct {
	Port        string
	ReposDir    string
	StoreDir    string
	GeminiModel string
	GitHubToken string
	MaxSteps    int
	CloneGrace  time.Duration
	// SubscriberWait bounds how long background producers wait for a
	// first event subscriber before emitting.
	SubscriberWait time.Duration
}

// Load reads configuration from the environment with sensible defaults.
func Load() Config {
	return Config{
		Port:           NormalizeAddr(getenv("PORT", ":8080")),
		ReposDir:       getenv("REPOS_DIR", "repos"),
		StoreDir:       getenv("STORE_DIR", "data"),
		GeminiModel:    getenv("GEMINI_MODEL", "gemini-2.5-flash"),
		GitHubToken:    os.Getenv("GITHUB_TOKEN"),
		MaxSteps:       getint("EXPLORE_MAX_STEPS", 12),
		CloneGrace:     getduration("CLONE_GRACE", 30*time.Second),
		SubscriberWait: getduration("SUBSCRIBER_WAIT", 2*time.Second),
	}
}

// NormalizeAddr turns a bare port ("8080") into a listen address (":8080");
// values already carrying a host or colon pass through unchanged.
func NormalizeAddr(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" || strings.Contains(addr, ":") {
		return addr
	}
	return ":" + addr
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
