// Package cache centralises Redis key construction and TTL policy so every
// component agrees on naming and expiry.
package cache

import (
	"strings"
	"time"

	"pricefeed-api/internal/config"
)

// Namespace is the Redis key prefix for the pricefeed application.
const Namespace = "pricefeed"

// TTLSet normalises cache TTLs from config into durations.
type TTLSet struct {
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

// NewTTLSet converts config TTLs (in seconds) into durations.
func NewTTLSet(cfg config.CacheTTL) TTLSet {
	return TTLSet{
		Short:  durationOrDefault(cfg.Short, 10*time.Second),
		Medium: durationOrDefault(cfg.Medium, time.Minute),
		Long:   durationOrDefault(cfg.Long, 5*time.Minute),
	}
}

func durationOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds < 0 {
		return 0
	}
	if seconds == 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

func formatKey(parts ...string) string {
	values := make([]string, 0, len(parts)+1)
	values = append(values, Namespace)
	for _, part := range parts {
		clean := strings.TrimSpace(part)
		if clean == "" {
			continue
		}
		values = append(values, clean)
	}
	return strings.Join(values, ":")
}

// SnapshotLatestKey holds the most recent durably written snapshot entry.
func SnapshotLatestKey() string {
	return formatKey("snapshot", "latest")
}

// SnapshotLatestTTL bounds staleness of the latest-snapshot cache. Kept short
// because the pipeline rewrites it every cycle.
func SnapshotLatestTTL(ttl TTLSet) time.Duration {
	return ttl.Short
}
