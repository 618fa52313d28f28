package config

import (
	"os"
	"strings"
	"time"
)

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// AnalysisRetryEnabled turns on the background retrier for photos whose
// defect analysis failed. Off by default: a failed analysis is an
// accepted permanent gap unless ops opts in.
//
// Set via env:
// - ANALYSIS_RETRY_ENABLED=true
func AnalysisRetryEnabled() bool {
	return envBool("ANALYSIS_RETRY_ENABLED")
}

// AnalysisRetryInterval is how often the retrier re-submits failed photos.
//
// Set via env:
// - ANALYSIS_RETRY_INTERVAL_SECONDS=300
func AnalysisRetryInterval() time.Duration {
	n := intFromEnv("ANALYSIS_RETRY_INTERVAL_SECONDS", 300)
	if n <= 0 {
		n = 300
	}
	return time.Duration(n) * time.Second
}

// ChangeFeedEnabled turns on the outbox dispatcher that publishes row
// events to Pub/Sub so web clients can invalidate their caches.
//
// Set via env:
// - CHANGE_FEED_ENABLED=true
func ChangeFeedEnabled() bool {
	return envBool("CHANGE_FEED_ENABLED")
}
