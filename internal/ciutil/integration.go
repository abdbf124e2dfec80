package ciutil

import (
	"os"
	"testing"
)

// DatabaseURL returns the PostgreSQL URL for integration tests, or "".
func DatabaseURL() string {
	return GetEnvWithFallbacks([]string{EnvTestDatabaseURL, EnvDatabaseURL}, "", nil)
}

// RedisURL returns the Redis URL for integration tests, or "".
func RedisURL() string {
	return GetEnvWithFallbacks([]string{EnvTestRedisURL, EnvRedisURL}, "", nil)
}

// RequireURL returns url when set. Otherwise it skips the test, or fails
// it when integration backends are required in CI.
func RequireURL(t testing.TB, backend, url string) string {
	t.Helper()

	if url != "" {
		return url
	}
	if IsCI() && os.Getenv(EnvRequireIntegration) != "" {
		t.Fatalf("%s URL not configured but %s is set", backend, EnvRequireIntegration)
	}
	t.Skipf("%s URL not set, skipping %s integration test", backend, backend)
	return ""
}
