package ciutil

import (
	"log/slog"
	"os"

	"github.com/phrazzld/taskcore/internal/redact"
)

// Environment variable names used across the codebase.
const (
	// CI environment detection variables
	EnvCI            = "CI"
	EnvGitHubActions = "GITHUB_ACTIONS"
	EnvGitLabCI      = "GITLAB_CI"
	EnvJenkinsURL    = "JENKINS_URL"
	EnvCircleCI      = "CIRCLECI"

	// EnvRequireIntegration turns missing integration backends into failures in CI.
	EnvRequireIntegration = "TASKCORE_REQUIRE_INTEGRATION"

	// Backend connection variables, preferred name first
	EnvTestDatabaseURL = "TASKCORE_TEST_DATABASE_URL"
	EnvDatabaseURL     = "DATABASE_URL"
	EnvTestRedisURL    = "TASKCORE_TEST_REDIS_URL"
	EnvRedisURL        = "REDIS_URL"
)

// IsCI returns true if the current environment is a CI environment.
func IsCI() bool {
	return os.Getenv(EnvCI) != "" ||
		os.Getenv(EnvGitHubActions) != "" ||
		os.Getenv(EnvGitLabCI) != "" ||
		os.Getenv(EnvJenkinsURL) != "" ||
		os.Getenv(EnvCircleCI) != ""
}

// GetEnvWithFallbacks returns the value of the first non-empty environment variable
// from the provided list. If no environment variables are set, it returns the defaultValue.
// Using anything but the first name logs a warning with the value redacted.
func GetEnvWithFallbacks(envVars []string, defaultValue string, logger *slog.Logger) string {
	for i, envVar := range envVars {
		if val := os.Getenv(envVar); val != "" {
			if i > 0 && logger != nil {
				logger.Warn("Using fallback environment variable",
					"used_var", envVar,
					"preferred_var", envVars[0],
					"value", redact.String(val),
				)
			}
			return val
		}
	}
	return defaultValue
}
