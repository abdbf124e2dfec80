// Package ciutil detects CI environments and resolves the backend URLs
// used by integration tests.
//
// Integration tests against Redis and PostgreSQL skip when no URL is
// configured. In CI with TASKCORE_REQUIRE_INTEGRATION set, a missing URL
// fails the test instead, so a misconfigured pipeline cannot pass silently.
package ciutil
