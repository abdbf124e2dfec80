// Package api exposes task queues over HTTP: enqueueing tasks, inspecting
// their state and results, plus health and Prometheus endpoints. It
// translates HTTP concerns to TaskQueue operations.
package api
