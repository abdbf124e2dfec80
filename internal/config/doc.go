// Package config handles configuration loading, parsing, and validation
// from environment variables and an optional config file. It provides
// type-safe access to the server, connector, worker and Kafka settings.
package config
