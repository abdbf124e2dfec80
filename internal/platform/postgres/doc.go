// Package postgres implements task.Connector on PostgreSQL.
//
// Tasks live in a single "tasks" table keyed by (namespace, queue_name, id).
// The serialized task is kept in a JSON (not JSONB) payload column so that
// argument bytes come back exactly as they were written. Pulls claim the
// oldest unclaimed row with FOR UPDATE SKIP LOCKED, so concurrent workers
// never receive the same task. The schema is managed with goose from the
// embedded migrations directory.
package postgres
