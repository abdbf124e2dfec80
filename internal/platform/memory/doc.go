// Package memory provides an in-process implementation of task.Connector.
// Tasks are kept in their marshalled wire form so the in-memory backend
// exercises the same serialization path as the networked ones. It is used
// for local development and tests; nothing survives a restart.
package memory
