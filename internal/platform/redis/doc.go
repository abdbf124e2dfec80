// Package redis implements task.Connector on Redis.
//
// Every task is stored as a JSON string under
// "taskcore:{namespace}:{queue}:task:{id}". Pending ids are kept in the
// Redis list "taskcore:{namespace}:{queue}:ready"; queueing RPUSHes and
// pulling LPOPs, so tasks are handed out in FIFO order.
package redis
