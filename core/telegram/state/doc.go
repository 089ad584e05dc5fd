// Package state keeps per-chat conversation sessions in a bounded in-memory
// cache. Sessions idle for longer than the configured TTL are dropped.
package state
