// Package sinks implements progress consumers: structured logs, Prometheus
// collectors, and an in-memory status snapshot served by the status API.
package sinks
