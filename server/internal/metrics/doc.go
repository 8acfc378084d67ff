// Package metrics defines the Prometheus instruments exported by
// canvashub-server under /metrics.
package metrics
