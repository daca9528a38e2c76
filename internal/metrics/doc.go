// Package metrics exposes the result of the last update cycle as
// Prometheus gauges written to a node_exporter textfile-collector file.
package metrics
