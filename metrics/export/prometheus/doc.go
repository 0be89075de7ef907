// Package prometheus exposes eduAuth engine metrics as a
// prometheus.Collector.
//
// Counters are named eduauth_*_total; the only histogram is
// eduauth_authenticate_latency_seconds. Register the exporter with your own
// registry, or mount [PrometheusExporter.Handler], which uses a private one.
package prometheus
