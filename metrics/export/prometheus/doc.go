// Package prometheus exposes goToken engine metrics as a
// prometheus.Collector.
//
// Counters are named gotoken_*_total; the validate and refresh latencies are
// histograms in seconds. Register the [Collector] with your own registry or
// mount [Handler].
package prometheus
