// Package otel binds goToken engine metrics to an OpenTelemetry Meter.
//
// Each counter becomes an Int64ObservableCounter; each latency histogram
// becomes one Int64ObservableGauge per cumulative bucket plus a count. The
// caller owns the MeterProvider.
package otel
