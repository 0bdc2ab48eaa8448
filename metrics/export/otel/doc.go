// Package otel publishes goToken engine metrics as OpenTelemetry observable
// instruments.
//
// Callers own the MeterProvider and pass in a Meter. Counters map to
// Int64ObservableCounter. The validate latency histogram is split into
// gotoken_validate_latency_seconds_bucket (a gauge per "le" bound) plus
// matching _count and _sum instruments, all fed from one engine snapshot
// per collection.
package otel
