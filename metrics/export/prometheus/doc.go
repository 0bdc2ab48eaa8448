// Package prometheus serves goToken engine metrics in the Prometheus text
// exposition format.
//
// The exporter keeps no registry of its own. Mount [Exporter.Handler] on
// whatever router serves /metrics; each request reads one engine snapshot.
package prometheus
