package internaldefs

import (
	"strconv"

	goToken "github.com/MrEthical07/goToken"
)

// Kind distinguishes monotonic counters from the latency histogram.
type Kind uint8

const (
	KindCounter Kind = iota
	KindHistogram
)

// Family names one exported metric. Unit follows UCUM as OpenTelemetry
// expects; the Prometheus exporter ignores it.
type Family struct {
	ID   goToken.MetricID
	Kind Kind
	Name string
	Help string
	Unit string
}

func counter(id goToken.MetricID, name, help string) Family {
	return Family{ID: id, Kind: KindCounter, Name: name, Help: help, Unit: "{event}"}
}

// Families lists every engine metric in exposition order.
var Families = []Family{
	counter(goToken.MetricLoginSuccess, "gotoken_login_success_total", "Successful login attempts."),
	counter(goToken.MetricLoginFailure, "gotoken_login_failure_total", "Failed login attempts."),
	counter(goToken.MetricLoginRateLimited, "gotoken_login_rate_limited_total", "Rate-limited login attempts."),
	counter(goToken.MetricTokenIssued, "gotoken_token_issued_total", "Signed tokens, including refresh successors."),
	counter(goToken.MetricIssueFailure, "gotoken_issue_failure_total", "Rejected or failed token issuance."),
	counter(goToken.MetricValidateSuccess, "gotoken_validate_success_total", "Tokens that passed signature and expiry checks."),
	counter(goToken.MetricValidateFailure, "gotoken_validate_failure_total", "Tokens that failed signature or expiry checks."),
	counter(goToken.MetricIntrospectActive, "gotoken_introspect_active_total", "Introspections that found an active token."),
	counter(goToken.MetricIntrospectRevoked, "gotoken_introspect_revoked_total", "Introspections that found a revoked token."),
	counter(goToken.MetricIntrospectInactive, "gotoken_introspect_inactive_total", "Introspections of malformed, forged or expired tokens."),
	counter(goToken.MetricRefreshSuccess, "gotoken_refresh_success_total", "Successful token rotations."),
	counter(goToken.MetricRefreshFailure, "gotoken_refresh_failure_total", "Refreshes rejected for invalid or expired tokens."),
	counter(goToken.MetricTokenReuseDetected, "gotoken_token_reuse_detected_total", "Refreshes of already rotated or revoked tokens."),
	counter(goToken.MetricLogout, "gotoken_logout_total", "Tokens revoked by logout."),
	counter(goToken.MetricRevocationStoreError, "gotoken_revocation_store_error_total", "Revocation store failures."),
	counter(goToken.MetricPurgeRun, "gotoken_purge_run_total", "Revocation purge passes."),
	counter(goToken.MetricPurgedRecords, "gotoken_purged_records_total", "Revocation records removed by purge."),
	{
		ID:   goToken.MetricValidateLatency,
		Kind: KindHistogram,
		Name: "gotoken_validate_latency_seconds",
		Help: "Validate and introspect latency.",
		Unit: "s",
	},
}

// AuditDropped is fed by the engine's audit dispatcher rather than the
// metrics snapshot, so it is reported even when metrics are disabled.
var AuditDropped = counter(0, "gotoken_audit_dropped_total", "Audit events dropped under dispatcher backpressure.")

// BoundLabel formats the upper bound of latency bucket i in seconds. The
// overflow bucket is "+Inf".
func BoundLabel(i int) string {
	if i >= len(goToken.LatencyBuckets) {
		return "+Inf"
	}
	return strconv.FormatFloat(goToken.LatencyBuckets[i].Seconds(), 'g', -1, 64)
}
