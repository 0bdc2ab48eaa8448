package goToken

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// LintSeverity ranks a [LintWarning].
type LintSeverity int

const (
	// LintInfo marks a deliberate trade-off worth knowing about.
	LintInfo LintSeverity = iota
	// LintWarn marks a setting that weakens a guarantee.
	LintWarn
	// LintHigh marks a setting that defeats a guarantee.
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return fmt.Sprintf("LintSeverity(%d)", int(s))
	}
}

// LintWarning is one advisory finding from [Config.Lint].
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the list returned by [Config.Lint].
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	codes := make([]string, len(r))
	for i, w := range r {
		codes[i] = w.Code
	}
	return codes
}

// BySeverity returns the warnings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError joins the warnings at or above min into one error, or returns nil.
func (r LintResult) AsError(min LintSeverity) error {
	hits := r.BySeverity(min)
	if len(hits) == 0 {
		return nil
	}
	parts := make([]string, len(hits))
	for i, w := range hits {
		parts[i] = fmt.Sprintf("%s [%s]: %s", w.Code, w.Severity, w.Message)
	}
	return errors.New("config lint: " + strings.Join(parts, "; "))
}

// Lint reports settings that are valid but weaken the token lifecycle
// guarantees. Unlike [Config.Validate] it never rejects a config.
func (c Config) Lint() LintResult {
	var r LintResult
	add := func(code string, sev LintSeverity, msg string) {
		r = append(r, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	method := strings.ToLower(c.JWT.SigningMethod)
	if method == "" || method == "hs256" {
		add("signing_hs256", LintInfo, "every verifier holds the signing secret")
		if len(c.JWT.PrivateKey) < 32 {
			add("hs256_key_short", LintHigh, "hs256 secret shorter than 32 bytes")
		}
	}
	if c.JWT.Lifetime > 15*time.Minute {
		add("lifetime_long", LintWarn, "tokens live longer than 15m; a stolen token stays usable until exp")
	}
	if c.JWT.MaxFutureIAT > 10*time.Minute {
		add("max_future_iat_large", LintInfo, "large clock skew tolerance for iat")
	}

	if !c.Security.EnableLoginThrottle {
		add("login_throttle_disabled", LintWarn, "password guessing is not rate limited")
	}
	if c.Password.Memory < 64*1024 {
		add("argon2_memory_low", LintWarn, "argon2id memory below 64 MB")
	}
	if c.Password.Time < 2 {
		add("argon2_time_low", LintWarn, "argon2id time cost below 2")
	}

	purgeOff := c.Purge.Interval <= 0
	if purgeOff {
		add("purge_disabled", LintInfo, "expired revocation records are only removed by explicit PurgeExpired calls")
	}
	if c.Revocation.RetentionGrace < 0 && purgeOff {
		add("denylist_unbounded", LintHigh, "redis key TTLs and the background purger are both off; the denylist grows without bound")
	}

	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "token reuse and login failures are not audited")
	}
	return r
}
