package goToken

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/goToken/internal/audit"
	"github.com/MrEthical07/goToken/internal/flows"
	"github.com/MrEthical07/goToken/internal/rate"
	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/password"
	"github.com/MrEthical07/goToken/revocation"
	"github.com/MrEthical07/goToken/scope"
)

// Engine issues, validates, rotates and revokes tokens. Construct it with
// [Builder.Build]; the zero value is not usable.
//
// All methods are safe for concurrent use. Call [Engine.Close] on shutdown
// to stop the purger and drain the audit dispatcher.
type Engine struct {
	config       Config
	codec        *jwt.Codec
	store        revocation.Store
	registry     *scope.Registry
	userProvider UserProvider
	passwordHash *password.Argon2
	decoyHash    string
	rateLimiter  *rate.Limiter
	audit        *internalaudit.Dispatcher
	metrics      *Metrics
	logger       *slog.Logger
	purger       *revocation.Purger
	now          func() time.Time
	newTokenID   func() (string, error)
	flowDeps     flows.Deps
}

func (e *Engine) buildFlowDeps() flows.Deps {
	issue := flows.IssueDeps{
		Now:        e.now,
		Lifetime:   e.config.JWT.Lifetime,
		NewTokenID: e.newTokenID,
		Encode:     e.codec.Encode,
	}
	if e.registry != nil {
		issue.UnknownScope = e.registry.Unknown
	}

	// Successors copy the predecessor's scope verbatim, so they skip the
	// registry check.
	successor := issue
	successor.UnknownScope = nil

	deps := flows.Deps{
		Issue: issue,
		Validate: flows.ValidateDeps{
			Decode: e.codec.Decode,
			Store:  e.store,
		},
		Refresh: flows.RefreshDeps{
			Decode: e.codec.Decode,
			Issue: func(subject string, labels []string) flows.IssueResult {
				return flows.RunIssue(subject, labels, successor)
			},
			Store: e.store,
			Warn:  e.logger.Warn,
		},
		Logout: flows.LogoutDeps{
			DecodeAllowExpired: e.codec.DecodeAllowExpired,
			Store:              e.store,
		},
		Login: flows.LoginDeps{
			ClientIPFromContext: ClientIP,
			GetUserByIdentifier: e.lookupUser,
			UserNotFound:        ErrUserNotFound,
			Issue: func(subject string, labels []string) flows.IssueResult {
				return flows.RunIssue(subject, labels, issue)
			},
			Warn: e.logger.Warn,
		},
	}
	if e.passwordHash != nil {
		deps.Login.VerifyPassword = e.passwordHash.Verify
		deps.Login.DecoyHash = e.decoyHash
	}
	if e.rateLimiter != nil {
		deps.Login.CheckLoginRate = e.rateLimiter.CheckLogin
		deps.Login.IncrementLoginRate = e.rateLimiter.IncrementLogin
		deps.Login.ResetLoginRate = e.rateLimiter.ResetLogin
	}
	return deps
}

func (e *Engine) lookupUser(ctx context.Context, identifier string) (flows.LoginUserRecord, error) {
	user, err := e.userProvider.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		return flows.LoginUserRecord{}, err
	}
	return flows.LoginUserRecord{
		Identifier:   user.Identifier,
		PasswordHash: user.PasswordHash,
		Roles:        user.Roles,
	}, nil
}

// Issue signs a new token for subject carrying the normalized scope labels.
// It performs no store writes.
//
// Errors: [ErrInvalidSubject], [ErrUnknownScope] (when scopes are
// registered), [ErrTokenIssuance].
func (e *Engine) Issue(ctx context.Context, subject string, labels []string) (string, error) {
	res := flows.RunIssue(subject, labels, e.flowDeps.Issue)
	if res.Failure != flows.IssueFailureNone {
		e.metricInc(MetricIssueFailure)
		return "", issueError(res)
	}

	e.recordIssued(ctx, res.Claims)
	return res.Token, nil
}

// LoginVerified issues a token for a subject whose credentials the caller
// already verified. It audits as a successful login.
func (e *Engine) LoginVerified(ctx context.Context, subject string, roles []string) (string, error) {
	token, err := e.Issue(ctx, subject, roles)
	if err != nil {
		e.emitAudit(ctx, auditEventLoginFailure, false, subject, "", err, nil)
		return "", err
	}
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, subject, "", nil, func() map[string]string {
		return map[string]string{"method": "verified"}
	})
	return token, nil
}

// Login verifies username and password against the configured
// [UserProvider] and issues a token whose scope is the user's roles.
// Unknown users and wrong passwords both yield [ErrInvalidCredentials].
//
// Errors: [ErrLoginRateLimited], [ErrInvalidCredentials],
// [ErrUserStoreUnavailable], [ErrUnknownScope], [ErrTokenIssuance],
// [ErrEngineNotReady] when built without a user provider.
func (e *Engine) Login(ctx context.Context, username, pass string) (string, error) {
	if e.userProvider == nil || e.passwordHash == nil {
		return "", ErrEngineNotReady
	}

	res := flows.RunLogin(ctx, username, pass, e.flowDeps.Login)
	switch res.Failure {
	case flows.LoginFailureNone:
	case flows.LoginFailureRateLimited:
		e.metricInc(MetricLoginRateLimited)
		err := ErrLoginRateLimited
		switch {
		case errors.Is(res.Err, rate.ErrRateLimited):
			err = fmt.Errorf("%w: %w", ErrLoginRateLimited, res.Err)
		case res.Err != nil:
			err = fmt.Errorf("%w: %v", ErrLoginRateLimited, res.Err)
		}
		e.emitAudit(ctx, auditEventLoginRateLimited, false, username, "", err, nil)
		return "", err
	case flows.LoginFailureInvalidCredentials:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, username, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"reason": res.Reason}
		})
		return "", ErrInvalidCredentials
	case flows.LoginFailureUserStore:
		e.metricInc(MetricLoginFailure)
		err := fmt.Errorf("%w: %v", ErrUserStoreUnavailable, res.Err)
		e.logger.Warn("user lookup failed", "error", res.Err)
		e.emitAudit(ctx, auditEventLoginFailure, false, username, "", err, nil)
		return "", err
	default:
		e.metricInc(MetricLoginFailure)
		e.metricInc(MetricIssueFailure)
		err := issueError(res.Issued)
		e.emitAudit(ctx, auditEventLoginFailure, false, username, "", err, nil)
		return "", err
	}

	claims := res.Issued.Claims
	e.recordIssued(ctx, claims)
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, claims.Subject, claims.TokenID, nil, nil)
	return res.Token, nil
}

// Validate reports whether token has a valid signature and has not expired.
// It does not consult the revocation store; use [Engine.Introspect] for that.
func (e *Engine) Validate(ctx context.Context, token string) bool {
	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
		defer func() {
			e.metrics.Observe(MetricValidateLatency, time.Since(start))
		}()
	}

	res := flows.RunValidate(token, e.flowDeps.Validate)
	if res.Failure != flows.ValidateFailureNone {
		e.metricInc(MetricValidateFailure)
		return false
	}
	e.metricInc(MetricValidateSuccess)
	return true
}

// Introspect reports whether token is usable: valid signature, not
// expired, and not revoked. Store failures report false.
func (e *Engine) Introspect(ctx context.Context, token string) bool {
	info, err := e.IntrospectToken(ctx, token)
	return err == nil && info.Active
}

// IntrospectToken returns the token's details when it is usable. Invalid,
// expired and revoked tokens return an inactive [Introspection] and a nil
// error; only store failures return [ErrRevocationUnavailable].
func (e *Engine) IntrospectToken(ctx context.Context, token string) (Introspection, error) {
	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
		defer func() {
			e.metrics.Observe(MetricValidateLatency, time.Since(start))
		}()
	}

	res := flows.RunIntrospect(ctx, token, e.flowDeps.Validate)
	switch res.Failure {
	case flows.ValidateFailureNone:
	case flows.ValidateFailureRevoked:
		e.metricInc(MetricIntrospectRevoked)
		return Introspection{}, nil
	case flows.ValidateFailureStore:
		e.metricInc(MetricRevocationStoreError)
		e.logger.Warn("revocation lookup failed", "token_id", res.Claims.TokenID, "error", res.Err)
		return Introspection{}, fmt.Errorf("%w: %v", ErrRevocationUnavailable, res.Err)
	default:
		e.metricInc(MetricIntrospectInactive)
		return Introspection{}, nil
	}

	e.metricInc(MetricIntrospectActive)
	c := res.Claims
	return Introspection{
		Active:    true,
		Subject:   c.Subject,
		Scope:     append([]string(nil), c.Scope...),
		TokenID:   c.TokenID,
		IssuedAt:  c.IssuedAt,
		ExpiresAt: c.ExpiresAt,
	}, nil
}

// Logout revokes token for the rest of its lifetime. Expired tokens are
// accepted; logging out twice is not an error.
//
// Errors: [ErrInvalidToken] for malformed or forged tokens,
// [ErrRevocationUnavailable].
func (e *Engine) Logout(ctx context.Context, token string) error {
	res := flows.RunLogout(ctx, token, e.flowDeps.Logout)
	switch res.Failure {
	case flows.LogoutFailureNone:
	case flows.LogoutFailureDecode:
		err := fmt.Errorf("%w: %w", ErrInvalidToken, res.Err)
		e.emitAudit(ctx, auditEventLogout, false, "", "", err, nil)
		return err
	default:
		e.metricInc(MetricRevocationStoreError)
		err := fmt.Errorf("%w: %v", ErrRevocationUnavailable, res.Err)
		e.logger.Warn("logout revocation failed", "token_id", res.Claims.TokenID, "error", res.Err)
		e.emitAudit(ctx, auditEventLogout, false, res.Claims.Subject, res.Claims.TokenID, err, nil)
		return err
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, res.Claims.Subject, res.Claims.TokenID, nil, nil)
	return nil
}

// Refresh rotates token: the presented token is revoked and a successor
// with the same subject and scope is returned. Exactly one of any number of
// concurrent refreshes of the same token succeeds.
//
// Errors: [ErrInvalidToken], [ErrExpiredToken], [ErrTokenReuse],
// [ErrRevocationUnavailable], [ErrTokenIssuance]. After ErrTokenIssuance the
// presented token stays revoked and the client must log in again.
func (e *Engine) Refresh(ctx context.Context, token string) (string, error) {
	res := flows.RunRefresh(ctx, token, e.flowDeps.Refresh)

	var subject, tokenID string
	if res.Claims != nil {
		subject, tokenID = res.Claims.Subject, res.Claims.TokenID
	}

	switch res.Failure {
	case flows.RefreshFailureNone:
	case flows.RefreshFailureMalformed, flows.RefreshFailureSignature:
		e.metricInc(MetricRefreshFailure)
		err := fmt.Errorf("%w: %w", ErrInvalidToken, res.Err)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", err, nil)
		return "", err
	case flows.RefreshFailureExpired:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", ErrExpiredToken, nil)
		return "", res.Err
	case flows.RefreshFailureReuse:
		e.metricInc(MetricTokenReuseDetected)
		e.emitAudit(ctx, auditEventTokenReuseDetected, false, subject, tokenID, ErrTokenReuse, nil)
		return "", ErrTokenReuse
	case flows.RefreshFailureStore:
		e.metricInc(MetricRevocationStoreError)
		err := fmt.Errorf("%w: %v", ErrRevocationUnavailable, res.Err)
		e.logger.Warn("refresh revocation failed", "token_id", tokenID, "error", res.Err)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, subject, tokenID, err, nil)
		return "", err
	default:
		e.metricInc(MetricIssueFailure)
		err := fmt.Errorf("%w: %w", ErrTokenIssuance, res.Err)
		e.logger.Error("successor issuance failed after rotation", "subject", subject, "token_id", tokenID, "error", res.Err)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, subject, tokenID, err, nil)
		return "", err
	}

	e.recordIssued(ctx, res.Successor)
	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, subject, tokenID, nil, func() map[string]string {
		return map[string]string{"successor": res.Successor.TokenID}
	})
	return res.Token, nil
}

// PurgeExpired deletes revocation records whose tokens have expired and
// returns how many were removed. The background purger calls the same path.
func (e *Engine) PurgeExpired(ctx context.Context) (int, error) {
	removed, err := e.purger.RunOnce(ctx)
	if err != nil {
		return removed, fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
	}
	return removed, nil
}

// Close stops the background purger and drains the audit dispatcher. Close
// is idempotent.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.purger != nil {
		e.purger.Stop()
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID]HistogramSnapshot{},
		}
	}
	return e.metrics.Snapshot()
}

// Scopes returns the registered scope labels, or nil when none are registered.
func (e *Engine) Scopes() []string {
	if e.registry == nil {
		return nil
	}
	return e.registry.Labels()
}

func (e *Engine) recordIssued(ctx context.Context, claims jwt.Claims) {
	e.metricInc(MetricTokenIssued)
	e.emitAudit(ctx, auditEventTokenIssued, true, claims.Subject, claims.TokenID, nil, func() map[string]string {
		return map[string]string{
			"scope":      scope.Format(claims.Scope),
			"expires_at": claims.ExpiresAt.UTC().Format(time.RFC3339),
		}
	})
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func issueError(res flows.IssueResult) error {
	switch res.Failure {
	case flows.IssueFailureSubject:
		return ErrInvalidSubject
	case flows.IssueFailureScope:
		return fmt.Errorf("%w: %v", ErrUnknownScope, res.Err)
	default:
		return fmt.Errorf("%w: %w", ErrTokenIssuance, res.Err)
	}
}
