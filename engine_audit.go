package goToken

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

const (
	auditEventLoginSuccess       = "login_success"
	auditEventLoginFailure       = "login_failure"
	auditEventLoginRateLimited   = "login_rate_limited"
	auditEventTokenIssued        = "token_issued"
	auditEventRefreshSuccess     = "refresh_success"
	auditEventRefreshInvalid     = "refresh_invalid"
	auditEventTokenReuseDetected = "token_reuse_detected"
	auditEventLogout             = "logout"
	auditEventPurge              = "purge"
)

// AuditErrorCode is the stable, low-cardinality error label carried in
// [AuditEvent.Error].
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrTokenReuse         AuditErrorCode = "token_reuse"
	auditErrExpired            AuditErrorCode = "expired_token"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrInvalidSubject     AuditErrorCode = "invalid_subject"
	auditErrUnknownScope       AuditErrorCode = "unknown_scope"
	auditErrIssuance           AuditErrorCode = "issuance_failed"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subject string,
	tokenID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		EventType: eventType,
		Subject:   subject,
		TokenID:   tokenID,
		IP:        ClientIP(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitPurge(removed int, err error) {
	if err != nil {
		e.metricInc(MetricRevocationStoreError)
		err = fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
	}
	e.metricInc(MetricPurgeRun)
	if removed > 0 {
		e.metrics.Add(MetricPurgedRecords, uint64(removed))
	}
	e.emitAudit(context.Background(), auditEventPurge, err == nil, "", "", err, func() map[string]string {
		return map[string]string{"removed": strconv.Itoa(removed)}
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrLoginRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrTokenReuse):
		return auditErrTokenReuse
	case errors.Is(err, ErrExpiredToken):
		return auditErrExpired
	case errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrMalformedToken),
		errors.Is(err, ErrSignature):
		return auditErrInvalidToken
	case errors.Is(err, ErrInvalidSubject):
		return auditErrInvalidSubject
	case errors.Is(err, ErrUnknownScope):
		return auditErrUnknownScope
	case errors.Is(err, ErrTokenIssuance),
		errors.Is(err, ErrEncoding):
		return auditErrIssuance
	case errors.Is(err, ErrRevocationUnavailable),
		errors.Is(err, ErrUserStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
