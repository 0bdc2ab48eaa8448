package flows

import (
	"context"

	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/revocation"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureMalformed
	RefreshFailureSignature
	RefreshFailureExpired
	RefreshFailureReuse
	RefreshFailureStore
	RefreshFailureIssue
)

// RefreshResult carries either the successor token or failure metadata.
// Claims holds the predecessor's claims whenever they could be decoded.
type RefreshResult struct {
	Failure   RefreshFailureKind
	Err       error
	Claims    *jwt.Claims
	Token     string
	Successor jwt.Claims
}

// RefreshStore is the write side of the revocation store used by refresh.
type RefreshStore interface {
	RevokeIfAbsent(ctx context.Context, rec revocation.Record) (bool, error)
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Decode func(string) (*jwt.Claims, error)
	// Issue signs the successor. Scope is copied from the predecessor as is.
	Issue func(subject string, labels []string) IssueResult
	Store RefreshStore
	Warn  func(string, ...any)
}

// RunRefresh rotates tokenStr into a successor.
//
// The predecessor is revoked with a single insert-if-absent before the
// successor is issued. Only the caller whose insert created the record may
// issue; every other concurrent caller gets RefreshFailureReuse. If issuance
// fails after the insert, the predecessor stays revoked.
func RunRefresh(ctx context.Context, tokenStr string, deps RefreshDeps) RefreshResult {
	claims, err := deps.Decode(tokenStr)
	if err != nil {
		var kind RefreshFailureKind
		switch decodeFailure(err) {
		case ValidateFailureSignature:
			kind = RefreshFailureSignature
		case ValidateFailureExpired:
			kind = RefreshFailureExpired
		default:
			kind = RefreshFailureMalformed
		}
		return RefreshResult{Failure: kind, Err: err}
	}

	inserted, err := deps.Store.RevokeIfAbsent(ctx, revocation.Record{
		TokenID:   claims.TokenID,
		RawToken:  tokenStr,
		ExpiresAt: claims.ExpiresAt,
		Reason:    revocation.ReasonRefresh,
	})
	if err != nil {
		return RefreshResult{Failure: RefreshFailureStore, Err: err, Claims: claims}
	}
	if !inserted {
		if deps.Warn != nil {
			deps.Warn("token reuse detected", "subject", claims.Subject, "token_id", claims.TokenID)
		}
		return RefreshResult{Failure: RefreshFailureReuse, Claims: claims}
	}

	issued := deps.Issue(claims.Subject, claims.Scope)
	if issued.Failure != IssueFailureNone {
		return RefreshResult{Failure: RefreshFailureIssue, Err: issued.Err, Claims: claims}
	}

	return RefreshResult{
		Claims:    claims,
		Token:     issued.Token,
		Successor: issued.Claims,
	}
}
