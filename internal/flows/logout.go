package flows

import (
	"context"

	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/revocation"
)

// LogoutFailureKind classifies logout failures.
type LogoutFailureKind int

const (
	LogoutFailureNone LogoutFailureKind = iota
	LogoutFailureDecode
	LogoutFailureStore
)

type LogoutStore interface {
	Revoke(ctx context.Context, rec revocation.Record) error
}

// LogoutDeps captures logout flow dependencies. Decode must accept expired
// tokens so a client can log out after its token lapsed.
type LogoutDeps struct {
	DecodeAllowExpired func(string) (*jwt.Claims, error)
	Store              LogoutStore
}

type LogoutResult struct {
	Failure LogoutFailureKind
	Err     error
	Claims  *jwt.Claims
}

// RunLogout revokes tokenStr. Revoking an already revoked token succeeds.
func RunLogout(ctx context.Context, tokenStr string, deps LogoutDeps) LogoutResult {
	claims, err := deps.DecodeAllowExpired(tokenStr)
	if err != nil {
		return LogoutResult{Failure: LogoutFailureDecode, Err: err}
	}

	err = deps.Store.Revoke(ctx, revocation.Record{
		TokenID:   claims.TokenID,
		RawToken:  tokenStr,
		ExpiresAt: claims.ExpiresAt,
		Reason:    revocation.ReasonLogout,
	})
	if err != nil {
		return LogoutResult{Failure: LogoutFailureStore, Err: err, Claims: claims}
	}
	return LogoutResult{Claims: claims}
}
