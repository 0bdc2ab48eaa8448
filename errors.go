package goToken

import (
	"errors"
	"time"

	"github.com/MrEthical07/goToken/internal/rate"
	"github.com/MrEthical07/goToken/jwt"
)

// Codec sentinels are re-exported so callers can match them with errors.Is
// without importing the jwt package.
var (
	// ErrMalformedToken reports a token that is not a well-formed JWS or lacks required claims.
	ErrMalformedToken = jwt.ErrMalformedToken
	// ErrSignature reports a signature, algorithm, key, issuer or audience mismatch.
	ErrSignature = jwt.ErrSignature
	// ErrExpiredToken reports a token whose exp is not after now.
	ErrExpiredToken = jwt.ErrExpiredToken
	// ErrEncoding reports claims that cannot be signed.
	ErrEncoding = jwt.ErrEncoding
)

var (
	// ErrInvalidToken wraps decode failures surfaced by Refresh and Logout.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenReuse is returned when a token that was already rotated or revoked is refreshed.
	ErrTokenReuse = errors.New("token reuse detected")
	// ErrTokenIssuance reports a failure to sign a new token.
	ErrTokenIssuance = errors.New("token issuance failed")
	// ErrRevocationUnavailable reports a revocation store failure. Callers may retry.
	ErrRevocationUnavailable = errors.New("revocation store unavailable")
	// ErrInvalidSubject is returned when Issue is called with a blank subject.
	ErrInvalidSubject = errors.New("invalid subject")
	// ErrUnknownScope is returned when a scope label is not registered.
	ErrUnknownScope       = errors.New("unknown scope label")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLoginRateLimited   = errors.New("login rate limited")
	// ErrUserStoreUnavailable reports a user provider failure other than "not found".
	ErrUserStoreUnavailable = errors.New("user store unavailable")
	// ErrUserNotFound is the sentinel a UserProvider returns for an unknown identifier.
	ErrUserNotFound = errors.New("user not found")
	// ErrEngineNotReady is returned when an operation needs a component the engine was built without.
	ErrEngineNotReady = errors.New("engine not ready")
)

// RetryAfter reports how long a caller refused with [ErrLoginRateLimited]
// should wait before the throttle window resets.
func RetryAfter(err error) (time.Duration, bool) {
	var limited *rate.LimitedError
	if !errors.As(err, &limited) {
		return 0, false
	}
	return limited.RetryAfter, true
}
