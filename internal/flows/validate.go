package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goToken/jwt"
)

// ValidateFailureKind classifies validation and introspection failures.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureMalformed
	ValidateFailureSignature
	ValidateFailureExpired
	ValidateFailureRevoked
	ValidateFailureStore
)

// ValidateResult returns either decoded claims or a classified failure.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	Claims  *jwt.Claims
}

// RevocationChecker is the read side of the revocation store.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// ValidateDeps captures validation dependencies.
type ValidateDeps struct {
	Decode func(string) (*jwt.Claims, error)
	Store  RevocationChecker
}

// decodeFailure maps codec sentinels onto a failure kind.
func decodeFailure(err error) ValidateFailureKind {
	switch {
	case errors.Is(err, jwt.ErrSignature):
		return ValidateFailureSignature
	case errors.Is(err, jwt.ErrExpiredToken):
		return ValidateFailureExpired
	default:
		return ValidateFailureMalformed
	}
}

// RunValidate decodes and verifies tokenStr. Revocation is not consulted.
func RunValidate(tokenStr string, deps ValidateDeps) ValidateResult {
	claims, err := deps.Decode(tokenStr)
	if err != nil {
		return ValidateResult{Failure: decodeFailure(err), Err: err}
	}
	return ValidateResult{Claims: claims}
}

// RunIntrospect is RunValidate followed by a revocation lookup. Store errors
// are reported as ValidateFailureStore with the decoded claims attached.
func RunIntrospect(ctx context.Context, tokenStr string, deps ValidateDeps) ValidateResult {
	res := RunValidate(tokenStr, deps)
	if res.Failure != ValidateFailureNone {
		return res
	}

	revoked, err := deps.Store.IsRevoked(ctx, res.Claims.TokenID)
	if err != nil {
		return ValidateResult{Failure: ValidateFailureStore, Err: err, Claims: res.Claims}
	}
	if revoked {
		return ValidateResult{Failure: ValidateFailureRevoked, Claims: res.Claims}
	}
	return res
}
