package flows

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/scope"
)

// IssueFailureKind classifies issuance failures for root-level mapping.
type IssueFailureKind int

const (
	IssueFailureNone IssueFailureKind = iota
	IssueFailureSubject
	IssueFailureScope
	IssueFailureTokenID
	IssueFailureEncode
)

// IssueResult carries either the signed token and its claims or failure metadata.
type IssueResult struct {
	Failure IssueFailureKind
	Err     error
	Token   string
	Claims  jwt.Claims
}

// IssueDeps captures issuance dependencies.
type IssueDeps struct {
	Now        func() time.Time
	Lifetime   time.Duration
	NewTokenID func() (string, error)
	Encode     func(jwt.Claims) (string, error)
	// UnknownScope returns labels not known to the engine. Nil skips the check.
	UnknownScope func([]string) []string
}

// RunIssue stamps a fresh token id, issued-at and expiry onto subject and
// scope, then signs. It never touches the revocation store.
//
// Issued-at is truncated to whole seconds so the signed expiry is exactly
// issued-at plus lifetime.
func RunIssue(subject string, labels []string, deps IssueDeps) IssueResult {
	if strings.TrimSpace(subject) == "" {
		return IssueResult{Failure: IssueFailureSubject, Err: errors.New("subject is empty")}
	}

	normalized := scope.Normalize(labels)
	if deps.UnknownScope != nil {
		if unknown := deps.UnknownScope(normalized); len(unknown) > 0 {
			return IssueResult{
				Failure: IssueFailureScope,
				Err:     errors.New("unknown scope labels: " + strings.Join(unknown, " ")),
			}
		}
	}

	tokenID, err := deps.NewTokenID()
	if err != nil {
		return IssueResult{Failure: IssueFailureTokenID, Err: err}
	}

	issuedAt := deps.Now().Truncate(time.Second)
	claims := jwt.Claims{
		Subject:   subject,
		TokenID:   tokenID,
		Scope:     normalized,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(deps.Lifetime),
	}

	token, err := deps.Encode(claims)
	if err != nil {
		return IssueResult{Failure: IssueFailureEncode, Err: err, Claims: claims}
	}

	return IssueResult{Token: token, Claims: claims}
}
