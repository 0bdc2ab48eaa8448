package flows

import (
	"context"
	"errors"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureRateLimited
	LoginFailureInvalidCredentials
	LoginFailureUserStore
	LoginFailureIssue
)

// LoginUserRecord is a flow-local user model.
type LoginUserRecord struct {
	Identifier   string
	PasswordHash string
	Roles        []string
}

// LoginResult is the flow-local login response shape. Reason is a short
// machine-readable cause for audit metadata.
type LoginResult struct {
	Failure LoginFailureKind
	Err     error
	Reason  string
	Token   string
	Issued  IssueResult
}

// LoginDeps captures login dependencies. The rate hooks are optional.
type LoginDeps struct {
	CheckLoginRate      func(ctx context.Context, identifier, ip string) error
	IncrementLoginRate  func(ctx context.Context, identifier, ip string) error
	ResetLoginRate      func(ctx context.Context, identifier, ip string) error
	ClientIPFromContext func(context.Context) string
	GetUserByIdentifier func(ctx context.Context, identifier string) (LoginUserRecord, error)
	// UserNotFound marks lookup errors that mean "no such user" rather than an
	// unavailable store.
	UserNotFound   error
	VerifyPassword func(password, hash string) (bool, error)
	// DecoyHash is verified against when the user does not exist, so both
	// failure paths pay for one key derivation.
	DecoyHash string
	Issue     func(subject string, labels []string) IssueResult
	Warn      func(string, ...any)
}

// RunLogin verifies credentials and issues a token whose scope is the user's
// roles. An unknown user and a wrong password are indistinguishable to the
// caller.
func RunLogin(ctx context.Context, identifier, password string, deps LoginDeps) LoginResult {
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
	ip := ""
	if deps.ClientIPFromContext != nil {
		ip = deps.ClientIPFromContext(ctx)
	}

	if deps.CheckLoginRate != nil {
		if err := deps.CheckLoginRate(ctx, identifier, ip); err != nil {
			return LoginResult{Failure: LoginFailureRateLimited, Err: err, Reason: "rate_limited"}
		}
	}

	fail := func(reason string) LoginResult {
		if deps.IncrementLoginRate != nil {
			if err := deps.IncrementLoginRate(ctx, identifier, ip); err != nil {
				return LoginResult{Failure: LoginFailureRateLimited, Err: err, Reason: "rate_limited"}
			}
		}
		return LoginResult{Failure: LoginFailureInvalidCredentials, Reason: reason}
	}

	if identifier == "" || password == "" {
		return fail("empty_credentials")
	}

	user, err := deps.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		if deps.UserNotFound != nil && errors.Is(err, deps.UserNotFound) {
			if deps.DecoyHash != "" && deps.VerifyPassword != nil {
				_, _ = deps.VerifyPassword(password, deps.DecoyHash)
			}
			return fail("user_not_found")
		}
		return LoginResult{Failure: LoginFailureUserStore, Err: err, Reason: "user_store"}
	}

	ok, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return fail("password_mismatch")
	}

	if deps.ResetLoginRate != nil {
		if err := deps.ResetLoginRate(ctx, identifier, ip); err != nil {
			deps.Warn("login throttle reset failed", "error", err)
		}
	}

	subject := user.Identifier
	if subject == "" {
		subject = identifier
	}
	issued := deps.Issue(subject, user.Roles)
	if issued.Failure != IssueFailureNone {
		return LoginResult{Failure: LoginFailureIssue, Err: issued.Err, Reason: "issue", Issued: issued}
	}
	return LoginResult{Token: issued.Token, Issued: issued}
}
