package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	goToken "github.com/MrEthical07/goToken"
)

type introspectionKey struct{}

// IntrospectionFromContext returns the token details stored by [Guard] and
// [RequireScope].
func IntrospectionFromContext(ctx context.Context) (*goToken.Introspection, bool) {
	res, ok := ctx.Value(introspectionKey{}).(*goToken.Introspection)
	return res, ok
}

// RejectFunc writes the response for a refused request. status is 401, 403
// or 503.
type RejectFunc func(w http.ResponseWriter, r *http.Request, status int)

// Option customises a guard.
type Option func(*guardConfig)

type guardConfig struct {
	reject RejectFunc
}

// WithReject replaces the default plain-text rejection responses.
func WithReject(fn RejectFunc) Option {
	return func(c *guardConfig) {
		if fn != nil {
			c.reject = fn
		}
	}
}

// DefaultReject answers with the status text and, for 401, an RFC 6750
// WWW-Authenticate challenge.
func DefaultReject(w http.ResponseWriter, _ *http.Request, status int) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	}
	http.Error(w, strings.ToLower(http.StatusText(status)), status)
}

func newGuardConfig(opts []Option) guardConfig {
	c := guardConfig{reject: DefaultReject}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Guard admits requests carrying an active bearer token: valid signature,
// not expired, not revoked. A revocation store failure answers 503 so
// clients can retry; every other refusal answers 401.
func Guard(engine *goToken.Engine, opts ...Option) func(http.Handler) http.Handler {
	return requireActive(engine, newGuardConfig(opts), nil)
}

// RequireScope is [Guard] plus a check that label is in the token scope.
// A missing label answers 403.
func RequireScope(engine *goToken.Engine, label string, opts ...Option) func(http.Handler) http.Handler {
	return requireActive(engine, newGuardConfig(opts), func(res *goToken.Introspection) bool {
		return slices.Contains(res.Scope, label)
	})
}

func requireActive(engine *goToken.Engine, cfg guardConfig, allow func(*goToken.Introspection) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok || engine == nil {
				cfg.reject(w, r, http.StatusUnauthorized)
				return
			}
			res, err := engine.IntrospectToken(r.Context(), token)
			switch {
			case errors.Is(err, goToken.ErrRevocationUnavailable):
				cfg.reject(w, r, http.StatusServiceUnavailable)
				return
			case err != nil, !res.Active:
				cfg.reject(w, r, http.StatusUnauthorized)
				return
			case allow != nil && !allow(&res):
				cfg.reject(w, r, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), introspectionKey{}, &res)))
		})
	}
}

// RequireSignatureOnly admits requests whose bearer token has a valid
// signature and has not expired. It never consults the revocation store,
// so a logged-out token keeps passing until it expires.
func RequireSignatureOnly(engine *goToken.Engine, opts ...Option) func(http.Handler) http.Handler {
	cfg := newGuardConfig(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok || engine == nil || !engine.Validate(r.Context(), token) {
				cfg.reject(w, r, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken extracts the credential from an Authorization header value.
// The scheme is matched case-insensitively. It reports false when no token
// was supplied.
func BearerToken(value string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(value), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
