package flows

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/revocation"
)

var errUserNotFound = errors.New("user not found")

type testEnv struct {
	now   time.Time
	codec *jwt.Codec
	store *revocation.MemoryStore
	ids   atomic.Int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{now: time.Unix(1_700_000_000, 0), store: revocation.NewMemoryStore()}
	codec, err := jwt.NewCodec(jwt.Config{
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		Now:           func() time.Time { return env.now },
	})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	env.codec = codec
	return env
}

func (e *testEnv) issueDeps() IssueDeps {
	return IssueDeps{
		Now:      func() time.Time { return e.now },
		Lifetime: 15 * time.Minute,
		NewTokenID: func() (string, error) {
			return fmt.Sprintf("tid-%d", e.ids.Add(1)), nil
		},
		Encode: e.codec.Encode,
	}
}

func (e *testEnv) refreshDeps() RefreshDeps {
	issue := e.issueDeps()
	return RefreshDeps{
		Decode: e.codec.Decode,
		Issue:  func(s string, l []string) IssueResult { return RunIssue(s, l, issue) },
		Store:  e.store,
	}
}

func TestRunIssueStampsClaims(t *testing.T) {
	env := newTestEnv(t)
	env.now = time.Unix(1_700_000_000, 500_000_000)

	res := RunIssue("alice", []string{"USER", "USER"}, env.issueDeps())
	if res.Failure != IssueFailureNone {
		t.Fatalf("unexpected failure %v: %v", res.Failure, res.Err)
	}
	if res.Claims.Lifetime() != 15*time.Minute {
		t.Fatalf("expected exp-iat == lifetime, got %v", res.Claims.Lifetime())
	}
	if len(res.Claims.Scope) != 1 {
		t.Fatalf("expected de-duplicated scope, got %v", res.Claims.Scope)
	}

	vr := RunValidate(res.Token, ValidateDeps{Decode: env.codec.Decode})
	if vr.Failure != ValidateFailureNone {
		t.Fatalf("fresh token failed validation: %v", vr.Err)
	}
}

func TestRunIssueFailures(t *testing.T) {
	env := newTestEnv(t)
	deps := env.issueDeps()

	if res := RunIssue("  ", nil, deps); res.Failure != IssueFailureSubject {
		t.Fatalf("expected subject failure, got %v", res.Failure)
	}

	deps.UnknownScope = func(l []string) []string { return l }
	if res := RunIssue("alice", []string{"ROOT"}, deps); res.Failure != IssueFailureScope {
		t.Fatalf("expected scope failure, got %v", res.Failure)
	}

	deps = env.issueDeps()
	deps.NewTokenID = func() (string, error) { return "", errors.New("entropy") }
	if res := RunIssue("alice", nil, deps); res.Failure != IssueFailureTokenID {
		t.Fatalf("expected token id failure, got %v", res.Failure)
	}
}

func TestRunIntrospectHonoursRevocation(t *testing.T) {
	env := newTestEnv(t)
	res := RunIssue("alice", []string{"USER"}, env.issueDeps())
	deps := ValidateDeps{Decode: env.codec.Decode, Store: env.store}

	if r := RunIntrospect(context.Background(), res.Token, deps); r.Failure != ValidateFailureNone {
		t.Fatalf("expected active token, got %v", r.Failure)
	}
	lr := RunLogout(context.Background(), res.Token, LogoutDeps{DecodeAllowExpired: env.codec.DecodeAllowExpired, Store: env.store})
	if lr.Failure != LogoutFailureNone {
		t.Fatalf("logout failed: %v", lr.Err)
	}
	for i := 0; i < 3; i++ {
		if r := RunIntrospect(context.Background(), res.Token, deps); r.Failure != ValidateFailureRevoked {
			t.Fatalf("expected revoked, got %v", r.Failure)
		}
	}
	if r := RunValidate(res.Token, deps); r.Failure != ValidateFailureNone {
		t.Fatalf("validate must ignore revocation, got %v", r.Failure)
	}
}

type brokenStore struct{}

func (brokenStore) IsRevoked(context.Context, string) (bool, error) {
	return false, revocation.ErrUnavailable
}

func (brokenStore) RevokeIfAbsent(context.Context, revocation.Record) (bool, error) {
	return false, revocation.ErrUnavailable
}

func TestRunIntrospectStoreFailure(t *testing.T) {
	env := newTestEnv(t)
	res := RunIssue("alice", nil, env.issueDeps())
	r := RunIntrospect(context.Background(), res.Token, ValidateDeps{Decode: env.codec.Decode, Store: brokenStore{}})
	if r.Failure != ValidateFailureStore || !errors.Is(r.Err, revocation.ErrUnavailable) {
		t.Fatalf("expected store failure, got %v %v", r.Failure, r.Err)
	}
}

func TestRunRefreshRotatesOnce(t *testing.T) {
	env := newTestEnv(t)
	orig := RunIssue("alice", []string{"USER"}, env.issueDeps())
	deps := env.refreshDeps()

	env.now = env.now.Add(time.Minute)
	first := RunRefresh(context.Background(), orig.Token, deps)
	if first.Failure != RefreshFailureNone {
		t.Fatalf("first refresh failed: %v %v", first.Failure, first.Err)
	}
	if first.Successor.Subject != "alice" || first.Successor.Scope[0] != "USER" {
		t.Fatalf("successor lost identity: %+v", first.Successor)
	}
	if first.Successor.TokenID == orig.Claims.TokenID {
		t.Fatal("successor must carry a new token id")
	}
	if first.Successor.Lifetime() != 15*time.Minute {
		t.Fatalf("unexpected successor lifetime %v", first.Successor.Lifetime())
	}

	again := RunRefresh(context.Background(), orig.Token, deps)
	if again.Failure != RefreshFailureReuse {
		t.Fatalf("expected reuse, got %v", again.Failure)
	}

	rec, err := env.store.Lookup(context.Background(), orig.Claims.TokenID)
	if err != nil || rec.Reason != revocation.ReasonRefresh {
		t.Fatalf("expected refresh revocation record, got %+v %v", rec, err)
	}
}

func TestRunRefreshConcurrentSingleWinner(t *testing.T) {
	env := newTestEnv(t)
	orig := RunIssue("alice", []string{"USER"}, env.issueDeps())
	deps := env.refreshDeps()

	const workers = 16
	var success, reuse atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			switch RunRefresh(context.Background(), orig.Token, deps).Failure {
			case RefreshFailureNone:
				success.Add(1)
			case RefreshFailureReuse:
				reuse.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if success.Load() != 1 || reuse.Load() != workers-1 {
		t.Fatalf("expected 1 success and %d reuse, got %d and %d", workers-1, success.Load(), reuse.Load())
	}
}

func TestRunRefreshRejectsExpiredAndForged(t *testing.T) {
	env := newTestEnv(t)
	orig := RunIssue("alice", nil, env.issueDeps())
	deps := env.refreshDeps()

	if r := RunRefresh(context.Background(), "garbage", deps); r.Failure != RefreshFailureMalformed {
		t.Fatalf("expected malformed, got %v", r.Failure)
	}

	env.now = env.now.Add(time.Hour)
	if r := RunRefresh(context.Background(), orig.Token, deps); r.Failure != RefreshFailureExpired {
		t.Fatalf("expected expired, got %v", r.Failure)
	}
	if revoked, _ := env.store.IsRevoked(context.Background(), orig.Claims.TokenID); revoked {
		t.Fatal("expired refresh must not write to the store")
	}
}

func TestRunRefreshStoreFailureDoesNotIssue(t *testing.T) {
	env := newTestEnv(t)
	orig := RunIssue("alice", nil, env.issueDeps())
	deps := env.refreshDeps()
	deps.Store = brokenStore{}
	issued := false
	deps.Issue = func(string, []string) IssueResult {
		issued = true
		return IssueResult{}
	}

	r := RunRefresh(context.Background(), orig.Token, deps)
	if r.Failure != RefreshFailureStore || issued {
		t.Fatalf("expected store failure without issuance, got %v issued=%v", r.Failure, issued)
	}
}

func TestRunRefreshIssueFailureKeepsPredecessorRevoked(t *testing.T) {
	env := newTestEnv(t)
	orig := RunIssue("alice", nil, env.issueDeps())
	deps := env.refreshDeps()
	deps.Issue = func(string, []string) IssueResult {
		return IssueResult{Failure: IssueFailureEncode, Err: jwt.ErrEncoding}
	}

	r := RunRefresh(context.Background(), orig.Token, deps)
	if r.Failure != RefreshFailureIssue {
		t.Fatalf("expected issue failure, got %v", r.Failure)
	}
	if revoked, _ := env.store.IsRevoked(context.Background(), orig.Claims.TokenID); !revoked {
		t.Fatal("predecessor must stay revoked after failed issuance")
	}
}

func TestRunLogoutAcceptsExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	orig := RunIssue("alice", nil, env.issueDeps())
	env.now = env.now.Add(time.Hour)

	deps := LogoutDeps{DecodeAllowExpired: env.codec.DecodeAllowExpired, Store: env.store}
	if r := RunLogout(context.Background(), orig.Token, deps); r.Failure != LogoutFailureNone {
		t.Fatalf("logout of expired token failed: %v", r.Err)
	}
	if r := RunLogout(context.Background(), orig.Token, deps); r.Failure != LogoutFailureNone {
		t.Fatalf("second logout failed: %v", r.Err)
	}
	if r := RunLogout(context.Background(), "a.b.c", deps); r.Failure != LogoutFailureDecode {
		t.Fatalf("expected decode failure, got %v", r.Failure)
	}
}

func loginDeps(env *testEnv, users map[string]LoginUserRecord) LoginDeps {
	issue := env.issueDeps()
	return LoginDeps{
		GetUserByIdentifier: func(_ context.Context, id string) (LoginUserRecord, error) {
			u, ok := users[id]
			if !ok {
				return LoginUserRecord{}, errUserNotFound
			}
			return u, nil
		},
		UserNotFound: errUserNotFound,
		VerifyPassword: func(password, hash string) (bool, error) {
			return password == hash, nil
		},
		Issue: func(s string, l []string) IssueResult { return RunIssue(s, l, issue) },
	}
}

func TestRunLogin(t *testing.T) {
	env := newTestEnv(t)
	users := map[string]LoginUserRecord{"alice": {Identifier: "alice", PasswordHash: "pw", Roles: []string{"USER"}}}
	deps := loginDeps(env, users)

	ok := RunLogin(context.Background(), "alice", "pw", deps)
	if ok.Failure != LoginFailureNone || ok.Issued.Claims.Scope[0] != "USER" {
		t.Fatalf("expected login success with USER scope, got %+v", ok)
	}

	wrong := RunLogin(context.Background(), "alice", "nope", deps)
	unknown := RunLogin(context.Background(), "bob", "pw", deps)
	if wrong.Failure != LoginFailureInvalidCredentials || unknown.Failure != LoginFailureInvalidCredentials {
		t.Fatalf("expected invalid credentials for both, got %v and %v", wrong.Failure, unknown.Failure)
	}
	if wrong.Err != nil || unknown.Err != nil {
		t.Fatal("invalid credential results must not leak a cause")
	}

	deps.GetUserByIdentifier = func(context.Context, string) (LoginUserRecord, error) {
		return LoginUserRecord{}, errors.New("db down")
	}
	if r := RunLogin(context.Background(), "alice", "pw", deps); r.Failure != LoginFailureUserStore {
		t.Fatalf("expected user store failure, got %v", r.Failure)
	}
}

func TestRunLoginUnknownUserVerifiesDecoy(t *testing.T) {
	env := newTestEnv(t)
	users := map[string]LoginUserRecord{"alice": {Identifier: "alice", PasswordHash: "pw"}}
	deps := loginDeps(env, users)
	deps.DecoyHash = "decoy"
	verify := deps.VerifyPassword
	var hashes []string
	deps.VerifyPassword = func(password, hash string) (bool, error) {
		hashes = append(hashes, hash)
		return verify(password, hash)
	}

	if r := RunLogin(context.Background(), "bob", "decoy", deps); r.Failure != LoginFailureInvalidCredentials {
		t.Fatalf("expected invalid credentials even when the decoy matches, got %v", r.Failure)
	}
	if r := RunLogin(context.Background(), "alice", "wrong", deps); r.Failure != LoginFailureInvalidCredentials {
		t.Fatalf("expected invalid credentials, got %v", r.Failure)
	}
	if len(hashes) != 2 || hashes[0] != "decoy" || hashes[1] != "pw" {
		t.Fatalf("expected one verification per failed login, got %v", hashes)
	}
}

func TestRunLoginThrottle(t *testing.T) {
	env := newTestEnv(t)
	deps := loginDeps(env, map[string]LoginUserRecord{})
	errLimited := errors.New("limited")
	attempts := 0
	deps.CheckLoginRate = func(context.Context, string, string) error {
		if attempts >= 2 {
			return errLimited
		}
		return nil
	}
	deps.IncrementLoginRate = func(context.Context, string, string) error {
		attempts++
		return nil
	}

	for i := 0; i < 2; i++ {
		if r := RunLogin(context.Background(), "bob", "x", deps); r.Failure != LoginFailureInvalidCredentials {
			t.Fatalf("attempt %d: expected invalid credentials, got %v", i, r.Failure)
		}
	}
	if r := RunLogin(context.Background(), "bob", "x", deps); r.Failure != LoginFailureRateLimited {
		t.Fatalf("expected rate limited, got %v", r.Failure)
	}
}
