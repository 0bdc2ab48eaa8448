package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func newHSCodec(t *testing.T, clock *fakeClock) *Codec {
	t.Helper()
	c, err := NewCodec(Config{SigningMethod: MethodHS256, PrivateKey: testSecret, Now: clock.Now})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	return c
}

func sampleClaims(now time.Time) Claims {
	return Claims{
		Subject:   "alice",
		TokenID:   "7b0f8a5e-2f3c-4c1b-9d0a-1e2f3a4b5c6d",
		Scope:     []string{"USER"},
		IssuedAt:  now,
		ExpiresAt: now.Add(15 * time.Minute),
	}
}

func TestEncodeDecodeKeepsClaims(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := newHSCodec(t, clock)

	token, err := c.Encode(sampleClaims(clock.now))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := c.Decode(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Subject != "alice" || got.TokenID != "7b0f8a5e-2f3c-4c1b-9d0a-1e2f3a4b5c6d" {
		t.Fatalf("unexpected identity claims: %+v", got)
	}
	if len(got.Scope) != 1 || got.Scope[0] != "USER" {
		t.Fatalf("unexpected scope: %v", got.Scope)
	}
	if got.Lifetime() != 15*time.Minute {
		t.Fatalf("unexpected lifetime %v", got.Lifetime())
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := newHSCodec(t, clock)
	a, err := c.Encode(sampleClaims(clock.now))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	b, err := c.Encode(sampleClaims(clock.now))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if a != b {
		t.Fatal("expected identical claims to encode identically")
	}
}

func TestEncodeRejectsIncompleteClaims(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := newHSCodec(t, clock)

	cases := map[string]func(*Claims){
		"no subject":     func(cl *Claims) { cl.Subject = " " },
		"no token id":    func(cl *Claims) { cl.TokenID = "" },
		"no issued-at":   func(cl *Claims) { cl.IssuedAt = time.Time{} },
		"exp before iat": func(cl *Claims) { cl.ExpiresAt = cl.IssuedAt },
		"sub-second":     func(cl *Claims) { cl.ExpiresAt = cl.IssuedAt.Add(999 * time.Millisecond) },
		"same second": func(cl *Claims) {
			cl.IssuedAt = cl.IssuedAt.Add(200 * time.Millisecond)
			cl.ExpiresAt = cl.IssuedAt.Add(700 * time.Millisecond)
		},
	}
	for name, mutate := range cases {
		cl := sampleClaims(clock.now)
		mutate(&cl)
		if _, err := c.Encode(cl); !errors.Is(err, ErrEncoding) {
			t.Fatalf("%s: expected ErrEncoding, got %v", name, err)
		}
	}
}

func TestDecodeExpiryBoundary(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := newHSCodec(t, clock)

	cl := sampleClaims(clock.now.Add(-time.Hour))
	cl.ExpiresAt = clock.now.Add(-time.Millisecond)
	token, err := c.Encode(cl)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := c.Decode(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}

	cl.ExpiresAt = clock.now
	token, _ = c.Encode(cl)
	if _, err := c.Decode(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected token expiring exactly now to be expired, got %v", err)
	}

	cl.ExpiresAt = clock.now.Add(time.Second)
	token, _ = c.Encode(cl)
	if _, err := c.Decode(token); err != nil {
		t.Fatalf("expected token to be valid one second before expiry: %v", err)
	}
}

func TestDecodeAllowExpiredReturnsClaims(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := newHSCodec(t, clock)

	token, err := c.Encode(sampleClaims(clock.now))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	clock.now = clock.now.Add(time.Hour)

	if _, err := c.Decode(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected expired, got %v", err)
	}
	got, err := c.DecodeAllowExpired(token)
	if err != nil {
		t.Fatalf("decode allow expired: %v", err)
	}
	if got.Subject != "alice" {
		t.Fatalf("unexpected subject %q", got.Subject)
	}
}

func TestDecodeSignatureCheckedBeforeExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := newHSCodec(t, clock)
	other, err := NewCodec(Config{SigningMethod: MethodHS256, PrivateKey: []byte("another-secret-another-secret-xx"), Now: clock.Now})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}

	token, err := other.Encode(sampleClaims(clock.now.Add(-time.Hour)))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := c.Decode(token); !errors.Is(err, ErrSignature) {
		t.Fatalf("expected ErrSignature for expired forged token, got %v", err)
	}
	if _, err := c.DecodeAllowExpired(token); !errors.Is(err, ErrSignature) {
		t.Fatalf("expected ErrSignature from DecodeAllowExpired, got %v", err)
	}
}

func TestDecodeRejectsMutatedPayload(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := newHSCodec(t, clock)
	token, err := c.Encode(sampleClaims(clock.now))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	forged, err := newHSCodec(t, clock).Encode(Claims{
		Subject: "mallory", TokenID: "x", Scope: []string{"ADMIN"},
		IssuedAt: clock.now, ExpiresAt: clock.now.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	parts := strings.Split(token, ".")
	forgedParts := strings.Split(forged, ".")
	spliced := parts[0] + "." + forgedParts[1] + "." + parts[2]
	if _, err := c.Decode(spliced); !errors.Is(err, ErrSignature) {
		t.Fatalf("expected ErrSignature for spliced payload, got %v", err)
	}
}

func TestDecodeMalformed(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := newHSCodec(t, clock)
	for _, input := range []string{"", "not.a.jwt", "abc", "a.b"} {
		if _, err := c.Decode(input); !errors.Is(err, ErrMalformedToken) {
			t.Fatalf("input %q: expected ErrMalformedToken, got %v", input, err)
		}
	}
}

func TestDecodeRejectsMissingTokenID(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := newHSCodec(t, clock)

	raw := gjwt.NewWithClaims(gjwt.SigningMethodHS256, gjwt.RegisteredClaims{
		Subject:   "alice",
		IssuedAt:  gjwt.NewNumericDate(clock.now),
		ExpiresAt: gjwt.NewNumericDate(clock.now.Add(time.Minute)),
	})
	token, err := raw.SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := c.Decode(token); !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("expected ErrMalformedToken, got %v", err)
	}
}

func TestDecodeRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	c, err := NewCodec(Config{SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	if c.CanSign() {
		t.Fatal("verify-only codec must not report signing ability")
	}

	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS256, gjwt.RegisteredClaims{
		Subject: "alice", ID: "id",
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	token, err := tok.SignedString([]byte("secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := c.Decode(token); !errors.Is(err, ErrSignature) {
		t.Fatalf("expected ErrSignature, got %v", err)
	}
}

func TestIssuerAudienceAndKeyID(t *testing.T) {
	_, priv := newEdKeys(t)
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c, err := NewCodec(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		Issuer:        "gotoken",
		Audience:      "api",
		KeyID:         "k1",
		Now:           clock.Now,
	})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	token, err := c.Encode(sampleClaims(clock.now))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := c.Decode(token); err != nil {
		t.Fatalf("expected valid token: %v", err)
	}

	sign := func(iss, aud, kid string) string {
		tok := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, wireClaims{RegisteredClaims: gjwt.RegisteredClaims{
			Subject: "alice", ID: "id", Issuer: iss, Audience: gjwt.ClaimStrings{aud},
			IssuedAt:  gjwt.NewNumericDate(clock.now),
			ExpiresAt: gjwt.NewNumericDate(clock.now.Add(time.Minute)),
		}})
		if kid != "" {
			tok.Header["kid"] = kid
		}
		s, err := tok.SignedString(priv)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}

	if _, err := c.Decode(sign("other", "api", "k1")); !errors.Is(err, ErrSignature) {
		t.Fatalf("expected wrong issuer to fail with ErrSignature, got %v", err)
	}
	if _, err := c.Decode(sign("gotoken", "other-api", "k1")); !errors.Is(err, ErrSignature) {
		t.Fatalf("expected wrong audience to fail with ErrSignature, got %v", err)
	}
	if _, err := c.DecodeAllowExpired(sign("other", "api", "k1")); !errors.Is(err, ErrSignature) {
		t.Fatalf("expected DecodeAllowExpired to check issuer, got %v", err)
	}
	if _, err := c.Decode(sign("gotoken", "api", "")); !errors.Is(err, ErrSignature) {
		t.Fatalf("expected missing kid to fail, got %v", err)
	}
	if _, err := c.Decode(sign("gotoken", "api", "k2")); !errors.Is(err, ErrSignature) {
		t.Fatalf("expected unknown kid to fail, got %v", err)
	}
}

func TestDecodeRejectsFarFutureIssuedAt(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := newHSCodec(t, clock)
	cl := sampleClaims(clock.now.Add(time.Hour))
	token, err := c.Encode(cl)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := c.Decode(token); !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("expected ErrMalformedToken, got %v", err)
	}
}

func TestNewCodecRejectsBadConfig(t *testing.T) {
	if _, err := NewCodec(Config{SigningMethod: MethodHS256}); err == nil {
		t.Fatal("expected missing hs256 secret to fail")
	}
	if _, err := NewCodec(Config{SigningMethod: MethodEd25519}); err == nil {
		t.Fatal("expected missing ed25519 keys to fail")
	}
	if _, err := NewCodec(Config{SigningMethod: "rs256", PrivateKey: testSecret}); err == nil {
		t.Fatal("expected unsupported method to fail")
	}
	if _, err := NewCodec(Config{SigningMethod: MethodEd25519, PrivateKey: []byte("short")}); err == nil {
		t.Fatal("expected invalid ed25519 key to fail")
	}
}
