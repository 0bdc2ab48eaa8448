package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MrEthical07/goToken/scope"
)

// SigningMethod selects the JWS algorithm used by a [Codec].
type SigningMethod string

const (
	// MethodEd25519 signs with EdDSA over an Ed25519 key pair.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with HMAC-SHA256 over a shared secret.
	MethodHS256 SigningMethod = "hs256"
)

// Config defines the single active signing key and the claim constraints
// enforced on decode.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	SigningMethod SigningMethod
	// PrivateKey is the HS256 secret or the Ed25519 private key (raw or PEM).
	PrivateKey []byte
	// PublicKey is the Ed25519 public key (raw or PEM). Unused for HS256.
	PublicKey    []byte
	Issuer       string
	Audience     string
	KeyID        string
	MaxFutureIAT time.Duration
	// Now overrides the wall clock. Nil means time.Now.
	Now func() time.Time
}

// Claims is the decoded payload of a token.
type Claims struct {
	Subject   string
	TokenID   string
	Scope     []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Lifetime returns ExpiresAt minus IssuedAt.
func (c *Claims) Lifetime() time.Duration {
	return c.ExpiresAt.Sub(c.IssuedAt)
}

type wireClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// Codec signs and verifies tokens. A Codec is safe for concurrent use.
type Codec struct {
	config    Config
	method    jwt.SigningMethod
	signKey   interface{}
	verifyKey interface{}
	parser    *jwt.Parser
	rawParser *jwt.Parser
}

// NewCodec validates cfg, resolves the key material once, and returns a codec.
//
// NewCodec returns an error when the signing method is unknown or the keys do
// not fit it.
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	c := &Codec{config: cfg}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires private key")
		}
		c.method = jwt.SigningMethodHS256
		c.signKey = cfg.PrivateKey
		c.verifyKey = cfg.PrivateKey
	case MethodEd25519:
		c.method = jwt.SigningMethodEdDSA
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
			c.signKey = priv
		}
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return nil, err
			}
			c.verifyKey = pub
		} else if priv, ok := c.signKey.(ed25519.PrivateKey); ok {
			c.verifyKey = priv.Public().(ed25519.PublicKey)
		}
		if c.verifyKey == nil {
			return nil, errors.New("ed25519 requires public or private key")
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithTimeFunc(cfg.Now),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		options = append(options, jwt.WithAudience(cfg.Audience))
	}
	c.parser = jwt.NewParser(options...)
	c.rawParser = jwt.NewParser(
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	return c, nil
}

// CanSign reports whether the codec holds a signing key. An Ed25519 codec
// configured with only a public key can verify but not issue.
func (c *Codec) CanSign() bool {
	return c.signKey != nil
}

// Encode signs claims into a compact JWS. Identical claims produce identical
// tokens.
//
// Encode fails with [ErrEncoding] when the subject, token id, issued-at, or
// expiry is missing, or when expiry is not after issued-at once both are
// truncated to the second precision carried on the wire.
func (c *Codec) Encode(claims Claims) (string, error) {
	if strings.TrimSpace(claims.Subject) == "" {
		return "", fmt.Errorf("%w: missing subject", ErrEncoding)
	}
	if strings.TrimSpace(claims.TokenID) == "" {
		return "", fmt.Errorf("%w: missing token id", ErrEncoding)
	}
	if claims.IssuedAt.IsZero() || claims.ExpiresAt.IsZero() {
		return "", fmt.Errorf("%w: missing issued-at or expiry", ErrEncoding)
	}
	if !claims.ExpiresAt.After(claims.IssuedAt) {
		return "", fmt.Errorf("%w: expiry must be after issued-at", ErrEncoding)
	}
	if !claims.ExpiresAt.Truncate(time.Second).After(claims.IssuedAt.Truncate(time.Second)) {
		return "", fmt.Errorf("%w: expiry collapses onto issued-at at second precision", ErrEncoding)
	}
	if c.signKey == nil {
		return "", fmt.Errorf("%w: no signing key configured", ErrEncoding)
	}

	wire := wireClaims{
		Scope: scope.Format(claims.Scope),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.Subject,
			ID:        claims.TokenID,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
			Issuer:    c.config.Issuer,
		},
	}
	if c.config.Audience != "" {
		wire.Audience = jwt.ClaimStrings{c.config.Audience}
	}

	token := jwt.NewWithClaims(c.method, wire)
	if c.config.KeyID != "" {
		token.Header["kid"] = c.config.KeyID
	}
	signed, err := token.SignedString(c.signKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return signed, nil
}

// Decode verifies the signature, then the claim structure, then expiry.
//
// Errors wrap [ErrMalformedToken], [ErrSignature], or [ErrExpiredToken].
func (c *Codec) Decode(tokenStr string) (*Claims, error) {
	wire := &wireClaims{}
	_, err := c.parser.ParseWithClaims(tokenStr, wire, c.keyFunc)
	if err != nil {
		return nil, classify(err)
	}
	return c.finish(wire)
}

// DecodeAllowExpired is Decode without the expiry check. Signature, issuer,
// audience, and required claims are still enforced.
func (c *Codec) DecodeAllowExpired(tokenStr string) (*Claims, error) {
	wire := &wireClaims{}
	_, err := c.rawParser.ParseWithClaims(tokenStr, wire, c.keyFunc)
	if err != nil {
		return nil, classify(err)
	}
	if c.config.Issuer != "" && wire.Issuer != c.config.Issuer {
		return nil, fmt.Errorf("%w: issuer mismatch", ErrSignature)
	}
	if c.config.Audience != "" && !hasAudience(wire.Audience, c.config.Audience) {
		return nil, fmt.Errorf("%w: audience mismatch", ErrSignature)
	}
	return c.finish(wire)
}

func (c *Codec) finish(wire *wireClaims) (*Claims, error) {
	if wire.Subject == "" || wire.ID == "" || wire.IssuedAt == nil || wire.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing required claim", ErrMalformedToken)
	}
	if wire.IssuedAt.Time.After(c.config.Now().Add(c.config.MaxFutureIAT)) {
		return nil, fmt.Errorf("%w: iat too far in the future", ErrMalformedToken)
	}
	return &Claims{
		Subject:   wire.Subject,
		TokenID:   wire.ID,
		Scope:     scope.Parse(wire.Scope),
		IssuedAt:  wire.IssuedAt.Time,
		ExpiresAt: wire.ExpiresAt.Time,
	}, nil
}

func (c *Codec) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != c.method.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}
	if c.config.KeyID != "" {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		if kid != c.config.KeyID {
			return nil, errors.New("unknown kid")
		}
	}
	return c.verifyKey, nil
}

// classify maps parser errors onto the codec's sentinels. Structural problems
// win over signature problems, which win over expiry.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenInvalidAudience):
		return fmt.Errorf("%w: %v", ErrSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpiredToken, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
}

func hasAudience(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	switch len(key) {
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(key), nil
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
