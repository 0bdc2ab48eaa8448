package goToken

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goToken/password"
)

// Config groups every tunable of the engine. Start from [DefaultConfig],
// override what you need and pass it to [Builder.WithConfig]. The builder
// keeps its own copy, so later mutation does not reach a running engine.
type Config struct {
	JWT        JWTConfig
	Revocation RevocationConfig
	Purge      PurgeConfig
	Security   SecurityConfig
	Password   PasswordConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

// JWTConfig carries the signing material and token shape. Changing the key
// invalidates every outstanding token.
type JWTConfig struct {
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Lifetime      time.Duration
	Issuer        string
	Audience      string
	KeyID         string
	// MaxFutureIAT tolerates clock skew between issuers and validators.
	MaxFutureIAT time.Duration
}

// RevocationConfig tunes the Redis revocation store. It is ignored when a
// store is injected with [Builder.WithRevocationStore].
type RevocationConfig struct {
	RedisPrefix string
	// RetentionGrace is added to a record's remaining token lifetime to form
	// its Redis TTL. Negative disables key expiry; purge is then the only
	// way records leave.
	RetentionGrace time.Duration
	PurgeBatch     int
}

// PurgeConfig controls the background purge loop. Interval <= 0 disables it.
type PurgeConfig struct {
	Interval time.Duration
	Timeout  time.Duration
}

// SecurityConfig holds the production guard rails and the login throttle.
// The throttle needs a Redis client; without one it is skipped.
type SecurityConfig struct {
	ProductionMode        bool
	EnableLoginThrottle   bool
	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
}

// PasswordConfig holds the argon2id cost used by [Engine.Login] and the
// user stores.
type PasswordConfig struct {
	Memory           uint32 // KiB
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int // 0 selects password.DefaultMaxPasswordBytes
}

// Argon2 converts the settings into the password package's form.
func (p PasswordConfig) Argon2() password.Config {
	return password.Config{
		Memory:           p.Memory,
		Time:             p.Time,
		Parallelism:      p.Parallelism,
		SaltLength:       p.SaltLength,
		KeyLength:        p.KeyLength,
		MaxPasswordBytes: p.MaxPasswordBytes,
	}
}

// NewHasher returns an argon2id hasher for these settings.
func (p PasswordConfig) NewHasher() (*password.Argon2, error) {
	return password.NewArgon2(p.Argon2())
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles the in-process counters and the validate latency
// histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns a development-friendly configuration. The signing
// key is left empty and must be set before Build.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			SigningMethod: "hs256",
			Lifetime:      15 * time.Minute,
			MaxFutureIAT:  10 * time.Minute,
		},
		Revocation: RevocationConfig{
			RedisPrefix:    "gt",
			RetentionGrace: time.Minute,
			PurgeBatch:     500,
		},
		Purge: PurgeConfig{
			Interval: 5 * time.Minute,
			Timeout:  30 * time.Second,
		},
		Security: SecurityConfig{
			EnableLoginThrottle:   true,
			MaxLoginAttempts:      5,
			LoginCooldownDuration: 15 * time.Minute,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Audit: AuditConfig{
			BufferSize: 1024,
			DropIfFull: true,
		},
	}
}

func (c Config) clone() Config {
	c.JWT.PrivateKey = bytes.Clone(c.JWT.PrivateKey)
	c.JWT.PublicKey = bytes.Clone(c.JWT.PublicKey)
	return c
}

// ConfigError names the setting that failed validation.
type ConfigError struct {
	Field   string
	Problem string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Problem)
}

type configRule struct {
	failed  bool
	field   string
	problem string
}

// Validate returns a [*ConfigError] for the first problem found, or nil.
func (c *Config) Validate() error {
	method := strings.ToLower(c.JWT.SigningMethod)
	hs256 := method == "hs256"
	prod := c.Security.ProductionMode
	throttle := c.Security.EnableLoginThrottle

	rules := []configRule{
		{c.JWT.Lifetime < time.Second, "JWT.Lifetime", "must be at least one second"},
		{!hs256 && method != "ed25519", "JWT.SigningMethod", "must be hs256 or ed25519"},
		{hs256 && len(c.JWT.PrivateKey) == 0, "JWT.PrivateKey", "hs256 needs a secret"},
		{method == "ed25519" && len(c.JWT.PrivateKey) == 0 && len(c.JWT.PublicKey) == 0,
			"JWT.PrivateKey", "ed25519 needs a private or public key"},
		{c.JWT.MaxFutureIAT < 0, "JWT.MaxFutureIAT", "must not be negative"},
		{strings.TrimSpace(c.Revocation.RedisPrefix) == "", "Revocation.RedisPrefix", "must not be blank"},
		{c.Revocation.PurgeBatch < 0, "Revocation.PurgeBatch", "must not be negative"},
		{c.Purge.Interval > 0 && c.Purge.Timeout <= 0, "Purge.Timeout", "must be positive when purge runs"},
		{throttle && c.Security.MaxLoginAttempts <= 0, "Security.MaxLoginAttempts", "must be positive with the throttle on"},
		{throttle && c.Security.LoginCooldownDuration <= 0, "Security.LoginCooldownDuration", "must be positive with the throttle on"},
		{c.Audit.Enabled && c.Audit.BufferSize <= 0, "Audit.BufferSize", "must be positive when audit is on"},
		{prod && c.JWT.Lifetime > 15*time.Minute, "JWT.Lifetime", "production mode allows at most 15m"},
		{prod && hs256 && len(c.JWT.PrivateKey) < 32, "JWT.PrivateKey", "production mode needs a 32 byte hs256 secret"},
		{prod && c.Password.Memory < 64*1024, "Password.Memory", "production mode needs at least 64 MiB"},
		{prod && c.Password.Time < 2, "Password.Time", "production mode needs at least 2 passes"},
	}
	for _, r := range rules {
		if r.failed {
			return &ConfigError{Field: r.field, Problem: r.problem}
		}
	}
	if _, err := c.Password.NewHasher(); err != nil {
		return &ConfigError{Field: "Password", Problem: err.Error()}
	}
	return nil
}
