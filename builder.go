package goToken

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/goToken/internal"
	internalaudit "github.com/MrEthical07/goToken/internal/audit"
	"github.com/MrEthical07/goToken/internal/rate"
	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/revocation"
	"github.com/MrEthical07/goToken/scope"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. A Builder is single-use: Build may be
// called once.
//
// Builder is not safe for concurrent use.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  revocation.Store

	scopes []string

	userProvider UserProvider
	auditSink    AuditSink
	logger       *slog.Logger
	now          func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg.clone()
	return b
}

// WithRedis sets the client used for the Redis revocation store and the
// login throttle. Ignored for revocation when [Builder.WithRevocationStore]
// is also set.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithRevocationStore injects a revocation backend (memory, PostgreSQL, or a
// custom implementation).
func (b *Builder) WithRevocationStore(store revocation.Store) *Builder {
	b.store = store
	return b
}

// WithScopes registers the role labels tokens may carry. Without it any
// label is accepted.
func (b *Builder) WithScopes(labels []string) *Builder {
	b.scopes = append([]string(nil), labels...)
	return b
}

// WithUserProvider enables [Engine.Login].
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the wall clock used for issuance, validation and purge.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready [Engine]. When
// Purge.Interval > 0 the background purger is started; call [Engine.Close]
// to stop it.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config.clone()
	cfg.JWT.SigningMethod = strings.ToLower(cfg.JWT.SigningMethod)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	store := b.store
	if store == nil {
		if b.redis == nil {
			return nil, errors.New("revocation store or redis client required")
		}
		store = revocation.NewRedisStore(b.redis, revocation.RedisOptions{
			Prefix:     cfg.Revocation.RedisPrefix,
			Grace:      cfg.Revocation.RetentionGrace,
			PurgeBatch: cfg.Revocation.PurgeBatch,
			Now:        now,
		})
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	var registry *scope.Registry
	if len(b.scopes) > 0 {
		r, err := scope.NewRegistry(b.scopes...)
		if err != nil {
			return nil, err
		}
		r.Freeze()
		registry = r
	}

	codec, err := jwt.NewCodec(jwt.Config{
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cfg.JWT.PrivateKey,
		PublicKey:     cfg.JWT.PublicKey,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		KeyID:         cfg.JWT.KeyID,
		MaxFutureIAT:  cfg.JWT.MaxFutureIAT,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:       cfg.clone(),
		codec:        codec,
		store:        store,
		registry:     registry,
		userProvider: b.userProvider,
		logger:       logger,
		now:          now,
		newTokenID:   internal.NewTokenID,
	}

	if b.userProvider != nil {
		ph, err := cfg.Password.NewHasher()
		if err != nil {
			return nil, err
		}
		secret, err := internal.NewTokenID()
		if err != nil {
			return nil, err
		}
		decoy, err := ph.Hash(secret)
		if err != nil {
			return nil, err
		}
		engine.passwordHash = ph
		engine.decoyHash = decoy
	}

	if cfg.Security.EnableLoginThrottle && b.redis != nil {
		engine.rateLimiter = rate.New(b.redis, rate.Config{
			Prefix:                cfg.Revocation.RedisPrefix,
			EnableIPThrottle:      cfg.Security.EnableIPThrottle,
			MaxLoginAttempts:      cfg.Security.MaxLoginAttempts,
			LoginCooldownDuration: cfg.Security.LoginCooldownDuration,
		})
	}

	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		Now:        now,
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)
	engine.flowDeps = engine.buildFlowDeps()

	engine.purger = revocation.NewPurger(store, revocation.PurgerConfig{
		Interval: cfg.Purge.Interval,
		Timeout:  cfg.Purge.Timeout,
		Now:      now,
		Logger:   logger,
		OnPurge:  engine.emitPurge,
	})
	engine.purger.Start()

	b.built = true

	return engine, nil
}
