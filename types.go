package goToken

import (
	"context"
	"io"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/goToken/internal/audit"
)

// UserProvider resolves login identifiers for [Engine.Login]. Unknown
// identifiers must yield an error wrapping [ErrUserNotFound]; every other
// error counts as a store outage. The userstore package ships memory and
// GORM implementations.
type UserProvider interface {
	GetUserByIdentifier(ctx context.Context, identifier string) (UserRecord, error)
}

// UserRecord is what login needs from a user: the stored argon2id hash and
// the roles that become the token scope.
type UserRecord struct {
	Identifier   string
	PasswordHash string
	Roles        []string
}

// Introspection describes a token as seen by [Engine.IntrospectToken].
// Only Active is set for inactive tokens.
type Introspection struct {
	Active    bool
	Subject   string
	Scope     []string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Audit types. Events never carry raw tokens, only the token id.
type (
	AuditEvent     = internalaudit.Event
	AuditSink      = internalaudit.Sink
	NoOpSink       = internalaudit.NoOpSink
	ChannelSink    = internalaudit.ChannelSink
	JSONWriterSink = internalaudit.JSONWriterSink
	SlogSink       = internalaudit.SlogSink
)

// NewChannelSink returns a sink that delivers events on a channel of the
// given capacity.
func NewChannelSink(buffer int) *ChannelSink { return internalaudit.NewChannelSink(buffer) }

// NewJSONWriterSink returns a sink writing one JSON object per line to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink { return internalaudit.NewJSONWriterSink(w) }

// NewSlogSink returns a sink that logs each event; nil uses slog.Default.
func NewSlogSink(logger *slog.Logger) *SlogSink { return internalaudit.NewSlogSink(logger) }
