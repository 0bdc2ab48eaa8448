package revocation

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable wraps every backend failure (network, driver, script).
var ErrUnavailable = errors.New("revocation store unavailable")

// ErrNotFound is returned by Lookup when no record exists for the token id.
var ErrNotFound = errors.New("revocation record not found")

// ErrInvalidRecord is returned when a record lacks a token id or expiry.
var ErrInvalidRecord = errors.New("invalid revocation record")

// ErrCorruptRecord is returned when a stored record cannot be decoded.
var ErrCorruptRecord = errors.New("revocation record corrupt")

// Reason records why a token was revoked. It is informational only.
type Reason string

const (
	ReasonLogout  Reason = "logout"
	ReasonRefresh Reason = "refresh"
	ReasonAdmin   Reason = "admin"
)

// Record is one denylist entry.
type Record struct {
	TokenID   string
	RawToken  string
	ExpiresAt time.Time
	RevokedAt time.Time
	Reason    Reason
}

func (r Record) validate() error {
	if r.TokenID == "" {
		return errors.Join(ErrInvalidRecord, errors.New("missing token id"))
	}
	if r.ExpiresAt.IsZero() {
		return errors.Join(ErrInvalidRecord, errors.New("missing expiry"))
	}
	return nil
}

// Store is the denylist contract shared by all backends.
//
// All methods are safe for concurrent use. Backend failures wrap
// [ErrUnavailable].
type Store interface {
	// Revoke inserts rec unless a record for rec.TokenID already exists, in
	// which case the existing record is left untouched. Repeated calls are
	// harmless.
	Revoke(ctx context.Context, rec Record) error
	// RevokeIfAbsent inserts rec atomically and reports whether this call
	// created it. Among concurrent callers for one token id exactly one
	// observes true.
	RevokeIfAbsent(ctx context.Context, rec Record) (bool, error)
	// IsRevoked reports whether a record exists for tokenID.
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	// Lookup returns the stored record or [ErrNotFound].
	Lookup(ctx context.Context, tokenID string) (Record, error)
	// PurgeExpired deletes records whose ExpiresAt is at or before now and
	// returns how many were removed.
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// stamp fills RevokedAt when the caller left it empty.
func stamp(rec Record, now func() time.Time) Record {
	if rec.RevokedAt.IsZero() {
		rec.RevokedAt = now()
	}
	return rec
}
