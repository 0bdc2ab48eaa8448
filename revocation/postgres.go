package revocation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/MrEthical07/goToken/revocation/migrations"
)

// DBTX is the subset of database/sql used by [PostgresStore].
// Both *sql.DB and *sql.Tx satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore is a PostgreSQL-backed [Store]. The primary key on token_id
// is what makes RevokeIfAbsent linearizable.
type PostgresStore struct {
	db  DBTX
	now func() time.Time
}

// NewPostgresStore binds a store to db.
func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// OpenPostgres opens a connection pool through the pgx stdlib driver and
// verifies it with a ping.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return db, nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded schema migrations to db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("revocation migrations: %w", err)
	}
	return nil
}

// Revoke implements [Store].
func (p *PostgresStore) Revoke(ctx context.Context, rec Record) error {
	_, err := p.RevokeIfAbsent(ctx, rec)
	return err
}

// RevokeIfAbsent implements [Store]. Exactly one inserted row means this call
// created the record.
func (p *PostgresStore) RevokeIfAbsent(ctx context.Context, rec Record) (bool, error) {
	if err := rec.validate(); err != nil {
		return false, err
	}
	rec = stamp(rec, p.now)

	query := `
		INSERT INTO revoked_tokens (token_id, raw_token, expires_at, revoked_at, reason)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (token_id) DO NOTHING
	`
	res, err := p.db.ExecContext(ctx, query, rec.TokenID, rec.RawToken, rec.ExpiresAt.UTC(), rec.RevokedAt.UTC(), string(rec.Reason))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n == 1, nil
}

// IsRevoked implements [Store].
func (p *PostgresStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE token_id = $1)`
	var exists bool
	if err := p.db.QueryRowContext(ctx, query, tokenID).Scan(&exists); err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return exists, nil
}

// Lookup implements [Store].
func (p *PostgresStore) Lookup(ctx context.Context, tokenID string) (Record, error) {
	query := `
		SELECT token_id, raw_token, expires_at, revoked_at, reason
		FROM revoked_tokens
		WHERE token_id = $1
	`
	var (
		rec    Record
		reason string
	)
	err := p.db.QueryRowContext(ctx, query, tokenID).Scan(&rec.TokenID, &rec.RawToken, &rec.ExpiresAt, &rec.RevokedAt, &reason)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	rec.Reason = Reason(reason)
	return rec, nil
}

// PurgeExpired implements [Store].
func (p *PostgresStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	query := `DELETE FROM revoked_tokens WHERE expires_at <= $1`
	res, err := p.db.ExecContext(ctx, query, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return int(n), nil
}
