// Package revocation provides the token denylist: records keyed by token id
// that mark a token as unusable for the rest of its natural lifetime.
//
// # Implementations
//
//   - [MemoryStore]: a mutex-guarded map for single-process deployments and tests.
//   - [RedisStore]: one Lua script per write, so insert-if-absent and the expiry
//     index update happen atomically.
//   - [PostgresStore]: INSERT ... ON CONFLICT DO NOTHING over database/sql with
//     the pgx driver; schema managed by goose.
//
// # Architecture boundaries
//
// This package stores records. It does NOT parse or verify tokens; callers
// decode a token first and hand over its id and expiry.
//
// # What this package must NOT do
//
//   - Import goToken or jwt (no upward imports).
//   - Report a record as absent because it is past its expiry. Expired records
//     stay revoked until [Store.PurgeExpired] removes them.
package revocation
