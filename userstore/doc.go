// Package userstore provides [goToken.UserProvider] implementations for
// [goToken.Engine.Login].
//
// [MemoryProvider] keeps accounts in process and suits tests and single
// node demos. [GormProvider] persists users and roles in PostgreSQL through
// GORM. Both hash passwords with the password package on creation and
// never return plaintext.
//
// [EnsureAdmin] seeds the bootstrap administrator used by cmd/tokend.
package userstore
