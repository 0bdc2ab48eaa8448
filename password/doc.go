// Package password hashes and verifies user credentials with argon2id.
//
// Hashes use the PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// goToken uses this package in two places: the login flow verifies the
// supplied password against the hash returned by the configured user
// provider, and the user stores hash passwords when accounts are created
// or seeded. [Argon2.NeedsUpgrade] lets a store re-hash a credential after
// the cost parameters are raised.
//
// The package never stores credentials, never logs plaintext, and imports
// no other goToken package.
package password
