// Package jwt is the claims codec: it signs and verifies the compact JWS that
// carries a token's subject, token id, scope, issued-at and expiry.
//
// Decoding never consults revocation state. The signature is verified before
// any time-based check, so a forged token is reported as a signature failure
// even when its expiry has passed.
package jwt
