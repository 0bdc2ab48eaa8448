package jwt

import "errors"

var (
	// ErrMalformedToken is returned when the token cannot be split, decoded, or
	// lacks one of the required claims (sub, jti, iat, exp).
	ErrMalformedToken = errors.New("malformed token")
	// ErrSignature is returned when the signature, algorithm, key id, issuer, or
	// audience does not match the codec configuration.
	ErrSignature = errors.New("token signature invalid")
	// ErrExpiredToken is returned when now is at or past the token's expiry.
	ErrExpiredToken = errors.New("token expired")
	// ErrEncoding is returned when claims are incomplete or cannot be signed.
	ErrEncoding = errors.New("token encoding failed")
)
