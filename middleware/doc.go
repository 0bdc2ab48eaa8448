// Package middleware gates net/http handlers on goToken.Engine decisions.
//
//	Guard                 active token: signature, expiry and revocation
//	RequireScope          Guard plus a scope label, 403 when missing
//	RequireSignatureOnly  signature and expiry only, no store round trip
//
// All three read the Authorization header through [BearerToken] and answer
// refusals through a [RejectFunc], by default [DefaultReject].
package middleware
