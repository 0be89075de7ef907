// Package jwt issues and verifies short-lived access tokens.
//
// Tokens carry {id, role, iat, exp}. HS256 with a server secret is the default;
// Ed25519 with optional kid-based key rotation is supported. Parse failures are
// split into [ErrTokenExpired] and [ErrTokenInvalid] so the guard can report
// the two cases differently.
package jwt
