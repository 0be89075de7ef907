// Package flows holds one function per Engine operation.
//
// Each RunX function takes a typed dependency struct and returns either a
// result or a host sentinel error taken from that struct. Flows never hold
// state between calls and never import the root package; stores, hashing,
// token issuance, metrics and audit are all reached through the deps.
//
// Ephemeral state (pending signups, reset sessions, generic OTPs, the
// access-token blacklist) lives in internal/stores. Durable user records
// are reached through the UserStore interface.
package flows
