// Package internal holds helpers private to eduAuth: OTP generation, opaque
// refresh tokens and their at-rest digests.
//
// Sub-packages:
//
//   - appconfig: viper-backed settings for the eduauth binary
//   - audit: async event dispatch (Dispatcher and Sink implementations)
//   - flows: one orchestrator per Engine operation
//   - logging: zap logger construction
//   - rate: Redis fixed-window limiter primitives
//   - stores: Redis-backed ephemeral records (signup, reset, blacklist, OTP)
package internal
