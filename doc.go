// Package eduAuth runs the authentication and session lifecycle of the
// learning platform: email OTP signup, login, JWT access tokens paired with
// rotating opaque refresh tokens, logout with access-token blacklisting,
// password reset and change, and role checks.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// eduAuth is the public surface. It exposes [Engine], [Builder], [Config],
// the [UserStore] and [Mailer] contracts, and value types. Flow
// orchestration, the Redis-backed ephemeral stores, rate limiting and audit
// dispatch live under internal/ and are never exported.
//
// Durable users live behind [UserStore]; store/memstore, store/mongostore
// and store/pgstore implement it. Everything short-lived (pending signups,
// reset sessions, OTPs, the blacklist, limiter counters) lives in Redis with
// a TTL.
//
// # Errors
//
// Every failure an Engine method returns to a caller is an [*Error]. Its
// Message is safe to render; [StatusCode] maps its Kind to an HTTP status.
// Causes of internal failures are logged through zap and never rendered.
package eduAuth
