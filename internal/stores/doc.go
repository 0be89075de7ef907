// Package stores holds the short-lived Redis records behind the auth flows:
// pending signups, password-reset sessions and their verified markers,
// access-token blacklist entries, and resend cooldowns.
//
// Every write carries an expiry. A record that must be unique per email is
// written with SET NX so concurrent callers cannot both win.
//
// This package does not generate OTPs or decide outcomes. Those belong to
// internal/flows. It must not import eduAuth or log secret values.
package stores
