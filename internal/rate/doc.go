// Package rate implements the Redis fixed-window counters that throttle
// login and refresh.
//
// # Window semantics
//
// INCR plus EXPIRE on the first hit of a window. Key prefixes:
//   - rl:login:   failed logins per email and client IP
//   - rl:refresh: refresh calls per client IP
package rate
