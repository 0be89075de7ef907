package eduAuth

import (
	"fmt"
	"strings"
	"time"
)

// LintSeverity ranks a configuration warning.
type LintSeverity uint8

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintHigh:
		return "HIGH"
	case LintWarn:
		return "WARN"
	default:
		return "INFO"
	}
}

// LintWarning is a setting that is valid but risky.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

type LintWarnings []LintWarning

// Codes lists the warning codes in order.
func (ws LintWarnings) Codes() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity keeps warnings at or above min.
func (ws LintWarnings) BySeverity(min LintSeverity) LintWarnings {
	var out LintWarnings
	for _, w := range ws {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError folds warnings at or above min into one error, or returns nil.
func (ws LintWarnings) AsError(min LintSeverity) error {
	hits := ws.BySeverity(min)
	if len(hits) == 0 {
		return nil
	}
	parts := make([]string, 0, len(hits))
	for _, w := range hits {
		parts = append(parts, w.Code)
	}
	return fmt.Errorf("config lint: %s", strings.Join(parts, ", "))
}

// Lint inspects c for settings Validate accepts but that weaken the auth
// posture. It never mutates c.
func (c Config) Lint() LintWarnings {
	var ws LintWarnings
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if c.JWT.Leeway > 30*time.Second {
		add("leeway_large", LintWarn, "JWT leeway above 30s extends every access token")
	}
	if c.JWT.AccessTTL > time.Hour {
		add("access_ttl_long", LintWarn, "access tokens live longer than 1h")
	}
	if c.Token.RefreshTTL > 30*24*time.Hour {
		add("refresh_ttl_long", LintWarn, "refresh tokens live longer than 30 days")
	}
	if c.RateLimit.MaxLoginAttempts == 0 && c.RateLimit.MaxRefreshCalls == 0 {
		add("rate_limits_disabled", LintHigh, "login and refresh are both unthrottled")
	} else if c.RateLimit.MaxLoginAttempts == 0 {
		add("login_throttle_disabled", LintWarn, "login is unthrottled")
	}
	if c.OTP.TTL > 15*time.Minute {
		add("otp_ttl_long", LintWarn, "OTPs stay valid longer than 15m with no attempt cap")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "auth events are not recorded")
	}
	if c.Password.Memory < 64*1024 {
		add("argon2_memory_low", LintWarn, "argon2 memory below 64 MB")
	}
	if c.Password.MinLength < 8 {
		add("password_min_short", LintInfo, "password minimum length below 8")
	}
	return ws
}
