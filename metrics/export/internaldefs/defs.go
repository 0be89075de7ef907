package internaldefs

import (
	eduAuth "github.com/MrEthical07/eduAuth"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   eduAuth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   eduAuth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: eduAuth.MetricSignupStarted, Name: "eduauth_signup_started_total", Help: "Signups staged with an OTP mailed."},
	{ID: eduAuth.MetricSignupConflict, Name: "eduauth_signup_conflict_total", Help: "Signups rejected because the email is taken or pending."},
	{ID: eduAuth.MetricSignupVerified, Name: "eduauth_signup_verified_total", Help: "Pending signups turned into verified users."},
	{ID: eduAuth.MetricSignupOTPInvalid, Name: "eduauth_signup_otp_invalid_total", Help: "Signup OTP verifications with a wrong code."},
	{ID: eduAuth.MetricOTPResent, Name: "eduauth_otp_resent_total", Help: "OTPs re-sent on request."},
	{ID: eduAuth.MetricLoginSuccess, Name: "eduauth_login_success_total", Help: "Successful logins."},
	{ID: eduAuth.MetricLoginFailure, Name: "eduauth_login_failure_total", Help: "Failed logins."},
	{ID: eduAuth.MetricLoginRateLimited, Name: "eduauth_login_rate_limited_total", Help: "Logins rejected by the rate limiter."},
	{ID: eduAuth.MetricLoginUnverified, Name: "eduauth_login_unverified_total", Help: "Logins rejected because the email is not verified."},
	{ID: eduAuth.MetricRefreshSuccess, Name: "eduauth_refresh_success_total", Help: "Successful refresh token rotations."},
	{ID: eduAuth.MetricRefreshFailure, Name: "eduauth_refresh_failure_total", Help: "Rejected refresh attempts."},
	{ID: eduAuth.MetricRefreshRateLimited, Name: "eduauth_refresh_rate_limited_total", Help: "Refreshes rejected by the rate limiter."},
	{ID: eduAuth.MetricRefreshRotationLost, Name: "eduauth_refresh_rotation_lost_total", Help: "Refreshes that lost a concurrent rotation."},
	{ID: eduAuth.MetricLogout, Name: "eduauth_logout_total", Help: "Logouts."},
	{ID: eduAuth.MetricTokenBlacklisted, Name: "eduauth_token_blacklisted_total", Help: "Access tokens added to the blacklist."},
	{ID: eduAuth.MetricAuthenticateSuccess, Name: "eduauth_authenticate_success_total", Help: "Bearer tokens accepted by the guard."},
	{ID: eduAuth.MetricAuthenticateFailure, Name: "eduauth_authenticate_failure_total", Help: "Bearer tokens rejected by the guard."},
	{ID: eduAuth.MetricPasswordResetRequest, Name: "eduauth_password_reset_request_total", Help: "Password reset OTPs mailed."},
	{ID: eduAuth.MetricPasswordResetVerified, Name: "eduauth_password_reset_verified_total", Help: "Password reset OTPs confirmed."},
	{ID: eduAuth.MetricPasswordResetSuccess, Name: "eduauth_password_reset_success_total", Help: "Completed password resets."},
	{ID: eduAuth.MetricPasswordResetFailure, Name: "eduauth_password_reset_failure_total", Help: "Rejected password resets."},
	{ID: eduAuth.MetricPasswordChangeSuccess, Name: "eduauth_password_change_success_total", Help: "Completed password changes."},
	{ID: eduAuth.MetricPasswordChangeInvalidOld, Name: "eduauth_password_change_invalid_old_total", Help: "Password changes with a wrong current password."},
	{ID: eduAuth.MetricPasswordUpgraded, Name: "eduauth_password_upgraded_total", Help: "Password hashes upgraded on login."},
	{ID: eduAuth.MetricEmailSendFailure, Name: "eduauth_email_send_failure_total", Help: "OTP emails the mailer failed to send."},
	{ID: eduAuth.MetricAdminSeeded, Name: "eduauth_admin_seeded_total", Help: "Administrator accounts seeded."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: eduAuth.MetricAuthenticateLatency, Name: "eduauth_authenticate_latency_seconds", Help: "Bearer token authentication latency."},
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = "eduauth_audit_dropped_total"

// HistogramUpperBounds are eduAuth.LatencyBounds in seconds, without +Inf.
var HistogramUpperBounds = func() []float64 {
	out := make([]float64, len(eduAuth.LatencyBounds))
	for i, b := range eduAuth.LatencyBounds {
		out[i] = b.Seconds()
	}
	return out
}()

// HistogramBoundSuffix names each bucket, +Inf included, for exporters
// that flatten buckets into separate instruments.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
