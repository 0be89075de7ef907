package eduAuth

import (
	"context"

	"github.com/MrEthical07/eduAuth/internal"
	"github.com/MrEthical07/eduAuth/internal/flows"
)

const (
	msgSignupOTPSent = "OTP sent to your email. Please verify."
	msgOTPResent     = "OTP sent successfully."
)

// Signup stages a registration and mails a 6-digit OTP. The account is only
// created by VerifySignupOTP.
func (e *Engine) Signup(ctx context.Context, req SignupRequest) (Ack, error) {
	if err := e.ready(); err != nil {
		return Ack{}, err
	}
	err := flows.RunSignup(ctx, flows.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	}, e.signupFlowDeps())
	if err != nil {
		return Ack{}, e.finish(ctx, "signup", err)
	}
	return Ack{Message: msgSignupOTPSent}, nil
}

// VerifySignupOTP confirms a pending signup, creates the verified user and
// returns its first token pair.
func (e *Engine) VerifySignupOTP(ctx context.Context, req VerifyOTPRequest) (LoginResult, error) {
	if err := e.ready(); err != nil {
		return LoginResult{}, err
	}
	pair, err := flows.RunVerifySignupOTP(ctx, req.Email, req.OTP, e.signupFlowDeps())
	if err != nil {
		return LoginResult{}, e.finish(ctx, "verify_signup_otp", err)
	}
	return loginResult(pair), nil
}

// ResendOTP re-sends a pending signup's OTP, subject to a cooldown, or
// mails a fresh standalone OTP to an existing account.
func (e *Engine) ResendOTP(ctx context.Context, email string) (Ack, error) {
	if err := e.ready(); err != nil {
		return Ack{}, err
	}
	if err := flows.RunResendOTP(ctx, email, e.signupFlowDeps()); err != nil {
		return Ack{}, e.finish(ctx, "resend_otp", err)
	}
	return Ack{Message: msgOTPResent}, nil
}

func (e *Engine) signupFlowDeps() flows.SignupDeps {
	return flows.SignupDeps{
		Env:     e.flowEnv(),
		Users:   flowUsers{store: e.users},
		Pending: e.signups,
		OTPs:    e.otps,
		Hasher:  e.hasher,
		Mailer:  e.mailer,
		Tokens:  e.flowTokens(),
		Policy:  e.passwordPolicy(),
		NewOTP:  internal.NewOTP,
		Errors: flows.SignupErrors{
			PendingVerification: ErrSignupPendingVerification,
			AlreadyRegistered:   ErrAccountAlreadyRegistered,
			OTPAlreadySent:      ErrSignupOTPAlreadySent,
			Failed:              ErrSignupFailed,
			SessionExpired:      ErrSignupSessionExpired,
			InvalidOTP:          ErrInvalidOTP,
			VerificationFailed:  ErrOTPVerificationFailed,
			ResendCooldown:      ErrResendCooldown,
			OTPOutstanding:      ErrOTPAlreadySent,
			NoAccount:           ErrNoAccountForEmail,
			SendFailed:          ErrSendOTPFailed,
		},
		Metrics: flowMetrics,
	}
}
