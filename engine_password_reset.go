package eduAuth

import (
	"context"

	"github.com/MrEthical07/eduAuth/internal"
	"github.com/MrEthical07/eduAuth/internal/flows"
)

const (
	msgResetOTPSent     = "OTP sent to your email for password reset."
	msgResetOTPVerified = "OTP verified. You may now reset your password."
	msgPasswordReset    = "Password reset successfully. Please login."
	msgPasswordChanged  = "Password changed successfully."
)

// ForgotPassword opens a reset session for email and mails its OTP. A
// second request while the first OTP is live is rejected.
func (e *Engine) ForgotPassword(ctx context.Context, email string) (Ack, error) {
	if err := e.ready(); err != nil {
		return Ack{}, err
	}
	if err := flows.RunForgotPassword(ctx, email, e.resetFlowDeps()); err != nil {
		return Ack{}, e.finish(ctx, "forgot_password", err)
	}
	return Ack{Message: msgResetOTPSent}, nil
}

func (e *Engine) VerifyForgotOTP(ctx context.Context, req VerifyOTPRequest) (Ack, error) {
	if err := e.ready(); err != nil {
		return Ack{}, err
	}
	if err := flows.RunVerifyForgotOTP(ctx, req.Email, req.OTP, e.resetFlowDeps()); err != nil {
		return Ack{}, e.finish(ctx, "verify_forgot_otp", err)
	}
	return Ack{Message: msgResetOTPVerified}, nil
}

// ResetPassword requires a prior successful VerifyForgotOTP for the same
// email.
func (e *Engine) ResetPassword(ctx context.Context, req ResetPasswordRequest) (Ack, error) {
	if err := e.ready(); err != nil {
		return Ack{}, err
	}
	err := flows.RunResetPassword(ctx, flows.ResetInput{
		Email:           req.Email,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	}, e.resetFlowDeps())
	if err != nil {
		return Ack{}, e.finish(ctx, "reset_password", err)
	}
	return Ack{Message: msgPasswordReset}, nil
}

// ChangePassword replaces the caller's password after re-checking the
// current one.
func (e *Engine) ChangePassword(ctx context.Context, auth AuthContext, req ChangePasswordRequest) (Ack, error) {
	if err := e.ready(); err != nil {
		return Ack{}, err
	}
	if auth.UserID == "" {
		return Ack{}, ErrAuthRequired
	}
	err := flows.RunChangePassword(ctx, flows.ChangeInput{
		UserID:          auth.UserID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	}, flows.ChangeDeps{
		Env:            e.flowEnv(),
		Users:          flowUsers{store: e.users},
		Hasher:         e.hasher,
		Policy:         e.passwordPolicy(),
		RevokeOnChange: e.config.Password.RevokeOnChange,
		Warn:           e.warn,
		Errors: flows.ChangeErrors{
			CurrentIncorrect: ErrCurrentPasswordIncorrect,
			Mismatch:         ErrNewPasswordsMismatch,
			Failed:           ErrPasswordChangeFailed,
		},
		Metrics: flowMetrics,
	})
	if err != nil {
		return Ack{}, e.finish(ctx, "change_password", err)
	}
	return Ack{Message: msgPasswordChanged}, nil
}

func (e *Engine) resetFlowDeps() flows.ResetDeps {
	return flows.ResetDeps{
		Env:            e.flowEnv(),
		Users:          flowUsers{store: e.users},
		Sessions:       e.resets,
		Hasher:         e.hasher,
		Mailer:         e.mailer,
		Policy:         e.passwordPolicy(),
		NewOTP:         internal.NewOTP,
		RevokeOnChange: e.config.Password.RevokeOnChange,
		Warn:           e.warn,
		Errors: flows.ResetErrors{
			AccountNotFound: func(email string) error {
				return accountNotFoundForEmail(email)
			},
			OTPAlreadySent:     ErrOTPAlreadySent,
			ForgotFailed:       ErrForgotPasswordFailed,
			OTPExpired:         ErrResetOTPExpired,
			InvalidOTP:         ErrInvalidOTP,
			VerificationFailed: ErrOTPVerificationFailed,
			UserNotFound:       ErrResetUserNotFound,
			PasswordsMismatch:  ErrPasswordsMismatch,
			NotVerified:        ErrResetNotVerified,
			ResetFailed:        ErrPasswordResetFailed,
		},
		Metrics: flowMetrics,
	}
}
