package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/eduAuth/internal"
	"github.com/MrEthical07/eduAuth/internal/stores"
)

type ResetSessions interface {
	Begin(ctx context.Context, email, otp string) (bool, error)
	OTP(ctx context.Context, email string) (string, bool, error)
	MarkVerified(ctx context.Context, email string) error
	IsVerified(ctx context.Context, email string) (bool, error)
	Finish(ctx context.Context, email string) error
}

type ResetErrors struct {
	// AccountNotFound builds the 404 that names the email.
	AccountNotFound    func(email string) error
	OTPAlreadySent     error
	ForgotFailed       error
	OTPExpired         error
	InvalidOTP         error
	VerificationFailed error
	UserNotFound       error
	PasswordsMismatch  error
	NotVerified        error
	ResetFailed        error
}

type ResetDeps struct {
	Env            Env
	Users          UserStore
	Sessions       ResetSessions
	Hasher         PasswordHasher
	Mailer         Mailer
	Policy         PasswordPolicy
	NewOTP         func() (string, error)
	RevokeOnChange bool
	Warn           func(msg string, err error)
	Errors         ResetErrors
	Metrics        Metrics
}

// RunForgotPassword opens a reset session for an existing account and mails
// its OTP.
func RunForgotPassword(ctx context.Context, email string, deps ResetDeps) error {
	email = stores.NormalizeEmail(email)

	user, err := deps.Users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, deps.Env.Store.NotFound) {
			return deps.Errors.AccountNotFound(email)
		}
		return deps.Env.wrap(deps.Errors.ForgotFailed, err)
	}

	otp, err := deps.NewOTP()
	if err != nil {
		return deps.Env.wrap(deps.Errors.ForgotFailed, err)
	}
	started, err := deps.Sessions.Begin(ctx, email, otp)
	if err != nil {
		return deps.Env.wrap(deps.Errors.ForgotFailed, err)
	}
	if !started {
		return deps.Errors.OTPAlreadySent
	}

	if err := deps.Mailer.SendOTP(ctx, user.Name, email, otp); err != nil {
		deps.Env.inc(deps.Metrics.EmailSendFailure)
		return deps.Env.wrap(deps.Errors.ForgotFailed, err)
	}

	deps.Env.inc(deps.Metrics.PasswordResetRequest)
	deps.Env.audit(ctx, AuditRecord{Event: EventPasswordResetBegin, UserID: user.ID, Email: email, Success: true})
	return nil
}

// RunVerifyForgotOTP confirms the reset OTP and leaves the verified marker
// that RunResetPassword requires.
func RunVerifyForgotOTP(ctx context.Context, email, otp string, deps ResetDeps) error {
	email = stores.NormalizeEmail(email)

	stored, ok, err := deps.Sessions.OTP(ctx, email)
	if err != nil {
		return deps.Env.wrap(deps.Errors.VerificationFailed, err)
	}
	if !ok {
		return deps.Errors.OTPExpired
	}
	if !internal.EqualOTP(stored, strings.TrimSpace(otp)) {
		deps.Env.audit(ctx, AuditRecord{Event: EventPasswordResetVerify, Email: email, Err: deps.Errors.InvalidOTP})
		return deps.Errors.InvalidOTP
	}
	if err := deps.Sessions.MarkVerified(ctx, email); err != nil {
		return deps.Env.wrap(deps.Errors.VerificationFailed, err)
	}

	deps.Env.inc(deps.Metrics.PasswordResetVerified)
	deps.Env.audit(ctx, AuditRecord{Event: EventPasswordResetVerify, Email: email, Success: true})
	return nil
}

// ResetInput is the final step of the reset flow.
type ResetInput struct {
	Email           string
	NewPassword     string
	ConfirmPassword string
}

// RunResetPassword replaces the password of a user whose reset OTP was
// verified, then closes the reset session.
func RunResetPassword(ctx context.Context, in ResetInput, deps ResetDeps) error {
	email := stores.NormalizeEmail(in.Email)

	user, err := deps.Users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, deps.Env.Store.NotFound) {
			deps.Env.inc(deps.Metrics.PasswordResetFailure)
			return deps.Errors.UserNotFound
		}
		return deps.Env.wrap(deps.Errors.ResetFailed, err)
	}

	if in.NewPassword != in.ConfirmPassword {
		deps.Env.inc(deps.Metrics.PasswordResetFailure)
		return deps.Errors.PasswordsMismatch
	}
	if problems := deps.Policy.Check(in.NewPassword); len(problems) > 0 {
		deps.Env.inc(deps.Metrics.PasswordResetFailure)
		return deps.Env.Invalid(joinProblems(problems))
	}

	verified, err := deps.Sessions.IsVerified(ctx, email)
	if err != nil {
		return deps.Env.wrap(deps.Errors.ResetFailed, err)
	}
	if !verified {
		deps.Env.inc(deps.Metrics.PasswordResetFailure)
		deps.Env.audit(ctx, AuditRecord{Event: EventPasswordReset, UserID: user.ID, Email: email, Err: deps.Errors.NotVerified})
		return deps.Errors.NotVerified
	}

	hash, err := deps.Hasher.Hash(in.NewPassword)
	if err != nil {
		return deps.Env.wrap(deps.Errors.ResetFailed, err)
	}
	if err := deps.Users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return deps.Env.wrap(deps.Errors.ResetFailed, err)
	}
	if err := deps.Sessions.Finish(ctx, email); err != nil {
		warn(deps.Warn, "reset session cleanup failed", err)
	}
	if deps.RevokeOnChange {
		if err := deps.Users.ClearRefreshToken(ctx, user.ID); err != nil {
			warn(deps.Warn, "refresh revoke after reset failed", err)
		}
	}

	deps.Env.inc(deps.Metrics.PasswordResetSuccess)
	deps.Env.audit(ctx, AuditRecord{Event: EventPasswordReset, UserID: user.ID, Email: email, Success: true})
	return nil
}

func warn(fn func(string, error), msg string, err error) {
	if fn != nil {
		fn(msg, err)
	}
}
