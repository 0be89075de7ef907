package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/eduAuth/internal"
	"github.com/MrEthical07/eduAuth/internal/stores"
)

type PendingSignups interface {
	Create(ctx context.Context, p stores.PendingSignup) (bool, error)
	Get(ctx context.Context, email string) (stores.PendingSignup, bool, error)
	Exists(ctx context.Context, email string) (bool, error)
	Delete(ctx context.Context, email string) error
}

type GenericOTPs interface {
	Issue(ctx context.Context, email, otp string) (bool, error)
	AcquireResend(ctx context.Context, email string) (bool, error)
}

type SignupErrors struct {
	PendingVerification error
	AlreadyRegistered   error
	OTPAlreadySent      error
	Failed              error
	SessionExpired      error
	InvalidOTP          error
	VerificationFailed  error
	ResendCooldown      error
	OTPOutstanding      error
	NoAccount           error
	SendFailed          error
}

// SignupDeps covers signup, signup OTP verification and OTP resend.
type SignupDeps struct {
	Env     Env
	Users   UserStore
	Pending PendingSignups
	OTPs    GenericOTPs
	Hasher  PasswordHasher
	Mailer  Mailer
	Tokens  Tokens
	Policy  PasswordPolicy
	NewOTP  func() (string, error)
	Errors  SignupErrors
	Metrics Metrics
}

// SignupInput is the raw signup request.
type SignupInput struct {
	Name     string
	Email    string
	Password string
}

// RunSignup stages a pending signup and mails its OTP. No user record exists
// until RunVerifySignupOTP succeeds.
func RunSignup(ctx context.Context, in SignupInput, deps SignupDeps) error {
	name := strings.TrimSpace(in.Name)
	email := stores.NormalizeEmail(in.Email)

	if problems := validateSignup(name, email, in.Password, deps.Policy); len(problems) > 0 {
		return deps.Env.Invalid(joinProblems(problems))
	}

	existing, err := deps.Users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		deps.Env.inc(deps.Metrics.SignupConflict)
		if !existing.IsVerified {
			return deps.Errors.PendingVerification
		}
		return deps.Errors.AlreadyRegistered
	case !errors.Is(err, deps.Env.Store.NotFound):
		return deps.Env.wrap(deps.Errors.Failed, err)
	}

	pending, err := deps.Pending.Exists(ctx, email)
	if err != nil {
		return deps.Env.wrap(deps.Errors.Failed, err)
	}
	if pending {
		deps.Env.inc(deps.Metrics.SignupConflict)
		return deps.Errors.OTPAlreadySent
	}

	otp, err := deps.NewOTP()
	if err != nil {
		return deps.Env.wrap(deps.Errors.Failed, err)
	}
	created, err := deps.Pending.Create(ctx, stores.PendingSignup{
		Name:     name,
		Email:    email,
		Password: in.Password,
		Role:     RoleUser,
		OTP:      otp,
	})
	if err != nil {
		return deps.Env.wrap(deps.Errors.Failed, err)
	}
	if !created {
		deps.Env.inc(deps.Metrics.SignupConflict)
		return deps.Errors.OTPAlreadySent
	}

	if err := deps.Mailer.SendOTP(ctx, name, email, otp); err != nil {
		deps.Env.inc(deps.Metrics.EmailSendFailure)
		return deps.Env.wrap(deps.Errors.Failed, err)
	}

	deps.Env.inc(deps.Metrics.SignupStarted)
	deps.Env.audit(ctx, AuditRecord{Event: EventSignupStarted, Email: email, Success: true})
	return nil
}

// RunVerifySignupOTP turns a pending signup into a verified user and signs
// them in.
func RunVerifySignupOTP(ctx context.Context, email, otp string, deps SignupDeps) (Pair, error) {
	email = stores.NormalizeEmail(email)

	p, ok, err := deps.Pending.Get(ctx, email)
	if err != nil {
		return Pair{}, deps.Env.wrap(deps.Errors.VerificationFailed, err)
	}
	if !ok {
		return Pair{}, deps.Errors.SessionExpired
	}

	// TODO: cap wrong guesses per pending signup; the 600s TTL is the only bound today.
	if !internal.EqualOTP(p.OTP, strings.TrimSpace(otp)) {
		deps.Env.inc(deps.Metrics.SignupOTPInvalid)
		deps.Env.audit(ctx, AuditRecord{Event: EventSignupVerified, Email: email, Err: deps.Errors.InvalidOTP})
		return Pair{}, deps.Errors.InvalidOTP
	}

	hash, err := deps.Hasher.Hash(p.Password)
	if err != nil {
		return Pair{}, deps.Env.wrap(deps.Errors.VerificationFailed, err)
	}
	role := p.Role
	if role == "" {
		role = RoleUser
	}
	user, err := deps.Users.Create(ctx, NewUser{
		Name:         p.Name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsVerified:   true,
		IsActive:     true,
	})
	if errors.Is(err, deps.Env.Store.Exists) {
		user, err = resumeVerifiedSignup(ctx, email, p, deps)
	}
	if err != nil {
		if errors.Is(err, deps.Errors.AlreadyRegistered) {
			_ = deps.Pending.Delete(ctx, email)
			return Pair{}, err
		}
		return Pair{}, deps.Env.wrap(deps.Errors.VerificationFailed, err)
	}

	now := deps.Env.now()
	pair, err := deps.Tokens.issue(user, now)
	if err != nil {
		return Pair{}, deps.Env.wrap(deps.Errors.VerificationFailed, err)
	}
	if err := deps.Users.SetRefreshToken(ctx, user.ID, pair.refreshHash, pair.RefreshExpiresAt); err != nil {
		return Pair{}, deps.Env.wrap(deps.Errors.VerificationFailed, err)
	}
	if err := deps.Users.TouchLogin(ctx, user.ID, now); err != nil {
		return Pair{}, deps.Env.wrap(deps.Errors.VerificationFailed, err)
	}
	user.LastLogin = &now

	// Best effort: the user row supersedes the pending entry.
	_ = deps.Pending.Delete(ctx, email)

	deps.Env.inc(deps.Metrics.SignupVerified)
	deps.Env.audit(ctx, AuditRecord{Event: EventSignupVerified, UserID: user.ID, Email: email, Success: true})
	return pair, nil
}

// resumeVerifiedSignup handles a Create conflict. When an earlier verify of
// this same pending signup created the user and then failed before issuing
// tokens, the existing user is returned so the flow can finish. Any other
// account under the email is AlreadyRegistered.
func resumeVerifiedSignup(ctx context.Context, email string, p stores.PendingSignup, deps SignupDeps) (*User, error) {
	existing, err := deps.Users.FindByEmail(ctx, email)
	if errors.Is(err, deps.Env.Store.NotFound) {
		return nil, deps.Errors.AlreadyRegistered
	}
	if err != nil {
		return nil, err
	}
	if !existing.IsVerified || existing.LastLogin != nil {
		return nil, deps.Errors.AlreadyRegistered
	}
	ok, err := deps.Hasher.Verify(p.Password, existing.PasswordHash)
	if err != nil || !ok {
		return nil, deps.Errors.AlreadyRegistered
	}
	return existing, nil
}

// RunResendOTP re-sends a staged signup OTP, or issues a standalone OTP to an
// existing account.
func RunResendOTP(ctx context.Context, email string, deps SignupDeps) error {
	email = stores.NormalizeEmail(email)
	if email == "" {
		return deps.Env.Invalid(msgInvalidEmail)
	}

	p, ok, err := deps.Pending.Get(ctx, email)
	if err != nil {
		return deps.Env.wrap(deps.Errors.SendFailed, err)
	}
	if ok {
		acquired, err := deps.OTPs.AcquireResend(ctx, email)
		if err != nil {
			return deps.Env.wrap(deps.Errors.SendFailed, err)
		}
		if !acquired {
			return deps.Errors.ResendCooldown
		}
		if err := deps.Mailer.SendOTP(ctx, p.Name, email, p.OTP); err != nil {
			deps.Env.inc(deps.Metrics.EmailSendFailure)
			return deps.Env.wrap(deps.Errors.SendFailed, err)
		}
		deps.Env.inc(deps.Metrics.OTPResent)
		deps.Env.audit(ctx, AuditRecord{Event: EventOTPResent, Email: email, Success: true, Metadata: map[string]string{"kind": "signup"}})
		return nil
	}

	user, err := deps.Users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, deps.Env.Store.NotFound) {
			return deps.Errors.NoAccount
		}
		return deps.Env.wrap(deps.Errors.SendFailed, err)
	}

	otp, err := deps.NewOTP()
	if err != nil {
		return deps.Env.wrap(deps.Errors.SendFailed, err)
	}
	issued, err := deps.OTPs.Issue(ctx, email, otp)
	if err != nil {
		return deps.Env.wrap(deps.Errors.SendFailed, err)
	}
	if !issued {
		return deps.Errors.OTPOutstanding
	}
	if err := deps.Mailer.SendOTP(ctx, user.Name, email, otp); err != nil {
		deps.Env.inc(deps.Metrics.EmailSendFailure)
		return deps.Env.wrap(deps.Errors.SendFailed, err)
	}

	deps.Env.inc(deps.Metrics.OTPResent)
	deps.Env.audit(ctx, AuditRecord{Event: EventOTPResent, UserID: user.ID, Email: email, Success: true, Metadata: map[string]string{"kind": "generic"}})
	return nil
}
