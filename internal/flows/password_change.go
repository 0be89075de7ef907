package flows

import (
	"context"
	"errors"
)

type ChangeErrors struct {
	CurrentIncorrect error
	Mismatch         error
	Failed           error
}

type ChangeDeps struct {
	Env            Env
	Users          UserStore
	Hasher         PasswordHasher
	Policy         PasswordPolicy
	RevokeOnChange bool
	Warn           func(msg string, err error)
	Errors         ChangeErrors
	Metrics        Metrics
}

type ChangeInput struct {
	UserID          string
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
}

// RunChangePassword replaces the caller's password after checking the
// current one. A wrong current password leaves the record untouched.
func RunChangePassword(ctx context.Context, in ChangeInput, deps ChangeDeps) error {
	user, err := deps.Users.FindByID(ctx, in.UserID)
	if err != nil {
		if errors.Is(err, deps.Env.Store.NotFound) {
			deps.Env.inc(deps.Metrics.PasswordChangeInvalid)
			return deps.Errors.CurrentIncorrect
		}
		return deps.Env.wrap(deps.Errors.Failed, err)
	}

	ok, err := deps.Hasher.Verify(in.CurrentPassword, user.PasswordHash)
	if err != nil {
		return deps.Env.wrap(deps.Errors.Failed, err)
	}
	if !ok {
		deps.Env.inc(deps.Metrics.PasswordChangeInvalid)
		deps.Env.audit(ctx, AuditRecord{Event: EventPasswordChange, UserID: user.ID, Email: user.Email, Err: deps.Errors.CurrentIncorrect})
		return deps.Errors.CurrentIncorrect
	}

	if in.NewPassword != in.ConfirmPassword {
		return deps.Errors.Mismatch
	}
	if problems := deps.Policy.Check(in.NewPassword); len(problems) > 0 {
		return deps.Env.Invalid(joinProblems(problems))
	}

	hash, err := deps.Hasher.Hash(in.NewPassword)
	if err != nil {
		return deps.Env.wrap(deps.Errors.Failed, err)
	}
	if err := deps.Users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return deps.Env.wrap(deps.Errors.Failed, err)
	}
	if deps.RevokeOnChange {
		if err := deps.Users.ClearRefreshToken(ctx, user.ID); err != nil {
			warn(deps.Warn, "refresh revoke after change failed", err)
		}
	}

	deps.Env.inc(deps.Metrics.PasswordChangeSuccess)
	deps.Env.audit(ctx, AuditRecord{Event: EventPasswordChange, UserID: user.ID, Email: user.Email, Success: true})
	return nil
}
