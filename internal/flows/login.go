package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/eduAuth/internal/rate"
	"github.com/MrEthical07/eduAuth/internal/stores"
)

type LoginLimiter interface {
	CheckLogin(ctx context.Context, email, ip string) error
	RecordLoginFailure(ctx context.Context, email, ip string) error
	ResetLogin(ctx context.Context, email, ip string) error
}

type LoginErrors struct {
	MissingCredentials error
	RateLimited        error
	InvalidCredentials error
	Deactivated        error
	NotVerified        error
	Failed             error
}

type LoginDeps struct {
	Env            Env
	Users          UserStore
	Hasher         PasswordHasher
	Limiter        LoginLimiter
	Tokens         Tokens
	UpgradeOnLogin bool
	// DummyHash is verified against when the email is unknown.
	DummyHash string
	Warn      func(msg string, err error)
	Errors    LoginErrors
	Metrics   Metrics
}

// RunLogin checks credentials and issues a pair. Unknown email and wrong
// password are indistinguishable to the caller.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) (Pair, error) {
	email = stores.NormalizeEmail(email)
	if email == "" || password == "" {
		return Pair{}, deps.Errors.MissingCredentials
	}
	ip := deps.Env.clientIP(ctx)

	if deps.Limiter != nil {
		if err := deps.Limiter.CheckLogin(ctx, email, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				deps.Env.inc(deps.Metrics.LoginRateLimited)
				deps.Env.audit(ctx, AuditRecord{Event: EventLoginRateLimited, Email: email, Err: deps.Errors.RateLimited})
				return Pair{}, deps.Errors.RateLimited
			}
			return Pair{}, deps.Env.wrap(deps.Errors.Failed, err)
		}
	}

	user, err := deps.Users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, deps.Env.Store.NotFound) {
			return Pair{}, deps.Env.wrap(deps.Errors.Failed, err)
		}
		if deps.DummyHash != "" {
			_, _ = deps.Hasher.Verify(password, deps.DummyHash)
		}
		return Pair{}, loginFailed(ctx, email, "", deps)
	}

	ok, err := deps.Hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return Pair{}, deps.Env.wrap(deps.Errors.Failed, err)
	}
	if !ok {
		return Pair{}, loginFailed(ctx, email, user.ID, deps)
	}

	if !user.IsActive {
		deps.Env.inc(deps.Metrics.LoginFailure)
		deps.Env.audit(ctx, AuditRecord{Event: EventLoginFailure, UserID: user.ID, Email: email, Err: deps.Errors.Deactivated})
		return Pair{}, deps.Errors.Deactivated
	}
	if !user.IsVerified {
		deps.Env.inc(deps.Metrics.LoginUnverified)
		deps.Env.audit(ctx, AuditRecord{Event: EventLoginFailure, UserID: user.ID, Email: email, Err: deps.Errors.NotVerified})
		return Pair{}, deps.Errors.NotVerified
	}

	now := deps.Env.now()
	pair, err := deps.Tokens.issue(user, now)
	if err != nil {
		return Pair{}, deps.Env.wrap(deps.Errors.Failed, err)
	}
	if err := deps.Users.SetRefreshToken(ctx, user.ID, pair.refreshHash, pair.RefreshExpiresAt); err != nil {
		return Pair{}, deps.Env.wrap(deps.Errors.Failed, err)
	}
	if err := deps.Users.TouchLogin(ctx, user.ID, now); err != nil {
		return Pair{}, deps.Env.wrap(deps.Errors.Failed, err)
	}
	user.LastLogin = &now

	if deps.Limiter != nil {
		if err := deps.Limiter.ResetLogin(ctx, email, ip); err != nil {
			deps.warn("login limiter reset failed", err)
		}
	}
	if deps.UpgradeOnLogin {
		upgradePasswordHash(ctx, user, password, deps)
	}

	deps.Env.inc(deps.Metrics.LoginSuccess)
	deps.Env.audit(ctx, AuditRecord{Event: EventLoginSuccess, UserID: user.ID, Email: email, Success: true})
	return pair, nil
}

func loginFailed(ctx context.Context, email, userID string, deps LoginDeps) error {
	if deps.Limiter != nil {
		if err := deps.Limiter.RecordLoginFailure(ctx, email, deps.Env.clientIP(ctx)); err != nil {
			deps.warn("login limiter increment failed", err)
		}
	}
	deps.Env.inc(deps.Metrics.LoginFailure)
	deps.Env.audit(ctx, AuditRecord{Event: EventLoginFailure, UserID: userID, Email: email, Err: deps.Errors.InvalidCredentials})
	return deps.Errors.InvalidCredentials
}

// upgradePasswordHash is best effort; a failure leaves the old hash valid.
func upgradePasswordHash(ctx context.Context, user *User, password string, deps LoginDeps) {
	needs, err := deps.Hasher.NeedsUpgrade(user.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := deps.Hasher.Hash(password)
	if err != nil {
		deps.warn("password rehash failed", err)
		return
	}
	if err := deps.Users.UpdatePassword(ctx, user.ID, hash); err != nil {
		deps.warn("password upgrade store failed", err)
		return
	}
	deps.Env.inc(deps.Metrics.PasswordUpgraded)
}

func (d LoginDeps) warn(msg string, err error) {
	if d.Warn != nil {
		d.Warn(msg, err)
	}
}
