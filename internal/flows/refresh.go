package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/eduAuth/internal/rate"
)

type RefreshLimiter interface {
	CheckRefresh(ctx context.Context, ip string) error
}

type RefreshErrors struct {
	Missing     error
	Invalid     error
	Deactivated error
	RateLimited error
	Failed      error
}

type RefreshDeps struct {
	Env     Env
	Users   UserStore
	Limiter RefreshLimiter
	Tokens  Tokens
	Errors  RefreshErrors
	Metrics Metrics
}

// RunRefresh exchanges a refresh token for a new pair. The stored hash is
// swapped with a compare-and-swap, so of several concurrent calls with one
// token exactly one succeeds.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) (Pair, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		deps.Env.inc(deps.Metrics.RefreshFailure)
		return Pair{}, deps.Errors.Missing
	}

	if deps.Limiter != nil {
		if err := deps.Limiter.CheckRefresh(ctx, deps.Env.clientIP(ctx)); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				deps.Env.inc(deps.Metrics.RefreshRateLimited)
				return Pair{}, deps.Errors.RateLimited
			}
			return Pair{}, deps.Env.wrap(deps.Errors.Failed, err)
		}
	}

	oldHash := deps.Tokens.HashRefresh(refreshToken)
	user, err := deps.Users.FindByRefreshTokenHash(ctx, oldHash)
	if err != nil {
		if errors.Is(err, deps.Env.Store.NotFound) {
			return Pair{}, refreshRejected(ctx, "", deps.Errors.Invalid, deps)
		}
		return Pair{}, deps.Env.wrap(deps.Errors.Failed, err)
	}

	now := deps.Env.now()
	if user.RefreshTokenExpiresAt == nil || !user.RefreshTokenExpiresAt.After(now) {
		return Pair{}, refreshRejected(ctx, user.ID, deps.Errors.Invalid, deps)
	}
	if !user.IsActive {
		return Pair{}, refreshRejected(ctx, user.ID, deps.Errors.Deactivated, deps)
	}

	pair, err := deps.Tokens.issue(user, now)
	if err != nil {
		return Pair{}, deps.Env.wrap(deps.Errors.Failed, err)
	}
	if err := deps.Users.RotateRefreshToken(ctx, user.ID, oldHash, pair.refreshHash, pair.RefreshExpiresAt); err != nil {
		if errors.Is(err, deps.Env.Store.Stale) {
			deps.Env.inc(deps.Metrics.RefreshRotationLost)
			return Pair{}, refreshRejected(ctx, user.ID, deps.Errors.Invalid, deps)
		}
		return Pair{}, deps.Env.wrap(deps.Errors.Failed, err)
	}

	deps.Env.inc(deps.Metrics.RefreshSuccess)
	deps.Env.audit(ctx, AuditRecord{Event: EventRefreshSuccess, UserID: user.ID, Email: user.Email, Success: true})
	return pair, nil
}

func refreshRejected(ctx context.Context, userID string, err error, deps RefreshDeps) error {
	deps.Env.inc(deps.Metrics.RefreshFailure)
	deps.Env.audit(ctx, AuditRecord{Event: EventRefreshFailure, UserID: userID, Err: err})
	return err
}
