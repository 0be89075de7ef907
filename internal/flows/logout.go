package flows

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"
)

type TokenBlacklist interface {
	Add(ctx context.Context, token string, ttl time.Duration) (bool, error)
	Contains(ctx context.Context, token string) (bool, error)
}

type LogoutErrors struct {
	AuthRequired error
	Failed       error
}

type LogoutDeps struct {
	Env       Env
	Users     UserStore
	Blacklist TokenBlacklist
	Errors    LogoutErrors
	Metrics   Metrics
}

// LogoutInput identifies the caller and the access token being retired.
type LogoutInput struct {
	UserID          string
	AccessToken     string
	AccessExpiresAt time.Time
	// RefreshHash is the digest of the refresh token the client presented,
	// if any.
	RefreshHash string
}

// RunLogout blacklists the access token for its remaining lifetime and
// drops the caller's stored refresh token.
func RunLogout(ctx context.Context, in LogoutInput, deps LogoutDeps) error {
	if in.UserID == "" {
		return deps.Errors.AuthRequired
	}

	now := deps.Env.now()
	// Remaining lifetime in whole seconds.
	remaining := time.Duration(in.AccessExpiresAt.Unix()-now.Unix()) * time.Second
	if in.AccessToken != "" && remaining > 0 {
		added, err := deps.Blacklist.Add(ctx, in.AccessToken, remaining)
		if err != nil {
			return deps.Env.wrap(deps.Errors.Failed, err)
		}
		if added {
			deps.Env.inc(deps.Metrics.TokenBlacklisted)
		}
	}

	var meta map[string]string
	if in.RefreshHash != "" {
		meta = map[string]string{"refresh_token": presentedRefreshState(ctx, in, deps)}
	}

	if err := deps.Users.ClearRefreshToken(ctx, in.UserID); err != nil && !errors.Is(err, deps.Env.Store.NotFound) {
		return deps.Env.wrap(deps.Errors.Failed, err)
	}

	deps.Env.inc(deps.Metrics.Logout)
	deps.Env.audit(ctx, AuditRecord{Event: EventLogout, UserID: in.UserID, Success: true, Metadata: meta})
	return nil
}

// presentedRefreshState reports "current" when the presented refresh token is
// the caller's live one and "stale" otherwise. A lookup failure reports
// "unknown" and does not block the logout.
func presentedRefreshState(ctx context.Context, in LogoutInput, deps LogoutDeps) string {
	user, err := deps.Users.FindByID(ctx, in.UserID)
	switch {
	case err != nil:
		return "unknown"
	case user.RefreshTokenHash != "" &&
		subtle.ConstantTimeCompare([]byte(user.RefreshTokenHash), []byte(in.RefreshHash)) == 1:
		return "current"
	default:
		return "stale"
	}
}
