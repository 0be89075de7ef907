package flows

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/eduAuth/jwt"
)

type AccessParser interface {
	ParseAccess(token string) (*jwt.AccessClaims, error)
}

type AuthenticateErrors struct {
	NoToken      error
	Invalid      error
	Expired      error
	Blacklisted  error
	UserGone     error
	UserInactive error
	Failed       error
}

type AuthenticateDeps struct {
	Env       Env
	Users     UserStore
	Parser    AccessParser
	Blacklist TokenBlacklist
	// ObserveLatency receives the wall time of each call, success or not.
	ObserveLatency func(time.Duration)
	Errors         AuthenticateErrors
	Metrics        Metrics
}

// Identity is what a verified access token resolves to.
type Identity struct {
	UserID    string
	Role      string
	Token     string
	ExpiresAt time.Time
}

// RunAuthenticate verifies an access token and re-reads its user. The role
// returned is the stored one, not the claim.
func RunAuthenticate(ctx context.Context, token string, deps AuthenticateDeps) (Identity, error) {
	start := time.Now()
	id, err := authenticate(ctx, token, deps)
	if deps.ObserveLatency != nil {
		deps.ObserveLatency(time.Since(start))
	}
	if err != nil {
		deps.Env.inc(deps.Metrics.AuthenticateFailure)
		return Identity{}, err
	}
	deps.Env.inc(deps.Metrics.AuthenticateSuccess)
	return id, nil
}

func authenticate(ctx context.Context, token string, deps AuthenticateDeps) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, deps.Errors.NoToken
	}

	claims, err := deps.Parser.ParseAccess(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, deps.Errors.Expired
		}
		return Identity{}, deps.Errors.Invalid
	}

	revoked, err := deps.Blacklist.Contains(ctx, token)
	if err != nil {
		return Identity{}, deps.Env.wrap(deps.Errors.Failed, err)
	}
	if revoked {
		return Identity{}, deps.Errors.Blacklisted
	}

	user, err := deps.Users.FindByID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, deps.Env.Store.NotFound) {
			return Identity{}, deps.Errors.UserGone
		}
		return Identity{}, deps.Env.wrap(deps.Errors.Failed, err)
	}
	if !user.IsActive {
		return Identity{}, deps.Errors.UserInactive
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return Identity{
		UserID:    user.ID,
		Role:      user.Role,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}
