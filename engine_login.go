package eduAuth

import (
	"context"
	"strings"
	"time"

	"github.com/MrEthical07/eduAuth/internal"
	"github.com/MrEthical07/eduAuth/internal/flows"
)

const msgLoggedOut = "Logout successful"

// Login verifies credentials and issues a new token pair, replacing any
// refresh token the user held before.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	if err := e.ready(); err != nil {
		return LoginResult{}, err
	}
	pair, err := flows.RunLogin(ctx, req.Email, req.Password, flows.LoginDeps{
		Env:            e.flowEnv(),
		Users:          flowUsers{store: e.users},
		Hasher:         e.hasher,
		Limiter:        e.limiter,
		Tokens:         e.flowTokens(),
		UpgradeOnLogin: e.config.Password.UpgradeOnLogin,
		DummyHash:      e.dummyHash,
		Warn:           e.warn,
		Errors: flows.LoginErrors{
			MissingCredentials: ErrMissingCredentials,
			RateLimited:        ErrLoginRateLimited,
			InvalidCredentials: ErrInvalidCredentials,
			Deactivated:        ErrAccountDeactivated,
			NotVerified:        ErrEmailNotVerified,
			Failed:             ErrLoginFailed,
		},
		Metrics: flowMetrics,
	})
	if err != nil {
		return LoginResult{}, e.finish(ctx, "login", err)
	}
	return loginResult(pair), nil
}

// Refresh rotates refreshToken. A token that was already rotated, by this
// caller or a concurrent one, is rejected.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (LoginResult, error) {
	if err := e.ready(); err != nil {
		return LoginResult{}, err
	}
	pair, err := flows.RunRefresh(ctx, refreshToken, flows.RefreshDeps{
		Env:     e.flowEnv(),
		Users:   flowUsers{store: e.users},
		Limiter: e.limiter,
		Tokens:  e.flowTokens(),
		Errors: flows.RefreshErrors{
			Missing:     ErrRefreshMissing,
			Invalid:     ErrRefreshInvalid,
			Deactivated: ErrRefreshDeactivated,
			RateLimited: ErrRefreshRateLimited,
			Failed:      ErrRefreshFailed,
		},
		Metrics: flowMetrics,
	})
	if err != nil {
		return LoginResult{}, e.finish(ctx, "refresh", err)
	}
	return loginResult(pair), nil
}

// Logout revokes the caller's access token until it expires and clears the
// stored refresh token. A presented refreshToken is optional; the audit event
// records whether it was the caller's live one.
func (e *Engine) Logout(ctx context.Context, auth AuthContext, refreshToken string) (Ack, error) {
	if err := e.ready(); err != nil {
		return Ack{}, err
	}
	in := flows.LogoutInput{
		UserID:          auth.UserID,
		AccessToken:     auth.AccessToken,
		AccessExpiresAt: auth.ExpiresAt,
	}
	if refreshToken = strings.TrimSpace(refreshToken); refreshToken != "" {
		in.RefreshHash = internal.HashRefreshToken(refreshToken)
	}

	err := flows.RunLogout(ctx, in, flows.LogoutDeps{
		Env:       e.flowEnv(),
		Users:     flowUsers{store: e.users},
		Blacklist: e.blacklist,
		Errors: flows.LogoutErrors{
			AuthRequired: ErrAuthRequired,
			Failed:       ErrLogoutFailed,
		},
		Metrics: flowMetrics,
	})
	if err != nil {
		return Ack{}, e.finish(ctx, "logout", err)
	}
	return Ack{Message: msgLoggedOut}, nil
}

// Authenticate verifies a bearer access token and resolves its caller. The
// returned role comes from the store, so a demotion takes effect before the
// token expires.
func (e *Engine) Authenticate(ctx context.Context, bearerToken string) (AuthContext, error) {
	if err := e.ready(); err != nil {
		return AuthContext{}, err
	}
	id, err := flows.RunAuthenticate(ctx, bearerToken, flows.AuthenticateDeps{
		Env:       e.flowEnv(),
		Users:     flowUsers{store: e.users},
		Parser:    e.jwtManager,
		Blacklist: e.blacklist,
		ObserveLatency: func(d time.Duration) {
			e.metrics.Observe(MetricAuthenticateLatency, d)
		},
		Errors: flows.AuthenticateErrors{
			NoToken:      ErrNoToken,
			Invalid:      ErrTokenInvalid,
			Expired:      ErrTokenExpired,
			Blacklisted:  ErrTokenBlacklisted,
			UserGone:     ErrTokenUserGone,
			UserInactive: ErrTokenUserInactive,
			Failed:       ErrAuthFailed,
		},
		Metrics: flowMetrics,
	})
	if err != nil {
		return AuthContext{}, e.finish(ctx, "authenticate", err)
	}
	return AuthContext{
		UserID:      id.UserID,
		Role:        Role(id.Role),
		AccessToken: id.Token,
		ExpiresAt:   id.ExpiresAt,
	}, nil
}
