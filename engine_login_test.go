package eduAuth

import (
	"context"
	"testing"
	"time"
)

func TestLoginIssuesPairAndTouchesLastLogin(t *testing.T) {
	h := newHarness(t)
	u := h.seedUser(t, "kay@example.com", "Passw0rd", true, true)

	res, err := h.engine.Login(context.Background(), LoginRequest{Email: " KAY@example.com", Password: "Passw0rd"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.User.ID != u.ID {
		t.Fatalf("expected user %s, got %s", u.ID, res.User.ID)
	}
	if !res.AccessExpiresAt.After(time.Now()) || !res.RefreshExpiresAt.After(res.AccessExpiresAt) {
		t.Fatalf("unexpected expiries access=%v refresh=%v", res.AccessExpiresAt, res.RefreshExpiresAt)
	}
	if stored := h.users.get(u.ID); stored.LastLogin == nil {
		t.Fatal("expected last login to be persisted")
	}
}

func TestLoginRejectsMissingCredentials(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.Login(context.Background(), LoginRequest{Email: "", Password: "x"})
	expectErr(t, err, ErrMissingCredentials)
	_, err = h.engine.Login(context.Background(), LoginRequest{Email: "a@example.com", Password: ""})
	expectErr(t, err, ErrMissingCredentials)
}

func TestLoginUnverifiedAndDeactivated(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "unverified@example.com", "Passw0rd", false, true)
	h.seedUser(t, "disabled@example.com", "Passw0rd", true, false)

	_, err := h.engine.Login(context.Background(), LoginRequest{Email: "unverified@example.com", Password: "Passw0rd"})
	expectErr(t, err, ErrEmailNotVerified)
	if StatusCode(err) != 403 {
		t.Fatalf("expected 403, got %d", StatusCode(err))
	}

	_, err = h.engine.Login(context.Background(), LoginRequest{Email: "disabled@example.com", Password: "Passw0rd"})
	expectErr(t, err, ErrAccountDeactivated)
	if StatusCode(err) != 401 {
		t.Fatalf("expected 401, got %d", StatusCode(err))
	}
}

func TestLoginRateLimitAfterRepeatedFailures(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.RateLimit.MaxLoginAttempts = 3
	})
	h.seedUser(t, "rl@example.com", "Passw0rd", true, true)
	ctx := WithClientIP(context.Background(), "203.0.113.7")

	for i := 0; i < 3; i++ {
		_, err := h.engine.Login(ctx, LoginRequest{Email: "rl@example.com", Password: "bad"})
		expectErr(t, err, ErrInvalidCredentials)
	}
	_, err := h.engine.Login(ctx, LoginRequest{Email: "rl@example.com", Password: "Passw0rd"})
	expectErr(t, err, ErrLoginRateLimited)

	// A different address has its own budget.
	other := WithClientIP(context.Background(), "198.51.100.1")
	if _, err := h.engine.Login(other, LoginRequest{Email: "rl@example.com", Password: "Passw0rd"}); err != nil {
		t.Fatalf("login from other ip: %v", err)
	}

	h.mr.FastForward(16 * time.Minute)
	if _, err := h.engine.Login(ctx, LoginRequest{Email: "rl@example.com", Password: "Passw0rd"}); err != nil {
		t.Fatalf("login after window: %v", err)
	}
}

func TestLoginUpgradesWeakHash(t *testing.T) {
	h := newHarness(t)
	u := h.seedUser(t, "up@example.com", "Passw0rd", true, true)

	stronger, err := New().
		WithConfig(func() Config {
			cfg := testConfig()
			cfg.Password.Time = 2
			return cfg
		}()).
		WithRedis(h.rdb).
		WithUserStore(h.users).
		WithMailer(h.mailer).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer stronger.Close()

	before := h.users.get(u.ID).PasswordHash
	if _, err := stronger.Login(context.Background(), LoginRequest{Email: "up@example.com", Password: "Passw0rd"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	after := h.users.get(u.ID).PasswordHash
	if after == before {
		t.Fatal("expected hash to be upgraded")
	}
	if stronger.MetricsSnapshot().Counters[MetricPasswordUpgraded] != 1 {
		t.Fatal("expected upgrade to be counted")
	}
}

func TestRefreshRotatesAndRejectsOldToken(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "rot@example.com", "Passw0rd", true, true)
	first := h.login(t, "rot@example.com", "Passw0rd")
	ctx := context.Background()

	second, err := h.engine.Refresh(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("refresh token must rotate")
	}

	_, err = h.engine.Refresh(ctx, first.RefreshToken)
	expectErr(t, err, ErrRefreshInvalid)
	if StatusCode(err) != 401 {
		t.Fatalf("expected 401, got %d", StatusCode(err))
	}

	if _, err := h.engine.Refresh(ctx, second.RefreshToken); err != nil {
		t.Fatalf("refresh with rotated token: %v", err)
	}
}

func TestRefreshRejectsMissingExpiredAndDeactivated(t *testing.T) {
	h := newHarness(t)
	u := h.seedUser(t, "exp@example.com", "Passw0rd", true, true)
	ctx := context.Background()

	_, err := h.engine.Refresh(ctx, "   ")
	expectErr(t, err, ErrRefreshMissing)

	res := h.login(t, "exp@example.com", "Passw0rd")
	h.users.set(u.ID, func(u *User) {
		past := time.Now().Add(-time.Minute)
		u.RefreshTokenExpiresAt = &past
	})
	_, err = h.engine.Refresh(ctx, res.RefreshToken)
	expectErr(t, err, ErrRefreshInvalid)

	res = h.login(t, "exp@example.com", "Passw0rd")
	h.users.set(u.ID, func(u *User) { u.IsActive = false })
	_, err = h.engine.Refresh(ctx, res.RefreshToken)
	expectErr(t, err, ErrRefreshDeactivated)
}

func TestRefreshRateLimitedPerIP(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.RateLimit.MaxRefreshCalls = 2
	})
	ctx := WithClientIP(context.Background(), "192.0.2.10")

	for i := 0; i < 2; i++ {
		_, err := h.engine.Refresh(ctx, "not-a-token")
		expectErr(t, err, ErrRefreshInvalid)
	}
	_, err := h.engine.Refresh(ctx, "not-a-token")
	expectErr(t, err, ErrRefreshRateLimited)
}

func TestLogoutBlacklistsAccessAndClearsRefresh(t *testing.T) {
	h := newHarness(t)
	u := h.seedUser(t, "bye@example.com", "Passw0rd", true, true)
	res := h.login(t, "bye@example.com", "Passw0rd")
	ctx := context.Background()

	auth, err := h.engine.Authenticate(ctx, res.AccessToken)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if _, err := h.engine.Logout(ctx, auth, res.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}

	_, err = h.engine.Authenticate(ctx, res.AccessToken)
	expectErr(t, err, ErrTokenBlacklisted)

	ttl := h.mr.TTL("blacklist:" + res.AccessToken)
	if ttl <= 0 || ttl > 15*time.Minute {
		t.Fatalf("blacklist ttl must match remaining access lifetime, got %v", ttl)
	}
	if stored := h.users.get(u.ID); stored.RefreshTokenHash != "" || stored.RefreshTokenExpiresAt != nil {
		t.Fatal("logout must clear the refresh token")
	}

	_, err = h.engine.Refresh(ctx, res.RefreshToken)
	expectErr(t, err, ErrRefreshInvalid)

	_, err = h.engine.Logout(ctx, AuthContext{}, "")
	expectErr(t, err, ErrAuthRequired)
}

func TestAuthenticateFailures(t *testing.T) {
	h := newHarness(t)
	u := h.seedUser(t, "auth@example.com", "Passw0rd", true, true)
	res := h.login(t, "auth@example.com", "Passw0rd")
	ctx := context.Background()

	_, err := h.engine.Authenticate(ctx, "")
	expectErr(t, err, ErrNoToken)

	_, err = h.engine.Authenticate(ctx, "abc.def.ghi")
	expectErr(t, err, ErrTokenInvalid)

	h.users.set(u.ID, func(u *User) { u.IsActive = false })
	_, err = h.engine.Authenticate(ctx, res.AccessToken)
	expectErr(t, err, ErrTokenUserInactive)

	h.users.mu.Lock()
	delete(h.users.users, u.ID)
	h.users.mu.Unlock()
	_, err = h.engine.Authenticate(ctx, res.AccessToken)
	expectErr(t, err, ErrTokenUserGone)
}

func TestAuthenticateExpiredToken(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.JWT.AccessTTL = time.Second
	})
	h.seedUser(t, "short@example.com", "Passw0rd", true, true)
	res := h.login(t, "short@example.com", "Passw0rd")

	time.Sleep(2100 * time.Millisecond)

	_, err := h.engine.Authenticate(context.Background(), res.AccessToken)
	expectErr(t, err, ErrTokenExpired)
}

func TestMeAndRequireRole(t *testing.T) {
	h := newHarness(t)
	u := h.seedUser(t, "me@example.com", "Passw0rd", true, true)
	res := h.login(t, "me@example.com", "Passw0rd")
	ctx := context.Background()

	auth, err := h.engine.Authenticate(ctx, res.AccessToken)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	me, err := h.engine.Me(ctx, auth)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if me.Email != "me@example.com" || me.ID != u.ID {
		t.Fatalf("unexpected profile %+v", me)
	}

	if err := h.engine.RequireRole(ctx, auth, RoleUser); err != nil {
		t.Fatalf("require user: %v", err)
	}
	err = h.engine.RequireRole(ctx, auth, RoleAdmin)
	expectErr(t, err, ErrAdminRequired)
	if StatusCode(err) != 403 {
		t.Fatalf("expected 403, got %d", StatusCode(err))
	}

	// Promotion is read from the store on every check.
	h.users.set(u.ID, func(u *User) { u.Role = RoleAdmin })
	if err := h.engine.RequireRole(ctx, auth, RoleAdmin); err != nil {
		t.Fatalf("require admin after promotion: %v", err)
	}
	err = h.engine.RequireRole(ctx, auth, RoleUser)
	expectErr(t, err, ErrUserRequired)

	h.users.set(u.ID, func(u *User) { u.IsActive = false })
	err = h.engine.RequireRole(ctx, auth, RoleAdmin)
	expectErr(t, err, ErrRoleUserInactive)

	_, err = h.engine.Me(ctx, AuthContext{})
	expectErr(t, err, ErrAuthRequired)
}
