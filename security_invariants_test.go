package eduAuth

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestSecurityInvariantUnknownEmailAndWrongPasswordMatch(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "real@example.com", "Passw0rd", true, true)
	ctx := context.Background()

	_, wrongPw := h.engine.Login(ctx, LoginRequest{Email: "real@example.com", Password: "Nope1234"})
	_, unknown := h.engine.Login(ctx, LoginRequest{Email: "ghost@example.com", Password: "Nope1234"})

	if PublicMessage(wrongPw) != PublicMessage(unknown) {
		t.Fatalf("messages differ: %q vs %q", PublicMessage(wrongPw), PublicMessage(unknown))
	}
	if StatusCode(wrongPw) != StatusCode(unknown) {
		t.Fatalf("statuses differ: %d vs %d", StatusCode(wrongPw), StatusCode(unknown))
	}
}

func TestSecurityInvariantPublicUserHidesSecrets(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "pub@example.com", "Passw0rd", true, true)
	res := h.login(t, "pub@example.com", "Passw0rd")

	raw, err := json.Marshal(res.User)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(raw)
	for _, banned := range []string{"password", "Password", "refresh", "argon2id"} {
		if strings.Contains(body, banned) {
			t.Fatalf("public user leaks %q: %s", banned, body)
		}
	}
}

func TestSecurityInvariantRefreshTokenStoredHashed(t *testing.T) {
	h := newHarness(t)
	u := h.seedUser(t, "hash@example.com", "Passw0rd", true, true)
	res := h.login(t, "hash@example.com", "Passw0rd")

	stored := h.users.get(u.ID)
	if stored.RefreshTokenHash == res.RefreshToken {
		t.Fatal("refresh token stored in plaintext")
	}
	if len(stored.RefreshTokenHash) != 64 {
		t.Fatalf("expected sha256 hex digest, got %d chars", len(stored.RefreshTokenHash))
	}
	if len(res.RefreshToken) != 64 {
		t.Fatalf("expected 64 char refresh token, got %d", len(res.RefreshToken))
	}
}

func TestSecurityInvariantLoginReplacesPreviousRefresh(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "single@example.com", "Passw0rd", true, true)
	first := h.login(t, "single@example.com", "Passw0rd")
	h.login(t, "single@example.com", "Passw0rd")

	_, err := h.engine.Refresh(context.Background(), first.RefreshToken)
	expectErr(t, err, ErrRefreshInvalid)
}

func TestSecurityInvariantBlacklistedTokenStaysRejected(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "bl@example.com", "Passw0rd", true, true)
	res := h.login(t, "bl@example.com", "Passw0rd")
	ctx := context.Background()

	auth, err := h.engine.Authenticate(ctx, res.AccessToken)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if _, err := h.engine.Logout(ctx, auth, ""); err != nil {
		t.Fatalf("logout: %v", err)
	}
	// Logging back in does not revive the old access token.
	h.login(t, "bl@example.com", "Passw0rd")

	_, err = h.engine.Authenticate(ctx, res.AccessToken)
	expectErr(t, err, ErrTokenBlacklisted)
}

func TestSecurityInvariantTamperedAccessTokenRejected(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "tamper@example.com", "Passw0rd", true, true)
	res := h.login(t, "tamper@example.com", "Passw0rd")

	parts := strings.Split(res.AccessToken, ".")
	if len(parts) != 3 {
		t.Fatalf("expected compact JWT, got %q", res.AccessToken)
	}
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err := h.engine.Authenticate(context.Background(), tampered)
	expectErr(t, err, ErrTokenInvalid)
}

func TestSecurityInvariantEngineErrorsAreTyped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	errs := []error{}
	_, err := h.engine.Login(ctx, LoginRequest{})
	errs = append(errs, err)
	_, err = h.engine.Refresh(ctx, "")
	errs = append(errs, err)
	_, err = h.engine.Authenticate(ctx, "")
	errs = append(errs, err)
	_, err = h.engine.VerifySignupOTP(ctx, VerifyOTPRequest{Email: "x@example.com", OTP: "123456"})
	errs = append(errs, err)

	for i, err := range errs {
		if err == nil {
			t.Fatalf("case %d: expected error", i)
		}
		if _, ok := err.(*Error); !ok {
			t.Fatalf("case %d: expected *Error, got %T", i, err)
		}
	}
}
