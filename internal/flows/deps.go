package flows

import (
	"context"
	"time"
)

// User is the flow-local view of a stored user. Role is carried as a plain
// string so this package never imports the root package.
type User struct {
	ID                    string
	Name                  string
	Email                 string
	PasswordHash          string
	Role                  string
	IsVerified            bool
	IsActive              bool
	LastLogin             *time.Time
	RefreshTokenHash      string
	RefreshTokenExpiresAt *time.Time
	CreatedAt             time.Time
}

// NewUser is the flow-local create input.
type NewUser struct {
	Name         string
	Email        string
	PasswordHash string
	Role         string
	IsVerified   bool
	IsActive     bool
}

// UserStore mirrors the root UserStore contract over flow-local types.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	FindByRefreshTokenHash(ctx context.Context, hash string) (*User, error)
	Create(ctx context.Context, input NewUser) (*User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetRefreshToken(ctx context.Context, id, hash string, expiresAt time.Time) error
	RotateRefreshToken(ctx context.Context, id, oldHash, newHash string, expiresAt time.Time) error
	ClearRefreshToken(ctx context.Context, id string) error
	TouchLogin(ctx context.Context, id string, at time.Time) error
	HasRole(ctx context.Context, role string) (bool, error)
}

// StoreErrors are the store contract sentinels the flows branch on.
type StoreErrors struct {
	NotFound error
	Exists   error
	Stale    error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	NeedsUpgrade(encodedHash string) (bool, error)
}

type Mailer interface {
	SendOTP(ctx context.Context, name, email, otp string) error
}

// Tokens issues the access/refresh pair.
type Tokens struct {
	IssueAccess func(userID, role string) (string, time.Time, error)
	NewRefresh  func() (string, error)
	HashRefresh func(string) string
	RefreshTTL  time.Duration
}

// Pair is a freshly issued token pair and the user it belongs to.
type Pair struct {
	User             *User
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	refreshHash      string
}

func (t Tokens) issue(u *User, now time.Time) (Pair, error) {
	access, accessExp, err := t.IssueAccess(u.ID, u.Role)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := t.NewRefresh()
	if err != nil {
		return Pair{}, err
	}
	return Pair{
		User:             u,
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: now.Add(t.RefreshTTL),
		refreshHash:      t.HashRefresh(refresh),
	}, nil
}

// AuditRecord is handed to Env.EmitAudit; the host stamps id, time and IP.
type AuditRecord struct {
	Event    string
	UserID   string
	Email    string
	Success  bool
	Err      error
	Metadata map[string]string
}

// Env is shared by every flow.
type Env struct {
	Now      func() time.Time
	ClientIP func(context.Context) string
	// Wrap attaches cause to a host sentinel.
	Wrap func(sentinel, cause error) error
	// Invalid builds a validation error carrying message.
	Invalid   func(message string) error
	MetricInc func(id int)
	EmitAudit func(ctx context.Context, rec AuditRecord)
	Store     StoreErrors
}

func (e Env) inc(id int) {
	if e.MetricInc != nil {
		e.MetricInc(id)
	}
}

func (e Env) audit(ctx context.Context, rec AuditRecord) {
	if e.EmitAudit != nil {
		e.EmitAudit(ctx, rec)
	}
}

func (e Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Env) clientIP(ctx context.Context) string {
	if e.ClientIP != nil {
		return e.ClientIP(ctx)
	}
	return ""
}

func (e Env) wrap(sentinel, cause error) error {
	if e.Wrap != nil {
		return e.Wrap(sentinel, cause)
	}
	return sentinel
}

// Metrics carries the host metric ids.
type Metrics struct {
	SignupStarted         int
	SignupConflict        int
	SignupVerified        int
	SignupOTPInvalid      int
	OTPResent             int
	LoginSuccess          int
	LoginFailure          int
	LoginRateLimited      int
	LoginUnverified       int
	RefreshSuccess        int
	RefreshFailure        int
	RefreshRateLimited    int
	RefreshRotationLost   int
	Logout                int
	TokenBlacklisted      int
	AuthenticateSuccess   int
	AuthenticateFailure   int
	PasswordResetRequest  int
	PasswordResetVerified int
	PasswordResetSuccess  int
	PasswordResetFailure  int
	PasswordChangeSuccess int
	PasswordChangeInvalid int
	PasswordUpgraded      int
	EmailSendFailure      int
	AdminSeeded           int
}

// Audit event names.
const (
	EventSignupStarted       = "signup_started"
	EventSignupVerified      = "signup_verified"
	EventOTPResent           = "otp_resent"
	EventLoginSuccess        = "login_success"
	EventLoginFailure        = "login_failure"
	EventLoginRateLimited    = "login_rate_limited"
	EventRefreshSuccess      = "refresh_success"
	EventRefreshFailure      = "refresh_failure"
	EventLogout              = "logout"
	EventPasswordResetBegin  = "password_reset_requested"
	EventPasswordResetVerify = "password_reset_verified"
	EventPasswordReset       = "password_reset"
	EventPasswordChange      = "password_change"
	EventAdminSeeded         = "admin_seeded"
)
