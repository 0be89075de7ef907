package eduAuth

import (
	"context"
	"time"

	internalaudit "github.com/MrEthical07/eduAuth/internal/audit"
	"go.uber.org/zap"
)

// Role is the coarse authorization level of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is the durable identity and credential record. It is what a
// UserStore persists; callers outside the engine should only see
// [PublicUser].
type User struct {
	ID                    string
	Name                  string
	Email                 string
	PasswordHash          string
	Role                  Role
	IsVerified            bool
	IsActive              bool
	LastLogin             *time.Time
	RefreshTokenHash      string
	RefreshTokenExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Public projects u onto the fields a client may see.
func (u *User) Public() PublicUser {
	if u == nil {
		return PublicUser{}
	}
	return PublicUser{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Role:       u.Role,
		IsVerified: u.IsVerified,
		IsActive:   u.IsActive,
		LastLogin:  u.LastLogin,
		CreatedAt:  u.CreatedAt,
	}
}

// PublicUser never carries the password hash or refresh token.
type PublicUser struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Role       Role       `json:"role"`
	IsVerified bool       `json:"isVerified"`
	IsActive   bool       `json:"isActive"`
	LastLogin  *time.Time `json:"lastLogin,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// NewUser is the input to UserStore.Create. Email must already be
// normalized and PasswordHash already computed.
type NewUser struct {
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	IsVerified   bool
	IsActive     bool
}

// UserStore persists users. Lookups return ErrUserNotFound on a miss and
// Create returns ErrUserExists for a duplicate email.
//
// The refresh token hash and its expiry only change together:
// SetRefreshToken and RotateRefreshToken write both, ClearRefreshToken
// removes both. RotateRefreshToken is a compare-and-swap on the old hash and
// returns ErrRefreshTokenStale when it loses.
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
	HasRole(ctx context.Context, role Role) (bool, error)
}

// Mailer delivers one-time passwords.
type Mailer interface {
	SendOTP(ctx context.Context, name, email, otp string) error
}

// AuthContext identifies the caller of a protected operation. Only
// [Engine.Authenticate] produces one.
type AuthContext struct {
	UserID      string
	Role        Role
	AccessToken string
	ExpiresAt   time.Time
}

type SignupRequest struct {
	Name     string
	Email    string
	Password string
}

type VerifyOTPRequest struct {
	Email string
	OTP   string
}

type LoginRequest struct {
	Email    string
	Password string
}

type ResetPasswordRequest struct {
	Email           string
	NewPassword     string
	ConfirmPassword string
}

type ChangePasswordRequest struct {
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
}

// AdminSeed describes the administrator created by [Engine.EnsureAdmin].
type AdminSeed struct {
	Name     string
	Email    string
	Password string
}

// LoginResult is returned by every operation that issues a token pair.
type LoginResult struct {
	User             PublicUser
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Ack is the result of an operation that only reports success.
type Ack struct {
	Message string
}

// AuditEvent is a single auth lifecycle record.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink = internalaudit.Sink

// NoOpSink discards events.
type NoOpSink = internalaudit.NoOpSink

// MultiSink fans each event out to several sinks.
type MultiSink = internalaudit.MultiSink

// ChannelSink buffers events in a channel, mostly for tests.
type ChannelSink = internalaudit.ChannelSink

// LoggerSink writes events through zap.
type LoggerSink = internalaudit.LoggerSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewLoggerSink(log *zap.Logger) *LoggerSink {
	return internalaudit.NewLoggerSink(log)
}
