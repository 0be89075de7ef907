package eduAuth

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/eduAuth/jwt"
)

// Config is validated once by Builder.Build and is read-only afterwards.
type Config struct {
	JWT       JWTConfig
	Token     TokenConfig
	OTP       OTPConfig
	Password  PasswordConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	// Secret is the HMAC key for hs256 or the Ed25519 private key.
	Secret    []byte
	PublicKey []byte
	Issuer    string
	Audience  string
	Leeway    time.Duration
}

/*
====================================
REFRESH TOKEN CONFIG
====================================
*/

type TokenConfig struct {
	RefreshTTL time.Duration
	// RefreshTokenLength is the hex length of an issued refresh token.
	RefreshTokenLength int
}

/*
====================================
OTP CONFIG
====================================
*/

type OTPConfig struct {
	// TTL bounds pending signups and reset OTPs.
	TTL time.Duration
	// VerifiedTTL bounds the marker left by a confirmed reset OTP.
	VerifiedTTL time.Duration
	// ResendCooldown bounds resend throttling and standalone OTPs.
	ResendCooldown time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	MinLength         int
	RequireComplexity bool
	// RevokeOnChange clears the stored refresh token after a reset or change.
	RevokeOnChange bool
	UpgradeOnLogin bool
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig budgets are per fixed window. A zero budget disables that
// limiter.
type RateLimitConfig struct {
	MaxLoginAttempts int
	LoginWindow      time.Duration
	MaxRefreshCalls  int
	RefreshWindow    time.Duration
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the production defaults. JWT.Secret is left empty
// and must be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			SigningMethod: string(jwt.MethodHS256),
		},
		Token: TokenConfig{
			RefreshTTL:         7 * 24 * time.Hour,
			RefreshTokenLength: 64,
		},
		OTP: OTPConfig{
			TTL:            600 * time.Second,
			VerifiedTTL:    600 * time.Second,
			ResendCooldown: 60 * time.Second,
		},
		Password: PasswordConfig{
			Memory:            65536,
			Time:              3,
			Parallelism:       2,
			SaltLength:        16,
			KeyLength:         32,
			MinLength:         6,
			RequireComplexity: true,
			UpgradeOnLogin:    true,
		},
		RateLimit: RateLimitConfig{
			MaxLoginAttempts: 5,
			LoginWindow:      15 * time.Minute,
			MaxRefreshCalls:  30,
			RefreshWindow:    time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	switch jwt.SigningMethod(c.JWT.SigningMethod) {
	case jwt.MethodHS256:
		if len(c.JWT.Secret) < jwt.MinHS256SecretBytes {
			return fmt.Errorf("JWT Secret must be at least %d bytes", jwt.MinHS256SecretBytes)
		}
	case jwt.MethodEd25519:
		if len(c.JWT.Secret) == 0 || len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires Secret and PublicKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Refresh tokens
	if c.Token.RefreshTTL <= 0 {
		return errors.New("Token RefreshTTL must be > 0")
	}
	if c.Token.RefreshTokenLength < 32 || c.Token.RefreshTokenLength%2 != 0 {
		return errors.New("Token RefreshTokenLength must be even and >= 32")
	}

	// OTP
	if c.OTP.TTL < time.Second {
		return errors.New("OTP TTL must be >= 1s")
	}
	if c.OTP.VerifiedTTL < time.Second {
		return errors.New("OTP VerifiedTTL must be >= 1s")
	}
	if c.OTP.ResendCooldown < time.Second {
		return errors.New("OTP ResendCooldown must be >= 1s")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}

	// Rate limits
	if c.RateLimit.MaxLoginAttempts < 0 || c.RateLimit.MaxRefreshCalls < 0 {
		return errors.New("RateLimit budgets must be >= 0")
	}
	if c.RateLimit.MaxLoginAttempts > 0 && c.RateLimit.LoginWindow <= 0 {
		return errors.New("RateLimit LoginWindow must be > 0 when login limiting is on")
	}
	if c.RateLimit.MaxRefreshCalls > 0 && c.RateLimit.RefreshWindow <= 0 {
		return errors.New("RateLimit RefreshWindow must be > 0 when refresh limiting is on")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	return nil
}
