package eduAuth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/eduAuth/internal"
	internalaudit "github.com/MrEthical07/eduAuth/internal/audit"
	"github.com/MrEthical07/eduAuth/internal/flows"
	"github.com/MrEthical07/eduAuth/internal/rate"
	"github.com/MrEthical07/eduAuth/internal/stores"
	"github.com/MrEthical07/eduAuth/jwt"
	"github.com/MrEthical07/eduAuth/password"
	"go.uber.org/zap"
)

// Engine runs the auth and session lifecycle. It is safe for concurrent use
// once built and holds no per-request state.
type Engine struct {
	config Config

	users     UserStore
	mailer    Mailer
	signups   *stores.SignupStore
	resets    *stores.ResetStore
	otps      *stores.OTPStore
	blacklist *stores.Blacklist
	limiter   *rate.Limiter

	hasher     *password.Hasher
	jwtManager *jwt.Manager
	dummyHash  string

	audit   *internalaudit.Dispatcher
	metrics *Metrics
	log     *zap.Logger
	now     func() time.Time
}

// Close drains pending audit events. The engine must not be used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped reports how many audit events were discarded because the
// buffer was full or the emitting request's context ended first.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the validated configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() error {
	if e == nil || e.users == nil || e.jwtManager == nil || e.hasher == nil {
		return ErrEngineNotReady
	}
	return nil
}

// finish logs failures that carry a cause and hands err back. Anything that
// is not an *Error is folded into ErrInternal.
func (e *Engine) finish(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}

	var authErr *Error
	if !errors.As(err, &authErr) {
		err = wrap(ErrInternal, err)
		authErr = err.(*Error)
	}
	if authErr.Kind != KindInternal && authErr.Err == nil {
		return err
	}

	fields := []zap.Field{
		zap.String("op", op),
		zap.String("kind", authErr.Kind.String()),
		zap.String("message", authErr.Message),
		zap.Error(authErr.Err),
	}
	if id := requestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if authErr.Kind == KindInternal {
		e.log.Error("auth operation failed", fields...)
	} else {
		e.log.Warn("auth operation degraded", fields...)
	}
	return err
}

func (e *Engine) warn(msg string, err error) {
	e.log.Warn(msg, zap.Error(err))
}

/*
====================================
FLOW WIRING
====================================
*/

func (e *Engine) flowEnv() flows.Env {
	return flows.Env{
		Now:      e.now,
		ClientIP: clientIPFromContext,
		Wrap: func(sentinel, cause error) error {
			var s *Error
			if errors.As(sentinel, &s) {
				return wrap(s, cause)
			}
			return fmt.Errorf("%w: %v", sentinel, cause)
		},
		Invalid: func(message string) error {
			return validationError(message)
		},
		MetricInc: func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit: e.emitAudit,
		Store: flows.StoreErrors{
			NotFound: ErrUserNotFound,
			Exists:   ErrUserExists,
			Stale:    ErrRefreshTokenStale,
		},
	}
}

func (e *Engine) flowTokens() flows.Tokens {
	return flows.Tokens{
		IssueAccess: e.jwtManager.CreateAccess,
		NewRefresh: func() (string, error) {
			return internal.NewRefreshToken(e.config.Token.RefreshTokenLength)
		},
		HashRefresh: internal.HashRefreshToken,
		RefreshTTL:  e.config.Token.RefreshTTL,
	}
}

func (e *Engine) passwordPolicy() flows.PasswordPolicy {
	return flows.PasswordPolicy{
		MinLength:         e.config.Password.MinLength,
		RequireComplexity: e.config.Password.RequireComplexity,
	}
}

var flowMetrics = flows.Metrics{
	SignupStarted:         int(MetricSignupStarted),
	SignupConflict:        int(MetricSignupConflict),
	SignupVerified:        int(MetricSignupVerified),
	SignupOTPInvalid:      int(MetricSignupOTPInvalid),
	OTPResent:             int(MetricOTPResent),
	LoginSuccess:          int(MetricLoginSuccess),
	LoginFailure:          int(MetricLoginFailure),
	LoginRateLimited:      int(MetricLoginRateLimited),
	LoginUnverified:       int(MetricLoginUnverified),
	RefreshSuccess:        int(MetricRefreshSuccess),
	RefreshFailure:        int(MetricRefreshFailure),
	RefreshRateLimited:    int(MetricRefreshRateLimited),
	RefreshRotationLost:   int(MetricRefreshRotationLost),
	Logout:                int(MetricLogout),
	TokenBlacklisted:      int(MetricTokenBlacklisted),
	AuthenticateSuccess:   int(MetricAuthenticateSuccess),
	AuthenticateFailure:   int(MetricAuthenticateFailure),
	PasswordResetRequest:  int(MetricPasswordResetRequest),
	PasswordResetVerified: int(MetricPasswordResetVerified),
	PasswordResetSuccess:  int(MetricPasswordResetSuccess),
	PasswordResetFailure:  int(MetricPasswordResetFailure),
	PasswordChangeSuccess: int(MetricPasswordChangeSuccess),
	PasswordChangeInvalid: int(MetricPasswordChangeInvalidOld),
	PasswordUpgraded:      int(MetricPasswordUpgraded),
	EmailSendFailure:      int(MetricEmailSendFailure),
	AdminSeeded:           int(MetricAdminSeeded),
}

func loginResult(p flows.Pair) LoginResult {
	return LoginResult{
		User:             publicFromFlow(p.User),
		AccessToken:      p.AccessToken,
		AccessExpiresAt:  p.AccessExpiresAt,
		RefreshToken:     p.RefreshToken,
		RefreshExpiresAt: p.RefreshExpiresAt,
	}
}
