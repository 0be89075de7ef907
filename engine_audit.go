package eduAuth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/eduAuth/internal/flows"
	"github.com/google/uuid"
)

// Audit event types emitted by the engine.
const (
	AuditSignupStarted        = flows.EventSignupStarted
	AuditSignupVerified       = flows.EventSignupVerified
	AuditOTPResent            = flows.EventOTPResent
	AuditLoginSuccess         = flows.EventLoginSuccess
	AuditLoginFailure         = flows.EventLoginFailure
	AuditLoginRateLimited     = flows.EventLoginRateLimited
	AuditRefreshSuccess       = flows.EventRefreshSuccess
	AuditRefreshFailure       = flows.EventRefreshFailure
	AuditLogout               = flows.EventLogout
	AuditPasswordResetRequest = flows.EventPasswordResetBegin
	AuditPasswordResetVerify  = flows.EventPasswordResetVerify
	AuditPasswordReset        = flows.EventPasswordReset
	AuditPasswordChange       = flows.EventPasswordChange
	AuditAdminSeeded          = flows.EventAdminSeeded
)

func (e *Engine) emitAudit(ctx context.Context, rec flows.AuditRecord) {
	if e == nil || e.audit == nil {
		return
	}

	metadata := rec.Metadata
	if id := requestIDFromContext(ctx); id != "" {
		if metadata == nil {
			metadata = make(map[string]string, 1)
		}
		metadata["request_id"] = id
	}

	event := AuditEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: rec.Event,
		UserID:    rec.UserID,
		Email:     rec.Email,
		IP:        clientIPFromContext(ctx),
		Success:   rec.Success,
		Metadata:  metadata,
	}
	if rec.Err != nil {
		event.Error = auditErrorCode(rec.Err)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrInvalidOTP):
		return "invalid_otp"
	case errors.Is(err, ErrEmailNotVerified):
		return "account_unverified"
	case errors.Is(err, ErrAccountDeactivated), errors.Is(err, ErrRefreshDeactivated):
		return "account_disabled"
	case errors.Is(err, ErrRefreshInvalid):
		return "invalid_refresh"
	case errors.Is(err, ErrResetNotVerified):
		return "reset_not_verified"
	case errors.Is(err, ErrCurrentPasswordIncorrect):
		return "invalid_old_password"
	default:
		return KindOf(err).String()
	}
}
