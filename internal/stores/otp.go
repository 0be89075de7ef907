package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	genericOTPPrefix = "generic_otp:"
	resendPrefix     = "resend:"
)

// OTPStore keeps the standalone OTPs sent to existing accounts and the
// per-email cooldown that throttles signup OTP resends.
type OTPStore struct {
	kv       *KV
	ttl      time.Duration
	cooldown time.Duration
}

// NewOTPStore returns an OTPStore. ttl bounds generic OTPs and cooldown
// bounds the resend marker.
func NewOTPStore(kv *KV, ttl, cooldown time.Duration) *OTPStore {
	return &OTPStore{kv: kv, ttl: ttl, cooldown: cooldown}
}

// Issue stores otp for email unless one is already outstanding.
func (s *OTPStore) Issue(ctx context.Context, email, otp string) (bool, error) {
	data, err := json.Marshal(otpPayload{OTP: otp})
	if err != nil {
		return false, fmt.Errorf("encode otp: %w", err)
	}
	return s.kv.SetNX(ctx, genericOTPPrefix+NormalizeEmail(email), string(data), s.ttl)
}

// Get returns the outstanding generic OTP for email.
func (s *OTPStore) Get(ctx context.Context, email string) (string, bool, error) {
	return readOTP(ctx, s.kv, genericOTPPrefix+NormalizeEmail(email))
}

// AcquireResend claims the resend slot for email. It returns false while a
// previous resend is still cooling down.
func (s *OTPStore) AcquireResend(ctx context.Context, email string) (bool, error) {
	return s.kv.SetNX(ctx, resendPrefix+NormalizeEmail(email), "1", s.cooldown)
}
