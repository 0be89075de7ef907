package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	forgotPrefix   = "forgot:"
	verifiedPrefix = "verified:"
)

type otpPayload struct {
	OTP string `json:"otp"`
}

// ResetStore tracks the two-step password reset session: the OTP sent by
// forgot-password and the verified marker set once that OTP matches.
type ResetStore struct {
	kv          *KV
	ttl         time.Duration
	verifiedTTL time.Duration
}

// NewResetStore returns a ResetStore. ttl bounds the OTP entry and
// verifiedTTL the marker.
func NewResetStore(kv *KV, ttl, verifiedTTL time.Duration) *ResetStore {
	return &ResetStore{kv: kv, ttl: ttl, verifiedTTL: verifiedTTL}
}

func forgotKey(email string) string   { return forgotPrefix + NormalizeEmail(email) }
func verifiedKey(email string) string { return verifiedPrefix + NormalizeEmail(email) }

// Begin stores otp for email unless a reset OTP is already outstanding.
func (s *ResetStore) Begin(ctx context.Context, email, otp string) (bool, error) {
	data, err := json.Marshal(otpPayload{OTP: otp})
	if err != nil {
		return false, fmt.Errorf("encode reset otp: %w", err)
	}
	return s.kv.SetNX(ctx, forgotKey(email), string(data), s.ttl)
}

// OTP returns the outstanding reset OTP for email.
func (s *ResetStore) OTP(ctx context.Context, email string) (string, bool, error) {
	return readOTP(ctx, s.kv, forgotKey(email))
}

// MarkVerified records that the reset OTP for email was confirmed.
func (s *ResetStore) MarkVerified(ctx context.Context, email string) error {
	return s.kv.Set(ctx, verifiedKey(email), "true", s.verifiedTTL)
}

// IsVerified reports whether a live verified marker exists for email.
func (s *ResetStore) IsVerified(ctx context.Context, email string) (bool, error) {
	value, ok, err := s.kv.Get(ctx, verifiedKey(email))
	if err != nil || !ok {
		return false, err
	}
	return value == "true", nil
}

// Finish removes both the marker and the OTP entry.
func (s *ResetStore) Finish(ctx context.Context, email string) error {
	return s.kv.Delete(ctx, verifiedKey(email), forgotKey(email))
}

func readOTP(ctx context.Context, kv *KV, key string) (string, bool, error) {
	raw, ok, err := kv.Get(ctx, key)
	if err != nil || !ok {
		return "", false, err
	}

	var payload otpPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return "", false, fmt.Errorf("decode otp entry: %w", err)
	}
	return payload.OTP, true, nil
}
