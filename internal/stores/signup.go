package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const signupPrefix = "signup:"

// PendingSignup is the registration staged until its OTP is confirmed. The
// password is held in plaintext and hashed only when the user is created, so
// the entry must never outlive its TTL.
type PendingSignup struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	OTP      string `json:"otp"`
}

// SignupStore keeps at most one PendingSignup per email.
type SignupStore struct {
	kv  *KV
	ttl time.Duration
}

// NewSignupStore returns a store whose entries expire after ttl.
func NewSignupStore(kv *KV, ttl time.Duration) *SignupStore {
	return &SignupStore{kv: kv, ttl: ttl}
}

func signupKey(email string) string {
	return signupPrefix + NormalizeEmail(email)
}

// Create stages p. It returns false without writing when an entry for the
// same email already exists.
func (s *SignupStore) Create(ctx context.Context, p PendingSignup) (bool, error) {
	p.Email = NormalizeEmail(p.Email)
	data, err := json.Marshal(p)
	if err != nil {
		return false, fmt.Errorf("encode pending signup: %w", err)
	}
	return s.kv.SetNX(ctx, signupKey(p.Email), string(data), s.ttl)
}

// Get loads the pending signup for email.
func (s *SignupStore) Get(ctx context.Context, email string) (PendingSignup, bool, error) {
	raw, ok, err := s.kv.Get(ctx, signupKey(email))
	if err != nil || !ok {
		return PendingSignup{}, false, err
	}

	var p PendingSignup
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return PendingSignup{}, false, fmt.Errorf("decode pending signup: %w", err)
	}
	return p, true, nil
}

// Exists reports whether a signup is outstanding for email.
func (s *SignupStore) Exists(ctx context.Context, email string) (bool, error) {
	_, ok, err := s.kv.Get(ctx, signupKey(email))
	return ok, err
}

// Delete drops the pending signup. Deleting an absent entry is a no-op.
func (s *SignupStore) Delete(ctx context.Context, email string) error {
	return s.kv.Delete(ctx, signupKey(email))
}
