// Package memstore is an in-process [eduAuth.UserStore] for development
// servers and tests. Nothing survives a restart.
package memstore

import (
	"context"
	"sync"
	"time"

	eduAuth "github.com/MrEthical07/eduAuth"
	"github.com/google/uuid"
)

// Store keeps users in memory behind one mutex. Returned users are copies.
type Store struct {
	mu      sync.RWMutex
	byID    map[string]*eduAuth.User
	byEmail map[string]string
	now     func() time.Time
}

var _ eduAuth.UserStore = (*Store)(nil)

func New() *Store {
	return &Store{
		byID:    make(map[string]*eduAuth.User),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func clone(u *eduAuth.User) *eduAuth.User {
	c := *u
	if u.LastLogin != nil {
		t := *u.LastLogin
		c.LastLogin = &t
	}
	if u.RefreshTokenExpiresAt != nil {
		t := *u.RefreshTokenExpiresAt
		c.RefreshTokenExpiresAt = &t
	}
	return &c
}

func (s *Store) FindByEmail(_ context.Context, email string) (*eduAuth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, eduAuth.ErrUserNotFound
	}
	return clone(s.byID[id]), nil
}

func (s *Store) FindByID(_ context.Context, id string) (*eduAuth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, eduAuth.ErrUserNotFound
	}
	return clone(u), nil
}

// FindByRefreshTokenHash scans every user; fine at development scale.
func (s *Store) FindByRefreshTokenHash(_ context.Context, hash string) (*eduAuth.User, error) {
	if hash == "" {
		return nil, eduAuth.ErrUserNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.byID {
		if u.RefreshTokenHash == hash {
			return clone(u), nil
		}
	}
	return nil, eduAuth.ErrUserNotFound
}

func (s *Store) Create(_ context.Context, in eduAuth.NewUser) (*eduAuth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[in.Email]; ok {
		return nil, eduAuth.ErrUserExists
	}
	now := s.now().UTC()
	u := &eduAuth.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		IsVerified:   in.IsVerified,
		IsActive:     in.IsActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.byID[u.ID] = u
	s.byEmail[u.Email] = u.ID
	return clone(u), nil
}

// update runs fn on the stored user under the write lock.
func (s *Store) update(id string, fn func(u *eduAuth.User) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return eduAuth.ErrUserNotFound
	}
	if err := fn(u); err != nil {
		return err
	}
	u.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Store) UpdatePassword(_ context.Context, id, passwordHash string) error {
	return s.update(id, func(u *eduAuth.User) error {
		u.PasswordHash = passwordHash
		return nil
	})
}

func (s *Store) SetRefreshToken(_ context.Context, id, hash string, expiresAt time.Time) error {
	return s.update(id, func(u *eduAuth.User) error {
		u.RefreshTokenHash = hash
		u.RefreshTokenExpiresAt = &expiresAt
		return nil
	})
}

func (s *Store) RotateRefreshToken(_ context.Context, id, oldHash, newHash string, expiresAt time.Time) error {
	return s.update(id, func(u *eduAuth.User) error {
		if u.RefreshTokenHash == "" || u.RefreshTokenHash != oldHash {
			return eduAuth.ErrRefreshTokenStale
		}
		u.RefreshTokenHash = newHash
		u.RefreshTokenExpiresAt = &expiresAt
		return nil
	})
}

func (s *Store) ClearRefreshToken(_ context.Context, id string) error {
	return s.update(id, func(u *eduAuth.User) error {
		u.RefreshTokenHash = ""
		u.RefreshTokenExpiresAt = nil
		return nil
	})
}

func (s *Store) TouchLogin(_ context.Context, id string, at time.Time) error {
	return s.update(id, func(u *eduAuth.User) error {
		u.LastLogin = &at
		return nil
	})
}

func (s *Store) HasRole(_ context.Context, role eduAuth.Role) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.byID {
		if u.Role == role {
			return true, nil
		}
	}
	return false, nil
}

// SetActive flips a user's active flag. The engine never deactivates users;
// admin tooling and tests do.
func (s *Store) SetActive(_ context.Context, id string, active bool) error {
	return s.update(id, func(u *eduAuth.User) error {
		u.IsActive = active
		return nil
	})
}

// SetRole changes a user's role.
func (s *Store) SetRole(_ context.Context, id string, role eduAuth.Role) error {
	return s.update(id, func(u *eduAuth.User) error {
		u.Role = role
		return nil
	})
}

// Len reports the number of stored users.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
