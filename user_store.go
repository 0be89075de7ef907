package eduAuth

import (
	"context"
	"time"

	"github.com/MrEthical07/eduAuth/internal/flows"
)

// flowUsers adapts a UserStore to the flow-local contract.
type flowUsers struct {
	store UserStore
}

func toFlowUser(u *User) *flows.User {
	if u == nil {
		return nil
	}
	return &flows.User{
		ID:                    u.ID,
		Name:                  u.Name,
		Email:                 u.Email,
		PasswordHash:          u.PasswordHash,
		Role:                  string(u.Role),
		IsVerified:            u.IsVerified,
		IsActive:              u.IsActive,
		LastLogin:             u.LastLogin,
		RefreshTokenHash:      u.RefreshTokenHash,
		RefreshTokenExpiresAt: u.RefreshTokenExpiresAt,
		CreatedAt:             u.CreatedAt,
	}
}

func publicFromFlow(u *flows.User) PublicUser {
	if u == nil {
		return PublicUser{}
	}
	return PublicUser{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Role:       Role(u.Role),
		IsVerified: u.IsVerified,
		IsActive:   u.IsActive,
		LastLogin:  u.LastLogin,
		CreatedAt:  u.CreatedAt,
	}
}

func (a flowUsers) found(u *User, err error) (*flows.User, error) {
	if err != nil {
		return nil, err
	}
	return toFlowUser(u), nil
}

func (a flowUsers) FindByEmail(ctx context.Context, email string) (*flows.User, error) {
	return a.found(a.store.FindByEmail(ctx, email))
}

func (a flowUsers) FindByID(ctx context.Context, id string) (*flows.User, error) {
	return a.found(a.store.FindByID(ctx, id))
}

func (a flowUsers) FindByRefreshTokenHash(ctx context.Context, hash string) (*flows.User, error) {
	return a.found(a.store.FindByRefreshTokenHash(ctx, hash))
}

func (a flowUsers) Create(ctx context.Context, in flows.NewUser) (*flows.User, error) {
	return a.found(a.store.Create(ctx, NewUser{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Role:         Role(in.Role),
		IsVerified:   in.IsVerified,
		IsActive:     in.IsActive,
	}))
}

func (a flowUsers) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return a.store.UpdatePassword(ctx, id, passwordHash)
}

func (a flowUsers) SetRefreshToken(ctx context.Context, id, hash string, expiresAt time.Time) error {
	return a.store.SetRefreshToken(ctx, id, hash, expiresAt)
}

func (a flowUsers) RotateRefreshToken(ctx context.Context, id, oldHash, newHash string, expiresAt time.Time) error {
	return a.store.RotateRefreshToken(ctx, id, oldHash, newHash, expiresAt)
}

func (a flowUsers) ClearRefreshToken(ctx context.Context, id string) error {
	return a.store.ClearRefreshToken(ctx, id)
}

func (a flowUsers) TouchLogin(ctx context.Context, id string, at time.Time) error {
	return a.store.TouchLogin(ctx, id, at)
}

func (a flowUsers) HasRole(ctx context.Context, role string) (bool, error) {
	return a.store.HasRole(ctx, Role(role))
}
