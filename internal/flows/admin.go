package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/eduAuth/internal/stores"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	defaultAdminName = "System Administrator"
)

type AccessErrors struct {
	MeNotFound    error
	RoleNotFound  error
	RoleInactive  error
	AdminRequired error
	UserRequired  error
	Failed        error
}

type AccessDeps struct {
	Env    Env
	Users  UserStore
	Errors AccessErrors
}

// RunMe loads the caller's own record.
func RunMe(ctx context.Context, userID string, deps AccessDeps) (*User, error) {
	user, err := deps.Users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, deps.Env.Store.NotFound) {
			return nil, deps.Errors.MeNotFound
		}
		return nil, deps.Env.wrap(deps.Errors.Failed, err)
	}
	return user, nil
}

// RunRequireRole re-reads the caller and checks that it holds role exactly.
func RunRequireRole(ctx context.Context, userID, role string, deps AccessDeps) error {
	user, err := deps.Users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, deps.Env.Store.NotFound) {
			return deps.Errors.RoleNotFound
		}
		return deps.Env.wrap(deps.Errors.Failed, err)
	}
	if !user.IsActive {
		return deps.Errors.RoleInactive
	}
	if user.Role == role {
		return nil
	}
	if role == RoleAdmin {
		return deps.Errors.AdminRequired
	}
	return deps.Errors.UserRequired
}

type SeedErrors struct {
	Failed error
}

type SeedDeps struct {
	Env     Env
	Users   UserStore
	Hasher  PasswordHasher
	Policy  PasswordPolicy
	Errors  SeedErrors
	Metrics Metrics
}

type SeedInput struct {
	Name     string
	Email    string
	Password string
}

// RunEnsureAdmin creates the first administrator and returns its id. The id is
// empty when an admin already exists.
func RunEnsureAdmin(ctx context.Context, in SeedInput, deps SeedDeps) (string, error) {
	exists, err := deps.Users.HasRole(ctx, RoleAdmin)
	if err != nil {
		return "", deps.Env.wrap(deps.Errors.Failed, err)
	}
	if exists {
		return "", nil
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = defaultAdminName
	}
	email := stores.NormalizeEmail(in.Email)
	if problems := validateSignup(name, email, in.Password, deps.Policy); len(problems) > 0 {
		return "", deps.Env.Invalid(joinProblems(problems))
	}

	hash, err := deps.Hasher.Hash(in.Password)
	if err != nil {
		return "", deps.Env.wrap(deps.Errors.Failed, err)
	}
	user, err := deps.Users.Create(ctx, NewUser{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         RoleAdmin,
		IsVerified:   true,
		IsActive:     true,
	})
	if err != nil {
		return "", deps.Env.wrap(deps.Errors.Failed, err)
	}

	deps.Env.inc(deps.Metrics.AdminSeeded)
	deps.Env.audit(ctx, AuditRecord{Event: EventAdminSeeded, UserID: user.ID, Email: email, Success: true})
	return user.ID, nil
}
