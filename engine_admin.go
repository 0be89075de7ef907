package eduAuth

import (
	"context"

	"github.com/MrEthical07/eduAuth/internal/flows"
	"go.uber.org/zap"
)

// Me returns the caller's public profile.
func (e *Engine) Me(ctx context.Context, auth AuthContext) (PublicUser, error) {
	if err := e.ready(); err != nil {
		return PublicUser{}, err
	}
	if auth.UserID == "" {
		return PublicUser{}, ErrAuthRequired
	}
	user, err := flows.RunMe(ctx, auth.UserID, e.accessFlowDeps(ErrInternal))
	if err != nil {
		return PublicUser{}, e.finish(ctx, "me", err)
	}
	return publicFromFlow(user), nil
}

// RequireRole re-reads the caller and fails unless it is active and holds
// role. Roles are exact: an admin does not satisfy RequireRole(RoleUser).
func (e *Engine) RequireRole(ctx context.Context, auth AuthContext, role Role) error {
	if err := e.ready(); err != nil {
		return err
	}
	if auth.UserID == "" {
		return ErrAuthRequired
	}
	if err := flows.RunRequireRole(ctx, auth.UserID, string(role), e.accessFlowDeps(ErrAuthorization)); err != nil {
		return e.finish(ctx, "require_role", err)
	}
	return nil
}

// EnsureAdmin creates seed as the first administrator. It is a no-op that
// reports false once any admin exists.
func (e *Engine) EnsureAdmin(ctx context.Context, seed AdminSeed) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	adminID, err := flows.RunEnsureAdmin(ctx, flows.SeedInput{
		Name:     seed.Name,
		Email:    seed.Email,
		Password: seed.Password,
	}, flows.SeedDeps{
		Env:     e.flowEnv(),
		Users:   flowUsers{store: e.users},
		Hasher:  e.hasher,
		Policy:  e.passwordPolicy(),
		Errors:  flows.SeedErrors{Failed: ErrInternal},
		Metrics: flowMetrics,
	})
	if err != nil {
		return false, e.finish(ctx, "ensure_admin", err)
	}
	if adminID == "" {
		return false, nil
	}
	e.log.Info("admin account created", zap.String("user_id", adminID))
	return true, nil
}

func (e *Engine) accessFlowDeps(failed *Error) flows.AccessDeps {
	return flows.AccessDeps{
		Env:   e.flowEnv(),
		Users: flowUsers{store: e.users},
		Errors: flows.AccessErrors{
			MeNotFound:    ErrMeUserNotFound,
			RoleNotFound:  ErrRoleUserNotFound,
			RoleInactive:  ErrRoleUserInactive,
			AdminRequired: ErrAdminRequired,
			UserRequired:  ErrUserRequired,
			Failed:        failed,
		},
	}
}
