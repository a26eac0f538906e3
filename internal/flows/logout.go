package flows

import "context"

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Revoke func(ctx context.Context, userID string) error
}

// RunLogout revokes the stored refresh token. Revoke is expected to treat a
// missing record or user as success.
func RunLogout(ctx context.Context, userID string, deps LogoutDeps) error {
	return deps.Revoke(ctx, userID)
}
