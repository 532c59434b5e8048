package actions

import (
	"context"
	"strings"

	"github.com/resolving/chatsync/internal/chat"
	"github.com/resolving/chatsync/pkg/models"
)

// The admin user-management surface. These calls share the envelope contract
// with moderation but have no live-sync requirement; the session only applies
// the reload compensation policy to their outcomes.

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type changeRoleRequest struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

// CreateUser issues POST /admin/create_user. Username and password are
// required client-side before any network call.
func (g *Gateway) CreateUser(ctx context.Context, username, password string, role models.Role) (models.ActionResult, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return models.ActionResult{}, chat.ErrValidation("username and password are required", nil)
	}
	if role == "" {
		role = models.RoleUser
	}
	return g.post(ctx, "/admin/create_user", createUserRequest{
		Username: username,
		Password: password,
		Role:     string(role),
	})
}

// ChangeRole issues POST /admin/change_role.
func (g *Gateway) ChangeRole(ctx context.Context, userID int64, role models.Role) (models.ActionResult, error) {
	return g.post(ctx, "/admin/change_role", changeRoleRequest{UserID: userID, Role: string(role)})
}

// DeleteUser issues POST /admin/delete_user.
func (g *Gateway) DeleteUser(ctx context.Context, userID int64) (models.ActionResult, error) {
	return g.post(ctx, "/admin/delete_user", userRequest{UserID: userID})
}
