// Package identity derives the local user identity from the session token.
// The client does not verify the signature; the server is the authority and
// the claims only seed the locally cached id/role flags used for rendering
// affordances.
package identity

import (
	"strconv"

	"github.com/golang-jwt/jwt/v5"

	"github.com/resolving/chatsync/internal/chat"
	"github.com/resolving/chatsync/pkg/models"
)

// FromToken parses the session token's claims into an identity. Expected
// claims: user_id (number or numeric string), username, role.
func FromToken(token string) (models.Identity, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return models.Identity{}, chat.ErrAuthentication("failed to parse session token", err)
	}

	id := models.Identity{Role: models.RoleUser}

	switch v := claims["user_id"].(type) {
	case float64:
		id.UserID = int64(v)
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return models.Identity{}, chat.ErrAuthentication("token user_id is not numeric", err)
		}
		id.UserID = parsed
	default:
		return models.Identity{}, chat.ErrAuthentication("token carries no user_id claim", nil)
	}

	if v, ok := claims["username"].(string); ok {
		id.Username = v
	}
	if v, ok := claims["role"].(string); ok {
		if role := models.Role(v); role.Valid() {
			id.Role = role
		}
	}

	return id, nil
}
