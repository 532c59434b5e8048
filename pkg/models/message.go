package models

// Role is the chat role the server assigns to a user.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleCreator   Role = "creator"
)

// IsModerator reports whether the role carries moderation rights.
// The creator moderates implicitly.
func (r Role) IsModerator() bool {
	return r == RoleModerator || r == RoleCreator
}

// Valid reports whether the role is one the server hands out.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleCreator:
		return true
	}
	return false
}

// Message is a single chat message as delivered by the server. The ID is
// server-assigned and unique; fields are never mutated after creation.
type Message struct {
	ID       int64  `json:"id"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Text     string `json:"text"`
	// Timestamp is the server-formatted display string (e.g. "12:04"),
	// passed through verbatim.
	Timestamp string `json:"timestamp"`
}
