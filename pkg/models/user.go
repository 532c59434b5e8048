package models

// User is a chat participant as reported by a server state snapshot.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Online   bool   `json:"online"`
	IsMuted  bool   `json:"is_muted"`
}

// Identity is the locally authenticated user. The session caches it once at
// startup; delete affordances and moderation controls are rendered from these
// flags rather than re-derived from the server per message.
type Identity struct {
	UserID   int64
	Username string
	Role     Role
}
