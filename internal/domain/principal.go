package domain

// Principal is the external identity behind an inbound event.
type Principal struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Handle string `json:"handle"`
}

// Role is derived per request from directory membership.
type Role int

const (
	RoleUnauthorized Role = iota
	RoleEditor
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleEditor:
		return "editor"
	default:
		return "unauthorized"
	}
}

// CanEdit reports whether the role may browse and change articles.
func (r Role) CanEdit() bool {
	return r == RoleEditor || r == RoleAdmin
}

const (
	PlaceholderName   = "не указано"
	PlaceholderHandle = "не указан"
)

// Editor is a registered editor as persisted in the directory.
type Editor struct {
	ID     int64
	Name   string
	Handle string
}

// EditorChange is the audit record emitted when the editor list changes.
type EditorChange struct {
	EditorID int64     `json:"editor_id"`
	Actor    Principal `json:"actor"`
}
