package model

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Principal is the caller identity supplied by the external identity provider.
// The zero value is the anonymous caller.
type Principal struct {
	UserID string
	Email  string
	Name   string
	Role   Role
}

func Anonymous() Principal { return Principal{} }

func (p Principal) IsAnonymous() bool { return p.UserID == "" }
func (p Principal) IsAdmin() bool     { return p.UserID != "" && p.Role == RoleAdmin }
