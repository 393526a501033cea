package entity

import "fmt"

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleLeader Role = "leader"
	RoleMember Role = "member"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleLeader, RoleMember:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Actor is the identity resolved once per request. Handlers receive it by value.
type Actor struct {
	UserID string
	Role   Role
	// LeaderID is the leader whose club the actor belongs to. Empty when the actor joined no club.
	LeaderID string
}
