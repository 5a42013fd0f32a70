package users

import (
	"errors"
	"time"
)

type Role string

const (
	RoleAgent      Role = "agent"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailExists  = errors.New("email already exists")
	ErrInvalidRole  = errors.New("invalid role")

	ErrIncompleteUser = errors.New("name and email are required")
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAgent, RoleSupervisor, RoleAdmin:
		return Role(s), nil
	default:
		return "", ErrInvalidRole
	}
}

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	PostName     string
	CreatedAt    time.Time
}

type DeviceToken struct {
	UserID string
	Token  string
}
