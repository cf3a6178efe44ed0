package auth

import (
	"context"
	"errors"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserInactive       = errors.New("user is inactive")
)

// IService manages operator accounts. Every decision-affecting event
// (login, failed login, password change) lands in the audit log.
type IService interface {
	Login(ctx context.Context, username, password string) (role string, err error)
	// ChangePassword verifies oldPassword unless technicianReset is set.
	ChangePassword(ctx context.Context, username, oldPassword, newPassword string, technicianReset bool) error
}
