package models

// UserRole assigns one role to one user.
type UserRole struct {
	UserID string
	Role   string
}
