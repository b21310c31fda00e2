package models

// PasswordResetToken belongs to one emailpassword user. Token values are
// unique across all users.
type PasswordResetToken struct {
	UserID      string
	Token       string
	TokenExpiry int64
}

// EmailVerificationToken is keyed by (user id, email, token); the token value
// itself is globally unique. It is independent of any single recipe store.
type EmailVerificationToken struct {
	UserID      string
	Email       string
	Token       string
	TokenExpiry int64
}
