// Package models defines the entities persisted by the storage layer.
// Timestamps are epoch milliseconds throughout, matching the BIGINT columns.
package models

import "github.com/google/uuid"

// RecipeID tags which authentication method owns a user.
type RecipeID string

const (
	RecipeEmailPassword RecipeID = "emailpassword"
	RecipeThirdParty    RecipeID = "thirdparty"
	RecipePasswordless  RecipeID = "passwordless"
)

// ParseRecipeID maps a stored tag back to a RecipeID. The boolean is false
// for tags this build does not recognise.
func ParseRecipeID(s string) (RecipeID, bool) {
	switch RecipeID(s) {
	case RecipeEmailPassword, RecipeThirdParty, RecipePasswordless:
		return RecipeID(s), true
	}
	return "", false
}

// NewUserID returns a fresh opaque user identifier.
func NewUserID() string {
	return uuid.NewString()
}

// User is a row of the central registry: one per user across all recipes.
type User struct {
	ID         string
	RecipeID   RecipeID
	TimeJoined int64
}

// EmailPasswordUser is the emailpassword recipe's view of a user.
type EmailPasswordUser struct {
	ID           string
	Email        string
	PasswordHash string
	TimeJoined   int64
}

// ThirdParty is the natural composite key of a thirdparty user: the provider
// and the user's id at that provider.
type ThirdParty struct {
	ID     string
	UserID string
}

// ThirdPartyUser is the thirdparty recipe's view of a user.
type ThirdPartyUser struct {
	ID         string
	Email      string
	ThirdParty ThirdParty
	TimeJoined int64
}

// PasswordlessUser is the passwordless recipe's view of a user. At least one
// of Email or PhoneNumber is set; each is unique when present.
type PasswordlessUser struct {
	ID          string
	Email       *string
	PhoneNumber *string
	TimeJoined  int64
}
