// Package common defines shared sentinel errors used across the storage
// layer. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Duplicate-key conditions. Each maps a unique-constraint violation to
	// the identity it protects. They are never retried automatically.
	ErrUserAlreadyExists       = errors.New("user already exists")
	ErrDuplicateEmail          = errors.New("email already in use")
	ErrDuplicatePhoneNumber    = errors.New("phone number already in use")
	ErrDuplicateThirdPartyUser = errors.New("third party user already exists")
	ErrDuplicateToken          = errors.New("token already exists")
	ErrDuplicateRole           = errors.New("role already exists")
	ErrDuplicateKey            = errors.New("key already exists")

	// Unknown-reference conditions: an operation named a parent row that is
	// not there. The caller decides whether to retry.
	ErrUnknownUser   = errors.New("unknown user")
	ErrUnknownRole   = errors.New("unknown role")
	ErrUnknownDevice = errors.New("unknown device")

	// ErrUnknownRecipe means a registry row carries a recipe tag this build
	// does not recognise. That is a data error, not a user error.
	ErrUnknownRecipe = errors.New("unrecognised recipe id")
)
