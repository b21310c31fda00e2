package models

import "strings"

// JWTSigningKey is one row of the JWT signing key store.
//
// CreatedAt only determines which key was added last; it says nothing about
// validity or lifetime, which are decided outside the storage layer.
type JWTSigningKey struct {
	KeyID     string
	KeyString string
	Algorithm string
	CreatedAt int64
}

// IsAsymmetric reports whether the key material holds a public|private pair
// rather than a single shared secret.
func (k JWTSigningKey) IsAsymmetric() bool {
	return strings.Contains(k.KeyString, "|")
}

// SessionSigningKey is one row of the session access-token signing key store,
// keyed by its creation time.
type SessionSigningKey struct {
	CreatedAtTime int64
	Value         string
}
