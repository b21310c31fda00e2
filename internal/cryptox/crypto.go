// Package cryptox holds the cryptographic helpers of the storage layer:
// password hashing, signing-key generation, and random secrets.
package cryptox

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrMalformedKeyPair means a stored key string does not hold a
// base64(public)|base64(private) pair.
var ErrMalformedKeyPair = errors.New("malformed key pair string")

// HashPassword hashes a plaintext password with bcrypt at the default cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether a plaintext password matches a bcrypt hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateRSAKeyPair mints a 2048-bit RSA key pair and encodes it as a single
// storable string: base64(PKIX public key) + "|" + base64(PKCS#8 private
// key). The pipe separator is what marks key material as asymmetric.
func GenerateRSAKeyPair() (string, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return "", err
	}

	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return "", err
	}
	priv, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(pub) + "|" + base64.StdEncoding.EncodeToString(priv), nil
}

// ParseRSAKeyPair decodes a key string produced by GenerateRSAKeyPair.
func ParseRSAKeyPair(keyString string) (*rsa.PublicKey, *rsa.PrivateKey, error) {
	pubPart, privPart, found := strings.Cut(keyString, "|")
	if !found {
		return nil, nil, ErrMalformedKeyPair
	}

	pubDER, err := base64.StdEncoding.DecodeString(pubPart)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrMalformedKeyPair, err)
	}
	privDER, err := base64.StdEncoding.DecodeString(privPart)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrMalformedKeyPair, err)
	}

	pubAny, err := x509.ParsePKIXPublicKey(pubDER)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrMalformedKeyPair, err)
	}
	pub, ok := pubAny.(*rsa.PublicKey)
	if !ok {
		return nil, nil, ErrMalformedKeyPair
	}

	privAny, err := x509.ParsePKCS8PrivateKey(privDER)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrMalformedKeyPair, err)
	}
	priv, ok := privAny.(*rsa.PrivateKey)
	if !ok {
		return nil, nil, ErrMalformedKeyPair
	}

	return pub, priv, nil
}

// GenerateSecret returns n random bytes base64-encoded, for symmetric
// session signing keys.
func GenerateSecret(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
