package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/mkuznecovs/authkeeper/internal/common"
	"github.com/mkuznecovs/authkeeper/internal/cryptox"
	"github.com/mkuznecovs/authkeeper/internal/dbx"
	"github.com/mkuznecovs/authkeeper/internal/models"
	"github.com/mkuznecovs/authkeeper/internal/repositories/repomanager"
)

// ErrUnknownSigningKey means a JWT named a key id this store has never
// issued.
var ErrUnknownSigningKey = errors.New("unknown signing key")

const sessionKeySecretBytes = 64

// SigningKeyService owns the lifecycle of JWT and session signing keys:
// lazily minting the first key under a lock, serving the current one, and
// signing/verifying tokens with it.
type SigningKeyService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

// NewSigningKeyService constructs a SigningKeyService.
func NewSigningKeyService(db *sql.DB, m repomanager.RepositoryManager) *SigningKeyService {
	return &SigningKeyService{db: db, repomanager: m}
}

// CurrentJWTKey returns the newest JWT signing key, minting one inside a
// locked transaction if the store is empty. Two processes racing to mint the
// first key serialise on the key id insert; the loser re-runs and reads the
// winner's key.
func (s *SigningKeyService) CurrentJWTKey(ctx context.Context) (*models.JWTSigningKey, error) {
	repo := s.repomanager.JWTSigningKeys()

	var current *models.JWTSigningKey
	backoff := retry.WithMaxRetries(1, retry.NewConstant(time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			keys, err := repo.ListForUpdate(ctx, tx)
			if err != nil {
				return err
			}
			if len(keys) > 0 {
				current = keys[0]
				return nil
			}

			keyString, err := cryptox.GenerateRSAKeyPair()
			if err != nil {
				return fmt.Errorf("error generating signing key: %w", err)
			}
			key := &models.JWTSigningKey{
				KeyID:     uuid.NewString(),
				KeyString: keyString,
				Algorithm: "RS256",
				CreatedAt: time.Now().UnixMilli(),
			}
			if err := repo.Insert(ctx, tx, key); err != nil {
				return err
			}
			current = key
			return nil
		})
		if errors.Is(err, common.ErrDuplicateKey) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return current, nil
}

// SignJWT signs claims with the current JWT key. The key id travels in the
// "kid" header so verifiers can pick the right key after a rotation.
func (s *SigningKeyService) SignJWT(ctx context.Context, claims jwt.MapClaims) (string, error) {
	key, err := s.CurrentJWTKey(ctx)
	if err != nil {
		return "", err
	}
	_, priv, err := cryptox.ParseRSAKeyPair(key.KeyString)
	if err != nil {
		return "", err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = key.KeyID
	return token.SignedString(priv)
}

// VerifyJWT parses and verifies a token against the stored signing keys,
// returning its claims.
func (s *SigningKeyService) VerifyJWT(ctx context.Context, tokenString string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		key, err := s.findJWTKey(ctx, kid)
		if err != nil {
			return nil, err
		}
		pub, _, err := cryptox.ParseRSAKeyPair(key.KeyString)
		if err != nil {
			return nil, err
		}
		return pub, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// findJWTKey resolves a key id with a plain read; only the rotation path
// needs the locked list.
func (s *SigningKeyService) findJWTKey(ctx context.Context, keyID string) (*models.JWTSigningKey, error) {
	keys, err := s.repomanager.JWTSigningKeys().List(ctx, s.db)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		if k.KeyID == keyID {
			return k, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSigningKey, keyID)
}

// CurrentSessionKey returns the newest session access-token signing key,
// minting a random secret if the store is empty.
func (s *SigningKeyService) CurrentSessionKey(ctx context.Context) (*models.SessionSigningKey, error) {
	repo := s.repomanager.SessionSigningKeys(s.db)

	var current *models.SessionSigningKey
	backoff := retry.WithMaxRetries(1, retry.NewConstant(time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			keys, err := repo.ListForUpdate(ctx, tx)
			if err != nil {
				return err
			}
			if len(keys) > 0 {
				current = keys[0]
				return nil
			}

			secret, err := cryptox.GenerateSecret(sessionKeySecretBytes)
			if err != nil {
				return fmt.Errorf("error generating session key: %w", err)
			}
			key := &models.SessionSigningKey{
				CreatedAtTime: time.Now().UnixMilli(),
				Value:         secret,
			}
			if err := repo.Insert(ctx, tx, key); err != nil {
				return err
			}
			current = key
			return nil
		})
		if errors.Is(err, common.ErrDuplicateKey) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return current, nil
}
