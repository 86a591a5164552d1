package core

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

const adminSessionPrefix = "admin:session:"
const adminSessionTTL = 12 * time.Hour

// ErrAdminSessionNotFound is returned when an opaque admin token is unknown or expired.
var ErrAdminSessionNotFound = errors.New("admin session not found")

// IssueAdminToken mints an opaque token for the given operator username and
// stores it in Redis with a TTL, independent of the Keycloak-issued bearer
// tokens end users present to the judge API.
func IssueAdminToken(ctx context.Context, redis RedisClientRaw, username string) (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	token := hex.EncodeToString(raw)
	if err := redis.Set(ctx, adminSessionPrefix+token, username, adminSessionTTL).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// ValidateAdminToken resolves an opaque token to the operator username that issued it.
func ValidateAdminToken(ctx context.Context, redis RedisClientRaw, token string) (string, error) {
	if token == "" {
		return "", ErrAdminSessionNotFound
	}
	username, err := redis.Get(ctx, adminSessionPrefix+token).Result()
	if err != nil {
		return "", ErrAdminSessionNotFound
	}
	return username, nil
}
