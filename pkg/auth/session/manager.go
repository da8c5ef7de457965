// Package session keeps refresh sessions in redis, keyed by the jti of the
// access token they were issued with. Refresh tokens are single use.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/menuboard-backend/pkg/config"
	redisclient "github.com/angelmondragon/menuboard-backend/pkg/redis"
)

const refreshTokenBytes = 32

var ErrInvalidRefreshToken = errors.New("invalid refresh token")

type store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	DeleteIfValue(ctx context.Context, key, value string) (bool, error)
	AccessSessionKey(accessID string) string
}

// Owner identifies who a refresh session belongs to.
type Owner struct {
	UserID   uuid.UUID `json:"user_id"`
	TenantID uuid.UUID `json:"tenant_id"`
}

// record is the stored session. Only a digest of the refresh token is kept.
type record struct {
	TokenHash string    `json:"token_hash"`
	IssuedAt  time.Time `json:"issued_at"`
	Owner
}

type Manager struct {
	store store
	ttl   time.Duration
	now   func() time.Time
}

// AccessSessionChecker is the read-only surface the auth middleware needs.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

func NewManager(client *redisclient.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return newManager(client, cfg)
}

func newManager(s store, cfg config.JWTConfig) (*Manager, error) {
	ttl := cfg.RefreshTokenTTL()
	if ttl <= 0 {
		return nil, errors.New("refresh token ttl must be positive")
	}
	if accessTTL := time.Duration(cfg.ExpirationMinutes) * time.Minute; ttl <= accessTTL {
		return nil, fmt.Errorf("refresh token ttl (%s) must exceed access token ttl (%s)", ttl, accessTTL)
	}
	return &Manager{store: s, ttl: ttl, now: time.Now}, nil
}

// NewAccessID produces the identifier used as the JWT jti and session key.
func NewAccessID() string {
	return uuid.NewString()
}

// Generate opens a session for owner under accessID and returns the
// refresh token. The token itself is never stored.
func (m *Manager) Generate(ctx context.Context, accessID string, owner Owner) (string, error) {
	if strings.TrimSpace(accessID) == "" {
		return "", errors.New("access id is required")
	}
	if owner.UserID == uuid.Nil {
		return "", errors.New("session owner is required")
	}
	token, err := newRefreshToken()
	if err != nil {
		return "", err
	}
	rec := record{TokenHash: digest(token), IssuedAt: m.now().UTC(), Owner: owner}
	if err := m.save(ctx, accessID, rec); err != nil {
		return "", err
	}
	return token, nil
}

// Rotate trades a refresh token for a new access id and refresh token.
// Of two concurrent rotations with the same token only one succeeds.
func (m *Manager) Rotate(ctx context.Context, oldAccessID, provided string) (Owner, string, string, error) {
	if strings.TrimSpace(oldAccessID) == "" || strings.TrimSpace(provided) == "" {
		return Owner{}, "", "", ErrInvalidRefreshToken
	}

	key := m.store.AccessSessionKey(oldAccessID)
	raw, err := m.store.Get(ctx, key)
	if err != nil {
		if redisclient.IsNil(err) {
			return Owner{}, "", "", ErrInvalidRefreshToken
		}
		return Owner{}, "", "", err
	}
	var stored record
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return Owner{}, "", "", ErrInvalidRefreshToken
	}
	if subtle.ConstantTimeCompare([]byte(stored.TokenHash), []byte(digest(provided))) != 1 {
		return Owner{}, "", "", ErrInvalidRefreshToken
	}

	claimed, err := m.store.DeleteIfValue(ctx, key, raw)
	if err != nil {
		return Owner{}, "", "", err
	}
	if !claimed {
		return Owner{}, "", "", ErrInvalidRefreshToken
	}

	newAccessID := NewAccessID()
	newToken, err := m.Generate(ctx, newAccessID, stored.Owner)
	if err != nil {
		return Owner{}, "", "", err
	}
	return stored.Owner, newAccessID, newToken, nil
}

// Revoke ends the session tied to accessID. Unknown ids are not an error.
func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return errors.New("access id is required")
	}
	return m.store.Del(ctx, m.store.AccessSessionKey(accessID))
}

// HasSession reports whether accessID still has a live refresh session.
func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, errors.New("access id is required")
	}
	if _, err := m.store.Get(ctx, m.store.AccessSessionKey(accessID)); err != nil {
		if redisclient.IsNil(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (m *Manager) save(ctx context.Context, accessID string, rec record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	return m.store.Set(ctx, m.store.AccessSessionKey(accessID), string(raw), m.ttl)
}

func newRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
