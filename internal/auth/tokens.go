package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	pkgAuth "github.com/angelmondragon/menuboard-backend/pkg/auth"
	"github.com/angelmondragon/menuboard-backend/pkg/auth/session"
	"github.com/angelmondragon/menuboard-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/menuboard-backend/pkg/errors"
)

type sessionManager interface {
	Generate(ctx context.Context, accessID string, owner session.Owner) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (session.Owner, string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

// issueTokens mints an access token and stores the matching refresh session.
func issueTokens(ctx context.Context, sessions sessionManager, cfg config.JWTConfig, now time.Time, userID, tenantID uuid.UUID) (TokenPair, error) {
	accessID := session.NewAccessID()
	accessToken, err := pkgAuth.MintAccessToken(cfg, now, pkgAuth.AccessTokenPayload{
		UserID:   userID,
		TenantID: tenantID,
		JTI:      accessID,
	})
	if err != nil {
		return TokenPair{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	refreshToken, err := sessions.Generate(ctx, accessID, session.Owner{UserID: userID, TenantID: tenantID})
	if err != nil {
		return TokenPair{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh token")
	}
	return TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}
