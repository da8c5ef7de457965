// Package requestctx resolves the identifiers handlers act on: the owner's
// tenant from the auth context and uuid path parameters.
package requestctx

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/menuboard-backend/api/middleware"
	pkgerrors "github.com/angelmondragon/menuboard-backend/pkg/errors"
)

// TenantID returns the restaurant the authenticated owner manages.
func TenantID(r *http.Request) (uuid.UUID, error) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "restaurant context required")
	}
	return p.TenantID, nil
}

// UserID returns the authenticated owner, or uuid.Nil.
func UserID(r *http.Request) uuid.UUID {
	p, _ := middleware.PrincipalFrom(r.Context())
	return p.UserID
}

// PathUUID parses the chi URL parameter name.
func PathUUID(r *http.Request, name, label string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, label+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+label)
	}
	return id, nil
}
