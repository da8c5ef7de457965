// Package auth exposes owner sign up, sign in, token refresh and sign out.
package auth

import (
	"context"
	"net/http"

	"github.com/angelmondragon/menuboard-backend/api/middleware"
	"github.com/angelmondragon/menuboard-backend/api/responses"
	"github.com/angelmondragon/menuboard-backend/api/validators"
	"github.com/angelmondragon/menuboard-backend/internal/auth"
	pkgerrors "github.com/angelmondragon/menuboard-backend/pkg/errors"
	"github.com/angelmondragon/menuboard-backend/pkg/logger"
)

// AuthRegister opens a restaurant and signs its owner in.
func AuthRegister(svc auth.RegisterService, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable("register", logg)
	}
	return jsonCall(logg, http.StatusCreated, svc.Register)
}

func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable("auth", logg)
	}
	return jsonCall(logg, http.StatusOK, svc.Login)
}

// AuthRefresh trades a refresh token, together with the access token it was
// issued with, for a new pair. The old refresh token stops working.
func AuthRefresh(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable("auth", logg)
	}
	return jsonCall(logg, http.StatusOK, svc.Refresh)
}

// AuthLogout revokes the session behind the calling access token. It must
// run behind middleware.Auth.
func AuthLogout(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable("auth", logg)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := middleware.PrincipalFrom(r.Context())
		if p.AccessID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id"))
			return
		}
		if err := svc.Logout(r.Context(), p.AccessID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// jsonCall decodes and validates a Req body, hands it to call and writes the
// result with status.
func jsonCall[Req, Resp any](logg *logger.Logger, status int, call func(context.Context, Req) (Resp, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body Req
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := call(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}

func unavailable(name string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable"))
	}
}
