package auth

import (
	"github.com/angelmondragon/menuboard-backend/internal/tenants"
	"github.com/angelmondragon/menuboard-backend/internal/users"
)

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest contains the payload required to open a new restaurant.
// Slug is derived from RestaurantName when omitted.
type RegisterRequest struct {
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password"`
	RestaurantName string `json:"restaurant_name" validate:"required"`
	Slug           string `json:"slug,omitempty"`
}

// RefreshRequest carries the previous access token (expired is fine) and its refresh token.
type RefreshRequest struct {
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// TokenPair is the access/refresh token couple handed to the client.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// LoginResponse contains the tokens, user and restaurant produced by a successful sign in or sign up.
type LoginResponse struct {
	TokenPair
	User   *users.UserDTO     `json:"user"`
	Tenant *tenants.TenantDTO `json:"tenant"`
}
