package handler

import (
	"time"

	"github.com/skillboard/portal/internal/core/domain"
	"github.com/skillboard/portal/internal/core/ports"
)

// Empty or unknown credentials are not validation errors: they must fail
// like any other wrong password.
type loginRequest struct {
	Email    string `json:"email"    validate:"max=254"`
	Password string `json:"password" validate:"max=1024"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type registerRequest struct {
	Email     string `json:"email"      validate:"required,email,max=254"`
	Password  string `json:"password"   validate:"required,min=8,max=72"`
	Name      string `json:"name"       validate:"required,max=120"`
	AvatarURL string `json:"avatar_url" validate:"omitempty,url"`
	Type      string `json:"type"       validate:"required,user_type"`
}

type tokenResponse struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	ExpiresAt    time.Time       `json:"expires_at"`
	Profile      *domain.Profile `json:"profile"`
}

func toTokenResponse(res *ports.LoginResult) tokenResponse {
	return tokenResponse{
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		ExpiresAt:    res.Tokens.AccessExpiresAt,
		Profile:      res.Profile,
	}
}
