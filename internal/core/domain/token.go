package domain

import "time"

// TokenPair is issued on every successful login or refresh.
type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
}

// RefreshRecord is what the server keeps for an outstanding refresh token.
// Only the token's hash is used as the lookup key; the plaintext never
// leaves the response that issued it.
type RefreshRecord struct {
	UserID    string    `json:"user_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
