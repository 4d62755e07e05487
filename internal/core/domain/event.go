package domain

import "time"

// LoginResult classifies the outcome of a login attempt for the audit trail.
type LoginResult string

const (
	LoginSuccess            LoginResult = "success"
	LoginInvalidCredentials LoginResult = "invalid_credentials"
	LoginRateLimited        LoginResult = "rate_limited"
	LoginError              LoginResult = "error"
)

// LoginEvent is one entry of the login audit trail.
type LoginEvent struct {
	ID        string      `bson:"_id"`
	Email     string      `bson:"email"`
	UserID    string      `bson:"user_id,omitempty"`
	Result    LoginResult `bson:"result"`
	IP        string      `bson:"ip,omitempty"`
	UserAgent string      `bson:"user_agent,omitempty"`
	At        time.Time   `bson:"at"`
}
