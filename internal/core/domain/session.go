package domain

// Session is the client-side authenticated state. The JSON shape is the
// persisted snapshot format and must stay stable across releases.
type Session struct {
	Token          string   `json:"token,omitempty"`
	RefreshToken   string   `json:"refreshToken,omitempty"`
	CurrentUser    *Profile `json:"currentUser"`
	InvalidSession bool     `json:"invalidSession"`
}

// Authenticated reports whether a profile is held. Tokens alone do not make
// a session authenticated.
func (s Session) Authenticated() bool {
	return s.CurrentUser != nil
}

// Clone returns a copy that shares no memory with s.
func (s Session) Clone() Session {
	if s.CurrentUser != nil {
		p := *s.CurrentUser
		s.CurrentUser = &p
	}
	return s
}
