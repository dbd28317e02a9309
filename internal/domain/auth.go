package domain

import "time"

// Session is the server-side record behind a bearer token. Revoking the
// session invalidates the token regardless of its signature or expiry.
type Session struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"`
	Provider  AuthProvider `json:"provider"`
	CreatedAt time.Time    `json:"created_at"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
