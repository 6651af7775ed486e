package backend

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User is the backend's authenticated identity.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is an issued token pair. Owned by the auth client; invalidated on
// sign-out and never reused across connection identities.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         *User  `json:"user"`
}

// Expired reports whether the access token is past (or within margin of) its
// expiry. When the server did not send expires_at, the exp claim is read from
// the JWT without signature verification: the server remains the authority,
// this is only used to decide when to refresh.
func (s *Session) Expired(now time.Time, margin time.Duration) bool {
	exp := s.ExpiresAt
	if exp == 0 {
		claims := jwt.MapClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(s.AccessToken, claims); err != nil {
			return true
		}
		t, err := claims.GetExpirationTime()
		if err != nil || t == nil {
			return true
		}
		exp = t.Unix()
	}
	return now.Add(margin).Unix() >= exp
}
