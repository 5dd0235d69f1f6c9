package models

import "time"

// RefreshToken is the server-side record of a user's single live refresh
// token. Only the keyed hash of the token is kept; the raw value goes to the
// client and nowhere else.
type RefreshToken struct {
	UserID    string
	TokenHash string
	ExpiresAt time.Time
}
