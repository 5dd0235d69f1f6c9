// Package models holds the value types the CLI passes between the transport,
// the local session store and the REPL.
package models

import "time"

// User is the public view of an account as returned by the server.
type User struct {
	ID    string
	Email string
	Name  string
	Role  string
}

// TokenPair is an access/refresh token pair issued by the server.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Session is the result of a successful signup or login.
type Session struct {
	TokenPair
	User User
}

// SavedSession is what the CLI keeps on disk between runs so that "resume"
// can refresh without asking for the password again.
type SavedSession struct {
	Email        string
	RefreshToken string
	UpdatedAt    time.Time
}
