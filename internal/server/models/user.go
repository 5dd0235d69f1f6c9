// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is a storefront account. Email is stored lower-cased and is unique.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// UserSummary is the part of a user that may leave the server.
type UserSummary struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role"`
}

// Summary strips the password hash.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}
