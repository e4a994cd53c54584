package models

import "time"

// User is an account that owns objects under the "<ID>/" key prefix.
// PasswordHash is a bcrypt hash and never leaves the server.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}
