package model

import "time"

// User is an account stored by the development identity provider.
//
// The real provider owns its accounts; this type only exists so the local
// provider (cmd/devidp) can run the same sign-up / sign-in flows offline.
// PasswordHash is a bcrypt hash and never leaves the provider.
type User struct {
	ID           string    `json:"id"         db:"id"` // uuid, like the hosted provider
	Email        string    `json:"email"      db:"email"`
	PasswordHash string    `json:"-"          db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
