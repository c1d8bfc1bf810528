// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is the slice of the account record this service reads. Accounts are
// created and maintained by the registration flow.
type User struct {
	ID           int64
	UserName     string
	PasswordHash string
	Role         string
	Enabled      bool
	CreatedAt    time.Time
}
