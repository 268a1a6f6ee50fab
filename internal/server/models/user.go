// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is the subset of the account record the identity subsystem reads and
// writes. Username and Email are unique case-insensitively.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Tier         Tier
	// TierEventAt is the provider timestamp of the last billing event applied
	// to Tier; nil until the first one.
	TierEventAt *time.Time
	CreatedAt   time.Time
}
