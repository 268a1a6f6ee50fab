package models

import "time"

// Media is a private photo owned by one user. The bytes live in object
// storage under StorageKey.
type Media struct {
	ID          int64
	UserID      int64
	StorageKey  string
	ContentType string
	CreatedAt   time.Time
}
