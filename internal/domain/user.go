package domain

import "time"

// User represents a registered account. PasswordHash never leaves the
// service layer; responses are built from projected fields only.
type User struct {
	ID           string
	FullName     string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}
