package model

import "time"

// User is the owner of avatars. Identity comes from the token subject, so
// the row only records when the user was first seen; it is created on the
// first avatar creation.
type User struct {
	ID        string    `json:"id"        db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
