package models

import (
	"time"
)

type User struct {
	ID             int64
	CreatedAt      time.Time
	Username       string
	Email          string
	Name           string
	HashedPassword string
	IsActive       bool
}

// Partial update of user profile fields
// nil means the field is left as is
type UserUpdate struct {
	Email *string
	Name  *string
}
