package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// User represents a chat user and their single active refresh session.
type User struct {
	ID             bson.ObjectID   `bson:"_id,omitempty"`
	FirstName      string          `bson:"first_name"`
	LastName       string          `bson:"last_name"`
	Email          string          `bson:"email"`
	PasswordHash   string          `bson:"password_hash"`
	RefreshSession *RefreshSession `bson:"refresh_session"`
	CreatedAt      time.Time       `bson:"created_at"`
	UpdatedAt      time.Time       `bson:"updated_at"`
}

// HasSession reports whether the user currently holds a refresh session.
func (u *User) HasSession() bool {
	return u.RefreshSession != nil && u.RefreshSession.Token != ""
}
