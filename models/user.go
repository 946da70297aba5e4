// models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User model
type User struct {
	ID          primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	IdentityKey string             `json:"identityKey" bson:"identityKey"`
	Password    string             `json:"-" bson:"password"`
	FullName    string             `json:"fullName,omitempty" bson:"fullName,omitempty"`
	DateOfBirth string             `json:"dateOfBirth,omitempty" bson:"dateOfBirth,omitempty"`
	Gender      string             `json:"gender,omitempty" bson:"gender,omitempty"`
	AvatarKey   string             `json:"avatarKey,omitempty" bson:"avatarKey,omitempty"`
	AvatarURL   string             `json:"avatarUrl,omitempty" bson:"-"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// UserFields carries the writable subset of a user record for create and
// update calls. Nil pointers mean "leave unchanged" on update.
type UserFields struct {
	IdentityKey string
	Password    string
	FullName    *string
	DateOfBirth *string
	Gender      *string
	AvatarKey   *string
}

// Response model
type Response struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
