package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserRole string

const (
	UserRoleStudent UserRole = "student"
	UserRoleStaff   UserRole = "staff"
)

// User is the core's read-only view of an account: role and reachability.
// Identity and credential management live elsewhere.
type User struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name      string             `json:"name" bson:"name"`
	Email     string             `json:"email" bson:"email" validate:"required,email"`
	Phone     string             `json:"phone" bson:"phone"`
	Role      UserRole           `json:"role" bson:"role" default:"student"`
	PushToken string             `json:"push_token" bson:"push_token"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time          `json:"updated_at" bson:"updated_at"`
}

func (u *User) HasPushToken() bool {
	return u.PushToken != ""
}

func (u *User) HasPhone() bool {
	return u.Phone != ""
}
