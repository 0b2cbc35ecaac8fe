package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CheckInResponse string

const (
	CheckInResponsePending  CheckInResponse = "pending"
	CheckInResponseSafe     CheckInResponse = "safe"
	CheckInResponseUnsafe   CheckInResponse = "unsafe"
	CheckInResponseTimedOut CheckInResponse = "timed_out"
)

// CheckIn is one scheduled safety prompt. Its response field is write-once:
// it leaves pending exactly once and the record is immutable afterwards.
type CheckIn struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	SessionID   primitive.ObjectID `json:"session_id" bson:"session_id" validate:"required"`
	ScheduledAt time.Time          `json:"scheduled_at" bson:"scheduled_at"`
	RespondedAt *time.Time         `json:"responded_at" bson:"responded_at"`
	Response    CheckInResponse    `json:"response" bson:"response" default:"pending"`
	Location    *Location          `json:"location" bson:"location"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at" bson:"updated_at"`
}

func (c *CheckIn) Open() bool {
	return c.Response == CheckInResponsePending
}
