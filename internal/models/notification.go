package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationType string
type NotificationPriority string
type NotificationChannel string
type ChannelStatus string

const (
	NotificationTypeCheckInPrompt   NotificationType = "check_in_prompt"
	NotificationTypeEscalation      NotificationType = "escalation"
	NotificationTypeSessionUpdate   NotificationType = "session_update"
	NotificationTypeSOSCreated      NotificationType = "sos_created"
	NotificationTypeSOSAcknowledged NotificationType = "sos_acknowledged"
	NotificationTypeSOSResolved     NotificationType = "sos_resolved"
	NotificationTypeGeneral         NotificationType = "general"

	NotificationPriorityNormal NotificationPriority = "normal"
	NotificationPriorityUrgent NotificationPriority = "urgent"

	NotificationChannelPush  NotificationChannel = "push"
	NotificationChannelEmail NotificationChannel = "email"
	NotificationChannelSMS   NotificationChannel = "sms"
	NotificationChannelInApp NotificationChannel = "in_app"

	ChannelStatusSent    ChannelStatus = "sent"
	ChannelStatusFailed  ChannelStatus = "failed"
	ChannelStatusSkipped ChannelStatus = "skipped"
)

// ChannelResult records the outcome of one delivery channel for one job.
// Partial failure is first-class: a failed channel is recorded here, never
// surfaced as an error to the transition that triggered the job.
type ChannelResult struct {
	Status      ChannelStatus `json:"status" bson:"status"`
	Error       string        `json:"error,omitempty" bson:"error,omitempty"`
	Attempts    int           `json:"attempts" bson:"attempts"`
	CompletedAt time.Time     `json:"completed_at" bson:"completed_at"`
}

// NotificationJob is one fan-out request for one recipient across a set of
// requested channels.
type NotificationJob struct {
	ID          primitive.ObjectID     `json:"id" bson:"_id,omitempty"`
	RecipientID primitive.ObjectID     `json:"recipient_id" bson:"recipient_id" validate:"required"`
	Type        NotificationType       `json:"type" bson:"type" validate:"required"`
	Priority    NotificationPriority   `json:"priority" bson:"priority" default:"normal"`
	Title       string                 `json:"title" bson:"title" validate:"required"`
	Message     string                 `json:"message" bson:"message" validate:"required"`
	Data        map[string]interface{} `json:"data" bson:"data"`

	Channels       []NotificationChannel                  `json:"channels" bson:"channels"`
	ChannelResults map[NotificationChannel]*ChannelResult `json:"channel_results" bson:"channel_results"`

	// EventKey identifies the logical event ("<session_id>:<transition>") a
	// job belongs to, for dedup bookkeeping by the escalation coordinator.
	EventKey string `json:"event_key,omitempty" bson:"event_key,omitempty"`

	ReadAt    *time.Time `json:"read_at" bson:"read_at"`
	CreatedAt time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" bson:"updated_at"`
}

func (j *NotificationJob) HasChannel(channel NotificationChannel) bool {
	for _, c := range j.Channels {
		if c == channel {
			return true
		}
	}
	return false
}

func (j *NotificationJob) HasFailedChannels() bool {
	for _, result := range j.ChannelResults {
		if result != nil && result.Status == ChannelStatusFailed {
			return true
		}
	}
	return false
}
