package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type StartSessionRequest struct {
	Mode                   SessionMode `json:"mode" validate:"required,oneof=journey live_share"`
	Destination            *Location   `json:"destination"`
	CheckInIntervalSeconds int         `json:"check_in_interval_seconds" validate:"omitempty,min=60,max=3600"`
	GraceSeconds           int         `json:"grace_seconds" validate:"omitempty,min=30,max=900"`
	TTLSeconds             int         `json:"ttl_seconds" validate:"omitempty,min=300"`
	MaxHistoryPoints       int         `json:"max_history_points" validate:"omitempty,min=10,max=5000"`
	InitialLocation        *Location   `json:"initial_location"`
}

type CheckInResponseRequest struct {
	Safe     bool      `json:"safe"`
	Location *Location `json:"location"`
}

type PublishLocationRequest struct {
	Longitude float64 `json:"longitude" validate:"required"`
	Latitude  float64 `json:"latitude" validate:"required"`
	AccuracyM float64 `json:"accuracy_m"`
	Label     string  `json:"label"`
	Building  string  `json:"building"`
}

func (r *PublishLocationRequest) ToPoint(at time.Time) Location {
	point := NewPoint(r.Longitude, r.Latitude, at)
	point.AccuracyM = r.AccuracyM
	point.Label = r.Label
	point.Building = r.Building
	return point
}

type CreateGrantRequest struct {
	RecipientID primitive.ObjectID `json:"recipient_id" validate:"required"`
	TTLSeconds  int                `json:"ttl_seconds" validate:"omitempty,min=60"`
}

type CreateSOSRequest struct {
	SessionID *primitive.ObjectID `json:"session_id"`
	Severity  SOSSeverity         `json:"severity" validate:"omitempty,oneof=low medium high critical"`
	Location  Location            `json:"location" validate:"required"`
	Message   string              `json:"message" validate:"max=500"`
}

type ResolveSOSRequest struct {
	Resolution string `json:"resolution" validate:"required,max=1000"`
}
