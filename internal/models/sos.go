package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SOSStatus string
type SOSSeverity string

const (
	SOSStatusActive       SOSStatus = "active"
	SOSStatusAcknowledged SOSStatus = "acknowledged"
	SOSStatusResolved     SOSStatus = "resolved"

	SOSSeverityLow      SOSSeverity = "low"
	SOSSeverityMedium   SOSSeverity = "medium"
	SOSSeverityHigh     SOSSeverity = "high"
	SOSSeverityCritical SOSSeverity = "critical"
)

// SOSAlert is an independent emergency record. It may reference the safety
// session that escalated into it, but neither owns the other.
type SOSAlert struct {
	ID        primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	OwnerID   primitive.ObjectID  `json:"owner_id" bson:"owner_id" validate:"required"`
	SessionID *primitive.ObjectID `json:"session_id" bson:"session_id"`
	Status    SOSStatus           `json:"status" bson:"status" default:"active"`
	Severity  SOSSeverity         `json:"severity" bson:"severity" default:"high"`
	Location  Location            `json:"location" bson:"location" validate:"required"`
	Message   string              `json:"message" bson:"message"`

	AcknowledgedBy *primitive.ObjectID `json:"acknowledged_by" bson:"acknowledged_by"`
	AcknowledgedAt *time.Time          `json:"acknowledged_at" bson:"acknowledged_at"`
	ResolvedBy     *primitive.ObjectID `json:"resolved_by" bson:"resolved_by"`
	ResolvedAt     *time.Time          `json:"resolved_at" bson:"resolved_at"`
	Resolution     string              `json:"resolution" bson:"resolution"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// CanTransitionTo reports whether the lifecycle allows moving to the target
// status. Only forward transitions are valid.
func (a *SOSAlert) CanTransitionTo(target SOSStatus) bool {
	switch target {
	case SOSStatusAcknowledged:
		return a.Status == SOSStatusActive
	case SOSStatusResolved:
		return a.Status == SOSStatusActive || a.Status == SOSStatusAcknowledged
	}
	return false
}
