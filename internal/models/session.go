package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SessionMode string
type SessionStatus string

const (
	SessionModeJourney   SessionMode = "journey"
	SessionModeLiveShare SessionMode = "live_share"

	SessionStatusActive     SessionStatus = "active"
	SessionStatusCheckInDue SessionStatus = "check_in_due"
	SessionStatusEmergency  SessionStatus = "emergency"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusCancelled  SessionStatus = "cancelled"
	SessionStatusExpired    SessionStatus = "expired"
)

// OpenStatuses is the set of statuses that count against the
// one-open-session-per-owner invariant. An emergency keeps the session open
// until staff resolve it, so the owner cannot start a second session while a
// response is underway.
var OpenStatuses = []SessionStatus{
	SessionStatusActive,
	SessionStatusCheckInDue,
	SessionStatusEmergency,
}

// MonitoredStatuses is the subset the check-in sweep drives. Emergency is
// open but no longer monitored; it only leaves through staff resolution.
var MonitoredStatuses = []SessionStatus{
	SessionStatusActive,
	SessionStatusCheckInDue,
}

// IsTerminal reports whether the owner's control surface is closed: no
// completing, cancelling, or responding to check-ins.
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionStatusEmergency, SessionStatusCompleted, SessionStatusCancelled, SessionStatusExpired:
		return true
	}
	return false
}

// IsOpen reports whether the status counts against the owner's
// one-open-session limit.
func (s SessionStatus) IsOpen() bool {
	switch s {
	case SessionStatusActive, SessionStatusCheckInDue, SessionStatusEmergency:
		return true
	}
	return false
}

// SharingGrant is a time-bounded permission for one recipient to view a
// session's live location. Expired grants stay on the session as tombstones;
// they are never resurrected.
type SharingGrant struct {
	RecipientID primitive.ObjectID `json:"recipient_id" bson:"recipient_id" validate:"required"`
	Token       string             `json:"token" bson:"token" validate:"required"`
	ExpiresAt   time.Time          `json:"expires_at" bson:"expires_at"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
	Revoked     bool               `json:"revoked" bson:"revoked"`
}

func (g SharingGrant) Expired(now time.Time) bool {
	return g.Revoked || !now.Before(g.ExpiresAt)
}

type SafetySession struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	OwnerID     primitive.ObjectID `json:"owner_id" bson:"owner_id" validate:"required"`
	Mode        SessionMode        `json:"mode" bson:"mode" validate:"required"`
	Status      SessionStatus      `json:"status" bson:"status" default:"active"`
	Destination *Location          `json:"destination" bson:"destination"`

	StartedAt time.Time `json:"started_at" bson:"started_at"`
	ExpiresAt time.Time `json:"expires_at" bson:"expires_at"`

	CheckInIntervalSeconds int        `json:"check_in_interval_seconds" bson:"check_in_interval_seconds"`
	GraceSeconds           int        `json:"grace_seconds" bson:"grace_seconds"`
	LastCheckInAt          *time.Time `json:"last_check_in_at" bson:"last_check_in_at"`
	NextCheckInAt          *time.Time `json:"next_check_in_at" bson:"next_check_in_at"`
	CheckInDeadlineAt      *time.Time `json:"check_in_deadline_at" bson:"check_in_deadline_at"`
	CheckInsIssued         int        `json:"check_ins_issued" bson:"check_ins_issued"`

	CurrentLocation  *Location  `json:"current_location" bson:"current_location"`
	LocationHistory  []Location `json:"location_history" bson:"location_history"`
	MaxHistoryPoints int        `json:"max_history_points" bson:"max_history_points"`

	SharingGrants []SharingGrant `json:"sharing_grants" bson:"sharing_grants"`

	// Version guards status transitions; every committed write increments it.
	Version   int64     `json:"version" bson:"version"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

func (s *SafetySession) CheckInInterval() time.Duration {
	return time.Duration(s.CheckInIntervalSeconds) * time.Second
}

func (s *SafetySession) GracePeriod() time.Duration {
	return time.Duration(s.GraceSeconds) * time.Second
}

// AppendLocation records a point as the current location and pushes it onto
// the bounded history, evicting the oldest point once the cap is reached.
func (s *SafetySession) AppendLocation(point Location) {
	s.CurrentLocation = &point
	s.LocationHistory = append(s.LocationHistory, point)
	if s.MaxHistoryPoints > 0 && len(s.LocationHistory) > s.MaxHistoryPoints {
		overflow := len(s.LocationHistory) - s.MaxHistoryPoints
		s.LocationHistory = s.LocationHistory[overflow:]
	}
}

// ActiveGrants returns the grants that are still valid at the given instant.
// Grants are re-evaluated on every call; nothing is cached.
func (s *SafetySession) ActiveGrants(now time.Time) []SharingGrant {
	var grants []SharingGrant
	for _, grant := range s.SharingGrants {
		if !grant.Expired(now) {
			grants = append(grants, grant)
		}
	}
	return grants
}
