package models

import "errors"

// State-machine violations surfaced to callers as typed errors. Notification
// failures are never part of this taxonomy; they are recorded per channel on
// the NotificationJob instead.
var (
	ErrSessionConflict   = errors.New("an active safety session already exists for this owner")
	ErrSessionNotFound   = errors.New("safety session not found")
	ErrSessionClosed     = errors.New("safety session is closed")
	ErrNoPendingCheckIn  = errors.New("no check-in is awaiting a response")
	ErrCheckInNotFound   = errors.New("check-in not found")
	ErrInvalidTransition = errors.New("invalid alert status transition")
	ErrGrantExpired      = errors.New("sharing grant has expired")
	ErrGrantNotFound     = errors.New("sharing grant not found")
	ErrAlertNotFound     = errors.New("sos alert not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrNotSessionOwner   = errors.New("user does not own this session")
)
