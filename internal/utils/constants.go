package utils

import "time"

// Application Constants
const (
	AppName    = "CampusGuard"
	AppVersion = "1.0.0"

	// Pagination
	DefaultPageSize = 20
	MaxPageSize     = 100
	MinPageSize     = 1

	// Safety sessions
	DefaultCheckInInterval = 5 * time.Minute
	MinCheckInInterval     = 1 * time.Minute
	MaxCheckInInterval     = 1 * time.Hour
	DefaultGracePeriod     = 2 * time.Minute
	DefaultSessionTTL      = 4 * time.Hour
	MaxSessionTTL          = 24 * time.Hour
	DefaultMaxHistoryPoints = 500

	// Sharing grants
	DefaultGrantTTL = 4 * time.Hour
	MaxGrantTTL     = 24 * time.Hour

	// Scheduler
	DefaultSchedulerTick = 5 * time.Second

	// Notification
	NotificationRetryAttempts = 3
	NotificationTimeout       = 30 * time.Second
	EscalationDedupTTL        = 24 * time.Hour

	// SOS
	DefaultSOSSeverity = "high"
)

// HTTP Status Messages
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusFailed  = "failed"
)

// Error Messages
const (
	ErrInternalServer   = "internal server error"
	ErrUnauthorized     = "unauthorized"
	ErrForbidden        = "forbidden"
	ErrValidationFailed = "validation failed"
)
