package interfaces

import (
	"context"
	"time"

	"campusguard/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CheckInRepository interface {
	Create(ctx context.Context, checkIn *models.CheckIn) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.CheckIn, error)

	// GetOpenBySession returns the session's pending check-in, or nil when
	// none is open.
	GetOpenBySession(ctx context.Context, sessionID primitive.ObjectID) (*models.CheckIn, error)

	// GetLatestBySession returns the most recently scheduled check-in for the
	// session regardless of its response, or nil when none exists.
	GetLatestBySession(ctx context.Context, sessionID primitive.ObjectID) (*models.CheckIn, error)

	// SetResponse moves a check-in out of pending exactly once. It is a
	// compare-and-set on the response field: the return value reports whether
	// this writer won; a losing writer must treat the record as immutable.
	SetResponse(ctx context.Context, id primitive.ObjectID, response models.CheckInResponse, respondedAt *time.Time, location *models.Location) (bool, error)

	ListBySession(ctx context.Context, sessionID primitive.ObjectID) ([]*models.CheckIn, error)
	CountBySession(ctx context.Context, sessionID primitive.ObjectID) (int64, error)
}
