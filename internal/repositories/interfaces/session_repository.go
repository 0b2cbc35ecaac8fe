package interfaces

import (
	"context"
	"time"

	"campusguard/internal/models"
	"campusguard/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SessionRepository interface {
	// Create inserts a new session. It fails with models.ErrSessionConflict
	// when the owner already has a non-terminal session (enforced by a
	// partial unique index, not by querying first).
	Create(ctx context.Context, session *models.SafetySession) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.SafetySession, error)
	GetActiveByOwner(ctx context.Context, ownerID primitive.ObjectID) (*models.SafetySession, error)
	Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error

	// CompareAndSetStatus commits a status transition only if the session is
	// still at the given version and in one of the expected statuses. It
	// returns false when another writer won the race.
	CompareAndSetStatus(ctx context.Context, id primitive.ObjectID, version int64, from []models.SessionStatus, to models.SessionStatus, updates map[string]interface{}) (bool, error)

	// AppendLocation sets the current location and pushes the point onto the
	// bounded history, evicting the oldest entries beyond maxPoints.
	AppendLocation(ctx context.Context, id primitive.ObjectID, point models.Location, maxPoints int) error

	AddSharingGrant(ctx context.Context, id primitive.ObjectID, grant models.SharingGrant) error
	RevokeSharingGrant(ctx context.Context, id primitive.ObjectID, token string) error

	// Scheduler sweep queries.
	FindCheckInDue(ctx context.Context, now time.Time) ([]*models.SafetySession, error)
	FindCheckInOverdue(ctx context.Context, now time.Time) ([]*models.SafetySession, error)
	FindExpired(ctx context.Context, now time.Time) ([]*models.SafetySession, error)

	GetByStatus(ctx context.Context, status models.SessionStatus, params *utils.PaginationParams) ([]*models.SafetySession, int64, error)
	GetByOwner(ctx context.Context, ownerID primitive.ObjectID, params *utils.PaginationParams) ([]*models.SafetySession, int64, error)
}
