package interfaces

import (
	"context"

	"campusguard/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserRepository is the core's read-only window onto accounts: role lookups
// and contact reachability. Writes belong to the identity service.
type UserRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*models.User, error)
	GetStaff(ctx context.Context) ([]*models.User, error)
}
