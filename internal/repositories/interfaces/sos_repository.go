package interfaces

import (
	"context"

	"campusguard/internal/models"
	"campusguard/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SOSRepository interface {
	Create(ctx context.Context, alert *models.SOSAlert) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.SOSAlert, error)

	// CompareAndSetStatus commits a lifecycle transition only if the alert is
	// still in one of the expected statuses; false means another writer won.
	CompareAndSetStatus(ctx context.Context, id primitive.ObjectID, from []models.SOSStatus, to models.SOSStatus, updates map[string]interface{}) (bool, error)

	GetActive(ctx context.Context) ([]*models.SOSAlert, error)
	GetByStatus(ctx context.Context, status models.SOSStatus, params *utils.PaginationParams) ([]*models.SOSAlert, int64, error)
	GetByOwner(ctx context.Context, ownerID primitive.ObjectID, params *utils.PaginationParams) ([]*models.SOSAlert, int64, error)
	GetBySession(ctx context.Context, sessionID primitive.ObjectID) ([]*models.SOSAlert, error)
}
