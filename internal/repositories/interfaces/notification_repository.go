package interfaces

import (
	"context"

	"campusguard/internal/models"
	"campusguard/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationRepository interface {
	Create(ctx context.Context, job *models.NotificationJob) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.NotificationJob, error)

	// SetChannelResult records the outcome of one channel attempt without
	// touching the other channels' results.
	SetChannelResult(ctx context.Context, id primitive.ObjectID, channel models.NotificationChannel, result *models.ChannelResult) error

	MarkRead(ctx context.Context, id primitive.ObjectID) error
	GetByRecipient(ctx context.Context, recipientID primitive.ObjectID, params *utils.PaginationParams) ([]*models.NotificationJob, int64, error)

	// GetWithFailedChannels backs the staff dashboard view of deliveries that
	// need human attention.
	GetWithFailedChannels(ctx context.Context, params *utils.PaginationParams) ([]*models.NotificationJob, int64, error)
}
