package mongodb

import (
	"context"
	"fmt"
	"time"

	"campusguard/internal/models"
	"campusguard/internal/repositories/interfaces"
	"campusguard/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type notificationRepository struct {
	collection *mongo.Collection
}

func NewNotificationRepository(db *mongo.Database) interfaces.NotificationRepository {
	return &notificationRepository{
		collection: db.Collection("notification_jobs"),
	}
}

func (r *notificationRepository) Create(ctx context.Context, job *models.NotificationJob) error {
	job.ID = primitive.NewObjectID()
	if job.ChannelResults == nil {
		job.ChannelResults = make(map[models.NotificationChannel]*models.ChannelResult)
	}
	job.CreatedAt = time.Now()
	job.UpdatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, job)
	if err != nil {
		return fmt.Errorf("failed to create notification job: %w", err)
	}

	return nil
}

func (r *notificationRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.NotificationJob, error) {
	var job models.NotificationJob
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&job)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("notification job not found")
		}
		return nil, fmt.Errorf("failed to get notification job: %w", err)
	}

	return &job, nil
}

func (r *notificationRepository) SetChannelResult(ctx context.Context, id primitive.ObjectID, channel models.NotificationChannel, result *models.ChannelResult) error {
	field := fmt.Sprintf("channel_results.%s", channel)

	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			field:        result,
			"updated_at": time.Now(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to record channel result: %w", err)
	}

	return nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id primitive.ObjectID) error {
	now := time.Now()

	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id, "read_at": nil},
		bson.M{"$set": bson.M{"read_at": now, "updated_at": now}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	return nil
}

func (r *notificationRepository) GetByRecipient(ctx context.Context, recipientID primitive.ObjectID, params *utils.PaginationParams) ([]*models.NotificationJob, int64, error) {
	filter := bson.M{"recipient_id": recipientID}
	return r.findJobsWithFilter(ctx, filter, params)
}

func (r *notificationRepository) GetWithFailedChannels(ctx context.Context, params *utils.PaginationParams) ([]*models.NotificationJob, int64, error) {
	// One failed channel is enough to surface the job for staff review.
	filter := bson.M{
		"$or": []bson.M{
			{"channel_results.push.status": models.ChannelStatusFailed},
			{"channel_results.email.status": models.ChannelStatusFailed},
			{"channel_results.sms.status": models.ChannelStatusFailed},
			{"channel_results.in_app.status": models.ChannelStatusFailed},
		},
	}
	return r.findJobsWithFilter(ctx, filter, params)
}

func (r *notificationRepository) findJobsWithFilter(ctx context.Context, filter bson.M, params *utils.PaginationParams) ([]*models.NotificationJob, int64, error) {
	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count notification jobs: %w", err)
	}

	opts := params.GetSortOptions()
	if params.Sort == "created_at" || params.Sort == "" {
		opts.SetSort(bson.D{{Key: "created_at", Value: -1}})
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find notification jobs: %w", err)
	}
	defer cursor.Close(ctx)

	var jobs []*models.NotificationJob
	for cursor.Next(ctx) {
		var job models.NotificationJob
		if err := cursor.Decode(&job); err != nil {
			return nil, 0, fmt.Errorf("failed to decode notification job: %w", err)
		}
		jobs = append(jobs, &job)
	}

	return jobs, total, nil
}
