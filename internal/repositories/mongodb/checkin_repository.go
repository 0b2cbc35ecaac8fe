package mongodb

import (
	"context"
	"fmt"
	"time"

	"campusguard/internal/models"
	"campusguard/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type checkInRepository struct {
	collection *mongo.Collection
}

func NewCheckInRepository(db *mongo.Database) interfaces.CheckInRepository {
	return &checkInRepository{
		collection: db.Collection("check_ins"),
	}
}

func (r *checkInRepository) Create(ctx context.Context, checkIn *models.CheckIn) error {
	checkIn.ID = primitive.NewObjectID()
	checkIn.Response = models.CheckInResponsePending
	checkIn.CreatedAt = time.Now()
	checkIn.UpdatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, checkIn)
	if err != nil {
		return fmt.Errorf("failed to create check-in: %w", err)
	}

	return nil
}

func (r *checkInRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.CheckIn, error) {
	var checkIn models.CheckIn
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&checkIn)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrCheckInNotFound
		}
		return nil, fmt.Errorf("failed to get check-in: %w", err)
	}

	return &checkIn, nil
}

func (r *checkInRepository) GetOpenBySession(ctx context.Context, sessionID primitive.ObjectID) (*models.CheckIn, error) {
	var checkIn models.CheckIn
	err := r.collection.FindOne(ctx, bson.M{
		"session_id": sessionID,
		"response":   models.CheckInResponsePending,
	}, options.FindOne().SetSort(bson.D{{Key: "scheduled_at", Value: -1}})).Decode(&checkIn)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get open check-in: %w", err)
	}

	return &checkIn, nil
}

func (r *checkInRepository) GetLatestBySession(ctx context.Context, sessionID primitive.ObjectID) (*models.CheckIn, error) {
	var checkIn models.CheckIn
	err := r.collection.FindOne(ctx, bson.M{"session_id": sessionID},
		options.FindOne().SetSort(bson.D{{Key: "scheduled_at", Value: -1}})).Decode(&checkIn)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest check-in: %w", err)
	}

	return &checkIn, nil
}

func (r *checkInRepository) SetResponse(ctx context.Context, id primitive.ObjectID, response models.CheckInResponse, respondedAt *time.Time, location *models.Location) (bool, error) {
	set := bson.M{
		"response":   response,
		"updated_at": time.Now(),
	}
	if respondedAt != nil {
		set["responded_at"] = respondedAt
	}
	if location != nil {
		set["location"] = location
	}

	// Single-writer guarantee: the filter only matches while the record is
	// still pending, so exactly one of a racing response and timeout commits.
	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id, "response": models.CheckInResponsePending},
		bson.M{"$set": set},
	)
	if err != nil {
		return false, fmt.Errorf("failed to set check-in response: %w", err)
	}

	return result.MatchedCount > 0, nil
}

func (r *checkInRepository) ListBySession(ctx context.Context, sessionID primitive.ObjectID) ([]*models.CheckIn, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"session_id": sessionID},
		options.Find().SetSort(bson.D{{Key: "scheduled_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list check-ins: %w", err)
	}
	defer cursor.Close(ctx)

	var checkIns []*models.CheckIn
	for cursor.Next(ctx) {
		var checkIn models.CheckIn
		if err := cursor.Decode(&checkIn); err != nil {
			return nil, fmt.Errorf("failed to decode check-in: %w", err)
		}
		checkIns = append(checkIns, &checkIn)
	}

	return checkIns, nil
}

func (r *checkInRepository) CountBySession(ctx context.Context, sessionID primitive.ObjectID) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return 0, fmt.Errorf("failed to count check-ins: %w", err)
	}

	return count, nil
}
