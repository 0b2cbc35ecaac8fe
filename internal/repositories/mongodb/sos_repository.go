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
	"go.mongodb.org/mongo-driver/mongo/options"
)

type sosRepository struct {
	collection *mongo.Collection
	cache      CacheService
}

func NewSOSRepository(db *mongo.Database, cache CacheService) interfaces.SOSRepository {
	return &sosRepository{
		collection: db.Collection("sos_alerts"),
		cache:      cache,
	}
}

func (r *sosRepository) Create(ctx context.Context, alert *models.SOSAlert) error {
	alert.ID = primitive.NewObjectID()
	alert.CreatedAt = time.Now()
	alert.UpdatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, alert)
	if err != nil {
		return fmt.Errorf("failed to create sos alert: %w", err)
	}

	if alert.Status == models.SOSStatusActive {
		r.cacheAlert(ctx, alert)
	}

	return nil
}

func (r *sosRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.SOSAlert, error) {
	if alert := r.getAlertFromCache(ctx, id.Hex()); alert != nil {
		return alert, nil
	}

	var alert models.SOSAlert
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&alert)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrAlertNotFound
		}
		return nil, fmt.Errorf("failed to get sos alert: %w", err)
	}

	return &alert, nil
}

func (r *sosRepository) CompareAndSetStatus(ctx context.Context, id primitive.ObjectID, from []models.SOSStatus, to models.SOSStatus, updates map[string]interface{}) (bool, error) {
	set := bson.M{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range updates {
		set[k] = v
	}

	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id, "status": bson.M{"$in": from}},
		bson.M{"$set": set},
	)
	if err != nil {
		return false, fmt.Errorf("failed to transition sos alert: %w", err)
	}
	if result.MatchedCount == 0 {
		return false, nil
	}

	r.invalidateAlertCache(ctx, id.Hex())
	return true, nil
}

func (r *sosRepository) GetActive(ctx context.Context) ([]*models.SOSAlert, error) {
	filter := bson.M{"status": models.SOSStatusActive}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find active sos alerts: %w", err)
	}
	defer cursor.Close(ctx)

	return decodeAlerts(ctx, cursor)
}

func (r *sosRepository) GetByStatus(ctx context.Context, status models.SOSStatus, params *utils.PaginationParams) ([]*models.SOSAlert, int64, error) {
	filter := bson.M{"status": status}
	return r.findAlertsWithFilter(ctx, filter, params)
}

func (r *sosRepository) GetByOwner(ctx context.Context, ownerID primitive.ObjectID, params *utils.PaginationParams) ([]*models.SOSAlert, int64, error) {
	filter := bson.M{"owner_id": ownerID}
	return r.findAlertsWithFilter(ctx, filter, params)
}

func (r *sosRepository) GetBySession(ctx context.Context, sessionID primitive.ObjectID) ([]*models.SOSAlert, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"session_id": sessionID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find sos alerts by session: %w", err)
	}
	defer cursor.Close(ctx)

	return decodeAlerts(ctx, cursor)
}

// Helper methods
func decodeAlerts(ctx context.Context, cursor *mongo.Cursor) ([]*models.SOSAlert, error) {
	var alerts []*models.SOSAlert
	for cursor.Next(ctx) {
		var alert models.SOSAlert
		if err := cursor.Decode(&alert); err != nil {
			return nil, fmt.Errorf("failed to decode sos alert: %w", err)
		}
		alerts = append(alerts, &alert)
	}

	return alerts, nil
}

func (r *sosRepository) findAlertsWithFilter(ctx context.Context, filter bson.M, params *utils.PaginationParams) ([]*models.SOSAlert, int64, error) {
	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count sos alerts: %w", err)
	}

	opts := params.GetSortOptions()
	if params.Sort == "created_at" || params.Sort == "" {
		opts.SetSort(bson.D{{Key: "created_at", Value: -1}})
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find sos alerts: %w", err)
	}
	defer cursor.Close(ctx)

	alerts, err := decodeAlerts(ctx, cursor)
	if err != nil {
		return nil, 0, err
	}

	return alerts, total, nil
}

// Cache operations
func (r *sosRepository) cacheAlert(ctx context.Context, alert *models.SOSAlert) {
	if r.cache != nil && alert.Status == models.SOSStatusActive {
		cacheKey := fmt.Sprintf("sos:%s", alert.ID.Hex())
		r.cache.Set(ctx, cacheKey, alert, 5*time.Minute)
	}
}

func (r *sosRepository) getAlertFromCache(ctx context.Context, alertID string) *models.SOSAlert {
	if r.cache == nil {
		return nil
	}

	cacheKey := fmt.Sprintf("sos:%s", alertID)
	var alert models.SOSAlert
	if err := r.cache.Get(ctx, cacheKey, &alert); err != nil {
		return nil
	}

	return &alert
}

func (r *sosRepository) invalidateAlertCache(ctx context.Context, alertID string) {
	if r.cache != nil {
		cacheKey := fmt.Sprintf("sos:%s", alertID)
		r.cache.Delete(ctx, cacheKey)
	}
}
