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

type sessionRepository struct {
	collection *mongo.Collection
	cache      CacheService
}

func NewSessionRepository(db *mongo.Database, cache CacheService) interfaces.SessionRepository {
	return &sessionRepository{
		collection: db.Collection("sessions"),
		cache:      cache,
	}
}

func (r *sessionRepository) Create(ctx context.Context, session *models.SafetySession) error {
	session.ID = primitive.NewObjectID()
	session.Version = 1
	session.CreatedAt = time.Now()
	session.UpdatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, session)
	if err != nil {
		// The partial unique index on owner_id (non-terminal statuses only)
		// turns a duplicate active session into a duplicate key error.
		if mongo.IsDuplicateKeyError(err) {
			return models.ErrSessionConflict
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	r.cacheSession(ctx, session)
	return nil
}

func (r *sessionRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.SafetySession, error) {
	var session models.SafetySession
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return &session, nil
}

func (r *sessionRepository) GetActiveByOwner(ctx context.Context, ownerID primitive.ObjectID) (*models.SafetySession, error) {
	var session models.SafetySession
	err := r.collection.FindOne(ctx, bson.M{
		"owner_id": ownerID,
		"status":   bson.M{"$in": models.OpenStatuses},
	}).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get active session for owner: %w", err)
	}

	return &session, nil
}

func (r *sessionRepository) Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()

	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": updates, "$inc": bson.M{"version": 1}},
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	r.invalidateSessionCache(ctx, id.Hex())
	return nil
}

func (r *sessionRepository) CompareAndSetStatus(ctx context.Context, id primitive.ObjectID, version int64, from []models.SessionStatus, to models.SessionStatus, updates map[string]interface{}) (bool, error) {
	set := bson.M{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range updates {
		set[k] = v
	}

	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{
			"_id":     id,
			"version": version,
			"status":  bson.M{"$in": from},
		},
		bson.M{"$set": set, "$inc": bson.M{"version": 1}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to transition session status: %w", err)
	}

	if result.MatchedCount == 0 {
		return false, nil
	}

	r.invalidateSessionCache(ctx, id.Hex())
	return true, nil
}

func (r *sessionRepository) AppendLocation(ctx context.Context, id primitive.ObjectID, point models.Location, maxPoints int) error {
	// $slice with a negative bound keeps the newest maxPoints entries, which
	// gives ring-buffer eviction server-side in a single write.
	update := bson.M{
		"$set": bson.M{
			"current_location": point,
			"updated_at":       time.Now(),
		},
		"$push": bson.M{
			"location_history": bson.M{
				"$each":  []models.Location{point},
				"$slice": -maxPoints,
			},
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to append location: %w", err)
	}
	if result.MatchedCount == 0 {
		return models.ErrSessionNotFound
	}

	r.invalidateSessionCache(ctx, id.Hex())
	return nil
}

func (r *sessionRepository) AddSharingGrant(ctx context.Context, id primitive.ObjectID, grant models.SharingGrant) error {
	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{
			"$push": bson.M{"sharing_grants": grant},
			"$set":  bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to add sharing grant: %w", err)
	}
	if result.MatchedCount == 0 {
		return models.ErrSessionNotFound
	}

	r.invalidateSessionCache(ctx, id.Hex())
	return nil
}

func (r *sessionRepository) RevokeSharingGrant(ctx context.Context, id primitive.ObjectID, token string) error {
	// Grants are tombstoned, not removed, so a revoked grant can never be
	// resurrected by a concurrent re-add.
	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id, "sharing_grants.token": token},
		bson.M{
			"$set": bson.M{
				"sharing_grants.$.revoked": true,
				"updated_at":               time.Now(),
			},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to revoke sharing grant: %w", err)
	}
	if result.MatchedCount == 0 {
		return models.ErrGrantNotFound
	}

	r.invalidateSessionCache(ctx, id.Hex())
	return nil
}

func (r *sessionRepository) FindCheckInDue(ctx context.Context, now time.Time) ([]*models.SafetySession, error) {
	filter := bson.M{
		"status":           models.SessionStatusActive,
		"next_check_in_at": bson.M{"$lte": now, "$ne": nil},
	}
	return r.findSessions(ctx, filter)
}

func (r *sessionRepository) FindCheckInOverdue(ctx context.Context, now time.Time) ([]*models.SafetySession, error) {
	filter := bson.M{
		"status":               models.SessionStatusCheckInDue,
		"check_in_deadline_at": bson.M{"$lte": now, "$ne": nil},
	}
	return r.findSessions(ctx, filter)
}

func (r *sessionRepository) FindExpired(ctx context.Context, now time.Time) ([]*models.SafetySession, error) {
	// Only sessions that never had a check-in expire; sessions with an issued
	// check-in go through the timeout path instead.
	filter := bson.M{
		"status":           bson.M{"$in": models.MonitoredStatuses},
		"check_ins_issued": 0,
		"expires_at":       bson.M{"$lte": now},
	}
	return r.findSessions(ctx, filter)
}

func (r *sessionRepository) GetByStatus(ctx context.Context, status models.SessionStatus, params *utils.PaginationParams) ([]*models.SafetySession, int64, error) {
	filter := bson.M{"status": status}
	return r.findSessionsWithFilter(ctx, filter, params)
}

func (r *sessionRepository) GetByOwner(ctx context.Context, ownerID primitive.ObjectID, params *utils.PaginationParams) ([]*models.SafetySession, int64, error) {
	filter := bson.M{"owner_id": ownerID}
	return r.findSessionsWithFilter(ctx, filter, params)
}

// Helper methods
func (r *sessionRepository) findSessions(ctx context.Context, filter bson.M) ([]*models.SafetySession, error) {
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "next_check_in_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var sessions []*models.SafetySession
	for cursor.Next(ctx) {
		var session models.SafetySession
		if err := cursor.Decode(&session); err != nil {
			return nil, fmt.Errorf("failed to decode session: %w", err)
		}
		sessions = append(sessions, &session)
	}

	return sessions, nil
}

func (r *sessionRepository) findSessionsWithFilter(ctx context.Context, filter bson.M, params *utils.PaginationParams) ([]*models.SafetySession, int64, error) {
	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	opts := params.GetSortOptions()
	if params.Sort == "created_at" || params.Sort == "" {
		opts.SetSort(bson.D{{Key: "created_at", Value: -1}})
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var sessions []*models.SafetySession
	for cursor.Next(ctx) {
		var session models.SafetySession
		if err := cursor.Decode(&session); err != nil {
			return nil, 0, fmt.Errorf("failed to decode session: %w", err)
		}
		sessions = append(sessions, &session)
	}

	return sessions, total, nil
}

// Cache operations
func (r *sessionRepository) cacheSession(ctx context.Context, session *models.SafetySession) {
	if r.cache != nil && !session.Status.IsTerminal() {
		cacheKey := fmt.Sprintf("session:%s", session.ID.Hex())
		r.cache.Set(ctx, cacheKey, session, 2*time.Minute)
	}
}

func (r *sessionRepository) invalidateSessionCache(ctx context.Context, sessionID string) {
	if r.cache != nil {
		cacheKey := fmt.Sprintf("session:%s", sessionID)
		r.cache.Delete(ctx, cacheKey)
	}
}
