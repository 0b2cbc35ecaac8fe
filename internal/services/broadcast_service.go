package services

import (
	"context"
	"encoding/json"
	"time"

	"campusguard/internal/models"
	"campusguard/internal/repositories/interfaces"
	"campusguard/pkg/cache"
	"campusguard/pkg/logger"
	"campusguard/pkg/websocket"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// All nodes share one Redis channel; the payload carries the session and
// recipient set so each node can fan out locally.
const locationChannel = "location_updates"

// BroadcastService distributes live location updates to everyone currently
// allowed to see them. Authorization is re-evaluated on every publish, so a
// revoked or expired grant stops receiving points immediately.
type BroadcastService interface {
	PublishLocation(ctx context.Context, session *models.SafetySession, point models.Location) error

	// Start runs the cross-node subscriber loop until the context is
	// cancelled. Updates published by other nodes are replayed into the
	// local hub.
	Start(ctx context.Context)
}

type locationUpdate struct {
	NodeID     string                 `json:"node_id"`
	SessionID  string                 `json:"session_id"`
	Recipients []string               `json:"recipients"`
	Emergency  bool                   `json:"emergency"`
	Data       map[string]interface{} `json:"data"`
}

type broadcastService struct {
	sessionRepo interfaces.SessionRepository
	cache       *cache.RedisCache
	wsHandler   *websocket.Handler
	nodeID      string
	logger      *logger.Logger
}

func NewBroadcastService(
	sessionRepo interfaces.SessionRepository,
	redisCache *cache.RedisCache,
	wsHandler *websocket.Handler,
	log *logger.Logger,
) BroadcastService {
	return &broadcastService{
		sessionRepo: sessionRepo,
		cache:       redisCache,
		wsHandler:   wsHandler,
		nodeID:      uuid.NewString(),
		logger:      log,
	}
}

func (s *broadcastService) PublishLocation(ctx context.Context, session *models.SafetySession, point models.Location) error {
	maxPoints := session.MaxHistoryPoints
	if maxPoints <= 0 {
		maxPoints = 500
	}

	if err := s.sessionRepo.AppendLocation(ctx, session.ID, point, maxPoints); err != nil {
		return err
	}

	update := locationUpdate{
		NodeID:     s.nodeID,
		SessionID:  session.ID.Hex(),
		Recipients: s.resolveViewers(session),
		Emergency:  session.Status == models.SessionStatusEmergency,
		Data: map[string]interface{}{
			"session_id": session.ID.Hex(),
			"location":   point,
			"status":     string(session.Status),
		},
	}

	s.fanOut(update)

	// Cross-node delivery: other nodes replay this update into their own
	// hubs. Best effort; local viewers were already served.
	if s.cache != nil {
		if err := s.cache.Publish(ctx, locationChannel, update); err != nil {
			s.logger.WithError(err).WithSessionID(session.ID).
				Warn("Failed to publish location update to Redis")
		}
	}

	return nil
}

// resolveViewers computes who may see this point right now: the owner and
// every holder of a grant that is neither revoked nor expired.
func (s *broadcastService) resolveViewers(session *models.SafetySession) []string {
	viewers := []string{session.OwnerID.Hex()}
	for _, grant := range session.ActiveGrants(time.Now()) {
		viewers = append(viewers, grant.RecipientID.Hex())
	}
	return viewers
}

func (s *broadcastService) fanOut(update locationUpdate) {
	if s.wsHandler == nil {
		return
	}

	for _, viewer := range update.Recipients {
		viewerID, err := primitive.ObjectIDFromHex(viewer)
		if err != nil {
			continue
		}
		s.wsHandler.SendUserNotification(viewerID, "location_update", update.Data)
	}

	// Emergencies stream to the security room regardless of grants.
	if update.Emergency {
		s.wsHandler.SendSecurityAlert("location_update", update.Data)
	}
}

func (s *broadcastService) Start(ctx context.Context) {
	if s.cache == nil {
		return
	}

	pubsub := s.cache.Subscribe(ctx, locationChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var update locationUpdate
			if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
				s.logger.WithError(err).Warn("Failed to decode location update")
				continue
			}

			// Skip our own publishes; local viewers were served directly.
			if update.NodeID == s.nodeID {
				continue
			}
			s.fanOut(update)
		}
	}
}
