package services

import (
	"context"
	"fmt"
	"time"

	"campusguard/internal/config"
	"campusguard/internal/models"
	"campusguard/internal/repositories/interfaces"
	"campusguard/internal/utils"
	"campusguard/pkg/logger"
	"campusguard/pkg/websocket"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SessionService interface {
	// Lifecycle
	StartSession(ctx context.Context, ownerID primitive.ObjectID, request *models.StartSessionRequest) (*models.SafetySession, error)
	CompleteSession(ctx context.Context, sessionID, ownerID primitive.ObjectID) (*models.SafetySession, error)
	CancelSession(ctx context.Context, sessionID, ownerID primitive.ObjectID) (*models.SafetySession, error)

	// Check-ins
	RespondCheckIn(ctx context.Context, sessionID, ownerID primitive.ObjectID, request *models.CheckInResponseRequest) (*models.SafetySession, error)
	GetCheckIns(ctx context.Context, sessionID, viewerID primitive.ObjectID) ([]*models.CheckIn, error)

	// Location
	PublishLocation(ctx context.Context, sessionID, ownerID primitive.ObjectID, request *models.PublishLocationRequest) error

	// Sharing grants
	CreateGrant(ctx context.Context, sessionID, ownerID primitive.ObjectID, request *models.CreateGrantRequest) (*models.SharingGrant, error)
	RevokeGrant(ctx context.Context, sessionID, ownerID primitive.ObjectID, token string) error

	// Queries
	GetSession(ctx context.Context, sessionID, viewerID primitive.ObjectID) (*models.SafetySession, error)
	GetActiveSession(ctx context.Context, ownerID primitive.ObjectID) (*models.SafetySession, error)
	GetSessionHistory(ctx context.Context, ownerID primitive.ObjectID, params *utils.PaginationParams) ([]*models.SafetySession, int64, error)
	GetSessionsByStatus(ctx context.Context, status models.SessionStatus, params *utils.PaginationParams) ([]*models.SafetySession, int64, error)
}

type sessionService struct {
	sessionRepo         interfaces.SessionRepository
	checkInRepo         interfaces.CheckInRepository
	userRepo            interfaces.UserRepository
	escalationService   EscalationService
	broadcastService    BroadcastService
	notificationService NotificationService
	wsHandler           *websocket.Handler
	safetyConfig        *config.SafetyConfig
	logger              *logger.Logger
}

func NewSessionService(
	cfg *config.Config,
	sessionRepo interfaces.SessionRepository,
	checkInRepo interfaces.CheckInRepository,
	userRepo interfaces.UserRepository,
	escalationService EscalationService,
	broadcastService BroadcastService,
	notificationService NotificationService,
	wsHandler *websocket.Handler,
	log *logger.Logger,
) SessionService {
	return &sessionService{
		sessionRepo:         sessionRepo,
		checkInRepo:         checkInRepo,
		userRepo:            userRepo,
		escalationService:   escalationService,
		broadcastService:    broadcastService,
		notificationService: notificationService,
		wsHandler:           wsHandler,
		safetyConfig:        cfg.Safety,
		logger:              log,
	}
}

func (s *sessionService) StartSession(ctx context.Context, ownerID primitive.ObjectID, request *models.StartSessionRequest) (*models.SafetySession, error) {
	if _, err := s.userRepo.GetByID(ctx, ownerID); err != nil {
		return nil, err
	}

	now := time.Now()

	interval := s.safetyConfig.CheckInInterval
	if request.CheckInIntervalSeconds > 0 {
		interval = time.Duration(request.CheckInIntervalSeconds) * time.Second
	}

	grace := s.safetyConfig.GracePeriod
	if request.GraceSeconds > 0 {
		grace = time.Duration(request.GraceSeconds) * time.Second
	}

	ttl := s.safetyConfig.SessionTTL
	if request.TTLSeconds > 0 {
		ttl = time.Duration(request.TTLSeconds) * time.Second
	}

	maxPoints := s.safetyConfig.MaxHistoryPoints
	if request.MaxHistoryPoints > 0 {
		maxPoints = request.MaxHistoryPoints
	}

	nextCheckIn := now.Add(interval)
	session := &models.SafetySession{
		OwnerID:                ownerID,
		Mode:                   request.Mode,
		Status:                 models.SessionStatusActive,
		Destination:            request.Destination,
		StartedAt:              now,
		ExpiresAt:              now.Add(ttl),
		CheckInIntervalSeconds: int(interval.Seconds()),
		GraceSeconds:           int(grace.Seconds()),
		NextCheckInAt:          &nextCheckIn,
		MaxHistoryPoints:       maxPoints,
	}

	if request.InitialLocation != nil {
		point := *request.InitialLocation
		if point.Timestamp.IsZero() {
			point.Timestamp = now
		}
		session.AppendLocation(point)
	}

	// The partial unique index turns a concurrent second start into
	// ErrSessionConflict; no pre-flight query, no race window.
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}

	s.logger.LogSessionEvent(session.ID, "session_started", map[string]interface{}{
		"owner_id": ownerID.Hex(),
		"mode":     string(session.Mode),
	})

	return session, nil
}

func (s *sessionService) CompleteSession(ctx context.Context, sessionID, ownerID primitive.ObjectID) (*models.SafetySession, error) {
	return s.closeSession(ctx, sessionID, ownerID, models.SessionStatusCompleted, "session_completed")
}

func (s *sessionService) CancelSession(ctx context.Context, sessionID, ownerID primitive.ObjectID) (*models.SafetySession, error) {
	return s.closeSession(ctx, sessionID, ownerID, models.SessionStatusCancelled, "session_cancelled")
}

func (s *sessionService) closeSession(ctx context.Context, sessionID, ownerID primitive.ObjectID, to models.SessionStatus, event string) (*models.SafetySession, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.OwnerID != ownerID {
		return nil, models.ErrNotSessionOwner
	}
	if session.Status.IsTerminal() {
		return nil, models.ErrSessionClosed
	}

	committed, err := s.sessionRepo.CompareAndSetStatus(ctx, session.ID, session.Version, models.MonitoredStatuses, to, map[string]interface{}{
		"check_in_deadline_at": nil,
		"next_check_in_at":     nil,
	})
	if err != nil {
		return nil, err
	}
	if !committed {
		// Another writer moved the session; report closed if it is now
		// terminal, otherwise surface the fresh state.
		fresh, err := s.sessionRepo.GetByID(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if fresh.Status.IsTerminal() {
			return nil, models.ErrSessionClosed
		}
		return nil, fmt.Errorf("session transition lost to a concurrent update")
	}

	s.logger.LogSessionEvent(session.ID, event, map[string]interface{}{
		"owner_id": ownerID.Hex(),
	})

	s.notifySessionUpdate(session.ID, string(to))

	return s.sessionRepo.GetByID(ctx, sessionID)
}

func (s *sessionService) RespondCheckIn(ctx context.Context, sessionID, ownerID primitive.ObjectID, request *models.CheckInResponseRequest) (*models.SafetySession, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.OwnerID != ownerID {
		return nil, models.ErrNotSessionOwner
	}
	if session.Status.IsTerminal() {
		return nil, models.ErrSessionClosed
	}

	checkIn, err := s.checkInRepo.GetOpenBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if checkIn == nil {
		return nil, models.ErrNoPendingCheckIn
	}

	response := models.CheckInResponseSafe
	if !request.Safe {
		response = models.CheckInResponseUnsafe
	}

	now := time.Now()
	// Write-once on the check-in record: whoever moves it out of pending
	// wins, and the scheduler's timeout path loses cleanly.
	won, err := s.checkInRepo.SetResponse(ctx, checkIn.ID, response, &now, request.Location)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, models.ErrNoPendingCheckIn
	}

	// The check-in write is the linchpin; the session transition follows it.
	// A version race here can only come from a concurrent metadata write, so
	// refresh and retry.
	for attempt := 0; attempt < 3; attempt++ {
		fresh, err := s.sessionRepo.GetByID(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if fresh.Status != models.SessionStatusCheckInDue {
			break
		}

		var committed bool
		if request.Safe {
			nextCheckIn := now.Add(fresh.CheckInInterval())
			committed, err = s.sessionRepo.CompareAndSetStatus(ctx, sessionID, fresh.Version,
				[]models.SessionStatus{models.SessionStatusCheckInDue},
				models.SessionStatusActive,
				map[string]interface{}{
					"last_check_in_at":     now,
					"next_check_in_at":     nextCheckIn,
					"check_in_deadline_at": nil,
				})
		} else {
			committed, err = s.sessionRepo.CompareAndSetStatus(ctx, sessionID, fresh.Version,
				[]models.SessionStatus{models.SessionStatusCheckInDue},
				models.SessionStatusEmergency,
				map[string]interface{}{
					"check_in_deadline_at": nil,
					"next_check_in_at":     nil,
				})
		}
		if err != nil {
			return nil, err
		}
		if committed {
			break
		}
	}

	if !request.Safe {
		fresh, err := s.sessionRepo.GetByID(ctx, sessionID)
		if err == nil {
			if escErr := s.escalationService.Escalate(ctx, fresh, EscalationTriggerUnsafe); escErr != nil {
				s.logger.WithError(escErr).WithSessionID(sessionID).Error("Escalation failed")
			}
		}
	}

	s.logger.LogSessionEvent(sessionID, "check_in_responded", map[string]interface{}{
		"response": string(response),
	})

	s.notifySessionUpdate(sessionID, "check_in_responded")

	return s.sessionRepo.GetByID(ctx, sessionID)
}

func (s *sessionService) GetCheckIns(ctx context.Context, sessionID, viewerID primitive.ObjectID) ([]*models.CheckIn, error) {
	if _, err := s.GetSession(ctx, sessionID, viewerID); err != nil {
		return nil, err
	}
	return s.checkInRepo.ListBySession(ctx, sessionID)
}

func (s *sessionService) PublishLocation(ctx context.Context, sessionID, ownerID primitive.ObjectID, request *models.PublishLocationRequest) error {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.OwnerID != ownerID {
		return models.ErrNotSessionOwner
	}

	// Emergencies keep streaming; only a closed session stops accepting
	// points.
	switch session.Status {
	case models.SessionStatusCompleted, models.SessionStatusCancelled, models.SessionStatusExpired:
		return models.ErrSessionClosed
	}

	point := request.ToPoint(time.Now())
	return s.broadcastService.PublishLocation(ctx, session, point)
}

func (s *sessionService) CreateGrant(ctx context.Context, sessionID, ownerID primitive.ObjectID, request *models.CreateGrantRequest) (*models.SharingGrant, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.OwnerID != ownerID {
		return nil, models.ErrNotSessionOwner
	}
	if !session.Status.IsOpen() {
		return nil, models.ErrSessionClosed
	}

	recipient, err := s.userRepo.GetByID(ctx, request.RecipientID)
	if err != nil {
		return nil, err
	}

	ttl := s.safetyConfig.GrantTTL
	if request.TTLSeconds > 0 {
		ttl = time.Duration(request.TTLSeconds) * time.Second
	}

	now := time.Now()
	grant := models.SharingGrant{
		RecipientID: recipient.ID,
		Token:       utils.GenerateGrantToken(),
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
	}

	if err := s.sessionRepo.AddSharingGrant(ctx, sessionID, grant); err != nil {
		return nil, err
	}

	s.notificationService.DispatchAsync(&models.NotificationJob{
		RecipientID: recipient.ID,
		Type:        models.NotificationTypeSessionUpdate,
		Priority:    models.NotificationPriorityNormal,
		Title:       "Location shared with you",
		Message:     "A user is sharing their live location with you for safety monitoring.",
		Channels:    []models.NotificationChannel{models.NotificationChannelPush, models.NotificationChannelInApp},
		Data: map[string]interface{}{
			"session_id": sessionID.Hex(),
		},
	})

	return &grant, nil
}

func (s *sessionService) RevokeGrant(ctx context.Context, sessionID, ownerID primitive.ObjectID, token string) error {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.OwnerID != ownerID {
		return models.ErrNotSessionOwner
	}

	return s.sessionRepo.RevokeSharingGrant(ctx, sessionID, token)
}

// GetSession enforces view access: the owner, security staff, and holders of
// a currently valid grant may read the session.
func (s *sessionService) GetSession(ctx context.Context, sessionID, viewerID primitive.ObjectID) (*models.SafetySession, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.OwnerID == viewerID {
		return session, nil
	}

	viewer, err := s.userRepo.GetByID(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	if viewer.Role == models.UserRoleStaff {
		return session, nil
	}

	for _, grant := range session.ActiveGrants(time.Now()) {
		if grant.RecipientID == viewerID {
			return session, nil
		}
	}

	return nil, models.ErrGrantNotFound
}

func (s *sessionService) GetActiveSession(ctx context.Context, ownerID primitive.ObjectID) (*models.SafetySession, error) {
	return s.sessionRepo.GetActiveByOwner(ctx, ownerID)
}

func (s *sessionService) GetSessionHistory(ctx context.Context, ownerID primitive.ObjectID, params *utils.PaginationParams) ([]*models.SafetySession, int64, error) {
	return s.sessionRepo.GetByOwner(ctx, ownerID, params)
}

func (s *sessionService) GetSessionsByStatus(ctx context.Context, status models.SessionStatus, params *utils.PaginationParams) ([]*models.SafetySession, int64, error) {
	return s.sessionRepo.GetByStatus(ctx, status, params)
}

func (s *sessionService) notifySessionUpdate(sessionID primitive.ObjectID, event string) {
	if s.wsHandler == nil {
		return
	}
	s.wsHandler.SendSessionUpdate(sessionID, "session_update", map[string]interface{}{
		"session_id": sessionID.Hex(),
		"event":      event,
	})
}
