package services

import (
	"context"
	"time"

	"campusguard/internal/models"
	"campusguard/internal/repositories/interfaces"
	"campusguard/internal/utils"
	"campusguard/pkg/logger"
	"campusguard/pkg/websocket"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SOSService interface {
	CreateAlert(ctx context.Context, ownerID primitive.ObjectID, request *models.CreateSOSRequest) (*models.SOSAlert, error)
	AcknowledgeAlert(ctx context.Context, alertID, staffID primitive.ObjectID) (*models.SOSAlert, error)
	ResolveAlert(ctx context.Context, alertID, staffID primitive.ObjectID, request *models.ResolveSOSRequest) (*models.SOSAlert, error)

	GetAlert(ctx context.Context, alertID primitive.ObjectID) (*models.SOSAlert, error)
	GetActiveAlerts(ctx context.Context) ([]*models.SOSAlert, error)
	GetAlertsByStatus(ctx context.Context, status models.SOSStatus, params *utils.PaginationParams) ([]*models.SOSAlert, int64, error)
	GetAlertsByOwner(ctx context.Context, ownerID primitive.ObjectID, params *utils.PaginationParams) ([]*models.SOSAlert, int64, error)
}

type sosService struct {
	sosRepo             interfaces.SOSRepository
	userRepo            interfaces.UserRepository
	notificationService NotificationService
	wsHandler           *websocket.Handler
	logger              *logger.Logger
}

func NewSOSService(
	sosRepo interfaces.SOSRepository,
	userRepo interfaces.UserRepository,
	notificationService NotificationService,
	wsHandler *websocket.Handler,
	log *logger.Logger,
) SOSService {
	return &sosService{
		sosRepo:             sosRepo,
		userRepo:            userRepo,
		notificationService: notificationService,
		wsHandler:           wsHandler,
		logger:              log,
	}
}

func (s *sosService) CreateAlert(ctx context.Context, ownerID primitive.ObjectID, request *models.CreateSOSRequest) (*models.SOSAlert, error) {
	owner, err := s.userRepo.GetByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	severity := request.Severity
	if severity == "" {
		severity = models.SOSSeverityHigh
	}

	alert := &models.SOSAlert{
		OwnerID:   ownerID,
		SessionID: request.SessionID,
		Status:    models.SOSStatusActive,
		Severity:  severity,
		Location:  request.Location,
		Message:   request.Message,
	}

	if err := s.sosRepo.Create(ctx, alert); err != nil {
		return nil, err
	}

	s.logger.LogSOSEvent(alert.ID, "sos_created", map[string]interface{}{
		"owner_id": ownerID.Hex(),
		"severity": string(severity),
	})

	s.notifyStaff(ctx, alert, owner)

	if s.wsHandler != nil {
		s.wsHandler.SendSecurityAlert("sos_created", map[string]interface{}{
			"alert_id": alert.ID.Hex(),
			"owner_id": ownerID.Hex(),
			"severity": string(severity),
			"location": alert.Location,
			"message":  alert.Message,
		})
	}

	return alert, nil
}

func (s *sosService) AcknowledgeAlert(ctx context.Context, alertID, staffID primitive.ObjectID) (*models.SOSAlert, error) {
	alert, err := s.sosRepo.GetByID(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if !alert.CanTransitionTo(models.SOSStatusAcknowledged) {
		return nil, models.ErrInvalidTransition
	}

	now := time.Now()
	committed, err := s.sosRepo.CompareAndSetStatus(ctx, alertID,
		[]models.SOSStatus{models.SOSStatusActive},
		models.SOSStatusAcknowledged,
		map[string]interface{}{
			"acknowledged_by": staffID,
			"acknowledged_at": now,
		})
	if err != nil {
		return nil, err
	}
	if !committed {
		return nil, models.ErrInvalidTransition
	}

	s.logger.LogSOSEvent(alertID, "sos_acknowledged", map[string]interface{}{
		"staff_id": staffID.Hex(),
	})

	s.notifyOwner(alert, models.NotificationTypeSOSAcknowledged,
		"Your SOS was acknowledged",
		"Campus security has acknowledged your alert and is responding.")

	return s.sosRepo.GetByID(ctx, alertID)
}

func (s *sosService) ResolveAlert(ctx context.Context, alertID, staffID primitive.ObjectID, request *models.ResolveSOSRequest) (*models.SOSAlert, error) {
	alert, err := s.sosRepo.GetByID(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if !alert.CanTransitionTo(models.SOSStatusResolved) {
		return nil, models.ErrInvalidTransition
	}

	now := time.Now()
	committed, err := s.sosRepo.CompareAndSetStatus(ctx, alertID,
		[]models.SOSStatus{models.SOSStatusActive, models.SOSStatusAcknowledged},
		models.SOSStatusResolved,
		map[string]interface{}{
			"resolved_by": staffID,
			"resolved_at": now,
			"resolution":  request.Resolution,
		})
	if err != nil {
		return nil, err
	}
	if !committed {
		return nil, models.ErrInvalidTransition
	}

	s.logger.LogSOSEvent(alertID, "sos_resolved", map[string]interface{}{
		"staff_id": staffID.Hex(),
	})

	s.notifyOwner(alert, models.NotificationTypeSOSResolved,
		"Your SOS was resolved",
		"Campus security has marked your alert as resolved.")

	return s.sosRepo.GetByID(ctx, alertID)
}

func (s *sosService) GetAlert(ctx context.Context, alertID primitive.ObjectID) (*models.SOSAlert, error) {
	return s.sosRepo.GetByID(ctx, alertID)
}

func (s *sosService) GetActiveAlerts(ctx context.Context) ([]*models.SOSAlert, error) {
	return s.sosRepo.GetActive(ctx)
}

func (s *sosService) GetAlertsByStatus(ctx context.Context, status models.SOSStatus, params *utils.PaginationParams) ([]*models.SOSAlert, int64, error) {
	return s.sosRepo.GetByStatus(ctx, status, params)
}

func (s *sosService) GetAlertsByOwner(ctx context.Context, ownerID primitive.ObjectID, params *utils.PaginationParams) ([]*models.SOSAlert, int64, error) {
	return s.sosRepo.GetByOwner(ctx, ownerID, params)
}

func (s *sosService) notifyStaff(ctx context.Context, alert *models.SOSAlert, owner *models.User) {
	staff, err := s.userRepo.GetStaff(ctx)
	if err != nil {
		s.logger.WithError(err).WithAlertID(alert.ID).Error("Failed to resolve staff for SOS fan-out")
		return
	}

	for _, member := range staff {
		s.notificationService.DispatchAsync(&models.NotificationJob{
			RecipientID: member.ID,
			Type:        models.NotificationTypeSOSCreated,
			Priority:    models.NotificationPriorityUrgent,
			Title:       "SOS alert",
			Message:     owner.Name + " has triggered an SOS alert.",
			Channels: []models.NotificationChannel{
				models.NotificationChannelPush,
				models.NotificationChannelSMS,
				models.NotificationChannelInApp,
			},
			Data: map[string]interface{}{
				"alert_id": alert.ID.Hex(),
				"owner_id": alert.OwnerID.Hex(),
				"severity": string(alert.Severity),
			},
		})
	}
}

func (s *sosService) notifyOwner(alert *models.SOSAlert, notificationType models.NotificationType, title, message string) {
	s.notificationService.DispatchAsync(&models.NotificationJob{
		RecipientID: alert.OwnerID,
		Type:        notificationType,
		Priority:    models.NotificationPriorityNormal,
		Title:       title,
		Message:     message,
		Channels:    []models.NotificationChannel{models.NotificationChannelPush, models.NotificationChannelInApp},
		Data: map[string]interface{}{
			"alert_id": alert.ID.Hex(),
		},
	})
}
