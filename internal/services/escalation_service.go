package services

import (
	"context"
	"fmt"
	"time"

	"campusguard/internal/models"
	"campusguard/internal/repositories/interfaces"
	"campusguard/internal/utils"
	"campusguard/pkg/logger"
	"campusguard/pkg/websocket"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EscalationTrigger names the transition that pushed a session into
// emergency. It is part of the dedup key, so each trigger fans out at most
// once per session.
type EscalationTrigger string

const (
	EscalationTriggerTimeout EscalationTrigger = "check_in_timeout"
	EscalationTriggerUnsafe  EscalationTrigger = "unsafe_response"
	EscalationTriggerManual  EscalationTrigger = "manual_sos"
)

type EscalationService interface {
	// Escalate fans an emergency out to the session's active grant holders
	// and all security staff. It is idempotent per (session, trigger); a
	// repeat call is a no-op. Notification failures are recorded on the jobs
	// and never returned.
	Escalate(ctx context.Context, session *models.SafetySession, trigger EscalationTrigger) error
}

// DedupGuard is the once-only fence for escalation fan-out.
type DedupGuard interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
}

type escalationService struct {
	sosRepo             interfaces.SOSRepository
	userRepo            interfaces.UserRepository
	notificationService NotificationService
	dedup               DedupGuard
	dedupTTL            time.Duration
	wsHandler           *websocket.Handler
	logger              *logger.Logger
}

func NewEscalationService(
	sosRepo interfaces.SOSRepository,
	userRepo interfaces.UserRepository,
	notificationService NotificationService,
	dedup DedupGuard,
	dedupTTL time.Duration,
	wsHandler *websocket.Handler,
	log *logger.Logger,
) EscalationService {
	if dedupTTL <= 0 {
		dedupTTL = utils.EscalationDedupTTL
	}

	return &escalationService{
		sosRepo:             sosRepo,
		userRepo:            userRepo,
		notificationService: notificationService,
		dedup:               dedup,
		dedupTTL:            dedupTTL,
		wsHandler:           wsHandler,
		logger:              log,
	}
}

func (s *escalationService) Escalate(ctx context.Context, session *models.SafetySession, trigger EscalationTrigger) error {
	eventKey := fmt.Sprintf("%s:%s", session.ID.Hex(), trigger)

	if s.dedup != nil {
		won, err := s.dedup.SetNX(ctx, "escalation:"+eventKey, time.Now().Unix(), s.dedupTTL)
		if err != nil {
			// A broken dedup store must not suppress an emergency; proceed
			// and tolerate a possible duplicate fan-out.
			s.logger.WithError(err).WithSessionID(session.ID).
				Warn("Escalation dedup check failed, proceeding anyway")
		} else if !won {
			s.logger.WithSessionID(session.ID).WithField("trigger", string(trigger)).
				Debug("Escalation already dispatched, skipping")
			return nil
		}
	}

	recipients := s.collectRecipients(ctx, session)

	s.logger.LogEscalationEvent(session.ID, string(trigger), len(recipients))

	// Record the emergency as an SOS alert so security workflows can pick it
	// up. Alert creation is best effort; fan-out happens regardless.
	s.recordAlert(ctx, session, trigger)

	title, message := escalationCopy(session, trigger)
	for _, recipient := range recipients {
		job := &models.NotificationJob{
			RecipientID: recipient.ID,
			Type:        models.NotificationTypeEscalation,
			Priority:    models.NotificationPriorityUrgent,
			Title:       title,
			Message:     message,
			EventKey:    eventKey,
			Channels: []models.NotificationChannel{
				models.NotificationChannelPush,
				models.NotificationChannelSMS,
				models.NotificationChannelEmail,
				models.NotificationChannelInApp,
			},
			Data: map[string]interface{}{
				"session_id": session.ID.Hex(),
				"owner_id":   session.OwnerID.Hex(),
				"trigger":    string(trigger),
			},
		}
		s.notificationService.DispatchAsync(job)
	}

	if s.wsHandler != nil {
		data := map[string]interface{}{
			"session_id": session.ID.Hex(),
			"owner_id":   session.OwnerID.Hex(),
			"trigger":    string(trigger),
		}
		if session.CurrentLocation != nil {
			data["location"] = session.CurrentLocation
		}
		s.wsHandler.SendSecurityAlert("session_emergency", data)
	}

	return nil
}

// collectRecipients resolves the fan-out set: holders of still-valid sharing
// grants plus every security staff account. Expired and revoked grants are
// excluded; the owner is not notified about their own emergency.
func (s *escalationService) collectRecipients(ctx context.Context, session *models.SafetySession) []*models.User {
	seen := make(map[primitive.ObjectID]bool)
	var ids []primitive.ObjectID

	for _, grant := range session.ActiveGrants(time.Now()) {
		if !seen[grant.RecipientID] {
			seen[grant.RecipientID] = true
			ids = append(ids, grant.RecipientID)
		}
	}

	var recipients []*models.User
	if len(ids) > 0 {
		users, err := s.userRepo.GetByIDs(ctx, ids)
		if err != nil {
			s.logger.WithError(err).WithSessionID(session.ID).
				Error("Failed to resolve grant recipients for escalation")
		} else {
			recipients = users
		}
	}

	staff, err := s.userRepo.GetStaff(ctx)
	if err != nil {
		s.logger.WithError(err).WithSessionID(session.ID).
			Error("Failed to resolve staff recipients for escalation")
	}
	for _, member := range staff {
		if member.ID == session.OwnerID || seen[member.ID] {
			continue
		}
		seen[member.ID] = true
		recipients = append(recipients, member)
	}

	return recipients
}

func (s *escalationService) recordAlert(ctx context.Context, session *models.SafetySession, trigger EscalationTrigger) {
	sessionID := session.ID
	alert := &models.SOSAlert{
		OwnerID:   session.OwnerID,
		SessionID: &sessionID,
		Status:    models.SOSStatusActive,
		Severity:  models.SOSSeverityHigh,
		Message:   fmt.Sprintf("Safety session escalated: %s", trigger),
	}
	if session.CurrentLocation != nil {
		alert.Location = *session.CurrentLocation
	}

	if err := s.sosRepo.Create(ctx, alert); err != nil {
		s.logger.WithError(err).WithSessionID(session.ID).
			Error("Failed to record SOS alert for escalation")
	}
}

func escalationCopy(session *models.SafetySession, trigger EscalationTrigger) (string, string) {
	switch trigger {
	case EscalationTriggerTimeout:
		return "Safety alert: missed check-in",
			"A monitored user did not respond to a safety check-in. Their last known location is attached."
	case EscalationTriggerUnsafe:
		return "Safety alert: user reported unsafe",
			"A monitored user responded that they are not safe. Their last known location is attached."
	default:
		return "Safety alert: emergency",
			"A monitored safety session has entered an emergency state."
	}
}
