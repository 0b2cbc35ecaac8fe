package services

import (
	"context"
	"time"

	"campusguard/internal/config"
	"campusguard/internal/models"
	"campusguard/internal/repositories/interfaces"
	"campusguard/pkg/logger"
	"campusguard/pkg/websocket"
)

// Clock abstracts time for the scheduler so sweeps can be driven
// deterministically in tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// SchedulerService runs the periodic sweep that drives every time-based
// session transition: issuing check-in prompts, timing out unanswered
// prompts, and expiring idle sessions. Correctness does not depend on tick
// granularity; every pass is guarded by status filters and CAS writes, so a
// delayed or duplicated tick converges to the same state.
type SchedulerService interface {
	Start(ctx context.Context)
	RunTick(ctx context.Context, now time.Time)
}

type schedulerService struct {
	sessionRepo         interfaces.SessionRepository
	checkInRepo         interfaces.CheckInRepository
	escalationService   EscalationService
	notificationService NotificationService
	wsHandler           *websocket.Handler
	clock               Clock
	tick                time.Duration
	logger              *logger.Logger
}

func NewSchedulerService(
	cfg *config.Config,
	sessionRepo interfaces.SessionRepository,
	checkInRepo interfaces.CheckInRepository,
	escalationService EscalationService,
	notificationService NotificationService,
	wsHandler *websocket.Handler,
	clock Clock,
	log *logger.Logger,
) SchedulerService {
	if clock == nil {
		clock = realClock{}
	}

	tick := 5 * time.Second
	if cfg.Safety != nil && cfg.Safety.SchedulerTick > 0 {
		tick = cfg.Safety.SchedulerTick
	}

	return &schedulerService{
		sessionRepo:         sessionRepo,
		checkInRepo:         checkInRepo,
		escalationService:   escalationService,
		notificationService: notificationService,
		wsHandler:           wsHandler,
		clock:               clock,
		tick:                tick,
		logger:              log,
	}
}

func (s *schedulerService) Start(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.logger.WithField("tick", s.tick.String()).Info("Safety scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Safety scheduler stopped")
			return
		case <-ticker.C:
			s.RunTick(ctx, s.clock.Now())
		}
	}
}

func (s *schedulerService) RunTick(ctx context.Context, now time.Time) {
	s.promptDueSessions(ctx, now)
	s.timeOutOverdueSessions(ctx, now)
	s.expireIdleSessions(ctx, now)
}

// promptDueSessions moves active sessions whose check-in time has arrived
// into check_in_due, creates the pending check-in record, and prompts the
// owner.
func (s *schedulerService) promptDueSessions(ctx context.Context, now time.Time) {
	sessions, err := s.sessionRepo.FindCheckInDue(ctx, now)
	if err != nil {
		s.logger.WithError(err).Error("Failed to query sessions due for check-in")
		return
	}

	for _, session := range sessions {
		deadline := now.Add(session.GracePeriod())

		committed, err := s.sessionRepo.CompareAndSetStatus(ctx, session.ID, session.Version,
			[]models.SessionStatus{models.SessionStatusActive},
			models.SessionStatusCheckInDue,
			map[string]interface{}{
				"check_in_deadline_at": deadline,
				"check_ins_issued":     session.CheckInsIssued + 1,
			})
		if err != nil {
			s.logger.WithError(err).WithSessionID(session.ID).Error("Failed to mark session check_in_due")
			continue
		}
		if !committed {
			// Another tick or the owner got here first.
			continue
		}

		scheduledAt := now
		if session.NextCheckInAt != nil {
			scheduledAt = *session.NextCheckInAt
		}

		checkIn := &models.CheckIn{
			SessionID:   session.ID,
			ScheduledAt: scheduledAt,
			Response:    models.CheckInResponsePending,
		}
		if err := s.checkInRepo.Create(ctx, checkIn); err != nil {
			s.logger.WithError(err).WithSessionID(session.ID).Error("Failed to create check-in record")
			continue
		}

		s.logger.LogSessionEvent(session.ID, "check_in_prompted", map[string]interface{}{
			"deadline": deadline,
		})

		s.notificationService.DispatchAsync(&models.NotificationJob{
			RecipientID: session.OwnerID,
			Type:        models.NotificationTypeCheckInPrompt,
			Priority:    models.NotificationPriorityUrgent,
			Title:       "Are you safe?",
			Message:     "Please confirm you are safe. Your session will escalate if you do not respond.",
			Channels:    []models.NotificationChannel{models.NotificationChannelPush, models.NotificationChannelInApp},
			Data: map[string]interface{}{
				"session_id":  session.ID.Hex(),
				"check_in_id": checkIn.ID.Hex(),
				"deadline":    deadline.Unix(),
			},
		})

		if s.wsHandler != nil {
			s.wsHandler.SendSessionUpdate(session.ID, "check_in_prompted", map[string]interface{}{
				"session_id": session.ID.Hex(),
				"deadline":   deadline.Unix(),
			})
		}
	}
}

// timeOutOverdueSessions escalates sessions whose check-in deadline passed
// without a response. The check-in record is closed first; losing that write
// means the owner answered in the meantime and the session is left alone.
func (s *schedulerService) timeOutOverdueSessions(ctx context.Context, now time.Time) {
	sessions, err := s.sessionRepo.FindCheckInOverdue(ctx, now)
	if err != nil {
		s.logger.WithError(err).Error("Failed to query overdue sessions")
		return
	}

	for _, session := range sessions {
		checkIn, err := s.checkInRepo.GetOpenBySession(ctx, session.ID)
		if err != nil {
			s.logger.WithError(err).WithSessionID(session.ID).Error("Failed to load open check-in")
			continue
		}

		if checkIn != nil {
			won, err := s.checkInRepo.SetResponse(ctx, checkIn.ID, models.CheckInResponseTimedOut, &now, nil)
			if err != nil {
				s.logger.WithError(err).WithSessionID(session.ID).Error("Failed to time out check-in")
				continue
			}
			if !won {
				// The owner responded between the query and this write.
				continue
			}
		} else {
			// No pending prompt. Either the owner answered and their session
			// transition is in flight, or an earlier sweep timed the prompt
			// out and failed before committing the emergency. Only the
			// timed-out case is ours to finish.
			last, err := s.checkInRepo.GetLatestBySession(ctx, session.ID)
			if err != nil {
				s.logger.WithError(err).WithSessionID(session.ID).Error("Failed to load latest check-in")
				continue
			}
			if last == nil || last.Response != models.CheckInResponseTimedOut {
				continue
			}
		}

		committed, err := s.sessionRepo.CompareAndSetStatus(ctx, session.ID, session.Version,
			[]models.SessionStatus{models.SessionStatusCheckInDue},
			models.SessionStatusEmergency,
			map[string]interface{}{
				"check_in_deadline_at": nil,
				"next_check_in_at":     nil,
			})
		if err != nil {
			s.logger.WithError(err).WithSessionID(session.ID).Error("Failed to escalate overdue session")
			continue
		}
		if !committed {
			continue
		}

		fresh, err := s.sessionRepo.GetByID(ctx, session.ID)
		if err != nil {
			fresh = session
		}

		if err := s.escalationService.Escalate(ctx, fresh, EscalationTriggerTimeout); err != nil {
			s.logger.WithError(err).WithSessionID(session.ID).Error("Escalation failed for timed out session")
		}
	}
}

// expireIdleSessions closes sessions that outlived their TTL without a
// single check-in ever being issued. A session with check-in activity never
// expires; it either completes or goes through the timeout path.
func (s *schedulerService) expireIdleSessions(ctx context.Context, now time.Time) {
	sessions, err := s.sessionRepo.FindExpired(ctx, now)
	if err != nil {
		s.logger.WithError(err).Error("Failed to query expired sessions")
		return
	}

	for _, session := range sessions {
		committed, err := s.sessionRepo.CompareAndSetStatus(ctx, session.ID, session.Version,
			models.MonitoredStatuses,
			models.SessionStatusExpired,
			map[string]interface{}{
				"check_in_deadline_at": nil,
				"next_check_in_at":     nil,
			})
		if err != nil {
			s.logger.WithError(err).WithSessionID(session.ID).Error("Failed to expire session")
			continue
		}
		if !committed {
			continue
		}

		s.logger.LogSessionEvent(session.ID, "session_expired", map[string]interface{}{
			"owner_id": session.OwnerID.Hex(),
		})

		if s.wsHandler != nil {
			s.wsHandler.SendSessionUpdate(session.ID, "session_expired", map[string]interface{}{
				"session_id": session.ID.Hex(),
			})
		}
	}
}
