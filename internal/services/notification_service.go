package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"campusguard/internal/config"
	"campusguard/internal/models"
	"campusguard/internal/repositories/interfaces"
	"campusguard/internal/utils"
	"campusguard/pkg/email"
	"campusguard/pkg/logger"
	"campusguard/pkg/push"
	"campusguard/pkg/sms"
	"campusguard/pkg/websocket"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationService interface {
	// Dispatch persists the job and attempts every requested channel,
	// recording a per-channel result. The returned error covers persistence
	// only; channel failures never propagate.
	Dispatch(ctx context.Context, job *models.NotificationJob) error

	// DispatchAsync runs Dispatch on its own goroutine with a detached
	// context so a slow provider cannot block the caller.
	DispatchAsync(job *models.NotificationJob)

	MarkRead(ctx context.Context, id primitive.ObjectID, recipientID primitive.ObjectID) error
	GetHistory(ctx context.Context, recipientID primitive.ObjectID, params *utils.PaginationParams) ([]*models.NotificationJob, int64, error)
	GetFailed(ctx context.Context, params *utils.PaginationParams) ([]*models.NotificationJob, int64, error)
}

// ChannelSender delivers one job over one channel. Senders report transport
// errors; the dispatcher decides how to record them.
type ChannelSender interface {
	Send(ctx context.Context, job *models.NotificationJob, recipient *models.User) error
}

type notificationService struct {
	notificationRepo interfaces.NotificationRepository
	userRepo         interfaces.UserRepository
	senders          map[models.NotificationChannel]ChannelSender
	retryAttempts    int
	resultsMu        sync.Mutex
	logger           *logger.Logger
}

func NewNotificationService(
	cfg *config.Config,
	notificationRepo interfaces.NotificationRepository,
	userRepo interfaces.UserRepository,
	pushProvider push.PushProvider,
	smsProvider sms.SMSProvider,
	emailProvider email.EmailProvider,
	wsHandler *websocket.Handler,
	log *logger.Logger,
) NotificationService {
	senders := map[models.NotificationChannel]ChannelSender{
		models.NotificationChannelPush:  &pushSender{provider: pushProvider},
		models.NotificationChannelSMS:   &smsSender{provider: smsProvider, from: cfg.SMS.DefaultFrom},
		models.NotificationChannelEmail: &emailSender{provider: emailProvider},
		models.NotificationChannelInApp: &inAppSender{wsHandler: wsHandler},
	}

	retryAttempts := utils.NotificationRetryAttempts
	if cfg.Safety != nil && cfg.Safety.NotificationRetryAttempts > 0 {
		retryAttempts = cfg.Safety.NotificationRetryAttempts
	}

	return &notificationService{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		senders:          senders,
		retryAttempts:    retryAttempts,
		logger:           log,
	}
}

func (s *notificationService) Dispatch(ctx context.Context, job *models.NotificationJob) error {
	if len(job.Channels) == 0 {
		job.Channels = []models.NotificationChannel{models.NotificationChannelPush, models.NotificationChannelInApp}
	}

	if err := s.notificationRepo.Create(ctx, job); err != nil {
		return fmt.Errorf("failed to persist notification job: %w", err)
	}

	recipient, err := s.userRepo.GetByID(ctx, job.RecipientID)
	if err != nil {
		// Without a recipient record no channel can be addressed; mark all
		// requested channels skipped rather than failing the dispatch.
		for _, channel := range job.Channels {
			s.recordResult(ctx, job, channel, &models.ChannelResult{
				Status:      models.ChannelStatusSkipped,
				Error:       "recipient not found",
				CompletedAt: time.Now(),
			})
		}
		return nil
	}

	// Channels are independent: each one is attempted regardless of what
	// happens on its siblings.
	var wg sync.WaitGroup
	for _, channel := range job.Channels {
		wg.Add(1)
		go func(channel models.NotificationChannel) {
			defer wg.Done()
			s.deliverChannel(ctx, job, recipient, channel)
		}(channel)
	}
	wg.Wait()

	return nil
}

func (s *notificationService) DispatchAsync(job *models.NotificationJob) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.Dispatch(ctx, job); err != nil {
			s.logger.WithError(err).WithField("recipient_id", job.RecipientID.Hex()).
				Error("Async notification dispatch failed")
		}
	}()
}

func (s *notificationService) deliverChannel(ctx context.Context, job *models.NotificationJob, recipient *models.User, channel models.NotificationChannel) {
	sender, ok := s.senders[channel]
	if !ok {
		s.recordResult(ctx, job, channel, &models.ChannelResult{
			Status:      models.ChannelStatusSkipped,
			Error:       "no sender configured",
			CompletedAt: time.Now(),
		})
		return
	}

	if reason := s.skipReason(recipient, channel); reason != "" {
		s.recordResult(ctx, job, channel, &models.ChannelResult{
			Status:      models.ChannelStatusSkipped,
			Error:       reason,
			CompletedAt: time.Now(),
		})
		return
	}

	var lastErr error
	for attempt := 1; attempt <= s.retryAttempts; attempt++ {
		lastErr = sender.Send(ctx, job, recipient)
		if lastErr == nil {
			s.recordResult(ctx, job, channel, &models.ChannelResult{
				Status:      models.ChannelStatusSent,
				Attempts:    attempt,
				CompletedAt: time.Now(),
			})
			return
		}
	}

	s.logger.WithError(lastErr).WithFields(map[string]interface{}{
		"recipient_id": recipient.ID.Hex(),
		"channel":      string(channel),
	}).Warn("Notification channel delivery failed")

	s.recordResult(ctx, job, channel, &models.ChannelResult{
		Status:      models.ChannelStatusFailed,
		Error:       lastErr.Error(),
		Attempts:    s.retryAttempts,
		CompletedAt: time.Now(),
	})
}

func (s *notificationService) skipReason(recipient *models.User, channel models.NotificationChannel) string {
	switch channel {
	case models.NotificationChannelPush:
		if !recipient.HasPushToken() {
			return "recipient has no push token"
		}
	case models.NotificationChannelSMS:
		if !recipient.HasPhone() {
			return "recipient has no phone number"
		}
	case models.NotificationChannelEmail:
		if recipient.Email == "" {
			return "recipient has no email address"
		}
	}
	return ""
}

func (s *notificationService) recordResult(ctx context.Context, job *models.NotificationJob, channel models.NotificationChannel, result *models.ChannelResult) {
	// Channel goroutines land here concurrently.
	s.resultsMu.Lock()
	if job.ChannelResults == nil {
		job.ChannelResults = make(map[models.NotificationChannel]*models.ChannelResult)
	}
	job.ChannelResults[channel] = result
	s.resultsMu.Unlock()

	if err := s.notificationRepo.SetChannelResult(ctx, job.ID, channel, result); err != nil {
		s.logger.WithError(err).WithField("channel", string(channel)).
			Error("Failed to record channel result")
	}
}

func (s *notificationService) MarkRead(ctx context.Context, id primitive.ObjectID, recipientID primitive.ObjectID) error {
	job, err := s.notificationRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if job.RecipientID != recipientID {
		return models.ErrNotSessionOwner
	}

	return s.notificationRepo.MarkRead(ctx, id)
}

func (s *notificationService) GetHistory(ctx context.Context, recipientID primitive.ObjectID, params *utils.PaginationParams) ([]*models.NotificationJob, int64, error) {
	return s.notificationRepo.GetByRecipient(ctx, recipientID, params)
}

func (s *notificationService) GetFailed(ctx context.Context, params *utils.PaginationParams) ([]*models.NotificationJob, int64, error) {
	return s.notificationRepo.GetWithFailedChannels(ctx, params)
}

// Channel senders

type pushSender struct {
	provider push.PushProvider
}

func (p *pushSender) Send(ctx context.Context, job *models.NotificationJob, recipient *models.User) error {
	if p.provider == nil {
		return fmt.Errorf("push provider not configured")
	}

	data := make(map[string]string)
	for k, v := range job.Data {
		data[k] = fmt.Sprintf("%v", v)
	}
	data["type"] = string(job.Type)

	priority := "normal"
	sound := "default"
	if job.Priority == models.NotificationPriorityUrgent {
		priority = "high"
		sound = "emergency.caf"
	}

	_, err := p.provider.SendNotification(ctx, &push.NotificationRequest{
		Token:    recipient.PushToken,
		Title:    job.Title,
		Body:     job.Message,
		Data:     data,
		Priority: priority,
		Sound:    sound,
	})
	return err
}

type smsSender struct {
	provider sms.SMSProvider
	from     string
}

func (s *smsSender) Send(ctx context.Context, job *models.NotificationJob, recipient *models.User) error {
	if s.provider == nil {
		return fmt.Errorf("sms provider not configured")
	}

	_, err := s.provider.SendSMS(ctx, &sms.SMSRequest{
		To:      recipient.Phone,
		From:    s.from,
		Message: fmt.Sprintf("%s: %s", job.Title, job.Message),
	})
	return err
}

type emailSender struct {
	provider email.EmailProvider
}

func (e *emailSender) Send(ctx context.Context, job *models.NotificationJob, recipient *models.User) error {
	if e.provider == nil {
		return fmt.Errorf("email provider not configured")
	}

	_, err := e.provider.SendEmail(ctx, &email.EmailRequest{
		To:      recipient.Email,
		Subject: job.Title,
		Body:    job.Message,
	})
	return err
}

type inAppSender struct {
	wsHandler *websocket.Handler
}

func (i *inAppSender) Send(ctx context.Context, job *models.NotificationJob, recipient *models.User) error {
	if i.wsHandler == nil {
		return fmt.Errorf("websocket handler not configured")
	}

	data := map[string]interface{}{
		"title":    job.Title,
		"message":  job.Message,
		"priority": string(job.Priority),
	}
	for k, v := range job.Data {
		data[k] = v
	}

	i.wsHandler.SendUserNotification(recipient.ID, string(job.Type), data)
	return nil
}
