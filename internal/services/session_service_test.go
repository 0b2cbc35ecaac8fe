package services

import (
	"context"
	"testing"
	"time"

	"campusguard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type sessionFixture struct {
	sessionRepo *fakeSessionRepo
	checkInRepo *fakeCheckInRepo
	userRepo    *fakeUserRepo
	escalator   *recordingEscalator
	broadcaster *recordingBroadcaster
	notifier    *recordingNotifier
	service     SessionService
}

func newSessionFixture(t *testing.T, users ...*models.User) *sessionFixture {
	t.Helper()

	f := &sessionFixture{
		sessionRepo: newFakeSessionRepo(),
		checkInRepo: newFakeCheckInRepo(),
		userRepo:    newFakeUserRepo(users...),
		escalator:   &recordingEscalator{},
		broadcaster: &recordingBroadcaster{},
		notifier:    &recordingNotifier{},
	}
	f.service = NewSessionService(testConfig(), f.sessionRepo, f.checkInRepo, f.userRepo,
		f.escalator, f.broadcaster, f.notifier, nil, testLogger())
	return f
}

func TestStartSessionDefaults(t *testing.T) {
	owner := newStudent("ada")
	f := newSessionFixture(t, owner)

	session, err := f.service.StartSession(context.Background(), owner.ID, &models.StartSessionRequest{
		Mode: models.SessionModeJourney,
	})
	require.NoError(t, err)

	assert.Equal(t, models.SessionStatusActive, session.Status)
	assert.Equal(t, 300, session.CheckInIntervalSeconds)
	assert.Equal(t, 120, session.GraceSeconds)
	require.NotNil(t, session.NextCheckInAt)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), *session.NextCheckInAt, time.Second)
	assert.WithinDuration(t, time.Now().Add(4*time.Hour), session.ExpiresAt, time.Second)
	assert.Zero(t, session.CheckInsIssued)
}

func TestStartSessionWithInitialLocation(t *testing.T) {
	owner := newStudent("ada")
	f := newSessionFixture(t, owner)

	point := models.NewPoint(-71.09, 42.36, time.Time{})
	session, err := f.service.StartSession(context.Background(), owner.ID, &models.StartSessionRequest{
		Mode:            models.SessionModeLiveShare,
		InitialLocation: &point,
	})
	require.NoError(t, err)

	require.NotNil(t, session.CurrentLocation)
	assert.Equal(t, -71.09, session.CurrentLocation.Longitude())
	assert.False(t, session.CurrentLocation.Timestamp.IsZero())
	assert.Len(t, session.LocationHistory, 1)
}

func TestStartSessionConflict(t *testing.T) {
	owner := newStudent("ada")
	f := newSessionFixture(t, owner)

	_, err := f.service.StartSession(context.Background(), owner.ID, &models.StartSessionRequest{Mode: models.SessionModeJourney})
	require.NoError(t, err)

	_, err = f.service.StartSession(context.Background(), owner.ID, &models.StartSessionRequest{Mode: models.SessionModeJourney})
	assert.ErrorIs(t, err, models.ErrSessionConflict)
}

func TestStartSessionConflictDuringEmergency(t *testing.T) {
	owner := newStudent("ada")
	f := newSessionFixture(t, owner)
	seedSession(f.sessionRepo, owner.ID, models.SessionStatusEmergency, nil)

	// An emergency still counts as the owner's open session; they cannot
	// start a new one underneath an ongoing response.
	_, err := f.service.StartSession(context.Background(), owner.ID, &models.StartSessionRequest{Mode: models.SessionModeJourney})
	assert.ErrorIs(t, err, models.ErrSessionConflict)
}

func TestStartSessionAfterPreviousCompleted(t *testing.T) {
	owner := newStudent("ada")
	f := newSessionFixture(t, owner)

	first, err := f.service.StartSession(context.Background(), owner.ID, &models.StartSessionRequest{Mode: models.SessionModeJourney})
	require.NoError(t, err)

	_, err = f.service.CompleteSession(context.Background(), first.ID, owner.ID)
	require.NoError(t, err)

	_, err = f.service.StartSession(context.Background(), owner.ID, &models.StartSessionRequest{Mode: models.SessionModeJourney})
	assert.NoError(t, err)
}

func TestCompleteSession(t *testing.T) {
	owner := newStudent("ada")
	f := newSessionFixture(t, owner)
	session := seedSession(f.sessionRepo, owner.ID, models.SessionStatusActive, nil)

	completed, err := f.service.CompleteSession(context.Background(), session.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCompleted, completed.Status)
	assert.Nil(t, completed.NextCheckInAt)
	assert.Nil(t, completed.CheckInDeadlineAt)
}

func TestCompleteSessionNotOwner(t *testing.T) {
	owner := newStudent("ada")
	stranger := newStudent("eve")
	f := newSessionFixture(t, owner, stranger)
	session := seedSession(f.sessionRepo, owner.ID, models.SessionStatusActive, nil)

	_, err := f.service.CompleteSession(context.Background(), session.ID, stranger.ID)
	assert.ErrorIs(t, err, models.ErrNotSessionOwner)
}

func TestCompleteEmergencySessionRejected(t *testing.T) {
	owner := newStudent("ada")
	f := newSessionFixture(t, owner)
	session := seedSession(f.sessionRepo, owner.ID, models.SessionStatusEmergency, nil)

	_, err := f.service.CompleteSession(context.Background(), session.ID, owner.ID)
	assert.ErrorIs(t, err, models.ErrSessionClosed)
}

func TestCancelSession(t *testing.T) {
	owner := newStudent("ada")
	f := newSessionFixture(t, owner)
	session := seedSession(f.sessionRepo, owner.ID, models.SessionStatusCheckInDue, nil)

	cancelled, err := f.service.CancelSession(context.Background(), session.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCancelled, cancelled.Status)
}

func seedDueCheckIn(t *testing.T, f *sessionFixture, session *models.SafetySession) *models.CheckIn {
	t.Helper()

	checkIn := &models.CheckIn{
		SessionID:   session.ID,
		ScheduledAt: time.Now().Add(-time.Minute),
		Response:    models.CheckInResponsePending,
	}
	require.NoError(t, f.checkInRepo.Create(context.Background(), checkIn))
	return checkIn
}

func TestRespondCheckInSafe(t *testing.T) {
	owner := newStudent("ada")
	f := newSessionFixture(t, owner)

	deadline := time.Now().Add(time.Minute)
	session := seedSession(f.sessionRepo, owner.ID, models.SessionStatusCheckInDue, func(s *models.SafetySession) {
		s.CheckInDeadlineAt = &deadline
		s.CheckInsIssued = 1
	})
	checkIn := seedDueCheckIn(t, f, session)

	fresh, err := f.service.RespondCheckIn(context.Background(), session.ID, owner.ID, &models.CheckInResponseRequest{Safe: true})
	require.NoError(t, err)

	assert.Equal(t, models.SessionStatusActive, fresh.Status)
	assert.Nil(t, fresh.CheckInDeadlineAt)
	require.NotNil(t, fresh.NextCheckInAt)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), *fresh.NextCheckInAt, time.Second)
	require.NotNil(t, fresh.LastCheckInAt)

	stored, err := f.checkInRepo.GetByID(context.Background(), checkIn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CheckInResponseSafe, stored.Response)
	assert.Empty(t, f.escalator.triggers())
}

func TestRespondCheckInUnsafeEscalates(t *testing.T) {
	owner := newStudent("ada")
	f := newSessionFixture(t, owner)

	deadline := time.Now().Add(time.Minute)
	session := seedSession(f.sessionRepo, owner.ID, models.SessionStatusCheckInDue, func(s *models.SafetySession) {
		s.CheckInDeadlineAt = &deadline
		s.CheckInsIssued = 1
	})
	seedDueCheckIn(t, f, session)

	fresh, err := f.service.RespondCheckIn(context.Background(), session.ID, owner.ID, &models.CheckInResponseRequest{Safe: false})
	require.NoError(t, err)

	assert.Equal(t, models.SessionStatusEmergency, fresh.Status)
	require.Len(t, f.escalator.triggers(), 1)
	assert.Equal(t, EscalationTriggerUnsafe, f.escalator.triggers()[0])
}

func TestRespondCheckInNoPending(t *testing.T) {
	owner := newStudent("ada")
	f := newSessionFixture(t, owner)
	session := seedSession(f.sessionRepo, owner.ID, models.SessionStatusActive, nil)

	_, err := f.service.RespondCheckIn(context.Background(), session.ID, owner.ID, &models.CheckInResponseRequest{Safe: true})
	assert.ErrorIs(t, err, models.ErrNoPendingCheckIn)
}

func TestRespondCheckInClosedSession(t *testing.T) {
	owner := newStudent("ada")
	f := newSessionFixture(t, owner)
	session := seedSession(f.sessionRepo, owner.ID, models.SessionStatusCompleted, nil)

	_, err := f.service.RespondCheckIn(context.Background(), session.ID, owner.ID, &models.CheckInResponseRequest{Safe: true})
	assert.ErrorIs(t, err, models.ErrSessionClosed)
}

func TestPublishLocation(t *testing.T) {
	owner := newStudent("ada")
	f := newSessionFixture(t, owner)
	session := seedSession(f.sessionRepo, owner.ID, models.SessionStatusActive, nil)

	err := f.service.PublishLocation(context.Background(), session.ID, owner.ID, &models.PublishLocationRequest{
		Longitude: -71.1,
		Latitude:  42.3,
	})
	require.NoError(t, err)

	points := f.broadcaster.published()
	require.Len(t, points, 1)
	assert.Equal(t, -71.1, points[0].Longitude())
	assert.Equal(t, 42.3, points[0].Latitude())
}

func TestPublishLocationDuringEmergency(t *testing.T) {
	owner := newStudent("ada")
	f := newSessionFixture(t, owner)
	session := seedSession(f.sessionRepo, owner.ID, models.SessionStatusEmergency, nil)

	err := f.service.PublishLocation(context.Background(), session.ID, owner.ID, &models.PublishLocationRequest{
		Longitude: -71.1,
		Latitude:  42.3,
	})
	assert.NoError(t, err)
	assert.Len(t, f.broadcaster.published(), 1)
}

func TestPublishLocationClosedSession(t *testing.T) {
	owner := newStudent("ada")
	f := newSessionFixture(t, owner)
	session := seedSession(f.sessionRepo, owner.ID, models.SessionStatusCancelled, nil)

	err := f.service.PublishLocation(context.Background(), session.ID, owner.ID, &models.PublishLocationRequest{
		Longitude: -71.1,
		Latitude:  42.3,
	})
	assert.ErrorIs(t, err, models.ErrSessionClosed)
	assert.Empty(t, f.broadcaster.published())
}

func TestCreateAndRevokeGrant(t *testing.T) {
	owner := newStudent("ada")
	friend := newStudent("grace")
	f := newSessionFixture(t, owner, friend)
	session := seedSession(f.sessionRepo, owner.ID, models.SessionStatusActive, nil)

	grant, err := f.service.CreateGrant(context.Background(), session.ID, owner.ID, &models.CreateGrantRequest{
		RecipientID: friend.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, friend.ID, grant.RecipientID)
	assert.NotEmpty(t, grant.Token)
	assert.WithinDuration(t, time.Now().Add(4*time.Hour), grant.ExpiresAt, time.Second)

	// Recipient is told about the share.
	updates := f.notifier.jobsOfType(models.NotificationTypeSessionUpdate)
	require.Len(t, updates, 1)
	assert.Equal(t, friend.ID, updates[0].RecipientID)

	require.NoError(t, f.service.RevokeGrant(context.Background(), session.ID, owner.ID, grant.Token))

	fresh, err := f.sessionRepo.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, fresh.SharingGrants, 1)
	assert.True(t, fresh.SharingGrants[0].Revoked)
	assert.Empty(t, fresh.ActiveGrants(time.Now()))
}

func TestCreateGrantUnknownRecipient(t *testing.T) {
	owner := newStudent("ada")
	f := newSessionFixture(t, owner)
	session := seedSession(f.sessionRepo, owner.ID, models.SessionStatusActive, nil)

	_, err := f.service.CreateGrant(context.Background(), session.ID, owner.ID, &models.CreateGrantRequest{
		RecipientID: primitive.NewObjectID(),
	})
	assert.ErrorIs(t, err, models.ErrUserNotFound)
}

func TestRevokeGrantUnknownToken(t *testing.T) {
	owner := newStudent("ada")
	f := newSessionFixture(t, owner)
	session := seedSession(f.sessionRepo, owner.ID, models.SessionStatusActive, nil)

	err := f.service.RevokeGrant(context.Background(), session.ID, owner.ID, "no-such-token")
	assert.ErrorIs(t, err, models.ErrGrantNotFound)
}

func TestGetSessionAccessControl(t *testing.T) {
	owner := newStudent("ada")
	friend := newStudent("grace")
	stranger := newStudent("eve")
	officer := newStaff("sam")
	f := newSessionFixture(t, owner, friend, stranger, officer)

	session := seedSession(f.sessionRepo, owner.ID, models.SessionStatusActive, func(s *models.SafetySession) {
		s.SharingGrants = []models.SharingGrant{
			{
				RecipientID: friend.ID,
				Token:       "tok-grace",
				ExpiresAt:   time.Now().Add(time.Hour),
				CreatedAt:   time.Now(),
			},
		}
	})

	_, err := f.service.GetSession(context.Background(), session.ID, owner.ID)
	assert.NoError(t, err, "owner can view")

	_, err = f.service.GetSession(context.Background(), session.ID, friend.ID)
	assert.NoError(t, err, "grant holder can view")

	_, err = f.service.GetSession(context.Background(), session.ID, officer.ID)
	assert.NoError(t, err, "staff can view")

	_, err = f.service.GetSession(context.Background(), session.ID, stranger.ID)
	assert.ErrorIs(t, err, models.ErrGrantNotFound)
}

func TestGetSessionExpiredGrantDeniesAccess(t *testing.T) {
	owner := newStudent("ada")
	friend := newStudent("grace")
	f := newSessionFixture(t, owner, friend)

	session := seedSession(f.sessionRepo, owner.ID, models.SessionStatusActive, func(s *models.SafetySession) {
		s.SharingGrants = []models.SharingGrant{
			{
				RecipientID: friend.ID,
				Token:       "tok-grace",
				ExpiresAt:   time.Now().Add(-time.Minute),
				CreatedAt:   time.Now().Add(-time.Hour),
			},
		}
	})

	_, err := f.service.GetSession(context.Background(), session.ID, friend.ID)
	assert.ErrorIs(t, err, models.ErrGrantNotFound)
}

func TestGetActiveSession(t *testing.T) {
	owner := newStudent("ada")
	f := newSessionFixture(t, owner)
	seedSession(f.sessionRepo, owner.ID, models.SessionStatusCheckInDue, nil)

	session, err := f.service.GetActiveSession(context.Background(), owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCheckInDue, session.Status)

	_, err = f.service.GetActiveSession(context.Background(), primitive.NewObjectID())
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}
