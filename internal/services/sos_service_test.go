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

type sosFixture struct {
	sosRepo  *fakeSOSRepo
	userRepo *fakeUserRepo
	notifier *recordingNotifier
	service  SOSService
}

func newSOSFixture(t *testing.T, users ...*models.User) *sosFixture {
	t.Helper()

	f := &sosFixture{
		sosRepo:  newFakeSOSRepo(),
		userRepo: newFakeUserRepo(users...),
		notifier: &recordingNotifier{},
	}
	f.service = NewSOSService(f.sosRepo, f.userRepo, f.notifier, nil, testLogger())
	return f
}

func TestCreateAlertNotifiesStaff(t *testing.T) {
	owner := newStudent("ada")
	officerOne := newStaff("sam")
	officerTwo := newStaff("max")
	f := newSOSFixture(t, owner, officerOne, officerTwo)

	alert, err := f.service.CreateAlert(context.Background(), owner.ID, &models.CreateSOSRequest{
		Location: models.NewPoint(-71.09, 42.36, time.Now()),
		Message:  "Need help near the library",
	})
	require.NoError(t, err)

	assert.Equal(t, models.SOSStatusActive, alert.Status)
	assert.Equal(t, models.SOSSeverityHigh, alert.Severity, "severity defaults to high")

	jobs := f.notifier.jobsOfType(models.NotificationTypeSOSCreated)
	require.Len(t, jobs, 2)
	recipients := map[primitive.ObjectID]bool{}
	for _, job := range jobs {
		recipients[job.RecipientID] = true
		assert.Equal(t, models.NotificationPriorityUrgent, job.Priority)
	}
	assert.True(t, recipients[officerOne.ID])
	assert.True(t, recipients[officerTwo.ID])
}

func TestCreateAlertLinkedToSession(t *testing.T) {
	owner := newStudent("ada")
	f := newSOSFixture(t, owner)

	sessionID := primitive.NewObjectID()
	alert, err := f.service.CreateAlert(context.Background(), owner.ID, &models.CreateSOSRequest{
		SessionID: &sessionID,
		Severity:  models.SOSSeverityCritical,
		Location:  models.NewPoint(-71.09, 42.36, time.Now()),
	})
	require.NoError(t, err)

	require.NotNil(t, alert.SessionID)
	assert.Equal(t, sessionID, *alert.SessionID)
	assert.Equal(t, models.SOSSeverityCritical, alert.Severity)

	linked, err := f.sosRepo.GetBySession(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Len(t, linked, 1)
}

func TestCreateAlertUnknownOwner(t *testing.T) {
	f := newSOSFixture(t)

	_, err := f.service.CreateAlert(context.Background(), primitive.NewObjectID(), &models.CreateSOSRequest{
		Location: models.NewPoint(-71.09, 42.36, time.Now()),
	})
	assert.ErrorIs(t, err, models.ErrUserNotFound)
}

func seedAlert(t *testing.T, f *sosFixture, owner primitive.ObjectID, status models.SOSStatus) *models.SOSAlert {
	t.Helper()

	alert := &models.SOSAlert{
		OwnerID:  owner,
		Status:   status,
		Severity: models.SOSSeverityHigh,
		Location: models.NewPoint(-71.09, 42.36, time.Now()),
	}
	require.NoError(t, f.sosRepo.Create(context.Background(), alert))
	return alert
}

func TestAcknowledgeAlert(t *testing.T) {
	owner := newStudent("ada")
	officer := newStaff("sam")
	f := newSOSFixture(t, owner, officer)
	alert := seedAlert(t, f, owner.ID, models.SOSStatusActive)

	acked, err := f.service.AcknowledgeAlert(context.Background(), alert.ID, officer.ID)
	require.NoError(t, err)

	assert.Equal(t, models.SOSStatusAcknowledged, acked.Status)
	require.NotNil(t, acked.AcknowledgedBy)
	assert.Equal(t, officer.ID, *acked.AcknowledgedBy)
	assert.NotNil(t, acked.AcknowledgedAt)

	// The owner hears back.
	jobs := f.notifier.jobsOfType(models.NotificationTypeSOSAcknowledged)
	require.Len(t, jobs, 1)
	assert.Equal(t, owner.ID, jobs[0].RecipientID)
}

func TestAcknowledgeAlertTwiceRejected(t *testing.T) {
	owner := newStudent("ada")
	officer := newStaff("sam")
	f := newSOSFixture(t, owner, officer)
	alert := seedAlert(t, f, owner.ID, models.SOSStatusAcknowledged)

	_, err := f.service.AcknowledgeAlert(context.Background(), alert.ID, officer.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestResolveAlertFromActive(t *testing.T) {
	owner := newStudent("ada")
	officer := newStaff("sam")
	f := newSOSFixture(t, owner, officer)
	alert := seedAlert(t, f, owner.ID, models.SOSStatusActive)

	resolved, err := f.service.ResolveAlert(context.Background(), alert.ID, officer.ID, &models.ResolveSOSRequest{
		Resolution: "False alarm, owner confirmed safe",
	})
	require.NoError(t, err)

	assert.Equal(t, models.SOSStatusResolved, resolved.Status)
	assert.Equal(t, "False alarm, owner confirmed safe", resolved.Resolution)
	require.NotNil(t, resolved.ResolvedBy)
	assert.Equal(t, officer.ID, *resolved.ResolvedBy)

	jobs := f.notifier.jobsOfType(models.NotificationTypeSOSResolved)
	require.Len(t, jobs, 1)
	assert.Equal(t, owner.ID, jobs[0].RecipientID)
}

func TestResolveAlertFromAcknowledged(t *testing.T) {
	owner := newStudent("ada")
	officer := newStaff("sam")
	f := newSOSFixture(t, owner, officer)
	alert := seedAlert(t, f, owner.ID, models.SOSStatusAcknowledged)

	resolved, err := f.service.ResolveAlert(context.Background(), alert.ID, officer.ID, &models.ResolveSOSRequest{
		Resolution: "Escort arrived",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SOSStatusResolved, resolved.Status)
}

func TestResolveAlertTwiceRejected(t *testing.T) {
	owner := newStudent("ada")
	officer := newStaff("sam")
	f := newSOSFixture(t, owner, officer)
	alert := seedAlert(t, f, owner.ID, models.SOSStatusResolved)

	_, err := f.service.ResolveAlert(context.Background(), alert.ID, officer.ID, &models.ResolveSOSRequest{
		Resolution: "again",
	})
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestAcknowledgeResolvedAlertRejected(t *testing.T) {
	owner := newStudent("ada")
	officer := newStaff("sam")
	f := newSOSFixture(t, owner, officer)
	alert := seedAlert(t, f, owner.ID, models.SOSStatusResolved)

	_, err := f.service.AcknowledgeAlert(context.Background(), alert.ID, officer.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestGetActiveAlertsExcludesResolved(t *testing.T) {
	owner := newStudent("ada")
	f := newSOSFixture(t, owner)
	seedAlert(t, f, owner.ID, models.SOSStatusActive)
	seedAlert(t, f, owner.ID, models.SOSStatusAcknowledged)
	seedAlert(t, f, owner.ID, models.SOSStatusResolved)

	active, err := f.service.GetActiveAlerts(context.Background())
	require.NoError(t, err)
	assert.Len(t, active, 2)
}
