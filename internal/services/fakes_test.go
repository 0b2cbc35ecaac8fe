package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"campusguard/internal/config"
	"campusguard/internal/models"
	"campusguard/internal/utils"
	"campusguard/pkg/email"
	"campusguard/pkg/logger"
	"campusguard/pkg/push"
	"campusguard/pkg/sms"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func testLogger() *logger.Logger {
	log, _ := logger.NewLogger(&logger.Config{
		Level:  logger.ErrorLevel,
		Format: "text",
		Output: "stderr",
	})
	return log
}

func testConfig() *config.Config {
	return &config.Config{
		SMS: &config.SMSConfig{DefaultFrom: "CampusGuard"},
		Safety: &config.SafetyConfig{
			CheckInInterval:           5 * time.Minute,
			GracePeriod:               2 * time.Minute,
			SchedulerTick:             5 * time.Second,
			SessionTTL:                4 * time.Hour,
			GrantTTL:                  4 * time.Hour,
			MaxHistoryPoints:          5,
			NotificationRetryAttempts: 3,
			EscalationDedupTTL:        24 * time.Hour,
		},
	}
}

// fakeSessionRepo mimics the Mongo repository's concurrency contract in
// memory: the partial unique index on non-terminal sessions and the
// version-guarded status CAS.
type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[primitive.ObjectID]*models.SafetySession
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[primitive.ObjectID]*models.SafetySession)}
}

func copySession(s *models.SafetySession) *models.SafetySession {
	out := *s
	out.LocationHistory = append([]models.Location(nil), s.LocationHistory...)
	out.SharingGrants = append([]models.SharingGrant(nil), s.SharingGrants...)
	return &out
}

func (r *fakeSessionRepo) Create(ctx context.Context, session *models.SafetySession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.sessions {
		if existing.OwnerID == session.OwnerID && existing.Status.IsOpen() {
			return models.ErrSessionConflict
		}
	}

	if session.ID.IsZero() {
		session.ID = primitive.NewObjectID()
	}
	session.Version = 1
	session.CreatedAt = time.Now()
	session.UpdatedAt = session.CreatedAt

	r.sessions[session.ID] = copySession(session)
	return nil
}

func (r *fakeSessionRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.SafetySession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	return copySession(session), nil
}

func (r *fakeSessionRepo) GetActiveByOwner(ctx context.Context, ownerID primitive.ObjectID) (*models.SafetySession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, session := range r.sessions {
		if session.OwnerID == ownerID && session.Status.IsOpen() {
			return copySession(session), nil
		}
	}
	return nil, models.ErrSessionNotFound
}

func (r *fakeSessionRepo) Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return models.ErrSessionNotFound
	}
	session.UpdatedAt = time.Now()
	return nil
}

func (r *fakeSessionRepo) CompareAndSetStatus(ctx context.Context, id primitive.ObjectID, version int64, from []models.SessionStatus, to models.SessionStatus, updates map[string]interface{}) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return false, nil
	}
	if session.Version != version {
		return false, nil
	}

	matched := false
	for _, status := range from {
		if session.Status == status {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}

	session.Status = to
	session.Version++
	session.UpdatedAt = time.Now()
	applySessionUpdates(session, updates)
	return true, nil
}

func applySessionUpdates(session *models.SafetySession, updates map[string]interface{}) {
	for key, value := range updates {
		switch key {
		case "check_in_deadline_at":
			session.CheckInDeadlineAt = asTimePtr(value)
		case "next_check_in_at":
			session.NextCheckInAt = asTimePtr(value)
		case "last_check_in_at":
			session.LastCheckInAt = asTimePtr(value)
		case "check_ins_issued":
			if n, ok := value.(int); ok {
				session.CheckInsIssued = n
			}
		}
	}
}

func asTimePtr(value interface{}) *time.Time {
	if value == nil {
		return nil
	}
	if t, ok := value.(time.Time); ok {
		return &t
	}
	if t, ok := value.(*time.Time); ok {
		return t
	}
	return nil
}

func (r *fakeSessionRepo) AppendLocation(ctx context.Context, id primitive.ObjectID, point models.Location, maxPoints int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return models.ErrSessionNotFound
	}
	session.MaxHistoryPoints = maxPoints
	session.AppendLocation(point)
	session.UpdatedAt = time.Now()
	return nil
}

func (r *fakeSessionRepo) AddSharingGrant(ctx context.Context, id primitive.ObjectID, grant models.SharingGrant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return models.ErrSessionNotFound
	}
	session.SharingGrants = append(session.SharingGrants, grant)
	session.UpdatedAt = time.Now()
	return nil
}

func (r *fakeSessionRepo) RevokeSharingGrant(ctx context.Context, id primitive.ObjectID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return models.ErrSessionNotFound
	}
	for i := range session.SharingGrants {
		if session.SharingGrants[i].Token == token {
			session.SharingGrants[i].Revoked = true
			session.UpdatedAt = time.Now()
			return nil
		}
	}
	return models.ErrGrantNotFound
}

func (r *fakeSessionRepo) FindCheckInDue(ctx context.Context, now time.Time) ([]*models.SafetySession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []*models.SafetySession
	for _, session := range r.sessions {
		if session.Status == models.SessionStatusActive &&
			session.NextCheckInAt != nil && !session.NextCheckInAt.After(now) {
			due = append(due, copySession(session))
		}
	}
	return due, nil
}

func (r *fakeSessionRepo) FindCheckInOverdue(ctx context.Context, now time.Time) ([]*models.SafetySession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var overdue []*models.SafetySession
	for _, session := range r.sessions {
		if session.Status == models.SessionStatusCheckInDue &&
			session.CheckInDeadlineAt != nil && !session.CheckInDeadlineAt.After(now) {
			overdue = append(overdue, copySession(session))
		}
	}
	return overdue, nil
}

func (r *fakeSessionRepo) FindExpired(ctx context.Context, now time.Time) ([]*models.SafetySession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []*models.SafetySession
	for _, session := range r.sessions {
		monitored := session.Status == models.SessionStatusActive ||
			session.Status == models.SessionStatusCheckInDue
		if monitored && session.CheckInsIssued == 0 && !session.ExpiresAt.After(now) {
			expired = append(expired, copySession(session))
		}
	}
	return expired, nil
}

func (r *fakeSessionRepo) GetByStatus(ctx context.Context, status models.SessionStatus, params *utils.PaginationParams) ([]*models.SafetySession, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.SafetySession
	for _, session := range r.sessions {
		if session.Status == status {
			out = append(out, copySession(session))
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeSessionRepo) GetByOwner(ctx context.Context, ownerID primitive.ObjectID, params *utils.PaginationParams) ([]*models.SafetySession, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.SafetySession
	for _, session := range r.sessions {
		if session.OwnerID == ownerID {
			out = append(out, copySession(session))
		}
	}
	return out, int64(len(out)), nil
}

// fakeCheckInRepo enforces the write-once response contract and the
// one-pending-check-in-per-session invariant.
type fakeCheckInRepo struct {
	mu       sync.Mutex
	checkIns map[primitive.ObjectID]*models.CheckIn
}

func newFakeCheckInRepo() *fakeCheckInRepo {
	return &fakeCheckInRepo{checkIns: make(map[primitive.ObjectID]*models.CheckIn)}
}

func copyCheckIn(c *models.CheckIn) *models.CheckIn {
	out := *c
	return &out
}

func (r *fakeCheckInRepo) Create(ctx context.Context, checkIn *models.CheckIn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.checkIns {
		if existing.SessionID == checkIn.SessionID && existing.Open() {
			return errors.New("duplicate pending check-in")
		}
	}

	if checkIn.ID.IsZero() {
		checkIn.ID = primitive.NewObjectID()
	}
	if checkIn.Response == "" {
		checkIn.Response = models.CheckInResponsePending
	}
	checkIn.CreatedAt = time.Now()
	checkIn.UpdatedAt = checkIn.CreatedAt

	r.checkIns[checkIn.ID] = copyCheckIn(checkIn)
	return nil
}

func (r *fakeCheckInRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.CheckIn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	checkIn, ok := r.checkIns[id]
	if !ok {
		return nil, models.ErrCheckInNotFound
	}
	return copyCheckIn(checkIn), nil
}

func (r *fakeCheckInRepo) GetOpenBySession(ctx context.Context, sessionID primitive.ObjectID) (*models.CheckIn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, checkIn := range r.checkIns {
		if checkIn.SessionID == sessionID && checkIn.Open() {
			return copyCheckIn(checkIn), nil
		}
	}
	return nil, nil
}

func (r *fakeCheckInRepo) GetLatestBySession(ctx context.Context, sessionID primitive.ObjectID) (*models.CheckIn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var latest *models.CheckIn
	for _, checkIn := range r.checkIns {
		if checkIn.SessionID != sessionID {
			continue
		}
		if latest == nil || checkIn.ScheduledAt.After(latest.ScheduledAt) {
			latest = checkIn
		}
	}
	if latest == nil {
		return nil, nil
	}
	return copyCheckIn(latest), nil
}

func (r *fakeCheckInRepo) SetResponse(ctx context.Context, id primitive.ObjectID, response models.CheckInResponse, respondedAt *time.Time, location *models.Location) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	checkIn, ok := r.checkIns[id]
	if !ok || !checkIn.Open() {
		return false, nil
	}

	checkIn.Response = response
	checkIn.RespondedAt = respondedAt
	checkIn.Location = location
	checkIn.UpdatedAt = time.Now()
	return true, nil
}

func (r *fakeCheckInRepo) ListBySession(ctx context.Context, sessionID primitive.ObjectID) ([]*models.CheckIn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.CheckIn
	for _, checkIn := range r.checkIns {
		if checkIn.SessionID == sessionID {
			out = append(out, copyCheckIn(checkIn))
		}
	}
	return out, nil
}

func (r *fakeCheckInRepo) CountBySession(ctx context.Context, sessionID primitive.ObjectID) (int64, error) {
	checkIns, _ := r.ListBySession(ctx, sessionID)
	return int64(len(checkIns)), nil
}

type fakeSOSRepo struct {
	mu     sync.Mutex
	alerts map[primitive.ObjectID]*models.SOSAlert
}

func newFakeSOSRepo() *fakeSOSRepo {
	return &fakeSOSRepo{alerts: make(map[primitive.ObjectID]*models.SOSAlert)}
}

func copyAlert(a *models.SOSAlert) *models.SOSAlert {
	out := *a
	return &out
}

func (r *fakeSOSRepo) Create(ctx context.Context, alert *models.SOSAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if alert.ID.IsZero() {
		alert.ID = primitive.NewObjectID()
	}
	if alert.Status == "" {
		alert.Status = models.SOSStatusActive
	}
	alert.CreatedAt = time.Now()
	alert.UpdatedAt = alert.CreatedAt

	r.alerts[alert.ID] = copyAlert(alert)
	return nil
}

func (r *fakeSOSRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.SOSAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	alert, ok := r.alerts[id]
	if !ok {
		return nil, models.ErrAlertNotFound
	}
	return copyAlert(alert), nil
}

func (r *fakeSOSRepo) CompareAndSetStatus(ctx context.Context, id primitive.ObjectID, from []models.SOSStatus, to models.SOSStatus, updates map[string]interface{}) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	alert, ok := r.alerts[id]
	if !ok {
		return false, nil
	}

	matched := false
	for _, status := range from {
		if alert.Status == status {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}

	alert.Status = to
	alert.UpdatedAt = time.Now()
	for key, value := range updates {
		switch key {
		case "acknowledged_by":
			if oid, ok := value.(primitive.ObjectID); ok {
				alert.AcknowledgedBy = &oid
			}
		case "acknowledged_at":
			alert.AcknowledgedAt = asTimePtr(value)
		case "resolved_by":
			if oid, ok := value.(primitive.ObjectID); ok {
				alert.ResolvedBy = &oid
			}
		case "resolved_at":
			alert.ResolvedAt = asTimePtr(value)
		case "resolution":
			if s, ok := value.(string); ok {
				alert.Resolution = s
			}
		}
	}
	return true, nil
}

func (r *fakeSOSRepo) GetActive(ctx context.Context) ([]*models.SOSAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.SOSAlert
	for _, alert := range r.alerts {
		if alert.Status != models.SOSStatusResolved {
			out = append(out, copyAlert(alert))
		}
	}
	return out, nil
}

func (r *fakeSOSRepo) GetByStatus(ctx context.Context, status models.SOSStatus, params *utils.PaginationParams) ([]*models.SOSAlert, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.SOSAlert
	for _, alert := range r.alerts {
		if alert.Status == status {
			out = append(out, copyAlert(alert))
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeSOSRepo) GetByOwner(ctx context.Context, ownerID primitive.ObjectID, params *utils.PaginationParams) ([]*models.SOSAlert, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.SOSAlert
	for _, alert := range r.alerts {
		if alert.OwnerID == ownerID {
			out = append(out, copyAlert(alert))
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeSOSRepo) GetBySession(ctx context.Context, sessionID primitive.ObjectID) ([]*models.SOSAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.SOSAlert
	for _, alert := range r.alerts {
		if alert.SessionID != nil && *alert.SessionID == sessionID {
			out = append(out, copyAlert(alert))
		}
	}
	return out, nil
}

type fakeNotificationRepo struct {
	mu   sync.Mutex
	jobs map[primitive.ObjectID]*models.NotificationJob
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{jobs: make(map[primitive.ObjectID]*models.NotificationJob)}
}

func (r *fakeNotificationRepo) Create(ctx context.Context, job *models.NotificationJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if job.ID.IsZero() {
		job.ID = primitive.NewObjectID()
	}
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt

	stored := *job
	stored.ChannelResults = make(map[models.NotificationChannel]*models.ChannelResult)
	r.jobs[job.ID] = &stored
	return nil
}

func (r *fakeNotificationRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.NotificationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	out := *job
	return &out, nil
}

func (r *fakeNotificationRepo) SetChannelResult(ctx context.Context, id primitive.ObjectID, channel models.NotificationChannel, result *models.ChannelResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return models.ErrUserNotFound
	}
	job.ChannelResults[channel] = result
	return nil
}

func (r *fakeNotificationRepo) MarkRead(ctx context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return models.ErrUserNotFound
	}
	now := time.Now()
	job.ReadAt = &now
	return nil
}

func (r *fakeNotificationRepo) GetByRecipient(ctx context.Context, recipientID primitive.ObjectID, params *utils.PaginationParams) ([]*models.NotificationJob, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.NotificationJob
	for _, job := range r.jobs {
		if job.RecipientID == recipientID {
			copied := *job
			out = append(out, &copied)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeNotificationRepo) GetWithFailedChannels(ctx context.Context, params *utils.PaginationParams) ([]*models.NotificationJob, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.NotificationJob
	for _, job := range r.jobs {
		if job.HasFailedChannels() {
			copied := *job
			out = append(out, &copied)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeNotificationRepo) resultsFor(id primitive.ObjectID) map[models.NotificationChannel]*models.ChannelResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil
	}
	out := make(map[models.NotificationChannel]*models.ChannelResult, len(job.ChannelResults))
	for channel, result := range job.ChannelResults {
		out[channel] = result
	}
	return out
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[primitive.ObjectID]*models.User)}
	for _, user := range users {
		repo.add(user)
	}
	return repo
}

func (r *fakeUserRepo) add(user *models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	r.users[user.ID] = user
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	out := *user
	return &out, nil
}

func (r *fakeUserRepo) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.User
	for _, id := range ids {
		if user, ok := r.users[id]; ok {
			copied := *user
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) GetStaff(ctx context.Context) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.User
	for _, user := range r.users {
		if user.Role == models.UserRoleStaff {
			copied := *user
			out = append(out, &copied)
		}
	}
	return out, nil
}

// recordingNotifier captures dispatched jobs. DispatchAsync is synchronous
// here so assertions never race the fan-out.
type recordingNotifier struct {
	mu   sync.Mutex
	jobs []*models.NotificationJob
}

func (n *recordingNotifier) Dispatch(ctx context.Context, job *models.NotificationJob) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.jobs = append(n.jobs, job)
	return nil
}

func (n *recordingNotifier) DispatchAsync(job *models.NotificationJob) {
	_ = n.Dispatch(context.Background(), job)
}

func (n *recordingNotifier) MarkRead(ctx context.Context, id primitive.ObjectID, recipientID primitive.ObjectID) error {
	return nil
}

func (n *recordingNotifier) GetHistory(ctx context.Context, recipientID primitive.ObjectID, params *utils.PaginationParams) ([]*models.NotificationJob, int64, error) {
	return nil, 0, nil
}

func (n *recordingNotifier) GetFailed(ctx context.Context, params *utils.PaginationParams) ([]*models.NotificationJob, int64, error) {
	return nil, 0, nil
}

func (n *recordingNotifier) dispatched() []*models.NotificationJob {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*models.NotificationJob(nil), n.jobs...)
}

func (n *recordingNotifier) jobsOfType(t models.NotificationType) []*models.NotificationJob {
	var out []*models.NotificationJob
	for _, job := range n.dispatched() {
		if job.Type == t {
			out = append(out, job)
		}
	}
	return out
}

type recordingEscalator struct {
	mu    sync.Mutex
	calls []EscalationTrigger
}

func (e *recordingEscalator) Escalate(ctx context.Context, session *models.SafetySession, trigger EscalationTrigger) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, trigger)
	return nil
}

func (e *recordingEscalator) triggers() []EscalationTrigger {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]EscalationTrigger(nil), e.calls...)
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	points []models.Location
}

func (b *recordingBroadcaster) Start(ctx context.Context) {}

func (b *recordingBroadcaster) PublishLocation(ctx context.Context, session *models.SafetySession, point models.Location) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.points = append(b.points, point)
	return nil
}

func (b *recordingBroadcaster) published() []models.Location {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Location(nil), b.points...)
}

// fakeDedup is an in-memory SetNX.
type fakeDedup struct {
	mu   sync.Mutex
	keys map[string]bool
	err  error
}

func newFakeDedup() *fakeDedup {
	return &fakeDedup{keys: make(map[string]bool)}
}

func (d *fakeDedup) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.err != nil {
		return false, d.err
	}
	if d.keys[key] {
		return false, nil
	}
	d.keys[key] = true
	return true, nil
}

// Stub delivery providers.

type stubPushProvider struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (p *stubPushProvider) SendNotification(ctx context.Context, request *push.NotificationRequest) (*push.NotificationResponse, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	if p.err != nil {
		return nil, p.err
	}
	return &push.NotificationResponse{Success: true, Token: request.Token}, nil
}

func (p *stubPushProvider) SendBulkNotifications(ctx context.Context, requests []*push.NotificationRequest) ([]*push.NotificationResponse, error) {
	var out []*push.NotificationResponse
	for _, request := range requests {
		response, err := p.SendNotification(ctx, request)
		if err != nil {
			response = &push.NotificationResponse{Error: err.Error(), Token: request.Token}
		}
		out = append(out, response)
	}
	return out, nil
}

func (p *stubPushProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type stubSMSProvider struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (p *stubSMSProvider) SendSMS(ctx context.Context, request *sms.SMSRequest) (*sms.SMSResponse, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	if p.err != nil {
		return nil, p.err
	}
	return &sms.SMSResponse{Status: "sent"}, nil
}

func (p *stubSMSProvider) SendBulkSMS(ctx context.Context, requests []*sms.SMSRequest) ([]*sms.SMSResponse, error) {
	var out []*sms.SMSResponse
	for _, request := range requests {
		response, err := p.SendSMS(ctx, request)
		if err != nil {
			response = &sms.SMSResponse{Error: err.Error()}
		}
		out = append(out, response)
	}
	return out, nil
}

type stubEmailProvider struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (p *stubEmailProvider) SendEmail(ctx context.Context, request *email.EmailRequest) (*email.EmailResponse, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	if p.err != nil {
		return nil, p.err
	}
	return &email.EmailResponse{Success: true, To: request.To}, nil
}

func (p *stubEmailProvider) SendBulkEmails(ctx context.Context, requests []*email.EmailRequest) ([]*email.EmailResponse, error) {
	var out []*email.EmailResponse
	for _, request := range requests {
		response, err := p.SendEmail(ctx, request)
		if err != nil {
			response = &email.EmailResponse{Error: err.Error(), To: request.To}
		}
		out = append(out, response)
	}
	return out, nil
}

// Test data builders.

func newStudent(name string) *models.User {
	return &models.User{
		ID:        primitive.NewObjectID(),
		Name:      name,
		Email:     name + "@campus.test",
		Phone:     "+15550100",
		Role:      models.UserRoleStudent,
		PushToken: "token-" + name,
	}
}

func newStaff(name string) *models.User {
	user := newStudent(name)
	user.Role = models.UserRoleStaff
	return user
}

func seedSession(repo *fakeSessionRepo, owner primitive.ObjectID, status models.SessionStatus, mutate func(*models.SafetySession)) *models.SafetySession {
	now := time.Now()
	next := now.Add(5 * time.Minute)
	session := &models.SafetySession{
		ID:                     primitive.NewObjectID(),
		OwnerID:                owner,
		Mode:                   models.SessionModeJourney,
		Status:                 status,
		StartedAt:              now,
		ExpiresAt:              now.Add(4 * time.Hour),
		CheckInIntervalSeconds: 300,
		GraceSeconds:           120,
		NextCheckInAt:          &next,
		MaxHistoryPoints:       5,
		Version:                1,
	}
	if mutate != nil {
		mutate(session)
	}

	repo.mu.Lock()
	repo.sessions[session.ID] = copySession(session)
	repo.mu.Unlock()
	return session
}
