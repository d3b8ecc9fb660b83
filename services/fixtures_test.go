package services

import (
	"context"
	"sync"
	"time"

	"pso-monitor-service/models"

	"gorm.io/gorm"
)

// In-memory fakes shared by the service tests. They mirror the repository
// contracts closely enough to drive the services without a database.

type fakeUserRepo struct {
	mu          sync.Mutex
	users       []*models.User
	updateErr   error
	lastUpdate  []string
	lastSupByID *uint
}

func (r *fakeUserRepo) add(user *models.User) *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == 0 {
		user.ID = uint(len(r.users) + 1)
	}
	r.users = append(r.users, user)
	return user
}

func (r *fakeUserRepo) FindByID(id uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *fakeUserRepo) FindByExternalID(externalID string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ExternalID == externalID {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *fakeUserRepo) FindByEmail(email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	normalized := models.NormalizeEmail(email)
	for _, u := range r.users {
		if models.NormalizeEmail(u.Email) == normalized {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *fakeUserRepo) FindByEmails(emails []string) ([]models.User, error) {
	var found []models.User
	for _, email := range emails {
		if u, err := r.FindByEmail(email); err == nil {
			found = append(found, *u)
		}
	}
	return found, nil
}

func (r *fakeUserRepo) FindByRolesWithSupervisor(roles []models.Role) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found []models.User
	for _, u := range r.users {
		for _, role := range roles {
			if u.Role == role {
				found = append(found, *u)
				break
			}
		}
	}
	return found, nil
}

func (r *fakeUserRepo) UpdateSupervisorByEmails(emails []string, supervisorID *uint) (int64, error) {
	if r.updateErr != nil {
		return 0, r.updateErr
	}
	r.mu.Lock()
	r.lastUpdate = emails
	r.lastSupByID = supervisorID
	r.mu.Unlock()

	var updated int64
	for _, email := range emails {
		if u, err := r.FindByEmail(email); err == nil {
			u.SupervisorID = supervisorID
			updated++
		}
	}
	return updated, nil
}

type fakePresenceRepo struct {
	mu        sync.Mutex
	records   map[uint]*models.PresenceRecord
	histories []*models.PresenceHistory
}

func newFakePresenceRepo() *fakePresenceRepo {
	return &fakePresenceRepo{records: make(map[uint]*models.PresenceRecord)}
}

func (r *fakePresenceRepo) UpsertPresence(userID uint, status models.PresenceStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[userID] = &models.PresenceRecord{UserID: userID, Status: status, LastSeenAt: at}
	return nil
}

func (r *fakePresenceRepo) FindByUserID(userID uint) (*models.PresenceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if record, ok := r.records[userID]; ok {
		return record, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakePresenceRepo) OpenHistory(userID uint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.histories = append(r.histories, &models.PresenceHistory{UserID: userID, EnteredAt: at})
	return nil
}

func (r *fakePresenceRepo) CloseOpenHistory(userID uint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.histories {
		if h.UserID == userID && h.ExitedAt == nil {
			exited := at
			h.ExitedAt = &exited
		}
	}
	return nil
}

func (r *fakePresenceRepo) CountOpenHistories(userID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, h := range r.histories {
		if h.UserID == userID && h.ExitedAt == nil {
			count++
		}
	}
	return count, nil
}

type fakeCommandRepo struct {
	mu       sync.Mutex
	commands []*models.PendingCommand
}

func (r *fakeCommandRepo) Create(command *models.PendingCommand) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	command.ID = uint(len(r.commands) + 1)
	r.commands = append(r.commands, command)
	return nil
}

func (r *fakeCommandRepo) MarkPublished(id uint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cmd := range r.commands {
		if cmd.ID == id {
			cmd.Status = models.CommandPublished
			published := at
			cmd.PublishedAt = &published
		}
	}
	return nil
}

func (r *fakeCommandRepo) FindPendingByUserID(userID uint) ([]models.PendingCommand, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pending []models.PendingCommand
	for _, cmd := range r.commands {
		if cmd.UserID == userID && cmd.Status == models.CommandPending {
			pending = append(pending, *cmd)
		}
	}
	return pending, nil
}

type fakeRecordingRepo struct {
	mu       sync.Mutex
	sessions []*models.RecordingSession
}

func (r *fakeRecordingRepo) CreateActive(session *models.RecordingSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session.ID = uint(len(r.sessions) + 1)
	session.Status = models.RecordingActive
	r.sessions = append(r.sessions, session)
	return nil
}

func (r *fakeRecordingRepo) FindByID(id uint) (*models.RecordingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, ErrRecordingNotFound
}

func (r *fakeRecordingRepo) FindActiveByRoom(roomName string) ([]models.RecordingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found []models.RecordingSession
	for _, s := range r.sessions {
		if s.RoomName == roomName && s.Status == models.RecordingActive {
			found = append(found, *s)
		}
	}
	return found, nil
}

func (r *fakeRecordingRepo) FindActiveBySubject(subjectID uint) ([]models.RecordingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found []models.RecordingSession
	for _, s := range r.sessions {
		if s.SubjectID != nil && *s.SubjectID == subjectID && s.Status == models.RecordingActive {
			found = append(found, *s)
		}
	}
	return found, nil
}

func (r *fakeRecordingRepo) FindByUser(userID uint) ([]models.RecordingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found []models.RecordingSession
	for _, s := range r.sessions {
		if s.InitiatorID == userID || (s.SubjectID != nil && *s.SubjectID == userID) {
			found = append(found, *s)
		}
	}
	return found, nil
}

func (r *fakeRecordingRepo) FindActive() ([]models.RecordingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found []models.RecordingSession
	for _, s := range r.sessions {
		if s.Status == models.RecordingActive {
			found = append(found, *s)
		}
	}
	return found, nil
}

func (r *fakeRecordingRepo) Complete(id uint, stoppedAt time.Time, blobURL *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.ID == id && s.Status == models.RecordingActive {
			s.Status = models.RecordingCompleted
			stopped := stoppedAt
			s.StoppedAt = &stopped
			if blobURL != nil {
				s.BlobURL = blobURL
			}
		}
	}
	return nil
}

func (r *fakeRecordingRepo) Fail(id uint, stoppedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.ID == id && s.Status == models.RecordingActive {
			s.Status = models.RecordingFailed
			stopped := stoppedAt
			s.StoppedAt = &stopped
		}
	}
	return nil
}

func (r *fakeRecordingRepo) DeleteByID(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.sessions[:0]
	for _, s := range r.sessions {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	r.sessions = kept
	return nil
}

type fakeTalkRepo struct {
	mu        sync.Mutex
	sessions  []*models.TalkSession
	createErr error
}

func (r *fakeTalkRepo) Create(session *models.TalkSession) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	session.ID = uint(len(r.sessions) + 1)
	r.sessions = append(r.sessions, session)
	return nil
}

func (r *fakeTalkRepo) FindByIDWithPso(id uint) (*models.TalkSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, ErrTalkSessionNotFound
}

func (r *fakeTalkRepo) FindActiveByPsoID(psoID uint) ([]models.TalkSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found []models.TalkSession
	for _, s := range r.sessions {
		if s.PsoID == psoID && s.StoppedAt == nil {
			found = append(found, *s)
		}
	}
	return found, nil
}

func (r *fakeTalkRepo) FindActiveBySupervisorID(supervisorID uint) ([]models.TalkSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found []models.TalkSession
	for _, s := range r.sessions {
		if s.SupervisorID == supervisorID && s.StoppedAt == nil {
			found = append(found, *s)
		}
	}
	return found, nil
}

func (r *fakeTalkRepo) Stop(id uint, reason models.TalkStopReason, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.ID == id && s.StoppedAt == nil {
			stopped := at
			s.StoppedAt = &stopped
			stopReason := reason
			s.StopReason = &stopReason
		}
	}
	return nil
}

type fakeStreamingRepo struct {
	mu       sync.Mutex
	sessions []*models.StreamingSession
}

func (r *fakeStreamingRepo) Create(session *models.StreamingSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session.ID = uint(len(r.sessions) + 1)
	session.Status = models.StreamingActive
	r.sessions = append(r.sessions, session)
	return nil
}

func (r *fakeStreamingRepo) FindActiveByUserID(userID uint) (*models.StreamingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.UserID == userID && s.Status == models.StreamingActive {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeStreamingRepo) StopActiveByUserID(userID uint, reason models.StreamingStopReason, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stopped int64
	for _, s := range r.sessions {
		if s.UserID == userID && s.Status == models.StreamingActive {
			s.Status = models.StreamingStopped
			stoppedAt := at
			s.StoppedAt = &stoppedAt
			stopReason := reason
			s.StopReason = &stopReason
			stopped++
		}
	}
	return stopped, nil
}

type broadcastRecord struct {
	Channel string
	Payload interface{}
}

type fakeBroadcast struct {
	mu                sync.Mutex
	presenceEvents    []PresenceBroadcast
	messages          []broadcastRecord
	supervisorChanges []SupervisorChangeBroadcast
	syncCalls         int
	messageErr        error
	syncErr           error
}

func (b *fakeBroadcast) BroadcastPresence(payload PresenceBroadcast) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.presenceEvents = append(b.presenceEvents, payload)
	return nil
}

func (b *fakeBroadcast) BroadcastMessage(channelKey string, payload interface{}) error {
	if b.messageErr != nil {
		return b.messageErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, broadcastRecord{Channel: channelKey, Payload: payload})
	return nil
}

func (b *fakeBroadcast) BroadcastSupervisorChange(payload SupervisorChangeBroadcast) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.supervisorChanges = append(b.supervisorChanges, payload)
	return nil
}

func (b *fakeBroadcast) SyncAllUsersWithDatabase() error {
	if b.syncErr != nil {
		return b.syncErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.syncCalls++
	return nil
}

func (b *fakeBroadcast) messagesFor(channel string) []broadcastRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	var found []broadcastRecord
	for _, m := range b.messages {
		if m.Channel == channel {
			found = append(found, m)
		}
	}
	return found
}

type sentMessage struct {
	Group   string
	Payload interface{}
}

type fakeMessaging struct {
	mu         sync.Mutex
	sent       []sentMessage
	failGroups map[string]error
}

func (m *fakeMessaging) Connect() error { return nil }

func (m *fakeMessaging) Disconnect() {}

func (m *fakeMessaging) SendToGroup(group string, payload interface{}) error {
	if err, ok := m.failGroups[group]; ok {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{Group: group, Payload: payload})
	return nil
}

func (m *fakeMessaging) sentTo(group string) []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found []sentMessage
	for _, s := range m.sent {
		if s.Group == group {
			found = append(found, s)
		}
	}
	return found
}

type fakeEgress struct {
	mu         sync.Mutex
	startOut   *EgressStartResult
	startErr   error
	stopOut    *EgressStopResult
	stopErr    error
	infoOut    *EgressInfo
	infoErr    error
	stopCalls  []string
	startCalls []string
	infoCalls  []string
}

func (e *fakeEgress) StartEgress(ctx context.Context, roomName, label string) (*EgressStartResult, error) {
	e.mu.Lock()
	e.startCalls = append(e.startCalls, roomName)
	e.mu.Unlock()
	return e.startOut, e.startErr
}

func (e *fakeEgress) StopEgress(ctx context.Context, egressID string) (*EgressStopResult, error) {
	e.mu.Lock()
	e.stopCalls = append(e.stopCalls, egressID)
	e.mu.Unlock()
	return e.stopOut, e.stopErr
}

func (e *fakeEgress) GetEgressInfo(ctx context.Context, egressID string) (*EgressInfo, error) {
	e.mu.Lock()
	e.infoCalls = append(e.infoCalls, egressID)
	e.mu.Unlock()
	return e.infoOut, e.infoErr
}

type fakeStorage struct {
	mu           sync.Mutex
	deletedPaths []string
	deleteFound  bool
	deleteErr    error
}

func (s *fakeStorage) DeleteRecordingByPath(ctx context.Context, path string) (bool, error) {
	if s.deleteErr != nil {
		return false, s.deleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletedPaths = append(s.deletedPaths, path)
	return s.deleteFound, nil
}

func (s *fakeStorage) BuildHttpsURL(path string) string {
	return "https://blobs.example.com/recordings/" + path
}

func (s *fakeStorage) GenerateReadSasURL(path string, minutes int) (string, error) {
	return s.BuildHttpsURL(path) + "?sig=test", nil
}

type nopLogger struct {
	mu      sync.Mutex
	entries []error
}

func (l *nopLogger) LogError(err error, context map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, err)
}
