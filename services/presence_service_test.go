package services

import (
	"errors"
	"testing"

	"pso-monitor-service/models"
)

func newPresenceFixture() (*PresenceService, *fakeUserRepo, *fakePresenceRepo, *fakeBroadcast) {
	users := &fakeUserRepo{}
	presence := newFakePresenceRepo()
	broadcast := &fakeBroadcast{}
	svc := NewPresenceService(users, presence, broadcast).(*PresenceService)
	return svc, users, presence, broadcast
}

func TestSetOnlineOpensHistoryAndBroadcasts(t *testing.T) {
	t.Parallel()

	svc, users, presence, broadcast := newPresenceFixture()
	user := users.add(&models.User{Email: "pso@example.com", FullName: "Field User", Role: models.RolePSO})

	if err := svc.SetOnline(KeyByID(user.ID)); err != nil {
		t.Fatalf("SetOnline: %v", err)
	}

	record, err := presence.FindByUserID(user.ID)
	if err != nil {
		t.Fatalf("FindByUserID: %v", err)
	}
	if record.Status != models.PresenceOnline {
		t.Errorf("status = %s, want %s", record.Status, models.PresenceOnline)
	}

	open, _ := presence.CountOpenHistories(user.ID)
	if open != 1 {
		t.Errorf("open histories = %d, want 1", open)
	}

	if len(broadcast.presenceEvents) != 1 {
		t.Fatalf("presence broadcasts = %d, want 1", len(broadcast.presenceEvents))
	}
	if broadcast.presenceEvents[0].Email != user.Email {
		t.Errorf("broadcast email = %s, want %s", broadcast.presenceEvents[0].Email, user.Email)
	}
}

func TestSetOnlineTwiceKeepsSingleOpenHistory(t *testing.T) {
	t.Parallel()

	svc, users, presence, _ := newPresenceFixture()
	user := users.add(&models.User{Email: "pso@example.com", Role: models.RolePSO})

	// Reconnect without a clean disconnect must not accumulate open rows.
	if err := svc.SetOnline(KeyByID(user.ID)); err != nil {
		t.Fatalf("first SetOnline: %v", err)
	}
	if err := svc.SetOnline(KeyByID(user.ID)); err != nil {
		t.Fatalf("second SetOnline: %v", err)
	}

	open, _ := presence.CountOpenHistories(user.ID)
	if open != 1 {
		t.Errorf("open histories = %d, want 1", open)
	}
}

func TestSetOfflineClosesHistory(t *testing.T) {
	t.Parallel()

	svc, users, presence, broadcast := newPresenceFixture()
	user := users.add(&models.User{Email: "pso@example.com", Role: models.RolePSO})

	if err := svc.SetOnline(KeyByID(user.ID)); err != nil {
		t.Fatalf("SetOnline: %v", err)
	}
	if err := svc.SetOffline(KeyByID(user.ID)); err != nil {
		t.Fatalf("SetOffline: %v", err)
	}

	open, _ := presence.CountOpenHistories(user.ID)
	if open != 0 {
		t.Errorf("open histories = %d, want 0", open)
	}

	status, err := svc.GetStatus(KeyByID(user.ID))
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if status != models.PresenceOffline {
		t.Errorf("status = %s, want %s", status, models.PresenceOffline)
	}

	// One broadcast per transition.
	if len(broadcast.presenceEvents) != 2 {
		t.Errorf("presence broadcasts = %d, want 2", len(broadcast.presenceEvents))
	}
}

func TestGetStatusDefaultsToOffline(t *testing.T) {
	t.Parallel()

	svc, users, _, _ := newPresenceFixture()
	user := users.add(&models.User{Email: "pso@example.com", Role: models.RolePSO})

	status, err := svc.GetStatus(KeyByEmail(user.Email))
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if status != models.PresenceOffline {
		t.Errorf("status = %s, want %s", status, models.PresenceOffline)
	}
}

func TestPresenceUnknownUser(t *testing.T) {
	t.Parallel()

	svc, _, _, _ := newPresenceFixture()

	if err := svc.SetOnline(KeyByEmail("missing@example.com")); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("SetOnline error = %v, want ErrUserNotFound", err)
	}
	if err := svc.SetOnline(UserKey{}); !errors.Is(err, ErrEmptyUserKey) {
		t.Errorf("SetOnline empty key error = %v, want ErrEmptyUserKey", err)
	}
}
