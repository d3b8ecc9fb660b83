package services

import (
	"errors"
	"testing"
	"time"

	"pso-monitor-service/models"
)

type supervisorFixture struct {
	svc        InterfaceSupervisorService
	users      *fakeUserRepo
	messaging  *fakeMessaging
	broadcast  *fakeBroadcast
	supervisor *models.User
	psoA       *models.User
	psoB       *models.User
}

func newSupervisorFixture() *supervisorFixture {
	users := &fakeUserRepo{}
	messaging := &fakeMessaging{failGroups: map[string]error{}}
	broadcast := &fakeBroadcast{}
	management := NewUserManagementService(users)
	svc := NewSupervisorService(users, management, messaging, broadcast, &nopLogger{})

	supervisor := users.add(&models.User{Email: "sup@example.com", FullName: "Sup Visor", ExternalID: "sup-001", Role: models.RoleSupervisor, Status: models.UserStatusActive})
	psoA := users.add(&models.User{Email: "a@example.com", FullName: "Pso A", Role: models.RolePSO, Status: models.UserStatusActive})
	psoB := users.add(&models.User{Email: "b@example.com", FullName: "Pso B", Role: models.RolePSO, Status: models.UserStatusActive})
	return &supervisorFixture{
		svc:        svc,
		users:      users,
		messaging:  messaging,
		broadcast:  broadcast,
		supervisor: supervisor,
		psoA:       psoA,
		psoB:       psoB,
	}
}

func assignment(f *supervisorFixture, emails ...string) *models.SupervisorAssignment {
	return &models.SupervisorAssignment{
		UserEmails:         emails,
		NewSupervisorEmail: &f.supervisor.Email,
		ChangeType:         models.SupervisorAssign,
		Timestamp:          time.Now(),
	}
}

func TestValidateAssignmentRejectsBadInput(t *testing.T) {
	t.Parallel()

	f := newSupervisorFixture()

	cases := []struct {
		name  string
		setup func() *models.SupervisorAssignment
		field string
	}{
		{
			name: "unknown change type",
			setup: func() *models.SupervisorAssignment {
				a := assignment(f, f.psoA.Email)
				a.ChangeType = "REPLACE"
				return a
			},
			field: "change_type",
		},
		{
			name: "empty target list",
			setup: func() *models.SupervisorAssignment {
				return assignment(f)
			},
			field: "user_emails",
		},
		{
			name: "malformed email",
			setup: func() *models.SupervisorAssignment {
				return assignment(f, "not-an-email")
			},
			field: "user_emails",
		},
		{
			name: "assign without supervisor",
			setup: func() *models.SupervisorAssignment {
				a := assignment(f, f.psoA.Email)
				a.NewSupervisorEmail = nil
				return a
			},
			field: "new_supervisor_email",
		},
		{
			name: "supervisor is not a supervisor role",
			setup: func() *models.SupervisorAssignment {
				a := assignment(f, f.psoA.Email)
				a.NewSupervisorEmail = &f.psoB.Email
				return a
			},
			field: "new_supervisor_email",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := f.svc.ValidateAssignment(tc.setup())
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
			if validationErr.Field != tc.field {
				t.Errorf("field = %q, want %q", validationErr.Field, tc.field)
			}
		})
	}
}

func TestValidateAssignmentRejectsTerminatedTarget(t *testing.T) {
	t.Parallel()

	f := newSupervisorFixture()
	gone := f.users.add(&models.User{Email: "gone@example.com", Role: models.RolePSO, Status: models.UserStatusTerminated})

	err := f.svc.ValidateAssignment(assignment(f, f.psoA.Email, gone.Email))
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if validationErr.Field != "user_emails" {
		t.Errorf("field = %q, want user_emails", validationErr.Field)
	}
}

func TestChangeSupervisorAssignsAndNotifies(t *testing.T) {
	t.Parallel()

	f := newSupervisorFixture()

	result, err := f.svc.ChangeSupervisor(assignment(f, f.psoA.Email, f.psoB.Email))
	if err != nil {
		t.Fatalf("ChangeSupervisor: %v", err)
	}
	if result.UpdatedCount != 2 {
		t.Errorf("updated = %d, want 2", result.UpdatedCount)
	}
	if len(result.FailedEmails) != 0 {
		t.Errorf("failed emails = %v, want none", result.FailedEmails)
	}

	for _, pso := range []*models.User{f.psoA, f.psoB} {
		if pso.SupervisorID == nil || *pso.SupervisorID != f.supervisor.ID {
			t.Errorf("%s supervisor = %v, want %d", pso.Email, pso.SupervisorID, f.supervisor.ID)
		}
		if sent := f.messaging.sentTo(CommandGroup(pso.Email)); len(sent) != 1 {
			t.Errorf("notifications for %s = %d, want 1", pso.Email, len(sent))
		}
	}

	if len(f.broadcast.supervisorChanges) != 1 {
		t.Fatalf("supervisor broadcasts = %d, want 1", len(f.broadcast.supervisorChanges))
	}
	change := f.broadcast.supervisorChanges[0]
	if change.NewSupervisorEmail == nil || *change.NewSupervisorEmail != f.supervisor.Email {
		t.Errorf("broadcast supervisor = %v", change.NewSupervisorEmail)
	}
}

func TestChangeSupervisorRecordsNotifyFailures(t *testing.T) {
	t.Parallel()

	f := newSupervisorFixture()
	f.messaging.failGroups[CommandGroup(f.psoB.Email)] = errors.New("no subscribers")

	result, err := f.svc.ChangeSupervisor(assignment(f, f.psoA.Email, f.psoB.Email))
	if err != nil {
		t.Fatalf("ChangeSupervisor: %v", err)
	}
	if result.UpdatedCount != 2 {
		t.Errorf("updated = %d, want 2", result.UpdatedCount)
	}
	if len(result.FailedEmails) != 1 || result.FailedEmails[0] != f.psoB.Email {
		t.Errorf("failed emails = %v, want [%s]", result.FailedEmails, f.psoB.Email)
	}
	// The database update is authoritative, the broadcast still goes out.
	if len(f.broadcast.supervisorChanges) != 1 {
		t.Errorf("supervisor broadcasts = %d, want 1", len(f.broadcast.supervisorChanges))
	}
}

func TestChangeSupervisorUnassignClearsLink(t *testing.T) {
	t.Parallel()

	f := newSupervisorFixture()
	if _, err := f.svc.ChangeSupervisor(assignment(f, f.psoA.Email)); err != nil {
		t.Fatalf("assign: %v", err)
	}

	unassign := &models.SupervisorAssignment{
		UserEmails: []string{f.psoA.Email},
		ChangeType: models.SupervisorUnassign,
		Timestamp:  time.Now(),
	}
	result, err := f.svc.ChangeSupervisor(unassign)
	if err != nil {
		t.Fatalf("unassign: %v", err)
	}
	if result.UpdatedCount != 1 {
		t.Errorf("updated = %d, want 1", result.UpdatedCount)
	}
	if f.psoA.SupervisorID != nil {
		t.Errorf("supervisor link = %v, want nil", f.psoA.SupervisorID)
	}

	change := f.broadcast.supervisorChanges[len(f.broadcast.supervisorChanges)-1]
	if change.NewSupervisorEmail != nil {
		t.Errorf("unassign broadcast supervisor = %v, want nil", change.NewSupervisorEmail)
	}
}

func TestChangeSupervisorSurfacesUpdateFailure(t *testing.T) {
	t.Parallel()

	f := newSupervisorFixture()
	f.users.updateErr = errors.New("deadlock")

	_, err := f.svc.ChangeSupervisor(assignment(f, f.psoA.Email))
	var supervisorErr *SupervisorError
	if !errors.As(err, &supervisorErr) {
		t.Fatalf("error = %v, want SupervisorError", err)
	}
}

func TestListMonitoredUsersReturnsPsos(t *testing.T) {
	t.Parallel()

	f := newSupervisorFixture()
	management := NewUserManagementService(f.users)

	monitored, err := management.ListMonitoredUsers()
	if err != nil {
		t.Fatalf("ListMonitoredUsers: %v", err)
	}
	if len(monitored) != 2 {
		t.Errorf("monitored = %d, want 2", len(monitored))
	}
	for _, user := range monitored {
		if user.Role != models.RolePSO {
			t.Errorf("unexpected role %s in monitored list", user.Role)
		}
	}
}
