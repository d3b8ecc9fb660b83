package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"pso-monitor-service/models"
)

type recordingFixture struct {
	svc        *RecordingService
	users      *fakeUserRepo
	recordings *fakeRecordingRepo
	egress     *fakeEgress
	storage    *fakeStorage
	initiator  *models.User
	subject    *models.User
}

func newRecordingFixture() *recordingFixture {
	users := &fakeUserRepo{}
	recordings := &fakeRecordingRepo{}
	egress := &fakeEgress{
		startOut: &EgressStartResult{EgressID: "EG_test", ObjectKey: "recordings/pso-example-com.mp4"},
		stopOut:  &EgressStopResult{},
	}
	storage := &fakeStorage{deleteFound: true}
	svc := NewRecordingService(recordings, users, egress, storage, &nopLogger{}).(*RecordingService)
	// Keep the startup probe out of the way unless a test opts in.
	svc.probeDelay = time.Hour

	initiator := users.add(&models.User{Email: "boss@example.com", ExternalID: "sup-001", FullName: "Boss", Role: models.RoleSupervisor})
	subject := users.add(&models.User{Email: "PSO@Example.com", FullName: "Pso One", Role: models.RolePSO})
	return &recordingFixture{
		svc:        svc,
		users:      users,
		recordings: recordings,
		egress:     egress,
		storage:    storage,
		initiator:  initiator,
		subject:    subject,
	}
}

func (f *recordingFixture) start(t *testing.T) *RecordingStartResult {
	t.Helper()
	result, err := f.svc.StartRecording(context.Background(), KeyByExternalID(f.initiator.ExternalID), f.subject.Email)
	if err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	return result
}

func TestStartRecordingCreatesActiveSession(t *testing.T) {
	t.Parallel()

	f := newRecordingFixture()
	result := f.start(t)

	if result.RoomName != "pso@example.com" {
		t.Errorf("room = %q, want lowercased subject email", result.RoomName)
	}
	if result.EgressID != "EG_test" {
		t.Errorf("egress id = %q", result.EgressID)
	}

	session, err := f.recordings.FindByID(result.RecordingID)
	if err != nil {
		t.Fatalf("session not persisted: %v", err)
	}
	if session.Status != models.RecordingActive {
		t.Errorf("status = %s, want %s", session.Status, models.RecordingActive)
	}
	if session.BlobPath == nil || *session.BlobPath != "recordings/pso-example-com.mp4" {
		t.Errorf("blob path = %v, want object key from egress", session.BlobPath)
	}
	if session.InitiatorID != f.initiator.ID {
		t.Errorf("initiator = %d, want %d", session.InitiatorID, f.initiator.ID)
	}
}

func TestStartupProbeMarksFailedEgress(t *testing.T) {
	t.Parallel()

	f := newRecordingFixture()
	f.svc.probeDelay = 5 * time.Millisecond
	f.egress.infoOut = &EgressInfo{EgressID: "EG_test", Status: EgressStatusFailed, Error: "room not found"}

	result := f.start(t)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		session, _ := f.recordings.FindByID(result.RecordingID)
		if session.Status == models.RecordingFailed {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("startup probe never marked the recording failed")
}

func TestStopRecordingCompletesWithPlaybackURLs(t *testing.T) {
	t.Parallel()

	f := newRecordingFixture()
	f.egress.stopOut = &EgressStopResult{BlobURL: "https://blobs.example.com/recordings/pso-example-com.mp4"}
	result := f.start(t)

	outcome, err := f.svc.StopRecording(context.Background(), result.RecordingID)
	if err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if outcome.Status != string(models.RecordingCompleted) {
		t.Errorf("status = %s, want %s", outcome.Status, models.RecordingCompleted)
	}
	if outcome.BlobURL == "" {
		t.Error("expected blob URL on completed recording")
	}
	if !strings.Contains(outcome.SasURL, "?sig=") {
		t.Errorf("sas url = %q, want signed URL", outcome.SasURL)
	}

	session, _ := f.recordings.FindByID(result.RecordingID)
	if session.StoppedAt == nil {
		t.Error("stopped_at not set")
	}
}

func TestStopRecordingIsIdempotentOnTerminalSession(t *testing.T) {
	t.Parallel()

	f := newRecordingFixture()
	result := f.start(t)

	if _, err := f.svc.StopRecording(context.Background(), result.RecordingID); err != nil {
		t.Fatalf("first stop: %v", err)
	}
	outcome, err := f.svc.StopRecording(context.Background(), result.RecordingID)
	if err != nil {
		t.Fatalf("second stop: %v", err)
	}
	if outcome.Status != string(models.RecordingCompleted) {
		t.Errorf("status = %s, want %s", outcome.Status, models.RecordingCompleted)
	}
	if len(f.egress.stopCalls) != 1 {
		t.Errorf("egress stop calls = %d, want 1", len(f.egress.stopCalls))
	}
}

func TestStopRecordingTreatsMissingEgressAsCompleted(t *testing.T) {
	t.Parallel()

	f := newRecordingFixture()
	result := f.start(t)
	f.egress.stopOut = nil
	f.egress.stopErr = &EgressAPIError{
		Operation: "stop",
		Details:   EgressErrorDetails{HTTPCode: http.StatusNotFound, ErrorMessage: "egress not found"},
	}

	outcome, err := f.svc.StopRecording(context.Background(), result.RecordingID)
	if err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if outcome.Status != string(models.RecordingCompleted) {
		t.Errorf("status = %s, want %s", outcome.Status, models.RecordingCompleted)
	}
	// The object key is known, so the URL is still derivable.
	if !strings.HasPrefix(outcome.BlobURL, "https://blobs.example.com/recordings/") {
		t.Errorf("blob url = %q", outcome.BlobURL)
	}
}

func TestStopRecordingMarksAlreadyFailedEgress(t *testing.T) {
	t.Parallel()

	f := newRecordingFixture()
	result := f.start(t)
	f.egress.stopOut = nil
	f.egress.stopErr = &EgressAPIError{
		Operation: "stop",
		Details:   EgressErrorDetails{HTTPCode: http.StatusConflict, Status: EgressStatusFailed},
	}

	outcome, err := f.svc.StopRecording(context.Background(), result.RecordingID)
	if err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if outcome.Status != string(models.RecordingFailed) {
		t.Errorf("status = %s, want %s", outcome.Status, models.RecordingFailed)
	}

	session, _ := f.recordings.FindByID(result.RecordingID)
	if session.Status != models.RecordingFailed {
		t.Errorf("persisted status = %s, want %s", session.Status, models.RecordingFailed)
	}
}

func TestStopAllForUserWithNoRecordings(t *testing.T) {
	t.Parallel()

	f := newRecordingFixture()

	result, err := f.svc.StopAllForUser(context.Background(), KeyByID(f.subject.ID))
	if err != nil {
		t.Fatalf("StopAllForUser: %v", err)
	}
	if result.Total != 0 || result.Completed != 0 {
		t.Errorf("result = %+v, want empty", result)
	}
}

func TestStopAllForUserStopsRoomAndSubjectSessions(t *testing.T) {
	t.Parallel()

	f := newRecordingFixture()
	first := f.start(t)
	// Same subject with a fresh egress id, to verify both land in the batch.
	f.egress.startOut = &EgressStartResult{EgressID: "EG_second", ObjectKey: "recordings/second.mp4"}
	second := f.start(t)

	result, err := f.svc.StopAllForUser(context.Background(), KeyByEmail(f.subject.Email))
	if err != nil {
		t.Fatalf("StopAllForUser: %v", err)
	}
	if result.Total != 2 || result.Completed != 2 {
		t.Errorf("total=%d completed=%d, want 2/2", result.Total, result.Completed)
	}
	for _, id := range []uint{first.RecordingID, second.RecordingID} {
		session, _ := f.recordings.FindByID(id)
		if session.Status != models.RecordingCompleted {
			t.Errorf("recording %d status = %s, want %s", id, session.Status, models.RecordingCompleted)
		}
	}
}

func TestDeleteRecordingRemovesBlobAndRow(t *testing.T) {
	t.Parallel()

	f := newRecordingFixture()
	started := f.start(t)
	if _, err := f.svc.StopRecording(context.Background(), started.RecordingID); err != nil {
		t.Fatalf("stop: %v", err)
	}

	result, err := f.svc.DeleteRecording(context.Background(), started.RecordingID)
	if err != nil {
		t.Fatalf("DeleteRecording: %v", err)
	}
	if !result.BlobDeleted || !result.DBDeleted {
		t.Errorf("result = %+v, want blob and row deleted", result)
	}
	if len(f.storage.deletedPaths) != 1 || f.storage.deletedPaths[0] != "recordings/pso-example-com.mp4" {
		t.Errorf("deleted paths = %v", f.storage.deletedPaths)
	}
	if _, err := f.recordings.FindByID(started.RecordingID); err == nil {
		t.Error("recording row still present after delete")
	}
}

// gatedInfoEgress blocks the first GetEgressInfo call until released,
// so a test can hold the startup probe mid-flight. Later calls pass through.
type gatedInfoEgress struct {
	*fakeEgress
	gated   int32
	entered chan struct{}
	release chan struct{}
}

func (e *gatedInfoEgress) GetEgressInfo(ctx context.Context, egressID string) (*EgressInfo, error) {
	if atomic.CompareAndSwapInt32(&e.gated, 0, 1) {
		close(e.entered)
		<-e.release
	}
	return e.fakeEgress.GetEgressInfo(ctx, egressID)
}

func TestStartupProbeNeverReopensCompletedRecording(t *testing.T) {
	t.Parallel()

	f := newRecordingFixture()
	f.egress.infoOut = &EgressInfo{EgressID: "EG_test", Status: EgressStatusFailed, Error: "room not found"}
	gated := &gatedInfoEgress{
		fakeEgress: f.egress,
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	f.svc.egress = gated
	f.svc.probeDelay = time.Millisecond

	started := f.start(t)

	// Hold the probe inside its egress query, then complete the session under it.
	select {
	case <-gated.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("probe never reached the egress query")
	}
	outcome, err := f.svc.StopRecording(context.Background(), started.RecordingID)
	if err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if outcome.Status != string(models.RecordingCompleted) {
		t.Fatalf("status = %s, want %s", outcome.Status, models.RecordingCompleted)
	}

	close(gated.release)
	time.Sleep(100 * time.Millisecond)

	session, _ := f.recordings.FindByID(started.RecordingID)
	if session.Status != models.RecordingCompleted {
		t.Errorf("status = %s after probe, want %s kept", session.Status, models.RecordingCompleted)
	}
}

func TestStopRecordingFetchesEgressStatusBeforeStop(t *testing.T) {
	t.Parallel()

	f := newRecordingFixture()
	started := f.start(t)

	if _, err := f.svc.StopRecording(context.Background(), started.RecordingID); err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if len(f.egress.infoCalls) == 0 {
		t.Error("expected a pre-stop egress status query")
	}
}

func TestDeleteRecordingToleratesStorageError(t *testing.T) {
	t.Parallel()

	f := newRecordingFixture()
	f.storage.deleteErr = errors.New("storage timeout")
	started := f.start(t)

	result, err := f.svc.DeleteRecording(context.Background(), started.RecordingID)
	if err != nil {
		t.Fatalf("DeleteRecording: %v", err)
	}
	if result.BlobDeleted {
		t.Error("BlobDeleted should be false on a storage error")
	}
	if !result.BlobMissing {
		t.Error("storage error should be reported as BlobMissing")
	}
	if !result.DBDeleted {
		t.Error("row should be deleted despite the storage error")
	}
	if _, err := f.recordings.FindByID(started.RecordingID); err == nil {
		t.Error("recording row still present after delete")
	}
}

func TestDeleteRecordingReportsMissingBlob(t *testing.T) {
	t.Parallel()

	f := newRecordingFixture()
	f.storage.deleteFound = false
	started := f.start(t)

	result, err := f.svc.DeleteRecording(context.Background(), started.RecordingID)
	if err != nil {
		t.Fatalf("DeleteRecording: %v", err)
	}
	if !result.BlobMissing {
		t.Error("expected BlobMissing=true when storage has no such object")
	}
	if !result.DBDeleted {
		t.Error("row should be deleted even when the blob is missing")
	}
}
