package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"pso-monitor-service/models"
)

// 录像启动后延迟探测出口任务状态的默认等待时长
const defaultProbeDelay = 5 * time.Second

// RecordingStartResult 发起录像的返回
type RecordingStartResult struct {
	RecordingID uint   `json:"recording_id"`
	EgressID    string `json:"egress_id"`
	RoomName    string `json:"room_name"`
	Message     string `json:"message"`
}

// RecordingStopOutcome 单条录像会话的结束结果
type RecordingStopOutcome struct {
	RecordingID uint   `json:"recording_id"`
	EgressID    string `json:"egress_id"`
	Status      string `json:"status"`
	BlobURL     string `json:"blob_url,omitempty"`
	SasURL      string `json:"sas_url,omitempty"`
	Message     string `json:"message,omitempty"`
}

// RecordingStopAllResult 批量结束的汇总
type RecordingStopAllResult struct {
	Total     int                    `json:"total"`
	Completed int                    `json:"completed"`
	Results   []RecordingStopOutcome `json:"results"`
}

// RecordingDeleteResult 删除录像的返回
type RecordingDeleteResult struct {
	BlobDeleted bool `json:"blob_deleted"`
	BlobMissing bool `json:"blob_missing"`
	DBDeleted   bool `json:"db_deleted"`
}

// InterfaceRecordingService 录像会话服务接口
type InterfaceRecordingService interface {
	StartRecording(ctx context.Context, initiatorKey UserKey, subjectEmail string) (*RecordingStartResult, error)
	StopRecording(ctx context.Context, recordingID uint) (*RecordingStopOutcome, error)
	StopAllForUser(ctx context.Context, userKey UserKey) (*RecordingStopAllResult, error)
	DeleteRecording(ctx context.Context, recordingID uint) (*RecordingDeleteResult, error)
	GetRecording(recordingID uint) (*models.RecordingSession, error)
	GetRecordingsForUser(userKey UserKey) ([]models.RecordingSession, error)
	GetActiveRecordings() ([]models.RecordingSession, error)
}

// RecordingService 录像会话服务实现
// 房间名即被录对象邮箱的小写形式，出口任务按房间订阅媒体流
type RecordingService struct {
	recordingRepo InterfaceRecordingRepository
	userRepo      InterfaceUserRepository
	egress        InterfaceEgressService
	storage       InterfaceStorageService
	logger        InterfaceErrorLogger
	probeDelay    time.Duration
	probeTimers   sync.Map // egressID -> *time.Timer
}

// NewRecordingService 创建录像会话服务
func NewRecordingService(recordingRepo InterfaceRecordingRepository, userRepo InterfaceUserRepository, egress InterfaceEgressService, storage InterfaceStorageService, logger InterfaceErrorLogger) InterfaceRecordingService {
	return &RecordingService{
		recordingRepo: recordingRepo,
		userRepo:      userRepo,
		egress:        egress,
		storage:       storage,
		logger:        logger,
		probeDelay:    defaultProbeDelay,
	}
}

// StartRecording 发起一次录像
// 出口任务经常在启动应答之后才异步失败，因此落库为进行中后再延迟探测一次任务状态
func (s *RecordingService) StartRecording(ctx context.Context, initiatorKey UserKey, subjectEmail string) (*RecordingStartResult, error) {
	initiator, err := resolveUser(s.userRepo, initiatorKey)
	if err != nil {
		return nil, err
	}

	subject, err := s.userRepo.FindByEmail(subjectEmail)
	if err != nil {
		return nil, err
	}

	roomName := models.NormalizeEmail(subject.Email)
	started, err := s.egress.StartEgress(ctx, roomName, subject.FullName)
	if err != nil {
		return nil, err
	}

	session := &models.RecordingSession{
		RoomName:     roomName,
		EgressID:     started.EgressID,
		InitiatorID:  initiator.ID,
		SubjectID:    &subject.ID,
		SubjectLabel: subject.FullName,
		Status:       models.RecordingActive,
		StartedAt:    time.Now(),
	}
	if started.ObjectKey != "" {
		session.BlobPath = &started.ObjectKey
	}
	if err := s.recordingRepo.CreateActive(session); err != nil {
		// 出口任务已经在跑了，尽力停掉以免产生孤儿任务
		runBestEffort(s.logger, "stop_orphan_egress", map[string]interface{}{
			"egressId": started.EgressID,
		}, func() error {
			_, stopErr := s.egress.StopEgress(ctx, started.EgressID)
			return stopErr
		})
		return nil, err
	}

	log.Printf("[Recording] 房间 %s 开始录像, 发起人=%s, egress=%s", roomName, initiator.Email, started.EgressID)
	s.scheduleStartupProbe(session.ID, started.EgressID)

	return &RecordingStartResult{
		RecordingID: session.ID,
		EgressID:    started.EgressID,
		RoomName:    roomName,
		Message:     fmt.Sprintf("已开始录制 %s", subject.Email),
	}, nil
}

// scheduleStartupProbe 延迟探测出口任务，启动即失败的任务在这里被标记
func (s *RecordingService) scheduleStartupProbe(recordingID uint, egressID string) {
	timer := time.AfterFunc(s.probeDelay, func() {
		s.probeTimers.Delete(egressID)

		info, err := s.egress.GetEgressInfo(context.Background(), egressID)
		if err != nil {
			s.logger.LogError(err, map[string]interface{}{
				"step":     "startup_probe",
				"egressId": egressID,
			})
			return
		}
		if info == nil {
			return
		}
		if info.Status != EgressStatusFailed && info.Status != EgressStatusAborted {
			return
		}

		// 正常停止可能赶在探测查询期间完成，终态不再改写
		session, err := s.recordingRepo.FindByID(recordingID)
		if err != nil {
			s.logger.LogError(err, map[string]interface{}{
				"step":        "startup_probe_refetch",
				"recordingId": recordingID,
			})
			return
		}
		if session.IsTerminal() {
			return
		}

		log.Printf("[Recording] 出口任务 %s 启动后失败: %s", egressID, info.Error)
		if err := s.recordingRepo.Fail(recordingID, time.Now()); err != nil {
			s.logger.LogError(err, map[string]interface{}{
				"step":        "startup_probe_mark_failed",
				"recordingId": recordingID,
			})
		}
	})
	s.probeTimers.Store(egressID, timer)
}

// cancelStartupProbe 主动结束时取消尚未触发的探测
func (s *RecordingService) cancelStartupProbe(egressID string) {
	if v, ok := s.probeTimers.LoadAndDelete(egressID); ok {
		v.(*time.Timer).Stop()
	}
}

// StopRecording 结束一条录像会话
// 出口侧的"任务已不存在"与"任务早已失败"都不算调用方错误，分别落为完成与失败
func (s *RecordingService) StopRecording(ctx context.Context, recordingID uint) (*RecordingStopOutcome, error) {
	session, err := s.recordingRepo.FindByID(recordingID)
	if err != nil {
		return nil, err
	}
	if session.IsTerminal() {
		return &RecordingStopOutcome{
			RecordingID: session.ID,
			EgressID:    session.EgressID,
			Status:      string(session.Status),
			Message:     "录像已结束",
		}, nil
	}

	s.cancelStartupProbe(session.EgressID)

	// 停止前取一次出口侧状态，失败分支的日志需要这份上下文
	statusBefore := ""
	if info, infoErr := s.egress.GetEgressInfo(ctx, session.EgressID); infoErr == nil && info != nil {
		statusBefore = info.Status
	}

	stopped, err := s.egress.StopEgress(ctx, session.EgressID)
	now := time.Now()
	switch {
	case err == nil:
		blobURL := s.resolveBlobURL(session, stopped.BlobURL)
		if err := s.recordingRepo.Complete(session.ID, now, blobURL); err != nil {
			return nil, err
		}
		outcome := &RecordingStopOutcome{
			RecordingID: session.ID,
			EgressID:    session.EgressID,
			Status:      string(models.RecordingCompleted),
		}
		if blobURL != nil {
			outcome.BlobURL = *blobURL
			if session.BlobPath != nil {
				if sasURL, sasErr := s.storage.GenerateReadSasURL(*session.BlobPath, 60); sasErr == nil {
					outcome.SasURL = sasURL
				}
			}
		}
		log.Printf("[Recording] 录像 %d 正常结束, egress=%s", session.ID, session.EgressID)
		return outcome, nil

	case IsEgressNotFound(err):
		// 出口任务已消失，多半是媒体连接先断了，按完成处理并保留已知地址
		blobURL := s.resolveBlobURL(session, "")
		if err := s.recordingRepo.Complete(session.ID, now, blobURL); err != nil {
			return nil, err
		}
		log.Printf("[Recording] 录像 %d 的出口任务已不存在 (停止前状态: %s), 按完成处理", session.ID, statusBefore)
		outcome := &RecordingStopOutcome{
			RecordingID: session.ID,
			EgressID:    session.EgressID,
			Status:      string(models.RecordingCompleted),
			Message:     "出口任务已不存在",
		}
		if blobURL != nil {
			outcome.BlobURL = *blobURL
		}
		return outcome, nil

	case IsEgressAlreadyFailed(err):
		if err := s.recordingRepo.Fail(session.ID, now); err != nil {
			return nil, err
		}
		log.Printf("[Recording] 录像 %d 的出口任务早已失败 (停止前状态: %s)", session.ID, statusBefore)
		return &RecordingStopOutcome{
			RecordingID: session.ID,
			EgressID:    session.EgressID,
			Status:      string(models.RecordingFailed),
			Message:     "出口任务已失败",
		}, nil

	default:
		runBestEffort(s.logger, "mark_recording_failed", map[string]interface{}{
			"recordingId": session.ID,
		}, func() error {
			return s.recordingRepo.Fail(session.ID, now)
		})
		return nil, err
	}
}

// resolveBlobURL 选定录像文件的最终地址：出口侧返回的优先，其次按路径自行拼接
func (s *RecordingService) resolveBlobURL(session *models.RecordingSession, reported string) *string {
	if reported != "" {
		return &reported
	}
	if session.BlobPath != nil && *session.BlobPath != "" {
		url := s.storage.BuildHttpsURL(*session.BlobPath)
		return &url
	}
	return session.BlobURL
}

// findActiveSessionsForUser 该用户相关的全部进行中录像：以他为房间的加上以他为对象的
func (s *RecordingService) findActiveSessionsForUser(user *models.User) ([]models.RecordingSession, error) {
	byRoom, err := s.recordingRepo.FindActiveByRoom(models.NormalizeEmail(user.Email))
	if err != nil {
		return nil, err
	}
	bySubject, err := s.recordingRepo.FindActiveBySubject(user.ID)
	if err != nil {
		return nil, err
	}

	seen := make(map[uint]bool, len(byRoom))
	merged := make([]models.RecordingSession, 0, len(byRoom)+len(bySubject))
	for _, list := range [][]models.RecordingSession{byRoom, bySubject} {
		for _, session := range list {
			if seen[session.ID] {
				continue
			}
			seen[session.ID] = true
			merged = append(merged, session)
		}
	}
	return merged, nil
}

// StopAllForUser 结束某用户相关的全部进行中录像
// 没有进行中录像不是错误，返回 {0, 0}；单条失败记入结果但不中断其余
func (s *RecordingService) StopAllForUser(ctx context.Context, userKey UserKey) (*RecordingStopAllResult, error) {
	user, err := resolveUser(s.userRepo, userKey)
	if err != nil {
		return nil, err
	}

	sessions, err := s.findActiveSessionsForUser(user)
	if err != nil {
		return nil, err
	}

	result := &RecordingStopAllResult{Total: len(sessions)}
	for i := range sessions {
		outcome, stopErr := s.StopRecording(ctx, sessions[i].ID)
		if stopErr != nil {
			s.logger.LogError(stopErr, map[string]interface{}{
				"step":        "stop_all_recordings",
				"recordingId": sessions[i].ID,
			})
			result.Results = append(result.Results, RecordingStopOutcome{
				RecordingID: sessions[i].ID,
				EgressID:    sessions[i].EgressID,
				Status:      string(models.RecordingFailed),
				Message:     stopErr.Error(),
			})
			continue
		}
		if outcome.Status == string(models.RecordingCompleted) {
			result.Completed++
		}
		result.Results = append(result.Results, *outcome)
	}

	if result.Total > 0 {
		log.Printf("[Recording] 用户 %s 的批量结束完成: 共 %d 条, 正常完成 %d 条", user.Email, result.Total, result.Completed)
	}
	return result, nil
}

// DeleteRecording 删除录像文件与数据库记录
// 文件缺失或删除失败都不阻塞记录删除，记录是对账的最后依据
func (s *RecordingService) DeleteRecording(ctx context.Context, recordingID uint) (*RecordingDeleteResult, error) {
	session, err := s.recordingRepo.FindByID(recordingID)
	if err != nil {
		return nil, err
	}

	result := &RecordingDeleteResult{}
	path := s.blobPathOf(session)
	if path != "" {
		deleted, delErr := s.storage.DeleteRecordingByPath(ctx, path)
		switch {
		case delErr != nil:
			// 删除失败不阻塞记录删除，对调用方按文件缺失上报
			s.logger.LogError(delErr, map[string]interface{}{
				"step":        "delete_recording_blob",
				"recordingId": recordingID,
				"path":        path,
			})
			result.BlobMissing = true
		case deleted:
			result.BlobDeleted = true
		default:
			result.BlobMissing = true
		}
	} else {
		result.BlobMissing = true
	}

	if err := s.recordingRepo.DeleteByID(recordingID); err != nil {
		return result, err
	}
	result.DBDeleted = true

	log.Printf("[Recording] 录像 %d 已删除, 文件删除=%v 文件缺失=%v", recordingID, result.BlobDeleted, result.BlobMissing)
	return result, nil
}

// blobPathOf 取录像文件路径，老数据只有完整地址时从地址里截出路径
func (s *RecordingService) blobPathOf(session *models.RecordingSession) string {
	if session.BlobPath != nil && *session.BlobPath != "" {
		return *session.BlobPath
	}
	if session.BlobURL != nil && *session.BlobURL != "" {
		base := s.storage.BuildHttpsURL("")
		if base != "" && strings.HasPrefix(*session.BlobURL, base) {
			return strings.TrimPrefix(strings.TrimPrefix(*session.BlobURL, base), "/")
		}
	}
	return ""
}

// GetRecording 查询单条录像记录
func (s *RecordingService) GetRecording(recordingID uint) (*models.RecordingSession, error) {
	return s.recordingRepo.FindByID(recordingID)
}

// GetRecordingsForUser 查询某用户相关的全部录像记录
func (s *RecordingService) GetRecordingsForUser(userKey UserKey) ([]models.RecordingSession, error) {
	user, err := resolveUser(s.userRepo, userKey)
	if err != nil {
		return nil, err
	}
	return s.recordingRepo.FindByUser(user.ID)
}

// GetActiveRecordings 查询全部进行中的录像会话
func (s *RecordingService) GetActiveRecordings() ([]models.RecordingSession, error) {
	return s.recordingRepo.FindActive()
}
