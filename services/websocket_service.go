package services

import (
	"context"
	"log"
	"time"

	"pso-monitor-service/models"
)

// InterfaceConnectionService 连接生命周期服务接口
type InterfaceConnectionService interface {
	HandleConnect(key UserKey) error
	HandleDisconnect(key UserKey) error
}

// ConnectionService 连接生命周期服务实现
// 断开侧的级联每一步都尽力执行，身份校验通过后整体不再失败
type ConnectionService struct {
	userRepo  InterfaceUserRepository
	presence  InterfacePresenceService
	command   InterfaceCommandService
	talk      InterfaceTalkService
	recording InterfaceRecordingService
	streaming InterfaceStreamingService
	broadcast InterfaceBroadcastService
	logger    InterfaceErrorLogger
}

// NewConnectionService 创建连接生命周期服务
func NewConnectionService(userRepo InterfaceUserRepository, presence InterfacePresenceService, command InterfaceCommandService, talk InterfaceTalkService, recording InterfaceRecordingService, streaming InterfaceStreamingService, broadcast InterfaceBroadcastService, logger InterfaceErrorLogger) InterfaceConnectionService {
	return &ConnectionService{
		userRepo:  userRepo,
		presence:  presence,
		command:   command,
		talk:      talk,
		recording: recording,
		streaming: streaming,
		broadcast: broadcast,
		logger:    logger,
	}
}

// HandleConnect 处理一次连接建立
// 上线必须成功落库，其后的全量同步与指令回放只是尽力而为
func (s *ConnectionService) HandleConnect(key UserKey) error {
	if key.IsEmpty() {
		return ErrEmptyUserKey
	}

	user, err := resolveUser(s.userRepo, key)
	if err != nil {
		return err
	}

	if err := s.presence.SetOnline(KeyByID(user.ID)); err != nil {
		return err
	}
	log.Printf("[Connection] 用户 %s 已连接", user.Email)

	runBestEffort(s.logger, "presence_full_sync", map[string]interface{}{
		"user": user.Email,
	}, func() error {
		return s.broadcast.SyncAllUsersWithDatabase()
	})

	runBestEffort(s.logger, "replay_pending_commands", map[string]interface{}{
		"user": user.Email,
	}, func() error {
		_, replayErr := s.command.ReplayPendingCommands(user.Email)
		return replayErr
	})

	return nil
}

// HandleDisconnect 处理一次连接断开
// 级联顺序：对讲会话 → 录像会话 → 在线状态与推流会话 → 全量对账广播
func (s *ConnectionService) HandleDisconnect(key UserKey) error {
	if key.IsEmpty() {
		return ErrEmptyUserKey
	}

	user, err := resolveUser(s.userRepo, key)
	if err != nil {
		return err
	}
	log.Printf("[Connection] 用户 %s 已断开, 开始级联清理", user.Email)

	if user.Role.IsSupervisorRole() {
		runBestEffort(s.logger, "disconnect_supervisor_talks", map[string]interface{}{
			"user": user.Email,
		}, func() error {
			_, stopErr := s.talk.StopAllForSupervisor(user.ID, models.TalkStopSupervisorDisconnected)
			return stopErr
		})
	}
	// 任何角色都可能作为现场侧挂在对讲里
	runBestEffort(s.logger, "disconnect_pso_talks", map[string]interface{}{
		"user": user.Email,
	}, func() error {
		_, stopErr := s.talk.StopAllForPso(user.ID, models.TalkStopPsoDisconnected)
		return stopErr
	})

	runBestEffort(s.logger, "disconnect_recordings", map[string]interface{}{
		"user": user.Email,
	}, func() error {
		result, stopErr := s.recording.StopAllForUser(context.Background(), KeyByID(user.ID))
		if stopErr != nil {
			return stopErr
		}
		if result.Total > 0 {
			log.Printf("[Connection] 用户 %s 断开时结束录像 %d 条", user.Email, result.Total)
		}
		return nil
	})

	runBestEffort(s.logger, "disconnect_presence", map[string]interface{}{
		"user": user.Email,
	}, func() error {
		return s.presence.SetOffline(KeyByID(user.ID))
	})

	runBestEffort(s.logger, "disconnect_streaming", map[string]interface{}{
		"user": user.Email,
	}, func() error {
		_, stopErr := s.streaming.Stop(user.ID, models.StreamingStopDisconnect, time.Now())
		return stopErr
	})

	runBestEffort(s.logger, "disconnect_full_sync", map[string]interface{}{
		"user": user.Email,
	}, func() error {
		return s.broadcast.SyncAllUsersWithDatabase()
	})

	return nil
}
