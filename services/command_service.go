package services

import (
	"fmt"
	"log"
	"strings"
	"time"

	"pso-monitor-service/models"
)

// CommandResult 指令下发的返回
type CommandResult struct {
	CommandID uint   `json:"command_id"`
	Delivered bool   `json:"delivered"`
	Message   string `json:"message"`
}

// InterfaceCommandService 推流指令服务接口
type InterfaceCommandService interface {
	ProcessCommand(targetEmail string, commandType models.CommandType, timestamp time.Time, reason string) (*CommandResult, error)
	ReplayPendingCommands(email string) (int, error)
}

// CommandService 推流指令服务实现
// 指令先落库再尝试投递，目标离线时留在库里等重连回放
type CommandService struct {
	commandRepo InterfaceCommandRepository
	userRepo    InterfaceUserRepository
	presence    InterfacePresenceService
	streaming   InterfaceStreamingService
	messaging   InterfaceMessagingService
	broadcast   InterfaceBroadcastService
	logger      InterfaceErrorLogger
}

// NewCommandService 创建推流指令服务
func NewCommandService(commandRepo InterfaceCommandRepository, userRepo InterfaceUserRepository, presence InterfacePresenceService, streaming InterfaceStreamingService, messaging InterfaceMessagingService, broadcast InterfaceBroadcastService, logger InterfaceErrorLogger) InterfaceCommandService {
	return &CommandService{
		commandRepo: commandRepo,
		userRepo:    userRepo,
		presence:    presence,
		streaming:   streaming,
		messaging:   messaging,
		broadcast:   broadcast,
		logger:      logger,
	}
}

// ProcessCommand 处理一条推流指令
// 投递失败不算处理失败：指令已经落库，目标上线后会被回放
func (s *CommandService) ProcessCommand(targetEmail string, commandType models.CommandType, timestamp time.Time, reason string) (*CommandResult, error) {
	// STOP 必须说明原因，指令记录与客户端提示都依赖它
	if commandType == models.CommandStop && strings.TrimSpace(reason) == "" {
		return nil, &ValidationError{Field: "reason", Message: "STOP 指令必须提供原因"}
	}

	target, err := s.userRepo.FindByEmail(targetEmail)
	if err != nil {
		return nil, err
	}

	command := &models.PendingCommand{
		UserID:      target.ID,
		CommandType: commandType,
		Reason:      reason,
		Status:      models.CommandPending,
		RequestedAt: timestamp,
	}
	if err := s.commandRepo.Create(command); err != nil {
		return nil, err
	}

	if err := s.applySideEffects(target, commandType, timestamp, reason); err != nil {
		return nil, err
	}

	delivered := s.tryDeliver(target, command)

	message := fmt.Sprintf("指令 %s 已接受", commandType)
	if !delivered {
		message = fmt.Sprintf("指令 %s 已暂存, 目标离线", commandType)
	}
	return &CommandResult{
		CommandID: command.ID,
		Delivered: delivered,
		Message:   message,
	}, nil
}

// applySideEffects 指令在服务端的即时副作用：维护推流会话并广播状态
// 会话落库是硬性的，状态广播只是通知侧信道，失败记日志不回滚指令
func (s *CommandService) applySideEffects(target *models.User, commandType models.CommandType, timestamp time.Time, reason string) error {
	switch commandType {
	case models.CommandStart:
		if err := s.streaming.Start(target.ID, timestamp); err != nil {
			return err
		}
		runBestEffort(s.logger, "streaming_status_broadcast", map[string]interface{}{
			"target": target.Email,
			"status": "started",
		}, func() error {
			return s.broadcast.BroadcastMessage(target.Email, map[string]interface{}{
				"type":      "streaming_status",
				"email":     target.Email,
				"status":    "started",
				"timestamp": timestamp,
			})
		})
		return nil
	case models.CommandStop:
		if _, err := s.streaming.Stop(target.ID, models.StreamingStopCommand, timestamp); err != nil {
			return err
		}
		runBestEffort(s.logger, "streaming_status_broadcast", map[string]interface{}{
			"target": target.Email,
			"status": "stopped",
		}, func() error {
			return s.broadcast.BroadcastMessage(target.Email, map[string]interface{}{
				"type":      "streaming_status",
				"email":     target.Email,
				"status":    "stopped",
				"reason":    reason,
				"timestamp": timestamp,
			})
		})
		return nil
	default:
		// REFRESH 只透传给客户端，服务端没有状态要动
		return nil
	}
}

// tryDeliver 目标在线时立即投递并标记，任何投递问题都只记日志
func (s *CommandService) tryDeliver(target *models.User, command *models.PendingCommand) bool {
	status, err := s.presence.GetStatus(KeyByID(target.ID))
	if err != nil {
		s.logger.LogError(err, map[string]interface{}{
			"step":      "command_presence_check",
			"commandId": command.ID,
		})
		return false
	}
	if status != models.PresenceOnline {
		log.Printf("[Command] 目标 %s 离线, 指令 %d 暂存", target.Email, command.ID)
		return false
	}

	if err := s.messaging.SendToGroup(CommandGroup(target.Email), commandPayload(command)); err != nil {
		s.logger.LogError(err, map[string]interface{}{
			"step":      "command_delivery",
			"commandId": command.ID,
			"target":    target.Email,
		})
		return false
	}

	now := time.Now()
	if err := s.commandRepo.MarkPublished(command.ID, now); err != nil {
		s.logger.LogError(err, map[string]interface{}{
			"step":      "command_mark_published",
			"commandId": command.ID,
		})
	}
	log.Printf("[Command] 指令 %d (%s) 已投递给 %s", command.ID, command.CommandType, target.Email)
	return true
}

// ReplayPendingCommands 重连时按请求顺序回放未投递的指令
// 单条失败不中断回放，留给下一次重连
func (s *CommandService) ReplayPendingCommands(email string) (int, error) {
	target, err := s.userRepo.FindByEmail(email)
	if err != nil {
		return 0, err
	}

	pending, err := s.commandRepo.FindPendingByUserID(target.ID)
	if err != nil {
		return 0, err
	}

	replayed := 0
	for i := range pending {
		command := &pending[i]
		if err := s.messaging.SendToGroup(CommandGroup(target.Email), commandPayload(command)); err != nil {
			s.logger.LogError(err, map[string]interface{}{
				"step":      "command_replay",
				"commandId": command.ID,
				"target":    target.Email,
			})
			continue
		}
		if err := s.commandRepo.MarkPublished(command.ID, time.Now()); err != nil {
			s.logger.LogError(err, map[string]interface{}{
				"step":      "command_replay_mark_published",
				"commandId": command.ID,
			})
		}
		replayed++
	}

	if len(pending) > 0 {
		log.Printf("[Command] 为 %s 回放指令 %d/%d 条", target.Email, replayed, len(pending))
	}
	return replayed, nil
}

// commandPayload 投递到指令频道的载荷
func commandPayload(command *models.PendingCommand) map[string]interface{} {
	return map[string]interface{}{
		"id":        command.ID,
		"command":   command.CommandType,
		"reason":    command.Reason,
		"timestamp": command.RequestedAt,
	}
}
