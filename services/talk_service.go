package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"pso-monitor-service/models"
)

// TalkStartResult 开始对讲的返回
type TalkStartResult struct {
	TalkSessionID uint   `json:"talk_session_id"`
	Message       string `json:"message"`
}

// InterfaceTalkService 对讲会话服务接口
type InterfaceTalkService interface {
	Start(supervisorKey UserKey, psoEmail string) (*TalkStartResult, error)
	Stop(talkSessionID uint, reason models.TalkStopReason) error
	BroadcastTalkStopped(psoEmail string) error
	StopAllForSupervisor(supervisorID uint, reason models.TalkStopReason) (int, error)
	StopAllForPso(psoID uint, reason models.TalkStopReason) (int, error)
}

// TalkService 对讲会话服务实现
// 不变式: 同一个 PSO 同一时刻至多一条进行中的会话
type TalkService struct {
	talkRepo  InterfaceTalkRepository
	userRepo  InterfaceUserRepository
	broadcast InterfaceBroadcastService
	logger    InterfaceErrorLogger
}

// NewTalkService 创建对讲会话服务
func NewTalkService(talkRepo InterfaceTalkRepository, userRepo InterfaceUserRepository, broadcast InterfaceBroadcastService, logger InterfaceErrorLogger) InterfaceTalkService {
	return &TalkService{
		talkRepo:  talkRepo,
		userRepo:  userRepo,
		broadcast: broadcast,
		logger:    logger,
	}
}

// Start 开始一次对讲会话
// 创建前先查该 PSO 的进行中会话，存在则返回冲突错误并尽力带上占用方主管
func (s *TalkService) Start(supervisorKey UserKey, psoEmail string) (*TalkStartResult, error) {
	supervisor, err := resolveUser(s.userRepo, supervisorKey)
	if err != nil {
		return nil, err
	}

	pso, err := s.userRepo.FindByEmail(psoEmail)
	if err != nil {
		return nil, err
	}

	active, err := s.talkRepo.FindActiveByPsoID(pso.ID)
	if err != nil {
		return nil, err
	}
	if len(active) > 0 {
		conflict := &TalkSessionActiveError{PsoEmail: pso.Email}
		// 占用方主管尽力解析，只用于错误提示
		if active[0].Supervisor != nil {
			conflict.SupervisorEmail = active[0].Supervisor.Email
		} else if owner, err := s.userRepo.FindByID(active[0].SupervisorID); err == nil {
			conflict.SupervisorEmail = owner.Email
		}
		return nil, conflict
	}

	session := &models.TalkSession{
		SupervisorID: supervisor.ID,
		PsoID:        pso.ID,
		StartedAt:    time.Now(),
	}
	if err := s.talkRepo.Create(session); err != nil {
		// 并发创建会撞上活跃唯一索引，补全冲突详情后原样返回
		var conflict *TalkSessionActiveError
		if errors.As(err, &conflict) {
			conflict.PsoEmail = pso.Email
			if winners, findErr := s.talkRepo.FindActiveByPsoID(pso.ID); findErr == nil && len(winners) > 0 {
				if winners[0].Supervisor != nil {
					conflict.SupervisorEmail = winners[0].Supervisor.Email
				} else if owner, ownerErr := s.userRepo.FindByID(winners[0].SupervisorID); ownerErr == nil {
					conflict.SupervisorEmail = owner.Email
				}
			}
			return nil, conflict
		}
		return nil, err
	}

	log.Printf("[Talk] 主管 %s 开始对讲 PSO %s，会话: %d", supervisor.Email, pso.Email, session.ID)

	if err := s.broadcast.BroadcastMessage(pso.Email, map[string]interface{}{
		"type":            "talk_session_start",
		"talkSessionId":   session.ID,
		"supervisorEmail": supervisor.Email,
		"supervisorName":  supervisor.FullName,
		"timestamp":       session.StartedAt,
	}); err != nil {
		return nil, err
	}

	return &TalkStartResult{
		TalkSessionID: session.ID,
		Message:       fmt.Sprintf("对讲会话已建立: %s -> %s", supervisor.Email, pso.Email),
	}, nil
}

// Stop 结束一次对讲会话
// PSO 投影可能已经不存在，此时照常落库结束，只是不再发定向通知
func (s *TalkService) Stop(talkSessionID uint, reason models.TalkStopReason) error {
	session, err := s.talkRepo.FindByIDWithPso(talkSessionID)
	if err != nil {
		return err
	}

	if err := s.talkRepo.Stop(talkSessionID, reason, time.Now()); err != nil {
		return err
	}

	log.Printf("[Talk] 对讲会话 %d 已结束, 原因=%s", talkSessionID, reason)

	if session.Pso != nil {
		return s.BroadcastTalkStopped(session.Pso.Email)
	}
	return nil
}

// BroadcastTalkStopped 向 PSO 定向广播对讲结束事件，断开级联也会复用
func (s *TalkService) BroadcastTalkStopped(psoEmail string) error {
	return s.broadcast.BroadcastMessage(psoEmail, map[string]interface{}{
		"type":      "talk_session_stop",
		"timestamp": time.Now(),
	})
}

// StopAllForSupervisor 结束某主管持有的全部进行中会话并通知每个受影响的 PSO
// 单个会话的失败不阻塞其余会话
func (s *TalkService) StopAllForSupervisor(supervisorID uint, reason models.TalkStopReason) (int, error) {
	sessions, err := s.talkRepo.FindActiveBySupervisorID(supervisorID)
	if err != nil {
		return 0, err
	}

	stopped := 0
	for i := range sessions {
		session := &sessions[i]
		runBestEffort(s.logger, "stop_talk_session", map[string]interface{}{
			"talkSessionId": session.ID,
			"supervisorId":  supervisorID,
		}, func() error {
			return s.Stop(session.ID, reason)
		})
		stopped++
	}
	return stopped, nil
}

// StopAllForPso 结束某 PSO 作为现场侧的全部进行中会话
func (s *TalkService) StopAllForPso(psoID uint, reason models.TalkStopReason) (int, error) {
	sessions, err := s.talkRepo.FindActiveByPsoID(psoID)
	if err != nil {
		return 0, err
	}

	stopped := 0
	for i := range sessions {
		session := &sessions[i]
		runBestEffort(s.logger, "stop_talk_session", map[string]interface{}{
			"talkSessionId": session.ID,
			"psoId":         psoID,
		}, func() error {
			return s.Stop(session.ID, reason)
		})
		stopped++
	}
	return stopped, nil
}
