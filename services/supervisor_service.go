package services

import (
	"fmt"
	"log"
	"regexp"
	"time"

	"pso-monitor-service/models"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// SupervisorChangeResult 主管变更的返回
type SupervisorChangeResult struct {
	UpdatedCount int      `json:"updated_count"`
	FailedEmails []string `json:"failed_emails,omitempty"`
	Message      string   `json:"message"`
}

// InterfaceUserManagementService 用户管理服务接口
type InterfaceUserManagementService interface {
	FindAssignableUsers(emails []string) ([]models.User, error)
	ListMonitoredUsers() ([]models.User, error)
}

// UserManagementService 用户管理服务实现
type UserManagementService struct {
	userRepo InterfaceUserRepository
}

// NewUserManagementService 创建用户管理服务
func NewUserManagementService(userRepo InterfaceUserRepository) InterfaceUserManagementService {
	return &UserManagementService{userRepo: userRepo}
}

// FindAssignableUsers 按邮箱查出可被指派的用户，已离职的不算
func (s *UserManagementService) FindAssignableUsers(emails []string) ([]models.User, error) {
	users, err := s.userRepo.FindByEmails(emails)
	if err != nil {
		return nil, err
	}
	assignable := make([]models.User, 0, len(users))
	for _, user := range users {
		if user.Status == models.UserStatusTerminated {
			continue
		}
		assignable = append(assignable, user)
	}
	return assignable, nil
}

// ListMonitoredUsers 列出全部受监控角色的用户并带出主管
func (s *UserManagementService) ListMonitoredUsers() ([]models.User, error) {
	return s.userRepo.FindByRolesWithSupervisor([]models.Role{models.RolePSO})
}

// InterfaceSupervisorService 主管指派服务接口
type InterfaceSupervisorService interface {
	ValidateAssignment(assignment *models.SupervisorAssignment) error
	ChangeSupervisor(assignment *models.SupervisorAssignment) (*SupervisorChangeResult, error)
}

// SupervisorService 主管指派服务实现
// 数据库更新是变更的权威结果，之后的定向通知与广播都尽力送达
type SupervisorService struct {
	userRepo   InterfaceUserRepository
	management InterfaceUserManagementService
	messaging  InterfaceMessagingService
	broadcast  InterfaceBroadcastService
	logger     InterfaceErrorLogger
}

// NewSupervisorService 创建主管指派服务
func NewSupervisorService(userRepo InterfaceUserRepository, management InterfaceUserManagementService, messaging InterfaceMessagingService, broadcast InterfaceBroadcastService, logger InterfaceErrorLogger) InterfaceSupervisorService {
	return &SupervisorService{
		userRepo:   userRepo,
		management: management,
		messaging:  messaging,
		broadcast:  broadcast,
		logger:     logger,
	}
}

// ValidateAssignment 校验一次主管变更请求
func (s *SupervisorService) ValidateAssignment(assignment *models.SupervisorAssignment) error {
	if assignment.ChangeType != models.SupervisorAssign && assignment.ChangeType != models.SupervisorUnassign {
		return &ValidationError{Field: "change_type", Message: fmt.Sprintf("未知的变更类型: %s", assignment.ChangeType)}
	}
	if len(assignment.UserEmails) == 0 {
		return &ValidationError{Field: "user_emails", Message: "目标用户列表不能为空"}
	}
	for _, email := range assignment.UserEmails {
		if !emailPattern.MatchString(email) {
			return &ValidationError{Field: "user_emails", Message: fmt.Sprintf("邮箱格式不正确: %s", email)}
		}
	}

	if assignment.ChangeType == models.SupervisorAssign {
		if assignment.NewSupervisorEmail == nil || *assignment.NewSupervisorEmail == "" {
			return &ValidationError{Field: "new_supervisor_email", Message: "指派时必须提供新主管邮箱"}
		}
		supervisor, err := s.userRepo.FindByEmail(*assignment.NewSupervisorEmail)
		if err != nil {
			return err
		}
		if !supervisor.Role.IsSupervisorRole() {
			return &ValidationError{Field: "new_supervisor_email", Message: fmt.Sprintf("%s 不是主管角色", supervisor.Email)}
		}
		if supervisor.Status == models.UserStatusTerminated {
			return &ValidationError{Field: "new_supervisor_email", Message: fmt.Sprintf("%s 已离职", supervisor.Email)}
		}
	}

	assignable, err := s.management.FindAssignableUsers(assignment.UserEmails)
	if err != nil {
		return err
	}
	if len(assignable) != len(assignment.UserEmails) {
		found := make(map[string]bool, len(assignable))
		for _, user := range assignable {
			found[models.NormalizeEmail(user.Email)] = true
		}
		for _, email := range assignment.UserEmails {
			if !found[models.NormalizeEmail(email)] {
				return &ValidationError{Field: "user_emails", Message: fmt.Sprintf("用户不存在或已离职: %s", email)}
			}
		}
	}
	return nil
}

// ChangeSupervisor 执行一次主管变更
// 落库成功即视为变更成功，通知失败只记入结果
func (s *SupervisorService) ChangeSupervisor(assignment *models.SupervisorAssignment) (*SupervisorChangeResult, error) {
	if err := s.ValidateAssignment(assignment); err != nil {
		return nil, err
	}

	var supervisor *models.User
	var supervisorID *uint
	if assignment.ChangeType == models.SupervisorAssign {
		var err error
		supervisor, err = s.userRepo.FindByEmail(*assignment.NewSupervisorEmail)
		if err != nil {
			return nil, err
		}
		supervisorID = &supervisor.ID
	}

	updated, err := s.userRepo.UpdateSupervisorByEmails(assignment.UserEmails, supervisorID)
	if err != nil {
		return nil, &SupervisorError{Message: "批量更新主管关联失败", Err: err}
	}
	log.Printf("[Supervisor] 主管变更 (%s) 已落库, 影响 %d 人", assignment.ChangeType, updated)

	targets, err := s.userRepo.FindByEmails(assignment.UserEmails)
	if err != nil {
		return nil, err
	}

	result := &SupervisorChangeResult{UpdatedCount: int(updated)}
	userNames := make([]string, 0, len(targets))
	for i := range targets {
		target := &targets[i]
		userNames = append(userNames, target.FullName)
		if err := s.messaging.SendToGroup(CommandGroup(target.Email), s.notificationPayload(assignment, supervisor)); err != nil {
			s.logger.LogError(err, map[string]interface{}{
				"step":   "supervisor_notify",
				"target": target.Email,
			})
			result.FailedEmails = append(result.FailedEmails, target.Email)
		}
	}

	change := SupervisorChangeBroadcast{
		UserEmails: assignment.UserEmails,
		UserNames:  userNames,
		Timestamp:  assignment.Timestamp,
	}
	if supervisor != nil {
		change.NewSupervisorEmail = &supervisor.Email
		change.NewSupervisorName = &supervisor.FullName
		change.NewSupervisorExternalID = &supervisor.ExternalID
	}
	runBestEffort(s.logger, "supervisor_change_broadcast", map[string]interface{}{
		"changeType": string(assignment.ChangeType),
	}, func() error {
		return s.broadcast.BroadcastSupervisorChange(change)
	})

	result.Message = fmt.Sprintf("主管变更完成, 更新 %d 人, 通知失败 %d 人", result.UpdatedCount, len(result.FailedEmails))
	return result, nil
}

// notificationPayload 发给受影响用户的定向通知
func (s *SupervisorService) notificationPayload(assignment *models.SupervisorAssignment, supervisor *models.User) map[string]interface{} {
	payload := map[string]interface{}{
		"type":       "supervisor_change",
		"changeType": string(assignment.ChangeType),
		"timestamp":  time.Now(),
	}
	if supervisor != nil {
		payload["supervisorEmail"] = supervisor.Email
		payload["supervisorName"] = supervisor.FullName
	}
	return payload
}
