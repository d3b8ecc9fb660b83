package models

import "time"

// SupervisorChangeType 主管变更类型
type SupervisorChangeType string

const (
	SupervisorAssign   SupervisorChangeType = "ASSIGN"
	SupervisorUnassign SupervisorChangeType = "UNASSIGN"
)

// SupervisorAssignment 主管变更请求 (值对象，不落库)
// 持久化效果体现在每个目标用户的 supervisor_id 字段上
type SupervisorAssignment struct {
	UserEmails         []string             `json:"user_emails"`
	NewSupervisorEmail *string              `json:"new_supervisor_email"` // 为空表示解除指派
	ChangeType         SupervisorChangeType `json:"change_type"`
	Timestamp          time.Time            `json:"timestamp"`
}
