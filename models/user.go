package models

import (
	"strings"
	"time"
)

// Role 用户角色
type Role string

const (
	RoleSuperAdmin     Role = "SuperAdmin"
	RoleAdmin          Role = "Admin"
	RoleSupervisor     Role = "Supervisor"
	RolePSO            Role = "PSO" // 现场人员 (field user)
	RoleContactManager Role = "ContactManager"
	RoleUnassigned     Role = "Unassigned"
)

// UserStatus 用户状态
type UserStatus string

const (
	UserStatusActive     UserStatus = "active"
	UserStatusTerminated UserStatus = "terminated"
)

// User represents a directory-synced user account
// 用户由外部目录同步创建，本服务只修改 supervisor 关联
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	ExternalID   string     `gorm:"type:varchar(100);uniqueIndex" json:"external_id"` // 外部目录ID
	Email        string     `gorm:"type:varchar(100);uniqueIndex;not null" json:"email"`
	FullName     string     `gorm:"type:varchar(100)" json:"full_name"`
	Role         Role       `gorm:"type:varchar(20);index" json:"role"`
	Status       UserStatus `gorm:"type:varchar(20);default:'active'" json:"status"`
	SupervisorID *uint      `gorm:"index" json:"supervisor_id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	// Relations
	Supervisor *User `gorm:"foreignKey:SupervisorID" json:"supervisor,omitempty"`
}

// NormalizeEmail 邮箱为大小写不敏感的键，统一转为小写
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsSupervisorRole 判断角色是否具备监督端权限
func (r Role) IsSupervisorRole() bool {
	return r == RoleSupervisor || r == RoleAdmin || r == RoleSuperAdmin
}
