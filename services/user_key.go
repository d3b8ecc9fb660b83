package services

import (
	"fmt"

	"pso-monitor-service/models"
)

// UserKeyKind 用户键类型
type UserKeyKind int

const (
	// UserKeyByID 内部数据库ID
	UserKeyByID UserKeyKind = iota
	// UserKeyByExternalID 外部目录ID
	UserKeyByExternalID
	// UserKeyByEmail 邮箱 (大小写不敏感)
	UserKeyByEmail
)

// UserKey 显式标记的用户键，由调用方声明键的类型而不是靠字符串形状猜测
type UserKey struct {
	Kind  UserKeyKind
	ID    uint
	Value string
}

// KeyByID 按内部ID构造用户键
func KeyByID(id uint) UserKey {
	return UserKey{Kind: UserKeyByID, ID: id}
}

// KeyByExternalID 按外部目录ID构造用户键
func KeyByExternalID(externalID string) UserKey {
	return UserKey{Kind: UserKeyByExternalID, Value: externalID}
}

// KeyByEmail 按邮箱构造用户键
func KeyByEmail(email string) UserKey {
	return UserKey{Kind: UserKeyByEmail, Value: models.NormalizeEmail(email)}
}

// IsEmpty 判断键是否为空
func (k UserKey) IsEmpty() bool {
	if k.Kind == UserKeyByID {
		return k.ID == 0
	}
	return k.Value == ""
}

// String 用于日志输出
func (k UserKey) String() string {
	switch k.Kind {
	case UserKeyByID:
		return fmt.Sprintf("id:%d", k.ID)
	case UserKeyByExternalID:
		return "external:" + k.Value
	case UserKeyByEmail:
		return "email:" + k.Value
	default:
		return "unknown"
	}
}

// resolveUser 按键类型解析用户
func resolveUser(repo InterfaceUserRepository, key UserKey) (*models.User, error) {
	if key.IsEmpty() {
		return nil, ErrEmptyUserKey
	}

	switch key.Kind {
	case UserKeyByID:
		return repo.FindByID(key.ID)
	case UserKeyByExternalID:
		return repo.FindByExternalID(key.Value)
	case UserKeyByEmail:
		return repo.FindByEmail(key.Value)
	default:
		return nil, fmt.Errorf("不支持的用户键类型: %d", key.Kind)
	}
}
