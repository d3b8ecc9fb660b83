package models

import "time"

// PresenceStatus 在线状态
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "Online"
	PresenceOffline PresenceStatus = "Offline"
)

// PresenceRecord represents the current online/offline state of a user
// 不变式: 每个用户至多一条当前记录，更新时覆盖而不是新增
type PresenceRecord struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	UserID     uint           `gorm:"uniqueIndex;not null" json:"user_id"`
	Status     PresenceStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	LastSeenAt time.Time      `gorm:"not null" json:"last_seen_at"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (PresenceRecord) TableName() string {
	return "presence_records"
}

// PresenceHistory 在线时段流水，上线开一行，下线闭合
// 不变式: 每个用户至多一行 exited_at 为空的记录
type PresenceHistory struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	EnteredAt time.Time  `gorm:"not null" json:"entered_at"`
	ExitedAt  *time.Time `json:"exited_at"`
	CreatedAt time.Time  `json:"created_at"`
}

func (PresenceHistory) TableName() string {
	return "presence_histories"
}
