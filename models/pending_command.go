package models

import "time"

// CommandType 下发给现场端的指令类型
type CommandType string

const (
	CommandStart   CommandType = "START"
	CommandStop    CommandType = "STOP"
	CommandRefresh CommandType = "REFRESH"
)

// CommandDeliveryStatus 指令投递状态
type CommandDeliveryStatus string

const (
	CommandPending   CommandDeliveryStatus = "Pending"
	CommandPublished CommandDeliveryStatus = "Published"
	CommandFailed    CommandDeliveryStatus = "Failed"
)

// PendingCommand represents a durable command record
// 无论投递是否成功都先落库，用户离线时由重放路径补发
type PendingCommand struct {
	ID           uint                  `gorm:"primaryKey" json:"id"`
	UserID       uint                  `gorm:"index;not null" json:"user_id"`
	CommandType  CommandType           `gorm:"type:varchar(20);not null" json:"command_type"`
	Reason       string                `gorm:"type:varchar(255)" json:"reason,omitempty"` // STOP 指令必须带原因
	Status       CommandDeliveryStatus `gorm:"type:varchar(20);not null;default:'Pending';index" json:"status"`
	RequestedAt  time.Time             `gorm:"not null" json:"requested_at"`
	PublishedAt  *time.Time            `json:"published_at"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (PendingCommand) TableName() string {
	return "pending_commands"
}
