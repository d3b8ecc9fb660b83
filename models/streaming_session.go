package models

import "time"

// StreamingStopReason 推流会话结束原因
type StreamingStopReason string

const (
	StreamingStopManual     StreamingStopReason = "MANUAL"
	StreamingStopCommand    StreamingStopReason = "COMMAND"
	StreamingStopDisconnect StreamingStopReason = "DISCONNECT"
)

// StreamingStatus 推流会话状态
type StreamingStatus string

const (
	StreamingActive  StreamingStatus = "Active"
	StreamingStopped StreamingStatus = "Stopped"
)

// StreamingSession represents a PSO's live video stream lifetime
// START 指令开一行，STOP 指令或断线关闭
type StreamingSession struct {
	ID         uint                 `gorm:"primaryKey" json:"id"`
	UserID     uint                 `gorm:"index;not null" json:"user_id"`
	Status     StreamingStatus      `gorm:"type:varchar(20);not null;index" json:"status"`
	StartedAt  time.Time            `gorm:"not null" json:"started_at"`
	StoppedAt  *time.Time           `json:"stopped_at"`
	StopReason *StreamingStopReason `gorm:"type:varchar(20)" json:"stop_reason"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (StreamingSession) TableName() string {
	return "streaming_sessions"
}
