package models

import "time"

// TalkStopReason 对讲会话结束原因
type TalkStopReason string

const (
	TalkStopUserInitiated          TalkStopReason = "user-initiated"
	TalkStopSupervisorDisconnected TalkStopReason = "supervisor-disconnected"
	TalkStopPsoDisconnected        TalkStopReason = "pso-disconnected"
)

// TalkSession represents an exclusive supervisor-to-PSO audio session
// 不变式: 同一个 PSO 同一时刻至多一条 stopped_at 为空的会话
type TalkSession struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	SupervisorID uint            `gorm:"index;not null" json:"supervisor_id"`
	PsoID        uint            `gorm:"index;not null" json:"pso_id"`
	StartedAt    time.Time       `gorm:"not null" json:"started_at"`
	StoppedAt    *time.Time      `json:"stopped_at"`
	StopReason   *TalkStopReason `gorm:"type:varchar(30)" json:"stop_reason"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`

	Supervisor *User `gorm:"foreignKey:SupervisorID" json:"-"`
	Pso        *User `gorm:"foreignKey:PsoID" json:"-"`
}

func (TalkSession) TableName() string {
	return "talk_sessions"
}
