package models

import "time"

// RecordingStatus 录像会话状态
type RecordingStatus string

const (
	RecordingActive    RecordingStatus = "Active"
	RecordingCompleted RecordingStatus = "Completed"
	RecordingFailed    RecordingStatus = "Failed"
)

// RecordingSession represents one egress recording job against a media room
// Completed/Failed 为终态，不会重开；重新开始录像时新建一行
type RecordingSession struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	RoomName     string          `gorm:"type:varchar(100);index;not null" json:"room_name"` // 媒体房间名，一般为被录像用户的邮箱
	EgressID     string          `gorm:"type:varchar(100);index;not null" json:"egress_id"`
	InitiatorID  uint            `gorm:"index;not null" json:"initiator_id"`
	SubjectID    *uint           `gorm:"index" json:"subject_id"`
	SubjectLabel string          `gorm:"type:varchar(100)" json:"subject_label"`
	Status       RecordingStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	StartedAt    time.Time       `gorm:"not null" json:"started_at"`
	StoppedAt    *time.Time      `json:"stopped_at"`
	BlobPath     *string         `gorm:"type:varchar(500)" json:"blob_path"`
	BlobURL      *string         `gorm:"type:varchar(1000)" json:"blob_url"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`

	Initiator *User `gorm:"foreignKey:InitiatorID" json:"-"`
	Subject   *User `gorm:"foreignKey:SubjectID" json:"-"`
}

func (RecordingSession) TableName() string {
	return "recording_sessions"
}

// IsTerminal 是否已到终态
func (s *RecordingSession) IsTerminal() bool {
	return s.Status == RecordingCompleted || s.Status == RecordingFailed
}
