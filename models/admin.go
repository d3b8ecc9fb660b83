package models

import "time"

// Admin represents the dashboard administrator account
type Admin struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"type:varchar(50);unique;not null" json:"username"`
	Password  string    `gorm:"type:varchar(100);not null" json:"-"` // Password not exposed in JSON
	Role      string    `gorm:"type:varchar(20)" json:"role"`
	Status    string    `gorm:"type:varchar(20)" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
