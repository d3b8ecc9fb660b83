package services

import (
	"time"

	"pso-monitor-service/models"

	"gorm.io/gorm"
)

// InterfaceCommandRepository 待投递指令存取接口
type InterfaceCommandRepository interface {
	Create(command *models.PendingCommand) error
	MarkPublished(id uint, at time.Time) error
	FindPendingByUserID(userID uint) ([]models.PendingCommand, error)
}

// CommandRepository 基于GORM的待投递指令存取实现
type CommandRepository struct {
	DB *gorm.DB
}

// NewCommandRepository 创建待投递指令存取实现
func NewCommandRepository(db *gorm.DB) InterfaceCommandRepository {
	return &CommandRepository{DB: db}
}

// Create 落库一条待投递指令
func (r *CommandRepository) Create(command *models.PendingCommand) error {
	return r.DB.Create(command).Error
}

// MarkPublished 确认投递后标记为已发布
func (r *CommandRepository) MarkPublished(id uint, at time.Time) error {
	return r.DB.Model(&models.PendingCommand{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       models.CommandPublished,
			"published_at": at,
		}).Error
}

// FindPendingByUserID 查询某用户所有待投递指令，按请求时间排序供重放使用
func (r *CommandRepository) FindPendingByUserID(userID uint) ([]models.PendingCommand, error) {
	var commands []models.PendingCommand
	if err := r.DB.Where("user_id = ? AND status = ?", userID, models.CommandPending).
		Order("requested_at ASC").
		Find(&commands).Error; err != nil {
		return nil, err
	}
	return commands, nil
}
