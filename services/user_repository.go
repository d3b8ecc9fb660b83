package services

import (
	"errors"

	"pso-monitor-service/models"

	"gorm.io/gorm"
)

// InterfaceUserRepository 用户存取接口 (用户由外部目录创建，本服务只读 + 修改主管关联)
type InterfaceUserRepository interface {
	FindByID(id uint) (*models.User, error)
	FindByExternalID(externalID string) (*models.User, error)
	FindByEmail(email string) (*models.User, error)
	FindByEmails(emails []string) ([]models.User, error)
	FindByRolesWithSupervisor(roles []models.Role) ([]models.User, error)
	UpdateSupervisorByEmails(emails []string, supervisorID *uint) (int64, error)
}

// UserRepository 基于GORM的用户存取实现
type UserRepository struct {
	DB *gorm.DB
}

// NewUserRepository 创建用户存取实现
func NewUserRepository(db *gorm.DB) InterfaceUserRepository {
	return &UserRepository{DB: db}
}

// FindByID 按内部ID查询用户
func (r *UserRepository) FindByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.DB.Preload("Supervisor").First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FindByExternalID 按外部目录ID查询用户
func (r *UserRepository) FindByExternalID(externalID string) (*models.User, error) {
	var user models.User
	if err := r.DB.Preload("Supervisor").Where("external_id = ?", externalID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FindByEmail 按邮箱查询用户，邮箱统一小写比较
func (r *UserRepository) FindByEmail(email string) (*models.User, error) {
	var user models.User
	if err := r.DB.Preload("Supervisor").Where("email = ?", models.NormalizeEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FindByEmails 批量按邮箱查询用户
func (r *UserRepository) FindByEmails(emails []string) ([]models.User, error) {
	normalized := make([]string, 0, len(emails))
	for _, e := range emails {
		normalized = append(normalized, models.NormalizeEmail(e))
	}

	var users []models.User
	if err := r.DB.Preload("Supervisor").Where("email IN ?", normalized).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// FindByRolesWithSupervisor 按角色查询用户并预加载主管
func (r *UserRepository) FindByRolesWithSupervisor(roles []models.Role) ([]models.User, error) {
	var users []models.User
	if err := r.DB.Preload("Supervisor").
		Where("role IN ?", roles).
		Order("email ASC").
		Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateSupervisorByEmails 批量更新主管关联，返回受影响行数
func (r *UserRepository) UpdateSupervisorByEmails(emails []string, supervisorID *uint) (int64, error) {
	normalized := make([]string, 0, len(emails))
	for _, e := range emails {
		normalized = append(normalized, models.NormalizeEmail(e))
	}

	result := r.DB.Model(&models.User{}).
		Where("email IN ?", normalized).
		Update("supervisor_id", supervisorID)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
