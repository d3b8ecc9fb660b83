package services

import (
	"errors"
	"time"

	"pso-monitor-service/models"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// InterfaceTalkRepository 对讲会话存取接口
type InterfaceTalkRepository interface {
	Create(session *models.TalkSession) error
	FindByIDWithPso(id uint) (*models.TalkSession, error)
	FindActiveByPsoID(psoID uint) ([]models.TalkSession, error)
	FindActiveBySupervisorID(supervisorID uint) ([]models.TalkSession, error)
	Stop(id uint, reason models.TalkStopReason, at time.Time) error
}

// TalkRepository 基于GORM的对讲会话存取实现
type TalkRepository struct {
	DB *gorm.DB
}

// NewTalkRepository 创建对讲会话存取实现
func NewTalkRepository(db *gorm.DB) InterfaceTalkRepository {
	return &TalkRepository{DB: db}
}

// Create 落库新会话；talk_sessions 上的活跃唯一索引兜底并发创建，
// 撞索引的插入映射为会话冲突错误
func (r *TalkRepository) Create(session *models.TalkSession) error {
	if err := r.DB.Create(session).Error; err != nil {
		if isDuplicateActiveSession(err) {
			return &TalkSessionActiveError{}
		}
		return err
	}
	return nil
}

// isDuplicateActiveSession 判断插入错误是否为活跃唯一索引冲突 (MySQL 1062)
func isDuplicateActiveSession(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

// FindByIDWithPso 按ID查询会话并预加载 PSO 投影 (PSO 可能已被删除)
func (r *TalkRepository) FindByIDWithPso(id uint) (*models.TalkSession, error) {
	var session models.TalkSession
	if err := r.DB.Preload("Pso").Preload("Supervisor").First(&session, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTalkSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

// FindActiveByPsoID 查询某 PSO 进行中的会话
func (r *TalkRepository) FindActiveByPsoID(psoID uint) ([]models.TalkSession, error) {
	var sessions []models.TalkSession
	if err := r.DB.Preload("Supervisor").
		Where("pso_id = ? AND stopped_at IS NULL", psoID).
		Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// FindActiveBySupervisorID 查询某主管持有的全部进行中会话
func (r *TalkRepository) FindActiveBySupervisorID(supervisorID uint) ([]models.TalkSession, error) {
	var sessions []models.TalkSession
	if err := r.DB.Preload("Pso").
		Where("supervisor_id = ? AND stopped_at IS NULL", supervisorID).
		Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// Stop 记录结束时间与原因，终态后不再变更
func (r *TalkRepository) Stop(id uint, reason models.TalkStopReason, at time.Time) error {
	return r.DB.Model(&models.TalkSession{}).
		Where("id = ? AND stopped_at IS NULL", id).
		Updates(map[string]interface{}{
			"stopped_at":  at,
			"stop_reason": reason,
		}).Error
}
