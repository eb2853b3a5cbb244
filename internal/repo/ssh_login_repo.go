package repo

import (
	"context"

	"github.com/go-orz/orz"
	"gorm.io/gorm"

	"github.com/dushixiang/miniops/internal/models"
)

// SSHLoginRepo SSH登录日志数据访问层
type SSHLoginRepo struct {
	orz.Repository[models.SSHLoginLog, string]
	db *gorm.DB
}

// NewSSHLoginRepo 创建仓库
func NewSSHLoginRepo(db *gorm.DB) *SSHLoginRepo {
	return &SSHLoginRepo{
		Repository: orz.NewRepository[models.SSHLoginLog, string](db),
		db:         db,
	}
}

// CreateLog 写入一条登录日志
func (r *SSHLoginRepo) CreateLog(ctx context.Context, log *models.SSHLoginLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// FindRecent 查询最近的登录日志（按登录时间倒序）
func (r *SSHLoginRepo) FindRecent(ctx context.Context, limit int) ([]models.SSHLoginLog, error) {
	var logs []models.SSHLoginLog
	err := r.db.WithContext(ctx).
		Order("timestamp DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// CountByIP 统计某个IP的登录日志数量
func (r *SSHLoginRepo) CountByIP(ctx context.Context, ip string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SSHLoginLog{}).
		Where("ip = ?", ip).
		Count(&count).Error
	return count, err
}
