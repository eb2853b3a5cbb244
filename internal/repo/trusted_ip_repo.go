package repo

import (
	"context"

	"github.com/go-orz/orz"
	"gorm.io/gorm"

	"github.com/dushixiang/miniops/internal/models"
)

// TrustedIPRepo 受信任IP数据访问层
type TrustedIPRepo struct {
	orz.Repository[models.TrustedIP, string]
	db *gorm.DB
}

// NewTrustedIPRepo 创建仓库
func NewTrustedIPRepo(db *gorm.DB) *TrustedIPRepo {
	return &TrustedIPRepo{
		Repository: orz.NewRepository[models.TrustedIP, string](db),
		db:         db,
	}
}

// CountByIP 统计某个IP是否在白名单内
func (r *TrustedIPRepo) CountByIP(ctx context.Context, ip string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.TrustedIP{}).
		Where("ip = ?", ip).
		Count(&count).Error
	return count, err
}

// FindAllOrdered 查询全部白名单（最近添加的在前）
func (r *TrustedIPRepo) FindAllOrdered(ctx context.Context) ([]models.TrustedIP, error) {
	var ips []models.TrustedIP
	err := r.db.WithContext(ctx).
		Order("added_at DESC").
		Find(&ips).Error
	return ips, err
}

// CreateTrustedIP 新增白名单条目
func (r *TrustedIPRepo) CreateTrustedIP(ctx context.Context, ip *models.TrustedIP) error {
	return r.db.WithContext(ctx).Create(ip).Error
}

// DeleteByID 按ID删除白名单条目，不存在时不报错
func (r *TrustedIPRepo) DeleteByID(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&models.TrustedIP{}, "id = ?", id).Error
}
