package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/dushixiang/miniops/internal/models"
)

// MetricRepo 系统指标数据访问层
type MetricRepo struct {
	db *gorm.DB
}

func NewMetricRepo(db *gorm.DB) *MetricRepo {
	return &MetricRepo{db: db}
}

// CreateSample 写入一条采样
func (r *MetricRepo) CreateSample(ctx context.Context, sample *models.MetricSample) error {
	return r.db.WithContext(ctx).Create(sample).Error
}

// FindRecent 查询最近的采样（按时间倒序）
func (r *MetricRepo) FindRecent(ctx context.Context, limit int) ([]models.MetricSample, error) {
	var samples []models.MetricSample
	err := r.db.WithContext(ctx).
		Order("timestamp DESC").
		Limit(limit).
		Find(&samples).Error
	return samples, err
}
