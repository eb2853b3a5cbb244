package models

// MetricSample 系统指标采样
type MetricSample struct {
	ID          int64   `gorm:"primaryKey;autoIncrement" json:"-"`
	CPUUsage    float64 `gorm:"column:cpu_usage" json:"cpu_usage"`       // CPU使用率(百分比)
	MemoryUsed  uint64  `gorm:"column:memory_used" json:"memory_used"`   // 已用内存(字节)
	MemoryTotal uint64  `gorm:"column:memory_total" json:"memory_total"` // 总内存(字节)
	DiskUsed    uint64  `gorm:"column:disk_used" json:"disk_used"`       // 已用磁盘(字节)
	DiskTotal   uint64  `gorm:"column:disk_total" json:"disk_total"`     // 总磁盘(字节)
	Timestamp   int64   `gorm:"index" json:"timestamp"`                  // 采样时间（秒时间戳）
}

func (MetricSample) TableName() string {
	return "metrics"
}
