package metric

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"go.uber.org/zap"

	"github.com/dushixiang/miniops/internal/i18n"
	"github.com/dushixiang/miniops/internal/models"
	"github.com/dushixiang/miniops/internal/repo"
)

const (
	criticalCPUPercent  = 95.0
	criticalDiskPercent = 90.0
)

// Alerter 告警出口
type Alerter interface {
	SendAlert(message string)
}

// Collector 系统指标采集器。
// 周期性采集 CPU/内存/磁盘指标并落库，超过阈值时发送告警。
// 阈值告警与其他告警共用分发器的冷却窗口，所以至多每30分钟重复一次。
type Collector struct {
	repo     *repo.MetricRepo
	notifier Alerter
	logger   *zap.Logger
	lang     i18n.Lang

	// 采集函数可注入，便于测试
	collect func(ctx context.Context) (models.MetricSample, error)

	mu      sync.Mutex
	current models.MetricSample
}

func NewCollector(metricRepo *repo.MetricRepo, notifier Alerter, logger *zap.Logger, lang i18n.Lang) *Collector {
	return &Collector{
		repo:     metricRepo,
		notifier: notifier,
		logger:   logger,
		lang:     lang,
		collect:  collectSample,
	}
}

func collectSample(ctx context.Context) (models.MetricSample, error) {
	sample := models.MetricSample{Timestamp: time.Now().Unix()}

	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return sample, fmt.Errorf("采集CPU失败: %w", err)
	}
	if len(percents) > 0 {
		sample.CPUUsage = percents[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return sample, fmt.Errorf("采集内存失败: %w", err)
	}
	sample.MemoryUsed = vm.Used
	sample.MemoryTotal = vm.Total

	usage, err := disk.UsageWithContext(ctx, "/")
	if err != nil {
		return sample, fmt.Errorf("采集磁盘失败: %w", err)
	}
	sample.DiskUsed = usage.Used
	sample.DiskTotal = usage.Total

	return sample, nil
}

// RunCycle 执行一次采集周期：采集、阈值判断、落库
func (c *Collector) RunCycle(ctx context.Context) {
	sample, err := c.collect(ctx)
	if err != nil {
		c.logger.Error("采集系统指标失败", zap.Error(err))
		return
	}

	c.mu.Lock()
	c.current = sample
	c.mu.Unlock()

	if sample.CPUUsage > criticalCPUPercent {
		c.notifier.SendAlert(i18n.TVal("alert.critical_cpu", c.lang,
			fmt.Sprintf("%.1f", sample.CPUUsage)))
	}
	if sample.DiskTotal > 0 {
		diskPercent := float64(sample.DiskUsed) / float64(sample.DiskTotal) * 100
		if diskPercent > criticalDiskPercent {
			c.notifier.SendAlert(i18n.TVal("alert.low_disk", c.lang,
				fmt.Sprintf("%.1f", diskPercent)))
		}
	}

	if err := c.repo.CreateSample(ctx, &sample); err != nil {
		c.logger.Error("写入指标采样失败", zap.Error(err))
	}
}

// Current 返回最近一次采样
func (c *Collector) Current() models.MetricSample {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// History 返回最近的采样历史
func (c *Collector) History(ctx context.Context, limit int) ([]models.MetricSample, error) {
	return c.repo.FindRecent(ctx, limit)
}
