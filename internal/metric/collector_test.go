package metric

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/dushixiang/miniops/internal/database"
	"github.com/dushixiang/miniops/internal/i18n"
	"github.com/dushixiang/miniops/internal/models"
	"github.com/dushixiang/miniops/internal/repo"
)

type fakeAlerter struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeAlerter) SendAlert(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
}

func (f *fakeAlerter) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

func newTestCollector(t *testing.T) (*Collector, *fakeAlerter) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	alerter := &fakeAlerter{}
	c := NewCollector(repo.NewMetricRepo(db), alerter, zap.NewNop(), i18n.LangEN)
	return c, alerter
}

func staticSample(sample models.MetricSample) func(context.Context) (models.MetricSample, error) {
	return func(context.Context) (models.MetricSample, error) { return sample, nil }
}

func TestRunCyclePersistsAndUpdatesCurrent(t *testing.T) {
	c, alerter := newTestCollector(t)
	c.collect = staticSample(models.MetricSample{
		Timestamp: 1700000000, CPUUsage: 12.5,
		MemoryUsed: 1 << 30, MemoryTotal: 4 << 30,
		DiskUsed: 10 << 30, DiskTotal: 100 << 30,
	})

	c.RunCycle(context.Background())

	if got := c.Current(); got.CPUUsage != 12.5 {
		t.Errorf("Current 应返回最近采样, 实际 %+v", got)
	}
	history, err := c.History(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 {
		t.Errorf("想要 1 条历史记录, 实际 %d", len(history))
	}
	if got := alerter.all(); len(got) != 0 {
		t.Errorf("正常指标不应触发告警, 实际 %v", got)
	}
}

func TestRunCycleCPUThresholdAlert(t *testing.T) {
	c, alerter := newTestCollector(t)
	c.collect = staticSample(models.MetricSample{CPUUsage: 97.3, DiskTotal: 100, DiskUsed: 1})

	c.RunCycle(context.Background())

	got := alerter.all()
	if len(got) != 1 {
		t.Fatalf("CPU超阈值应触发 1 条告警, 实际 %d", len(got))
	}
	if !strings.Contains(got[0], "97.3") {
		t.Errorf("告警应包含具体数值: %q", got[0])
	}
}

func TestRunCycleDiskThresholdAlert(t *testing.T) {
	c, alerter := newTestCollector(t)
	c.collect = staticSample(models.MetricSample{CPUUsage: 10, DiskUsed: 95, DiskTotal: 100})

	c.RunCycle(context.Background())

	got := alerter.all()
	if len(got) != 1 {
		t.Fatalf("磁盘超阈值应触发 1 条告警, 实际 %d", len(got))
	}
	if !strings.Contains(got[0], "95.0") {
		t.Errorf("告警应包含使用率: %q", got[0])
	}
}

func TestRunCycleThresholdBoundaryNotInclusive(t *testing.T) {
	c, alerter := newTestCollector(t)
	c.collect = staticSample(models.MetricSample{CPUUsage: 95.0, DiskUsed: 90, DiskTotal: 100})

	c.RunCycle(context.Background())

	if got := alerter.all(); len(got) != 0 {
		t.Errorf("等于阈值不应触发告警, 实际 %v", got)
	}
}

func TestRunCycleCollectErrorSkipsEverything(t *testing.T) {
	c, alerter := newTestCollector(t)
	c.collect = func(context.Context) (models.MetricSample, error) {
		return models.MetricSample{}, errors.New("采集失败")
	}

	c.RunCycle(context.Background())

	history, err := c.History(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 0 {
		t.Errorf("采集失败不应落库, 实际 %d 条", len(history))
	}
	if got := alerter.all(); len(got) != 0 {
		t.Errorf("采集失败不应触发告警, 实际 %v", got)
	}
}

func TestRunCycleZeroDiskTotalSafe(t *testing.T) {
	c, alerter := newTestCollector(t)
	c.collect = staticSample(models.MetricSample{CPUUsage: 10})

	c.RunCycle(context.Background())

	if got := alerter.all(); len(got) != 0 {
		t.Errorf("磁盘总量为0时不应触发告警, 实际 %v", got)
	}
}
