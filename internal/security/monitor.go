package security

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/dushixiang/miniops/internal/i18n"
)

// Monitor 安全状态监控。
// 周期性执行检查，对比每个检查项的上一次状态，只在状态翻转时告警：
// 从 PASS 或未知变为 FAIL 时发送"发现问题"，FAIL 变为 PASS 时发送"问题解决"，
// 其余变化（含 WARN 相关）静默。状态表只由本监控自身写入。
type Monitor struct {
	provider Provider
	notifier Alerter
	logger   *zap.Logger
	lang     i18n.Lang

	// runMu 保证同一时间只有一个审计周期在执行
	runMu sync.Mutex

	mu      sync.Mutex
	states  map[string]Status
	latest  []CheckResult
	ranOnce bool
}

func NewMonitor(provider Provider, notifier Alerter, logger *zap.Logger, lang i18n.Lang) *Monitor {
	return &Monitor{
		provider: provider,
		notifier: notifier,
		logger:   logger,
		lang:     lang,
		states:   make(map[string]Status),
	}
}

// RunCycle 执行一个审计周期并返回本次检查结果。
// 同一时间只允许一个周期在执行，后来者等待而不是并发。
func (m *Monitor) RunCycle(ctx context.Context) []CheckResult {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	results := m.provider.RunAudit(ctx)

	alerts := m.reconcile(results)
	for _, alert := range alerts {
		m.notifier.SendAlert(alert)
	}

	m.logger.Debug("安全审计周期完成",
		zap.Int("checks", len(results)),
		zap.Int("alerts", len(alerts)))
	return results
}

// reconcile 对比新旧状态并生成告警文本。
// 无论是否触发告警，所有检查项的状态都会被覆盖更新。
func (m *Monitor) reconcile(results []CheckResult) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var alerts []string
	for _, check := range results {
		old, ok := m.states[check.Name]
		if !ok {
			old = statusUnknown
		}

		switch {
		// WARN 与 FAIL 互转不告警，避免抖动检查项反复刷屏
		case check.Status == StatusFail && (old == statusUnknown || old == StatusPass):
			alerts = append(alerts, fmt.Sprintf("%s\n\n%s: %s\n%s: %s",
				i18n.T("security.detected", m.lang),
				i18n.T("security.check", m.lang), check.Name,
				i18n.T("security.message", m.lang), check.Message))
		case check.Status == StatusPass && old == StatusFail:
			alerts = append(alerts, fmt.Sprintf("%s\n\n%s: %s",
				i18n.T("security.resolved", m.lang),
				i18n.T("security.check", m.lang), check.Name))
		}

		m.states[check.Name] = check.Status
	}

	m.latest = results
	m.ranOnce = true
	return alerts
}

// Latest 返回最近一个周期的检查结果。
// 第一个周期还没执行时同步执行一次。
func (m *Monitor) Latest(ctx context.Context) []CheckResult {
	m.mu.Lock()
	ranOnce := m.ranOnce
	latest := m.latest
	m.mu.Unlock()

	if !ranOnce {
		return m.RunCycle(ctx)
	}
	return latest
}
