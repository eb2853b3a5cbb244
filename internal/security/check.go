package security

import "context"

// Status 检查结果状态，固定三种取值
type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
	StatusWarn Status = "WARN"

	// statusUnknown 状态机哨兵值，仅用于首个周期之前
	statusUnknown Status = "UNKNOWN"
)

// CheckResult 单项安全检查结果，每个周期重新生成，不落盘
type CheckResult struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// Provider 检查提供方。
// 返回固定顺序的检查列表；单项检查失败必须降级为 WARN 结果而不是错误。
type Provider interface {
	RunAudit(ctx context.Context) []CheckResult
}

// Alerter 告警出口
type Alerter interface {
	SendAlert(message string)
}
