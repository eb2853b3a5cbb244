package security

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/dushixiang/miniops/internal/i18n"
)

const (
	sshdConfigPath   = "/etc/ssh/sshd_config"
	dockerSocketPath = "/var/run/docker.sock"

	commandTimeout = 10 * time.Second
)

// allowedPorts 端口检查白名单
var allowedPorts = map[string]struct{}{
	"22": {}, "80": {}, "443": {}, "3000": {},
}

// Auditor 安全基线检查器。
// 读取系统配置文件、执行系统命令并汇总为检查结果列表。
type Auditor struct {
	fs     afero.Fs
	logger *zap.Logger
	lang   i18n.Lang

	// 可注入的命令执行函数，便于测试
	runCommand func(ctx context.Context, bin string, args ...string) ([]byte, error)
}

// NewAuditor 创建检查器，fs 为 nil 时使用真实文件系统
func NewAuditor(fs afero.Fs, logger *zap.Logger, lang i18n.Lang) *Auditor {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Auditor{
		fs:         fs,
		logger:     logger,
		lang:       lang,
		runCommand: runCommand,
	}
}

func runCommand(ctx context.Context, bin string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	return exec.CommandContext(ctx, bin, args...).Output()
}

// RunAudit 执行全部检查。检查并发执行，结果保持注册顺序。
func (a *Auditor) RunAudit(ctx context.Context) []CheckResult {
	checks := []func(context.Context) CheckResult{
		a.checkSSHRootLogin,
		a.checkUFWStatus,
		a.checkDockerSocket,
		a.checkDiskEncryption,
		a.checkFail2banStatus,
		a.checkSSHPasswordAuth,
		a.checkListeningPorts,
	}

	results := make([]CheckResult, len(checks))
	p := pool.New().WithMaxGoroutines(4)
	for i, check := range checks {
		p.Go(func() {
			results[i] = check(ctx)
		})
	}
	p.Wait()
	return results
}

// findSystemBinary 在标准路径中查找可执行文件，找不到时回退到 PATH
func (a *Auditor) findSystemBinary(name string) string {
	candidates := []string{
		"/usr/sbin/" + name,
		"/usr/bin/" + name,
		"/sbin/" + name,
		"/bin/" + name,
	}
	for _, path := range candidates {
		info, err := a.fs.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		if info.Mode()&0o111 != 0 {
			a.logger.Debug("找到系统命令", zap.String("name", name), zap.String("path", path))
			return path
		}
	}
	a.logger.Debug("标准路径中未找到命令", zap.String("name", name))
	return name
}

func (a *Auditor) checkSSHRootLogin(_ context.Context) CheckResult {
	name := i18n.T("audit.ssh_root.name", a.lang)

	content, err := afero.ReadFile(a.fs, sshdConfigPath)
	if err != nil {
		return CheckResult{Name: name, Status: StatusWarn, Message: i18n.T("audit.ssh_config.warn", a.lang)}
	}

	for _, line := range strings.Split(string(content), "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "PermitRootLogin") {
			continue
		}
		if strings.Contains(trimmed, "yes") {
			return CheckResult{Name: name, Status: StatusFail, Message: i18n.T("audit.ssh_root.fail", a.lang)}
		}
		break
	}
	return CheckResult{Name: name, Status: StatusPass, Message: i18n.T("audit.ssh_root.pass", a.lang)}
}

func (a *Auditor) checkSSHPasswordAuth(_ context.Context) CheckResult {
	name := i18n.T("audit.ssh_passwd.name", a.lang)

	content, err := afero.ReadFile(a.fs, sshdConfigPath)
	if err != nil {
		return CheckResult{Name: name, Status: StatusWarn, Message: i18n.T("audit.ssh_config.warn", a.lang)}
	}

	for _, line := range strings.Split(string(content), "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "PasswordAuthentication") {
			continue
		}
		if strings.Contains(trimmed, "no") {
			return CheckResult{Name: name, Status: StatusPass, Message: i18n.T("audit.ssh_passwd.pass", a.lang)}
		}
		break
	}
	return CheckResult{Name: name, Status: StatusFail, Message: i18n.T("audit.ssh_passwd.fail", a.lang)}
}

func (a *Auditor) checkUFWStatus(ctx context.Context) CheckResult {
	name := i18n.T("audit.ufw.name", a.lang)

	output, err := a.runCommand(ctx, a.findSystemBinary("ufw"), "status")
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// 命令存在但执行失败，多半是权限不足
			a.logger.Warn("ufw 命令执行失败", zap.ByteString("stderr", exitErr.Stderr))
			return CheckResult{Name: name, Status: StatusWarn, Message: i18n.T("audit.ufw.error", a.lang)}
		}
		a.logger.Warn("无法执行 ufw", zap.Error(err))
		return CheckResult{Name: name, Status: StatusWarn, Message: i18n.T("audit.ufw.warn", a.lang)}
	}

	if strings.Contains(string(output), "Status: active") {
		return CheckResult{Name: name, Status: StatusPass, Message: i18n.T("audit.ufw.pass", a.lang)}
	}
	return CheckResult{Name: name, Status: StatusFail, Message: i18n.T("audit.ufw.fail", a.lang)}
}

func (a *Auditor) checkDockerSocket(_ context.Context) CheckResult {
	name := i18n.T("audit.docker_sock.name", a.lang)

	info, err := a.fs.Stat(dockerSocketPath)
	if err != nil {
		return CheckResult{Name: name, Status: StatusWarn, Message: i18n.T("audit.docker_sock.warn", a.lang)}
	}
	if info.Mode().Perm()&0o002 != 0 {
		return CheckResult{Name: name, Status: StatusFail, Message: i18n.T("audit.docker_sock.fail", a.lang)}
	}
	return CheckResult{Name: name, Status: StatusPass, Message: i18n.T("audit.docker_sock.pass", a.lang)}
}

func (a *Auditor) checkDiskEncryption(ctx context.Context) CheckResult {
	name := i18n.T("audit.disk_enc.name", a.lang)

	output, err := a.runCommand(ctx, a.findSystemBinary("lsblk"), "-o", "TYPE")
	if err != nil {
		return CheckResult{Name: name, Status: StatusWarn, Message: i18n.T("audit.disk_enc.error", a.lang)}
	}
	if strings.Contains(string(output), "crypt") {
		return CheckResult{Name: name, Status: StatusPass, Message: i18n.T("audit.disk_enc.pass", a.lang)}
	}
	return CheckResult{Name: name, Status: StatusWarn, Message: i18n.T("audit.disk_enc.warn", a.lang)}
}

func (a *Auditor) checkFail2banStatus(ctx context.Context) CheckResult {
	name := i18n.T("audit.fail2ban.name", a.lang)

	_, err := a.runCommand(ctx, a.findSystemBinary("systemctl"), "is-active", "fail2ban")
	if err == nil {
		return CheckResult{Name: name, Status: StatusPass, Message: i18n.T("audit.fail2ban.pass", a.lang)}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return CheckResult{Name: name, Status: StatusWarn, Message: i18n.T("audit.fail2ban.warn", a.lang)}
	}
	return CheckResult{Name: name, Status: StatusWarn, Message: i18n.T("audit.fail2ban.missing", a.lang)}
}

func (a *Auditor) checkListeningPorts(ctx context.Context) CheckResult {
	name := i18n.T("audit.ports.name", a.lang)

	output, err := a.runCommand(ctx, a.findSystemBinary("ss"), "-tulpn")
	if err != nil {
		return CheckResult{Name: name, Status: StatusWarn, Message: i18n.T("audit.ports.error", a.lang)}
	}

	suspicious := parseSuspiciousPorts(string(output))
	if len(suspicious) == 0 {
		return CheckResult{Name: name, Status: StatusPass, Message: i18n.T("audit.ports.pass", a.lang)}
	}
	return CheckResult{
		Name:    name,
		Status:  StatusWarn,
		Message: fmt.Sprintf("%s: %s", i18n.T("audit.ports.warn", a.lang), strings.Join(suspicious, ", ")),
	}
}

// parseSuspiciousPorts 从 ss -tulpn 输出中提取不在白名单内的监听端口
func parseSuspiciousPorts(output string) []string {
	seen := make(map[string]struct{})
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "LISTEN") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}
		local := fields[4]
		idx := strings.LastIndexByte(local, ':')
		if idx < 0 || idx == len(local)-1 {
			continue
		}
		port := local[idx+1:]
		if _, ok := allowedPorts[port]; !ok {
			seen[port] = struct{}{}
		}
	}

	ports := make([]string, 0, len(seen))
	for port := range seen {
		ports = append(ports, port)
	}
	sort.Strings(ports)
	return ports
}
