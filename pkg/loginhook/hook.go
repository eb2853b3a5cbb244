package loginhook

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

const (
	PAMConfigFile  = "/etc/pam.d/sshd"
	HookBinaryPath = "/usr/local/bin/miniops"
	HookCommand    = "ssh-login-hook"
)

// HookManager PAM Hook 管理器
type HookManager struct{}

func NewHookManager() *HookManager {
	return &HookManager{}
}

func pamConfigLine() string {
	return fmt.Sprintf("session optional pam_exec.so %s %s", HookBinaryPath, HookCommand)
}

// Install 安装 PAM Hook（幂等）
func (h *HookManager) Install() error {
	if os.Geteuid() != 0 {
		return fmt.Errorf("%w: 安装 PAM Hook 需要 root 权限", os.ErrPermission)
	}

	if h.isInstalled() {
		slog.Info("PAM Hook 已安装，跳过")
		return nil
	}

	if err := h.ensureHookBinary(); err != nil {
		return fmt.Errorf("安装 Hook 可执行文件失败: %w", err)
	}

	if err := h.modifyPAMConfig(true); err != nil {
		return fmt.Errorf("修改 PAM 配置失败: %w", err)
	}

	slog.Info("PAM Hook 安装成功")
	return nil
}

// Uninstall 卸载 PAM Hook
func (h *HookManager) Uninstall() error {
	if err := h.modifyPAMConfig(false); err != nil {
		slog.Warn("移除 PAM 配置失败", "error", err)
	}
	slog.Info("PAM Hook 卸载成功")
	return nil
}

// isInstalled 检查配置文件中是否已包含我们的配置行
func (h *HookManager) isInstalled() bool {
	f, err := os.Open(PAMConfigFile)
	if err != nil {
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == pamConfigLine() {
			return true
		}
	}
	return false
}

// ensureHookBinary 确保 Hook 可执行文件存在（软链到当前可执行文件）
func (h *HookManager) ensureHookBinary() error {
	execPath, err := os.Executable()
	if err != nil {
		return err
	}
	if execPath == HookBinaryPath {
		return nil
	}
	if _, err := os.Lstat(HookBinaryPath); err == nil {
		_ = os.Remove(HookBinaryPath)
	}
	return os.Symlink(execPath, HookBinaryPath)
}

// modifyPAMConfig 添加或移除 PAM 配置行
func (h *HookManager) modifyPAMConfig(install bool) error {
	content, err := os.ReadFile(PAMConfigFile)
	if err != nil {
		return err
	}

	line := pamConfigLine()
	var lines []string
	found := false
	for _, l := range strings.Split(string(content), "\n") {
		if strings.TrimSpace(l) == line {
			found = true
			if !install {
				continue
			}
		}
		lines = append(lines, l)
	}

	if install {
		if found {
			return nil
		}
		lines = append(lines, line)
	} else if !found {
		return nil
	}

	out := strings.Join(lines, "\n")
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return os.WriteFile(PAMConfigFile, []byte(out), 0644)
}
