package security

import (
	"context"
	"errors"
	"os/exec"
	"reflect"
	"testing"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/dushixiang/miniops/internal/i18n"
)

func newTestAuditor(fs afero.Fs) *Auditor {
	return NewAuditor(fs, zap.NewNop(), i18n.LangEN)
}

func writeSSHDConfig(t *testing.T, fs afero.Fs, content string) {
	t.Helper()
	if err := afero.WriteFile(fs, sshdConfigPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestCheckSSHRootLogin(t *testing.T) {
	tests := []struct {
		name    string
		content string
		missing bool
		want    Status
	}{
		{name: "permit yes", content: "Port 22\nPermitRootLogin yes\n", want: StatusFail},
		{name: "permit no", content: "PermitRootLogin no\n", want: StatusPass},
		{name: "prohibit password", content: "PermitRootLogin prohibit-password\n", want: StatusPass},
		{name: "directive absent", content: "Port 22\n", want: StatusPass},
		{name: "config unreadable", missing: true, want: StatusWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			if !tt.missing {
				writeSSHDConfig(t, fs, tt.content)
			}
			got := newTestAuditor(fs).checkSSHRootLogin(context.Background())
			if got.Status != tt.want {
				t.Errorf("想要 %s, 实际 %s (%s)", tt.want, got.Status, got.Message)
			}
		})
	}
}

func TestCheckSSHPasswordAuth(t *testing.T) {
	tests := []struct {
		name    string
		content string
		missing bool
		want    Status
	}{
		{name: "disabled", content: "PasswordAuthentication no\n", want: StatusPass},
		{name: "enabled", content: "PasswordAuthentication yes\n", want: StatusFail},
		{name: "directive absent", content: "Port 22\n", want: StatusFail},
		{name: "commented out", content: "#PasswordAuthentication no\n", want: StatusFail},
		{name: "config unreadable", missing: true, want: StatusWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			if !tt.missing {
				writeSSHDConfig(t, fs, tt.content)
			}
			got := newTestAuditor(fs).checkSSHPasswordAuth(context.Background())
			if got.Status != tt.want {
				t.Errorf("想要 %s, 实际 %s (%s)", tt.want, got.Status, got.Message)
			}
		})
	}
}

func TestCheckDockerSocket(t *testing.T) {
	t.Run("world writable", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		if err := afero.WriteFile(fs, dockerSocketPath, nil, 0666); err != nil {
			t.Fatal(err)
		}
		if got := newTestAuditor(fs).checkDockerSocket(context.Background()); got.Status != StatusFail {
			t.Errorf("0666 应判定 FAIL, 实际 %s", got.Status)
		}
	})

	t.Run("safe permissions", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		if err := afero.WriteFile(fs, dockerSocketPath, nil, 0660); err != nil {
			t.Fatal(err)
		}
		if got := newTestAuditor(fs).checkDockerSocket(context.Background()); got.Status != StatusPass {
			t.Errorf("0660 应判定 PASS, 实际 %s", got.Status)
		}
	})

	t.Run("socket absent", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		if got := newTestAuditor(fs).checkDockerSocket(context.Background()); got.Status != StatusWarn {
			t.Errorf("缺失应判定 WARN, 实际 %s", got.Status)
		}
	})
}

// realExitError 通过真实进程构造 *exec.ExitError
func realExitError(t *testing.T) error {
	t.Helper()
	_, err := exec.Command("sh", "-c", "exit 1").Output()
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Skip("无法构造 ExitError")
	}
	return err
}

func TestCheckUFWStatus(t *testing.T) {
	tests := []struct {
		name   string
		output string
		err    error
		want   Status
	}{
		{name: "active", output: "Status: active\n", want: StatusPass},
		{name: "inactive", output: "Status: inactive\n", want: StatusFail},
		{name: "not installed", err: exec.ErrNotFound, want: StatusWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAuditor(afero.NewMemMapFs())
			a.runCommand = func(_ context.Context, _ string, _ ...string) ([]byte, error) {
				return []byte(tt.output), tt.err
			}
			if got := a.checkUFWStatus(context.Background()); got.Status != tt.want {
				t.Errorf("想要 %s, 实际 %s (%s)", tt.want, got.Status, got.Message)
			}
		})
	}

	t.Run("command failed", func(t *testing.T) {
		a := newTestAuditor(afero.NewMemMapFs())
		exitErr := realExitError(t)
		a.runCommand = func(_ context.Context, _ string, _ ...string) ([]byte, error) {
			return nil, exitErr
		}
		got := a.checkUFWStatus(context.Background())
		if got.Status != StatusWarn {
			t.Errorf("命令执行失败应判定 WARN, 实际 %s", got.Status)
		}
		if got.Message != i18n.T("audit.ufw.error", i18n.LangEN) {
			t.Errorf("应区分命令失败与未安装: %q", got.Message)
		}
	})
}

func TestCheckFail2banStatus(t *testing.T) {
	t.Run("active", func(t *testing.T) {
		a := newTestAuditor(afero.NewMemMapFs())
		a.runCommand = func(_ context.Context, _ string, _ ...string) ([]byte, error) {
			return []byte("active\n"), nil
		}
		if got := a.checkFail2banStatus(context.Background()); got.Status != StatusPass {
			t.Errorf("想要 PASS, 实际 %s", got.Status)
		}
	})

	t.Run("not running", func(t *testing.T) {
		a := newTestAuditor(afero.NewMemMapFs())
		exitErr := realExitError(t)
		a.runCommand = func(_ context.Context, _ string, _ ...string) ([]byte, error) {
			return nil, exitErr
		}
		got := a.checkFail2banStatus(context.Background())
		if got.Status != StatusWarn || got.Message != i18n.T("audit.fail2ban.warn", i18n.LangEN) {
			t.Errorf("未运行应为 WARN: %s / %q", got.Status, got.Message)
		}
	})

	t.Run("not installed", func(t *testing.T) {
		a := newTestAuditor(afero.NewMemMapFs())
		a.runCommand = func(_ context.Context, _ string, _ ...string) ([]byte, error) {
			return nil, exec.ErrNotFound
		}
		got := a.checkFail2banStatus(context.Background())
		if got.Status != StatusWarn || got.Message != i18n.T("audit.fail2ban.missing", i18n.LangEN) {
			t.Errorf("未安装应为 WARN: %s / %q", got.Status, got.Message)
		}
	})
}

func TestParseSuspiciousPorts(t *testing.T) {
	output := `Netid State  Recv-Q Send-Q Local Address:Port Peer Address:Port
tcp   LISTEN 0      128    0.0.0.0:22        0.0.0.0:*
tcp   LISTEN 0      128    127.0.0.1:8080    0.0.0.0:*
tcp   LISTEN 0      128    [::]:443          [::]:*
tcp   LISTEN 0      128    0.0.0.0:8080      0.0.0.0:*
tcp   ESTAB  0      0      10.0.0.1:22       10.0.0.2:50000
udp   UNCONN 0      0      0.0.0.0:53        0.0.0.0:*
`
	got := parseSuspiciousPorts(output)
	want := []string{"8080"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("想要 %v, 实际 %v", want, got)
	}
}

func TestRunAuditKeepsOrderAndDegradesToWarn(t *testing.T) {
	// 空文件系统 + 全部命令失败：所有检查仍然返回结果，不会报错
	a := newTestAuditor(afero.NewMemMapFs())
	a.runCommand = func(_ context.Context, _ string, _ ...string) ([]byte, error) {
		return nil, exec.ErrNotFound
	}

	results := a.RunAudit(context.Background())
	if len(results) != 7 {
		t.Fatalf("想要 7 项检查结果, 实际 %d", len(results))
	}
	if results[0].Name != i18n.T("audit.ssh_root.name", i18n.LangEN) {
		t.Errorf("结果应保持注册顺序, 首项为 %q", results[0].Name)
	}
	for _, r := range results {
		if r.Status == "" || r.Message == "" {
			t.Errorf("检查 %q 缺少状态或描述", r.Name)
		}
	}
}

func TestFindSystemBinary(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/usr/bin/lsblk", []byte("#!"), 0755); err != nil {
		t.Fatal(err)
	}
	// 不可执行的文件应被跳过
	if err := afero.WriteFile(fs, "/usr/sbin/lsblk", []byte("#!"), 0644); err != nil {
		t.Fatal(err)
	}

	a := newTestAuditor(fs)
	if got := a.findSystemBinary("lsblk"); got != "/usr/bin/lsblk" {
		t.Errorf("想要 /usr/bin/lsblk, 实际 %s", got)
	}
	if got := a.findSystemBinary("nonexistent-xyz"); got != "nonexistent-xyz" {
		t.Errorf("未找到时应回退到 PATH 名称, 实际 %s", got)
	}
}
