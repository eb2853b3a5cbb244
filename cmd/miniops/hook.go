package main

import (
	"github.com/spf13/cobra"

	"github.com/dushixiang/miniops/pkg/loginhook"
)

// newSSHLoginHookCmd PAM 钩子入口，由 pam_exec.so 在会话建立时调用
func newSSHLoginHookCmd() *cobra.Command {
	var endpoint string
	var tokenFile string

	cmd := &cobra.Command{
		Use:    "ssh-login-hook",
		Short:  "上报一次SSH登录事件（由 PAM 调用）",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return loginhook.SendEventFromEnv(endpoint, tokenFile)
		},
	}
	cmd.Flags().StringVar(&endpoint, "endpoint", loginhook.DefaultEndpoint, "事件上报地址")
	cmd.Flags().StringVar(&tokenFile, "token-file", "/tmp/mini-ops-internal.token", "内部令牌文件路径")
	return cmd
}

// newHookCmd 管理 PAM Hook 的安装与卸载
func newHookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hook",
		Short: "管理SSH登录 PAM Hook",
	}

	manager := loginhook.NewHookManager()
	cmd.AddCommand(
		&cobra.Command{
			Use:   "install",
			Short: "安装 PAM Hook（需要 root）",
			RunE: func(cmd *cobra.Command, args []string) error {
				return manager.Install()
			},
		},
		&cobra.Command{
			Use:   "uninstall",
			Short: "卸载 PAM Hook",
			RunE: func(cmd *cobra.Command, args []string) error {
				return manager.Uninstall()
			},
		},
	)
	return cmd
}
