package main

import (
	"fmt"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

// program 实现 service.Interface，由系统服务管理器驱动
type program struct {
	errCh chan error
}

func (p *program) Start(s service.Service) error {
	p.errCh = make(chan error, 1)
	go func() {
		p.errCh <- runServe()
	}()
	return nil
}

func (p *program) Stop(s service.Service) error {
	// runServe 自己处理信号与优雅退出
	return nil
}

func newSystemService() (service.Service, error) {
	return service.New(&program{}, &service.Config{
		Name:        "miniops",
		DisplayName: "Mini-Ops Agent",
		Description: "主机安全基线审计与SSH登录告警探针",
		Arguments:   []string{"serve"},
	})
}

// newServiceCmd 系统服务管理命令
func newServiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "service [install|uninstall|start|stop|restart]",
		Short:     "管理系统服务",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"install", "uninstall", "start", "stop", "restart"},
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSystemService()
			if err != nil {
				return err
			}
			if err := service.Control(svc, args[0]); err != nil {
				return fmt.Errorf("服务操作 %s 失败: %w", args[0], err)
			}
			fmt.Printf("服务操作 %s 成功\n", args[0])
			return nil
		},
	}
	return cmd
}
