package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dushixiang/miniops/internal/app"
	"github.com/dushixiang/miniops/internal/config"
	"github.com/dushixiang/miniops/internal/xlog"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动监控服务",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := xlog.New(cfg.LogFile, cfg.Debug)
	defer func() { _ = logger.Sync() }()

	preview, generated, err := cfg.EnsureAuthToken()
	if err != nil {
		return err
	}
	if generated {
		logger.Warn("AUTH_TOKEN 未配置，已生成并写入 .env，生产环境请及时更换",
			zap.String("preview", preview))
	}

	a, err := app.New(cfg, logger, version)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("收到退出信号，开始优雅退出")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return a.Stop(shutdownCtx)
}
