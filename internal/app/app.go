package app

import (
	"context"
	"fmt"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dushixiang/miniops/internal/config"
	"github.com/dushixiang/miniops/internal/database"
	"github.com/dushixiang/miniops/internal/handler"
	"github.com/dushixiang/miniops/internal/metric"
	"github.com/dushixiang/miniops/internal/notify"
	"github.com/dushixiang/miniops/internal/repo"
	"github.com/dushixiang/miniops/internal/security"
	"github.com/dushixiang/miniops/internal/sshalert"
)

// App 进程装配与生命周期管理
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	db         *gorm.DB
	echo       *echo.Echo
	cron       *cron.Cron
	dispatcher *notify.Dispatcher
	monitor    *security.Monitor
	collector  *metric.Collector
	sshAlerts  *sshalert.Service
}

// New 组装全部组件。告警通道缺失时分发器降级为仅记录日志。
func New(cfg *config.Config, logger *zap.Logger, version string) (*App, error) {
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	var transports []notify.Transport
	if cfg.TelegramEnabled() {
		transports = append(transports, notify.NewTelegramTransport(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	if cfg.SMTPEnabled() {
		transports = append(transports, notify.NewMailTransport(
			cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom, cfg.SMTPTo))
	}
	if len(transports) == 0 {
		logger.Warn("未配置任何通知通道，告警将只记录日志")
	}
	dispatcher := notify.NewDispatcher(logger, cfg.ServerName, transports...)

	auditor := security.NewAuditor(nil, logger, cfg.Lang)
	monitor := security.NewMonitor(auditor, dispatcher, logger, cfg.Lang)

	internalToken, err := cfg.EnsureInternalToken()
	if err != nil {
		return nil, err
	}
	logger.Info("内部令牌已生成", zap.String("file", cfg.InternalTokenFile))

	sshAlerts := sshalert.NewService(
		repo.NewSSHLoginRepo(db),
		repo.NewTrustedIPRepo(db),
		dispatcher, logger, cfg.Lang, internalToken)
	if cfg.GeoIPDatabase != "" {
		sshAlerts = sshAlerts.WithGeoIP(cfg.GeoIPDatabase)
	}

	collector := metric.NewCollector(repo.NewMetricRepo(db), dispatcher, logger, cfg.Lang)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomiddleware.Recover())

	h := handler.New(logger, monitor, sshAlerts, collector, dispatcher, version)
	h.Register(e, cfg.AuthToken)

	a := &App{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		echo:       e,
		dispatcher: dispatcher,
		monitor:    monitor,
		collector:  collector,
		sshAlerts:  sshAlerts,
	}
	if err := a.setupCron(); err != nil {
		return nil, err
	}
	return a, nil
}

// setupCron 注册后台任务。周期任务串行执行，超时的周期顺延而不是并发。
func (a *App) setupCron() error {
	cronLogger := cron.PrintfLogger(zap.NewStdLog(a.logger))
	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger),
		cron.DelayIfStillRunning(cronLogger),
	))

	jobs := []struct {
		spec string
		name string
		fn   func()
	}{
		{fmt.Sprintf("@every %s", a.cfg.AuditInterval), "security-audit", func() {
			a.monitor.RunCycle(context.Background())
		}},
		{fmt.Sprintf("@every %s", a.cfg.MetricsInterval), "metrics-collect", func() {
			a.collector.RunCycle(context.Background())
		}},
		{fmt.Sprintf("@every %s", a.cfg.SweepInterval), "state-sweep", func() {
			removed := a.dispatcher.Sweep() + a.sshAlerts.Sweep()
			if removed > 0 {
				a.logger.Debug("清理过期状态", zap.Int("removed", removed))
			}
		}},
	}
	for _, job := range jobs {
		if _, err := c.AddFunc(job.spec, job.fn); err != nil {
			return fmt.Errorf("注册定时任务 %s 失败: %w", job.name, err)
		}
	}

	a.cron = c
	return nil
}

// Start 启动后台任务与HTTP服务，阻塞直到服务退出
func (a *App) Start() error {
	a.cron.Start()
	a.logger.Info("Mini-Ops 启动",
		zap.String("listen", a.cfg.ListenAddr),
		zap.String("server", a.cfg.ServerName))
	return a.echo.Start(a.cfg.ListenAddr)
}

// Stop 优雅退出：停止调度、关闭HTTP、等待在途告警投递
func (a *App) Stop(ctx context.Context) error {
	<-a.cron.Stop().Done()
	err := a.echo.Shutdown(ctx)
	a.dispatcher.Wait()
	_ = a.sshAlerts.Close()
	if sqlDB, dbErr := a.db.DB(); dbErr == nil {
		_ = sqlDB.Close()
	}
	return err
}
