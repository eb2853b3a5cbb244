package handler

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/dushixiang/miniops/internal/i18n"
	"github.com/dushixiang/miniops/internal/metric"
	"github.com/dushixiang/miniops/internal/notify"
	"github.com/dushixiang/miniops/internal/security"
	"github.com/dushixiang/miniops/internal/sshalert"
)

// Handler HTTP 接口层
type Handler struct {
	logger    *zap.Logger
	monitor   *security.Monitor
	sshAlerts *sshalert.Service
	metrics   *metric.Collector
	notifier  *notify.Dispatcher
	validate  *validator.Validate
	version   string
}

func New(logger *zap.Logger, monitor *security.Monitor, sshAlerts *sshalert.Service,
	metrics *metric.Collector, notifier *notify.Dispatcher, version string) *Handler {
	return &Handler{
		logger:    logger,
		monitor:   monitor,
		sshAlerts: sshAlerts,
		metrics:   metrics,
		notifier:  notifier,
		validate:  validator.New(),
		version:   version,
	}
}

// Register 注册路由。authToken 保护管理接口；
// 内部上报接口不经过该中间件，由服务自身校验内部令牌。
func (h *Handler) Register(e *echo.Echo, authToken string) {
	e.GET("/healthz", h.Healthz)

	api := e.Group("/api")
	api.POST("/internal/ssh-login", h.SSHLogin)

	protected := api.Group("", BearerAuth(authToken))
	protected.GET("/security/audit", h.SecurityAudit)
	protected.GET("/ssh/logs", h.SSHLogs)
	protected.GET("/ssh/trusted-ips", h.ListTrustedIPs)
	protected.POST("/ssh/trusted-ips", h.AddTrustedIP)
	protected.DELETE("/ssh/trusted-ips/:id", h.DeleteTrustedIP)
	protected.GET("/stats", h.Stats)
	protected.GET("/stats/history", h.StatsHistory)
	protected.POST("/test-notification", h.TestNotification)
	protected.GET("/version", h.Version)
}

func (h *Handler) Healthz(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// SecurityAudit 返回最近一个审计周期的检查结果
func (h *Handler) SecurityAudit(c echo.Context) error {
	return c.JSON(http.StatusOK, h.monitor.Latest(c.Request().Context()))
}

// SSHLogin 本机事件源上报SSH登录事件。
// 接受与静默丢弃对外都返回 200 无内容，认证失败返回 401。
func (h *Handler) SSHLogin(c echo.Context) error {
	var event sshalert.LoginEvent
	if err := c.Bind(&event); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "请求体格式错误")
	}
	if err := h.validate.Struct(&event); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "事件字段无效")
	}

	token, _ := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
	_, err := h.sshAlerts.HandleLogin(c.Request().Context(), event, token)
	if err != nil {
		if errors.Is(err, sshalert.ErrUnauthorized) {
			h.logger.Warn("SSH登录上报认证失败", zap.String("remote", c.RealIP()))
			return echo.NewHTTPError(http.StatusUnauthorized, "内部令牌无效")
		}
		h.logger.Error("处理SSH登录事件失败", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "处理事件失败")
	}
	return c.NoContent(http.StatusOK)
}

func (h *Handler) SSHLogs(c echo.Context) error {
	logs, err := h.sshAlerts.ListLogs(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "查询登录日志失败")
	}
	return c.JSON(http.StatusOK, logs)
}

func (h *Handler) ListTrustedIPs(c echo.Context) error {
	ips, err := h.sshAlerts.ListTrustedIPs(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "查询白名单失败")
	}
	return c.JSON(http.StatusOK, ips)
}

type addTrustedIPRequest struct {
	IP          string `json:"ip" validate:"required,ip"`
	Description string `json:"description"`
}

func (h *Handler) AddTrustedIP(c echo.Context) error {
	var req addTrustedIPRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "请求体格式错误")
	}
	if err := h.validate.Struct(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "IP地址无效")
	}

	entry, err := h.sshAlerts.AddTrustedIP(c.Request().Context(), req.IP, req.Description)
	if err != nil {
		switch {
		case errors.Is(err, sshalert.ErrDuplicateIP):
			return echo.NewHTTPError(http.StatusConflict, "IP已在白名单中")
		case errors.Is(err, sshalert.ErrInvalidIP):
			return echo.NewHTTPError(http.StatusBadRequest, "IP地址无效")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "新增白名单失败")
		}
	}
	return c.JSON(http.StatusOK, entry)
}

func (h *Handler) DeleteTrustedIP(c echo.Context) error {
	if err := h.sshAlerts.DeleteTrustedIP(c.Request().Context(), c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "删除白名单失败")
	}
	return c.NoContent(http.StatusOK)
}

func (h *Handler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.metrics.Current())
}

func (h *Handler) StatsHistory(c echo.Context) error {
	samples, err := h.metrics.History(c.Request().Context(), 60)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "查询指标历史失败")
	}
	return c.JSON(http.StatusOK, samples)
}

// TestNotification 发送测试通知，语言取自请求头
func (h *Handler) TestNotification(c echo.Context) error {
	lang := i18n.FromAcceptLanguage(c.Request().Header.Get("Accept-Language"))
	h.notifier.SendAlert(i18n.T("alert.test", lang))
	return c.NoContent(http.StatusOK)
}

func (h *Handler) Version(c echo.Context) error {
	return c.String(http.StatusOK, h.version)
}
