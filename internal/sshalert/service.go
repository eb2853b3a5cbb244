package sshalert

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oschwald/geoip2-golang"
	"go.uber.org/zap"

	"github.com/dushixiang/miniops/internal/i18n"
	"github.com/dushixiang/miniops/internal/models"
	"github.com/dushixiang/miniops/internal/repo"
)

// 同一来源IP的事件在该窗口内只接受一次
const rateLimitWindow = 10 * time.Second

var (
	ErrUnauthorized = errors.New("内部令牌无效")
	ErrDuplicateIP  = errors.New("IP已在白名单中")
	ErrInvalidIP    = errors.New("IP地址格式无效")
)

// LoginEvent 外部提交的SSH登录事件
type LoginEvent struct {
	User      string `json:"user" validate:"required"`
	IP        string `json:"ip" validate:"required,ip"`
	Timestamp int64  `json:"timestamp"` // 秒时间戳
	Method    string `json:"method"`
}

// Outcome 事件处理结果。对外全部表现为成功，仅内部可区分。
type Outcome int

const (
	// OutcomeNotified 已记录并发送告警
	OutcomeNotified Outcome = iota
	// OutcomeTrusted IP在白名单中，仅记录
	OutcomeTrusted
	// OutcomeRateLimited 触发限速，静默丢弃
	OutcomeRateLimited
)

// Alerter 告警出口
type Alerter interface {
	SendAlert(message string)
}

// Service SSH登录告警服务。
// 校验内部令牌、按来源IP限速、过滤白名单并在必要时发送通知。
type Service struct {
	loginRepo   *repo.SSHLoginRepo
	trustedRepo *repo.TrustedIPRepo
	notifier    Alerter
	logger      *zap.Logger
	lang        i18n.Lang

	// 进程启动时生成，构造后不可变；为空表示拒绝一切事件
	internalToken string

	// GeoIP 库，可为 nil
	geo *geoip2.Reader

	mu      sync.Mutex
	limiter map[string]time.Time // IP -> 最近接受时间

	now func() time.Time
}

func NewService(loginRepo *repo.SSHLoginRepo, trustedRepo *repo.TrustedIPRepo,
	notifier Alerter, logger *zap.Logger, lang i18n.Lang, internalToken string) *Service {
	return &Service{
		loginRepo:     loginRepo,
		trustedRepo:   trustedRepo,
		notifier:      notifier,
		logger:        logger,
		lang:          lang,
		internalToken: internalToken,
		limiter:       make(map[string]time.Time),
		now:           time.Now,
	}
}

// WithGeoIP 加载 GeoIP 数据库用于标注登录来源国家，失败时忽略
func (s *Service) WithGeoIP(path string) *Service {
	reader, err := geoip2.Open(path)
	if err != nil {
		s.logger.Warn("打开 GeoIP 数据库失败", zap.String("path", path), zap.Error(err))
		return s
	}
	s.geo = reader
	return s
}

// HandleLogin 处理一次登录事件。
// 认证失败返回 ErrUnauthorized 且不产生任何状态变化；
// 白名单查询失败时中止（该查询决定分支走向）；
// 日志落库失败只记录不中止，告警决策是本方法的首要职责。
func (s *Service) HandleLogin(ctx context.Context, event LoginEvent, token string) (Outcome, error) {
	if s.internalToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(s.internalToken)) != 1 {
		return 0, ErrUnauthorized
	}

	if s.rateLimited(event.IP) {
		s.logger.Info("SSH告警触发限速", zap.String("ip", event.IP))
		return OutcomeRateLimited, nil
	}

	count, err := s.trustedRepo.CountByIP(ctx, event.IP)
	if err != nil {
		return 0, fmt.Errorf("查询白名单失败: %w", err)
	}

	if count > 0 {
		s.logger.Info("白名单IP登录，跳过通知", zap.String("ip", event.IP))
		s.logToDB(ctx, event, false)
		return OutcomeTrusted, nil
	}

	s.logToDB(ctx, event, true)
	s.notifier.SendAlert(s.formatAlert(event))
	return OutcomeNotified, nil
}

// rateLimited 检查并更新来源IP限速状态，检查与写入在同一把锁内完成
func (s *Service) rateLimited(ip string) bool {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.limiter[ip]; ok && now.Sub(last) < rateLimitWindow {
		return true
	}
	s.limiter[ip] = now
	return false
}

func (s *Service) logToDB(ctx context.Context, event LoginEvent, notified bool) {
	log := &models.SSHLoginLog{
		ID:        uuid.NewString(),
		User:      event.User,
		IP:        event.IP,
		Timestamp: event.Timestamp,
		Method:    event.Method,
		Notified:  notified,
	}
	if err := s.loginRepo.CreateLog(ctx, log); err != nil {
		s.logger.Error("写入SSH登录日志失败", zap.Error(err))
	}
}

func (s *Service) formatAlert(event LoginEvent) string {
	timeStr := time.Unix(event.Timestamp, 0).UTC().Format("2006-01-02 15:04:05")

	ip := event.IP
	if country := s.lookupCountry(event.IP); country != "" {
		ip = fmt.Sprintf("%s (%s)", event.IP, country)
	}

	return fmt.Sprintf("%s\n\n*%s:* `%s`\n*%s:* `%s`\n*%s:* `%s`\n*%s:* `%s`",
		i18n.T("ssh.login_detected", s.lang),
		i18n.T("ssh.user", s.lang), event.User,
		i18n.T("ssh.ip", s.lang), ip,
		i18n.T("ssh.method", s.lang), event.Method,
		i18n.T("ssh.time", s.lang), timeStr)
}

func (s *Service) lookupCountry(ip string) string {
	if s.geo == nil {
		return ""
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	record, err := s.geo.Country(parsed)
	if err != nil || record.Country.IsoCode == "" {
		return ""
	}
	return record.Country.IsoCode
}

// Sweep 清理超出限速窗口的记录，限制内存增长
func (s *Service) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for ip, last := range s.limiter {
		if now.Sub(last) >= rateLimitWindow {
			delete(s.limiter, ip)
			removed++
		}
	}
	return removed
}

// Close 释放 GeoIP 资源
func (s *Service) Close() error {
	if s.geo != nil {
		return s.geo.Close()
	}
	return nil
}
