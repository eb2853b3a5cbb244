package sshalert

import (
	"context"
	"net"
	"strings"

	"github.com/google/uuid"

	"github.com/dushixiang/miniops/internal/models"
)

// ListLogs 查询最近100条登录日志
func (s *Service) ListLogs(ctx context.Context) ([]models.SSHLoginLog, error) {
	return s.loginRepo.FindRecent(ctx, 100)
}

// ListTrustedIPs 查询白名单，最近添加的在前
func (s *Service) ListTrustedIPs(ctx context.Context) ([]models.TrustedIP, error) {
	return s.trustedRepo.FindAllOrdered(ctx)
}

// AddTrustedIP 新增白名单条目。
// IP 格式非法返回 ErrInvalidIP，重复返回 ErrDuplicateIP。
func (s *Service) AddTrustedIP(ctx context.Context, ip, description string) (*models.TrustedIP, error) {
	ip = strings.TrimSpace(ip)
	if net.ParseIP(ip) == nil {
		return nil, ErrInvalidIP
	}

	count, err := s.trustedRepo.CountByIP(ctx, ip)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrDuplicateIP
	}

	entry := &models.TrustedIP{
		ID:          uuid.NewString(),
		IP:          ip,
		Description: description,
		AddedAt:     s.now().Unix(),
	}
	if err := s.trustedRepo.CreateTrustedIP(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// DeleteTrustedIP 按ID删除白名单条目，ID不存在时视为成功
func (s *Service) DeleteTrustedIP(ctx context.Context, id string) error {
	return s.trustedRepo.DeleteByID(ctx, id)
}
