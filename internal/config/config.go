package config

import (
	"crypto/rand"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/dushixiang/miniops/internal/i18n"
)

const tokenChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Config 运行配置，来自 .env 文件与环境变量
type Config struct {
	ListenAddr   string
	DatabasePath string
	ServerName   string
	Lang         i18n.Lang
	Debug        bool
	LogFile      string

	// API 认证令牌，缺失时自动生成并写回 .env
	AuthToken string
	// 本机事件源使用的内部令牌文件
	InternalTokenFile string

	TelegramBotToken string
	TelegramChatID   string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPTo       string

	// GeoIP 数据库路径（可选）
	GeoIPDatabase string

	AuditInterval   time.Duration
	MetricsInterval time.Duration
	SweepInterval   time.Duration
}

// Load 加载配置。先尝试加载 .env，再读取环境变量并填充默认值。
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}

	cfg := &Config{
		ListenAddr:        getenv("LISTEN_ADDR", ":3000"),
		DatabasePath:      getenv("DATABASE_PATH", "mini-ops.db"),
		ServerName:        getenv("SERVER_NAME", ""),
		Lang:              i18n.Default(),
		Debug:             os.Getenv("DEBUG") == "true",
		LogFile:           os.Getenv("LOG_FILE"),
		AuthToken:         os.Getenv("AUTH_TOKEN"),
		InternalTokenFile: getenv("INTERNAL_TOKEN_FILE", "/tmp/mini-ops-internal.token"),
		TelegramBotToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:    os.Getenv("TELEGRAM_CHAT_ID"),
		SMTPHost:          os.Getenv("SMTP_HOST"),
		SMTPUsername:      os.Getenv("SMTP_USERNAME"),
		SMTPPassword:      os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:          os.Getenv("SMTP_FROM"),
		SMTPTo:            os.Getenv("SMTP_TO"),
		GeoIPDatabase:     os.Getenv("GEOIP_DB"),
	}

	if cfg.ServerName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "Unknown Server"
		}
		cfg.ServerName = hostname
	}

	var err error
	if cfg.SMTPPort, err = getenvInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	if cfg.AuditInterval, err = getenvDuration("AUDIT_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.MetricsInterval, err = getenvDuration("METRICS_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = getenvDuration("SWEEP_INTERVAL", 10*time.Minute); err != nil {
		return nil, err
	}

	return cfg, nil
}

// TelegramEnabled Telegram 通道是否已配置
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != ""
}

// SMTPEnabled 邮件通道是否已配置
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != "" && c.SMTPFrom != "" && c.SMTPTo != ""
}

// EnsureAuthToken 确保 API 令牌存在。缺失时生成并追加到 .env，返回脱敏预览。
func (c *Config) EnsureAuthToken() (preview string, generated bool, err error) {
	if c.AuthToken != "" {
		return "", false, nil
	}

	token, err := randomToken(32)
	if err != nil {
		return "", false, fmt.Errorf("生成 AUTH_TOKEN 失败: %w", err)
	}

	f, err := os.OpenFile(".env", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return "", false, fmt.Errorf("写入 .env 失败: %w", err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "AUTH_TOKEN=%s\n", token); err != nil {
		return "", false, fmt.Errorf("写入 .env 失败: %w", err)
	}

	c.AuthToken = token
	return token[:6] + "***", true, nil
}

// EnsureInternalToken 生成进程级内部令牌并落盘（0600），供本机 PAM 钩子读取。
func (c *Config) EnsureInternalToken() (string, error) {
	token := uuid.NewString()
	if err := os.WriteFile(c.InternalTokenFile, []byte(token), 0600); err != nil {
		return "", fmt.Errorf("写入内部令牌文件失败: %w", err)
	}
	return token, nil
}

func randomToken(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i := range buf {
		buf[i] = tokenChars[int(buf[i])%len(tokenChars)]
	}
	return string(buf), nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("环境变量 %s 无效: %w", key, err)
	}
	return n, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("环境变量 %s 无效: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("环境变量 %s 必须为正值", key)
	}
	return d, nil
}
