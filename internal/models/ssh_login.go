package models

// SSHLoginLog SSH登录日志
type SSHLoginLog struct {
	ID        string `gorm:"primaryKey" json:"id"`          // 日志ID (UUID)
	User      string `gorm:"index" json:"user"`             // 用户名
	IP        string `gorm:"index" json:"ip"`               // 来源IP
	Timestamp int64  `gorm:"index;not null" json:"timestamp"` // 登录时间（秒时间戳）
	Method    string `json:"method"`                        // 认证方式: password/publickey
	Notified  bool   `json:"notified"`                      // 是否已尝试发送通知
}

func (SSHLoginLog) TableName() string {
	return "ssh_logins"
}

// TrustedIP 受信任IP（白名单）
type TrustedIP struct {
	ID          string `gorm:"primaryKey" json:"id"`                 // ID (UUID)
	IP          string `gorm:"uniqueIndex;not null" json:"ip"`       // IP地址（唯一）
	Description string `json:"description,omitempty"`                // 备注
	AddedAt     int64  `gorm:"not null;index" json:"added_at"`       // 添加时间（秒时间戳）
}

func (TrustedIP) TableName() string {
	return "trusted_ips"
}
