package loginhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

const DefaultEndpoint = "http://127.0.0.1:3000/api/internal/ssh-login"

// SendEventFromEnv 从 PAM 环境变量构建事件并上报。
// 仅处理 open_session，其余 PAM 阶段直接返回。
func SendEventFromEnv(endpoint, tokenFile string) error {
	if os.Getenv("PAM_TYPE") != "open_session" {
		return nil
	}
	token, err := readToken(tokenFile)
	if err != nil {
		return fmt.Errorf("读取内部令牌失败: %w", err)
	}
	return SendEvent(endpoint, token, BuildEventFromEnv())
}

// BuildEventFromEnv 从 PAM 环境变量构建事件
func BuildEventFromEnv() LoginEvent {
	user := os.Getenv("PAM_USER")
	if user == "" {
		user = "unknown"
	}

	ip := os.Getenv("PAM_RHOST")
	if ip == "" {
		if conn := os.Getenv("SSH_CONNECTION"); conn != "" {
			if parts := strings.Fields(conn); len(parts) >= 1 {
				ip = parts[0]
			}
		}
	}
	if ip == "" {
		ip = "127.0.0.1"
	}

	method := os.Getenv("SSH_AUTH_INFO_0")
	switch {
	case strings.HasPrefix(method, "publickey"):
		method = "publickey"
	case strings.HasPrefix(method, "password"):
		method = "password"
	default:
		method = "unknown"
	}

	return LoginEvent{
		User:      user,
		IP:        ip,
		Timestamp: time.Now().Unix(),
		Method:    method,
	}
}

// SendEvent 上报事件到本机服务端
func SendEvent(endpoint, token string, event LoginEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("服务端返回 %d", resp.StatusCode)
	}
	return nil
}

func readToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
