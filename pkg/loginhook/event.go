package loginhook

// LoginEvent 上报给服务端的SSH登录事件
type LoginEvent struct {
	User      string `json:"user"`
	IP        string `json:"ip"`
	Timestamp int64  `json:"timestamp"` // 秒时间戳
	Method    string `json:"method"`
}
